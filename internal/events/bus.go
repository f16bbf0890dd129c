package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventEngineStarted  EventType = "ENGINE_STARTED"
	EventEngineStopped  EventType = "ENGINE_STOPPED"
	EventTradeExecuted  EventType = "TRADE_EXECUTED"
	EventTradeRejected  EventType = "TRADE_REJECTED"
	EventBreakerTripped EventType = "BREAKER_TRIPPED"
	EventBreakerReset   EventType = "BREAKER_RESET"
	EventStopRatcheted  EventType = "STOP_RATCHETED"
	EventPositionClosed EventType = "POSITION_CLOSED"
	EventRebalanced     EventType = "REBALANCED"
	EventBalanceUpdate  EventType = "BALANCE_UPDATE"
	EventConfigUpdated  EventType = "CONFIG_UPDATED"
	EventError          EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishTradeExecuted publishes a trade executed event
func (eb *EventBus) PublishTradeExecuted(pair, side string, entryPrice, quantity, sizeUSDT, confidence float64) {
	eb.Publish(Event{
		Type: EventTradeExecuted,
		Data: map[string]interface{}{
			"pair":        pair,
			"side":        side,
			"entry_price": entryPrice,
			"quantity":    quantity,
			"size_usdt":   sizeUSDT,
			"confidence":  confidence,
		},
	})
}

// PublishTradeRejected publishes a trade rejected event
func (eb *EventBus) PublishTradeRejected(pair, reason string) {
	eb.Publish(Event{
		Type: EventTradeRejected,
		Data: map[string]interface{}{
			"pair":   pair,
			"reason": reason,
		},
	})
}

// PublishBreakerTripped publishes a circuit breaker trip event
func (eb *EventBus) PublishBreakerTripped(reason string, dailyPnL, balance float64, trades int) {
	eb.Publish(Event{
		Type: EventBreakerTripped,
		Data: map[string]interface{}{
			"reason":    reason,
			"daily_pnl": dailyPnL,
			"balance":   balance,
			"trades":    trades,
		},
	})
}

// PublishBreakerReset publishes a circuit breaker reset event
func (eb *EventBus) PublishBreakerReset(trigger string) {
	eb.Publish(Event{
		Type: EventBreakerReset,
		Data: map[string]interface{}{
			"trigger": trigger,
		},
	})
}

// PublishStopRatcheted publishes a trailing stop adjustment event
func (eb *EventBus) PublishStopRatcheted(pair string, oldStop, newStop, price float64) {
	eb.Publish(Event{
		Type: EventStopRatcheted,
		Data: map[string]interface{}{
			"pair":     pair,
			"old_stop": oldStop,
			"new_stop": newStop,
			"price":    price,
		},
	})
}

// PublishPositionClosed publishes a position closed event, fired when an exit
// group's orders are no longer open on the exchange
func (eb *EventBus) PublishPositionClosed(pair, groupID string) {
	eb.Publish(Event{
		Type: EventPositionClosed,
		Data: map[string]interface{}{
			"pair":     pair,
			"group_id": groupID,
		},
	})
}

// PublishRebalanced publishes a core rebalance event
func (eb *EventBus) PublishRebalanced(asset string, sizeUSDT, coreValue, totalValue float64) {
	eb.Publish(Event{
		Type: EventRebalanced,
		Data: map[string]interface{}{
			"asset":       asset,
			"size_usdt":   sizeUSDT,
			"core_value":  coreValue,
			"total_value": totalValue,
		},
	})
}

// PublishBalanceUpdate publishes a balance update event
func (eb *EventBus) PublishBalanceUpdate(balance, dailyPnL float64) {
	eb.Publish(Event{
		Type: EventBalanceUpdate,
		Data: map[string]interface{}{
			"balance":   balance,
			"daily_pnl": dailyPnL,
		},
	})
}

// PublishConfigUpdated publishes a config parameter change event
func (eb *EventBus) PublishConfigUpdated(key, value, source string) {
	eb.Publish(Event{
		Type: EventConfigUpdated,
		Data: map[string]interface{}{
			"key":    key,
			"value":  value,
			"source": source,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
