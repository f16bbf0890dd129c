package logging

// TradeContext creates a logger context for trade execution
func TradeContext(pair, side string, quantity, price float64) *Logger {
	return Default().WithFields(map[string]interface{}{
		"pair":     pair,
		"side":     side,
		"quantity": quantity,
		"price":    price,
	}).WithComponent("trade")
}

// ScanContext creates a logger context for a decision-loop scan cycle
func ScanContext(cycle int64, pairs int) *Logger {
	return Default().WithFields(map[string]interface{}{
		"cycle": cycle,
		"pairs": pairs,
	}).WithComponent("engine")
}

// DatabaseContext creates a logger context for database operations
func DatabaseContext(operation, table string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"operation": operation,
		"table":     table,
	}).WithComponent("database")
}
