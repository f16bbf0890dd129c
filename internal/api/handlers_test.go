package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"satellite-trading-bot/config"
	"satellite-trading-bot/internal/auth"
	"satellite-trading-bot/internal/orders"
	"satellite-trading-bot/internal/risk"
)

const testPassword = "correct horse battery staple"

func testServer(t *testing.T, withAuth bool) *Server {
	t.Helper()

	cfg := config.Default()
	riskMgr, err := risk.NewManager(cfg, risk.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("risk.NewManager: %v", err)
	}
	tracker := orders.NewGroupTracker(nil, zerolog.Nop())

	var authService *auth.Service
	if withAuth {
		hash, err := auth.HashPassword(testPassword)
		if err != nil {
			t.Fatal(err)
		}
		authService = auth.NewService(config.AuthConfig{
			JWTSecret:           "test-secret",
			AdminPasswordHash:   hash,
			AccessTokenDuration: time.Minute,
		})
	}

	return NewServer(cfg, riskMgr, tracker, nil, authService)
}

func doJSON(s *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, s *Server) string {
	t.Helper()
	w := doJSON(s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": auth.AdminUsername,
		"password": testPassword,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}
	var pair auth.TokenPair
	if err := json.Unmarshal(w.Body.Bytes(), &pair); err != nil {
		t.Fatal(err)
	}
	return pair.AccessToken
}

func TestResponsesCarryTraceID(t *testing.T) {
	s := testServer(t, false)

	w := doJSON(s, http.MethodGet, "/health", "", nil)
	if w.Header().Get("X-Trace-ID") == "" {
		t.Error("response missing generated trace ID")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Trace-ID", "trace-from-client")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Trace-ID"); got != "trace-from-client" {
		t.Errorf("trace ID = %q, want the client-supplied one", got)
	}
}

func TestHealthIsPublic(t *testing.T) {
	s := testServer(t, true)
	w := doJSON(s, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestStatusRequiresToken(t *testing.T) {
	s := testServer(t, true)

	if w := doJSON(s, http.MethodGet, "/api/status", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}
	if w := doJSON(s, http.MethodGet, "/api/status", "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", w.Code)
	}

	token := login(t, s)
	if w := doJSON(s, http.MethodGet, "/api/status", token, nil); w.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", w.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := testServer(t, true)
	w := doJSON(s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": auth.AdminUsername,
		"password": "nope",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestOpenAccessWhenAuthDisabled(t *testing.T) {
	s := testServer(t, false)
	if w := doJSON(s, http.MethodGet, "/api/status", "", nil); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", w.Code)
	}
}

func TestConfigUpdateRoundTrip(t *testing.T) {
	s := testServer(t, true)
	token := login(t, s)

	w := doJSON(s, http.MethodPost, "/api/config", token, map[string]string{
		"key":   "risk.dailyLossLimit",
		"value": "0.03",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", w.Code, w.Body.String())
	}

	if got := s.cfg.Snapshot().Risk.DailyLossLimit; got != 0.03 {
		t.Errorf("dailyLossLimit = %v, want 0.03", got)
	}
}

func TestConfigUpdateRejectsUnknownKey(t *testing.T) {
	s := testServer(t, true)
	token := login(t, s)

	w := doJSON(s, http.MethodPost, "/api/config", token, map[string]string{
		"key":   "risk.leverage",
		"value": "20",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestBreakerResetEndpoint(t *testing.T) {
	s := testServer(t, true)
	token := login(t, s)

	// Trip the trade-count breaker, then clear it via the API.
	s.cfg.Risk.MaxTradesPerDay = 1
	if err := s.riskMgr.RecordTrade(); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.riskMgr.CanTrade(); ok {
		t.Fatal("breaker did not trip")
	}

	w := doJSON(s, http.MethodPost, "/api/risk/breaker/reset", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reset status = %d: %s", w.Code, w.Body.String())
	}
	if ok, reason := s.riskMgr.CanTrade(); !ok {
		t.Errorf("breaker still tripped after reset: %s", reason)
	}
}

func TestPositionsEndpoint(t *testing.T) {
	s := testServer(t, true)
	token := login(t, s)

	s.tracker.Track(orders.Group{ID: "g1", Pair: "SOLUSDT", Quantity: 0.5})

	w := doJSON(s, http.MethodGet, "/api/positions", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Data []orders.Group `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Pair != "SOLUSDT" {
		t.Errorf("positions = %+v", resp.Data)
	}
}
