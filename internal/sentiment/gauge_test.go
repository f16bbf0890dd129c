package sentiment

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func gaugeAgainst(url string) *Gauge {
	g := NewGauge()
	g.endpoint = url
	return g
}

func TestCurrentFetchesAndCaches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"name":"Fear and Greed Index","data":[{"value":"62","value_classification":"Greed","timestamp":"1717243200"}]}`)
	}))
	defer srv.Close()

	g := gaugeAgainst(srv.URL)

	score, err := g.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if score.Value != 62 || score.Label != "Greed" {
		t.Errorf("score = %+v, want 62/Greed", score)
	}

	// Second read inside the TTL must come from cache.
	if _, err := g.Current(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("upstream called %d times, want 1", calls.Load())
	}
}

func TestCurrentServesStaleOnFailure(t *testing.T) {
	fail := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"data":[{"value":"30","value_classification":"Fear"}]}`)
	}))
	defer srv.Close()

	g := gaugeAgainst(srv.URL)
	if _, err := g.Current(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Expire the cache and break the upstream.
	g.last.FetchedAt = g.last.FetchedAt.Add(-cacheTTL)
	fail = true

	score, err := g.Current(context.Background())
	if err != nil {
		t.Fatalf("expected stale reading, got error: %v", err)
	}
	if score.Value != 30 {
		t.Errorf("stale value = %v, want 30", score.Value)
	}
}

func TestCurrentErrorsWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	g := gaugeAgainst(srv.URL)
	if _, err := g.Current(context.Background()); err == nil {
		t.Error("expected error with empty upstream data and no cache")
	}
}

func TestCurrentRejectsOutOfRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"value":"250","value_classification":"Broken"}]}`)
	}))
	defer srv.Close()

	g := gaugeAgainst(srv.URL)
	if _, err := g.Current(context.Background()); err == nil {
		t.Error("expected error for out-of-range index")
	}
}
