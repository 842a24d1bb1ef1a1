package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vitos/liquidation_hunter/internal/config"
	"go.uber.org/zap"
)

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		PriceTTLMs:       1000,
		OITTLMs:          1000,
		ClusterTTLMs:     1000,
		JitterFrac:       0,
		RatePerSec:       1000,
		Burst:            100,
		RequestTimeoutMs: 1000,
		StaleCeilingMs:   5000,
	}
}

func newTestScheduler(t *testing.T) (*Scheduler, *time.Time) {
	t.Helper()
	s := NewScheduler(testSchedulerConfig(), zap.NewNop())
	now := time.Now()
	s.timeNow = func() time.Time { return now }
	return s, &now
}

func TestSchedulerServesCachedWhileFresh(t *testing.T) {
	s, now := newTestScheduler(t)
	ctx := context.Background()

	calls := 0
	refresh := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}

	v, stale, err := s.Get(ctx, "BTCUSDT", KindPrice, refresh)
	if err != nil || stale || v.(int) != 1 {
		t.Fatalf("first get: v=%v stale=%v err=%v", v, stale, err)
	}

	// Within the TTL the cached value is served without calling out.
	*now = now.Add(500 * time.Millisecond)
	v, _, _ = s.Get(ctx, "BTCUSDT", KindPrice, refresh)
	if v.(int) != 1 || calls != 1 {
		t.Errorf("fresh slot refetched: v=%v calls=%d", v, calls)
	}

	// Past the TTL it refreshes.
	*now = now.Add(time.Second)
	v, _, _ = s.Get(ctx, "BTCUSDT", KindPrice, refresh)
	if v.(int) != 2 || calls != 2 {
		t.Errorf("expired slot not refreshed: v=%v calls=%d", v, calls)
	}
}

func TestSchedulerSlotsAreIndependent(t *testing.T) {
	s, _ := newTestScheduler(t)
	ctx := context.Background()

	calls := map[string]int{}
	get := func(symbol string, kind DataKind) {
		s.Get(ctx, symbol, kind, func(ctx context.Context) (any, error) {
			calls[key(symbol, kind)]++
			return 1, nil
		})
	}

	get("BTCUSDT", KindPrice)
	get("BTCUSDT", KindOI)
	get("ETHUSDT", KindPrice)

	for k, n := range calls {
		if n != 1 {
			t.Errorf("slot %s refreshed %d times, want 1", k, n)
		}
	}
	if len(calls) != 3 {
		t.Errorf("expected 3 independent slots, got %d", len(calls))
	}
}

func TestSchedulerServesLastValueOnFailure(t *testing.T) {
	s, now := newTestScheduler(t)
	ctx := context.Background()

	ok := func(ctx context.Context) (any, error) { return "value", nil }
	fail := func(ctx context.Context) (any, error) { return nil, errors.New("exchange down") }

	if _, _, err := s.Get(ctx, "BTCUSDT", KindPrice, ok); err != nil {
		t.Fatalf("seed fetch failed: %v", err)
	}

	// Expired but under the ceiling: last value served, not yet stale.
	*now = now.Add(2 * time.Second)
	v, stale, err := s.Get(ctx, "BTCUSDT", KindPrice, fail)
	if err != nil || v.(string) != "value" || stale {
		t.Errorf("under ceiling: v=%v stale=%v err=%v", v, stale, err)
	}

	// Past the ceiling the flag goes up but the value still flows.
	*now = now.Add(10 * time.Second)
	v, stale, err = s.Get(ctx, "BTCUSDT", KindPrice, fail)
	if err != nil || v.(string) != "value" || !stale {
		t.Errorf("past ceiling: v=%v stale=%v err=%v, want stale", v, stale, err)
	}
}

func TestSchedulerErrorWithoutCache(t *testing.T) {
	s, _ := newTestScheduler(t)

	wantErr := errors.New("exchange down")
	_, _, err := s.Get(context.Background(), "BTCUSDT", KindPrice, func(ctx context.Context) (any, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want the refresh error to surface", err)
	}
}

func TestSchedulerRetriesOnce(t *testing.T) {
	s, _ := newTestScheduler(t)

	calls := 0
	v, _, err := s.Get(context.Background(), "BTCUSDT", KindPrice, func(ctx context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient")
		}
		return "recovered", nil
	})
	if err != nil || v.(string) != "recovered" {
		t.Fatalf("v=%v err=%v", v, err)
	}
	if calls != 2 {
		t.Errorf("refresh called %d times, want 2 (one retry)", calls)
	}
}

func TestSchedulerJitterBounded(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.JitterFrac = 0.5
	s := NewScheduler(cfg, zap.NewNop())

	ttl := s.ttls[KindPrice]
	s.store("BTCUSDT", KindPrice, 1)

	e := s.entries[key("BTCUSDT", KindPrice)]
	lifetime := e.validUntil.Sub(e.fetchedAt)
	if lifetime < ttl || lifetime > ttl+ttl/2 {
		t.Errorf("entry lifetime %v outside [ttl, 1.5*ttl] for ttl %v", lifetime, ttl)
	}

	// The jitter is rolled once per slot, then reused on every restore.
	first := e.jitter
	s.store("BTCUSDT", KindPrice, 2)
	if e.jitter != first {
		t.Errorf("jitter changed across stores: %v -> %v", first, e.jitter)
	}
}

func TestSchedulerIsStale(t *testing.T) {
	s, now := newTestScheduler(t)
	ctx := context.Background()

	if !s.IsStale("BTCUSDT", KindPrice) {
		t.Error("a never-filled slot is stale by definition")
	}

	refresh := func(ctx context.Context) (any, error) { return 1, nil }
	s.Get(ctx, "BTCUSDT", KindPrice, refresh)
	if s.IsStale("BTCUSDT", KindPrice) {
		t.Error("freshly filled slot reported stale")
	}

	*now = now.Add(6 * time.Second) // past the 5s ceiling
	if !s.IsStale("BTCUSDT", KindPrice) {
		t.Error("slot past the ceiling must report stale")
	}
}

func TestSchedulerInvalidate(t *testing.T) {
	s, _ := newTestScheduler(t)
	ctx := context.Background()

	calls := 0
	refresh := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}

	s.Get(ctx, "BTCUSDT", KindPrice, refresh)
	s.Invalidate("BTCUSDT", KindPrice)
	v, _, _ := s.Get(ctx, "BTCUSDT", KindPrice, refresh)
	if v.(int) != 2 || calls != 2 {
		t.Errorf("invalidated slot not refreshed: v=%v calls=%d", v, calls)
	}
}
