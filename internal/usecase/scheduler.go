package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/vitos/liquidation_hunter/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DataKind identifies one independently refreshed cache slot per symbol.
type DataKind string

const (
	KindPrice    DataKind = "price"
	KindOI       DataKind = "oi"
	KindClusters DataKind = "clusters"
)

// RefreshFunc produces a fresh value for one (symbol, kind) slot.
type RefreshFunc func(ctx context.Context) (any, error)

type cacheEntry struct {
	value      any
	fetchedAt  time.Time
	validUntil time.Time
	jitter     time.Duration // picked once at first cache, then kept
	hasJitter  bool
}

// Scheduler owns the per-(symbol, kind) expiry state. On access it serves the
// cached value while fresh and refreshes synchronously when stale; each cache
// entry has at most one writer at a time, and symbols proceed in parallel
// subject only to the shared token bucket on outbound calls.
type Scheduler struct {
	mu        sync.Mutex
	entries   map[string]*cacheEntry
	slotLocks map[string]*sync.Mutex

	ttls       map[DataKind]time.Duration
	jitterFrac float64
	limiter    *rate.Limiter
	timeout    time.Duration
	ceiling    time.Duration

	rng     *rand.Rand
	timeNow func() time.Time // for testing
	logger  *zap.Logger
}

func NewScheduler(cfg config.SchedulerConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		entries:   make(map[string]*cacheEntry),
		slotLocks: make(map[string]*sync.Mutex),
		ttls: map[DataKind]time.Duration{
			KindPrice:    time.Duration(cfg.PriceTTLMs) * time.Millisecond,
			KindOI:       time.Duration(cfg.OITTLMs) * time.Millisecond,
			KindClusters: time.Duration(cfg.ClusterTTLMs) * time.Millisecond,
		},
		jitterFrac: cfg.JitterFrac,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		timeout:    time.Duration(cfg.RequestTimeoutMs) * time.Millisecond,
		ceiling:    time.Duration(cfg.StaleCeilingMs) * time.Millisecond,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		timeNow:    time.Now,
		logger:     logger,
	}
}

// Get returns the cached value for (symbol, kind), refreshing it first when
// expired. On refresh failure the last value is served with stale=true if one
// exists, otherwise the error surfaces.
func (s *Scheduler) Get(ctx context.Context, symbol string, kind DataKind, refresh RefreshFunc) (value any, stale bool, err error) {
	if v, ok := s.fresh(symbol, kind); ok {
		return v, false, nil
	}

	lock := s.slotLock(symbol, kind)
	lock.Lock()
	defer lock.Unlock()

	// Another refresh may have filled the slot while we waited for the lock.
	if v, ok := s.fresh(symbol, kind); ok {
		return v, false, nil
	}

	v, err := s.refresh(ctx, kind, refresh)
	if err != nil {
		// Serve the last value rather than fail; the stale flag is raised
		// once it ages past the hard ceiling and the consumer decides.
		if prev, age, ok := s.last(symbol, kind); ok {
			s.logger.Warn("refresh failed, serving cached value",
				zap.String("symbol", symbol),
				zap.String("kind", string(kind)),
				zap.Duration("age", age),
				zap.Error(err))
			return prev, age > s.ceiling, nil
		}
		return nil, false, err
	}

	s.store(symbol, kind, v)
	return v, false, nil
}

// Invalidate expires the slot so the next Get refreshes it.
func (s *Scheduler) Invalidate(symbol string, kind DataKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key(symbol, kind)]; ok {
		e.validUntil = time.Time{}
	}
}

// IsStale reports whether the slot's value is older than the hard ceiling.
func (s *Scheduler) IsStale(symbol string, kind DataKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key(symbol, kind)]
	if !ok {
		return true
	}
	return s.timeNow().Sub(e.fetchedAt) > s.ceiling
}

// refresh runs the outbound call under the shared token bucket with a bounded
// timeout and at most one retry. Cluster recomputes are local CPU work and
// skip the bucket; their inputs were throttled when fetched.
func (s *Scheduler) refresh(ctx context.Context, kind DataKind, refresh RefreshFunc) (any, error) {
	attempts := 2
	var lastErr error
	for i := 0; i < attempts; i++ {
		if kind != KindClusters {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		v, err := refresh(callCtx)
		cancel()
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("refresh %s: %w", kind, lastErr)
}

func (s *Scheduler) fresh(symbol string, kind DataKind) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key(symbol, kind)]
	if !ok || s.timeNow().After(e.validUntil) {
		return nil, false
	}
	return e.value, true
}

// last returns the cached value regardless of freshness, with its age.
func (s *Scheduler) last(symbol string, kind DataKind) (any, time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key(symbol, kind)]
	if !ok {
		return nil, 0, false
	}
	return e.value, s.timeNow().Sub(e.fetchedAt), true
}

func (s *Scheduler) store(symbol string, kind DataKind, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(symbol, kind)
	e, ok := s.entries[k]
	if !ok {
		e = &cacheEntry{}
		s.entries[k] = e
	}
	// Jitter staggers per-symbol expiry so a shared TTL does not make every
	// symbol miss the cache in the same instant. Assigned once per slot.
	if !e.hasJitter {
		e.jitter = time.Duration(s.rng.Float64() * s.jitterFrac * float64(s.ttls[kind]))
		e.hasJitter = true
	}
	now := s.timeNow()
	e.value = v
	e.fetchedAt = now
	e.validUntil = now.Add(s.ttls[kind] + e.jitter)
}

// slotLock serializes refreshes of one (symbol, kind) cache entry. There is
// never more than one writer per entry; distinct entries, and distinct
// symbols, refresh in parallel.
func (s *Scheduler) slotLock(symbol string, kind DataKind) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(symbol, kind)
	l, ok := s.slotLocks[k]
	if !ok {
		l = &sync.Mutex{}
		s.slotLocks[k] = l
	}
	return l
}

func key(symbol string, kind DataKind) string {
	return symbol + "|" + string(kind)
}
