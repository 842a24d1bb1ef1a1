package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vitos/liquidation_hunter/internal/config"
	"github.com/vitos/liquidation_hunter/internal/domain"
	"go.uber.org/zap"
)

// Engine wires the scheduler, market data source, level distributor, cluster
// builder, store and signal generator into the per-symbol operations the web
// layer consumes. One logical engine instance per process.
type Engine struct {
	market      domain.MarketData
	scheduler   *Scheduler
	distributor *LevelDistributor
	builder     *ClusterBuilder
	store       *ClusterStore
	signals     *SignalGenerator
	journal     domain.SignalJournal // optional
	buffer      *EventBuffer
	mode        string
	symbols     []string
	logger      *zap.Logger

	mu          sync.Mutex
	lastPriceAt map[string]time.Time // feed ordering guard
}

func NewEngine(cfg *config.Config, market domain.MarketData, journal domain.SignalJournal, logger *zap.Logger) *Engine {
	e := &Engine{
		market:      market,
		scheduler:   NewScheduler(cfg.Scheduler, logger),
		distributor: NewLevelDistributor(cfg.Engine),
		builder:     NewClusterBuilder(cfg.Engine),
		store:       NewClusterStore(time.Duration(cfg.Scheduler.StaleCeilingMs) * time.Millisecond),
		signals:     NewSignalGenerator(cfg.Engine),
		journal:     journal,
		buffer:      NewEventBuffer(cfg.Engine.EventBufferSize),
		mode:        cfg.Mode,
		symbols:     cfg.Symbols,
		logger:      logger,
		lastPriceAt: make(map[string]time.Time),
	}
	if cfg.Mode == config.ModeReactive {
		market.OnLiquidation(e.ProcessLiquidation)
	}
	return e
}

// ProcessLiquidation ingests one event from the live stream. The stream is
// unordered and at-least-once; duplicates slightly overweight a bucket and
// are accepted as an approximation.
func (e *Engine) ProcessLiquidation(ev domain.RawLiquidationEvent) {
	if ev.Symbol == "" || ev.Price <= 0 || ev.Notional <= 0 {
		return
	}
	e.buffer.Append(ev)
}

// Price returns the freshest known price for a symbol.
func (e *Engine) Price(ctx context.Context, symbol string) (*domain.PriceSnapshot, bool, error) {
	v, stale, err := e.scheduler.Get(ctx, symbol, KindPrice, func(ctx context.Context) (any, error) {
		snap, err := e.market.GetCurrentPrice(ctx, symbol)
		if err != nil {
			return nil, err
		}
		return snap, e.acceptPrice(snap)
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*domain.PriceSnapshot), stale, nil
}

// acceptPrice rejects a feed update older than the one already held instead
// of silently overwriting a newer value.
func (e *Engine) acceptPrice(snap *domain.PriceSnapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.lastPriceAt[snap.Symbol]; ok && snap.Timestamp.Before(last) {
		return fmt.Errorf("%s: %w", snap.Symbol, domain.ErrOutOfOrder)
	}
	e.lastPriceAt[snap.Symbol] = snap.Timestamp
	return nil
}

// Clusters returns the symbol's latest generation, strength-descending,
// rebuilding it first if its cache slot expired. The bool reports staleness
// past the hard ceiling.
func (e *Engine) Clusters(ctx context.Context, symbol string) ([]*domain.Cluster, bool, error) {
	price, priceStale, err := e.Price(ctx, symbol)
	if err != nil {
		return nil, false, err
	}

	// Transition active flags on the current generation before any rebuild:
	// a zone the price has passed through is consumed, not a magnet. A
	// consumed zone also expires the cluster slot so the rebuild happens
	// now instead of the crossed generation lingering until its TTL.
	if n := e.store.ObservePrice(symbol, price.Price); n > 0 {
		e.scheduler.Invalidate(symbol, KindClusters)
	}

	_, genStale, err := e.scheduler.Get(ctx, symbol, KindClusters, func(ctx context.Context) (any, error) {
		return e.rebuild(ctx, symbol, price)
	})
	if err != nil {
		return nil, false, err
	}
	return e.store.StrengthSorted(symbol), priceStale || genStale, nil
}

// rebuild runs one wholesale cluster pass for the symbol.
func (e *Engine) rebuild(ctx context.Context, symbol string, price *domain.PriceSnapshot) (*domain.Generation, error) {
	var levels []domain.LiquidationLevel
	switch e.mode {
	case config.ModeReactive:
		events := e.buffer.Snapshot(symbol)
		if len(events) == 0 {
			return nil, fmt.Errorf("%s: %w", symbol, domain.ErrNoData)
		}
		levels = e.distributor.FromEvents(events, time.Now())
	default:
		v, _, err := e.scheduler.Get(ctx, symbol, KindOI, func(ctx context.Context) (any, error) {
			return e.market.GetOpenInterest(ctx, symbol)
		})
		if err != nil {
			return nil, err
		}
		levels = e.distributor.FromOpenInterest(price, v.(*domain.OISnapshot))
	}

	gen := e.builder.Build(symbol, levels, price.Price, time.Now())
	e.store.Put(gen)

	if e.journal != nil {
		if err := e.journal.SaveGeneration(ctx, gen); err != nil {
			e.logger.Warn("journal write failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	return gen, nil
}

// Signal derives the symbol's current signal from the latest generation.
// Missing data degrades to NEUTRAL at the symbol boundary; the generator
// itself is never run against a defaulted price.
func (e *Engine) Signal(ctx context.Context, symbol string) (*domain.Signal, bool, error) {
	clusters, stale, err := e.Clusters(ctx, symbol)
	if err != nil {
		e.logger.Warn("signal degraded to neutral", zap.String("symbol", symbol), zap.Error(err))
		return domain.Neutral(symbol, err.Error(), time.Now()), false, nil
	}
	price, _, err := e.Price(ctx, symbol)
	if err != nil {
		return domain.Neutral(symbol, err.Error(), time.Now()), false, nil
	}

	sig, err := e.signals.Generate(symbol, price.Price, clusters)
	if err != nil {
		return nil, false, err
	}
	if e.journal != nil && sig.Direction != domain.DirectionNeutral {
		if err := e.journal.SaveSignal(ctx, sig); err != nil {
			e.logger.Warn("journal write failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	return sig, stale, nil
}

// BatchEntry is one symbol's payload in a batch response.
type BatchEntry struct {
	Symbol   string            `json:"symbol"`
	Signal   *domain.Signal    `json:"signal"`
	Clusters []*domain.Cluster `json:"clusters,omitempty"`
	Stale    bool              `json:"stale,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Batch evaluates a fixed symbol set in one call. Symbols run in parallel,
// serialized per symbol by the scheduler; a failure or NEUTRAL for one never
// blocks or corrupts the others.
func (e *Engine) Batch(ctx context.Context, symbols []string) []*BatchEntry {
	out := make([]*BatchEntry, len(symbols))
	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			entry := &BatchEntry{Symbol: symbol}
			sig, stale, err := e.Signal(ctx, symbol)
			if err != nil {
				entry.Signal = domain.Neutral(symbol, err.Error(), time.Now())
				entry.Error = err.Error()
			} else {
				entry.Signal = sig
				entry.Stale = stale
				entry.Clusters = e.store.StrengthSorted(symbol)
			}
			out[i] = entry
		}(i, symbol)
	}
	wg.Wait()
	return out
}

// RecomputeAll refreshes every configured symbol once; the cmd layer drives
// it on the recompute cadence.
func (e *Engine) RecomputeAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, symbol := range e.symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			if _, _, err := e.Clusters(ctx, symbol); err != nil {
				e.logger.Warn("recompute failed", zap.String("symbol", symbol), zap.Error(err))
			}
		}(symbol)
	}
	wg.Wait()
}

// Symbols returns the configured symbol set. Always a copy; callers never
// alias the engine's own slice.
func (e *Engine) Symbols() []string {
	out := make([]string, len(e.symbols))
	copy(out, e.symbols)
	return out
}

// EventCount reports buffered reactive events for a symbol.
func (e *Engine) EventCount(symbol string) int {
	return e.buffer.Len(symbol)
}

// ClustersStale reports whether the symbol's cluster slot is older than the
// hard ceiling, for operator visibility.
func (e *Engine) ClustersStale(symbol string) bool {
	return e.scheduler.IsStale(symbol, KindClusters)
}

// Mode reports the configured level source.
func (e *Engine) Mode() string {
	return e.mode
}
