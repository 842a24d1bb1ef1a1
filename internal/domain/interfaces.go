package domain

import "context"

// MarketData defines the upstream market-data source the engine reads from.
type MarketData interface {
	GetCurrentPrice(ctx context.Context, symbol string) (*PriceSnapshot, error)
	GetOpenInterest(ctx context.Context, symbol string) (*OISnapshot, error)
	OnLiquidation(callback func(event RawLiquidationEvent))
	Subscribe(symbols []string) error
}

// SignalJournal records emitted signals and cluster generations for audit.
// Write-behind only: the engine never reads its own state back from it.
type SignalJournal interface {
	SaveSignal(ctx context.Context, signal *Signal) error
	ListSignals(ctx context.Context, symbol string, limit int) ([]*Signal, error)
	SaveGeneration(ctx context.Context, gen *Generation) error
	ListGenerations(ctx context.Context, symbol string, limit int) ([]*Generation, error)
}
