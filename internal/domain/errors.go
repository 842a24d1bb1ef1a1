package domain

import "errors"

var (
	// ErrNoPrice means no current price is known for the symbol. The signal
	// generator refuses to run without one; it is never defaulted.
	ErrNoPrice = errors.New("no current price for symbol")

	// ErrNoData means OI/event data is missing or empty for the symbol.
	ErrNoData = errors.New("no market data for symbol")

	// ErrInvalidConfig is returned at load time for bad configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrOutOfOrder means a feed update is older than the one already held.
	ErrOutOfOrder = errors.New("out-of-order update rejected")
)
