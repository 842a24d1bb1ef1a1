package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vitos/liquidation_hunter/internal/config"
	"github.com/vitos/liquidation_hunter/internal/infrastructure/exchange"
	"github.com/vitos/liquidation_hunter/internal/usecase"
	"go.uber.org/zap"
)

// One-shot cluster dump: fetch live price and open interest and print the
// clusters a rebuild would produce, plus the signal derived from them.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	symbol := flag.String("symbol", "BTCUSDT", "symbol to inspect")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	adapter := exchange.NewBinanceAdapter(cfg.Exchange.RESTEndpoint, cfg.Exchange.WSEndpoint, zap.NewNop())
	ctx := context.Background()

	price, err := adapter.GetCurrentPrice(ctx, *symbol)
	if err != nil {
		fmt.Printf("❌ Failed to get price: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Current Price (%s): %f\n", *symbol, price.Price)

	oi, err := adapter.GetOpenInterest(ctx, *symbol)
	if err != nil {
		fmt.Printf("❌ Failed to get open interest: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Open Interest: total=%.0f USD, long=%.0f, short=%.0f\n", oi.TotalOI, oi.LongOI, oi.ShortOI)

	distributor := usecase.NewLevelDistributor(cfg.Engine)
	builder := usecase.NewClusterBuilder(cfg.Engine)
	generator := usecase.NewSignalGenerator(cfg.Engine)

	levels := distributor.FromOpenInterest(price, oi)
	fmt.Printf("Distributed %d levels across tiers %v\n", len(levels), cfg.Engine.LeverageTiers)

	gen := builder.Build(*symbol, levels, price.Price, time.Now())
	fmt.Printf("Built %d clusters:\n", len(gen.Clusters))
	for _, c := range gen.Clusters {
		fmt.Printf("  %s @ %.2f  strength=%.3f  weight=%.0f  members=%d  dist=%.2f%%\n",
			c.Side, c.Price, c.Strength, c.TotalWeight, c.MemberCount, c.DistancePct)
	}

	signal, err := generator.Generate(*symbol, price.Price, gen.Clusters)
	if err != nil {
		fmt.Printf("❌ Failed to generate signal: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Signal: %s (%s)\n", signal.Direction, signal.Reason)
	if signal.Entry != nil {
		fmt.Printf("  entry=%.2f sl=%.2f tp=%.2f rr=%v confidence=%.3f\n",
			*signal.Entry, *signal.StopLoss, *signal.TakeProfit, deref(signal.RiskReward), signal.Confidence)
	}
}

func deref(v *float64) any {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}
