package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitos/liquidation_hunter/internal/config"
	"github.com/vitos/liquidation_hunter/internal/domain"
	"github.com/vitos/liquidation_hunter/internal/infrastructure/exchange"
	"github.com/vitos/liquidation_hunter/internal/infrastructure/logger"
	"github.com/vitos/liquidation_hunter/internal/infrastructure/storage"
	"github.com/vitos/liquidation_hunter/internal/usecase"
	"github.com/vitos/liquidation_hunter/internal/web"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Journal (optional)
	var journal domain.SignalJournal
	if cfg.Storage.Path != "" {
		sqliteJournal, err := storage.NewSQLiteJournal(cfg.Storage.Path)
		if err != nil {
			log.Fatal("Failed to init sqlite", zap.Error(err))
		}
		defer sqliteJournal.Close()
		journal = sqliteJournal
	}

	// 4. Init Exchange
	binance := exchange.NewBinanceAdapter(cfg.Exchange.RESTEndpoint, cfg.Exchange.WSEndpoint, log)

	// 5. Init Engine
	engine := usecase.NewEngine(cfg, binance, journal, log)

	if cfg.Mode == config.ModeReactive {
		if err := binance.Subscribe(cfg.Symbols); err != nil {
			log.Fatal("Failed to subscribe to liquidation streams", zap.Error(err))
		}
		defer binance.Close()
		log.Info("Subscribed to liquidation streams", zap.Strings("symbols", cfg.Symbols))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// The OS signal is delivered once; only main receives from stop, and
	// background goroutines quit via done.
	done := make(chan struct{})

	// 6. Background recompute keeps caches warm between requests
	go runRecompute(engine, time.Duration(cfg.Scheduler.ClusterTTLMs)*time.Millisecond, done)

	// 7. Init Web Server
	port := cfg.Server.Port
	if port == 0 {
		port = 8080 // Default
	}
	server := web.NewServer(port, engine, journal, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 8. Wait for Shutdown
	<-stop
	close(done)

	log.Info("Shutting down...")
	server.Shutdown(context.Background())
}

func runRecompute(engine *usecase.Engine, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		engine.RecomputeAll(context.Background())
		select {
		case <-ticker.C:
			continue
		case <-done:
			return
		}
	}
}
