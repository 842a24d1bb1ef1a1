package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vitos/liquidation_hunter/internal/domain"
	"github.com/vitos/liquidation_hunter/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	router  *http.ServeMux
	server  *http.Server
	engine  *usecase.Engine
	journal domain.SignalJournal
	logger  *zap.Logger
}

func NewServer(
	port int,
	engine *usecase.Engine,
	journal domain.SignalJournal,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:  http.NewServeMux(),
		engine:  engine,
		journal: journal,
		logger:  logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Heatmap
	s.router.HandleFunc("GET /api/heatmap/{symbol}", s.handleHeatmap)

	// Signals
	s.router.HandleFunc("GET /api/signal/{symbol}", s.handleSignal)
	s.router.HandleFunc("GET /api/signals/batch", s.handleSignalsBatch)

	// History
	s.router.HandleFunc("GET /api/history/signals", s.handleSignalHistory)
	s.router.HandleFunc("GET /api/history/generations", s.handleGenerationHistory)

	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
