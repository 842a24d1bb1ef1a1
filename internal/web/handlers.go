package web

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vitos/liquidation_hunter/internal/domain"
	"go.uber.org/zap"
)

type heatmapResponse struct {
	Symbol   string            `json:"symbol"`
	Price    float64           `json:"current_price"`
	Clusters []*domain.Cluster `json:"clusters"`
	Stale    bool              `json:"stale"`
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))

	minStrength := queryFloat(r, "min_strength", 0)
	maxDistance := queryFloat(r, "max_distance", 0)

	clusters, clustersStale, err := s.engine.Clusters(r.Context(), symbol)
	if err != nil {
		s.logger.Warn("Failed to build heatmap", zap.String("symbol", symbol), zap.Error(err))
		http.Error(w, "No cluster data for symbol", http.StatusNotFound)
		return
	}

	price, priceStale, err := s.engine.Price(r.Context(), symbol)
	if err != nil {
		http.Error(w, "No price for symbol", http.StatusNotFound)
		return
	}

	// Distances are re-derived from the price reported alongside the
	// clusters, not trusted from the rebuild pass; the price slot can be
	// newer than a still-fresh generation.
	filtered := make([]*domain.Cluster, 0, len(clusters))
	for _, c := range clusters {
		if c.Strength < minStrength {
			continue
		}
		distance := math.Abs(c.Price-price.Price) / price.Price * 100
		if maxDistance > 0 && distance > maxDistance {
			continue
		}
		cc := *c
		cc.DistancePct = distance
		filtered = append(filtered, &cc)
	}

	writeJSON(w, s.logger, heatmapResponse{
		Symbol:   symbol,
		Price:    price.Price,
		Clusters: filtered,
		Stale:    clustersStale || priceStale,
	})
}

type signalResponse struct {
	*domain.Signal
	Stale bool `json:"stale"`
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))

	signal, stale, err := s.engine.Signal(r.Context(), symbol)
	if err != nil {
		s.logger.Warn("Failed to generate signal", zap.String("symbol", symbol), zap.Error(err))
		http.Error(w, "Failed to generate signal", http.StatusInternalServerError)
		return
	}

	writeJSON(w, s.logger, signalResponse{Signal: signal, Stale: stale})
}

func (s *Server) handleSignalsBatch(w http.ResponseWriter, r *http.Request) {
	symbols := s.engine.Symbols()
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		symbols = nil
		for _, sym := range strings.Split(raw, ",") {
			if sym = strings.TrimSpace(strings.ToUpper(sym)); sym != "" {
				symbols = append(symbols, sym)
			}
		}
	}
	if len(symbols) == 0 {
		http.Error(w, "No symbols requested", http.StatusBadRequest)
		return
	}

	entries := s.engine.Batch(r.Context(), symbols)
	writeJSON(w, s.logger, entries)
}

func (s *Server) handleSignalHistory(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.Error(w, "History storage disabled", http.StatusNotFound)
		return
	}
	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
	if symbol == "" {
		http.Error(w, "Missing symbol", http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", 50)

	signals, err := s.journal.ListSignals(r.Context(), symbol, limit)
	if err != nil {
		s.logger.Error("Failed to list signals", zap.Error(err))
		http.Error(w, "Failed to list signals", http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.logger, signals)
}

func (s *Server) handleGenerationHistory(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.Error(w, "History storage disabled", http.StatusNotFound)
		return
	}
	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
	if symbol == "" {
		http.Error(w, "Missing symbol", http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", 20)

	generations, err := s.journal.ListGenerations(r.Context(), symbol, limit)
	if err != nil {
		s.logger.Error("Failed to list generations", zap.Error(err))
		http.Error(w, "Failed to list generations", http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.logger, generations)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	type symbolStatus struct {
		Symbol      string `json:"symbol"`
		EventsInBuf int    `json:"events_buffered"`
		Stale       bool   `json:"stale"`
	}

	symbols := s.engine.Symbols()
	states := make([]symbolStatus, 0, len(symbols))
	for _, sym := range symbols {
		states = append(states, symbolStatus{
			Symbol:      sym,
			EventsInBuf: s.engine.EventCount(sym),
			Stale:       s.engine.ClustersStale(sym),
		})
	}

	writeJSON(w, s.logger, map[string]any{
		"status":  "ok",
		"mode":    s.engine.Mode(),
		"symbols": states,
		"time":    time.Now().UTC(),
	})
}

func queryFloat(r *http.Request, name string, fallback float64) float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
