package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/liquidation_hunter/internal/domain"
)

// SQLiteJournal is the write-behind audit store for signals and cluster
// generations. It implements domain.SignalJournal.
type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	journal := &SQLiteJournal{db: db}
	if err := journal.initSchema(); err != nil {
		return nil, err
	}

	return journal, nil
}

func (s *SQLiteJournal) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			direction TEXT NOT NULL,
			entry REAL,
			stop_loss REAL,
			take_profit REAL,
			risk_reward REAL,
			confidence REAL NOT NULL,
			cluster_json TEXT,
			reason TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_signals_symbol ON signals(symbol, created_at);`,
		`CREATE TABLE IF NOT EXISTS cluster_generations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			price REAL NOT NULL,
			clusters_json TEXT NOT NULL,
			built_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_generations_symbol ON cluster_generations(symbol, built_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}

// SignalJournal Implementation

func (s *SQLiteJournal) SaveSignal(ctx context.Context, signal *domain.Signal) error {
	var clusterJSON sql.NullString
	if signal.Cluster != nil {
		data, err := json.Marshal(signal.Cluster)
		if err != nil {
			return err
		}
		clusterJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `INSERT INTO signals (symbol, direction, entry, stop_loss, take_profit, risk_reward, confidence, cluster_json, reason, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		signal.Symbol, string(signal.Direction),
		nullFloat(signal.Entry), nullFloat(signal.StopLoss), nullFloat(signal.TakeProfit), nullFloat(signal.RiskReward),
		signal.Confidence, clusterJSON, signal.Reason, signal.CreatedAt)
	return err
}

func (s *SQLiteJournal) ListSignals(ctx context.Context, symbol string, limit int) ([]*domain.Signal, error) {
	query := `SELECT symbol, direction, entry, stop_loss, take_profit, risk_reward, confidence, cluster_json, reason, created_at
			  FROM signals WHERE symbol = ? ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []*domain.Signal
	for rows.Next() {
		var sig domain.Signal
		var direction string
		var entry, stopLoss, takeProfit, riskReward sql.NullFloat64
		var clusterJSON sql.NullString
		if err := rows.Scan(&sig.Symbol, &direction, &entry, &stopLoss, &takeProfit, &riskReward,
			&sig.Confidence, &clusterJSON, &sig.Reason, &sig.CreatedAt); err != nil {
			return nil, err
		}
		sig.Direction = domain.Direction(direction)
		sig.Entry = floatPtr(entry)
		sig.StopLoss = floatPtr(stopLoss)
		sig.TakeProfit = floatPtr(takeProfit)
		sig.RiskReward = floatPtr(riskReward)
		if clusterJSON.Valid {
			var c domain.Cluster
			if err := json.Unmarshal([]byte(clusterJSON.String), &c); err == nil {
				sig.Cluster = &c
			}
		}
		signals = append(signals, &sig)
	}
	return signals, rows.Err()
}

func (s *SQLiteJournal) SaveGeneration(ctx context.Context, gen *domain.Generation) error {
	data, err := json.Marshal(gen.Clusters)
	if err != nil {
		return err
	}
	query := `INSERT INTO cluster_generations (symbol, price, clusters_json, built_at) VALUES (?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query, gen.Symbol, gen.Price, string(data), gen.BuiltAt)
	return err
}

func (s *SQLiteJournal) ListGenerations(ctx context.Context, symbol string, limit int) ([]*domain.Generation, error) {
	query := `SELECT symbol, price, clusters_json, built_at FROM cluster_generations
			  WHERE symbol = ? ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var generations []*domain.Generation
	for rows.Next() {
		var gen domain.Generation
		var clustersJSON string
		if err := rows.Scan(&gen.Symbol, &gen.Price, &clustersJSON, &gen.BuiltAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(clustersJSON), &gen.Clusters); err != nil {
			return nil, err
		}
		generations = append(generations, &gen)
	}
	return generations, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
