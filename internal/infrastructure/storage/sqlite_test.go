package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/liquidation_hunter/internal/domain"
	"github.com/vitos/liquidation_hunter/internal/infrastructure/storage"
)

func newJournal(t *testing.T) *storage.SQLiteJournal {
	t.Helper()
	j, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func ptr(v float64) *float64 { return &v }

func TestSignalRoundtrip(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()

	sig := &domain.Signal{
		Symbol:     "BTCUSDT",
		Direction:  domain.DirectionLong,
		Entry:      ptr(50000),
		StopLoss:   ptr(49000),
		TakeProfit: ptr(51000),
		RiskReward: ptr(1.0),
		Confidence: 0.8,
		Cluster:    &domain.Cluster{Symbol: "BTCUSDT", Price: 50800, Side: domain.SideShort, Strength: 0.8, Active: true},
		Reason:     "short liquidation cluster at 50800.0000 (strength 0.80, weight 120000)",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, j.SaveSignal(ctx, sig))

	got, err := j.ListSignals(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, domain.DirectionLong, got[0].Direction)
	assert.Equal(t, 50000.0, *got[0].Entry)
	assert.Equal(t, 0.8, got[0].Confidence)
	require.NotNil(t, got[0].Cluster)
	assert.Equal(t, 50800.0, got[0].Cluster.Price)
}

func TestNeutralSignalKeepsNilFields(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()

	require.NoError(t, j.SaveSignal(ctx, domain.Neutral("ETHUSDT", "no qualifying cluster on either side", time.Now().UTC())))

	got, err := j.ListSignals(ctx, "ETHUSDT", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, domain.DirectionNeutral, got[0].Direction)
	assert.Nil(t, got[0].Entry)
	assert.Nil(t, got[0].StopLoss)
	assert.Nil(t, got[0].TakeProfit)
	assert.Nil(t, got[0].RiskReward)
	assert.Nil(t, got[0].Cluster)
}

func TestListSignalsFiltersAndLimits(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, j.SaveSignal(ctx, domain.Neutral("BTCUSDT", "n", time.Now().UTC())))
	}
	require.NoError(t, j.SaveSignal(ctx, domain.Neutral("ETHUSDT", "n", time.Now().UTC())))

	got, err := j.ListSignals(ctx, "BTCUSDT", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	for _, s := range got {
		assert.Equal(t, "BTCUSDT", s.Symbol)
	}
}

func TestGenerationRoundtrip(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()

	gen := &domain.Generation{
		Symbol: "BTCUSDT",
		Price:  50000,
		Clusters: []*domain.Cluster{
			{Symbol: "BTCUSDT", Price: 50800, Side: domain.SideShort, Strength: 0.8, TotalWeight: 120000, MemberCount: 3, DistancePct: 1.6, Active: true},
			{Symbol: "BTCUSDT", Price: 49200, Side: domain.SideLong, Strength: 0.5, TotalWeight: 40000, MemberCount: 1, DistancePct: 1.6, Active: false},
		},
		BuiltAt: time.Now().UTC(),
	}
	require.NoError(t, j.SaveGeneration(ctx, gen))

	got, err := j.ListGenerations(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, 50000.0, got[0].Price)
	require.Len(t, got[0].Clusters, 2)
	assert.Equal(t, 50800.0, got[0].Clusters[0].Price)
	assert.False(t, got[0].Clusters[1].Active)
}
