package usecase_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/vitos/liquidation_hunter/internal/config"
	"github.com/vitos/liquidation_hunter/internal/domain"
	"github.com/vitos/liquidation_hunter/internal/usecase"
)

func builderConfig() config.EngineConfig {
	return config.EngineConfig{
		BucketWindowPct:     0.005,
		StrengthK:           3.0,
		MinClusterMembers:   1,
		MaxLevelDistancePct: 10.0,
	}
}

func level(price, weight float64, side domain.Side) domain.LiquidationLevel {
	return domain.LiquidationLevel{Symbol: "BTCUSDT", Price: price, Weight: weight, Side: side}
}

func TestBuildMergesWithinWindow(t *testing.T) {
	b := usecase.NewClusterBuilder(builderConfig())
	now := time.Now()

	levels := []domain.LiquidationLevel{
		level(100.0, 1, domain.SideLong),
		level(100.4, 3, domain.SideLong),
		level(102.0, 2, domain.SideShort), // 1.6% away, outside the 0.5% window
	}

	gen := b.Build("BTCUSDT", levels, 101.0, now)
	if len(gen.Clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(gen.Clusters))
	}

	// Weighted centroid: (100*1 + 100.4*3) / 4 = 100.3
	first := gen.Clusters[0]
	if !floatEquals(first.Price, 100.3) {
		t.Errorf("centroid = %f, want 100.3", first.Price)
	}
	if first.MemberCount != 2 {
		t.Errorf("member count = %d, want 2", first.MemberCount)
	}
	if !floatEquals(first.TotalWeight, 4.0) {
		t.Errorf("total weight = %f, want 4", first.TotalWeight)
	}
	if !first.Active {
		t.Error("new cluster must start active")
	}

	second := gen.Clusters[1]
	if !floatEquals(second.Price, 102.0) {
		t.Errorf("second centroid = %f, want 102", second.Price)
	}
	if second.Side != domain.SideShort {
		t.Errorf("second side = %s, want short", second.Side)
	}
}

func TestBuildDeterministic(t *testing.T) {
	b := usecase.NewClusterBuilder(builderConfig())
	now := time.Now()

	// Unsorted on purpose; the pass sorts by price first.
	levels := []domain.LiquidationLevel{
		level(102.0, 2, domain.SideShort),
		level(100.4, 3, domain.SideLong),
		level(100.0, 1, domain.SideLong),
	}

	a := b.Build("BTCUSDT", levels, 101.0, now)
	c := b.Build("BTCUSDT", levels, 101.0, now)
	if !reflect.DeepEqual(a, c) {
		t.Error("identical inputs must produce identical generations")
	}
}

func TestBuildFiltersUnusableLevels(t *testing.T) {
	b := usecase.NewClusterBuilder(builderConfig())
	now := time.Now()

	levels := []domain.LiquidationLevel{
		level(100.0, 0, domain.SideLong),   // zero weight
		level(100.0, -5, domain.SideLong),  // negative weight
		level(0, 10, domain.SideLong),      // no price
		level(200.0, 10, domain.SideShort), // ~98% away, beyond max distance
	}

	gen := b.Build("BTCUSDT", levels, 101.0, now)
	if len(gen.Clusters) != 0 {
		t.Fatalf("expected empty generation, got %d clusters", len(gen.Clusters))
	}
}

func TestBuildMinMembers(t *testing.T) {
	cfg := builderConfig()
	cfg.MinClusterMembers = 2
	b := usecase.NewClusterBuilder(cfg)

	levels := []domain.LiquidationLevel{
		level(100.0, 1, domain.SideLong),
		level(100.2, 1, domain.SideLong),
		level(102.0, 5, domain.SideShort), // lone level, dropped
	}

	gen := b.Build("BTCUSDT", levels, 101.0, time.Now())
	if len(gen.Clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(gen.Clusters))
	}
	if gen.Clusters[0].MemberCount != 2 {
		t.Errorf("member count = %d, want 2", gen.Clusters[0].MemberCount)
	}
}

func TestBuildDominantSide(t *testing.T) {
	b := usecase.NewClusterBuilder(builderConfig())

	levels := []domain.LiquidationLevel{
		level(100.0, 1, domain.SideLong),
		level(100.1, 2, domain.SideShort),
	}

	gen := b.Build("BTCUSDT", levels, 100.0, time.Now())
	if len(gen.Clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(gen.Clusters))
	}
	if gen.Clusters[0].Side != domain.SideShort {
		t.Errorf("dominant side = %s, want short", gen.Clusters[0].Side)
	}
}

func TestBuildStrength(t *testing.T) {
	b := usecase.NewClusterBuilder(builderConfig())

	// 12% of total weight with k=3 maps to sqrt(0.36) = 0.6;
	// the 88% bucket saturates at 1.0.
	levels := []domain.LiquidationLevel{
		level(100.0, 12, domain.SideLong),
		level(102.0, 88, domain.SideShort),
	}

	gen := b.Build("BTCUSDT", levels, 101.0, time.Now())
	if len(gen.Clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(gen.Clusters))
	}
	if !floatEquals(gen.Clusters[0].Strength, 0.6) {
		t.Errorf("strength = %f, want 0.6", gen.Clusters[0].Strength)
	}
	if !floatEquals(gen.Clusters[1].Strength, 1.0) {
		t.Errorf("strength = %f, want 1.0 (saturated)", gen.Clusters[1].Strength)
	}

	// A lone level owning all the weight reads as maximal.
	solo := b.Build("BTCUSDT", []domain.LiquidationLevel{level(100.0, 7, domain.SideLong)}, 100.0, time.Now())
	if !floatEquals(solo.Clusters[0].Strength, 1.0) {
		t.Errorf("solo strength = %f, want 1.0", solo.Clusters[0].Strength)
	}
}

func TestBuildStrengthMonotonic(t *testing.T) {
	b := usecase.NewClusterBuilder(builderConfig())

	// Growing one bucket's share of total weight, others fixed, never
	// shrinks its strength.
	strengthAt := func(w float64) float64 {
		gen := b.Build("BTCUSDT", []domain.LiquidationLevel{
			level(100.0, w, domain.SideLong),
			level(101.0, 50, domain.SideShort),
		}, 100.0, time.Now())
		return gen.Clusters[0].Strength
	}

	prev := 0.0
	for _, w := range []float64{1, 5, 10, 30, 100, 500} {
		s := strengthAt(w)
		if s < prev {
			t.Fatalf("strength dropped from %f to %f as weight grew to %f", prev, s, w)
		}
		prev = s
	}
}

func TestReactiveDuplicatesReinforceThenDecay(t *testing.T) {
	d := usecase.NewLevelDistributor(distributorConfig())
	b := usecase.NewClusterBuilder(builderConfig())
	now := time.Now()

	ev := domain.RawLiquidationEvent{
		Symbol: "BTCUSDT", Price: 100.5, Side: domain.SideShort,
		Notional: 1000, Timestamp: now,
	}
	single := b.Build("BTCUSDT", d.FromEvents([]domain.RawLiquidationEvent{ev}, now), 100, now)
	quad := b.Build("BTCUSDT", d.FromEvents([]domain.RawLiquidationEvent{ev, ev, ev, ev}, now), 100, now)

	if !floatEquals(quad.Clusters[0].TotalWeight, 4*single.Clusters[0].TotalWeight) {
		t.Errorf("duplicates must stack weight: single=%f quad=%f",
			single.Clusters[0].TotalWeight, quad.Clusters[0].TotalWeight)
	}

	// With no new events the zone fades on its own; one decay constant
	// later the stacked weight is down to ~37%.
	later := now.Add(60 * time.Minute)
	faded := b.Build("BTCUSDT", d.FromEvents([]domain.RawLiquidationEvent{ev, ev, ev, ev}, later), 100, later)
	if faded.Clusters[0].TotalWeight >= quad.Clusters[0].TotalWeight*0.4 {
		t.Errorf("weight did not decay: %f vs %f", faded.Clusters[0].TotalWeight, quad.Clusters[0].TotalWeight)
	}
}
