package usecase

import (
	"sort"
	"sync"
	"time"

	"github.com/vitos/liquidation_hunter/internal/domain"
)

// ClusterStore holds the latest cluster generation per symbol plus staleness
// metadata. Generations are replaced wholesale; within a generation only the
// Active flag may transition, and only from true to false.
type ClusterStore struct {
	mu          sync.RWMutex
	generations map[string]*domain.Generation
	lastPrice   map[string]float64 // last price observed against each generation
	ceiling     time.Duration
	timeNow     func() time.Time // for testing
}

func NewClusterStore(staleCeiling time.Duration) *ClusterStore {
	return &ClusterStore{
		generations: make(map[string]*domain.Generation),
		lastPrice:   make(map[string]float64),
		ceiling:     staleCeiling,
		timeNow:     time.Now,
	}
}

// Put replaces the symbol's generation wholesale.
func (s *ClusterStore) Put(gen *domain.Generation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[gen.Symbol] = gen
	s.lastPrice[gen.Symbol] = gen.Price
}

// Get returns the latest generation and whether it is older than the hard
// staleness ceiling. The second return is false when no generation exists.
func (s *ClusterStore) Get(symbol string) (gen *domain.Generation, stale bool, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gen, ok = s.generations[symbol]
	if !ok {
		return nil, false, false
	}
	return gen, s.timeNow().Sub(gen.BuiltAt) > s.ceiling, true
}

// ObservePrice marks clusters whose centroid the price has crossed since the
// previous observation and reports how many it deactivated. Once inactive a
// cluster never reverts; a new cluster must form if price returns to the zone.
func (s *ClusterStore) ObservePrice(symbol string, price float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen, ok := s.generations[symbol]
	if !ok {
		return 0
	}
	prev, seen := s.lastPrice[symbol]
	s.lastPrice[symbol] = price
	if !seen || prev == price {
		return 0
	}
	deactivated := 0
	for _, c := range gen.Clusters {
		if !c.Active {
			continue
		}
		crossedUp := prev < c.Price && price >= c.Price
		crossedDown := prev > c.Price && price <= c.Price
		if crossedUp || crossedDown {
			c.Active = false
			deactivated++
		}
	}
	return deactivated
}

// StrengthSorted returns the generation's clusters strength-descending,
// ties broken by distance then price for a stable listing.
func (s *ClusterStore) StrengthSorted(symbol string) []*domain.Cluster {
	s.mu.RLock()
	gen, ok := s.generations[symbol]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	out := make([]*domain.Cluster, len(gen.Clusters))
	copy(out, gen.Clusters)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		if out[i].DistancePct != out[j].DistancePct {
			return out[i].DistancePct < out[j].DistancePct
		}
		return out[i].Price < out[j].Price
	})
	return out
}
