package config

import (
	"fmt"
	"os"

	"github.com/vitos/liquidation_hunter/internal/domain"
	"gopkg.in/yaml.v3"
)

// Mode selects how liquidation levels are produced.
const (
	ModePredictive = "predictive" // allocate aggregate OI across leverage tiers
	ModeReactive   = "reactive"   // cluster raw liquidation events from the stream
)

type Config struct {
	Exchange struct {
		RESTEndpoint string `yaml:"rest_endpoint"`
		WSEndpoint   string `yaml:"ws_endpoint"`
	} `yaml:"exchange"`

	Symbols []string `yaml:"symbols"`
	Mode    string   `yaml:"mode"`

	Engine    EngineConfig    `yaml:"engine"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
}

// EngineConfig carries the clustering and signal thresholds.
// Window/decay values are fractions; *_pct values are percent units (3.0 = 3%).
type EngineConfig struct {
	LeverageTiers       []float64 `yaml:"leverage_tiers"`        // e.g. [100, 50, 25, 10, 5]
	BucketWindowPct     float64   `yaml:"bucket_window_pct"`     // merge window vs running centroid, fraction (0.005 = 0.5%)
	StrengthK           float64   `yaml:"strength_k"`            // saturation constant in min(1, sqrt(frac*k))
	MinClusterMembers   int       `yaml:"min_cluster_members"`   // noise rejection
	MinClusterWeight    float64   `yaml:"min_cluster_weight"`    // noise rejection, USD
	MaxLevelDistancePct float64   `yaml:"max_level_distance_pct"` // drop raw levels beyond this % of price
	MinStrength         float64   `yaml:"min_strength"`
	MaxDistancePct      float64   `yaml:"max_distance_pct"`
	MinTakeProfitPct    float64   `yaml:"min_take_profit_pct"`
	StopLossPct         float64   `yaml:"stop_loss_pct"`
	TakeProfitOffsetPct float64   `yaml:"take_profit_offset_pct"` // target buffer just beyond the cluster
	DecayMinutes        float64   `yaml:"decay_minutes"`          // reactive weight e-folding constant
	EventBufferSize     int       `yaml:"event_buffer_size"`
}

type SchedulerConfig struct {
	PriceTTLMs       int64   `yaml:"price_ttl_ms"`
	OITTLMs          int64   `yaml:"oi_ttl_ms"`
	ClusterTTLMs     int64   `yaml:"cluster_ttl_ms"`
	JitterFrac       float64 `yaml:"jitter_frac"` // fraction of the TTL, added once per entry
	RatePerSec       float64 `yaml:"rate_per_sec"`
	Burst            int     `yaml:"burst"`
	RequestTimeoutMs int64   `yaml:"request_timeout_ms"`
	StaleCeilingMs   int64   `yaml:"stale_ceiling_ms"`
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Engine.LeverageTiers) == 0 {
		c.Engine.LeverageTiers = []float64{100, 50, 25, 10, 5}
	}
	if c.Engine.BucketWindowPct == 0 {
		c.Engine.BucketWindowPct = 0.005
	}
	if c.Engine.StrengthK == 0 {
		c.Engine.StrengthK = 3.0
	}
	if c.Engine.MaxLevelDistancePct == 0 {
		c.Engine.MaxLevelDistancePct = 10.0
	}
	if c.Engine.MinStrength == 0 {
		c.Engine.MinStrength = 0.6
	}
	if c.Engine.MaxDistancePct == 0 {
		c.Engine.MaxDistancePct = 3.0
	}
	if c.Engine.MinTakeProfitPct == 0 {
		c.Engine.MinTakeProfitPct = 0.5
	}
	if c.Engine.StopLossPct == 0 {
		c.Engine.StopLossPct = 2.0
	}
	if c.Engine.TakeProfitOffsetPct == 0 {
		c.Engine.TakeProfitOffsetPct = 0.5
	}
	if c.Engine.DecayMinutes == 0 {
		c.Engine.DecayMinutes = 60
	}
	if c.Engine.EventBufferSize == 0 {
		c.Engine.EventBufferSize = 10000
	}
	if c.Mode == "" {
		c.Mode = ModePredictive
	}
	if c.Scheduler.PriceTTLMs == 0 {
		c.Scheduler.PriceTTLMs = 5000
	}
	if c.Scheduler.OITTLMs == 0 {
		c.Scheduler.OITTLMs = 15000
	}
	if c.Scheduler.ClusterTTLMs == 0 {
		c.Scheduler.ClusterTTLMs = 3000
	}
	if c.Scheduler.JitterFrac == 0 {
		c.Scheduler.JitterFrac = 0.2
	}
	if c.Scheduler.RatePerSec == 0 {
		c.Scheduler.RatePerSec = 10
	}
	if c.Scheduler.Burst == 0 {
		c.Scheduler.Burst = 5
	}
	if c.Scheduler.RequestTimeoutMs == 0 {
		c.Scheduler.RequestTimeoutMs = 10000
	}
	if c.Scheduler.StaleCeilingMs == 0 {
		c.Scheduler.StaleCeilingMs = 120000
	}
}

// Validate rejects invalid configuration at load time, never at request time.
func (c *Config) Validate() error {
	if c.Mode != ModePredictive && c.Mode != ModeReactive {
		return fmt.Errorf("%w: mode %q", domain.ErrInvalidConfig, c.Mode)
	}
	for _, tier := range c.Engine.LeverageTiers {
		if tier <= 1 {
			return fmt.Errorf("%w: leverage tier %.2f must be > 1", domain.ErrInvalidConfig, tier)
		}
	}
	if c.Engine.BucketWindowPct <= 0 {
		return fmt.Errorf("%w: bucket_window_pct must be positive", domain.ErrInvalidConfig)
	}
	if c.Engine.StrengthK <= 0 {
		return fmt.Errorf("%w: strength_k must be positive", domain.ErrInvalidConfig)
	}
	if c.Engine.MinStrength < 0 || c.Engine.MinStrength > 1 {
		return fmt.Errorf("%w: min_strength must be in [0,1]", domain.ErrInvalidConfig)
	}
	if c.Engine.MaxDistancePct < 0 || c.Engine.MinTakeProfitPct < 0 ||
		c.Engine.StopLossPct < 0 || c.Engine.TakeProfitOffsetPct < 0 ||
		c.Engine.MaxLevelDistancePct < 0 || c.Engine.MinClusterWeight < 0 {
		return fmt.Errorf("%w: thresholds must not be negative", domain.ErrInvalidConfig)
	}
	if c.Engine.MinClusterMembers < 0 {
		return fmt.Errorf("%w: min_cluster_members must not be negative", domain.ErrInvalidConfig)
	}
	if c.Engine.DecayMinutes <= 0 {
		return fmt.Errorf("%w: decay_minutes must be positive", domain.ErrInvalidConfig)
	}
	if c.Engine.EventBufferSize <= 0 {
		return fmt.Errorf("%w: event_buffer_size must be positive", domain.ErrInvalidConfig)
	}
	if c.Scheduler.JitterFrac < 0 || c.Scheduler.JitterFrac > 1 {
		return fmt.Errorf("%w: jitter_frac must be in [0,1]", domain.ErrInvalidConfig)
	}
	if c.Scheduler.RatePerSec <= 0 || c.Scheduler.Burst <= 0 {
		return fmt.Errorf("%w: rate limiter settings must be positive", domain.ErrInvalidConfig)
	}
	if c.Scheduler.PriceTTLMs <= 0 || c.Scheduler.OITTLMs <= 0 || c.Scheduler.ClusterTTLMs <= 0 {
		return fmt.Errorf("%w: TTLs must be positive", domain.ErrInvalidConfig)
	}
	if c.Scheduler.RequestTimeoutMs <= 0 || c.Scheduler.StaleCeilingMs <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", domain.ErrInvalidConfig)
	}
	return nil
}
