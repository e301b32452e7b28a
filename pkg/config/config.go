// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import (
	"time"

	"github.com/caarlos0/env"
	"github.com/rotisserie/eris"
)

type Config struct {
	ModeRulesPath string `env:"MODE_RULES_PATH" envDefault:"modes.yaml" envDocs:"path to the yaml file describing activity/mode rules"`

	ExpansionTickMs    int `env:"EXPANSION_TICK_MS"     envDefault:"5000"  envDocs:"interval of the range expansion scheduler tick"`
	ScanIntervalMs     int `env:"SCAN_INTERVAL_MS"      envDefault:"1000"  envDocs:"interval between two candidate matcher scans"`
	ReadyCheckWindowMs int `env:"READY_CHECK_WINDOW_MS" envDefault:"30000" envDocs:"time participants have to accept a proposed match"`
	TombstoneTTLMs     int `env:"TOMBSTONE_TTL_MS"      envDefault:"900000" envDocs:"how long retired tickets stay visible to status polls"`

	PriorityBump            int     `env:"PRIORITY_BUMP"              envDefault:"1"    envDocs:"priority added to tickets returned to the queue after a failed ready check"`
	DeclinePenaltyMs        int     `env:"DECLINE_PENALTY_MS"         envDefault:"10000" envDocs:"queue re-entry hold applied to a participant who declined (0 disables)"`
	SmurfThreshold          float64 `env:"SMURF_THRESHOLD"            envDefault:"0.7"  envDocs:"smurf score at and above which range expansion slows down"`
	SmurfStepFactor         float64 `env:"SMURF_STEP_FACTOR"          envDefault:"0.5"  envDocs:"multiplier applied to the expansion step of suspected smurfs"`
	MaxRatingStalenessMs    int     `env:"MAX_RATING_STALENESS_MS"    envDefault:"60000" envDocs:"rating data older than this is treated as unknown (0 disables)"`
	RatingCacheTTLMs        int     `env:"RATING_CACHE_TTL_MS"        envDefault:"10000" envDocs:"how long rating profiles are cached"`
	MaxProposalRetries      int     `env:"MAX_PROPOSAL_RETRIES"       envDefault:"3"    envDocs:"how many times a group is rebuilt after a claim conflict"`
	CrossRegionAfterPasses  int     `env:"CROSS_REGION_AFTER_PASSES"  envDefault:"3"    envDocs:"failed same-region scans before a cross-region ticket joins the global pool"`
	QualityRatingNorm       float64 `env:"QUALITY_RATING_NORM"        envDefault:"400"  envDocs:"team rating gap that maps to the worst rating quality"`
	QualityLatencyNorm      float64 `env:"QUALITY_LATENCY_NORM"       envDefault:"150"  envDocs:"latency spread in ms that maps to the worst latency quality"`
	QualityRatingWeight     float64 `env:"QUALITY_RATING_WEIGHT"      envDefault:"0.7"  envDocs:"weight of rating spread in the quality score"`
	AnalyticsRetentionHours int     `env:"ANALYTICS_RETENTION_HOURS"  envDefault:"24"   envDocs:"how long analytics samples are kept"`

	JournalPath string `env:"JOURNAL_PATH" envDefault:"" envDocs:"sqlite file used to persist tickets (empty keeps the registry in memory only)"`

	RatingStoreDSN string  `env:"RATING_STORE_DSN" envDefault:""     envDocs:"postgres connection string of the rating store (empty uses the static store)"`
	RatingsFile    string  `env:"RATINGS_FILE"     envDefault:""     envDocs:"yaml file of rating profiles served by the static store"`
	DefaultRating  float64 `env:"DEFAULT_RATING"   envDefault:"1000" envDocs:"rating the static store reports for unknown players"`
	RedisAddr      string `env:"REDIS_ADDR"       envDefault:"" envDocs:"redis address used for participant notifications and session handoff"`
	MatchStreamMaxLen int64 `env:"MATCH_STREAM_MAX_LEN" envDefault:"10000" envDocs:"approximate length the confirmed match stream is trimmed to"`
	AutoAccept        bool  `env:"AUTO_ACCEPT"          envDefault:"false" envDocs:"accept every ready check without asking clients (local runs only)"`

	GRPCAddress    string `env:"GRPC_ADDRESS"    envDefault:":6565" envDocs:"listen address of the operational grpc server"`
	MetricsAddress string `env:"METRICS_ADDRESS" envDefault:":8080" envDocs:"listen address of the prometheus endpoint"`
	ZipkinURL      string `env:"ZIPKIN_URL"      envDefault:""      envDocs:"zipkin collector endpoint (empty disables exporting)"`
	TraceSampleRate float64 `env:"TRACE_SAMPLE_RATE" envDefault:"1" envDocs:"fraction of root traces sampled"`
	LogLevel       string `env:"LOG_LEVEL"       envDefault:"info"  envDocs:"logrus level"`
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, eris.Wrap(err, "failed to parse matchmaker config")
	}

	return cfg, nil
}

func (c *Config) ExpansionTick() time.Duration {
	return millis(c.ExpansionTickMs)
}

func (c *Config) ScanInterval() time.Duration {
	return millis(c.ScanIntervalMs)
}

func (c *Config) ReadyCheckWindow() time.Duration {
	return millis(c.ReadyCheckWindowMs)
}

func (c *Config) TombstoneTTL() time.Duration {
	return millis(c.TombstoneTTLMs)
}

func (c *Config) DeclinePenalty() time.Duration {
	return millis(c.DeclinePenaltyMs)
}

func (c *Config) MaxRatingStaleness() time.Duration {
	return millis(c.MaxRatingStalenessMs)
}

func (c *Config) RatingCacheTTL() time.Duration {
	return millis(c.RatingCacheTTLMs)
}

func (c *Config) AnalyticsRetention() time.Duration {
	return time.Duration(c.AnalyticsRetentionHours) * time.Hour
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
