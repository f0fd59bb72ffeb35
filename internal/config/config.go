// Package config loads dealfeed settings from the environment.
//
// Every variable carries the DEALFEED_ prefix (DEALFEED_FEED_SIZE, ...). An
// optional .env file is read first; real environment variables win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/abelbrown/dealfeed/internal/coord"
	"github.com/abelbrown/dealfeed/internal/filter"
	"github.com/abelbrown/dealfeed/internal/ranking"
	"github.com/abelbrown/dealfeed/internal/sampling"
	"github.com/abelbrown/dealfeed/internal/store"
)

// Prefix is the envconfig prefix.
const Prefix = "dealfeed"

// Rotation backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is the full service configuration.
type Config struct {
	Env        string `default:"development"`
	LogLevel   string `split_words:"true" default:"info"`
	ListenAddr string `split_words:"true" default:":8080"`

	// Selection
	FeedSize         int           `split_words:"true" default:"12"`
	MinDiscount      int           `split_words:"true" default:"20"`
	StoreCapRatio    float64       `split_words:"true" default:"0.8"`
	CategoryCapRatio float64       `split_words:"true" default:"0.7"`
	Cooldown         time.Duration `default:"72h"`

	// Keywords
	KeywordFilter       bool     `split_words:"true" default:"false"`
	AllowKeywords       []string `split_words:"true"`
	BlockKeywords       []string `split_words:"true"`
	SafetyBlockKeywords []string `split_words:"true"`

	// Scoring
	DiscountWeight    float64 `split_words:"true" default:"0.7"`
	AvailabilityBonus float64 `split_words:"true" default:"5"`
	RecencyBonus      float64 `split_words:"true" default:"5"`
	CooldownPenalty   float64 `split_words:"true" default:"30"`

	// Windowing
	Strategy string        `default:"score"`
	Region   string        `default:"us"`
	Locale   string        `default:"en"`
	Timezone string        `default:"UTC"`
	PoolTTL  time.Duration `split_words:"true" default:"6h"`
	Pinned   int           `default:"5"`

	// Scheduling
	BuildInterval           time.Duration `split_words:"true" default:"25m"`
	CollectorTimeout        time.Duration `split_words:"true" default:"10s"`
	CollectCeiling          time.Duration `split_words:"true" default:"45s"`
	MaxConcurrentCollectors int           `split_words:"true" default:"5"`
	CollectLimit            int           `split_words:"true" default:"0"`
	RefreshTimeout          time.Duration `split_words:"true" default:"1m"`
	CollectorsFile          string        `split_words:"true" default:"collectors.json"`

	// Rotation memory
	RotationBackend string        `split_words:"true" default:"file"`
	RotationPath    string        `split_words:"true" default:"rotation.json"`
	RotationKey     string        `split_words:"true" default:"dealfeed:rotation"`
	RotationTTL     time.Duration `split_words:"true" default:"0"`
	SQLitePath      string        `envconfig:"SQLITE_PATH" default:"dealfeed.db"`
	Redis           store.RedisConfig
	DatabaseURL     string `envconfig:"DATABASE_URL"`

	// Publication
	KafkaBrokers string `split_words:"true"`
	KafkaTopic   string `split_words:"true" default:"dealfeed.feeds"`
}

// Load reads envFile when it exists, then the environment, and validates.
// An empty envFile skips the .env step.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var c Config
	if err := envconfig.Process(Prefix, &c); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Production reports whether logs should be JSON.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// Scope identifies this feed's rotation memory and pool cache.
func (c *Config) Scope() string {
	return c.Region + ":" + c.Locale
}

// KeywordPolicy returns the eligibility keyword policy, nil when disabled.
func (c *Config) KeywordPolicy() *filter.KeywordPolicy {
	if !c.KeywordFilter {
		return nil
	}
	return filter.NewKeywordPolicy(c.AllowKeywords, c.BlockKeywords)
}

// SafetyPolicy returns the collector prefilter, nil when no safety keywords
// are configured.
func (c *Config) SafetyPolicy() *filter.KeywordPolicy {
	if len(c.SafetyBlockKeywords) == 0 {
		return nil
	}
	return filter.NewKeywordPolicy(nil, c.SafetyBlockKeywords)
}

// Settings converts the config into coordinator settings.
func (c *Config) Settings() (coord.Settings, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return coord.Settings{}, &ValidationError{Field: "TIMEZONE", Reason: err.Error()}
	}

	s := coord.DefaultSettings()
	s.FeedSize = c.FeedSize
	s.MinDiscount = c.MinDiscount
	s.Caps = sampling.Caps{StoreRatio: c.StoreCapRatio, CategoryRatio: c.CategoryCapRatio}
	s.Weights = ranking.Weights{
		Discount:        c.DiscountWeight,
		Availability:    c.AvailabilityBonus,
		Recency:         c.RecencyBonus,
		CooldownPenalty: c.CooldownPenalty,
	}
	s.Cooldown = c.Cooldown
	s.Keywords = c.KeywordPolicy()
	s.Strategy = coord.Strategy(c.Strategy)
	s.Region = c.Region
	s.Locale = c.Locale
	s.Location = loc
	s.Pinned = c.Pinned
	s.PoolTTL = c.PoolTTL
	s.Interval = c.BuildInterval
	s.CollectorTimeout = c.CollectorTimeout
	s.CollectCeiling = c.CollectCeiling
	s.MaxConcurrentCollectors = c.MaxConcurrentCollectors
	s.CollectLimit = c.CollectLimit
	s.RotationTTL = c.RotationTTL
	return s, nil
}
