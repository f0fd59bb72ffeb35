package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/dealfeed/internal/coord"
)

// ValidationError names one rejected setting by its environment variable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s_%s: %s", strings.ToUpper(Prefix), e.Field, e.Reason)
}

// Validate returns every problem joined, or nil.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	if c.FeedSize <= 0 {
		bad("FEED_SIZE", "must be positive, got %d", c.FeedSize)
	}
	if c.MinDiscount < 0 || c.MinDiscount > 100 {
		bad("MIN_DISCOUNT", "must be within [0,100], got %d", c.MinDiscount)
	}
	if c.StoreCapRatio <= 0 || c.StoreCapRatio > 1 {
		bad("STORE_CAP_RATIO", "must be within (0,1], got %g", c.StoreCapRatio)
	}
	if c.CategoryCapRatio <= 0 || c.CategoryCapRatio > 1 {
		bad("CATEGORY_CAP_RATIO", "must be within (0,1], got %g", c.CategoryCapRatio)
	}

	for field, v := range map[string]float64{
		"DISCOUNT_WEIGHT":    c.DiscountWeight,
		"AVAILABILITY_BONUS": c.AvailabilityBonus,
		"RECENCY_BONUS":      c.RecencyBonus,
		"COOLDOWN_PENALTY":   c.CooldownPenalty,
	} {
		if v < 0 {
			bad(field, "must not be negative, got %g", v)
		}
	}

	for field, d := range map[string]time.Duration{
		"COOLDOWN":          c.Cooldown,
		"POOL_TTL":          c.PoolTTL,
		"BUILD_INTERVAL":    c.BuildInterval,
		"COLLECTOR_TIMEOUT": c.CollectorTimeout,
		"COLLECT_CEILING":   c.CollectCeiling,
		"REFRESH_TIMEOUT":   c.RefreshTimeout,
	} {
		if d <= 0 {
			bad(field, "must be a positive duration, got %s", d)
		}
	}
	if c.RotationTTL < 0 {
		bad("ROTATION_TTL", "must not be negative, got %s", c.RotationTTL)
	}
	if c.MaxConcurrentCollectors <= 0 {
		bad("MAX_CONCURRENT_COLLECTORS", "must be positive, got %d", c.MaxConcurrentCollectors)
	}
	if c.CollectLimit < 0 {
		bad("COLLECT_LIMIT", "must not be negative, got %d", c.CollectLimit)
	}
	if c.Pinned < 0 {
		bad("PINNED", "must not be negative, got %d", c.Pinned)
	}

	allow := checkKeywords("ALLOW_KEYWORDS", c.AllowKeywords, bad)
	block := checkKeywords("BLOCK_KEYWORDS", c.BlockKeywords, bad)
	checkKeywords("SAFETY_BLOCK_KEYWORDS", c.SafetyBlockKeywords, bad)
	for k := range allow {
		if block[k] {
			bad("ALLOW_KEYWORDS", "%q is also blocked", k)
		}
	}

	switch coord.Strategy(c.Strategy) {
	case coord.StrategyScore, coord.StrategyWindow:
	default:
		bad("STRATEGY", "unknown strategy %q (want score or window)", c.Strategy)
	}
	if strings.TrimSpace(c.Region) == "" {
		bad("REGION", "must not be blank")
	}
	if strings.TrimSpace(c.Locale) == "" {
		bad("LOCALE", "must not be blank")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		bad("TIMEZONE", "%v", err)
	}

	switch c.RotationBackend {
	case BackendFile:
		if c.RotationPath == "" {
			bad("ROTATION_PATH", "required for the file backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			bad("SQLITE_PATH", "required for the sqlite backend")
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			bad("REDIS_URL", "required for the redis backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			bad("DATABASE_URL", "required for the postgres backend")
		}
	default:
		bad("ROTATION_BACKEND", "unknown backend %q", c.RotationBackend)
	}

	if c.KafkaBrokers != "" && strings.TrimSpace(c.KafkaTopic) == "" {
		bad("KAFKA_TOPIC", "required when KAFKA_BROKERS is set")
	}

	return errors.Join(errs...)
}

// checkKeywords rejects blank entries and returns the folded set.
func checkKeywords(field string, words []string, bad func(string, string, ...any)) map[string]bool {
	set := make(map[string]bool, len(words))
	for i, w := range words {
		if strings.TrimSpace(w) == "" {
			bad(field, "entry %d is blank", i)
			continue
		}
		set[strings.ToLower(strings.TrimSpace(w))] = true
	}
	return set
}
