package engine

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates invalid engine configuration.
var ErrInvalidConfig = errors.New("invalid engine configuration")

// DefaultRegexCacheSize is the number of compiled patterns kept per matcher.
const DefaultRegexCacheSize = 512

// Config contains configuration for the rule evaluation engine.
type Config struct {
	// EnableTrace records per-condition steps on every result.
	// Default: false.
	EnableTrace bool

	// RegexCacheSize bounds the compiled-pattern cache used by
	// matches_regex. Zero disables caching.
	// Default: 512.
	RegexCacheSize int

	// SlowRuleThreshold logs a warning for any rule whose evaluation takes
	// longer. Zero disables the check.
	// Default: 10ms.
	SlowRuleThreshold time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		EnableTrace:       false,
		RegexCacheSize:    DefaultRegexCacheSize,
		SlowRuleThreshold: 10 * time.Millisecond,
	}
}

// Validate validates the engine configuration.
func (c *Config) Validate() error {
	if c.RegexCacheSize < 0 {
		return fmt.Errorf("%w: regex cache size cannot be negative", ErrInvalidConfig)
	}
	if c.SlowRuleThreshold < 0 {
		return fmt.Errorf("%w: slow rule threshold cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// WithTrace enables or disables evaluation tracing.
func (c *Config) WithTrace(enabled bool) *Config {
	c.EnableTrace = enabled
	return c
}

// WithRegexCacheSize sets the compiled-pattern cache size.
func (c *Config) WithRegexCacheSize(size int) *Config {
	c.RegexCacheSize = size
	return c
}

// WithSlowRuleThreshold sets the slow rule warning threshold.
func (c *Config) WithSlowRuleThreshold(d time.Duration) *Config {
	c.SlowRuleThreshold = d
	return c
}
