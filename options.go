package jaidee

import (
	"time"

	"github.com/jaidee-care/jaidee/compaction"
	"github.com/jaidee-care/jaidee/history"
	"github.com/jaidee-care/jaidee/hooks"
	"github.com/jaidee-care/jaidee/session"
	"github.com/jaidee-care/jaidee/tokens"
)

// Option is a functional option for configuring a Bot
type Option func(*internalConfig) error

// WithMaxRetries sets the maximum number of oracle retry attempts per turn
func WithMaxRetries(n int) Option {
	return func(c *internalConfig) error {
		if n < 0 {
			return NewTurnError("WithMaxRetries", ErrInvalidConfig).
				WithContext("n", n).
				WithContext("reason", "must not be negative")
		}
		c.maxRetries = n
		return nil
	}
}

// WithTokenThreshold sets the session token budget at which compaction
// triggers. The threshold is the hard limit scaled by the trigger fraction.
func WithTokenThreshold(hardLimit int, trigger float64) Option {
	return func(c *internalConfig) error {
		if hardLimit <= 0 {
			return NewTurnError("WithTokenThreshold", ErrInvalidConfig).
				WithContext("hard_limit", hardLimit).
				WithContext("reason", "must be positive")
		}
		if trigger <= 0 || trigger > 1 {
			return NewTurnError("WithTokenThreshold", ErrInvalidConfig).
				WithContext("trigger", trigger).
				WithContext("reason", "must be between 0 and 1")
		}
		c.compactionConfig.HardLimit = hardLimit
		c.compactionConfig.Trigger = trigger
		return nil
	}
}

// WithKeepRecentPairs sets how many recent message pairs compaction always
// keeps verbatim (default 30)
func WithKeepRecentPairs(n int) Option {
	return func(c *internalConfig) error {
		if n < 0 {
			return NewTurnError("WithKeepRecentPairs", ErrInvalidConfig).
				WithContext("n", n).
				WithContext("reason", "must not be negative")
		}
		c.compactionConfig.KeepRecentPairs = n
		return nil
	}
}

// WithMaxImportantPairs caps the older pairs compaction keeps verbatim
func WithMaxImportantPairs(n int) Option {
	return func(c *internalConfig) error {
		c.compactionConfig.MaxImportantPairs = n
		return nil
	}
}

// WithSummaryModel sets the model used for summarization during compaction
func WithSummaryModel(model string) Option {
	return func(c *internalConfig) error {
		c.summaryModel = model
		return nil
	}
}

// WithLockTTL sets the turn-lock TTL (default 30s)
func WithLockTTL(ttl time.Duration) Option {
	return func(c *internalConfig) error {
		if ttl <= 0 {
			return NewTurnError("WithLockTTL", ErrInvalidConfig).
				WithContext("ttl", ttl).
				WithContext("reason", "must be positive")
		}
		c.lockTTL = ttl
		return nil
	}
}

// WithNoticeWindow sets the wait-notice rate-limit window (default 10s)
func WithNoticeWindow(window time.Duration) Option {
	return func(c *internalConfig) error {
		if window <= 0 {
			return NewTurnError("WithNoticeWindow", ErrInvalidConfig).
				WithContext("window", window).
				WithContext("reason", "must be positive")
		}
		c.noticeWindow = window
		return nil
	}
}

// WithOracleTimeout overrides the adaptive-timeout parameters
func WithOracleTimeout(base, increment, max time.Duration, tokenThreshold int) Option {
	return func(c *internalConfig) error {
		if base <= 0 || max < base {
			return NewTurnError("WithOracleTimeout", ErrInvalidConfig).
				WithContext("base", base).
				WithContext("max", max).
				WithContext("reason", "base must be positive and max >= base")
		}
		c.baseTimeout = base
		c.timeoutIncrement = increment
		c.maxTimeout = max
		c.timeoutThreshold = tokenThreshold
		return nil
	}
}

// WithSessionConfig overrides session TTL and timeout settings
func WithSessionConfig(cfg session.Config) Option {
	return func(c *internalConfig) error {
		c.sessionConfig = cfg
		return nil
	}
}

// WithArchive wires a durable history store, enabling restoration of
// expired sessions and the per-turn archive append
func WithArchive(h history.Store) Option {
	return func(c *internalConfig) error {
		c.archive = h
		return nil
	}
}

// WithTokenCounter replaces the default counter, e.g. with a heuristic-only
// counter in tests
func WithTokenCounter(counter *tokens.Counter) Option {
	return func(c *internalConfig) error {
		c.counter = counter
		return nil
	}
}

// WithHooks replaces the bot's hook registry
func WithHooks(registry *hooks.Registry) Option {
	return func(c *internalConfig) error {
		if registry != nil {
			c.hooks = registry
		}
		return nil
	}
}

// WithLogger sets the structured logger shared with the compaction manager
func WithLogger(l compaction.Logger) Option {
	return func(c *internalConfig) error {
		c.logger = l
		return nil
	}
}

// WithIdleWarning registers a callback invoked when a turn detects the
// user's session is close to its idle timeout. The transport layer sends
// the actual warning message.
func WithIdleWarning(fn func(userID string)) Option {
	return func(c *internalConfig) error {
		c.onIdleWarning = fn
		return nil
	}
}
