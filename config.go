package jaidee

import (
	"fmt"
	"time"

	"github.com/jaidee-care/jaidee/compaction"
	"github.com/jaidee-care/jaidee/history"
	"github.com/jaidee-care/jaidee/hooks"
	"github.com/jaidee-care/jaidee/llm"
	"github.com/jaidee-care/jaidee/session"
	"github.com/jaidee-care/jaidee/tokens"
)

// ModelInfo contains model-specific parameters
type ModelInfo struct {
	MaxContextTokens int
	DefaultMaxTokens int
}

// KnownModels maps model IDs to their capabilities
var KnownModels = map[string]ModelInfo{
	// Claude 4 models
	"claude-sonnet-4-5-20250929": {MaxContextTokens: 200000, DefaultMaxTokens: 16384},
	// Claude 3.5 models
	"claude-3-5-sonnet-20241022": {MaxContextTokens: 200000, DefaultMaxTokens: 8192},
	"claude-3-5-haiku-20241022":  {MaxContextTokens: 200000, DefaultMaxTokens: 8192},
	// Claude 3 models
	"claude-3-haiku-20240307": {MaxContextTokens: 200000, DefaultMaxTokens: 4096},
}

// GetModelInfo returns model info, using sensible defaults for unknown models
func GetModelInfo(model string) ModelInfo {
	if info, ok := KnownModels[model]; ok {
		return info
	}
	return ModelInfo{MaxContextTokens: 200000, DefaultMaxTokens: 8192}
}

// Adaptive oracle timeout parameters. The timeout grows with the estimated
// size of the dispatched context so long sessions are not cut off by a
// budget sized for short ones.
const (
	// DefaultBaseTimeout is the oracle timeout for small contexts.
	DefaultBaseTimeout = 15 * time.Second

	// DefaultTimeoutIncrement is added per timeoutTokenStep estimated
	// tokens beyond DefaultTimeoutThreshold.
	DefaultTimeoutIncrement = 5 * time.Second

	// DefaultTimeoutThreshold is the estimated token count above which the
	// timeout starts growing.
	DefaultTimeoutThreshold = 2000

	// DefaultMaxTimeout caps the adaptive timeout.
	DefaultMaxTimeout = 60 * time.Second

	// timeoutTokenStep is the token granularity of the adaptive increment.
	timeoutTokenStep = 400
)

// DefaultMaxRetries is the number of oracle retries after the first failed
// attempt, before the fallback reply is used.
const DefaultMaxRetries = 2

// Canned replies used when the model cannot answer. The crisis variant is
// chosen by keyword triage for high-risk messages and carries the Thai
// mental-health hotline.
const (
	// FallbackCrisis answers high-risk messages during an outage.
	FallbackCrisis = "ขอโทษนะคะ ตอนนี้ระบบขัดข้องชั่วคราว แต่ถ้าคุณกำลังคิดทำร้ายตัวเองหรืออยู่ในภาวะวิกฤต " +
		"โทรสายด่วนสุขภาพจิต 1323 ได้ตลอด 24 ชั่วโมง หรือสายด่วนยาเสพติด 1165 นะคะ คุณไม่ได้อยู่คนเดียว"

	// FallbackGeneric answers everything else during an outage.
	FallbackGeneric = "ขอโทษนะคะ ตอนนี้ระบบขัดข้องชั่วคราว รอสักครู่แล้วพิมพ์มาใหม่อีกครั้งนะคะ"

	// WaitNotice is sent (rate-limited) when a message arrives while the
	// previous turn is still processing.
	WaitNotice = "ใจดีกำลังอ่านข้อความก่อนหน้าอยู่ค่ะ รอสักครู่นะคะ"
)

// Config holds the required configuration for a Bot.
// The kv medium is passed separately to New() so the same config works over
// Redis in production and the in-memory store in tests.
//
// Example:
//
//	bot, _ := jaidee.New(redisv9.New(rdb), jaidee.Config{
//	    Oracle:       llm.NewAnthropicOracle(&client),
//	    Model:        "claude-3-5-sonnet-20241022",
//	    SystemPrompt: "คุณคือใจดี ...",
//	})
type Config struct {
	// Oracle is the LLM client used for chat and summarization (required)
	Oracle llm.Oracle

	// Model is the model ID for chat generation (required)
	Model string

	// SystemPrompt is the counseling system prompt (required)
	SystemPrompt string
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Oracle == nil {
		return fmt.Errorf("%w: Oracle is required", ErrInvalidConfig)
	}

	if c.Model == "" {
		return fmt.Errorf("%w: Model is required", ErrInvalidConfig)
	}

	if c.SystemPrompt == "" {
		return fmt.Errorf("%w: SystemPrompt is required", ErrInvalidConfig)
	}

	return nil
}

// internalConfig holds the full bot configuration including optional parameters
type internalConfig struct {
	// Required from Config
	oracle       llm.Oracle
	model        string
	systemPrompt string

	// Oracle call behavior
	maxRetries       int
	baseTimeout      time.Duration
	timeoutIncrement time.Duration
	timeoutThreshold int
	maxTimeout       time.Duration

	// Locking
	lockTTL      time.Duration
	noticeWindow time.Duration

	// Compaction configuration, forwarded to compaction.Config
	compactionConfig compaction.Config
	summaryModel     string

	// Session configuration, forwarded to session.Config
	sessionConfig session.Config

	// Collaborators
	counter       *tokens.Counter
	archive       history.Store
	hooks         *hooks.Registry
	logger        compaction.Logger
	onIdleWarning func(userID string)
}

// newInternalConfig creates a new internal config from the public Config
func newInternalConfig(cfg Config) *internalConfig {
	info := GetModelInfo(cfg.Model)

	return &internalConfig{
		oracle:       cfg.Oracle,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,

		// Defaults
		maxRetries:       DefaultMaxRetries,
		baseTimeout:      DefaultBaseTimeout,
		timeoutIncrement: DefaultTimeoutIncrement,
		timeoutThreshold: DefaultTimeoutThreshold,
		maxTimeout:       DefaultMaxTimeout,
		lockTTL:          session.DefaultLockTTL,
		noticeWindow:     session.DefaultNoticeWindow,

		compactionConfig: compaction.Config{
			HardLimit: info.MaxContextTokens / 2,
		},
		summaryModel: "claude-3-5-haiku-20241022",

		hooks: hooks.NewRegistry(),
	}
}

// oracleTimeout returns the adaptive timeout for a dispatch of the given
// estimated token size.
func (c *internalConfig) oracleTimeout(estimatedTokens int) time.Duration {
	timeout := c.baseTimeout
	if over := estimatedTokens - c.timeoutThreshold; over > 0 {
		steps := (over + timeoutTokenStep - 1) / timeoutTokenStep
		timeout += time.Duration(steps) * c.timeoutIncrement
	}
	if timeout > c.maxTimeout {
		timeout = c.maxTimeout
	}
	return timeout
}
