package jaidee

import (
	"context"
	"strings"
	"time"

	"github.com/jaidee-care/jaidee/compaction"
	"github.com/jaidee-care/jaidee/history"
	"github.com/jaidee-care/jaidee/hooks"
	"github.com/jaidee-care/jaidee/importance"
	"github.com/jaidee-care/jaidee/kv"
	"github.com/jaidee-care/jaidee/llm"
	"github.com/jaidee-care/jaidee/risk"
	"github.com/jaidee-care/jaidee/session"
	"github.com/jaidee-care/jaidee/tokens"
	"github.com/jaidee-care/jaidee/types"
)

// retryBackoff is the base delay between oracle retry attempts; it doubles
// per attempt.
const retryBackoff = 500 * time.Millisecond

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Bot is the turn engine: one HandleTurn call processes one inbound LINE
// message end to end. A Bot is safe for concurrent use; turns for the same
// user are serialized through a TTL'd lock in the kv medium.
type Bot struct {
	config   *internalConfig
	sessions *session.Store
	lock     *session.TurnLock
	notices  *session.NoticeLimiter
	manager  *compaction.Manager
	riskc    risk.Classifier
	imp      *importance.Classifier
	logger   compaction.Logger
}

// New creates a Bot over the given kv medium.
func New(medium kv.KV, cfg Config, opts ...Option) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ic := newInternalConfig(cfg)
	for _, opt := range opts {
		if err := opt(ic); err != nil {
			return nil, err
		}
	}
	if ic.counter == nil {
		ic.counter = tokens.NewCounter()
	}
	if ic.logger == nil {
		ic.logger = nopLogger{}
	}

	sessions := session.NewStore(medium, ic.counter, &ic.sessionConfig)
	summarizer := compaction.NewSummarizer(ic.oracle, ic.summaryModel, ic.compactionConfig.ChunkSize)

	mopts := []compaction.Option{compaction.WithLogger(ic.logger)}
	if ic.archive != nil {
		mopts = append(mopts, compaction.WithArchive(ic.archive))
	}
	manager, err := compaction.NewManager(sessions, summarizer, ic.counter, ic.compactionConfig, mopts...)
	if err != nil {
		return nil, err
	}

	return &Bot{
		config:   ic,
		sessions: sessions,
		lock:     session.NewTurnLock(medium),
		notices:  session.NewNoticeLimiter(medium, ic.noticeWindow),
		manager:  manager,
		riskc:    risk.NewKeywordClassifier(),
		imp:      importance.NewClassifier(),
		logger:   ic.logger,
	}, nil
}

// Sessions exposes the session store, e.g. for wiring the maintenance
// sweeper.
func (b *Bot) Sessions() *session.Store { return b.sessions }

// Counter exposes the token counter shared across the bot.
func (b *Bot) Counter() *tokens.Counter { return b.config.counter }

// Hooks exposes the hook registry for registration after construction.
func (b *Bot) Hooks() *hooks.Registry { return b.config.hooks }

// HandleTurn processes one inbound message and returns the reply text.
//
// If another turn for the same user is in flight it returns ErrTurnInFlight;
// the returned string is then either the rate-limited wait notice to deliver
// or empty when the notice was already sent this window. Store and
// compaction failures are absorbed: the turn still answers, from a reduced
// context if necessary. Only a lock-state-indeterminate condition surfaces
// as a plain error.
func (b *Bot) HandleTurn(ctx context.Context, userID, text string) (string, error) {
	if userID == "" || strings.TrimSpace(text) == "" {
		return "", NewTurnError("HandleTurn", ErrEmptyMessage)
	}

	start := time.Now()
	if err := b.config.hooks.TriggerBeforeTurn(ctx, userID, text); err != nil {
		b.logger.Warn("before-turn hook failed", "user_id", userID, "error", err)
	}

	token, err := b.lock.Acquire(ctx, userID, b.config.lockTTL)
	if err != nil {
		return "", NewTurnErrorWithUser("HandleTurn", userID, ErrLockIndeterminate).
			WithContext("cause", err.Error())
	}
	if token == "" {
		allow, nerr := b.notices.Allow(ctx, userID)
		if nerr != nil {
			b.logger.Warn("wait-notice limiter failed", "user_id", userID, "error", nerr)
		}
		if allow {
			return WaitNotice, ErrTurnInFlight
		}
		return "", ErrTurnInFlight
	}
	defer func() {
		// The lock must go even when the request context is already dead;
		// a leaked lock strands the user until TTL expiry.
		if rerr := b.lock.Release(context.WithoutCancel(ctx), userID, token); rerr != nil {
			b.logger.Error("turn lock release failed", "user_id", userID, "error", rerr)
		}
	}()

	// The timed-out check reads last_activity, so it has to run before
	// Touch refreshes it.
	if timedOut, terr := b.sessions.IsTimedOut(ctx, userID); terr != nil {
		b.logger.Warn("timeout check failed", "user_id", userID, "error", terr)
	} else if timedOut {
		b.logger.Info("session timed out, starting fresh", "user_id", userID)
	}

	warn, err := b.sessions.Touch(ctx, userID)
	if err != nil {
		b.logger.Warn("session touch failed", "user_id", userID, "error", err)
	}
	if warn && b.config.onIdleWarning != nil {
		b.config.onIdleWarning(userID)
	}

	messages := b.prepare(ctx, userID)

	level, matched := b.riskc.Classify(text)
	if level == risk.LevelHigh {
		b.logger.Info("high-risk message detected", "user_id", userID, "matched_keywords", len(matched))
	}

	messages = append(messages, types.NewUserMessage(text))

	full := append([]types.Message{types.NewSystemMessage(b.config.systemPrompt)}, messages...)
	dispatch := types.ForDispatch(full)
	estTokens := b.config.counter.CountBatch(dispatch)

	reply, genErr := b.generate(ctx, dispatch, estTokens)
	fallback := genErr != nil
	if fallback {
		reply = b.fallbackFor(level)
		b.logger.Error("oracle exhausted, using fallback reply",
			"user_id", userID, "risk", level, "error", genErr)
	}

	messages = append(messages, types.NewAssistantMessage(reply))
	if err := b.sessions.Save(ctx, userID, messages); err != nil {
		b.logger.Error("session save failed, turn still answered", "user_id", userID, "error", err)
	}

	b.archiveTurn(ctx, userID, text, reply, level)

	result := &hooks.TurnResult{
		UserID:        userID,
		Reply:         reply,
		Risk:          level,
		Fallback:      fallback,
		ContextTokens: estTokens,
		Duration:      time.Since(start),
	}
	if err := b.config.hooks.TriggerAfterTurn(ctx, result); err != nil {
		b.logger.Warn("after-turn hook failed", "user_id", userID, "error", err)
	}

	return reply, nil
}

// prepare loads the session through the compaction manager, bracketing the
// pass with compaction hooks when the stored session is over the threshold.
// Preparation failures degrade to an empty session; the system prompt alone
// still answers.
func (b *Bot) prepare(ctx context.Context, userID string) []types.Message {
	preTokens, err := b.sessions.TokenCount(ctx, userID)
	if err != nil {
		b.logger.Warn("token count unavailable", "user_id", userID, "error", err)
	}
	compacting := preTokens >= b.manager.Config().TriggerThreshold()
	if compacting {
		if err := b.config.hooks.TriggerBeforeCompaction(ctx, userID); err != nil {
			b.logger.Warn("before-compaction hook failed", "user_id", userID, "error", err)
		}
	}

	messages, err := b.manager.Prepare(ctx, userID)
	if err != nil {
		b.logger.Error("session preparation failed, answering with minimal context",
			"user_id", userID, "error", err)
		messages = nil
	}

	if compacting {
		result := &hooks.CompactionResult{
			UserID:          userID,
			OriginalTokens:  preTokens,
			CompactedTokens: b.config.counter.CountBatch(messages),
		}
		if err := b.config.hooks.TriggerAfterCompaction(ctx, result); err != nil {
			b.logger.Warn("after-compaction hook failed", "user_id", userID, "error", err)
		}
	}
	return messages
}

// generate calls the oracle with the adaptive timeout and bounded retries.
// A timed-out attempt is abandoned; its late result is discarded with the
// per-attempt context.
func (b *Bot) generate(ctx context.Context, dispatch []types.Message, estTokens int) (string, error) {
	timeout := b.config.oracleTimeout(estTokens)
	cfg := llm.ChatConfig(b.config.model)

	var lastErr error
	for attempt := 0; attempt <= b.config.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := retryBackoff << uint(attempt-1)
			select {
			case <-ctx.Done():
				return "", lastErr
			case <-time.After(backoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		reply, err := b.config.oracle.Generate(callCtx, dispatch, cfg)
		cancel()
		if err == nil {
			return reply, nil
		}

		lastErr = err
		b.logger.Warn("oracle call failed",
			"attempt", attempt+1, "timeout", timeout, "error", err)
		if ctx.Err() != nil {
			return "", lastErr
		}
	}
	return "", lastErr
}

// fallbackFor picks the canned reply for an outage by risk triage.
func (b *Bot) fallbackFor(level risk.Level) string {
	if level == risk.LevelHigh {
		return FallbackCrisis
	}
	return FallbackGeneric
}

// archiveTurn appends the completed pair to durable history. Failures are
// soft; the archive is a best-effort record behind the live session.
func (b *Bot) archiveTurn(ctx context.Context, userID, text, reply string, level risk.Level) {
	if b.config.archive == nil {
		return
	}

	rec := &history.Record{
		UserID:      userID,
		UserMessage: text,
		BotResponse: reply,
		TokenCount:  b.config.counter.Count(text) + b.config.counter.Count(reply),
		Important:   b.imp.IsImportantWithRisk(text, reply, level),
	}
	if err := b.config.archive.Append(ctx, rec); err != nil {
		b.logger.Error("history append failed", "user_id", userID, "error", err)
	}
}

// ResetSession clears the user's session, cached counters and flags, and
// releases any held turn lock. The durable history is untouched.
func (b *Bot) ResetSession(ctx context.Context, userID string) error {
	if err := b.sessions.Clear(ctx, userID); err != nil {
		return NewTurnErrorWithUser("ResetSession", userID, err)
	}
	if err := b.lock.ForceRelease(ctx, userID); err != nil {
		b.logger.Warn("lock release during reset failed", "user_id", userID, "error", err)
	}
	return nil
}

// TokenUsage reports the session's current budget position.
func (b *Bot) TokenUsage(ctx context.Context, userID string) (*compaction.Stats, error) {
	return b.manager.GetStats(ctx, userID)
}

// ForceCompact runs a compaction pass immediately, regardless of the
// trigger threshold.
func (b *Bot) ForceCompact(ctx context.Context, userID string) error {
	messages, err := b.sessions.Load(ctx, userID)
	if err != nil {
		return NewTurnErrorWithUser("ForceCompact", userID, err)
	}
	if len(messages) == 0 {
		return NewTurnErrorWithUser("ForceCompact", userID, ErrSessionNotFound)
	}

	if err := b.config.hooks.TriggerBeforeCompaction(ctx, userID); err != nil {
		b.logger.Warn("before-compaction hook failed", "user_id", userID, "error", err)
	}

	before := b.config.counter.CountBatch(messages)
	compacted, err := b.manager.Compact(ctx, userID, messages)
	if err != nil {
		return NewTurnErrorWithUser("ForceCompact", userID, err)
	}

	result := &hooks.CompactionResult{
		UserID:          userID,
		OriginalTokens:  before,
		CompactedTokens: b.config.counter.CountBatch(compacted),
		MessagesRemoved: len(messages) - len(compacted),
	}
	if err := b.config.hooks.TriggerAfterCompaction(ctx, result); err != nil {
		b.logger.Warn("after-compaction hook failed", "user_id", userID, "error", err)
	}
	return nil
}
