package compaction

import (
	"context"

	"github.com/jaidee-care/jaidee/history"
	"github.com/jaidee-care/jaidee/importance"
	"github.com/jaidee-care/jaidee/risk"
	"github.com/jaidee-care/jaidee/session"
	"github.com/jaidee-care/jaidee/tokens"
	"github.com/jaidee-care/jaidee/types"
)

// maxRestoreOlderPairs bounds how much history beyond the verbatim restore
// window is fetched for summarization. Anything older than this is left in
// the archive.
const maxRestoreOlderPairs = 100

// Manager owns the per-turn context pipeline: load (or restore) a session,
// compact it when it exceeds the trigger threshold, and persist the result.
type Manager struct {
	sessions   *session.Store
	archive    history.Store
	summarizer *Summarizer
	counter    *tokens.Counter
	importance *importance.Classifier
	risk       risk.Classifier
	config     Config
	logger     Logger
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

// WithArchive wires a durable history store, enabling session restoration
// after Redis expiry.
func WithArchive(h history.Store) Option {
	return func(m *Manager) { m.archive = h }
}

// WithLogger sets the Manager's logger and propagates it to the Summarizer.
func WithLogger(l Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithImportanceClassifier overrides the default importance classifier.
func WithImportanceClassifier(c *importance.Classifier) Option {
	return func(m *Manager) {
		if c != nil {
			m.importance = c
		}
	}
}

// WithRiskClassifier overrides the default keyword risk classifier.
func WithRiskClassifier(rc risk.Classifier) Option {
	return func(m *Manager) {
		if rc != nil {
			m.risk = rc
		}
	}
}

// NewManager builds a Manager from its required collaborators. config is
// defaulted and validated; a validation failure is returned before any
// state is touched.
func NewManager(sessions *session.Store, summarizer *Summarizer, counter *tokens.Counter, config Config, opts ...Option) (*Manager, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		sessions:   sessions,
		summarizer: summarizer,
		counter:    counter,
		importance: importance.NewClassifier(),
		risk:       risk.NewKeywordClassifier(),
		config:     config,
		logger:     noopLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	summarizer.SetLogger(m.logger)
	return m, nil
}

// Config returns a copy of the Manager's effective configuration.
func (m *Manager) Config() Config { return m.config }

// Prepare returns the user's session ready for the next turn. A missing
// session is restored from the archive when one is wired; a session over
// the trigger threshold is compacted first. Compaction failures degrade to
// the uncompacted session rather than failing the turn.
func (m *Manager) Prepare(ctx context.Context, userID string) ([]types.Message, error) {
	messages, err := m.sessions.Load(ctx, userID)
	if err != nil {
		return nil, newCompactionError("load", userID, err)
	}

	if len(messages) == 0 && m.archive != nil {
		messages, err = m.restore(ctx, userID)
		if err != nil {
			m.logger.Warn("session restore failed, starting fresh",
				"user_id", userID, "error", err)
			messages = nil
		}
	}
	if len(messages) == 0 {
		return nil, nil
	}

	count := m.counter.CountBatch(messages)
	threshold := m.config.TriggerThreshold()
	if count < threshold {
		m.logger.Debug("session within budget",
			"user_id", userID, "tokens", count, "threshold", threshold)
		return messages, nil
	}

	m.logger.Info("compaction triggered",
		"user_id", userID, "tokens", count, "threshold", threshold)
	compacted, err := m.Compact(ctx, userID, messages)
	if err != nil {
		m.logger.Error("compaction failed, continuing with full session",
			"user_id", userID, "error", err)
		return messages, nil
	}
	return compacted, nil
}

// Compact runs one hybrid compaction pass over messages and persists the
// result. It returns the compacted session, or an error when summarization
// produced nothing usable; the stored session is untouched on error.
func (m *Manager) Compact(ctx context.Context, userID string, messages []types.Message) ([]types.Message, error) {
	before := m.counter.CountBatch(messages)

	p := partition(messages, m.config.KeepRecentPairs, m.config.MaxImportantPairs, m.importance, m.risk)
	if len(p.Normal) == 0 && p.PriorSummary == "" {
		// Every older pair was kept verbatim, so there is nothing to
		// summarize and the session cannot shrink this turn. The turn
		// proceeds with the session as is.
		m.logger.Warn("compaction achieved no reduction",
			"user_id", userID, "tokens_before", before, "tokens_after", before,
			"important_pairs", len(p.Important), "recent_pairs", len(p.Recent))
		return messages, nil
	}

	summary := p.PriorSummary
	if len(p.Normal) > 0 {
		var err error
		summary, err = m.summarizer.Summarize(ctx, p.PriorSummary, p.Normal)
		if err != nil {
			return messages, newCompactionError("summarize", userID, err).
				WithContext("normal_pairs", len(p.Normal))
		}
	}

	compacted := compose(summary, p.Important, p.Recent)
	after := m.counter.CountBatch(compacted)
	if after >= before {
		// Mostly-important sessions can compact to no smaller than they
		// started. The turn proceeds anyway; the condition is logged so
		// operators can spot users pinned at the budget.
		m.logger.Warn("compaction achieved no reduction",
			"user_id", userID, "tokens_before", before, "tokens_after", after)
	} else {
		m.logger.Info("compaction complete",
			"user_id", userID,
			"tokens_before", before, "tokens_after", after,
			"summarized_pairs", len(p.Normal), "important_pairs", len(p.Important))
	}

	if err := m.sessions.Save(ctx, userID, compacted); err != nil {
		return messages, newCompactionError("save", userID, err)
	}
	return compacted, nil
}

// restore rebuilds a session from the archive after Redis expiry. The most
// recent pairs come back verbatim; older archived pairs are partitioned by
// their stored importance flag and the unimportant remainder is summarized.
func (m *Manager) restore(ctx context.Context, userID string) ([]types.Message, error) {
	recent, err := m.archive.QueryRecent(ctx, userID, m.config.MaxRestorePairs)
	if err != nil {
		return nil, newCompactionError("restore", userID, err)
	}
	if len(recent) == 0 {
		return nil, nil
	}

	var important, normal []Pair
	older, err := m.archive.QueryBefore(ctx, userID, recent[0].ID, maxRestoreOlderPairs)
	if err != nil {
		// Older history only enriches the restore. The recent window alone
		// is a usable session.
		m.logger.Warn("older history unavailable during restore",
			"user_id", userID, "error", err)
	} else {
		flagged := 0
		for _, rec := range older {
			if rec.Important {
				flagged++
			}
		}
		// Oldest important pairs beyond the cap are demoted in place so the
		// summarization input stays in id order.
		demote := flagged - m.config.MaxImportantPairs
		for _, rec := range older {
			pair := Pair{User: rec.UserMessage, Bot: rec.BotResponse}
			switch {
			case rec.Important && demote > 0:
				demote--
				normal = append(normal, pair)
			case rec.Important:
				important = append(important, pair)
			default:
				normal = append(normal, pair)
			}
		}
	}

	var summary string
	if len(normal) > 0 {
		summary, err = m.summarizer.Summarize(ctx, "", normal)
		if err != nil {
			m.logger.Warn("restore summarization failed, older history dropped",
				"user_id", userID, "pairs", len(normal), "error", err)
			summary = ""
		}
	}

	recentPairs := make([]Pair, 0, len(recent))
	for _, rec := range recent {
		recentPairs = append(recentPairs, Pair{User: rec.UserMessage, Bot: rec.BotResponse})
	}
	restored := compose(summary, important, recentPairs)

	if err := m.sessions.Save(ctx, userID, restored); err != nil {
		return nil, newCompactionError("restore", userID, err)
	}
	m.logger.Info("session restored from archive",
		"user_id", userID,
		"recent_pairs", len(recentPairs), "important_pairs", len(important),
		"summarized_pairs", len(normal))
	return restored, nil
}

// compose assembles a session in the canonical order: summary first, then
// important pairs, then the recent window.
func compose(summary string, important, recent []Pair) []types.Message {
	var out []types.Message
	if summary != "" {
		out = append(out, types.NewSummaryMessage(SummaryPrefix+summary))
	}
	for _, p := range important {
		out = append(out, p.Messages()...)
	}
	for _, p := range recent {
		out = append(out, p.Messages()...)
	}
	return out
}

// Stats describes a session's budget position for monitoring surfaces.
type Stats struct {
	UserID          string `json:"user_id"`
	Messages        int    `json:"messages"`
	Pairs           int    `json:"pairs"`
	Tokens          int    `json:"tokens"`
	Threshold       int    `json:"threshold"`
	HardLimit       int    `json:"hard_limit"`
	CompactionDue   bool   `json:"compaction_due"`
	HasSummary      bool   `json:"has_summary"`
	ImportantBudget int    `json:"important_budget"`
}

// GetStats reports the current budget position of a user's session.
func (m *Manager) GetStats(ctx context.Context, userID string) (*Stats, error) {
	messages, err := m.sessions.Load(ctx, userID)
	if err != nil {
		return nil, newCompactionError("stats", userID, err)
	}

	stats := &Stats{
		UserID:          userID,
		Messages:        len(messages),
		Pairs:           types.CountPairs(messages),
		Threshold:       m.config.TriggerThreshold(),
		HardLimit:       m.config.HardLimit,
		ImportantBudget: m.config.MaxImportantPairs,
	}
	if len(messages) > 0 {
		stats.Tokens = m.counter.CountBatch(messages)
		stats.CompactionDue = stats.Tokens >= stats.Threshold
		for _, msg := range messages {
			if msg.IsSummary() {
				stats.HasSummary = true
				break
			}
		}
	}
	return stats, nil
}
