package hooks

import (
	"context"
	"log"

	"github.com/jaidee-care/jaidee/risk"
)

// LoggingHooks provides built-in logging hooks for observability
type LoggingHooks struct {
	logger *log.Logger
}

// NewLoggingHooks creates logging hooks with the provided logger
func NewLoggingHooks(logger *log.Logger) *LoggingHooks {
	return &LoggingHooks{logger: logger}
}

// DefaultLoggingHooks creates logging hooks with default logger
func DefaultLoggingHooks() *LoggingHooks {
	return &LoggingHooks{logger: log.Default()}
}

// BeforeTurn logs the start of a turn. Message content is never logged;
// only its length, to keep counseling conversations out of log storage.
func (h *LoggingHooks) BeforeTurn(ctx context.Context, userID, message string) error {
	h.logger.Printf("[JaiDee] Turn started: user=%s message_len=%d", userID, len(message))
	return nil
}

// AfterTurn logs the outcome of a turn
func (h *LoggingHooks) AfterTurn(ctx context.Context, result *TurnResult) error {
	source := "model"
	if result.Fallback {
		source = "fallback"
	}
	h.logger.Printf("[JaiDee] Turn complete: user=%s source=%s risk=%s context_tokens=%d duration=%s",
		result.UserID, source, result.Risk, result.ContextTokens, result.Duration)
	return nil
}

// BeforeCompaction logs before context compaction
func (h *LoggingHooks) BeforeCompaction(ctx context.Context, userID string) error {
	h.logger.Printf("[JaiDee] Starting context compaction for user %s", userID)
	return nil
}

// AfterCompaction logs after context compaction
func (h *LoggingHooks) AfterCompaction(ctx context.Context, result *CompactionResult) error {
	reduction := float64(0)
	if result.OriginalTokens > 0 {
		reduction = float64(result.OriginalTokens-result.CompactedTokens) / float64(result.OriginalTokens) * 100
	}

	h.logger.Printf("[JaiDee] Compaction complete: %d -> %d tokens (%.1f%% reduction, %d messages removed)",
		result.OriginalTokens, result.CompactedTokens, reduction, result.MessagesRemoved)
	return nil
}

// Register attaches every logging hook to the registry.
func (h *LoggingHooks) Register(r *Registry) {
	r.OnBeforeTurn(h.BeforeTurn)
	r.OnAfterTurn(h.AfterTurn)
	r.OnBeforeCompaction(h.BeforeCompaction)
	r.OnAfterCompaction(h.AfterCompaction)
}

// MetricsHooks collects metrics for monitoring
type MetricsHooks struct {
	OnMetric func(name string, value float64, tags map[string]string)
}

// NewMetricsHooks creates metrics collection hooks
func NewMetricsHooks(onMetric func(string, float64, map[string]string)) *MetricsHooks {
	return &MetricsHooks{OnMetric: onMetric}
}

// AfterTurn records turn metrics
func (h *MetricsHooks) AfterTurn(ctx context.Context, result *TurnResult) error {
	tags := map[string]string{"risk": string(result.Risk)}

	h.OnMetric("jaidee.turn.context_tokens", float64(result.ContextTokens), tags)
	h.OnMetric("jaidee.turn.duration_ms", float64(result.Duration.Milliseconds()), tags)

	if result.Fallback {
		h.OnMetric("jaidee.turn.fallback", 1, tags)
	} else {
		h.OnMetric("jaidee.turn.success", 1, tags)
	}

	if result.Risk == risk.LevelHigh {
		h.OnMetric("jaidee.turn.high_risk", 1, nil)
	}
	return nil
}

// AfterCompaction records compaction metrics
func (h *MetricsHooks) AfterCompaction(ctx context.Context, result *CompactionResult) error {
	h.OnMetric("jaidee.compaction.original_tokens", float64(result.OriginalTokens), nil)
	h.OnMetric("jaidee.compaction.compacted_tokens", float64(result.CompactedTokens), nil)

	if result.OriginalTokens > 0 {
		h.OnMetric("jaidee.compaction.reduction_pct",
			float64(result.OriginalTokens-result.CompactedTokens)/float64(result.OriginalTokens)*100, nil)
	}

	return nil
}

// Register attaches every metrics hook to the registry.
func (h *MetricsHooks) Register(r *Registry) {
	r.OnAfterTurn(h.AfterTurn)
	r.OnAfterCompaction(h.AfterCompaction)
}
