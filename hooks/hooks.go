package hooks

import (
	"context"
	"sync"
	"time"

	"github.com/jaidee-care/jaidee/risk"
)

// TurnResult describes a completed conversation turn for after-turn hooks.
type TurnResult struct {
	// UserID is the LINE user the turn belongs to.
	UserID string

	// Reply is the text sent back to the user.
	Reply string

	// Risk is the classified risk level of the user's message.
	Risk risk.Level

	// Fallback is true when the reply came from the static fallback
	// instead of the model.
	Fallback bool

	// ContextTokens is the estimated token size of the dispatched context.
	ContextTokens int

	// Duration is the wall time the turn took end to end.
	Duration time.Duration
}

// CompactionResult describes one compaction pass for after-compaction hooks.
type CompactionResult struct {
	// UserID is the user whose session was compacted.
	UserID string

	// OriginalTokens is the session size before compaction.
	OriginalTokens int

	// CompactedTokens is the session size after compaction.
	CompactedTokens int

	// MessagesRemoved is how many messages compaction replaced.
	MessagesRemoved int
}

// BeforeTurnHook is called before a user turn is processed
type BeforeTurnHook func(ctx context.Context, userID, message string) error

// AfterTurnHook is called after a turn completes, whether the reply came
// from the model or the fallback
type AfterTurnHook func(ctx context.Context, result *TurnResult) error

// BeforeCompactionHook is called before context compaction
type BeforeCompactionHook func(ctx context.Context, userID string) error

// AfterCompactionHook is called after context compaction
type AfterCompactionHook func(ctx context.Context, result *CompactionResult) error

// Registry holds all registered hooks
type Registry struct {
	mu               sync.RWMutex
	beforeTurn       []BeforeTurnHook
	afterTurn        []AfterTurnHook
	beforeCompaction []BeforeCompactionHook
	afterCompaction  []AfterCompactionHook
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{
		beforeTurn:       []BeforeTurnHook{},
		afterTurn:        []AfterTurnHook{},
		beforeCompaction: []BeforeCompactionHook{},
		afterCompaction:  []AfterCompactionHook{},
	}
}

// OnBeforeTurn registers a hook to be called before a turn is processed
func (r *Registry) OnBeforeTurn(hook BeforeTurnHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeTurn = append(r.beforeTurn, hook)
}

// OnAfterTurn registers a hook to be called after a turn completes
func (r *Registry) OnAfterTurn(hook AfterTurnHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterTurn = append(r.afterTurn, hook)
}

// OnBeforeCompaction registers a hook to be called before compaction
func (r *Registry) OnBeforeCompaction(hook BeforeCompactionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeCompaction = append(r.beforeCompaction, hook)
}

// OnAfterCompaction registers a hook to be called after compaction
func (r *Registry) OnAfterCompaction(hook AfterCompactionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterCompaction = append(r.afterCompaction, hook)
}

// TriggerBeforeTurn calls all registered before-turn hooks
func (r *Registry) TriggerBeforeTurn(ctx context.Context, userID, message string) error {
	r.mu.RLock()
	hooks := make([]BeforeTurnHook, len(r.beforeTurn))
	copy(hooks, r.beforeTurn)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, userID, message); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterTurn calls all registered after-turn hooks
func (r *Registry) TriggerAfterTurn(ctx context.Context, result *TurnResult) error {
	r.mu.RLock()
	hooks := make([]AfterTurnHook, len(r.afterTurn))
	copy(hooks, r.afterTurn)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, result); err != nil {
			return err
		}
	}
	return nil
}

// TriggerBeforeCompaction calls all registered before-compaction hooks
func (r *Registry) TriggerBeforeCompaction(ctx context.Context, userID string) error {
	r.mu.RLock()
	hooks := make([]BeforeCompactionHook, len(r.beforeCompaction))
	copy(hooks, r.beforeCompaction)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterCompaction calls all registered after-compaction hooks
func (r *Registry) TriggerAfterCompaction(ctx context.Context, result *CompactionResult) error {
	r.mu.RLock()
	hooks := make([]AfterCompactionHook, len(r.afterCompaction))
	copy(hooks, r.afterCompaction)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, result); err != nil {
			return err
		}
	}
	return nil
}
