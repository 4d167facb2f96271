package maintenance

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jaidee-care/jaidee/session"
	"github.com/jaidee-care/jaidee/tokens"
)

// Default sweeper configuration values
const (
	DefaultSweepInterval = 5 * time.Minute
	DefaultStaleWindow   = tokens.DefaultStaleWindow
)

// SweepConfig holds configuration for the maintenance sweeper.
type SweepConfig struct {
	// Interval is how often to run a maintenance pass.
	// Default: 5 minutes
	Interval time.Duration

	// StaleWindow is how long a token-cache entry may go unused before
	// the sweeper evicts it.
	// Default: 1 hour
	StaleWindow time.Duration

	// OnIdleWarning is called once per user whose session has entered the
	// idle-warning window. The caller delivers the actual notification.
	OnIdleWarning func(userID string)

	// OnSessionTimeout is called when timed-out sessions are cleared.
	// The count is the number of sessions cleared this pass.
	OnSessionTimeout func(count int)

	// OnError is called for each error a maintenance pass produced.
	OnError func(err error)
}

// DefaultSweepConfig returns the default sweeper configuration.
func DefaultSweepConfig() *SweepConfig {
	return &SweepConfig{
		Interval:    DefaultSweepInterval,
		StaleWindow: DefaultStaleWindow,
	}
}

// SweepResult holds the results of one maintenance pass.
type SweepResult struct {
	// SessionsTimedOut is the number of idle sessions cleared.
	SessionsTimedOut int

	// WarningsIssued is the number of idle warnings claimed this pass.
	WarningsIssued int

	// CacheEvicted is the number of token-cache entries removed, stale
	// eviction and memory-pressure reduction combined.
	CacheEvicted int

	// Errors contains any errors that occurred during the pass.
	Errors []error
}

// Sweeper periodically clears timed-out sessions, issues idle warnings,
// and trims the token cache. Run one per process.
type Sweeper struct {
	sessions *session.Store
	cache    *tokens.Cache
	config   *SweepConfig

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewSweeper creates a maintenance sweeper. cache may be nil when the
// token counter runs uncached.
func NewSweeper(sessions *session.Store, cache *tokens.Cache, config *SweepConfig) *Sweeper {
	if config == nil {
		config = DefaultSweepConfig()
	}
	if config.Interval == 0 {
		config.Interval = DefaultSweepInterval
	}
	if config.StaleWindow == 0 {
		config.StaleWindow = DefaultStaleWindow
	}

	return &Sweeper{
		sessions: sessions,
		cache:    cache,
		config:   config,
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop.
// It returns immediately and runs maintenance passes in a goroutine.
func (s *Sweeper) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)

	return nil
}

// Stop stops the sweep loop.
func (s *Sweeper) Stop(ctx context.Context) error {
	if !s.started.Load() {
		return ErrNotStarted
	}

	s.cancel()
	<-s.done

	s.started.Store(false)
	return nil
}

// run is the main sweep loop.
func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	// Run a pass immediately on start
	s.runSweep(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

// runSweep performs one pass and dispatches the configured callbacks.
func (s *Sweeper) runSweep(ctx context.Context) {
	result := s.RunOnce(ctx)

	if s.config.OnSessionTimeout != nil && result.SessionsTimedOut > 0 {
		s.config.OnSessionTimeout(result.SessionsTimedOut)
	}

	if s.config.OnError != nil {
		for _, err := range result.Errors {
			s.config.OnError(err)
		}
	}
}

// RunOnce performs one maintenance pass and returns the result.
// This can be called manually for testing or a one-off sweep.
func (s *Sweeper) RunOnce(ctx context.Context) *SweepResult {
	result := &SweepResult{}

	s.sweepSessions(ctx, result)

	if s.cache != nil {
		result.CacheEvicted = s.cache.EvictStale(s.config.StaleWindow)
		result.CacheEvicted += s.cache.ReduceUnderPressure()
	}

	return result
}

// sweepSessions clears timed-out sessions and issues idle warnings for
// sessions approaching the timeout.
func (s *Sweeper) sweepSessions(ctx context.Context, result *SweepResult) {
	users, err := s.sessions.ActiveUsers(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return
	}

	for _, userID := range users {
		timedOut, err := s.sessions.IsTimedOut(ctx, userID)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		if timedOut {
			result.SessionsTimedOut++
			continue
		}

		warn, err := s.sessions.CheckIdleWarning(ctx, userID)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		if warn {
			result.WarningsIssued++
			if s.config.OnIdleWarning != nil {
				s.config.OnIdleWarning(userID)
			}
		}
	}
}

// IsRunning returns true if the sweeper is running.
func (s *Sweeper) IsRunning() bool {
	return s.started.Load()
}
