// Package session manages per-user rolling conversation state and the
// per-user turn lock, both stored in a shared TTL'd key-value medium.
//
// The Store is the sole owner of persisted session state: callers never
// mutate the message list in place without calling Save, which is what
// keeps the cached token count consistent with the stored messages.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jaidee-care/jaidee/kv"
	"github.com/jaidee-care/jaidee/tokens"
	"github.com/jaidee-care/jaidee/types"
)

// Default configuration values.
const (
	// DefaultSessionTTL is how long session keys live without a Save.
	DefaultSessionTTL = 24 * time.Hour

	// DefaultSessionTimeout is the idle period after which a session is
	// considered abandoned and its messages are cleared.
	DefaultSessionTimeout = 7 * 24 * time.Hour

	// DefaultWarningLead is how long before the idle timeout the one-shot
	// warning fires.
	DefaultWarningLead = 24 * time.Hour
)

const keyPrefix = "jaidee"

// Config holds session store configuration.
type Config struct {
	// SessionTTL is the per-key TTL refreshed on every Save.
	// Default: 24h
	SessionTTL time.Duration

	// SessionTimeout is the idle period before a session times out.
	// Default: 7 days
	SessionTimeout time.Duration

	// WarningLead is how far before SessionTimeout the idle warning is
	// signalled. Default: 24h
	WarningLead time.Duration
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.SessionTTL == 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	if c.WarningLead == 0 {
		c.WarningLead = DefaultWarningLead
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.SessionTTL <= 0 || c.SessionTimeout <= 0 || c.WarningLead <= 0 {
		return fmt.Errorf("session: durations must be positive")
	}
	if c.WarningLead >= c.SessionTimeout {
		return fmt.Errorf("session: warning lead %s must be below session timeout %s",
			c.WarningLead, c.SessionTimeout)
	}
	return nil
}

// Store persists per-user rolling message lists with cached token counts.
type Store struct {
	kv      kv.KV
	counter *tokens.Counter
	config  Config

	now func() time.Time
}

// NewStore creates a session store over the given medium.
// If config is nil, defaults are used.
func NewStore(medium kv.KV, counter *tokens.Counter, config *Config) *Store {
	cfg := Config{}
	if config != nil {
		cfg = *config
	}
	cfg.ApplyDefaults()

	return &Store{
		kv:      medium,
		counter: counter,
		config:  cfg,
		now:     time.Now,
	}
}

// SetClock replaces the store's clock. Test use only.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Load returns the user's rolling message list, or an empty list if the
// session is absent or expired.
func (s *Store) Load(ctx context.Context, userID string) ([]types.Message, error) {
	raw, err := s.kv.Get(ctx, s.messagesKey(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session for %s: %w", userID, err)
	}

	var messages []types.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, fmt.Errorf("decode session for %s: %w", userID, err)
	}
	return messages, nil
}

// Save persists the message list, recomputes and caches its token count,
// and refreshes the session TTL.
func (s *Store) Save(ctx context.Context, userID string, messages []types.Message) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode session for %s: %w", userID, err)
	}

	count := s.counter.CountBatch(messages)
	ttl := s.config.SessionTTL

	if err := s.kv.Set(ctx, s.messagesKey(userID), string(raw), ttl); err != nil {
		return fmt.Errorf("save session for %s: %w", userID, err)
	}
	if err := s.kv.Set(ctx, s.tokensKey(userID), strconv.Itoa(count), ttl); err != nil {
		return fmt.Errorf("save token count for %s: %w", userID, err)
	}
	if err := s.setLastActivity(ctx, userID); err != nil {
		return err
	}
	if err := s.setTimestamp(ctx, s.writeKey(userID)); err != nil {
		return err
	}
	return nil
}

// Touch updates last_activity. It returns true when the idle-timeout
// warning should be sent: the time since the last Save has entered the
// warning window and no warning has gone out this cycle.
func (s *Store) Touch(ctx context.Context, userID string) (bool, error) {
	if err := s.setLastActivity(ctx, userID); err != nil {
		return false, err
	}
	return s.CheckIdleWarning(ctx, userID)
}

// CheckIdleWarning reports whether the idle-timeout warning is due for the
// user, claiming the one-shot flag when it is. Unlike Touch it does not
// refresh last_activity, so the maintenance sweeper can call it without
// keeping idle sessions alive.
func (s *Store) CheckIdleWarning(ctx context.Context, userID string) (bool, error) {
	lastWrite, err := s.readTimestamp(ctx, s.writeKey(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	idle := s.now().Sub(lastWrite)
	if idle <= s.config.SessionTimeout-s.config.WarningLead {
		return false, nil
	}

	// One warning per window: the flag's TTL covers the remainder of the
	// cycle, so repeats are suppressed until the window rolls over.
	ok, err := s.kv.SetNX(ctx, s.warnedKey(userID), "1", s.config.WarningLead)
	if err != nil {
		return false, fmt.Errorf("mark idle warning for %s: %w", userID, err)
	}
	return ok, nil
}

// TokenCount returns the cached token count, recomputing and caching it
// from the stored messages when absent.
func (s *Store) TokenCount(ctx context.Context, userID string) (int, error) {
	raw, err := s.kv.Get(ctx, s.tokensKey(userID))
	if err == nil {
		count, parseErr := strconv.Atoi(raw)
		if parseErr == nil {
			return count, nil
		}
		// Unparseable cache entry: fall through and recompute.
	} else if !errors.Is(err, kv.ErrNotFound) {
		return 0, fmt.Errorf("read token count for %s: %w", userID, err)
	}

	messages, err := s.Load(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := s.counter.CountBatch(messages)
	if err := s.kv.Set(ctx, s.tokensKey(userID), strconv.Itoa(count), s.config.SessionTTL); err != nil {
		return 0, fmt.Errorf("cache token count for %s: %w", userID, err)
	}
	return count, nil
}

// IsTimedOut reports whether the session has been idle past the configured
// timeout. A timed-out session's messages are cleared as a side effect.
func (s *Store) IsTimedOut(ctx context.Context, userID string) (bool, error) {
	last, err := s.lastActivity(ctx, userID)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if s.now().Sub(last) <= s.config.SessionTimeout {
		return false, nil
	}
	if err := s.Clear(ctx, userID); err != nil {
		return true, err
	}
	return true, nil
}

// Clear removes all session state for the user.
func (s *Store) Clear(ctx context.Context, userID string) error {
	err := s.kv.Del(ctx,
		s.messagesKey(userID),
		s.tokensKey(userID),
		s.activityKey(userID),
		s.writeKey(userID),
		s.warnedKey(userID),
	)
	if err != nil {
		return fmt.Errorf("clear session for %s: %w", userID, err)
	}
	return nil
}

// ActiveUsers returns the ids of users with live session activity keys.
// Used by the maintenance sweeper.
func (s *Store) ActiveUsers(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Scan(ctx, keyPrefix+":session:*:last_activity")
	if err != nil {
		return nil, fmt.Errorf("scan active sessions: %w", err)
	}

	users := make([]string, 0, len(keys))
	for _, key := range keys {
		parts := strings.Split(key, ":")
		if len(parts) == 4 {
			users = append(users, parts[2])
		}
	}
	return users, nil
}

// Timeout returns the configured idle timeout.
func (s *Store) Timeout() time.Duration {
	return s.config.SessionTimeout
}

func (s *Store) lastActivity(ctx context.Context, userID string) (time.Time, error) {
	return s.readTimestamp(ctx, s.activityKey(userID))
}

func (s *Store) setLastActivity(ctx context.Context, userID string) error {
	return s.setTimestamp(ctx, s.activityKey(userID))
}

func (s *Store) readTimestamp(ctx context.Context, key string) (time.Time, error) {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return time.Time{}, err
	}
	secs, parseErr := strconv.ParseInt(raw, 10, 64)
	if parseErr != nil {
		return time.Time{}, fmt.Errorf("decode timestamp at %s: %w", key, parseErr)
	}
	return time.Unix(secs, 0), nil
}

func (s *Store) setTimestamp(ctx context.Context, key string) error {
	val := strconv.FormatInt(s.now().Unix(), 10)
	// Timestamps outlive the session timeout so IsTimedOut can still
	// observe the idle gap and clear the session.
	if err := s.kv.Set(ctx, key, val, 2*s.config.SessionTimeout); err != nil {
		return fmt.Errorf("set timestamp at %s: %w", key, err)
	}
	return nil
}

func (s *Store) messagesKey(userID string) string {
	return fmt.Sprintf("%s:session:%s:messages", keyPrefix, userID)
}

func (s *Store) tokensKey(userID string) string {
	return fmt.Sprintf("%s:session:%s:tokens", keyPrefix, userID)
}

func (s *Store) activityKey(userID string) string {
	return fmt.Sprintf("%s:session:%s:last_activity", keyPrefix, userID)
}

func (s *Store) writeKey(userID string) string {
	return fmt.Sprintf("%s:session:%s:last_write", keyPrefix, userID)
}

func (s *Store) warnedKey(userID string) string {
	return fmt.Sprintf("%s:warned:%s", keyPrefix, userID)
}
