package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jaidee-care/jaidee/kv"
)

// Lock defaults.
const (
	// DefaultLockTTL bounds how long a crashed process can strand a user
	// before the lock self-expires.
	DefaultLockTTL = 30 * time.Second

	// DefaultNoticeWindow is the minimum gap between "please wait"
	// notices for one user.
	DefaultNoticeWindow = 10 * time.Second
)

// TurnLock is the per-user mutual-exclusion primitive: at most one
// in-flight turn per user id. It is a single atomic set-if-not-exists with
// expiry against the shared medium, so it holds across processes.
type TurnLock struct {
	kv kv.KV
}

// NewTurnLock creates a turn lock over the given medium.
func NewTurnLock(medium kv.KV) *TurnLock {
	return &TurnLock{kv: medium}
}

// Acquire attempts to take the user's lock. It returns an owner token when
// the lock was obtained, or the empty string when another turn holds it.
// The TTL bounds worst-case staleness after a crash.
func (l *TurnLock) Acquire(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	token := uuid.NewString()
	ok, err := l.kv.SetNX(ctx, l.key(userID), token, ttl)
	if err != nil {
		return "", fmt.Errorf("acquire turn lock for %s: %w", userID, err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// Release frees the user's lock if token still owns it. A lock that expired
// mid-turn and was re-acquired by a later turn belongs to that turn and is
// left alone. It must run on every exit path of a turn; callers defer it
// immediately after a successful Acquire.
func (l *TurnLock) Release(ctx context.Context, userID, token string) error {
	current, err := l.kv.Get(ctx, l.key(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("release turn lock for %s: %w", userID, err)
	}
	if current != token {
		return nil
	}
	// The kv interface has no compare-and-delete, so the ownership check and
	// the delete are two operations.
	if err := l.kv.Del(ctx, l.key(userID)); err != nil {
		return fmt.Errorf("release turn lock for %s: %w", userID, err)
	}
	return nil
}

// ForceRelease frees the user's lock regardless of owner. Administrative
// use, such as a session reset.
func (l *TurnLock) ForceRelease(ctx context.Context, userID string) error {
	if err := l.kv.Del(ctx, l.key(userID)); err != nil {
		return fmt.Errorf("release turn lock for %s: %w", userID, err)
	}
	return nil
}

func (l *TurnLock) key(userID string) string {
	return fmt.Sprintf("%s:lock:%s", keyPrefix, userID)
}

// NoticeLimiter rate-limits user-facing notices so a burst of messages
// during a held lock produces at most one "please wait" reply per window.
type NoticeLimiter struct {
	kv     kv.KV
	window time.Duration
}

// NewNoticeLimiter creates a limiter with the given window.
// A zero window uses DefaultNoticeWindow.
func NewNoticeLimiter(medium kv.KV, window time.Duration) *NoticeLimiter {
	if window <= 0 {
		window = DefaultNoticeWindow
	}
	return &NoticeLimiter{kv: medium, window: window}
}

// Allow reports whether a notice may be sent to the user now. A true
// result consumes the window.
func (n *NoticeLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	ok, err := n.kv.SetNX(ctx, fmt.Sprintf("%s:notice:%s", keyPrefix, userID), "1", n.window)
	if err != nil {
		return false, fmt.Errorf("notice limiter for %s: %w", userID, err)
	}
	return ok, nil
}
