package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jaidee-care/jaidee/kv"
)

func TestSetGet(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "v" {
		t.Errorf("Get = %q, want %q", got, "v")
	}
}

func TestGetMissing(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), "absent")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("Get(absent) error = %v, want kv.ErrNotFound", err)
	}
}

func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := New()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	if err := s.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("Get after expiry error = %v, want kv.ErrNotFound", err)
	}
}

func TestSetNX(t *testing.T) {
	ctx := context.Background()
	s := New()

	ok, err := s.SetNX(ctx, "lock", "1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first SetNX = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = s.SetNX(ctx, "lock", "2", time.Minute)
	if err != nil {
		t.Fatalf("second SetNX: %v", err)
	}
	if ok {
		t.Error("second SetNX succeeded, want refusal while key held")
	}

	// After expiry the key is free again.
	now := time.Now()
	s.SetClock(func() time.Time { return now.Add(2 * time.Minute) })
	ok, err = s.SetNX(ctx, "lock", "3", time.Minute)
	if err != nil || !ok {
		t.Errorf("SetNX after expiry = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestScan(t *testing.T) {
	ctx := context.Background()
	s := New()

	_ = s.Set(ctx, "jaidee:session:u1:messages", "a", 0)
	_ = s.Set(ctx, "jaidee:session:u2:messages", "b", 0)
	_ = s.Set(ctx, "jaidee:lock:u1", "1", 0)

	keys, err := s.Scan(ctx, "jaidee:session:*:messages")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("Scan returned %d keys, want 2: %v", len(keys), keys)
	}
}
