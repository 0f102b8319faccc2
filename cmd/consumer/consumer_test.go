package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/waymate/internal/models"
)

// fakeUpdater implements RedisUpdater for tests
type fakeUpdater struct {
	failSet int // number of times to fail SAdd/SRem before succeeding
	failH   int // number of times to fail HSet before succeeding
	setCalls int
	hCalls   int
	online   map[string]bool
}

func (f *fakeUpdater) SAdd(ctx context.Context, key string, member string) error {
	f.setCalls++
	if f.setCalls <= f.failSet {
		return errors.New("sadd fail")
	}
	if f.online == nil {
		f.online = map[string]bool{}
	}
	f.online[member] = true
	return nil
}

func (f *fakeUpdater) SRem(ctx context.Context, key string, member string) error {
	f.setCalls++
	if f.setCalls <= f.failSet {
		return errors.New("srem fail")
	}
	if f.online == nil {
		f.online = map[string]bool{}
	}
	delete(f.online, member)
	return nil
}

func (f *fakeUpdater) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	f.hCalls++
	if f.hCalls <= f.failH {
		return errors.New("hset fail")
	}
	return nil
}

func TestUpdateRedisWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeUpdater{failSet: 1, failH: 1}
	ev := models.PresenceEvent{UserID: "u1", IsOnline: true, Timestamp: time.Now()}
	ctx := context.Background()
	start := time.Now()
	if err := updateRedisWithRetry(ctx, f, ev, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.setCalls < 2 || f.hCalls < 2 {
		t.Fatalf("expected retries, got set=%d h=%d", f.setCalls, f.hCalls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
	if !f.online["u1"] {
		t.Fatalf("u1 should be in the online set")
	}
}

func TestUpdateRedisWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeUpdater{failSet: 5, failH: 0}
	ev := models.PresenceEvent{UserID: "u1", IsOnline: true, Timestamp: time.Now()}
	ctx := context.Background()
	if err := updateRedisWithRetry(ctx, f, ev, 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
}

func TestUpdateRedisWithRetry_OfflineRemovesUser(t *testing.T) {
	f := &fakeUpdater{}
	ctx := context.Background()
	on := models.PresenceEvent{UserID: "u1", IsOnline: true, Timestamp: time.Now()}
	off := models.PresenceEvent{UserID: "u1", IsOnline: false, Timestamp: time.Now()}
	if err := updateRedisWithRetry(ctx, f, on, 3, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := updateRedisWithRetry(ctx, f, off, 3, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if f.online["u1"] {
		t.Fatalf("u1 should have been removed from the online set")
	}
}
