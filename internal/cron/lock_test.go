package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memoryLockStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryLockStore) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	if m.values[key] != expected {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockIsExclusivePerKey(t *testing.T) {
	store := newMemoryLockStore()
	first, _ := NewRedisLock(store, "pt:lock:test:dispatch", time.Minute)
	second, _ := NewRedisLock(store, "pt:lock:test:dispatch", time.Minute)
	other, _ := NewRedisLock(store, "pt:lock:test:inactivity-scan", time.Minute)

	ctx := context.Background()
	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second replica must not acquire a held lock")
	}
	if ok, _ := other.Acquire(ctx); !ok {
		t.Fatal("a different schedule must have its own lock")
	}
	if store.ttls["pt:lock:test:dispatch"] != time.Minute {
		t.Fatalf("expected lease ttl, got %s", store.ttls["pt:lock:test:dispatch"])
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("expected lock free after release")
	}
}

func TestRedisLockReleaseKeepsForeignOwner(t *testing.T) {
	store := newMemoryLockStore()
	lock, _ := NewRedisLock(store, "k", time.Minute)
	ctx := context.Background()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected acquire")
	}
	// lease expired and another replica took over
	store.values["k"] = "someone-else"

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["k"] != "someone-else" {
		t.Fatal("release removed a lock it no longer owned")
	}
}

func TestRedisLockDefaultsAndErrors(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", 0); err == nil {
		t.Fatal("expected missing client error")
	}
	if _, err := NewRedisLock(newMemoryLockStore(), "", 0); err == nil {
		t.Fatal("expected missing key error")
	}
	lock, err := NewRedisLock(newMemoryLockStore(), "k", 0)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	if lock.TTL() != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", lock.TTL())
	}

	store := newMemoryLockStore()
	store.err = errors.New("redis down")
	failing, _ := NewRedisLock(store, "k", time.Minute)
	if _, err := failing.Acquire(context.Background()); err == nil {
		t.Fatal("expected acquire error")
	}
}
