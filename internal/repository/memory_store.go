package repository

import (
	"context"
	"sync"
	"time"

	"github.com/segyhp/agriloan-engine/internal/domain"
	customError "github.com/segyhp/agriloan-engine/pkg/errors"

	"github.com/google/uuid"
)

// In-process PaymentLock and IdempotencyStore for single-instance
// deployments without redis. State is lost on restart.

type memoryEntry struct {
	value     string
	result    *domain.AllocationResult
	expiresAt time.Time
}

type memoryKV struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func newMemoryKV() *memoryKV {
	return &memoryKV{entries: make(map[string]memoryEntry), now: time.Now}
}

// live returns the entry for key, dropping it if it has expired. Callers hold mu.
func (kv *memoryKV) live(key string) (memoryEntry, bool) {
	entry, ok := kv.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !kv.now().Before(entry.expiresAt) {
		delete(kv.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

// sweep drops every expired entry so keys that are never read again do not
// accumulate. Callers hold mu.
func (kv *memoryKV) sweep() {
	now := kv.now()
	for key, entry := range kv.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(kv.entries, key)
		}
	}
}

func (kv *memoryKV) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return kv.now().Add(ttl)
}

type memoryPaymentLock struct {
	kv *memoryKV
}

func NewMemoryPaymentLock() PaymentLock {
	return &memoryPaymentLock{kv: newMemoryKV()}
}

func (l *memoryPaymentLock) Acquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	l.kv.mu.Lock()
	defer l.kv.mu.Unlock()

	l.kv.sweep()
	if _, held := l.kv.live(key); held {
		return "", customError.WrapPaymentInProgress(key)
	}

	token := uuid.NewString()
	l.kv.entries[key] = memoryEntry{value: token, expiresAt: l.kv.expiry(ttl)}
	return token, nil
}

func (l *memoryPaymentLock) Release(_ context.Context, key, token string) error {
	l.kv.mu.Lock()
	defer l.kv.mu.Unlock()

	if entry, ok := l.kv.live(key); ok && entry.value == token {
		delete(l.kv.entries, key)
	}
	return nil
}

type memoryIdempotencyStore struct {
	kv *memoryKV
}

func NewMemoryIdempotencyStore() IdempotencyStore {
	return &memoryIdempotencyStore{kv: newMemoryKV()}
}

func (s *memoryIdempotencyStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.kv.mu.Lock()
	defer s.kv.mu.Unlock()

	s.kv.sweep()
	if _, exists := s.kv.live(key); exists {
		return false, nil
	}
	s.kv.entries[key] = memoryEntry{value: pendingMarker, expiresAt: s.kv.expiry(ttl)}
	return true, nil
}

func (s *memoryIdempotencyStore) Complete(_ context.Context, key string, result *domain.AllocationResult, ttl time.Duration) error {
	s.kv.mu.Lock()
	defer s.kv.mu.Unlock()

	s.kv.sweep()
	stored := *result
	s.kv.entries[key] = memoryEntry{result: &stored, expiresAt: s.kv.expiry(ttl)}
	return nil
}

func (s *memoryIdempotencyStore) Lookup(_ context.Context, key string) (*domain.AllocationResult, error) {
	s.kv.mu.Lock()
	defer s.kv.mu.Unlock()

	entry, ok := s.kv.live(key)
	if !ok || entry.result == nil {
		return nil, nil
	}
	result := *entry.result
	return &result, nil
}

func (s *memoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.kv.mu.Lock()
	defer s.kv.mu.Unlock()

	delete(s.kv.entries, key)
	return nil
}
