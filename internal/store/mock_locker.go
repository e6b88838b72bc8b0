package store

import (
	"context"
	"sync"
	"time"

	"github.com/notemirror/notemirror/internal/model"
)

// MockLocker implements Locker using an in-memory map for testing.
type MockLocker struct {
	locks       map[string]*model.RunLock
	mu          sync.Mutex
	ttlDuration time.Duration
}

// NewMockLocker creates a new MockLocker with the default TTL.
func NewMockLocker() *MockLocker {
	return &MockLocker{
		locks:       make(map[string]*model.RunLock),
		ttlDuration: DefaultLockTTL,
	}
}

func (m *MockLocker) Acquire(ctx context.Context, accountID, ownerID string) (*model.RunLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().Unix()
	if existing, ok := m.locks[accountID]; ok {
		if existing.ExpiresAt > now && existing.OwnerID != ownerID {
			return nil, ErrLocked
		}
	}

	lock := &model.RunLock{
		AccountID: accountID,
		OwnerID:   ownerID,
		ExpiresAt: now + int64(m.ttlDuration.Seconds()),
	}
	m.locks[accountID] = lock
	return lock, nil
}

func (m *MockLocker) Extend(ctx context.Context, accountID, ownerID string) (*model.RunLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[accountID]
	if !ok || existing.OwnerID != ownerID {
		return nil, ErrLocked
	}

	existing.ExpiresAt = time.Now().Unix() + int64(m.ttlDuration.Seconds())
	return existing, nil
}

func (m *MockLocker) Release(ctx context.Context, accountID, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[accountID]
	if !ok || existing.OwnerID != ownerID {
		return ErrLocked
	}

	delete(m.locks, accountID)
	return nil
}

func (m *MockLocker) Status(ctx context.Context, accountID string) (*model.RunLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[accountID]
	if !ok {
		return nil, nil
	}
	if existing.ExpiresAt < time.Now().Unix() {
		return nil, nil
	}
	return existing, nil
}
