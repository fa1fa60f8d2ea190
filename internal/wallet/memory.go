package wallet

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryStore struct {
	mu      sync.RWMutex
	byID    map[string]Wallet
	byOwner map[string]string
	methods map[string]PaymentMethod
}

// NewMemoryStore constructs an in-memory wallet store for tests and dev mode.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{inner: &memoryStore{
		byID:    make(map[string]Wallet),
		byOwner: make(map[string]string),
		methods: make(map[string]PaymentMethod),
	}}
}

// MemoryStore implements Store and MethodStore with a mutex-guarded map. The
// guard on ApplyDelta mirrors the conditional update the Postgres store does.
type MemoryStore struct {
	inner *memoryStore
}

func (s *MemoryStore) Create(_ context.Context, w Wallet) error {
	s.inner.mu.Lock()
	defer s.inner.mu.Unlock()
	if _, exists := s.inner.byOwner[w.OwnerID]; exists {
		return ErrAlreadyExists
	}
	if _, exists := s.inner.byID[w.ID]; exists {
		return ErrAlreadyExists
	}
	s.inner.byID[w.ID] = w
	s.inner.byOwner[w.OwnerID] = w.ID
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Wallet, error) {
	s.inner.mu.RLock()
	defer s.inner.mu.RUnlock()
	w, ok := s.inner.byID[id]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

func (s *MemoryStore) GetByOwner(_ context.Context, ownerID string) (Wallet, error) {
	s.inner.mu.RLock()
	defer s.inner.mu.RUnlock()
	id, ok := s.inner.byOwner[ownerID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return s.inner.byID[id], nil
}

func (s *MemoryStore) ApplyDelta(_ context.Context, walletID string, delta int64) (Wallet, error) {
	s.inner.mu.Lock()
	defer s.inner.mu.Unlock()
	w, ok := s.inner.byID[walletID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	if w.Balance+delta < 0 {
		return Wallet{}, ErrInsufficientFunds
	}
	w.Balance += delta
	w.UpdatedAt = time.Now().UTC()
	s.inner.byID[walletID] = w
	return w, nil
}

func (s *MemoryStore) GetForOwner(_ context.Context, id, ownerID string) (PaymentMethod, error) {
	s.inner.mu.RLock()
	defer s.inner.mu.RUnlock()
	m, ok := s.inner.methods[id]
	if !ok || m.OwnerID != ownerID {
		return PaymentMethod{}, ErrMethodNotFound
	}
	return m, nil
}

func (s *MemoryStore) ListByOwner(_ context.Context, ownerID string) ([]PaymentMethod, error) {
	s.inner.mu.RLock()
	defer s.inner.mu.RUnlock()
	var methods []PaymentMethod
	for _, m := range s.inner.methods {
		if m.OwnerID == ownerID {
			methods = append(methods, m)
		}
	}
	sort.Slice(methods, func(i, j int) bool {
		if methods[i].IsDefault != methods[j].IsDefault {
			return methods[i].IsDefault
		}
		return methods[i].CreatedAt.After(methods[j].CreatedAt)
	})
	return methods, nil
}

// SeedMethod registers a payment method on the in-memory store. Test helper.
func (s *MemoryStore) SeedMethod(m PaymentMethod) {
	s.inner.mu.Lock()
	defer s.inner.mu.Unlock()
	s.inner.methods[m.ID] = m
}
