package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/schoolyard/pocketledger/internal/money"
)

type memoryStorage struct {
	mu      sync.RWMutex
	wallets map[WalletKey]Wallet
	records map[WalletKey][]Transaction

	// commitHook, when set, runs inside the commit critical section after
	// the CAS check passes and before any state mutates. Used by tests to
	// inject storage failures.
	commitHook func() error
}

// NewMemoryStorage creates a concurrency-safe in-memory Storage used by
// tests and dev mode.
func NewMemoryStorage() Storage {
	return &memoryStorage{
		wallets: make(map[WalletKey]Wallet),
		records: make(map[WalletKey][]Transaction),
	}
}

func (s *memoryStorage) GetOrCreate(_ context.Context, key WalletKey) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.wallets[key]; ok {
		return w, nil
	}
	w := Wallet{Key: key, Active: true, CreatedAt: time.Now().UTC()}
	s.wallets[key] = w
	return w, nil
}

func (s *memoryStorage) Get(_ context.Context, key WalletKey) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[key]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (s *memoryStorage) CompareAndSwapBalance(_ context.Context, key WalletKey, expectedBefore, newAfter money.Amount, deltas CounterDeltas, record Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[key]
	if !ok {
		return false, ErrWalletNotFound
	}
	// The sequence guard catches offsetting writes that return the balance
	// to expectedBefore between the caller's read and this swap.
	if w.Balance != expectedBefore || record.Sequence != w.Sequence+1 {
		return false, nil
	}
	if s.commitHook != nil {
		if err := s.commitHook(); err != nil {
			return false, err
		}
	}

	w.Balance = newAfter
	w.TotalCredited += deltas.Credited
	w.TotalDebited += deltas.Debited
	w.Sequence = record.Sequence
	w.LastTransactionAt = record.RecordedAt
	s.wallets[key] = w
	s.records[key] = append(s.records[key], record)
	return true, nil
}

func (s *memoryStorage) ListByStudent(_ context.Context, key WalletKey, page, pageSize int) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.records[key]
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	// Newest first.
	start := len(all) - page*pageSize
	end := start + pageSize
	if end <= 0 {
		return nil, nil
	}
	if start < 0 {
		start = 0
	}

	out := make([]Transaction, 0, end-start)
	for i := end - 1; i >= start; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *memoryStorage) ListBySequence(_ context.Context, key WalletKey) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.records[key]
	out := make([]Transaction, len(all))
	copy(out, all)
	return out, nil
}
