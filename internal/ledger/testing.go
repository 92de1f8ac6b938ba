package ledger

import (
	"github.com/schoolyard/pocketledger/internal/money"
)

// SeedWallet is a test helper that force-sets a wallet's balance when using
// the in-memory storage, bypassing the transaction path.
func SeedWallet(s Storage, key WalletKey, balance money.Amount) {
	if mem, ok := s.(*memoryStorage); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		w := mem.wallets[key]
		w.Key = key
		w.Active = true
		w.Balance = balance
		mem.wallets[key] = w
	}
}

// SetCommitHook installs a hook that runs inside the in-memory commit
// critical section, letting tests inject a storage failure between the
// balance check and the write.
func SetCommitHook(s Storage, hook func() error) {
	if mem, ok := s.(*memoryStorage); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.commitHook = hook
	}
}
