package ledger

import (
	"context"

	"github.com/schoolyard/pocketledger/internal/money"
)

// WalletStore persists wallet balance rows. CompareAndSwapBalance is the
// only write path: it must atomically write the new balance, apply the
// counter deltas, advance the sequence, stamp the last-transaction time and
// append the transaction record, or do none of it.
type WalletStore interface {
	// GetOrCreate returns the wallet for the key, lazily creating an
	// active zero-balance wallet on first use.
	GetOrCreate(ctx context.Context, key WalletKey) (Wallet, error)

	// Get returns the wallet without creating it. ErrWalletNotFound when
	// no transaction has ever touched the student.
	Get(ctx context.Context, key WalletKey) (Wallet, error)

	// CompareAndSwapBalance commits the swap and the record only if the
	// stored balance still equals expectedBefore and the stored sequence
	// still equals record.Sequence-1. The sequence guard rejects stale
	// snapshots even when offsetting writes restored the balance. ok=false
	// means another writer got there first and the caller must re-read and
	// recompute.
	CompareAndSwapBalance(ctx context.Context, key WalletKey, expectedBefore, newAfter money.Amount, deltas CounterDeltas, record Transaction) (bool, error)
}

// TransactionLog reads the append-only transaction history. Records enter
// the log exclusively through CompareAndSwapBalance so concurrent appends
// to one wallet are serialized by the same commit that guards its balance.
type TransactionLog interface {
	// ListByStudent returns one page of history, newest first. Pages are
	// 1-based.
	ListByStudent(ctx context.Context, key WalletKey, page, pageSize int) ([]Transaction, error)

	// ListBySequence returns the full history in insertion order, used to
	// verify the before/after chain.
	ListBySequence(ctx context.Context, key WalletKey) ([]Transaction, error)
}

// Storage is the full persistence surface the engine and the query facade
// operate on.
type Storage interface {
	WalletStore
	TransactionLog
}
