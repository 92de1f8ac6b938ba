package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/schoolyard/pocketledger/internal/money"
)

var (
	// ErrInvalidAmount mirrors money.ErrInvalidAmount at the engine boundary.
	ErrInvalidAmount = money.ErrInvalidAmount

	// ErrInvalidTransactionType indicates a transaction kind outside the
	// closed credit/debit/borrow/repay set.
	ErrInvalidTransactionType = errors.New("invalid transaction type")

	// ErrStudentNotFound indicates the (school, student) pair does not
	// resolve to an existing, non-deleted student.
	ErrStudentNotFound = errors.New("student not found")

	// ErrInsufficientBalance occurs when a debit or borrow would take the
	// wallet below zero. The wallet and log are left untouched.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrConcurrentModification indicates another writer changed the wallet
	// between read and write. The engine retries it internally.
	ErrConcurrentModification = errors.New("concurrent wallet modification")

	// ErrStorageUnavailable indicates the storage layer failed or the
	// retry budget was exhausted. The caller may safely retry the whole
	// operation because nothing partial was committed.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrWalletNotFound is returned by Get when no wallet exists yet for
	// the student. Callers that want lazy creation use GetOrCreate.
	ErrWalletNotFound = errors.New("wallet not found")
)

// TransactionType enumerates the four kinds of pocket money transactions.
type TransactionType uint8

const (
	// TypeCredit is money handed in for the student.
	TypeCredit TransactionType = iota + 1
	// TypeDebit is money spent by the student.
	TypeDebit
	// TypeBorrow is a loan taken against the wallet.
	TypeBorrow
	// TypeRepay is a loan repayment into the wallet.
	TypeRepay
)

var typeNames = [...]string{
	TypeCredit: "credit",
	TypeDebit:  "debit",
	TypeBorrow: "borrow",
	TypeRepay:  "repay",
}

// ParseTransactionType converts the wire representation into a
// TransactionType, failing with ErrInvalidTransactionType for anything
// outside the enumeration.
func ParseTransactionType(s string) (TransactionType, error) {
	for t := TypeCredit; t <= TypeRepay; t++ {
		if typeNames[t] == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTransactionType, s)
}

// Valid reports whether the type is a member of the enumeration.
func (t TransactionType) Valid() bool {
	return t >= TypeCredit && t <= TypeRepay
}

// Sign is +1 for balance-increasing kinds (credit, repay) and -1 for
// balance-decreasing kinds (debit, borrow).
func (t TransactionType) Sign() int64 {
	switch t {
	case TypeCredit, TypeRepay:
		return 1
	case TypeDebit, TypeBorrow:
		return -1
	default:
		return 0
	}
}

func (t TransactionType) String() string {
	if t.Valid() {
		return typeNames[t]
	}
	return fmt.Sprintf("transaction_type(%d)", uint8(t))
}

// WalletKey identifies the one wallet a student holds within a school.
type WalletKey struct {
	SchoolID  string
	StudentID string
}

// Wallet is the durable balance record for one student in one school.
// Balance always equals the sum of credits and repayments minus the sum of
// debits and borrows over the wallet's committed transactions.
type Wallet struct {
	Key               WalletKey
	Balance           money.Amount
	TotalCredited     money.Amount
	TotalDebited      money.Amount
	Active            bool
	Sequence          int64
	LastTransactionAt time.Time
	CreatedAt         time.Time
}

// Transaction is one immutable balance-changing event. Corrections are
// recorded as new offsetting transactions, never by editing history.
type Transaction struct {
	ID               string
	Wallet           WalletKey
	Sequence         int64
	Type             TransactionType
	Amount           money.Amount
	BalanceBefore    money.Amount
	BalanceAfter     money.Amount
	Description      string
	ReferenceNumber  string
	RelatedStudentID string
	ActorID          string
	RecordedAt       time.Time
}

// CounterDeltas carries the lifetime counter updates that accompany a
// balance swap. Borrows count as debited, repayments as credited.
type CounterDeltas struct {
	Credited money.Amount
	Debited  money.Amount
}

func deltasFor(t TransactionType, amount money.Amount) CounterDeltas {
	if t.Sign() > 0 {
		return CounterDeltas{Credited: amount}
	}
	return CounterDeltas{Debited: amount}
}
