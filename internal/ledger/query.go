package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schoolyard/pocketledger/internal/money"
	"github.com/schoolyard/pocketledger/internal/students"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Summary is the read-only projection of one wallet.
type Summary struct {
	Balance           money.Amount
	TotalCredited     money.Amount
	TotalDebited      money.Amount
	Active            bool
	LastTransactionAt time.Time
}

// Query is the read-only reporting facade over committed wallet state. It
// never mutates.
type Query struct {
	storage  Storage
	students students.Directory
}

// NewQuery builds the reporting facade.
func NewQuery(storage Storage, directory students.Directory) *Query {
	return &Query{storage: storage, students: directory}
}

// WalletSummary returns the current balance and lifetime counters. A
// student who exists but has no wallet yet gets a zero summary, matching
// lazy wallet creation on first transaction.
func (q *Query) WalletSummary(ctx context.Context, schoolID, studentID string) (Summary, error) {
	if err := q.checkStudent(ctx, schoolID, studentID); err != nil {
		return Summary{}, err
	}

	wallet, err := q.storage.Get(ctx, WalletKey{SchoolID: schoolID, StudentID: studentID})
	if errors.Is(err, ErrWalletNotFound) {
		return Summary{Active: true}, nil
	}
	if err != nil {
		return Summary{}, fmt.Errorf("%w: read wallet: %v", ErrStorageUnavailable, err)
	}
	return Summary{
		Balance:           wallet.Balance,
		TotalCredited:     wallet.TotalCredited,
		TotalDebited:      wallet.TotalDebited,
		Active:            wallet.Active,
		LastTransactionAt: wallet.LastTransactionAt,
	}, nil
}

// History returns one page of committed transactions, newest first.
func (q *Query) History(ctx context.Context, schoolID, studentID string, page, pageSize int) ([]Transaction, error) {
	if err := q.checkStudent(ctx, schoolID, studentID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	records, err := q.storage.ListByStudent(ctx, WalletKey{SchoolID: schoolID, StudentID: studentID}, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: read history: %v", ErrStorageUnavailable, err)
	}
	return records, nil
}

func (q *Query) checkStudent(ctx context.Context, schoolID, studentID string) error {
	exists, err := q.students.Exists(ctx, schoolID, studentID)
	if err != nil {
		return fmt.Errorf("%w: student lookup: %v", ErrStorageUnavailable, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s in school %s", ErrStudentNotFound, studentID, schoolID)
	}
	return nil
}
