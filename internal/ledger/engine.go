package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/schoolyard/pocketledger/internal/audit"
	"github.com/schoolyard/pocketledger/internal/money"
	"github.com/schoolyard/pocketledger/internal/students"
)

// maxApplyAttempts bounds the compare-and-swap retry loop before the
// engine gives up and reports the storage as unavailable.
const maxApplyAttempts = 5

// ApplyInput carries one requested transaction.
type ApplyInput struct {
	SchoolID         string
	StudentID        string
	Type             TransactionType
	Amount           money.Amount
	Description      string
	ReferenceNumber  string
	RelatedStudentID string
	ActorID          string
}

// Engine validates and atomically applies pocket money transactions.
type Engine struct {
	storage  Storage
	students students.Directory
	auditor  audit.Emitter
	logger   *slog.Logger
}

// NewEngine builds the ledger engine. The audit emitter may be nil, in
// which case ledger mutations are applied without audit coverage.
func NewEngine(storage Storage, directory students.Directory, auditor audit.Emitter, logger *slog.Logger) *Engine {
	return &Engine{storage: storage, students: directory, auditor: auditor, logger: logger}
}

// Apply validates the request and applies it to the student's wallet as a
// single atomic unit. On success the committed transaction record is
// returned; on any error the wallet and log are exactly as they were.
func (e *Engine) Apply(ctx context.Context, input ApplyInput) (Transaction, error) {
	if !input.Type.Valid() {
		return Transaction{}, fmt.Errorf("%w: %d", ErrInvalidTransactionType, input.Type)
	}
	if input.Amount <= 0 || input.Amount > money.MaxAmount {
		return Transaction{}, fmt.Errorf("%w: %s", ErrInvalidAmount, input.Amount)
	}
	if strings.TrimSpace(input.SchoolID) == "" || strings.TrimSpace(input.StudentID) == "" {
		return Transaction{}, ErrStudentNotFound
	}

	exists, err := e.students.Exists(ctx, input.SchoolID, input.StudentID)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: student lookup: %v", ErrStorageUnavailable, err)
	}
	if !exists {
		return Transaction{}, fmt.Errorf("%w: %s in school %s", ErrStudentNotFound, input.StudentID, input.SchoolID)
	}

	key := WalletKey{SchoolID: input.SchoolID, StudentID: input.StudentID}
	delta := input.Type.Sign() * int64(input.Amount)

	for attempt := 1; attempt <= maxApplyAttempts; attempt++ {
		wallet, err := e.storage.GetOrCreate(ctx, key)
		if err != nil {
			return Transaction{}, fmt.Errorf("%w: read wallet: %v", ErrStorageUnavailable, err)
		}

		before := wallet.Balance
		after := money.Amount(int64(before) + delta)
		if after < 0 {
			return Transaction{}, fmt.Errorf("%w: balance %s, %s of %s requested",
				ErrInsufficientBalance, before, input.Type, input.Amount)
		}

		record := Transaction{
			ID:               uuid.NewString(),
			Wallet:           key,
			Sequence:         wallet.Sequence + 1,
			Type:             input.Type,
			Amount:           input.Amount,
			BalanceBefore:    before,
			BalanceAfter:     after,
			Description:      input.Description,
			ReferenceNumber:  input.ReferenceNumber,
			RelatedStudentID: input.RelatedStudentID,
			ActorID:          input.ActorID,
			RecordedAt:       time.Now().UTC(),
		}

		ok, err := e.storage.CompareAndSwapBalance(ctx, key, before, after, deltasFor(input.Type, input.Amount), record)
		if err != nil {
			return Transaction{}, fmt.Errorf("%w: commit: %v", ErrStorageUnavailable, err)
		}
		if !ok {
			// Another writer advanced the wallet between read and write.
			if e.logger != nil {
				e.logger.Debug("wallet swap contention",
					"school_id", key.SchoolID,
					"student_id", key.StudentID,
					"attempt", attempt,
					"error", ErrConcurrentModification)
			}
			continue
		}

		e.emitAudit(ctx, record)
		return record, nil
	}

	return Transaction{}, fmt.Errorf("%w: %v after %d attempts", ErrStorageUnavailable, ErrConcurrentModification, maxApplyAttempts)
}

// emitAudit forwards a summary of the committed transaction to the audit
// sink. Emission is best-effort: the transaction is already durable and a
// sink failure only produces a reliability warning.
func (e *Engine) emitAudit(ctx context.Context, record Transaction) {
	if e.auditor == nil {
		return
	}
	err := e.auditor.Emit(ctx, audit.Record{
		SchoolID:  record.Wallet.SchoolID,
		StudentID: record.Wallet.StudentID,
		ActorID:   record.ActorID,
		Action:    audit.ActionTransaction,
		Changes: audit.Changes{
			Type:         record.Type.String(),
			Amount:       record.Amount.String(),
			BalanceAfter: record.BalanceAfter.String(),
		},
		Timestamp: record.RecordedAt,
	})
	if err != nil && e.logger != nil {
		e.logger.Warn("audit emission failed",
			"school_id", record.Wallet.SchoolID,
			"student_id", record.Wallet.StudentID,
			"transaction_id", record.ID,
			"error", err)
	}
}
