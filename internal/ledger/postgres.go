package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schoolyard/pocketledger/internal/money"
)

// PostgresStorage persists wallets and their transaction log in PostgreSQL.
//
// Layout: a wallets table unique on (school_id, student_id) holding the
// balance, lifetime counters and sequence, and a wallet_transactions table
// with a per-wallet seq column that makes the before/after chain verifiable
// in insertion order. All amounts are minor-unit bigints.
type PostgresStorage struct {
	db *pgxpool.Pool
}

// NewPostgresStorage constructs a Postgres-backed Storage.
func NewPostgresStorage(db *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{db: db}
}

const walletColumns = `school_id, student_id, balance, total_credited, total_debited, active, seq, last_transaction_at, created_at`

// GetOrCreate returns the wallet row, inserting an active zero-balance row
// on first use.
func (s *PostgresStorage) GetOrCreate(ctx context.Context, key WalletKey) (Wallet, error) {
	schoolID, studentID, err := parseKey(key)
	if err != nil {
		return Wallet{}, err
	}

	_, err = s.db.Exec(ctx, `INSERT INTO wallets (id, school_id, student_id, balance, total_credited, total_debited, active, seq, created_at)
        VALUES ($1, $2, $3, 0, 0, 0, TRUE, 0, $4)
        ON CONFLICT (school_id, student_id) DO NOTHING`,
		uuid.New(), schoolID, studentID, time.Now().UTC())
	if err != nil {
		return Wallet{}, err
	}

	return s.Get(ctx, key)
}

// Get fetches the wallet without creating it.
func (s *PostgresStorage) Get(ctx context.Context, key WalletKey) (Wallet, error) {
	schoolID, studentID, err := parseKey(key)
	if err != nil {
		return Wallet{}, err
	}

	row := s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets
        WHERE school_id = $1 AND student_id = $2`, schoolID, studentID)
	return scanWallet(row)
}

// CompareAndSwapBalance writes the new balance and appends the record in
// one transaction, guarded by balance and sequence equality checks. The
// sequence guard catches offsetting writes that restore the old balance.
// A zero-row update means another writer advanced the wallet first.
func (s *PostgresStorage) CompareAndSwapBalance(ctx context.Context, key WalletKey, expectedBefore, newAfter money.Amount, deltas CounterDeltas, record Transaction) (bool, error) {
	schoolID, studentID, err := parseKey(key)
	if err != nil {
		return false, err
	}
	recordID, err := uuid.Parse(record.ID)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var walletID uuid.UUID
	err = tx.QueryRow(ctx, `UPDATE wallets
        SET balance = $1,
            total_credited = total_credited + $2,
            total_debited = total_debited + $3,
            seq = $4,
            last_transaction_at = $5
        WHERE school_id = $6 AND student_id = $7 AND balance = $8 AND seq = $9
        RETURNING id`,
		int64(newAfter), int64(deltas.Credited), int64(deltas.Debited),
		record.Sequence, record.RecordedAt.UTC(),
		schoolID, studentID, int64(expectedBefore), record.Sequence-1).Scan(&walletID)
	if errors.Is(err, pgx.ErrNoRows) {
		// The wallet moved since the read, or it is missing.
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var related any
	if record.RelatedStudentID != "" {
		relatedID, err := uuid.Parse(record.RelatedStudentID)
		if err != nil {
			return false, err
		}
		related = relatedID
	}

	if _, err := tx.Exec(ctx, `INSERT INTO wallet_transactions
        (id, wallet_id, seq, kind, amount, balance_before, balance_after, description, reference_number, related_student_id, actor_id, recorded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)`,
		recordID, walletID, record.Sequence, record.Type.String(),
		int64(record.Amount), int64(record.BalanceBefore), int64(record.BalanceAfter),
		record.Description, record.ReferenceNumber, related, record.ActorID,
		record.RecordedAt.UTC()); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// ListByStudent returns one page of history, newest first.
func (s *PostgresStorage) ListByStudent(ctx context.Context, key WalletKey, page, pageSize int) ([]Transaction, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	return s.list(ctx, key, `ORDER BY t.seq DESC LIMIT $3 OFFSET $4`, pageSize, (page-1)*pageSize)
}

// ListBySequence returns the full history in insertion order.
func (s *PostgresStorage) ListBySequence(ctx context.Context, key WalletKey) ([]Transaction, error) {
	return s.list(ctx, key, `ORDER BY t.seq ASC`)
}

func (s *PostgresStorage) list(ctx context.Context, key WalletKey, tail string, extra ...any) ([]Transaction, error) {
	schoolID, studentID, err := parseKey(key)
	if err != nil {
		return nil, err
	}

	query := `SELECT t.id, t.seq, t.kind, t.amount, t.balance_before, t.balance_after,
            t.description, COALESCE(t.reference_number, ''), t.related_student_id, t.actor_id, t.recorded_at
        FROM wallet_transactions t
        INNER JOIN wallets w ON w.id = t.wallet_id
        WHERE w.school_id = $1 AND w.student_id = $2 ` + tail
	args := append([]any{schoolID, studentID}, extra...)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var (
			rec        Transaction
			id         uuid.UUID
			kind       string
			amount     int64
			before     int64
			after      int64
			related    *uuid.UUID
			recordedAt time.Time
		)
		if err := rows.Scan(&id, &rec.Sequence, &kind, &amount, &before, &after,
			&rec.Description, &rec.ReferenceNumber, &related, &rec.ActorID, &recordedAt); err != nil {
			return nil, err
		}
		rec.ID = id.String()
		rec.Wallet = key
		rec.Type, err = ParseTransactionType(kind)
		if err != nil {
			return nil, err
		}
		rec.Amount = money.Amount(amount)
		rec.BalanceBefore = money.Amount(before)
		rec.BalanceAfter = money.Amount(after)
		if related != nil {
			rec.RelatedStudentID = related.String()
		}
		rec.RecordedAt = recordedAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func parseKey(key WalletKey) (uuid.UUID, uuid.UUID, error) {
	schoolID, err := uuid.Parse(key.SchoolID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	studentID, err := uuid.Parse(key.StudentID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return schoolID, studentID, nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w         Wallet
		schoolID  uuid.UUID
		studentID uuid.UUID
		balance   int64
		credited  int64
		debited   int64
		lastTx    *time.Time
		createdAt time.Time
	)
	if err := row.Scan(&schoolID, &studentID, &balance, &credited, &debited,
		&w.Active, &w.Sequence, &lastTx, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	w.Key = WalletKey{SchoolID: schoolID.String(), StudentID: studentID.String()}
	w.Balance = money.Amount(balance)
	w.TotalCredited = money.Amount(credited)
	w.TotalDebited = money.Amount(debited)
	if lastTx != nil {
		w.LastTransactionAt = lastTx.UTC()
	}
	w.CreatedAt = createdAt.UTC()
	return w, nil
}
