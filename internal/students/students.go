package students

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory answers whether a student currently exists in a school. It is
// backed by the student records store owned by the wider application;
// soft-deleted students do not exist for ledger purposes.
type Directory interface {
	Exists(ctx context.Context, schoolID, studentID string) (bool, error)
}

// PostgresDirectory implements Directory against the students table.
type PostgresDirectory struct {
	db *pgxpool.Pool
}

// NewPostgresDirectory builds a Postgres-backed student directory.
func NewPostgresDirectory(db *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// Exists reports whether the student is present and not soft-deleted.
func (d *PostgresDirectory) Exists(ctx context.Context, schoolID, studentID string) (bool, error) {
	school, err := uuid.Parse(schoolID)
	if err != nil {
		return false, nil
	}
	student, err := uuid.Parse(studentID)
	if err != nil {
		return false, nil
	}
	const query = `SELECT EXISTS (
        SELECT 1 FROM students
        WHERE id = $1 AND school_id = $2 AND deleted_at IS NULL)`
	var exists bool
	if err := d.db.QueryRow(ctx, query, student, school).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
