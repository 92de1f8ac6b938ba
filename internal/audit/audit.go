package audit

import (
	"context"
	"log/slog"
	"time"
)

// ActionTransaction is the action name attached to every ledger mutation.
const ActionTransaction = "transaction"

// Changes summarizes what a ledger transaction did to the wallet.
type Changes struct {
	Type         string `json:"type"`
	Amount       string `json:"amount"`
	BalanceAfter string `json:"balance_after"`
}

// Record is the structured change record pushed to the school-wide audit
// trail after a ledger commit.
type Record struct {
	SchoolID  string    `json:"school_id"`
	StudentID string    `json:"student_id"`
	ActorID   string    `json:"actor_user_id"`
	Action    string    `json:"action"`
	Changes   Changes   `json:"changes"`
	Timestamp time.Time `json:"timestamp"`
}

// Emitter forwards audit records to a sink.
type Emitter interface {
	Emit(ctx context.Context, record Record) error
}

// LogEmitter writes audit records to the structured logger. It backs dev
// mode and tests where no external sink is configured.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter constructs a logging audit sink.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

// Emit writes the record to the logger.
func (e *LogEmitter) Emit(_ context.Context, record Record) error {
	if e == nil || e.logger == nil {
		return nil
	}
	e.logger.Info("audit record",
		"school_id", record.SchoolID,
		"student_id", record.StudentID,
		"actor_user_id", record.ActorID,
		"action", record.Action,
		"type", record.Changes.Type,
		"amount", record.Changes.Amount,
		"balance_after", record.Changes.BalanceAfter,
		"timestamp", record.Timestamp)
	return nil
}
