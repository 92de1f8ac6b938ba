package pocket

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/schoolyard/pocketledger/internal/ledger"
	"github.com/schoolyard/pocketledger/internal/middleware"
	"github.com/schoolyard/pocketledger/internal/money"
)

// Handler exposes the pocket money HTTP endpoints.
type Handler struct {
	engine *ledger.Engine
	query  *ledger.Query
}

// NewHandler builds the pocket money HTTP handler.
func NewHandler(engine *ledger.Engine, query *ledger.Query) *Handler {
	return &Handler{engine: engine, query: query}
}

type transactionRequest struct {
	Type             string          `json:"type"`
	Amount           decimal.Decimal `json:"amount"`
	Description      string          `json:"description"`
	ReferenceNumber  string          `json:"reference_number"`
	RelatedStudentID string          `json:"related_student_id"`
}

type transactionResponse struct {
	ID               string `json:"id"`
	Sequence         int64  `json:"sequence"`
	Type             string `json:"type"`
	Amount           string `json:"amount"`
	BalanceBefore    string `json:"balance_before"`
	BalanceAfter     string `json:"balance_after"`
	Description      string `json:"description"`
	ReferenceNumber  string `json:"reference_number,omitempty"`
	RelatedStudentID string `json:"related_student_id,omitempty"`
	ActorID          string `json:"actor_user_id"`
	RecordedAt       string `json:"recorded_at"`
}

// Record applies one transaction to the student's wallet.
func (h *Handler) Record(c *fiber.Ctx) error {
	var req transactionRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid_request", err.Error())
	}

	kind, err := ledger.ParseTransactionType(req.Type)
	if err != nil {
		return ledgerError(c, err)
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		return ledgerError(c, err)
	}

	actor, _ := c.Locals(middleware.ActorLocal).(string)
	record, err := h.engine.Apply(c.UserContext(), ledger.ApplyInput{
		SchoolID:         c.Params("schoolId"),
		StudentID:        c.Params("studentId"),
		Type:             kind,
		Amount:           amount,
		Description:      req.Description,
		ReferenceNumber:  req.ReferenceNumber,
		RelatedStudentID: req.RelatedStudentID,
		ActorID:          actor,
	})
	if err != nil {
		return ledgerError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(toResponse(record))
}

// Summary returns the wallet balance and lifetime counters.
func (h *Handler) Summary(c *fiber.Ctx) error {
	summary, err := h.query.WalletSummary(c.UserContext(), c.Params("schoolId"), c.Params("studentId"))
	if err != nil {
		return ledgerError(c, err)
	}

	resp := fiber.Map{
		"balance":        summary.Balance.String(),
		"total_credited": summary.TotalCredited.String(),
		"total_debited":  summary.TotalDebited.String(),
		"active":         summary.Active,
	}
	if !summary.LastTransactionAt.IsZero() {
		resp["last_transaction_at"] = summary.LastTransactionAt.Format(time.RFC3339Nano)
	}
	return c.Status(http.StatusOK).JSON(resp)
}

// History returns one page of the transaction log, newest first.
func (h *Handler) History(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := c.QueryInt("page_size", 0)

	records, err := h.query.History(c.UserContext(), c.Params("schoolId"), c.Params("studentId"), page, pageSize)
	if err != nil {
		return ledgerError(c, err)
	}

	out := make([]transactionResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toResponse(record))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"page":         page,
		"transactions": out,
	})
}

func toResponse(record ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:               record.ID,
		Sequence:         record.Sequence,
		Type:             record.Type.String(),
		Amount:           record.Amount.String(),
		BalanceBefore:    record.BalanceBefore.String(),
		BalanceAfter:     record.BalanceAfter.String(),
		Description:      record.Description,
		ReferenceNumber:  record.ReferenceNumber,
		RelatedStudentID: record.RelatedStudentID,
		ActorID:          record.ActorID,
		RecordedAt:       record.RecordedAt.Format(time.RFC3339Nano),
	}
}

// ledgerError maps the engine's error taxonomy onto stable HTTP codes and
// messages, never exposing raw storage errors.
func ledgerError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		return errorResponse(c, http.StatusBadRequest, "invalid_amount", "amount must be a positive value with at most 2 decimal places")
	case errors.Is(err, ledger.ErrInvalidTransactionType):
		return errorResponse(c, http.StatusBadRequest, "invalid_transaction_type", "type must be one of credit, debit, borrow, repay")
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return errorResponse(c, http.StatusBadRequest, "insufficient_balance", "the wallet balance does not cover this transaction")
	case errors.Is(err, ledger.ErrStudentNotFound):
		return errorResponse(c, http.StatusNotFound, "student_not_found", "no such student in this school")
	case errors.Is(err, ledger.ErrStorageUnavailable):
		return errorResponse(c, http.StatusServiceUnavailable, "storage_unavailable", "the ledger is temporarily unavailable, retry the request")
	default:
		return errorResponse(c, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}

func errorResponse(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}
