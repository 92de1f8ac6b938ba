package pocket

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/schoolyard/pocketledger/internal/ledger"
	"github.com/schoolyard/pocketledger/internal/logging"
	"github.com/schoolyard/pocketledger/internal/middleware"
	"github.com/schoolyard/pocketledger/internal/students"
)

func setupApp(t *testing.T) (*fiber.App, ledger.WalletKey) {
	t.Helper()

	storage := ledger.NewMemoryStorage()
	directory := students.NewMemoryDirectory()
	key := ledger.WalletKey{SchoolID: uuid.NewString(), StudentID: uuid.NewString()}
	directory.Add(key.SchoolID, key.StudentID)

	logger := logging.Discard()
	engine := ledger.NewEngine(storage, directory, nil, logger)
	handler := NewHandler(engine, ledger.NewQuery(storage, directory))

	app := fiber.New()
	api := app.Group("/api/v1", middleware.ActorContext())
	base := "/schools/:schoolId/students/:studentId/pocket"
	api.Post(base+"/transactions", handler.Record)
	api.Get(base+"/transactions", handler.History)
	api.Get(base+"/summary", handler.Summary)

	return app, key
}

func doPost(t *testing.T, app *fiber.App, key ledger.WalletKey, body string) (int, map[string]any) {
	t.Helper()
	url := fmt.Sprintf("/api/v1/schools/%s/students/%s/pocket/transactions", key.SchoolID, key.StudentID)
	req := httptest.NewRequest(fiber.MethodPost, url, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Actor-ID", "staff-1")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var decoded map[string]any
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &decoded); err != nil {
			t.Fatalf("invalid json %q: %v", payload, err)
		}
	}
	return resp.StatusCode, decoded
}

func doGet(t *testing.T, app *fiber.App, url string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, url, nil)
	req.Header.Set("X-Actor-ID", "staff-1")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("invalid json %q: %v", payload, err)
	}
	return resp.StatusCode, decoded
}

func TestRecordRequiresActorHeader(t *testing.T) {
	app, key := setupApp(t)

	url := fmt.Sprintf("/api/v1/schools/%s/students/%s/pocket/transactions", key.SchoolID, key.StudentID)
	req := httptest.NewRequest(fiber.MethodPost, url, strings.NewReader(`{"type":"credit","amount":"100.00"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRecordCreditAndDebit(t *testing.T) {
	app, key := setupApp(t)

	status, body := doPost(t, app, key, `{"type":"credit","amount":"1000.00","description":"term top-up"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", status, body)
	}
	if body["balance_after"] != "1000.00" || body["balance_before"] != "0.00" {
		t.Fatalf("credit chain wrong: %v", body)
	}
	if body["actor_user_id"] != "staff-1" {
		t.Fatalf("actor not recorded: %v", body)
	}

	// Amount as a JSON number is accepted too.
	status, body = doPost(t, app, key, `{"type":"debit","amount":400,"description":"lunch"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", status, body)
	}
	if body["balance_after"] != "600.00" {
		t.Fatalf("expected balance 600.00, got %v", body["balance_after"])
	}
}

func TestRecordErrorMapping(t *testing.T) {
	app, key := setupApp(t)

	cases := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "zero amount",
			body:       `{"type":"credit","amount":"0"}`,
			wantStatus: fiber.StatusBadRequest,
			wantCode:   "invalid_amount",
		},
		{
			name:       "over-scaled amount",
			body:       `{"type":"credit","amount":"10.005"}`,
			wantStatus: fiber.StatusBadRequest,
			wantCode:   "invalid_amount",
		},
		{
			name:       "unknown type",
			body:       `{"type":"withdrawal","amount":"10.00"}`,
			wantStatus: fiber.StatusBadRequest,
			wantCode:   "invalid_transaction_type",
		},
		{
			name:       "insufficient balance",
			body:       `{"type":"debit","amount":"50.00"}`,
			wantStatus: fiber.StatusBadRequest,
			wantCode:   "insufficient_balance",
		},
	}

	for _, tc := range cases {
		status, body := doPost(t, app, key, tc.body)
		if status != tc.wantStatus {
			t.Fatalf("%s: expected %d, got %d: %v", tc.name, tc.wantStatus, status, body)
		}
		if body["error"] != tc.wantCode {
			t.Fatalf("%s: expected code %s, got %v", tc.name, tc.wantCode, body["error"])
		}
	}

	// Unknown student maps to 404.
	unknown := ledger.WalletKey{SchoolID: key.SchoolID, StudentID: uuid.NewString()}
	status, body := doPost(t, app, unknown, `{"type":"credit","amount":"10.00"}`)
	if status != fiber.StatusNotFound || body["error"] != "student_not_found" {
		t.Fatalf("expected 404 student_not_found, got %d %v", status, body)
	}
}

func TestSummaryAndHistory(t *testing.T) {
	app, key := setupApp(t)

	doPost(t, app, key, `{"type":"credit","amount":"500.00"}`)
	doPost(t, app, key, `{"type":"borrow","amount":"200.00"}`)

	status, body := doGet(t, app, fmt.Sprintf("/api/v1/schools/%s/students/%s/pocket/summary", key.SchoolID, key.StudentID))
	if status != fiber.StatusOK {
		t.Fatalf("summary status %d: %v", status, body)
	}
	if body["balance"] != "300.00" || body["total_credited"] != "500.00" || body["total_debited"] != "200.00" {
		t.Fatalf("summary wrong: %v", body)
	}

	status, body = doGet(t, app, fmt.Sprintf("/api/v1/schools/%s/students/%s/pocket/transactions?page=1&page_size=10", key.SchoolID, key.StudentID))
	if status != fiber.StatusOK {
		t.Fatalf("history status %d: %v", status, body)
	}
	items, ok := body["transactions"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 history records, got %v", body["transactions"])
	}
	first, _ := items[0].(map[string]any)
	if first["type"] != "borrow" {
		t.Fatalf("history not newest-first: %v", first)
	}
}
