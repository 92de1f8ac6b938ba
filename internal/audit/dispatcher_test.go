package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/schoolyard/pocketledger/internal/logging"
)

type recordingEmitter struct {
	mu       sync.Mutex
	failures int
	records  []Record
}

func (e *recordingEmitter) Emit(_ context.Context, record Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failures > 0 {
		e.failures--
		return errors.New("sink down")
	}
	e.records = append(e.records, record)
	return nil
}

func (e *recordingEmitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.records)
}

func testRecord() Record {
	return Record{
		SchoolID:  "school-1",
		StudentID: "student-1",
		ActorID:   "staff-1",
		Action:    ActionTransaction,
		Changes:   Changes{Type: "credit", Amount: "100.00", BalanceAfter: "100.00"},
		Timestamp: time.Now().UTC(),
	}
}

func TestDispatcherDeliversAsync(t *testing.T) {
	sink := &recordingEmitter{}
	d := NewDispatcher(sink, logging.Discard())

	if err := d.Emit(context.Background(), testRecord()); err != nil {
		t.Fatalf("emit: %v", err)
	}
	d.Close()

	if sink.count() != 1 {
		t.Fatalf("expected 1 delivered record, got %d", sink.count())
	}
}

func TestDispatcherRetriesTransientFailures(t *testing.T) {
	sink := &recordingEmitter{failures: 2}
	d := NewDispatcher(sink, logging.Discard())

	if err := d.Emit(context.Background(), testRecord()); err != nil {
		t.Fatalf("emit: %v", err)
	}
	d.Close()

	if sink.count() != 1 {
		t.Fatalf("expected delivery after retries, got %d records", sink.count())
	}
}

func TestDispatcherNeverFailsTheCaller(t *testing.T) {
	// A permanently broken sink must not surface an error to the commit
	// path.
	sink := &recordingEmitter{failures: 1 << 30}
	d := NewDispatcher(sink, logging.Discard())

	if err := d.Emit(context.Background(), testRecord()); err != nil {
		t.Fatalf("emit must be best-effort, got %v", err)
	}
	d.Close()
}

func TestDispatcherEmitAfterCloseDropsRecord(t *testing.T) {
	sink := &recordingEmitter{}
	d := NewDispatcher(sink, logging.Discard())
	d.Close()

	if err := d.Emit(context.Background(), testRecord()); err != nil {
		t.Fatalf("emit after close: %v", err)
	}
	if sink.count() != 0 {
		t.Fatalf("closed dispatcher delivered %d records", sink.count())
	}
	// Close stays idempotent.
	d.Close()
}

func TestStreamEmitterAppendsToStream(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	emitter := NewStreamEmitter(client, "audit:test")
	ctx := context.Background()

	if err := emitter.Emit(ctx, testRecord()); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if err := emitter.Emit(ctx, testRecord()); err != nil {
		t.Fatalf("second emit: %v", err)
	}

	entries, err := client.XRange(ctx, "audit:test", "-", "+").Result()
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 stream entries, got %d", len(entries))
	}
	values := entries[0].Values
	if values["school_id"] != "school-1" || values["action"] != ActionTransaction {
		t.Fatalf("unexpected entry values: %+v", values)
	}
	if values["balance_after"] != "100.00" {
		t.Fatalf("balance_after missing: %+v", values)
	}
}
