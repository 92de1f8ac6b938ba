package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	dispatchQueueSize    = 256
	deliveryAttempts     = 3
	deliveryTimeout      = 2 * time.Second
	deliveryRetryBackoff = 100 * time.Millisecond
)

// Dispatcher decouples audit emission from the ledger commit path. Emit
// never blocks: records are queued and delivered by a background worker
// with bounded retries. A transient sink failure therefore cannot roll
// back or slow down an already-committed financial transaction; undeliverable
// records are logged as reliability warnings.
type Dispatcher struct {
	sink   Emitter
	logger *slog.Logger
	queue  chan Record

	// mu orders Emit sends against the queue close so a late Emit drops
	// the record instead of panicking on a closed channel.
	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
	done      chan struct{}
}

// NewDispatcher starts the delivery worker in front of the sink.
func NewDispatcher(sink Emitter, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		sink:   sink,
		logger: logger,
		queue:  make(chan Record, dispatchQueueSize),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Emit enqueues the record for asynchronous delivery. It never returns an
// error: a full queue or a closed dispatcher drops the record with a
// warning instead.
func (d *Dispatcher) Emit(_ context.Context, record Record) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("audit dispatcher closed, record dropped",
			"school_id", record.SchoolID,
			"student_id", record.StudentID,
			"action", record.Action)
		return nil
	}
	select {
	case d.queue <- record:
	default:
		d.logger.Warn("audit queue full, record dropped",
			"school_id", record.SchoolID,
			"student_id", record.StudentID,
			"action", record.Action)
	}
	return nil
}

// Close stops accepting records and drains the queue.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
		<-d.done
	})
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for record := range d.queue {
		d.deliver(record)
	}
}

func (d *Dispatcher) deliver(record Record) {
	var err error
	for attempt := 1; attempt <= deliveryAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		err = d.sink.Emit(ctx, record)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(deliveryRetryBackoff * time.Duration(attempt))
	}
	d.logger.Warn("audit delivery failed",
		"school_id", record.SchoolID,
		"student_id", record.StudentID,
		"action", record.Action,
		"attempts", deliveryAttempts,
		"error", err)
}
