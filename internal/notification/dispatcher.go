package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/skaet/ussd_bank/internal/logging"
)

var (
	// ErrQueueFull is returned by Dispatcher.Send when every buffer slot is taken.
	ErrQueueFull = errors.New("notification queue full")
	// ErrDispatcherStopped is returned after Shutdown.
	ErrDispatcherStopped = errors.New("notification dispatcher stopped")
)

type job struct {
	message Message
}

// Dispatcher decouples request handling from SMS delivery: Send enqueues and
// returns, a fixed pool of workers drains the queue through the wrapped Notifier.
type Dispatcher struct {
	next    Notifier
	jobs    chan job
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher builds a dispatcher with the given queue size. Each delivery
// runs under its own timeout since the enqueuing request has already returned.
func NewDispatcher(next Notifier, bufferSize int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Dispatcher{
		next:    next,
		jobs:    make(chan job, bufferSize),
		logger:  logger,
		timeout: timeout,
	}
}

// Start launches workerCount workers.
func (d *Dispatcher) Start(workerCount int) {
	if workerCount <= 0 {
		workerCount = 1
	}
	for i := 0; i < workerCount; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for j := range d.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.next.Send(ctx, j.message)
		cancel()
		if err != nil && d.logger != nil {
			d.logger.Error("notification delivery failed",
				"kind", j.message.Kind,
				logging.Phone(j.message.Destination),
				"error", err,
			)
		}
	}
}

// Send enqueues message without blocking. A full queue or a stopped
// dispatcher drops the message and reports an error.
func (d *Dispatcher) Send(_ context.Context, message Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherStopped
	}
	select {
	case d.jobs <- job{message: message}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting messages and waits for queued deliveries to drain.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}
