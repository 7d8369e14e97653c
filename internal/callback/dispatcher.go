package callback

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sink is one destination for reports. Deliver is called at most once per
// report; failures are logged by the dispatcher and never retried.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, p Payload) error
}

// Dispatcher delivers reports in the background through a bounded queue and
// a fixed set of workers, so a burst of reports cannot open an unbounded
// number of outbound connections.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	logger  *slog.Logger
	queue   chan Payload
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(sinks []Sink, workers, queueSize int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	d := &Dispatcher{
		sinks:   sinks,
		timeout: timeout,
		logger:  logger,
		queue:   make(chan Payload, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Submit enqueues a report without blocking. It returns false, and the
// report is dropped, when the queue is full or the dispatcher is closed.
func (d *Dispatcher) Submit(p Payload) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("report dropped, dispatcher closed", "session_id", p.SessionID)
		return false
	}
	select {
	case d.queue <- p:
		return true
	default:
		d.logger.Error("report dropped, delivery queue full", "session_id", p.SessionID, "queue_size", cap(d.queue))
		return false
	}
}

// Pending is the number of queued, not yet delivered reports.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Close stops accepting reports and waits for queued ones to be delivered,
// or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for p := range d.queue {
		d.deliver(p)
	}
}

func (d *Dispatcher) deliver(p Payload) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		start := time.Now()
		err := sink.Deliver(ctx, p)
		cancel()

		if err != nil {
			d.logger.Error("report delivery failed",
				"sink", sink.Name(),
				"session_id", p.SessionID,
				"error", err,
			)
			continue
		}
		d.logger.Info("report delivered",
			"sink", sink.Name(),
			"session_id", p.SessionID,
			"intel_count", p.ExtractedIntelligence.Count(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}
