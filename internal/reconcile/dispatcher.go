package reconcile

import (
	"context"
	"sync"
	"time"

	"vaultbot/internal/domain"
	"vaultbot/internal/infra"
)

const processTimeout = 15 * time.Second

// Dispatcher decouples the webhook from reconciliation. Submit returns once
// the candidate is queued; workers process it afterwards.
type Dispatcher struct {
	processor Processor
	queue     chan domain.Candidate
	workers   int
	logger    infra.Logger

	// mu orders Submit against shutdown: a candidate is either enqueued
	// before stopped is set or rejected with ErrQueueClosed.
	mu      sync.RWMutex
	stopped bool
}

func NewDispatcher(processor Processor, queueSize, workers int, logger infra.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		processor: processor,
		queue:     make(chan domain.Candidate, queueSize),
		workers:   workers,
		logger:    logger,
	}
}

// Submit validates c synchronously and enqueues it. It blocks only while the
// queue is full, until ctx ends. After shutdown it returns ErrQueueClosed.
func (d *Dispatcher) Submit(ctx context.Context, c domain.Candidate) error {
	if err := c.Validate(); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return domain.ErrQueueClosed
	}
	select {
	case d.queue <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the workers and blocks until ctx is cancelled and the queue has
// been drained.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx)
		}()
	}
	<-ctx.Done()
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	wg.Wait()
	// Workers may have drained before the last Submit landed.
	d.drain(ctx)
	d.logger.Info().Msg("dispatcher: stopped")
	return nil
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case c := <-d.queue:
			d.process(ctx, c)
		case <-ctx.Done():
			d.drain(ctx)
			return
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case c := <-d.queue:
			d.process(ctx, c)
		default:
			return
		}
	}
}

// process detaches from ctx cancellation so a candidate that already left
// the queue finishes even during shutdown.
func (d *Dispatcher) process(ctx context.Context, c domain.Candidate) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), processTimeout)
	defer cancel()
	_, _ = d.processor.Process(pctx, c)
}

// Pending returns the number of queued candidates.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}
