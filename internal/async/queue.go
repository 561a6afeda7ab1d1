package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/voxhall/audio-insights/internal/pipeline"
)

// Runner executes the pipeline for one triggering event. Satisfied by
// pipeline.Orchestrator.
type Runner interface {
	Run(ctx context.Context, ev pipeline.Event) error
}

// EventQueue fans triggering events out to a fixed pool of workers, one
// pipeline run per event. Failures are logged and never affect other
// queued events.
type EventQueue struct {
	runner  Runner
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan pipeline.Event
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*EventQueue)

func WithWorkers(n int) Option {
	return func(q *EventQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *EventQueue) {
		if n > 0 {
			q.ch = make(chan pipeline.Event, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *EventQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewEventQueue(runner Runner, logger *slog.Logger, opts ...Option) *EventQueue {
	q := &EventQueue{
		runner:  runner,
		logger:  logger,
		workers: 4,
		// Per-event ceiling. Must exceed the transcription poll timeout
		// or long recordings would be cut off mid-poll.
		timeout: 6 * time.Hour,
		ch:      make(chan pipeline.Event, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *EventQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for ev := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err := q.runner.Run(ctx, ev)
					cancel()

					if err != nil {
						q.logger.Error("pipeline run failed", "worker_id", workerID, "path", ev.Path, "error", err)
					} else {
						q.logger.Info("pipeline run finished", "worker_id", workerID, "path", ev.Path)
					}
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *EventQueue) Enqueue(_ context.Context, ev pipeline.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", ev.Path)
		return nil
	}
	select {
	case q.ch <- ev:
		q.logger.Info("queued recording for processing", "path", ev.Path)
	default:
		q.logger.Warn("queue full, applying backpressure", "path", ev.Path)
		q.ch <- ev
	}
	return nil
}

func (q *EventQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
