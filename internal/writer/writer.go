// Package writer persists generated answers off the request path.
package writer

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragcache/internal/event"
	"github.com/xxxsen/ragcache/internal/model"
	"go.uber.org/zap"
)

const (
	defaultTaskTimeout = 30 * time.Second
	defaultStopTimeout = 10 * time.Second
)

type SubmitResult int

const (
	Accepted SubmitResult = iota
	Rejected
)

func (r SubmitResult) String() string {
	if r == Accepted {
		return "accepted"
	}
	return "rejected"
}

type Storer interface {
	Store(ctx context.Context, query string, answer *model.CachedAnswer) error
}

type Task struct {
	Query  string
	Answer *model.CachedAnswer
}

type Config struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
	StopTimeout time.Duration
	Sink        event.Sink
	Registerer  prometheus.Registerer
}

// Writer hands cache writes to a bounded worker pool. When the queue is full the write is
// dropped; the only cost is a later cache miss for that query.
type Writer struct {
	pool        *Pool[Task]
	storer      Storer
	sink        event.Sink
	stopTimeout time.Duration
}

func New(storer Storer, cfg Config) (*Writer, error) {
	w := &Writer{
		storer:      storer,
		sink:        event.OrNop(cfg.Sink),
		stopTimeout: cfg.StopTimeout,
	}
	if w.stopTimeout <= 0 {
		w.stopTimeout = defaultStopTimeout
	}
	taskTimeout := cfg.TaskTimeout
	if taskTimeout <= 0 {
		taskTimeout = defaultTaskTimeout
	}
	opts := []Option[Task]{
		WithTaskTimeout[Task](taskTimeout),
		WithErrorHandler[Task](w.onTaskError),
	}
	if cfg.Registerer != nil {
		opts = append(opts, WithRegisterer[Task](cfg.Registerer, "ragcache_writer"))
	}
	pool, err := NewPool(cfg.Workers, cfg.QueueSize, w.process, opts...)
	if err != nil {
		return nil, err
	}
	w.pool = pool
	return w, nil
}

func (w *Writer) Start(ctx context.Context) error {
	return w.pool.Start(ctx)
}

// Stop waits for queued writes to finish, up to the configured stop timeout.
func (w *Writer) Stop() error {
	return w.pool.Stop(w.stopTimeout)
}

// Submit never blocks and never fails the caller; the result says whether the write
// was queued.
func (w *Writer) Submit(ctx context.Context, query string, answer *model.CachedAnswer) SubmitResult {
	err := w.pool.Submit(Task{Query: query, Answer: answer})
	if err == nil {
		w.sink.Emit(ctx, event.Event{Kind: event.KindTaskAccepted, Query: query})
		return Accepted
	}
	detail := "queue full"
	if !errors.Is(err, ErrQueueFull) {
		detail = err.Error()
	}
	logutil.GetLogger(ctx).Warn("cache write dropped", zap.String("reason", detail))
	w.sink.Emit(ctx, event.Event{Kind: event.KindTaskDropped, Query: query, Err: err, Detail: detail})
	return Rejected
}

func (w *Writer) Stats() PoolStats {
	return w.pool.Stats()
}

func (w *Writer) process(ctx context.Context, task Task) error {
	return w.storer.Store(ctx, task.Query, task.Answer)
}

func (w *Writer) onTaskError(task Task, err error) {
	ctx := context.Background()
	logutil.GetLogger(ctx).Error("cache write failed", zap.String("query", task.Query), zap.Error(err))
	w.sink.Emit(ctx, event.Event{Kind: event.KindTaskFailed, Query: task.Query, Err: err})
}
