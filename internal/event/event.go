// Package event is the observability channel of the caching layer. Components emit
// typed events to a Sink; the sink decides whether they become log lines, metrics, or
// recorded values in tests.
package event

import (
	"context"
	"sync"
	"time"
)

type Kind string

const (
	KindCacheHit     Kind = "cache_hit"
	KindCacheMiss    Kind = "cache_miss"
	KindLookupError  Kind = "lookup_error"
	KindStoreOK      Kind = "store_ok"
	KindStoreFailed  Kind = "store_failed"
	KindEviction     Kind = "embedding_eviction"
	KindEmbedHit     Kind = "embedding_hit"
	KindEmbedMiss    Kind = "embedding_miss"
	KindEmbedRetry   Kind = "embedding_retry"
	KindTaskAccepted Kind = "task_accepted"
	KindTaskDropped  Kind = "task_dropped"
	KindTaskFailed   Kind = "task_failed"
	KindStateChange  Kind = "state_change"
)

type Event struct {
	Kind     Kind
	Query    string
	Key      string
	Distance float64
	Err      error
	Detail   string
	Time     time.Time
}

type Sink interface {
	Emit(ctx context.Context, ev Event)
}

type nopSink struct{}

func (nopSink) Emit(context.Context, Event) {}

// Nop discards every event.
func Nop() Sink {
	return nopSink{}
}

// OrNop returns s, or a discarding sink when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return nopSink{}
	}
	return s
}

type multiSink []Sink

func Multi(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSink) Emit(ctx context.Context, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(_ context.Context, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *Recorder) Last(kind Kind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return Event{}, false
}
