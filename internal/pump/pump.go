// Package pump owns the hand-off between the receive goroutine and the
// dispatch goroutine.
//
// The queue lock covers append and swap only. Interpretation and observer
// notification always run after the lock is released.
package pump

import (
	"errors"
	"sync"

	"github.com/danmuck/tspsctl/internal/observability"
	"github.com/danmuck/tspsctl/internal/wire"
	"github.com/rs/zerolog/log"
)

// Applier consumes decoded messages on the dispatch goroutine.
type Applier interface {
	ApplyMessage(msg wire.Message) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(msg wire.Message) error

func (f ApplierFunc) ApplyMessage(msg wire.Message) error {
	return f(msg)
}

// Queue is the hand-off buffer shared by the receiver and the pump.
type Queue struct {
	mu    sync.Mutex
	items []wire.Message
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends msgs in order under one lock acquisition.
func (q *Queue) Enqueue(msgs ...wire.Message) {
	if len(msgs) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, msgs...)
	q.mu.Unlock()
}

// Swap takes ownership of everything queued so far and leaves the queue empty.
func (q *Queue) Swap() []wire.Message {
	q.mu.Lock()
	out := q.items
	q.items = nil
	q.mu.Unlock()
	return out
}

// Len reports the number of messages waiting for the next drain.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// DrainAndDispatch swaps the queue out and applies each message in enqueue
// order. Apply errors are logged and the message dropped; the remaining
// messages are still applied. Returns the number of messages taken.
func DrainAndDispatch(q *Queue, applier Applier) int {
	batch := q.Swap()
	if len(batch) == 0 {
		return 0
	}
	observability.RecordDrain(len(batch))
	for _, msg := range batch {
		if err := applier.ApplyMessage(msg); err != nil {
			event := log.Warn()
			if !errors.Is(err, wire.ErrMalformedMessage) {
				event = log.Error()
			}
			event.
				Str("address", msg.Path).
				Int("args", len(msg.Args)).
				Err(err).
				Msg("pump.DrainAndDispatch message dropped")
		}
	}
	return len(batch)
}
