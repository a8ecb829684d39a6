package registry

import (
	"fmt"

	"github.com/danmuck/tspsctl/internal/observability"
	"github.com/rs/zerolog/log"
)

// Observer is a set of lifecycle callbacks. Nil callbacks are skipped.
type Observer struct {
	Name        string
	OnEntered   func(Person)
	OnUpdated   func(Person)
	OnMoved     func(Person)
	OnWillLeave func(Person)
}

// ObserverID identifies one registration for RemoveObserver.
type ObserverID uint64

type observerEntry struct {
	id  ObserverID
	obs Observer
}

// Event names one lifecycle transition.
type Event string

const (
	EventEntered   Event = "entered"
	EventUpdated   Event = "updated"
	EventMoved     Event = "moved"
	EventWillLeave Event = "will_leave"
)

func (o Observer) callback(ev Event) func(Person) {
	switch ev {
	case EventEntered:
		return o.OnEntered
	case EventUpdated:
		return o.OnUpdated
	case EventMoved:
		return o.OnMoved
	case EventWillLeave:
		return o.OnWillLeave
	default:
		return nil
	}
}

// AddObserver registers obs and returns its handle. Must not be called from
// inside an observer callback.
func (r *Registry) AddObserver(obs Observer) ObserverID {
	r.nextObserver++
	id := r.nextObserver
	r.observers = append(r.observers, observerEntry{id: id, obs: obs})
	return id
}

// RemoveObserver drops a registration. Must not be called from inside an
// observer callback.
func (r *Registry) RemoveObserver(id ObserverID) bool {
	for i, e := range r.observers {
		if e.id != id {
			continue
		}
		next := make([]observerEntry, 0, len(r.observers)-1)
		next = append(next, r.observers[:i]...)
		next = append(next, r.observers[i+1:]...)
		r.observers = next
		return true
	}
	return false
}

// ObserverCount reports the number of registered observers.
func (r *Registry) ObserverCount() int {
	return len(r.observers)
}

// notify calls ev on every observer in registration order. Each observer gets
// its own copy of p.
func (r *Registry) notify(ev Event, p Person) {
	snapshot := r.observers
	for _, e := range snapshot {
		fn := e.obs.callback(ev)
		if fn == nil {
			continue
		}
		safeCall(e, ev, fn, p)
	}
}

func safeCall(e observerEntry, ev Event, fn func(Person), p Person) {
	defer func() {
		if rec := recover(); rec != nil {
			observability.RecordObserverPanic(string(ev))
			log.Error().
				Uint64("observer_id", uint64(e.id)).
				Str("observer", e.obs.Name).
				Str("event", string(ev)).
				Int("person_id", p.ID).
				Str("panic", fmt.Sprint(rec)).
				Msg("registry.notify observer failed")
		}
	}()
	fn(p)
}
