package registry

import (
	"fmt"
	"sort"

	"github.com/danmuck/tspsctl/internal/observability"
	"github.com/danmuck/tspsctl/internal/wire"
	"github.com/rs/zerolog/log"
)

// Person is the live record for one tracked id.
type Person = wire.Person

// Registry maps person ids to their latest record.
type Registry struct {
	people       map[int]*Person
	observers    []observerEntry
	nextObserver ObserverID
}

func New() *Registry {
	return &Registry{people: make(map[int]*Person, 32)}
}

// ApplyMessage interprets one decoded message. Malformed messages return an
// error wrapping wire.ErrMalformedMessage and leave state untouched. Scene
// and unknown addresses are ignored and return nil.
func (r *Registry) ApplyMessage(msg wire.Message) error {
	var err error
	switch msg.Address {
	case wire.AddressEntered:
		err = r.applyEntered(msg)
	case wire.AddressUpdated:
		err = r.applyUpdate(msg, EventUpdated)
	case wire.AddressMoved:
		err = r.applyUpdate(msg, EventMoved)
	case wire.AddressWillLeave:
		err = r.applyWillLeave(msg)
	case wire.AddressScene:
		log.Trace().Int("args", len(msg.Args)).Msg("registry.ApplyMessage scene ignored")
	default:
		log.Debug().Str("address", msg.Path).Msg("registry.ApplyMessage unknown address ignored")
		observability.RecordMessage(msg.Address.String(), "ignored")
		return nil
	}
	result := "ok"
	if err != nil {
		result = "malformed"
	}
	observability.RecordMessage(msg.Address.String(), result)
	observability.SetLivePeople(len(r.people))
	return err
}

func (r *Registry) applyEntered(msg wire.Message) error {
	p, err := wire.ParsePerson(msg.Args)
	if err != nil {
		return fmt.Errorf("registry: %s: %w", msg.Address, err)
	}
	r.insert(p)
	return nil
}

func (r *Registry) applyUpdate(msg wire.Message, ev Event) error {
	p, err := wire.ParsePerson(msg.Args)
	if err != nil {
		return fmt.Errorf("registry: %s: %w", msg.Address, err)
	}
	existing, ok := r.people[p.ID]
	if !ok {
		log.Debug().
			Int("person_id", p.ID).
			Str("address", msg.Address.String()).
			Msg("registry.ApplyMessage update for unknown id, treating as entered")
		r.insert(p)
		return nil
	}
	*existing = p
	r.notify(ev, p)
	return nil
}

func (r *Registry) applyWillLeave(msg wire.Message) error {
	id, err := wire.ParseID(msg.Args)
	if err != nil {
		return fmt.Errorf("registry: %s: %w", msg.Address, err)
	}
	existing, ok := r.people[id]
	if !ok {
		return nil
	}
	last := *existing
	delete(r.people, id)
	r.notify(EventWillLeave, last)
	return nil
}

func (r *Registry) insert(p Person) {
	rec := p
	r.people[p.ID] = &rec
	r.notify(EventEntered, p)
}

// Len reports the number of live people.
func (r *Registry) Len() int {
	return len(r.people)
}

// Get returns a copy of the live record for id.
func (r *Registry) Get(id int) (Person, bool) {
	p, ok := r.people[id]
	if !ok {
		return Person{}, false
	}
	return *p, true
}

// Snapshot returns copies of every live record ordered by id.
func (r *Registry) Snapshot() []Person {
	out := make([]Person, 0, len(r.people))
	for _, p := range r.people {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// IDs returns the live id set in ascending order.
func (r *Registry) IDs() []int {
	ids := make([]int, 0, len(r.people))
	for id := range r.people {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
