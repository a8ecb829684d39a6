package tsps

import (
	"github.com/danmuck/tspsctl/internal/registry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogObserver logs arrivals and departures at info and per-frame updates at
// trace.
func LogObserver() registry.Observer {
	at := func(level zerolog.Level, ev registry.Event) func(registry.Person) {
		return func(p registry.Person) {
			log.WithLevel(level).
				Str("event", string(ev)).
				Int("person_id", p.ID).
				Int("age", p.Age).
				Float64("x", p.Centroid.X).
				Float64("y", p.Centroid.Y).
				Msg("tsps.person")
		}
	}
	return registry.Observer{
		Name:        "log",
		OnEntered:   at(zerolog.InfoLevel, registry.EventEntered),
		OnUpdated:   at(zerolog.TraceLevel, registry.EventUpdated),
		OnMoved:     at(zerolog.TraceLevel, registry.EventMoved),
		OnWillLeave: at(zerolog.InfoLevel, registry.EventWillLeave),
	}
}
