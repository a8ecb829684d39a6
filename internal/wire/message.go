package wire

import (
	"strings"
	"time"

	"github.com/hypebeast/go-osc/osc"
)

// Message is one decoded OSC message on its way from the receiver to the
// registry. It is not retained after dispatch.
type Message struct {
	Address    Address
	Path       string
	Args       []any
	ReceivedAt time.Time
}

// FromOSC converts a decoded OSC message into a Message.
func FromOSC(m *osc.Message, at time.Time) Message {
	args := make([]any, len(m.Arguments))
	copy(args, m.Arguments)
	return Message{
		Address:    ParseAddress(m.Address),
		Path:       m.Address,
		Args:       args,
		ReceivedAt: at,
	}
}

// Flatten expands a decoded packet into its messages, depth-first, in the
// order they appear on the wire.
func Flatten(p osc.Packet, at time.Time) []Message {
	switch v := p.(type) {
	case *osc.Message:
		if v == nil {
			return nil
		}
		return []Message{FromOSC(v, at)}
	case *osc.Bundle:
		if v == nil {
			return nil
		}
		out := make([]Message, 0, len(v.Messages))
		for _, m := range v.Messages {
			if m == nil {
				continue
			}
			out = append(out, FromOSC(m, at))
		}
		for _, b := range v.Bundles {
			out = append(out, Flatten(b, at)...)
		}
		return out
	default:
		return nil
	}
}

// NewMessage builds a Message for the canonical path of addr.
func NewMessage(addr Address, args ...any) Message {
	return Message{Address: addr, Path: addr.Path(), Args: args}
}

// ToOSC builds the OSC message for m, using the canonical path when m.Path
// is empty. The encoded address always starts with "/".
func (m Message) ToOSC() *osc.Message {
	path := m.Path
	if path == "" {
		path = m.Address.Path()
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return osc.NewMessage(path, m.Args...)
}
