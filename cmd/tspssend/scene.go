package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/danmuck/tspsctl/internal/wire"
	"github.com/hypebeast/go-osc/osc"
	"github.com/rs/zerolog/log"
)

const boxSize = 0.1

type packetSender interface {
	Send(packet osc.Packet) error
}

// scene walks people around the unit square. Frame 0 announces everyone,
// the last frame says goodbye, and every frame between moves each person.
type scene struct {
	cfg    senderConfig
	rng    *rand.Rand
	people []wire.Person
}

func newScene(cfg senderConfig) *scene {
	s := &scene{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
	for i := 0; i < cfg.People; i++ {
		p := wire.Person{
			ID:       i + 1,
			Centroid: wire.Vec2{X: s.rng.Float64(), Y: s.rng.Float64()},
			Velocity: wire.Vec2{X: s.jitter(), Y: s.jitter()},
		}
		s.frame(&p)
		s.people = append(s.people, p)
	}
	return s
}

func (s *scene) totalFrames() int {
	return s.cfg.Frames + 2
}

func (s *scene) messages(frame int) []wire.Message {
	out := make([]wire.Message, 0, len(s.people))
	switch {
	case frame == 0:
		for _, p := range s.people {
			out = append(out, wire.NewMessage(wire.AddressEntered, wire.PersonArgs(p)...))
		}
	case frame == s.totalFrames()-1:
		for _, p := range s.people {
			out = append(out, wire.NewMessage(wire.AddressWillLeave, int32(p.ID)))
		}
	default:
		for i := range s.people {
			p := &s.people[i]
			p.Age++
			addr := wire.AddressUpdated
			if p.Velocity != (wire.Vec2{}) {
				addr = wire.AddressMoved
				p.Centroid.X, p.Velocity.X = bounce(p.Centroid.X+p.Velocity.X, p.Velocity.X)
				p.Centroid.Y, p.Velocity.Y = bounce(p.Centroid.Y+p.Velocity.Y, p.Velocity.Y)
			}
			s.frame(p)
			out = append(out, wire.NewMessage(addr, wire.PersonArgs(*p)...))
		}
	}
	return out
}

func (s *scene) jitter() float64 {
	return (s.rng.Float64()*2 - 1) * s.cfg.Speed
}

func (s *scene) frame(p *wire.Person) {
	p.BoundingBox = wire.Rect{
		Origin: wire.Vec2{X: p.Centroid.X - boxSize/2, Y: p.Centroid.Y - boxSize/2},
		Size:   wire.Vec2{X: boxSize, Y: boxSize},
	}
	p.OpticalFlow = p.Velocity
}

// bounce reflects x back into [0, 1].
func bounce(x, v float64) (float64, float64) {
	switch {
	case x < 0:
		return -x, -v
	case x > 1:
		return 2 - x, -v
	default:
		return x, v
	}
}

// play sends every frame of s and returns how many messages went out.
func play(ctx context.Context, s *scene, out packetSender) (int, error) {
	sent := 0
	for frame := 0; frame < s.totalFrames(); frame++ {
		msgs := s.messages(frame)
		if len(msgs) > 0 {
			if err := sendFrame(out, msgs, s.cfg.Bundle); err != nil {
				return sent, err
			}
			sent += len(msgs)
		}
		log.Debug().Int("frame", frame).Int("messages", len(msgs)).Msg("tspssend.play frame")

		if s.cfg.Rate <= 0 || frame == s.totalFrames()-1 {
			continue
		}
		timer := time.NewTimer(s.cfg.Rate)
		select {
		case <-ctx.Done():
			timer.Stop()
			return sent, ctx.Err()
		case <-timer.C:
		}
	}
	return sent, nil
}

func sendFrame(out packetSender, msgs []wire.Message, bundled bool) error {
	if !bundled {
		for _, m := range msgs {
			if err := out.Send(m.ToOSC()); err != nil {
				return err
			}
		}
		return nil
	}
	b := osc.NewBundle(time.Now())
	for _, m := range msgs {
		if err := b.Append(m.ToOSC()); err != nil {
			return err
		}
	}
	return out.Send(b)
}
