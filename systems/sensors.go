package systems

import (
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/lifesim/components"
	"github.com/pthm-cable/lifesim/config"
)

// Listener receives sensor events. Implementations must not add or remove
// entities while handling an event.
type Listener interface {
	VisionAlert(observer, other ecs.Entity)
	VisionResourceAlert(observer, resource ecs.Entity)
	SoundAlert(listener ecs.Entity, x, y float64)
}

type sensorEvent struct {
	kind     uint8
	observer ecs.Entity
	other    ecs.Entity
	x, y     float64
}

const (
	eventVision uint8 = iota
	eventVisionResource
	eventSound
)

type pair struct {
	observer, other ecs.Entity
}

// Sensors detects what each creature sees and hears. Alerts are edge
// triggered: an entity that stays in view raises a single alert when it
// enters the cone and another only after leaving and coming back.
type Sensors struct {
	space *Space
	cfg   config.SensorsConfig

	creatures *ecs.Filter6[
		components.Position,
		components.Velocity,
		components.Rotation,
		components.Body,
		components.Vision,
		components.Handle,
	]

	seen  map[pair]struct{}
	heard map[pair]struct{}

	events   []sensorEvent
	neighbor []Neighbor
	emitters []emitter
}

type emitter struct {
	e      ecs.Entity
	x, y   float64
	radius float64
}

// NewSensors creates the sensor system on top of space.
func NewSensors(space *Space, cfg config.SensorsConfig) *Sensors {
	return &Sensors{
		space: space,
		cfg:   cfg,
		creatures: ecs.NewFilter6[
			components.Position,
			components.Velocity,
			components.Rotation,
			components.Body,
			components.Vision,
			components.Handle,
		](space.world),
		seen:  make(map[pair]struct{}),
		heard: make(map[pair]struct{}),
	}
}

// Update computes this tick's sightings and sounds and dispatches the new ones
// to l. Returns the number of alerts raised.
func (s *Sensors) Update(l Listener) int {
	s.events = s.events[:0]
	s.emitters = s.emitters[:0]
	seen := make(map[pair]struct{}, len(s.seen))
	heard := make(map[pair]struct{}, len(s.heard))

	maxRadius := s.space.MaxRadius()

	query := s.creatures.Query()
	for query.Next() {
		pos, vel, rot, body, vision, _ := query.Get()
		self := query.Entity()

		if s.cfg.SoundSpeed > 0 && math.Hypot(vel.X, vel.Y) > s.cfg.SoundSpeed {
			s.emitters = append(s.emitters, emitter{e: self, x: pos.X, y: pos.Y, radius: body.Radius})
		}

		reach := body.Radius + vision.Distance
		if reach <= 0 {
			continue
		}
		s.neighbor = s.space.Near(s.neighbor[:0], pos.X, pos.Y, reach+maxRadius, self)
		for _, n := range s.neighbor {
			other := s.space.Radius(n.E)
			limit := reach + other
			if n.DistSq > limit*limit {
				continue
			}
			if !inCone(n.DX, n.DY, rot.Angle, vision.HalfAngle) {
				continue
			}
			key := pair{self, n.E}
			seen[key] = struct{}{}
			if _, ok := s.seen[key]; ok {
				continue
			}
			kind := eventVision
			if s.space.Handle(n.E).IsResource() {
				kind = eventVisionResource
			}
			s.events = append(s.events, sensorEvent{kind: kind, observer: self, other: n.E})
		}
	}

	for _, em := range s.emitters {
		rng := s.cfg.SoundRange * em.radius
		if rng <= 0 {
			continue
		}
		s.neighbor = s.space.Near(s.neighbor[:0], em.x, em.y, rng, em.e)
		for _, n := range s.neighbor {
			if s.space.Handle(n.E).Kind != components.KindCreature {
				continue
			}
			key := pair{n.E, em.e}
			heard[key] = struct{}{}
			if _, ok := s.heard[key]; ok {
				continue
			}
			s.events = append(s.events, sensorEvent{kind: eventSound, observer: n.E, other: em.e, x: em.x, y: em.y})
		}
	}

	s.seen = seen
	s.heard = heard

	for _, ev := range s.events {
		switch ev.kind {
		case eventVision:
			l.VisionAlert(ev.observer, ev.other)
		case eventVisionResource:
			l.VisionResourceAlert(ev.observer, ev.other)
		case eventSound:
			l.SoundAlert(ev.observer, ev.x, ev.y)
		}
	}
	return len(s.events)
}

// inCone reports whether the offset (dx, dy) lies within halfAngle of heading.
func inCone(dx, dy, heading, halfAngle float64) bool {
	if dx == 0 && dy == 0 {
		return true
	}
	if halfAngle >= math.Pi {
		return true
	}
	diff := normalizeAngle(math.Atan2(dy, dx) - heading)
	return math.Abs(diff) <= halfAngle
}
