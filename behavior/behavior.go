// Package behavior implements the per-creature decision stack: behaviors
// react to sensor events and pick the steering actions a creature follows.
package behavior

import (
	"math/rand/v2"
)

// Self is the read-only view of the creature a behavior decides for.
type Self interface {
	Position() (x, y float64)
	HeadPosition() (x, y float64)
	Angle() float64
	Velocity() (vx, vy float64)
	AngularVelocity() float64
	Radius() float64
	SpeedTrait() float64
	Eating() bool
}

// Resource is something a creature can steer toward and eat.
type Resource interface {
	Position() (x, y float64)
	Radius() float64
	Alive() bool
}

// Behavior decides actions for the creature whose stack it sits on top of.
// Returning a non-nil Action from an alert replaces the current action.
type Behavior interface {
	Name() string
	SelectAction(self Self, st *Stack, rng *rand.Rand) Action
	VisionAlert(self Self, st *Stack, other Self) Action
	VisionResourceAlert(self Self, st *Stack, r Resource) Action
	SoundAlert(self Self, st *Stack, x, y float64) Action
}

// Base supplies the default alert reactions. Embedders provide Name and
// SelectAction.
type Base struct{}

// VisionAlert ignores other creatures.
func (Base) VisionAlert(Self, *Stack, Self) Action { return nil }

// VisionResourceAlert starts chasing resources big enough to be worth it.
func (Base) VisionResourceAlert(self Self, st *Stack, r Resource) Action {
	if self.Radius() < 4*r.Radius() {
		st.Push(NewEating(r))
	}
	return nil
}

// SoundAlert ignores sounds.
func (Base) SoundAlert(Self, *Stack, float64, float64) Action { return nil }

// Stack is a non-empty LIFO of behaviors; only the top is consulted.
type Stack struct {
	items   []Behavior
	changed bool
}

// NewStack returns a stack holding root, which is never popped.
func NewStack(root Behavior) *Stack {
	return &Stack{items: []Behavior{root}}
}

// Top returns the active behavior.
func (s *Stack) Top() Behavior { return s.items[len(s.items)-1] }

// Len returns the stack depth, always at least 1.
func (s *Stack) Len() int { return len(s.items) }

// Push makes b the active behavior.
func (s *Stack) Push(b Behavior) {
	s.items = append(s.items, b)
	s.changed = true
}

// Pop removes the active behavior. The root is never removed; Pop reports
// whether anything was popped.
func (s *Stack) Pop() bool {
	if len(s.items) <= 1 {
		return false
	}
	s.items[len(s.items)-1] = nil
	s.items = s.items[:len(s.items)-1]
	s.changed = true
	return true
}

// Swap replaces the active behavior with b. Swapping the root pushes instead.
func (s *Stack) Swap(b Behavior) {
	if len(s.items) <= 1 {
		s.Push(b)
		return
	}
	s.items[len(s.items)-1] = b
	s.changed = true
}

// Changed reports whether the stack was modified since the last call.
func (s *Stack) Changed() bool {
	c := s.changed
	s.changed = false
	return c
}

// Names returns the behavior names from bottom to top.
func (s *Stack) Names() []string {
	out := make([]string, len(s.items))
	for i, b := range s.items {
		out[i] = b.Name()
	}
	return out
}

// Next asks the active behavior for an action until one is returned, giving
// up after maxPicks attempts. Behaviors may push or pop between attempts.
func (s *Stack) Next(self Self, rng *rand.Rand, maxPicks int) Action {
	for range maxPicks {
		if a := s.Top().SelectAction(self, s, rng); a != nil {
			return a
		}
	}
	return nil
}

// VisionAlert forwards a creature sighting to the active behavior.
func (s *Stack) VisionAlert(self, other Self) Action {
	return s.Top().VisionAlert(self, s, other)
}

// VisionResourceAlert forwards a resource sighting to the active behavior.
func (s *Stack) VisionResourceAlert(self Self, r Resource) Action {
	return s.Top().VisionResourceAlert(self, s, r)
}

// SoundAlert forwards a sound to the active behavior.
func (s *Stack) SoundAlert(self Self, x, y float64) Action {
	return s.Top().SoundAlert(self, s, x, y)
}
