package behavior

import (
	"math"
	"math/rand/v2"
)

// eatingIdle is how long a creature holds still while a bite digests.
const eatingIdle = 10

// Eating chases a resource with the creature's head and waits while it eats.
type Eating struct {
	Base
	Target Resource
}

// NewEating returns a behavior chasing r. A nil target pops itself once the
// creature stops eating.
func NewEating(r Resource) *Eating {
	return &Eating{Target: r}
}

func (*Eating) Name() string { return "eating" }

// SelectAction runs toward the target, or pops once the target is gone or
// already under the creature's mouth.
func (e *Eating) SelectAction(self Self, st *Stack, _ *rand.Rand) Action {
	if self.Eating() {
		return NewIdle(eatingIdle)
	}
	if e.Target == nil || !e.Target.Alive() {
		st.Pop()
		return nil
	}

	hx, hy := self.HeadPosition()
	tx, ty := e.Target.Position()
	if 3*math.Hypot(hx-tx, hy-ty) < self.Radius() {
		st.Pop()
		return nil
	}
	return NewRun(tx, ty, true)
}

// VisionResourceAlert switches to r when it is closer than the current target.
func (e *Eating) VisionResourceAlert(self Self, st *Stack, r Resource) Action {
	if squaredDistance(self, r) < squaredDistance(self, e.Target) {
		st.Swap(NewEating(r))
	}
	return nil
}

func squaredDistance(self Self, r Resource) float64 {
	if r == nil || !r.Alive() || r.Radius() == 0 {
		return math.Inf(1)
	}
	x, y := self.Position()
	rx, ry := r.Position()
	return (x-rx)*(x-rx) + (y-ry)*(y-ry)
}
