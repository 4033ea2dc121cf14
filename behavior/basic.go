package behavior

import (
	"math"
	"math/rand/v2"
)

const (
	wanderRadii = 20 // move targets lie within this many radii
	idleMin     = 20
	idleMax     = 80
)

// Priorities are the heritable weights of the wander choices.
type Priorities struct {
	Walk, Run, FastRun, Idle, Rotate int
}

// Basic wanders at random and starts eating when it sees food.
type Basic struct {
	Base
	weights [5]int // walk, run, idle, rotate, fast run
	sum     int
}

// NewBasic returns a wander behavior. Negative weights count as zero and the
// idle weight is offset by one so some choice always exists.
func NewBasic(p Priorities) *Basic {
	b := &Basic{weights: [5]int{
		max(p.Walk, 0),
		max(p.Run, 0),
		max(p.Idle, 0) + 1,
		max(p.Rotate, 0),
		max(p.FastRun, 0),
	}}
	for _, w := range b.weights {
		b.sum += w
	}
	return b
}

func (*Basic) Name() string { return "basic" }

// SelectAction picks a weighted random wander action.
func (b *Basic) SelectAction(self Self, st *Stack, rng *rand.Rand) Action {
	if self.Eating() {
		st.Push(NewEating(nil))
		return nil
	}

	v := rng.IntN(b.sum)
	choice := 0
	for _, w := range b.weights {
		if v < w {
			break
		}
		v -= w
		choice++
	}

	switch choice {
	case 0, 1, 4:
		x, y := self.Position()
		span := wanderRadii * self.Radius()
		tx := x + (2*rng.Float64()-1)*span
		ty := y + (2*rng.Float64()-1)*span
		switch choice {
		case 0:
			return NewWalk(tx, ty, false)
		case 1:
			return NewRun(tx, ty, false)
		default:
			return NewFastRun(tx, ty, false)
		}
	case 2:
		return NewIdle(idleMin + rng.IntN(idleMax-idleMin+1))
	default:
		return NewRotate(2 * math.Pi * rng.Float64())
	}
}
