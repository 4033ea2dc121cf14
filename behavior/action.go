package behavior

import "math"

// Steering is a per-tick command. Both factors lie in [-1, 1].
type Steering struct {
	Speed float64
	Turn  float64
}

// Action is a single- or multi-tick command. Step returns false once the
// action has completed.
type Action interface {
	Name() string
	Step(self Self) (Steering, bool)
}

// Move weights.
const (
	WalkWeight    = 0.4
	RunWeight     = 0.8
	FastRunWeight = 1.0
)

// Idle holds still for a number of ticks.
type Idle struct {
	remaining int
}

// NewIdle returns an action that idles for ticks steps.
func NewIdle(ticks int) *Idle { return &Idle{remaining: ticks} }

func (*Idle) Name() string { return "idle" }

func (a *Idle) Step(Self) (Steering, bool) {
	if a.remaining <= 0 {
		return Steering{}, false
	}
	a.remaining--
	return Steering{}, true
}

// GoToPoint steers toward a fixed point with either the center or the head
// of the creature.
type GoToPoint struct {
	X, Y    float64
	Weight  float64
	UseHead bool
	name    string
}

// NewWalk returns a slow move toward (x, y).
func NewWalk(x, y float64, useHead bool) *GoToPoint {
	return &GoToPoint{X: x, Y: y, Weight: WalkWeight, UseHead: useHead, name: "walk"}
}

// NewRun returns a medium move toward (x, y).
func NewRun(x, y float64, useHead bool) *GoToPoint {
	return &GoToPoint{X: x, Y: y, Weight: RunWeight, UseHead: useHead, name: "run"}
}

// NewFastRun returns a full-speed move toward (x, y).
func NewFastRun(x, y float64, useHead bool) *GoToPoint {
	return &GoToPoint{X: x, Y: y, Weight: FastRunWeight, UseHead: useHead, name: "fast_run"}
}

func (a *GoToPoint) Name() string { return a.name }

// Step turns proportionally to the heading error and slows down while the
// error is large. Inside the body radius and facing away, it backs up.
func (a *GoToPoint) Step(self Self) (Steering, bool) {
	px, py := self.Position()
	if a.UseHead {
		px, py = self.HeadPosition()
	}
	dx, dy := a.X-px, a.Y-py
	dist := math.Hypot(dx, dy)
	radius := self.Radius()
	if 4*dist < radius {
		return Steering{}, false
	}

	diff := NormalizeAngle(math.Atan2(dy, dx) - self.Angle())
	if dist < radius && math.Abs(diff) > math.Pi/2 {
		return Steering{Speed: -0.2}, true
	}

	st := self.SpeedTrait()
	vx, vy := self.Velocity()
	current := math.Hypot(vx, vy)

	turn := clamp(200*diff/(1+149*st), -1, 1)
	speed := dist / (1 + st) / (0.1 + 100*(1+st)*math.Abs(diff) + current)
	if speed > 1 {
		speed = 1
	}
	return Steering{Speed: speed * a.Weight, Turn: turn}, true
}

// Rotate turns in place to a target angle.
type Rotate struct {
	Target float64
}

// Rotation settle tolerances.
const (
	rotateTolerance = 0.08
	rotateSettled   = 0.03
	rotateSpinLimit = 1.5
)

// NewRotate returns an action turning to angle.
func NewRotate(angle float64) *Rotate { return &Rotate{Target: angle} }

func (*Rotate) Name() string { return "rotate" }

// Step coasts while spinning fast and completes once aligned and settled.
func (a *Rotate) Step(self Self) (Steering, bool) {
	w := math.Abs(self.AngularVelocity())
	if w > rotateSpinLimit {
		return Steering{}, true
	}
	diff := NormalizeAngle(a.Target - self.Angle())
	if math.Abs(diff) < rotateTolerance && w < rotateSettled {
		return Steering{}, false
	}
	return Steering{Turn: clamp(diff, -1, 1)}, true
}

// NormalizeAngle wraps an angle to (-Pi, Pi].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
