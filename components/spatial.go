package components

// Position represents an entity's world position.
type Position struct {
	X, Y float64
}

// Velocity represents an entity's velocity in world units per second.
type Velocity struct {
	X, Y float64
}

// Rotation represents an entity's heading and angular velocity.
type Rotation struct {
	Angle  float64 // radians
	AngVel float64 // radians per second
}

// Vision is a creature's view cone, centered on its heading.
type Vision struct {
	Distance  float64 // reach beyond the body radius
	HalfAngle float64 // radians
}
