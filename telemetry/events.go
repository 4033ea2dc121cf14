// Package telemetry provides population tracking, bookmarking, metrics and
// run output for the simulation.
package telemetry

import "log/slog"

// EventType identifies telemetry events.
type EventType uint8

const (
	EventBirth EventType = iota
	EventDeath
	EventBite
	EventExcrete
	EventSpeciesFounded
	EventReseed
)

var eventNames = [...]string{
	EventBirth:          "creature_born",
	EventDeath:          "creature_died",
	EventBite:           "creature_ate",
	EventExcrete:        "creature_excreted",
	EventSpeciesFounded: "species_founded",
	EventReseed:         "population_reseed",
}

// String returns the snake_case event name used in logs.
func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "unknown"
}

// Event represents a single telemetry event.
type Event struct {
	Type       EventType
	Tick       int
	CreatureID uint32
	Species    string

	// Optional fields depending on event type
	OtherID uint32  // parent for births
	Amount  float64 // mass eaten or excreted
}

// NewBirthEvent creates a birth event.
func NewBirthEvent(tick int, childID, parentID uint32, species string) Event {
	return Event{
		Type:       EventBirth,
		Tick:       tick,
		CreatureID: childID,
		OtherID:    parentID,
		Species:    species,
	}
}

// NewDeathEvent creates a death event. mass is what the body left behind.
func NewDeathEvent(tick int, id uint32, species string, mass float64) Event {
	return Event{
		Type:       EventDeath,
		Tick:       tick,
		CreatureID: id,
		Species:    species,
		Amount:     mass,
	}
}

// NewBiteEvent creates an event for a creature biting a plant or carcass.
func NewBiteEvent(tick int, id uint32, mass float64) Event {
	return Event{
		Type:       EventBite,
		Tick:       tick,
		CreatureID: id,
		Amount:     mass,
	}
}

// NewExcreteEvent creates an event for waste dropped into the world.
func NewExcreteEvent(tick int, id uint32, mass float64) Event {
	return Event{
		Type:       EventExcrete,
		Tick:       tick,
		CreatureID: id,
		Amount:     mass,
	}
}

// NewSpeciesEvent creates an event for a newly founded species. founder is
// the first member.
func NewSpeciesEvent(tick int, founder uint32, species string) Event {
	return Event{
		Type:       EventSpeciesFounded,
		Tick:       tick,
		CreatureID: founder,
		Species:    species,
	}
}

// NewReseedEvent records count creatures injected to keep the population alive.
func NewReseedEvent(tick int, count int) Event {
	return Event{
		Type:   EventReseed,
		Tick:   tick,
		Amount: float64(count),
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (e Event) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("type", e.Type.String()),
		slog.Int("tick", e.Tick),
	}
	if e.CreatureID != 0 {
		attrs = append(attrs, slog.Any("creature", e.CreatureID))
	}
	if e.OtherID != 0 {
		attrs = append(attrs, slog.Any("other", e.OtherID))
	}
	if e.Species != "" {
		attrs = append(attrs, slog.String("species", e.Species))
	}
	if e.Amount != 0 {
		attrs = append(attrs, slog.Float64("amount", e.Amount))
	}
	return slog.GroupValue(attrs...)
}
