package telemetry

// LifetimeStats tracks per-creature statistics over its lifetime.
type LifetimeStats struct {
	BirthTick  int
	Species    string
	Generation int

	Children int

	// Feeding
	Bites     int
	EatenMass float64

	Excretions   int
	ExcretedMass float64

	PeakMass float64
}

// LifetimeTracker manages per-creature lifetime statistics.
type LifetimeTracker struct {
	stats map[uint32]*LifetimeStats
}

// NewLifetimeTracker creates a new lifetime tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{
		stats: make(map[uint32]*LifetimeStats),
	}
}

// Register creates lifetime stats for a new creature.
func (lt *LifetimeTracker) Register(id uint32, birthTick int, species string, generation int) {
	lt.stats[id] = &LifetimeStats{
		BirthTick:  birthTick,
		Species:    species,
		Generation: generation,
	}
}

// Get returns the lifetime stats for a creature, or nil if not found.
func (lt *LifetimeTracker) Get(id uint32) *LifetimeStats {
	return lt.stats[id]
}

// Remove removes a creature's stats and returns them.
func (lt *LifetimeTracker) Remove(id uint32) *LifetimeStats {
	stats := lt.stats[id]
	delete(lt.stats, id)
	return stats
}

// RecordChild increments children count.
func (lt *LifetimeTracker) RecordChild(parentID uint32) {
	if s := lt.stats[parentID]; s != nil {
		s.Children++
	}
}

// RecordBite adds a bite of the given mass.
func (lt *LifetimeTracker) RecordBite(id uint32, mass float64) {
	if s := lt.stats[id]; s != nil {
		s.Bites++
		s.EatenMass += mass
	}
}

// RecordExcretion adds dropped waste mass.
func (lt *LifetimeTracker) RecordExcretion(id uint32, mass float64) {
	if s := lt.stats[id]; s != nil {
		s.Excretions++
		s.ExcretedMass += mass
	}
}

// UpdateMass tracks peak body mass.
func (lt *LifetimeTracker) UpdateMass(id uint32, mass float64) {
	if s := lt.stats[id]; s != nil && mass > s.PeakMass {
		s.PeakMass = mass
	}
}

// Count returns the number of tracked creatures.
func (lt *LifetimeTracker) Count() int {
	return len(lt.stats)
}

// ActiveSpecies returns the member count of every species with a living member.
func (lt *LifetimeTracker) ActiveSpecies() map[string]int {
	counts := make(map[string]int)
	for _, s := range lt.stats {
		counts[s.Species]++
	}
	return counts
}
