package telemetry

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"

	"github.com/pthm-cable/lifesim/config"
)

// HallEntry is the genome of a successful creature and what it achieved.
type HallEntry struct {
	CreatureID uint32             `json:"creature_id"`
	Species    string             `json:"species"`
	Generation int                `json:"generation"`
	Children   int                `json:"children"`
	Age        int                `json:"age"`
	EatenMass  float64            `json:"eaten_mass"`
	Traits     map[string]float64 `json:"traits"`
}

// better orders entries by children, then age, then eaten mass.
func (e HallEntry) better(o HallEntry) bool {
	if e.Children != o.Children {
		return e.Children > o.Children
	}
	if e.Age != o.Age {
		return e.Age > o.Age
	}
	return e.EatenMass > o.EatenMass
}

// HallOfFame stores the genomes of proven creatures for reseeding when the
// population crashes.
type HallOfFame struct {
	entries []HallEntry
	cfg     config.HallOfFameConfig
	rng     *rand.Rand
}

// NewHallOfFame creates an empty hall. A non-positive size keeps 16 entries.
func NewHallOfFame(cfg config.HallOfFameConfig, rng *rand.Rand) *HallOfFame {
	if cfg.Size < 1 {
		cfg.Size = 16
	}
	return &HallOfFame{
		entries: make([]HallEntry, 0, cfg.Size),
		cfg:     cfg,
		rng:     rng,
	}
}

// Consider evaluates a dead creature for entry. Returns true if it was added.
func (hof *HallOfFame) Consider(entry HallEntry) bool {
	if !hof.meetsEntryCriteria(entry) {
		return false
	}

	idx := sort.Search(len(hof.entries), func(i int) bool {
		return entry.better(hof.entries[i])
	})
	if len(hof.entries) >= hof.cfg.Size && idx >= hof.cfg.Size {
		return false
	}

	hof.entries = append(hof.entries, HallEntry{})
	copy(hof.entries[idx+1:], hof.entries[idx:])
	hof.entries[idx] = entry
	if len(hof.entries) > hof.cfg.Size {
		hof.entries = hof.entries[:hof.cfg.Size]
	}
	return true
}

// meetsEntryCriteria admits creatures that reproduced or lived long enough.
func (hof *HallOfFame) meetsEntryCriteria(e HallEntry) bool {
	if hof.cfg.MinChildren > 0 && e.Children >= hof.cfg.MinChildren {
		return true
	}
	return hof.cfg.MinAge > 0 && e.Age >= hof.cfg.MinAge
}

// Sample selects an entry using tournament selection. Returns nil if the
// hall is empty.
func (hof *HallOfFame) Sample() *HallEntry {
	if len(hof.entries) == 0 {
		return nil
	}

	const tournamentSize = 3
	best := -1
	for i := 0; i < tournamentSize && i < len(hof.entries); i++ {
		idx := hof.rng.IntN(len(hof.entries))
		if best < 0 || idx < best {
			best = idx
		}
	}

	e := hof.entries[best]
	traits := make(map[string]float64, len(e.Traits))
	for k, v := range e.Traits {
		traits[k] = v
	}
	e.Traits = traits
	return &e
}

// Len returns the number of entries.
func (hof *HallOfFame) Len() int {
	return len(hof.entries)
}

// Entries returns the entries, best first. The slice must not be modified.
func (hof *HallOfFame) Entries() []HallEntry {
	return hof.entries
}

// MarshalJSON serializes the hall as a list, best first.
func (hof *HallOfFame) MarshalJSON() ([]byte, error) {
	return json.MarshalIndent(hof.entries, "", "  ")
}

// LoadHallOfFameFromFile reads a hall of fame JSON file. Entries beyond the
// configured size are dropped.
func LoadHallOfFameFromFile(path string, cfg config.HallOfFameConfig, rng *rand.Rand) (*HallOfFame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hall of fame: %w", err)
	}

	var raw []HallEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing hall of fame JSON: %w", err)
	}

	hof := NewHallOfFame(cfg, rng)
	for _, e := range raw {
		idx := sort.Search(len(hof.entries), func(i int) bool {
			return e.better(hof.entries[i])
		})
		hof.entries = append(hof.entries, HallEntry{})
		copy(hof.entries[idx+1:], hof.entries[idx:])
		hof.entries[idx] = e
	}
	if len(hof.entries) > hof.cfg.Size {
		hof.entries = hof.entries[:hof.cfg.Size]
	}
	return hof, nil
}
