// Package persist stores world snapshots: JSON files, a SQLite history table
// and an S3-compatible archive.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pthm-cable/lifesim/creature"
	"github.com/pthm-cable/lifesim/telemetry"
)

// Version is incremented when the snapshot format changes.
const Version = 2

// ErrVersion is returned when a snapshot was written by an incompatible format.
var ErrVersion = errors.New("persist: unsupported snapshot version")

// ErrNotFound is returned when a store holds no matching snapshot.
var ErrNotFound = errors.New("persist: snapshot not found")

// WorldSnapshot holds the complete simulation state needed to resume a run.
type WorldSnapshot struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	Seed    uint64 `json:"seed"`
	Tick    int    `json:"tick"`

	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	NextID uint32  `json:"next_id"`

	// Species are listed in creation order so ancestors precede descendants.
	Species   []SpeciesState  `json:"species"`
	Creatures []CreatureState `json:"creatures"`
	Plants    []PlantState    `json:"plants"`
	Meats     []MeatState     `json:"meats"`

	Bookmark *telemetry.Bookmark `json:"bookmark,omitempty"`
}

// SpeciesState is one lineage node.
type SpeciesState struct {
	Name     string             `json:"name"`
	Ancestor string             `json:"ancestor,omitempty"`
	Founding map[string]float64 `json:"founding"`
	BornTick int                `json:"born_tick"`
}

// CreatureState is a creature's metabolic state plus its body.
type CreatureState struct {
	creature.Snapshot
	Body BodyState `json:"body"`
}

// BodyState is the physics state of a creature.
type BodyState struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Angle   float64 `json:"angle"`
	VX      float64 `json:"vx"`
	VY      float64 `json:"vy"`
	Angular float64 `json:"angular"`
}

// PlantState is one plant's stocks.
type PlantState struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	External float64 `json:"external"`
	Internal float64 `json:"internal"`
}

// MeatState is one carcass.
type MeatState struct {
	X         float64            `json:"x"`
	Y         float64            `json:"y"`
	Materials map[string]float64 `json:"materials"`
}

// Sink receives autosaved snapshots.
type Sink interface {
	Save(ctx context.Context, snap *WorldSnapshot) error
}

// Encode marshals a snapshot, stamping the current version.
func Encode(snap *WorldSnapshot) ([]byte, error) {
	snap.Version = Version
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Decode unmarshals a snapshot and checks its version.
func Decode(data []byte) (*WorldSnapshot, error) {
	var snap WorldSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snap.Version != Version {
		return nil, fmt.Errorf("%w: %d (want %d)", ErrVersion, snap.Version, Version)
	}
	return &snap, nil
}
