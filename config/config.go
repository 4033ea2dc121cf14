// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World       WorldConfig       `yaml:"world"`
	Physics     PhysicsConfig     `yaml:"physics"`
	Sensors     SensorsConfig     `yaml:"sensors"`
	Population  PopulationConfig  `yaml:"population"`
	Resources   ResourcesConfig   `yaml:"resources"`
	Creature    CreatureConfig    `yaml:"creature"`
	Species     SpeciesConfig     `yaml:"species"`
	Traits      TraitsConfig      `yaml:"traits"`
	Materials   []MaterialConfig  `yaml:"materials"`
	Rules       []RuleConfig      `yaml:"rules"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	HallOfFame  HallOfFameConfig  `yaml:"hall_of_fame"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds the environment dimensions.
type WorldConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"` // 0 = same as width
}

// PhysicsConfig holds integration parameters for the rigid-body collaborator.
type PhysicsConfig struct {
	DT              float64 `yaml:"dt"`
	Damping         float64 `yaml:"damping"`          // fraction of velocity kept per second
	AngularDamping  float64 `yaml:"angular_damping"`  // fraction of angular velocity kept per second
	WallElasticity  float64 `yaml:"wall_elasticity"`  // velocity kept after bouncing off a wall
	GridCellSize    float64 `yaml:"grid_cell_size"`
	SteeringGain    float64 `yaml:"steering_gain"`    // scales speed deltas into velocity units
	TurnGain        float64 `yaml:"turn_gain"`        // scales turn deltas into radians per second
	MaxSpeed        float64 `yaml:"max_speed"`
	MaxAngularSpeed float64 `yaml:"max_angular_speed"`
}

// SensorsConfig holds vision and hearing parameters.
type SensorsConfig struct {
	SoundSpeed float64 `yaml:"sound_speed"` // speed above which a creature makes noise
	SoundRange float64 `yaml:"sound_range"` // hearing distance in emitter radii
}

// PopulationConfig holds population management parameters.
type PopulationConfig struct {
	Initial        int                `yaml:"initial"`
	Min            int                `yaml:"min"` // reseed when the population drops below this
	ReseedCount    int                `yaml:"reseed_count"`
	StartMaterials map[string]float64 `yaml:"start_materials"`
}

// ResourcesConfig holds plant and meat parameters.
type ResourcesConfig struct {
	InitialPlants   int     `yaml:"initial_plants"`
	MinPlants       int     `yaml:"min_plants"`
	InitialQuantity float64 `yaml:"initial_quantity"`
	RadiusDivisor   float64 `yaml:"radius_divisor"`   // plant radius = sqrt(total stock / divisor)
	ConvertInterval int     `yaml:"convert_interval"` // ticks between internal -> external conversions
	ConvertFraction float64 `yaml:"convert_fraction"`
	MergePlants     bool    `yaml:"merge_plants"`
	FertilityScale  float64 `yaml:"fertility_scale"` // width of fertile patches, 0 = uniform placement
}

// CreatureConfig holds metabolism and lifecycle constants.
type CreatureConfig struct {
	MassMultiplier          float64 `yaml:"mass_multiplier"`
	EnergyConsumeMultiplier float64 `yaml:"energy_consume_multiplier"`
	EatingMultiplier        float64 `yaml:"eating_multiplier"`
	EatReach                float64 `yaml:"eat_reach"`    // eat when head is within reach * resource radius
	EatingTicks             int     `yaml:"eating_ticks"` // eating countdown set after a bite
	EnergyPasses            int     `yaml:"energy_passes"`
	WasteMinQty             float64 `yaml:"waste_min_qty"`
	WasteSlack              float64 `yaml:"waste_slack"`
	ShapeTolerance          float64 `yaml:"shape_tolerance"`
	MaxActionPicks          int     `yaml:"max_action_picks"`
	SpawnOffset             float64 `yaml:"spawn_offset"` // child distance from parent in parent radii
}

// SpeciesConfig holds species divergence parameters.
type SpeciesConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// TraitsConfig holds the domains of the generated per-material and per-rule traits.
type TraitsConfig struct {
	MutationRate       float64 `yaml:"mutation_rate"`
	ChildQtyMin        float64 `yaml:"child_qty_min"`
	ChildQtyMax        float64 `yaml:"child_qty_max"`
	ReproduceFactorMin float64 `yaml:"reproduce_factor_min"`
	ReproduceFactorMax float64 `yaml:"reproduce_factor_max"`
	PriorityMax        float64 `yaml:"priority_max"`
	EnergyPriorityMax  float64 `yaml:"energy_priority_max"`
	RuleRateMax        float64 `yaml:"rule_rate_max"`
	WasteKeepMax       float64 `yaml:"waste_keep_max"`
}

// MaterialConfig defines one material kind.
type MaterialConfig struct {
	Name                string  `yaml:"name"`
	Mass                float64 `yaml:"mass"`
	Density             float64 `yaml:"density"`
	StructureEfficiency float64 `yaml:"structure_efficiency"`
	EnergyEfficiency    float64 `yaml:"energy_efficiency"`
	IsWaste             bool    `yaml:"is_waste"`
	IsPlant             bool    `yaml:"is_plant"`
	Waste               string  `yaml:"waste,omitempty"`      // byproduct of consuming this material for energy
	Undigested          string  `yaml:"undigested,omitempty"` // form this material takes when eaten as meat
	DecompositionRate   float64 `yaml:"decomposition_rate"`
	IgnoreForChild      bool    `yaml:"ignore_for_child"`
}

// AmountConfig is a material reference with a stoichiometric quantity.
type AmountConfig struct {
	Material string  `yaml:"material"`
	Qty      float64 `yaml:"qty"`
}

// CatalystConfig is a material reference with an effect weight.
type CatalystConfig struct {
	Material string  `yaml:"material"`
	Effect   float64 `yaml:"effect"`
}

// RuleConfig defines one conversion rule.
type RuleConfig struct {
	Name                 string           `yaml:"name"`
	Inputs               []AmountConfig   `yaml:"inputs"`
	Outputs              []AmountConfig   `yaml:"outputs"`
	Catalysts            []CatalystConfig `yaml:"catalysts,omitempty"`
	StructureMultiplier  *float64         `yaml:"structure_multiplier,omitempty"` // nil = 1, 0 disables the structure factor
	IngredientMultiplier *float64         `yaml:"ingredient_multiplier,omitempty"` // nil = 1, 0 disables the ingredient factor
	Speed                float64          `yaml:"speed"`
	Combine              string           `yaml:"combine"` // min, max, mean or product
}

// TelemetryConfig holds telemetry and logging parameters.
type TelemetryConfig struct {
	StatsWindow int  `yaml:"stats_window"` // ticks per stats window
	PerfWindow  int  `yaml:"perf_window"`
	LogStats    bool `yaml:"log_stats"`
}

// PersistenceConfig holds snapshot storage parameters.
type PersistenceConfig struct {
	Interval   int      `yaml:"interval"` // ticks between autosaves, 0 = never
	File       string   `yaml:"file"`
	SQLitePath string   `yaml:"sqlite_path"`
	S3         S3Config `yaml:"s3"`
}

// S3Config holds the snapshot archive bucket.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// MetricsConfig holds the Prometheus exporter address.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty = disabled
}

// HallOfFameConfig holds parameters for the genome hall of fame.
type HallOfFameConfig struct {
	Enabled     bool `yaml:"enabled"`
	Size        int  `yaml:"size"`
	MinChildren int  `yaml:"min_children"`
	MinAge      int  `yaml:"min_age"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	WorldW        float64
	WorldH        float64
	MaterialIndex map[string]int // name -> position in Materials
	RuleIndex     map[string]int // name -> position in Rules
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Set replaces the global configuration. Used by tools that mutate a loaded config.
func Set(cfg *Config) {
	global = cfg
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Lists (materials, rules) are replaced wholesale; scalars only where present.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// computeDerived calculates values derived from loaded config and fills
// per-item defaults the YAML cannot express.
func (c *Config) computeDerived() {
	c.Derived.WorldW = c.World.Width
	c.Derived.WorldH = c.World.Height
	if c.Derived.WorldH == 0 {
		c.Derived.WorldH = c.World.Width
	}

	for i := range c.Materials {
		m := &c.Materials[i]
		if m.Mass == 0 {
			m.Mass = 1
		}
		if m.Density == 0 {
			m.Density = 1
		}
	}

	for i := range c.Rules {
		r := &c.Rules[i]
		if r.StructureMultiplier == nil {
			one := 1.0
			r.StructureMultiplier = &one
		}
		if r.IngredientMultiplier == nil {
			one := 1.0
			r.IngredientMultiplier = &one
		}
		if r.Speed == 0 {
			r.Speed = 1
		}
		if r.Combine == "" {
			r.Combine = "min"
		}
	}

	c.Derived.MaterialIndex = make(map[string]int, len(c.Materials))
	for i, m := range c.Materials {
		c.Derived.MaterialIndex[m.Name] = i
	}
	c.Derived.RuleIndex = make(map[string]int, len(c.Rules))
	for i, r := range c.Rules {
		c.Derived.RuleIndex[r.Name] = i
	}
}

// Validate checks structural constraints that do not depend on material semantics.
// Cross-references between materials and rules are checked when the registry is built.
func (c *Config) Validate() error {
	var errs []error
	if c.World.Width <= 0 {
		errs = append(errs, fmt.Errorf("world.width must be positive, got %v", c.World.Width))
	}
	if c.Physics.DT <= 0 {
		errs = append(errs, fmt.Errorf("physics.dt must be positive, got %v", c.Physics.DT))
	}
	if c.Physics.GridCellSize <= 0 {
		errs = append(errs, fmt.Errorf("physics.grid_cell_size must be positive, got %v", c.Physics.GridCellSize))
	}
	if c.Creature.MassMultiplier <= 0 || math.IsInf(c.Creature.MassMultiplier, 0) {
		errs = append(errs, fmt.Errorf("creature.mass_multiplier must be positive, got %v", c.Creature.MassMultiplier))
	}
	if c.Creature.EnergyPasses < 1 {
		errs = append(errs, fmt.Errorf("creature.energy_passes must be at least 1, got %d", c.Creature.EnergyPasses))
	}
	if c.Resources.RadiusDivisor <= 0 {
		errs = append(errs, fmt.Errorf("resources.radius_divisor must be positive, got %v", c.Resources.RadiusDivisor))
	}
	if len(c.Materials) == 0 {
		errs = append(errs, errors.New("materials: at least one material is required"))
	}
	for _, m := range c.Materials {
		if m.Name == "" {
			errs = append(errs, errors.New("materials: empty material name"))
		}
	}
	for _, r := range c.Rules {
		if r.Name == "" {
			errs = append(errs, errors.New("rules: empty rule name"))
		}
	}
	errs = append(errs, c.Traits.validate()...)
	return errors.Join(errs...)
}

// validate checks that every generated trait domain satisfies max >= min >= 0.
func (t TraitsConfig) validate() []error {
	var errs []error
	if t.MutationRate < 0 || math.IsNaN(t.MutationRate) {
		errs = append(errs, fmt.Errorf("traits.mutation_rate must not be negative, got %v", t.MutationRate))
	}
	domains := []struct {
		name     string
		min, max float64
	}{
		{"child_qty", t.ChildQtyMin, t.ChildQtyMax},
		{"reproduce_factor", t.ReproduceFactorMin, t.ReproduceFactorMax},
		{"priority", 0, t.PriorityMax},
		{"energy_priority", 0, t.EnergyPriorityMax},
		{"rule_rate", 0, t.RuleRateMax},
		{"waste_keep", 0, t.WasteKeepMax},
	}
	for _, d := range domains {
		if !(d.min >= 0 && d.max >= d.min) || math.IsInf(d.max, 0) {
			errs = append(errs, fmt.Errorf("traits.%s domain [%v, %v] must satisfy max >= min >= 0", d.name, d.min, d.max))
		}
	}
	return errs
}

// Clone returns a deep copy of c with derived values recomputed.
func (c *Config) Clone() (*Config, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	out := &Config{}
	if err := yaml.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("parsing config copy: %w", err)
	}
	out.computeDerived()
	return out, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
