package traits

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/pthm-cable/lifesim/config"
	"github.com/pthm-cable/lifesim/materials"
)

func testSet(t *testing.T) (*Set, *materials.Registry, []*materials.Rule) {
	t.Helper()
	config.MustInit("")
	cfg := config.Cfg()
	reg, err := materials.NewRegistry(cfg.Materials, cfg.Creature.MassMultiplier)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	rules, err := materials.NewRules(reg, cfg.Rules)
	if err != nil {
		t.Fatalf("NewRules: %v", err)
	}
	return NewSet(reg, rules, cfg.Traits), reg, rules
}

func TestTraitDomainClosure(t *testing.T) {
	set, _, _ := testSet(t)
	rng := rand.New(rand.NewPCG(42, 0))

	for _, tr := range set.Traits() {
		t.Run(tr.Name, func(t *testing.T) {
			for i := 0; i < 200; i++ {
				v := tr.Random(rng)
				checkDomain(t, tr, v)
				for j := 0; j < 5; j++ {
					v = tr.Mutate(rng, v)
					checkDomain(t, tr, v)
				}
			}
		})
	}
}

func checkDomain(t *testing.T, tr Trait, v float64) {
	t.Helper()
	if v < tr.Min || v > tr.Max {
		t.Fatalf("%s = %v, want within [%v, %v]", tr.Name, v, tr.Min, tr.Max)
	}
	if tr.IntegerOnly && v != math.Trunc(v) {
		t.Fatalf("%s = %v, want integer", tr.Name, v)
	}
}

func TestTraitSimilarity(t *testing.T) {
	linear := Trait{Name: "linear", Min: 0, Max: 10}
	proportional := Trait{Name: "prop", Min: 1, Max: 1000, ProportionalMutation: true}

	tests := []struct {
		name  string
		trait Trait
		a, b  float64
		want  float64
	}{
		{"identical linear", linear, 3, 3, 1},
		{"linear half range", linear, 0, 5, 0.5},
		{"linear full range", linear, 0, 10, 0},
		{"identical proportional", proportional, 40, 40, 1},
		{"proportional ratio", proportional, 10, 40, 0.25},
		{"proportional symmetric", proportional, 40, 10, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.trait.Similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Similarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestExponentialRandomBias(t *testing.T) {
	tr := Trait{Name: "child_qty", Min: 1e4, Max: 1e7, IntegerOnly: true, ExponentialRandom: true, ProportionalMutation: true}
	rng := rand.New(rand.NewPCG(3, 5))

	var below int
	for i := 0; i < 1000; i++ {
		if tr.Random(rng) < tr.Min+tr.Range()/100 {
			below++
		}
	}
	// Exp(1)/1000 exceeds 1/100 of the range with probability e^-10.
	if below < 990 {
		t.Errorf("%d of 1000 draws in the lowest 1%% of the range, want nearly all", below)
	}
}

func TestNewSetExpansion(t *testing.T) {
	set, reg, rules := testSet(t)

	for _, name := range []string{
		"speed", "eating_speed", "vision_distance", "vision_angle",
		"walk_priority", "run_priority", "fast_run_priority", "idle_priority", "rotate_priority",
		"energy_child_qty", "energy_reproduce_factor",
		"structure_child_qty", "storage_reproduce_factor",
		"digest_rate", "create_structure_rate", "create_storage_rate", "revert_to_energy_rate",
		"waste_waste_keep",
	} {
		if _, ok := set.Lookup(name); !ok {
			t.Errorf("trait %q missing", name)
		}
	}

	// One energy source means no priority split, and ignored materials get no child traits.
	if _, ok := set.Lookup("energy_energy_priority"); ok {
		t.Error("energy_energy_priority present with a single energy material")
	}
	if set.ChildQty(reg.Plant()) != None {
		t.Errorf("ChildQty(plant) = %v, want None", set.ChildQty(reg.Plant()))
	}

	if i, _ := set.Lookup("speed"); i != Speed {
		t.Errorf("speed index = %d, want %d", i, Speed)
	}
	if i, _ := set.Lookup("rotate_priority"); i != RotatePriority {
		t.Errorf("rotate_priority index = %d, want %d", i, RotatePriority)
	}
	for _, r := range rules {
		if set.RuleRate(r) == None {
			t.Errorf("RuleRate(%s) = None", r.Name)
		}
	}
}

func TestGenomeMapRoundTrip(t *testing.T) {
	set, _, _ := testSet(t)
	rng := rand.New(rand.NewPCG(9, 9))

	g := set.Random(rng)
	back, missing, unknown := set.FromMap(set.Map(g))
	if len(missing) != 0 || len(unknown) != 0 {
		t.Fatalf("missing = %v, unknown = %v, want none", missing, unknown)
	}
	for i := range g {
		if back[i] != g[i] {
			t.Errorf("%s = %v, want %v", set.Trait(Index(i)).Name, back[i], g[i])
		}
	}

	partial := map[string]float64{"speed": 0.5, "wingspan": 3}
	g2, missing, unknown := set.FromMap(partial)
	if g2.Get(Speed) != 0.5 {
		t.Errorf("speed = %v, want 0.5", g2.Get(Speed))
	}
	if len(missing) != set.Len()-1 {
		t.Errorf("len(missing) = %d, want %d", len(missing), set.Len()-1)
	}
	if len(unknown) != 1 || unknown[0] != "wingspan" {
		t.Errorf("unknown = %v, want [wingspan]", unknown)
	}
}

func TestMutateDoesNotTouchParent(t *testing.T) {
	set, _, _ := testSet(t)
	rng := rand.New(rand.NewPCG(1, 1))

	parent := set.Random(rng)
	snapshot := parent.Clone()
	_ = set.Mutate(rng, parent)
	for i := range parent {
		if parent[i] != snapshot[i] {
			t.Fatalf("parent[%d] changed from %v to %v", i, snapshot[i], parent[i])
		}
	}
}
