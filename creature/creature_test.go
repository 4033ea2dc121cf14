package creature

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/pthm-cable/lifesim/behavior"
	"github.com/pthm-cable/lifesim/config"
	"github.com/pthm-cable/lifesim/materials"
	"github.com/pthm-cable/lifesim/species"
	"github.com/pthm-cable/lifesim/traits"
)

type fakeBody struct {
	x, y, angle float64
	vx, vy, w   float64
	radius      float64
	mass        float64
	dv, dw      float64
	steered     int
}

func (b *fakeBody) Position() (float64, float64) { return b.x, b.y }
func (b *fakeBody) Angle() float64 { return b.angle }
func (b *fakeBody) Velocity() (float64, float64) { return b.vx, b.vy }
func (b *fakeBody) AngularVelocity() float64 { return b.w }
func (b *fakeBody) SetShape(radius, mass float64) { b.radius, b.mass = radius, mass }
func (b *fakeBody) SetVision(float64, float64) {}

func (b *fakeBody) ApplySteering(dv, dw float64) {
	b.dv += dv
	b.dw += dw
	b.steered++
}

type fakeFood struct {
	x, y, radius float64
	give         *materials.Quantities
	asked        float64
}

func (f *fakeFood) Position() (float64, float64) { return f.x, f.y }
func (f *fakeFood) Radius() float64 { return f.radius }
func (f *fakeFood) Alive() bool { return true }

func (f *fakeFood) Consume(amount float64) *materials.Quantities {
	f.asked = amount
	g := f.give
	f.give = nil
	return g
}

func testContext(t *testing.T, mats []config.MaterialConfig) *Context {
	t.Helper()
	config.MustInit("")
	cfg := config.Cfg()
	if mats == nil {
		mats = cfg.Materials
	}
	reg, err := materials.NewRegistry(mats, cfg.Creature.MassMultiplier)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	rules, err := materials.NewRules(reg, cfg.Rules)
	if err != nil {
		t.Fatalf("NewRules: %v", err)
	}
	set := traits.NewSet(reg, rules, cfg.Traits)
	return &Context{
		Registry: reg,
		Rules:    rules,
		Traits:   set,
		Lineage:  species.NewLineage(set, cfg.Species.SimilarityThreshold),
		Config:   cfg.Creature,
		Rand:     rand.New(rand.NewPCG(7, 11)),
	}
}

// quietGenome returns a genome that never converts, wanders only by idling
// and is far from the reproduction threshold.
func quietGenome(ctx *Context) traits.Genome {
	set := ctx.Traits
	g := make(traits.Genome, set.Len())
	for i, tr := range set.Traits() {
		g[i] = tr.Min
	}
	for _, k := range ctx.Registry.Kinds() {
		if i := set.ChildQty(k); i != traits.None {
			g[i] = set.Trait(i).Max
			g[set.ReproduceFactor(k)] = set.Trait(set.ReproduceFactor(k)).Max
		}
	}
	return g
}

func quantities(t *testing.T, reg *materials.Registry, m map[string]float64) *materials.Quantities {
	t.Helper()
	q, unknown := materials.FromMap(reg, m)
	if len(unknown) > 0 {
		t.Fatalf("unknown materials %v", unknown)
	}
	return q
}

func mustKind(t *testing.T, reg *materials.Registry, name string) *materials.Kind {
	t.Helper()
	k, ok := reg.Lookup(name)
	if !ok {
		t.Fatalf("kind %q not found", name)
	}
	return k
}

func spawn(t *testing.T, ctx *Context, g traits.Genome, m map[string]float64) (*Creature, *fakeBody) {
	t.Helper()
	c := New(ctx, 1, g, ctx.Lineage.Found(g, nil), quantities(t, ctx.Registry, m))
	b := &fakeBody{x: 100, y: 100}
	c.Attach(b)
	return c, b
}

func TestNoEnergyDies(t *testing.T) {
	ctx := testContext(t, nil)
	c, _ := spawn(t, ctx, quietGenome(ctx), map[string]float64{"structure": 1000, "storage": 500})
	before := c.Materials.Map()

	out := c.Act()
	if !out.Died {
		t.Fatal("Act() survived without energy")
	}
	if out.Remains == nil {
		t.Fatal("Remains = nil, want the creature's materials")
	}
	for name, want := range before {
		if got := out.Remains.Map()[name]; got != want {
			t.Errorf("Remains[%s] = %v, want %v", name, got, want)
		}
	}
	if out.Birth != nil {
		t.Error("dead creature reproduced")
	}
}

func TestUpkeepBurnsEnergyIntoWaste(t *testing.T) {
	ctx := testContext(t, nil)
	g := quietGenome(ctx)
	g[traits.VisionDistance] = 0.5
	g[traits.Speed] = 0.5
	c, b := spawn(t, ctx, g, map[string]float64{"energy": 1e6, "structure": 2e5})

	// body mass 120, load (0.1+0.5)*1 + 0.5 = 1.1: floor(1.32) = 1, 40*1 + 1 = 41
	if got := c.upkeep(); got != 41 {
		t.Fatalf("upkeep() = %d, want 41", got)
	}

	out := c.Act()
	if out.Died {
		t.Fatal("creature died")
	}
	reg := ctx.Registry
	if got := c.Materials.Get(mustKind(t, reg, "energy")); got != 1e6-41 {
		t.Errorf("energy = %v, want %v", got, 1e6-41)
	}
	if got := c.Materials.Get(mustKind(t, reg, "waste")); got != 41 {
		t.Errorf("waste = %v, want 41", got)
	}
	if b.dv != 0 || b.dw != 0 {
		t.Errorf("idle creature steered: dv=%v dw=%v", b.dv, b.dw)
	}
	if c.Age != 1 {
		t.Errorf("Age = %d, want 1", c.Age)
	}
}

func twoFuelMaterials(t *testing.T) []config.MaterialConfig {
	t.Helper()
	config.MustInit("")
	mats := append([]config.MaterialConfig(nil), config.Cfg().Materials...)
	return append(mats, config.MaterialConfig{
		Name: "sugar", Mass: 1, Density: 1, EnergyEfficiency: 2, Waste: "waste",
	})
}

func TestConsumeEnergySplit(t *testing.T) {
	ctx := testContext(t, twoFuelMaterials(t))
	reg := ctx.Registry
	energy, sugar, waste := mustKind(t, reg, "energy"), mustKind(t, reg, "sugar"), mustKind(t, reg, "waste")

	tests := []struct {
		name                  string
		energy, sugar         float64
		cost                  float64
		ok                    bool
		wantEnergy, wantSugar float64
		wantWaste             float64
	}{
		{"split by priority", 1000, 1000, 100, true, 975, 962.5, 62.5},
		{"shortfall moves to the other fuel", 10, 1000, 100, true, 0, 955, 55},
		{"not enough in total", 10, 10, 100, false, 10, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := quietGenome(ctx)
			g[ctx.Traits.EnergyPriority(energy)] = 1
			g[ctx.Traits.EnergyPriority(sugar)] = 3
			c, _ := spawn(t, ctx, g, map[string]float64{"energy": tt.energy, "sugar": tt.sugar})

			if got := c.consumeEnergy(tt.cost); got != tt.ok {
				t.Fatalf("consumeEnergy(%v) = %v, want %v", tt.cost, got, tt.ok)
			}
			check := func(k *materials.Kind, want float64) {
				if got := c.Materials.Get(k); math.Abs(got-want) > 1e-9 {
					t.Errorf("%s = %v, want %v", k.Name, got, want)
				}
			}
			check(energy, tt.wantEnergy)
			check(sugar, tt.wantSugar)
			check(waste, tt.wantWaste)
		})
	}
}

func TestConsumeEnergyZeroPrioritiesSplitEvenly(t *testing.T) {
	ctx := testContext(t, twoFuelMaterials(t))
	energy, sugar := mustKind(t, ctx.Registry, "energy"), mustKind(t, ctx.Registry, "sugar")
	c, _ := spawn(t, ctx, quietGenome(ctx), map[string]float64{"energy": 1000, "sugar": 1000})

	if !c.consumeEnergy(100) {
		t.Fatal("consumeEnergy(100) = false")
	}
	if got := c.Materials.Get(energy); got != 950 {
		t.Errorf("energy = %v, want 950", got)
	}
	if got := c.Materials.Get(sugar); got != 975 {
		t.Errorf("sugar = %v, want 975", got)
	}
}

func TestReproduction(t *testing.T) {
	ctx := testContext(t, nil)
	g := quietGenome(ctx)
	for _, k := range ctx.Registry.Kinds() {
		if i := ctx.Traits.ChildQty(k); i != traits.None {
			g[i] = 10000
			g[ctx.Traits.ReproduceFactor(k)] = 2
		}
	}
	c, b := spawn(t, ctx, g, map[string]float64{"energy": 1e6, "structure": 30000, "storage": 20000})
	b.angle = 0

	out := c.Act()
	if out.Birth == nil {
		t.Fatal("Act() did not reproduce")
	}
	birth := out.Birth
	reg := ctx.Registry
	for name, want := range map[string]float64{"energy": 10000, "structure": 10000, "storage": 10000} {
		if got := birth.Materials.Get(mustKind(t, reg, name)); got != want {
			t.Errorf("child %s = %v, want %v", name, got, want)
		}
	}
	if got := c.Materials.Get(mustKind(t, reg, "structure")); got != 20000 {
		t.Errorf("parent structure = %v, want 20000", got)
	}
	if birth.Generation != 1 || c.Children != 1 {
		t.Errorf("Generation = %d Children = %d, want 1 and 1", birth.Generation, c.Children)
	}
	if birth.Species == nil {
		t.Error("child has no species")
	}
	if birth.X >= b.x {
		t.Errorf("child x = %v, want behind the parent at %v", birth.X, b.x)
	}
	for i, tr := range ctx.Traits.Traits() {
		if v := birth.Genome[i]; v < tr.Min || v > tr.Max {
			t.Errorf("child %s = %v outside [%v, %v]", tr.Name, v, tr.Min, tr.Max)
		}
	}

	// The parent no longer has enough storage for a second child.
	if out := c.Act(); out.Birth != nil {
		t.Error("reproduced twice without enough storage")
	}
}

func TestExcretion(t *testing.T) {
	ctx := testContext(t, nil)
	waste := mustKind(t, ctx.Registry, "waste")
	g := quietGenome(ctx)
	g[ctx.Traits.WasteKeep(waste)] = 0.25
	c, _ := spawn(t, ctx, g, map[string]float64{"energy": 10000, "waste": 5000})

	// Upkeep is 1, so waste is 5001 of 15000 total; keep a quarter of the total.
	out := c.Act()
	if out.Excreted != 1251 {
		t.Errorf("Excreted = %v, want 1251", out.Excreted)
	}
	if got := c.Materials.Get(waste); got != 3750 {
		t.Errorf("waste = %v, want 3750", got)
	}
}

func TestExcretionNeedsMinimumQuantity(t *testing.T) {
	ctx := testContext(t, nil)
	c, _ := spawn(t, ctx, quietGenome(ctx), map[string]float64{"energy": 10000, "waste": 500})
	if out := c.Act(); out.Excreted != 0 {
		t.Errorf("Excreted = %v, want 0 below the minimum quantity", out.Excreted)
	}
}

func TestSteeringCostsEnergy(t *testing.T) {
	ctx := testContext(t, nil)
	g := quietGenome(ctx)
	g[traits.Speed] = 1
	c, _ := spawn(t, ctx, g, map[string]float64{"energy": 1e6, "structure": 1e5})

	before := c.Materials.EnergyScore()
	v := c.speedDelta(1)
	if v <= 0 {
		t.Fatalf("speedDelta(1) = %v, want positive", v)
	}
	if c.Materials.EnergyScore() >= before {
		t.Error("forward push was free")
	}

	back := c.speedDelta(-1)
	if math.Abs(back+v/4) > 1e-9 {
		t.Errorf("speedDelta(-1) = %v, want %v", back, -v/4)
	}

	if w := c.turnDelta(-0.5); w >= 0 {
		t.Errorf("turnDelta(-0.5) = %v, want negative", w)
	}
}

func TestSteeringWithoutEnergyDoesNothing(t *testing.T) {
	ctx := testContext(t, nil)
	g := quietGenome(ctx)
	g[traits.Speed] = 1
	c, _ := spawn(t, ctx, g, map[string]float64{"structure": 1e5})

	if v := c.speedDelta(1); v != 0 {
		t.Errorf("speedDelta(1) = %v, want 0 without energy", v)
	}
}

func TestActFollowsAction(t *testing.T) {
	ctx := testContext(t, nil)
	g := quietGenome(ctx)
	g[traits.Speed] = 1
	c, b := spawn(t, ctx, g, map[string]float64{"energy": 1e6, "structure": 1e5})
	c.action = behavior.NewFastRun(1e4, 100, false)

	c.Act()
	if b.steered != 1 || b.dv <= 0 {
		t.Errorf("steered = %d dv = %v, want one forward push", b.steered, b.dv)
	}

	c.StopAction()
	if c.Action() != nil {
		t.Error("StopAction() kept the action")
	}
}

func TestEat(t *testing.T) {
	ctx := testContext(t, nil)
	g := quietGenome(ctx)
	g[traits.EatingSpeed] = 0.6
	c, _ := spawn(t, ctx, g, map[string]float64{"energy": 1e6})

	plant := ctx.Registry.Plant()
	bite := materials.NewQuantities(ctx.Registry)
	bite.Set(plant, 300)
	food := &fakeFood{radius: 10, give: bite}

	gained := c.Eat(food)
	if gained != 300 {
		t.Fatalf("Eat() = %v, want 300", gained)
	}
	base := (0.3 + 0.6) / 3
	if want := 100 * eatRate * ctx.Config.EatingMultiplier * base; math.Abs(food.asked-want) > 1e-6 {
		t.Errorf("asked for %v, want %v", food.asked, want)
	}
	if got := c.Materials.Get(plant); got != 300 {
		t.Errorf("plant matter = %v, want 300", got)
	}
	if c.spent != int(base/2*300) {
		t.Errorf("spent = %d, want %d", c.spent, int(base/2*300))
	}
	if !c.Eating() {
		t.Error("Eating() = false after a bite")
	}

	if got := c.Eat(food); got != 0 || c.spent != int(base/2*300) {
		t.Errorf("empty bite gained %v", got)
	}
}

func TestVisionResourceAlertStartsChase(t *testing.T) {
	ctx := testContext(t, nil)
	c, _ := spawn(t, ctx, quietGenome(ctx), map[string]float64{"energy": 1e6})
	c.action = behavior.NewIdle(50)

	c.VisionResourceAlert(&fakeFood{x: 150, y: 100, radius: c.Radius()})
	if c.Action() != nil {
		t.Error("action kept after a new behavior was pushed")
	}
	if top := c.Behaviors.Top().Name(); top != "eating" {
		t.Errorf("top behavior = %s, want eating", top)
	}
}

func TestShapeUpdatesPastTolerance(t *testing.T) {
	ctx := testContext(t, nil)
	c, b := spawn(t, ctx, quietGenome(ctx), map[string]float64{"energy": 1e6})
	r0 := b.radius

	c.Materials.Add(ctx.Registry.Plant(), 1000) // well under 5% radius
	c.pushShape(false)
	if b.radius != r0 {
		t.Errorf("radius changed to %v for a small gain", b.radius)
	}

	c.Materials.Add(ctx.Registry.Plant(), 1e6)
	c.pushShape(false)
	if b.radius <= r0 {
		t.Errorf("radius = %v, want larger than %v", b.radius, r0)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := testContext(t, nil)
	c := Random(ctx, 42, quantities(t, ctx.Registry, map[string]float64{"energy": 12345, "structure": 678}))
	c.Generation = 3
	c.Age = 99

	s := c.Snapshot()
	r := Restore(ctx, s)

	if r.ID != 42 || r.Generation != 3 || r.Age != 99 {
		t.Errorf("restored header = %d/%d/%d", r.ID, r.Generation, r.Age)
	}
	if r.Species != c.Species {
		t.Errorf("Species = %v, want %v", r.Species, c.Species)
	}
	for i := range c.Genome {
		if r.Genome[i] != c.Genome[i] {
			t.Errorf("trait %s = %v, want %v", ctx.Traits.Trait(traits.Index(i)).Name, r.Genome[i], c.Genome[i])
		}
	}
	for name, want := range c.Materials.Map() {
		if got := r.Materials.Map()[name]; got != want {
			t.Errorf("material %s = %v, want %v", name, got, want)
		}
	}
}

func TestRestoreDegradesGracefully(t *testing.T) {
	ctx := testContext(t, nil)
	r := Restore(ctx, Snapshot{
		ID:        7,
		Species:   "ZZZ",
		Traits:    map[string]float64{"speed": 0.25, "wings": 3},
		Materials: map[string]float64{"energy": 5, "unobtainium": 1},
	})

	if r.Species != nil {
		t.Errorf("Species = %v, want nil for an unknown name", r.Species)
	}
	if got := r.Genome.Get(traits.Speed); got != 0.25 {
		t.Errorf("speed = %v, want 0.25", got)
	}
	walk := ctx.Traits.Trait(traits.WalkPriority)
	if got := r.Genome.Get(traits.WalkPriority); got != walk.Min {
		t.Errorf("missing trait = %v, want domain minimum %v", got, walk.Min)
	}
	if got := r.Materials.Get(mustKind(t, ctx.Registry, "energy")); got != 5 {
		t.Errorf("energy = %v, want 5", got)
	}
	if got := r.Materials.Get(mustKind(t, ctx.Registry, "structure")); got != 0 {
		t.Errorf("missing material = %v, want 0", got)
	}
}
