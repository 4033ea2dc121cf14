package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/lifesim/config"
	"github.com/pthm-cable/lifesim/telemetry"
)

func loadDefaults(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

func TestParamVectorCoversRules(t *testing.T) {
	cfg := loadDefaults(t)
	pv := NewParamVector(cfg)

	names := make(map[string]bool)
	for _, s := range pv.Specs {
		names[s.Name] = true
		if s.Default < s.Min || s.Default > s.Max {
			t.Errorf("%s: default %v outside [%v, %v]", s.Name, s.Default, s.Min, s.Max)
		}
	}
	for _, r := range cfg.Rules {
		if !names["rule_speed."+r.Name] {
			t.Errorf("no speed parameter for rule %q", r.Name)
		}
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	pv := NewParamVector(loadDefaults(t))
	def := pv.DefaultVector()
	back := pv.Denormalize(pv.Normalize(def))
	for i := range def {
		if math.Abs(back[i]-def[i]) > 1e-12 {
			t.Errorf("%s: round trip = %v, want %v", pv.Specs[i].Name, back[i], def[i])
		}
	}
}

func TestApplyClampsAndExtracts(t *testing.T) {
	cfg := loadDefaults(t)
	pv := NewParamVector(cfg)

	values := pv.DefaultVector()
	values[0] = pv.Specs[0].Max * 10
	values[len(values)-1] = pv.Specs[len(values)-1].Min - 1

	cp, err := cfg.Clone()
	if err != nil {
		t.Fatal(err)
	}
	pv.ApplyToConfig(cp, values)
	got := pv.ExtractFromConfig(cp)

	if got[0] != pv.Specs[0].Max {
		t.Errorf("%s = %v, want clamped %v", pv.Specs[0].Name, got[0], pv.Specs[0].Max)
	}
	last := len(got) - 1
	if got[last] != pv.Specs[last].Min {
		t.Errorf("%s = %v, want clamped %v", pv.Specs[last].Name, got[last], pv.Specs[last].Min)
	}
	if cfg.Creature.MassMultiplier != pv.Specs[0].Default {
		t.Error("ApplyToConfig modified the base config")
	}
}

func TestQualityRewardsStableGrowth(t *testing.T) {
	steady := make([]telemetry.WindowStats, 10)
	for i := range steady {
		steady[i] = telemetry.WindowStats{Creatures: 30, Births: 5, Deaths: 5, GenerationMax: i * 2}
	}
	crashing := make([]telemetry.WindowStats, 10)
	for i := range crashing {
		crashing[i] = telemetry.WindowStats{Creatures: 30 - 3*i, Deaths: 3}
	}

	qs, qc := computeQuality(steady), computeQuality(crashing)
	if qs <= qc {
		t.Errorf("steady quality %v <= crashing quality %v", qs, qc)
	}
	if qs < 0 || qs > 1 {
		t.Errorf("quality %v outside [0, 1]", qs)
	}
	if got := computeQuality(steady[:2]); got != 0 {
		t.Errorf("quality during warmup = %v, want 0", got)
	}
}

func TestFitnessPrefersSurvival(t *testing.T) {
	if computeFitness(1000, 0) >= computeFitness(500, 1) {
		t.Error("longer survival should beat higher quality")
	}
	if computeFitness(500, 1) >= computeFitness(500, 0) {
		t.Error("quality should break survival ties")
	}
}

func TestEvaluateRunsHeadlessWorlds(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Population.Initial = 4
	cfg.Resources.InitialPlants = 4
	cfg.Telemetry.StatsWindow = 5

	pv := NewParamVector(cfg)
	fe := NewFitnessEvaluator(pv, 20, []uint64{1, 2}, cfg)

	fitness := fe.Evaluate(pv.DefaultVector())
	score := fe.Last()
	if fitness > 0 {
		t.Errorf("fitness = %v, want <= 0", fitness)
	}
	if score.Survival <= 0 || score.Survival > 20 {
		t.Errorf("survival = %v, want in (0, 20]", score.Survival)
	}
	if fe.BestHallOfFame() == nil && cfg.HallOfFame.Enabled {
		t.Error("best hall of fame not recorded")
	}
}
