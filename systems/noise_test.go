package systems

import (
	"math/rand/v2"
	"testing"
)

func TestFertilityRangeAndDeterminism(t *testing.T) {
	a := NewFertility(7, 100)
	b := NewFertility(7, 100)
	varies := false
	first := a.At(0.5, 0.5)
	for i := range 200 {
		x, y := float64(i)*13.7, float64(i)*5.3
		v := a.At(x, y)
		if v < 0 || v > 1 {
			t.Fatalf("At(%v, %v) = %v, outside [0, 1]", x, y, v)
		}
		if v != b.At(x, y) {
			t.Fatalf("same seed gave different fertility at (%v, %v)", x, y)
		}
		if v != first {
			varies = true
		}
	}
	if !varies {
		t.Error("fertility is constant across the world")
	}
}

func TestFertilityZeroScaleIsUniform(t *testing.T) {
	f := NewFertility(1, 0)
	if got := f.At(123, 456); got != 1 {
		t.Errorf("At = %v, want 1", got)
	}
	var nilField *Fertility
	if got := nilField.At(1, 2); got != 1 {
		t.Errorf("nil At = %v, want 1", got)
	}
}

func TestFertilityPlaceBiasesTowardFertileGround(t *testing.T) {
	f := NewFertility(3, 80)
	rng := rand.New(rand.NewPCG(1, 2))
	b := Bounds{Width: 800, Height: 800}

	var placed, uniform float64
	const n = 2000
	for range n {
		x, y := f.Place(rng, b)
		if x < 0 || x > b.Width || y < 0 || y > b.Height {
			t.Fatalf("Place = (%v, %v), outside bounds", x, y)
		}
		placed += f.At(x, y)
		uniform += f.At(rng.Float64()*b.Width, rng.Float64()*b.Height)
	}
	if placed <= uniform {
		t.Errorf("mean fertility of placed plants %v <= uniform %v", placed/n, uniform/n)
	}
}
