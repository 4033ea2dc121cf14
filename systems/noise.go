package systems

import (
	"math"
	"math/rand/v2"
)

// Fertility is a smooth Perlin field over the world that biases where new
// plants take root. A zero scale makes every position equally fertile.
type Fertility struct {
	perm  [512]uint8
	scale float64
}

// maxPlacementTries bounds the rejection sampling in Place.
const maxPlacementTries = 16

// NewFertility creates a field with features roughly scale world units wide.
func NewFertility(seed uint64, scale float64) *Fertility {
	f := &Fertility{scale: scale}
	rng := rand.New(rand.NewPCG(seed, seed^0xda942042e4dd58b5))

	var perm [256]uint8
	for i := range perm {
		perm[i] = uint8(i)
	}
	rng.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
	for i := range 256 {
		f.perm[i] = perm[i]
		f.perm[i+256] = perm[i]
	}
	return f
}

// At returns the fertility at (x, y) in [0, 1].
func (f *Fertility) At(x, y float64) float64 {
	if f == nil || f.scale <= 0 {
		return 1
	}
	v := 0.5 + 0.5*f.noise(x/f.scale, y/f.scale)
	return min(max(v, 0), 1)
}

// Place draws a position inside b, accepting candidates with probability
// equal to their fertility. After maxPlacementTries rejections the last
// candidate is used.
func (f *Fertility) Place(rng *rand.Rand, b Bounds) (x, y float64) {
	for range maxPlacementTries {
		x, y = rng.Float64()*b.Width, rng.Float64()*b.Height
		if rng.Float64() < f.At(x, y) {
			return x, y
		}
	}
	return x, y
}

// noise is 2D Perlin noise in roughly [-1, 1].
func (f *Fertility) noise(x, y float64) float64 {
	fx, fy := math.Floor(x), math.Floor(y)
	xi, yi := int(fx)&255, int(fy)&255
	x -= fx
	y -= fy
	u, v := fade(x), fade(y)

	a := int(f.perm[xi]) + yi
	b := int(f.perm[xi+1]) + yi
	return lerp(v,
		lerp(u, grad2D(f.perm[a], x, y), grad2D(f.perm[b], x-1, y)),
		lerp(u, grad2D(f.perm[a+1], x, y-1), grad2D(f.perm[b+1], x-1, y-1)))
}

func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(t, a, b float64) float64 {
	return a + t*(b-a)
}

func grad2D(hash uint8, x, y float64) float64 {
	switch hash & 7 {
	case 0:
		return x + y
	case 1:
		return -x + y
	case 2:
		return x - y
	case 3:
		return -x - y
	case 4:
		return x
	case 5:
		return -x
	case 6:
		return y
	default:
		return -y
	}
}
