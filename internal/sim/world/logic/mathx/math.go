package mathx

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
)

func Dist(a, b mgl64.Vec2) float64 {
	return a.Sub(b).Len()
}

func Finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func FiniteVec(v mgl64.Vec2) bool {
	return Finite(v[0]) && Finite(v[1])
}

// ClampVec clamps x into [min.x, max.x] and y into [min.y, max.y].
func ClampVec(v mgl64.Vec2, min, max mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{
		mgl64.Clamp(v[0], min[0], max[0]),
		mgl64.Clamp(v[1], min[1], max[1]),
	}
}

// Inset clamps v into a width x height rectangle shrunk by margin on every side.
func Inset(v mgl64.Vec2, width, height, margin float64) mgl64.Vec2 {
	return ClampVec(v, mgl64.Vec2{margin, margin}, mgl64.Vec2{width - margin, height - margin})
}

// LimitUnit scales v down to length 1 when it is longer. Shorter vectors are
// returned unchanged so analog input keeps its magnitude.
func LimitUnit(v mgl64.Vec2) mgl64.Vec2 {
	if l := v.Len(); l > 1 {
		return v.Mul(1 / l)
	}
	return v
}

// RandIn returns a uniformly random point in the rectangle
// [margin, width-margin) x [margin, height-margin).
func RandIn(rng *rand.Rand, width, height, margin float64) mgl64.Vec2 {
	return mgl64.Vec2{
		rng.Float64()*(width-2*margin) + margin,
		rng.Float64()*(height-2*margin) + margin,
	}
}
