package drive

import (
	"math"

	"github.com/mbojarska/tadpole/internal/models"
)

const DefaultExponent = 3

// Curve shapes a normalized axis value. Implementations must be odd
// (c(-x) == -c(x)) and monotonic, with c(0) == 0 and c(1) == 1.
type Curve func(float64) float64

// PowerCurve returns sign(x)*|x|^exponent, which is x^exponent for odd
// exponents. Exponents below 1 fall back to DefaultExponent.
func PowerCurve(exponent int) Curve {
	if !ValidExponent(exponent) {
		exponent = DefaultExponent
	}
	n := float64(exponent)
	return func(x float64) float64 {
		return math.Copysign(math.Pow(math.Abs(x), n), x)
	}
}

// Linear passes the value through unchanged.
func Linear(x float64) float64 {
	return x
}

func ValidExponent(exponent int) bool {
	return exponent > 0 && exponent%2 == 1
}

// Shape clamps x to [-1, 1] and applies the curve.
func Shape(c Curve, x float64) float64 {
	if c == nil {
		c = Linear
	}
	return c(models.Clamp(x, models.MinOutput, models.MaxOutput))
}

// ApplyDeadZone zeroes values whose magnitude is below radius.
func ApplyDeadZone(value, radius float64) float64 {
	if math.Abs(value) < radius {
		return 0
	}
	return value
}
