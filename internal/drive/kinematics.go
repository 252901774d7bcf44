package drive

import (
	"math"

	"github.com/mbojarska/tadpole/internal/models"
)

// Mix converts shaped forward and turn values into wheel throttles.
//
// Positive turn rotates the vehicle clockwise seen from above: the left wheel
// drives harder than the right. Forward 0 with a non-zero turn spins in
// place. Each wheel is clamped to [-1, 1] and nothing else is scaled, so pure
// forward and pure turn both reach full speed.
func Mix(forward, turn float64) models.MotorCommand {
	return models.FromComponents(forward, turn)
}

// LimitThrottle caps the magnitude of each wheel at limit, keeping direction.
func LimitThrottle(cmd models.MotorCommand, limit float64) models.MotorCommand {
	if limit >= models.MaxOutput {
		return cmd
	}
	return models.MotorCommand{
		Left:  limitOne(cmd.Left, limit),
		Right: limitOne(cmd.Right, limit),
	}
}

func limitOne(value, limit float64) float64 {
	if math.Abs(value) > limit {
		return math.Copysign(limit, value)
	}
	return value
}
