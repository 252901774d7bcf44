package models

import (
	"fmt"
	"math"
)

const (
	MaxOutput = 1.0
	MinOutput = -1.0
)

// AxisInput is one sample of the drive stick, both axes normalized to [-1, 1].
// Forward is positive when the stick is pushed away from the driver, Turn is
// positive when the stick is pushed right.
type AxisInput struct {
	Forward float64
	Turn    float64
}

// MotorCommand holds a signed throttle per wheel. The sign is the direction of
// rotation and the magnitude is the duty cycle.
type MotorCommand struct {
	Left  float64
	Right float64
}

// Stop is the all-stop command.
var Stop = MotorCommand{}

// FromComponents rebuilds a command from its forward and turn components.
func FromComponents(forward, turn float64) MotorCommand {
	return MotorCommand{
		Left:  forward + turn,
		Right: forward - turn,
	}.Clamp()
}

func (c MotorCommand) Clamp() MotorCommand {
	return MotorCommand{
		Left:  Clamp(c.Left, MinOutput, MaxOutput),
		Right: Clamp(c.Right, MinOutput, MaxOutput),
	}
}

// Forward is the translational component, the average of both wheels.
func (c MotorCommand) Forward() float64 {
	return (c.Left + c.Right) / 2
}

// Turn is the rotational component. Positive rotates clockwise seen from above.
func (c MotorCommand) Turn() float64 {
	return (c.Left - c.Right) / 2
}

func (c MotorCommand) IsStop() bool {
	return c.Left == 0 && c.Right == 0
}

func (c MotorCommand) String() string {
	return fmt.Sprintf("L:%+.2f R:%+.2f", c.Left, c.Right)
}

// Distance is a range reading in meters. Known is false when the sensor gave
// no valid echo.
type Distance struct {
	Meters float64
	Known  bool
}

func UnknownDistance() Distance {
	return Distance{}
}

func DistanceOf(meters float64) Distance {
	return Distance{Meters: meters, Known: meters >= 0}
}

func (d Distance) String() string {
	if !d.Known {
		return "unknown"
	}
	return fmt.Sprintf("%.2fm", d.Meters)
}

// Clamp bounds value to [min, max]. NaN is treated as zero.
func Clamp(value, min, max float64) float64 {
	if math.IsNaN(value) {
		value = 0
	}
	if value > max {
		return max
	} else if value < min {
		return min
	}
	return value
}
