package vehicle

import (
	"context"
	"errors"

	"github.com/mbojarska/tadpole/internal/models"
)

var (
	ErrInputTimeout         = errors.New("input timeout")
	ErrSensorTimeout        = errors.New("sensor timeout")
	ErrSensorInvalidReading = errors.New("sensor invalid reading")
	ErrShutdownRequested    = errors.New("shutdown requested")
)

// Events forwarded to a Notifier.
const (
	EventObstacle    = "obstacle"
	EventClear       = "clear"
	EventLowBattery  = "low_battery"
	EventBatteryOkay = "battery_ok"
)

// InputSource yields the drive stick. Read must honour the context deadline.
type InputSource interface {
	Read(context.Context) (models.AxisInput, error)
}

// RangeSensor yields the distance to the nearest obstacle ahead.
type RangeSensor interface {
	Read(context.Context) (models.Distance, error)
}

// MotorActuator turns a MotorCommand into pin or channel signals.
type MotorActuator interface {
	Init() error
	Apply(models.MotorCommand) error
	Stop() error
}

// Interlock holds the motors stopped while engaged.
type Interlock interface {
	Engaged() bool
}

type Notifier interface {
	Notify(event string)
}
