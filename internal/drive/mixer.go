package drive

import (
	"github.com/mbojarska/tadpole/internal/config"
	"github.com/mbojarska/tadpole/internal/models"
)

// Mixer runs the input side of the pipeline: dead zone, response curve,
// scale, differential mixing and throttle limiting.
type Mixer struct {
	Curve         Curve
	DeadZone      float64
	ThrottleScale float64
	ThrottleLimit float64
}

func NewMixer(cfg config.DriveConfig) Mixer {
	return Mixer{
		Curve:         PowerCurve(cfg.CurveExponent),
		DeadZone:      cfg.DeadZone,
		ThrottleScale: cfg.ThrottleScale,
		ThrottleLimit: cfg.ThrottleLimit,
	}
}

func (m Mixer) Command(input models.AxisInput) models.MotorCommand {
	forward := m.shapeAxis(input.Forward)
	turn := m.shapeAxis(input.Turn)

	cmd := Mix(forward, turn)
	if m.ThrottleLimit > 0 {
		cmd = LimitThrottle(cmd, m.ThrottleLimit)
	}
	return cmd
}

func (m Mixer) shapeAxis(value float64) float64 {
	value = ApplyDeadZone(models.Clamp(value, models.MinOutput, models.MaxOutput), m.DeadZone)
	shaped := Shape(m.Curve, value)
	if m.ThrottleScale > 0 {
		shaped = models.Clamp(shaped*m.ThrottleScale, models.MinOutput, models.MaxOutput)
	}
	return shaped
}
