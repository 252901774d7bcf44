package command

import (
	"math"

	"github.com/mbojarska/tadpole/internal/models"
	log "github.com/sirupsen/logrus"
)

// Split turns a signed throttle into an H-bridge direction and a duty
// fraction in [0, 1]. Inverted motors are mounted mirrored and spin the other
// way for the same command.
func Split(value float64, inverted bool) (forward bool, duty float64) {
	value = models.Clamp(value, models.MinOutput, models.MaxOutput)
	if inverted {
		value = -value
	}
	return value >= 0, math.Abs(value)
}

func MapToRange(value, min, max, minReturn, maxReturn float64) float64 {
	mappedValue := (maxReturn-minReturn)*(value-min)/(max-min) + minReturn

	if mappedValue > maxReturn {
		return maxReturn
	} else if mappedValue < minReturn {
		return minReturn
	} else {
		return mappedValue
	}
}

// LogDriver is a dry run actuator that only logs command changes.
type LogDriver struct {
	last    models.MotorCommand
	applied int
}

func NewLogDriver() *LogDriver {
	return &LogDriver{}
}

func (d *LogDriver) Init() error {
	log.Println("motor driver disabled, logging commands only")
	return nil
}

func (d *LogDriver) Apply(cmd models.MotorCommand) error {
	d.applied++
	if cmd != d.last {
		log.Debugf("motors %s", cmd)
		d.last = cmd
	}
	return nil
}

func (d *LogDriver) Stop() error {
	log.Println("stopping motors")
	d.last = models.Stop
	return nil
}

func (d *LogDriver) Last() models.MotorCommand {
	return d.last
}
