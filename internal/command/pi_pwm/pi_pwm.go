package pipwm

import (
	"fmt"

	"github.com/mbojarska/tadpole/internal/command"
	"github.com/mbojarska/tadpole/internal/config"
	"github.com/mbojarska/tadpole/internal/models"
	log "github.com/sirupsen/logrus"
	"github.com/stianeikeland/go-rpio/v4"
)

// Hardware PWM is only routed to these header pins on the Pi.
var PwmPins = map[int]bool{12: true, 13: true, 18: true, 19: true}

type pwmPin interface {
	DutyCycle(dutyLen, cycleLen uint32)
}

type directionPin interface {
	High()
	Low()
}

// CommandDriver drives two DC motors through an H-bridge: a hardware PWM
// enable pin per motor sets speed, two input pins set direction. rpio must
// already be open.
type CommandDriver struct {
	cfg   config.MotorConfig
	left  *Motor
	right *Motor
}

type Motor struct {
	name        string
	inverted    bool
	pwm         pwmPin
	in1         directionPin
	in2         directionPin
	cycleLength uint32

	forward bool
	duty    uint32
}

func NewCommand(cfg config.MotorConfig) *CommandDriver {
	return &CommandDriver{
		cfg: cfg,
	}
}

func (c *CommandDriver) Init() error {
	left, err := c.newMotor(c.cfg.Left)
	if err != nil {
		return err
	}
	right, err := c.newMotor(c.cfg.Right)
	if err != nil {
		return err
	}
	c.left = left
	c.right = right

	return c.Stop()
}

func (c *CommandDriver) newMotor(pins config.MotorPins) (*Motor, error) {
	if !PwmPins[pins.PwmPin] {
		return nil, fmt.Errorf("pin %d for %s motor has no hardware pwm", pins.PwmPin, pins.Name)
	}

	pwm := rpio.Pin(pins.PwmPin)
	pwm.Mode(rpio.Pwm)
	pwm.Freq(c.cfg.PwmFrequency * int(c.cfg.PwmCycleLength))

	in1 := rpio.Pin(pins.In1Pin)
	in1.Output()
	in2 := rpio.Pin(pins.In2Pin)
	in2.Output()

	log.Printf("motor added: %s pwm=%d in1=%d in2=%d inverted=%t\n", pins.Name, pins.PwmPin, pins.In1Pin, pins.In2Pin, pins.Inverted)
	return NewMotor(pins.Name, pins.Inverted, pwm, in1, in2, c.cfg.PwmCycleLength), nil
}

func NewMotor(name string, inverted bool, pwm pwmPin, in1, in2 directionPin, cycleLength uint32) *Motor {
	return &Motor{
		name:        name,
		inverted:    inverted,
		pwm:         pwm,
		in1:         in1,
		in2:         in2,
		cycleLength: cycleLength,
		forward:     true,
	}
}

func (c *CommandDriver) Apply(cmd models.MotorCommand) error {
	if c.left == nil || c.right == nil {
		return fmt.Errorf("pi pwm driver not initialized")
	}
	c.left.Set(cmd.Left)
	c.right.Set(cmd.Right)
	return nil
}

func (c *CommandDriver) Stop() error {
	log.Println("stopping all motors")
	if c.left != nil {
		c.left.Brake()
	}
	if c.right != nil {
		c.right.Brake()
	}
	return nil
}

// Set drives the motor at a signed throttle. A change of direction passes
// through a brake first so both bridge halves are never driven at once.
func (m *Motor) Set(value float64) {
	forward, fraction := command.Split(value, m.inverted)
	duty := uint32(command.MapToRange(fraction, 0, 1, 0, float64(m.cycleLength)) + 0.5)

	if duty == 0 {
		m.Brake()
		return
	}

	if forward != m.forward || m.duty == 0 {
		m.Brake()
		if forward {
			m.in1.High()
		} else {
			m.in2.High()
		}
		m.forward = forward
	}

	m.pwm.DutyCycle(duty, m.cycleLength)
	m.duty = duty
}

func (m *Motor) Brake() {
	m.pwm.DutyCycle(0, m.cycleLength)
	m.in1.Low()
	m.in2.Low()
	m.duty = 0
}
