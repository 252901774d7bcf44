package pca9685

import (
	"fmt"

	"github.com/googolgl/go-i2c"
	pca "github.com/googolgl/go-pca9685"
	"github.com/mbojarska/tadpole/internal/command"
	"github.com/mbojarska/tadpole/internal/config"
	"github.com/mbojarska/tadpole/internal/models"
	log "github.com/sirupsen/logrus"
)

const (
	MaxValue = 1.0
	MinValue = 0.0

	// A channel driven as a servo from 0 to a full 50Hz period behaves as a
	// plain duty cycle output for the bridge inputs.
	MinPulse = 0
	MaxPulse = 20000
	AcRange  = pca.ServoRangeDef

	MaxSupportedChannels = 16
)

type channel interface {
	Fraction(float32) error
}

type Command struct {
	cfg    config.MotorConfig
	driver *pca.PCA9685
	left   *Motor
	right  *Motor
}

// Motor drives one side of an H-bridge from a pair of channels: the positive
// channel spins it forward, the negative one in reverse.
type Motor struct {
	name     string
	inverted bool
	pos      channel
	neg      channel
}

func NewCommand(cfg config.MotorConfig) *Command {
	return &Command{
		cfg: cfg,
	}
}

func (c *Command) Init() error {
	for _, pins := range []config.MotorPins{c.cfg.Left, c.cfg.Right} {
		if pins.PosChan < 0 || pins.PosChan >= MaxSupportedChannels || pins.NegChan < 0 || pins.NegChan >= MaxSupportedChannels {
			return fmt.Errorf("invalid channels %d/%d for %s motor", pins.PosChan, pins.NegChan, pins.Name)
		}
		if pins.PosChan == pins.NegChan {
			return fmt.Errorf("%s motor uses channel %d for both directions", pins.Name, pins.PosChan)
		}
	}

	i2c, err := i2c.New(c.cfg.Address, c.cfg.I2CDevice)
	if err != nil {
		return fmt.Errorf("error starting i2c with address - %w", err)
	}

	c.driver, err = pca.New(i2c, nil)
	if err != nil {
		return fmt.Errorf("error getting pwm driver - %w", err)
	}

	c.left = c.newMotor(c.cfg.Left)
	c.right = c.newMotor(c.cfg.Right)
	return c.Stop()
}

func (c *Command) newMotor(pins config.MotorPins) *Motor {
	opts := &pca.ServOptions{
		AcRange:  AcRange,
		MinPulse: MinPulse,
		MaxPulse: MaxPulse,
	}
	log.Printf("motor added: %s pos=%d neg=%d inverted=%t\n", pins.Name, pins.PosChan, pins.NegChan, pins.Inverted)
	return NewMotor(pins.Name, pins.Inverted, c.driver.ServoNew(pins.PosChan, opts), c.driver.ServoNew(pins.NegChan, opts))
}

func NewMotor(name string, inverted bool, pos, neg channel) *Motor {
	return &Motor{
		name:     name,
		inverted: inverted,
		pos:      pos,
		neg:      neg,
	}
}

func (c *Command) Apply(cmd models.MotorCommand) error {
	if c.left == nil || c.right == nil {
		return fmt.Errorf("pca9685 driver not initialized")
	}

	err := c.left.Set(cmd.Left)
	if err != nil {
		return err
	}
	return c.right.Set(cmd.Right)
}

func (c *Command) Stop() error {
	log.Println("stopping all motors")
	var firstErr error
	for _, m := range []*Motor{c.left, c.right} {
		if m == nil {
			continue
		}
		err := m.Set(0)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Set lowers the inactive channel before raising the active one.
func (m *Motor) Set(value float64) error {
	forward, duty := command.Split(value, m.inverted)
	duty = command.MapToRange(duty, 0, 1, MinValue, MaxValue)

	active, inactive := m.pos, m.neg
	if !forward {
		active, inactive = m.neg, m.pos
	}

	err := inactive.Fraction(MinValue)
	if err != nil {
		return fmt.Errorf("failed clearing %s motor - %w", m.name, err)
	}
	err = active.Fraction(float32(duty))
	if err != nil {
		return fmt.Errorf("failed setting %s motor value %.2f - %w", m.name, duty, err)
	}
	return nil
}
