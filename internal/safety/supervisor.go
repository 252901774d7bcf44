package safety

import (
	"errors"
	"fmt"

	"github.com/mbojarska/tadpole/internal/config"
	"github.com/mbojarska/tadpole/internal/models"
)

var ErrInvalidThresholds = errors.New("invalid safety thresholds")

type Zone int

const (
	Clear Zone = iota
	Attenuated
	Blocked
)

func (z Zone) String() string {
	switch z {
	case Clear:
		return "clear"
	case Attenuated:
		return "attenuated"
	case Blocked:
		return "blocked"
	default:
		return fmt.Sprintf("zone(%d)", int(z))
	}
}

// State is the hysteresis carried between ticks. The zero value is Clear with
// nothing pending.
type State struct {
	Zone          Zone
	Candidate     Zone
	Confirmations int
}

// Supervisor limits forward motion based on the distance to the nearest
// obstacle ahead. It holds no mutable state; callers pass the previous State
// in and keep the returned one.
type Supervisor struct {
	BlockThreshold     float64
	AttenuateThreshold float64
	HysteresisTicks    int
}

func NewSupervisor(cfg config.SafetyConfig) (Supervisor, error) {
	if cfg.BlockThreshold < 0 || cfg.BlockThreshold >= cfg.AttenuateThreshold {
		return Supervisor{}, fmt.Errorf("%w: block %.2f attenuate %.2f", ErrInvalidThresholds, cfg.BlockThreshold, cfg.AttenuateThreshold)
	}

	ticks := cfg.HysteresisTicks
	if ticks < 1 {
		ticks = 1
	}
	return Supervisor{
		BlockThreshold:     cfg.BlockThreshold,
		AttenuateThreshold: cfg.AttenuateThreshold,
		HysteresisTicks:    ticks,
	}, nil
}

// Evaluate returns the command to emit and the state to carry into the next
// tick.
//
// An unknown distance is treated as Clear straight away and drops any
// pending transition: a sensor that stops answering must not leave the
// vehicle immobilized. A known distance selects a target zone, which becomes
// current only after HysteresisTicks consecutive ticks agree on it.
//
// Only a net forward component is limited. Reversing and turning on the spot
// always pass through so the vehicle can back away from an obstacle.
func (s Supervisor) Evaluate(cmd models.MotorCommand, dist models.Distance, prev State) (models.MotorCommand, State) {
	if !dist.Known {
		return cmd, State{Zone: Clear, Candidate: Clear}
	}

	next := s.advance(prev, s.target(dist.Meters))
	return s.limit(cmd, dist.Meters, next.Zone), next
}

func (s Supervisor) target(meters float64) Zone {
	switch {
	case meters < s.BlockThreshold:
		return Blocked
	case meters < s.AttenuateThreshold:
		return Attenuated
	default:
		return Clear
	}
}

func (s Supervisor) advance(prev State, target Zone) State {
	if target == prev.Zone {
		return State{Zone: prev.Zone, Candidate: prev.Zone}
	}

	confirmations := 1
	if target == prev.Candidate {
		confirmations = prev.Confirmations + 1
	}

	required := s.HysteresisTicks
	if required < 1 {
		required = 1
	}
	if confirmations >= required {
		return State{Zone: target, Candidate: target}
	}
	return State{Zone: prev.Zone, Candidate: target, Confirmations: confirmations}
}

func (s Supervisor) limit(cmd models.MotorCommand, meters float64, zone Zone) models.MotorCommand {
	forward := cmd.Forward()
	if forward <= 0 {
		return cmd
	}

	switch zone {
	case Blocked:
		forward = 0
	case Attenuated:
		forward *= s.AttenuationFactor(meters)
	default:
		return cmd
	}
	return models.FromComponents(forward, cmd.Turn())
}

// AttenuationFactor is the share of forward throttle allowed at the given
// distance, 0 at the block threshold rising linearly to 1 at the attenuate
// threshold.
func (s Supervisor) AttenuationFactor(meters float64) float64 {
	span := s.AttenuateThreshold - s.BlockThreshold
	if span <= 0 {
		return 0
	}
	return models.Clamp((meters-s.BlockThreshold)/span, 0, 1)
}
