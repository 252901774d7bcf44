package rangefinder

import (
	"context"
	"fmt"
	"time"

	"github.com/mbojarska/tadpole/internal/config"
	"github.com/mbojarska/tadpole/internal/models"
	"github.com/mbojarska/tadpole/internal/vehicle"
	"github.com/stianeikeland/go-rpio/v4"
	log "github.com/sirupsen/logrus"
)

const (
	SpeedOfSound = 343.0 // m/s at 20C
	TriggerPulse = 10 * time.Microsecond
)

type outputPin interface {
	High()
	Low()
}

type inputPin interface {
	Read() rpio.State
}

// HCSR04 measures distance with an ultrasonic trigger/echo module. rpio must
// already be open.
type HCSR04 struct {
	cfg     config.RangeConfig
	trigger outputPin
	echo    inputPin

	now   func() time.Time
	sleep func(time.Duration)
}

func NewHCSR04(cfg config.RangeConfig) *HCSR04 {
	return &HCSR04{
		cfg:     cfg,
		trigger: rpio.Pin(cfg.TriggerPin),
		echo:    rpio.Pin(cfg.EchoPin),
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

func (h *HCSR04) Init() error {
	trigger := rpio.Pin(h.cfg.TriggerPin)
	trigger.Output()
	trigger.Low()

	echo := rpio.Pin(h.cfg.EchoPin)
	echo.Input()
	echo.PullDown()

	log.Printf("hc-sr04 ready: trigger=%d echo=%d\n", h.cfg.TriggerPin, h.cfg.EchoPin)
	return nil
}

// Read fires one ping and times the echo. It gives up at the context
// deadline or after MaxEcho, whichever comes first.
func (h *HCSR04) Read(ctx context.Context) (models.Distance, error) {
	deadline := h.now().Add(h.cfg.MaxEcho)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	h.trigger.Low()
	h.trigger.High()
	h.sleep(TriggerPulse)
	h.trigger.Low()

	err := h.waitFor(ctx, rpio.High, deadline)
	if err != nil {
		return models.UnknownDistance(), fmt.Errorf("%w: no echo start: %w", vehicle.ErrSensorTimeout, err)
	}
	start := h.now()

	err = h.waitFor(ctx, rpio.Low, deadline)
	if err != nil {
		return models.UnknownDistance(), fmt.Errorf("%w: echo did not end: %w", vehicle.ErrSensorTimeout, err)
	}

	meters := EchoToDistance(h.now().Sub(start))
	err = ValidateDistance(meters, h.cfg.MinRange, h.cfg.MaxRange)
	if err != nil {
		return models.UnknownDistance(), err
	}
	return models.DistanceOf(meters), nil
}

func (h *HCSR04) waitFor(ctx context.Context, state rpio.State, deadline time.Time) error {
	for h.echo.Read() != state {
		if h.now().After(deadline) {
			return context.DeadlineExceeded
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

// EchoToDistance converts the echo pulse width to meters. The pulse covers
// the round trip, so the path is halved.
func EchoToDistance(echo time.Duration) float64 {
	return echo.Seconds() * SpeedOfSound / 2
}

func ValidateDistance(meters, minRange, maxRange float64) error {
	if meters < minRange || meters > maxRange {
		return fmt.Errorf("%w: %.3fm outside [%.2f, %.2f]", vehicle.ErrSensorInvalidReading, meters, minRange, maxRange)
	}
	return nil
}

// NoSensor reports an unknown distance on every read, for vehicles without
// a rangefinder fitted.
type NoSensor struct{}

func (NoSensor) Init() error { return nil }

func (NoSensor) Read(context.Context) (models.Distance, error) {
	return models.UnknownDistance(), nil
}
