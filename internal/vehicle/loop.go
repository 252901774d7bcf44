package vehicle

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mbojarska/tadpole/internal/config"
	"github.com/mbojarska/tadpole/internal/drive"
	"github.com/mbojarska/tadpole/internal/models"
	"github.com/mbojarska/tadpole/internal/safety"
	log "github.com/sirupsen/logrus"
)

// Loop runs the drive pipeline once per tick: read stick and range, shape,
// mix, supervise, apply. It owns the supervisor state and is not safe for
// concurrent Tick calls; Stats may be read from any goroutine.
type Loop struct {
	input     InputSource
	sensor    RangeSensor
	actuator  MotorActuator
	interlock Interlock
	notifier  Notifier

	mixer      drive.Mixer
	supervisor safety.Supervisor
	state      safety.State

	tickPeriod    time.Duration
	inputTimeout  time.Duration
	sensorTimeout time.Duration

	inputFailing    bool
	sensorFailing   bool
	actuatorFailing bool
	interlocked     bool

	ticks          atomic.Uint64
	inputErrors    atomic.Uint64
	sensorErrors   atomic.Uint64
	actuatorErrors atomic.Uint64
	zone           atomic.Int32
	last           atomic.Value
}

type Stats struct {
	Ticks          uint64
	InputErrors    uint64
	SensorErrors   uint64
	ActuatorErrors uint64
	Zone           safety.Zone
	Last           models.MotorCommand
}

type Option func(*Loop)

func WithInterlock(interlock Interlock) Option {
	return func(l *Loop) {
		l.interlock = interlock
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(l *Loop) {
		l.notifier = notifier
	}
}

// WithCurve replaces the configured power curve with a caller supplied one.
func WithCurve(curve drive.Curve) Option {
	return func(l *Loop) {
		l.mixer.Curve = curve
	}
}

func NewLoop(cfg config.Config, input InputSource, sensor RangeSensor, actuator MotorActuator, opts ...Option) (*Loop, error) {
	if input == nil || actuator == nil {
		return nil, errors.New("control loop needs an input source and a motor actuator")
	}

	supervisor, err := safety.NewSupervisor(cfg.SafetyCfg)
	if err != nil {
		return nil, fmt.Errorf("error creating safety supervisor: %w", err)
	}
	if cfg.LoopCfg.TickRate < 1 {
		return nil, fmt.Errorf("tick rate must be positive, got %d", cfg.LoopCfg.TickRate)
	}

	l := &Loop{
		input:         input,
		sensor:        sensor,
		actuator:      actuator,
		mixer:         drive.NewMixer(cfg.DriveCfg),
		supervisor:    supervisor,
		tickPeriod:    cfg.LoopCfg.TickPeriod(),
		inputTimeout:  cfg.LoopCfg.InputTimeout,
		sensorTimeout: cfg.LoopCfg.SensorTimeout,
	}
	l.last.Store(models.Stop)

	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Process is one pass of the pure pipeline: curve and kinematics through the
// mixer, then obstacle arbitration.
func Process(mixer drive.Mixer, supervisor safety.Supervisor, input models.AxisInput, dist models.Distance, prev safety.State) (models.MotorCommand, safety.State) {
	return supervisor.Evaluate(mixer.Command(input), dist, prev)
}

func (l *Loop) Run(ctx context.Context) error {
	log.Printf("starting control loop at %s per tick\n", l.tickPeriod)

	ticker := time.NewTicker(l.tickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return fmt.Errorf("%w: %w", ErrShutdownRequested, ctx.Err())
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick runs a single control cycle and returns the command that was sent to
// the actuator. Peripheral failures are replaced by safe defaults.
func (l *Loop) Tick(ctx context.Context) models.MotorCommand {
	l.ticks.Add(1)

	input := l.readInput(ctx)
	dist := l.readDistance(ctx)

	cmd, state := Process(l.mixer, l.supervisor, input, dist, l.state)
	l.transition(l.state.Zone, state.Zone, dist)
	l.state = state

	if l.checkInterlock() {
		cmd = models.Stop
	}

	l.apply(cmd)
	return cmd
}

func (l *Loop) State() safety.State {
	return l.state
}

func (l *Loop) Stats() Stats {
	return Stats{
		Ticks:          l.ticks.Load(),
		InputErrors:    l.inputErrors.Load(),
		SensorErrors:   l.sensorErrors.Load(),
		ActuatorErrors: l.actuatorErrors.Load(),
		Zone:           safety.Zone(l.zone.Load()),
		Last:           l.last.Load().(models.MotorCommand),
	}
}

func (l *Loop) readInput(ctx context.Context) models.AxisInput {
	input, err := boundedRead(ctx, l.inputTimeout, l.input.Read)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ErrInputTimeout, err)
		}
		l.inputErrors.Add(1)
		if !l.inputFailing {
			log.Warnf("input unavailable, holding motors stopped: %s", err)
			l.inputFailing = true
		}
		return models.AxisInput{}
	}
	if l.inputFailing {
		log.Info("input restored")
		l.inputFailing = false
	}
	return input
}

func (l *Loop) readDistance(ctx context.Context) models.Distance {
	if l.sensor == nil {
		return models.UnknownDistance()
	}

	dist, err := boundedRead(ctx, l.sensorTimeout, l.sensor.Read)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ErrSensorTimeout, err)
		}
		l.sensorErrors.Add(1)
		if !l.sensorFailing {
			log.Warnf("range sensor unavailable, obstacle limiting disabled: %s", err)
			l.sensorFailing = true
		}
		return models.UnknownDistance()
	}
	if l.sensorFailing {
		log.Info("range sensor restored")
		l.sensorFailing = false
	}
	return dist
}

func (l *Loop) transition(from, to safety.Zone, dist models.Distance) {
	l.zone.Store(int32(to))
	if from == to {
		return
	}

	log.WithFields(log.Fields{
		"from":     from.String(),
		"to":       to.String(),
		"distance": dist.String(),
	}).Info("safety zone changed")

	switch {
	case to == safety.Blocked:
		l.notify(EventObstacle)
	case to == safety.Clear:
		l.notify(EventClear)
	}
}

func (l *Loop) checkInterlock() bool {
	if l.interlock == nil {
		return false
	}

	engaged := l.interlock.Engaged()
	if engaged != l.interlocked {
		if engaged {
			log.Warn("interlock engaged, stopping motors")
			l.notify(EventLowBattery)
		} else {
			log.Info("interlock released")
			l.notify(EventBatteryOkay)
		}
		l.interlocked = engaged
	}
	return engaged
}

func (l *Loop) apply(cmd models.MotorCommand) {
	l.last.Store(cmd)

	err := l.actuator.Apply(cmd)
	if err != nil {
		l.actuatorErrors.Add(1)
		if !l.actuatorFailing {
			log.Errorf("failed applying motor command %s: %s", cmd, err)
			l.actuatorFailing = true
		}
		return
	}
	l.actuatorFailing = false
}

func (l *Loop) shutdown() {
	log.Println("stopping control loop, sending all stop")
	l.state = safety.State{}
	l.zone.Store(int32(safety.Clear))
	l.last.Store(models.Stop)

	err := l.actuator.Apply(models.Stop)
	if err != nil {
		l.actuatorErrors.Add(1)
		log.Errorf("failed sending final stop: %s", err)
	}
}

func (l *Loop) notify(event string) {
	if l.notifier != nil {
		l.notifier.Notify(event)
	}
}

// boundedRead runs read with a deadline and returns when either the read
// finishes or the deadline passes, even if read ignores its context.
func boundedRead[T any](ctx context.Context, timeout time.Duration, read func(context.Context) (T, error)) (T, error) {
	readCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := read(readCtx)
		done <- result{value: value, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-readCtx.Done():
		var zero T
		return zero, readCtx.Err()
	}
}
