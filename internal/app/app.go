package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mbojarska/tadpole/internal/battery"
	"github.com/mbojarska/tadpole/internal/command"
	pca9685 "github.com/mbojarska/tadpole/internal/command/pca9685"
	pipwm "github.com/mbojarska/tadpole/internal/command/pi_pwm"
	"github.com/mbojarska/tadpole/internal/config"
	"github.com/mbojarska/tadpole/internal/gamepad"
	"github.com/mbojarska/tadpole/internal/rangefinder"
	"github.com/mbojarska/tadpole/internal/speaker"
	"github.com/mbojarska/tadpole/internal/vehicle"
	log "github.com/sirupsen/logrus"
	"github.com/stianeikeland/go-rpio/v4"
	"golang.org/x/sync/errgroup"
)

const ShutdownSoundTimeout = 3 * time.Second

var ErrUnknownDriver = errors.New("unknown driver")

type sensor interface {
	vehicle.RangeSensor
	Init() error
}

type App struct {
	Cfg     config.Config
	session uuid.UUID

	gamepad  *gamepad.Gamepad
	sensor   sensor
	guard    *battery.Guard
	speaker  *speaker.Speaker
	actuator vehicle.MotorActuator
	loop     *vehicle.Loop

	usesGpio bool
}

func NewApp(cfg config.Config) (*App, error) {
	actuator, err := newActuator(cfg.MotorCfg)
	if err != nil {
		return nil, err
	}
	sensor, err := newSensor(cfg.RangeCfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		Cfg:      cfg,
		session:  uuid.New(),
		gamepad:  gamepad.NewGamepad(cfg.GamepadCfg),
		sensor:   sensor,
		speaker:  speaker.NewSpeaker(cfg.SpeakerCfg),
		actuator: actuator,
	}

	opts := []vehicle.Option{vehicle.WithNotifier(a.speaker)}
	if cfg.BatteryCfg.Enabled {
		a.guard = battery.NewGuard(cfg.BatteryCfg)
		opts = append(opts, vehicle.WithInterlock(a.guard))
	}
	a.usesGpio = usesGpio(cfg)

	a.loop, err = vehicle.NewLoop(cfg, a.gamepad, a.sensor, a.actuator, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating control loop: %w", err)
	}
	return a, nil
}

func newActuator(cfg config.MotorConfig) (vehicle.MotorActuator, error) {
	switch cfg.MotorDriver {
	case "pipwm":
		return pipwm.NewCommand(cfg), nil
	case "pca9685":
		return pca9685.NewCommand(cfg), nil
	case "log", "none":
		return command.NewLogDriver(), nil
	default:
		return nil, fmt.Errorf("%w: motor driver %q", ErrUnknownDriver, cfg.MotorDriver)
	}
}

func newSensor(cfg config.RangeConfig) (sensor, error) {
	switch cfg.Driver {
	case "hcsr04":
		return rangefinder.NewHCSR04(cfg), nil
	case "none":
		return rangefinder.NoSensor{}, nil
	default:
		return nil, fmt.Errorf("%w: range sensor %q", ErrUnknownDriver, cfg.Driver)
	}
}

func usesGpio(cfg config.Config) bool {
	return cfg.MotorCfg.MotorDriver == "pipwm" || cfg.RangeCfg.Driver == "hcsr04" || cfg.BatteryCfg.Enabled
}

func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := log.WithField("session", a.session.String())
	logger.Println("starting...")

	if a.usesGpio {
		err := rpio.Open()
		if err != nil {
			return fmt.Errorf("error opening gpio: %w", err)
		}
		defer rpio.Close()
	}

	err := a.initDrivers()
	if err != nil {
		return err
	}
	defer func() {
		err := a.actuator.Stop()
		if err != nil {
			logger.Errorf("failed stopping motors: %s", err)
		}
	}()

	group, groupCtx := errgroup.WithContext(ctx)

	//kill listener
	group.Go(func() error {
		signalChannel := make(chan os.Signal, 1)
		signal.Notify(signalChannel, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(signalChannel)
		select {
		case sig := <-signalChannel:
			logger.Printf("received signal: %s\n", sig)
			cancel()
			return nil
		case <-groupCtx.Done():
			return groupCtx.Err()
		}
	})

	group.Go(func() error {
		return a.speaker.Start(groupCtx)
	})

	group.Go(func() error {
		return a.gamepad.Start(groupCtx)
	})

	if a.guard != nil {
		group.Go(func() error {
			return a.guard.Start(groupCtx)
		})
	}

	group.Go(func() error {
		return a.reportStatus(groupCtx, logger)
	})

	group.Go(func() error {
		return a.loop.Run(groupCtx)
	})

	a.speaker.Notify(speaker.SoundStartup)

	err = group.Wait()
	a.playShutdown()
	if err != nil && !isShutdown(err) {
		return fmt.Errorf("vehicle stopping due to error - %w", err)
	}

	logger.Println("shutting down")
	return nil
}

// playShutdown runs after the group has stopped, so it plays directly
// instead of going through the speaker queue.
func (a *App) playShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownSoundTimeout)
	defer cancel()
	err := a.speaker.Play(ctx, speaker.SoundShutdown)
	if err != nil {
		log.Warnf("failed to play shutdown sound - %s", err)
	}
}

func (a *App) initDrivers() error {
	err := a.actuator.Init()
	if err != nil {
		return fmt.Errorf("error initializing motor driver: %w", err)
	}
	err = a.sensor.Init()
	if err != nil {
		return fmt.Errorf("error initializing range sensor: %w", err)
	}
	if a.guard != nil {
		err = a.guard.Init()
		if err != nil {
			return fmt.Errorf("error initializing battery guard: %w", err)
		}
	}
	return nil
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, vehicle.ErrShutdownRequested)
}
