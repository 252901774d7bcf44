package gamepad

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holoplot/go-evdev"
	"github.com/mbojarska/tadpole/internal/config"
	"github.com/mbojarska/tadpole/internal/models"
	"github.com/mbojarska/tadpole/internal/vehicle"
	log "github.com/sirupsen/logrus"
)

var ErrDeviceNotFound = errors.New("gamepad not found")

// device is the part of *evdev.InputDevice the reader uses.
type device interface {
	ReadOne() (*evdev.InputEvent, error)
	AbsInfos() (map[evdev.EvCode]evdev.AbsInfo, error)
	Close() error
}

type opener func(cfg config.GamepadConfig) (device, string, error)

// Gamepad caches the latest stick position reported by an evdev device.
// Start owns the device; Read only samples the cache and never blocks.
type Gamepad struct {
	cfg  config.GamepadConfig
	open opener

	turnCode    evdev.EvCode
	forwardCode evdev.EvCode

	lock      sync.RWMutex
	connected bool
	name      string
	axes      map[evdev.EvCode]evdev.AbsInfo
	turn      float64
	forward   float64
	lastEvent time.Time
}

func NewGamepad(cfg config.GamepadConfig) *Gamepad {
	return &Gamepad{
		cfg:         cfg,
		open:        openDevice,
		turnCode:    evdev.EvCode(cfg.TurnAxis),
		forwardCode: evdev.EvCode(cfg.ForwardAxis),
	}
}

func (g *Gamepad) Start(ctx context.Context) error {
	log.Printf("starting gamepad reader for %q\n", g.target())
	for {
		err := g.connectAndRead(ctx)
		g.disconnect()
		if ctx.Err() != nil {
			log.Printf("stopping gamepad reader: %s\n", ctx.Err().Error())
			return ctx.Err()
		}
		log.Warnf("gamepad connection lost, retrying in %s: %s", g.cfg.ReconnectDelay, err)

		select {
		case <-ctx.Done():
			log.Printf("stopping gamepad reader: %s\n", ctx.Err().Error())
			return ctx.Err()
		case <-time.After(g.cfg.ReconnectDelay):
		}
	}
}

// Read returns the most recent stick position, which may be up to one
// device update interval old.
func (g *Gamepad) Read(ctx context.Context) (models.AxisInput, error) {
	g.lock.RLock()
	defer g.lock.RUnlock()

	if !g.connected {
		return models.AxisInput{}, fmt.Errorf("%w: gamepad %q not connected", vehicle.ErrInputTimeout, g.target())
	}
	return models.AxisInput{
		Forward: g.forward,
		Turn:    g.turn,
	}, nil
}

func (g *Gamepad) Connected() bool {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return g.connected
}

func (g *Gamepad) connectAndRead(ctx context.Context) error {
	dev, name, err := g.open(g.cfg)
	if err != nil {
		return fmt.Errorf("error opening gamepad: %w", err)
	}

	axes, err := dev.AbsInfos()
	if err != nil {
		dev.Close()
		return fmt.Errorf("error reading gamepad axis info: %w", err)
	}

	g.lock.Lock()
	g.connected = true
	g.name = name
	g.axes = axes
	g.turn = 0
	g.forward = 0
	g.lock.Unlock()
	log.Infof("gamepad connected: %s", name)

	// ReadOne blocks, closing the device is the only way to interrupt it.
	stop := context.AfterFunc(ctx, func() {
		dev.Close()
	})
	defer func() {
		if stop() {
			dev.Close()
		}
	}()

	for {
		event, err := dev.ReadOne()
		if err != nil {
			return fmt.Errorf("error reading gamepad event: %w", err)
		}
		g.handle(*event)
	}
}

func (g *Gamepad) disconnect() {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.connected = false
	g.turn = 0
	g.forward = 0
}

func (g *Gamepad) handle(event evdev.InputEvent) {
	if event.Type != evdev.EV_ABS {
		return
	}
	if event.Code != g.turnCode && event.Code != g.forwardCode {
		return
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	value := Normalize(event.Value, g.axes[event.Code])
	switch event.Code {
	case g.turnCode:
		if g.cfg.InvertX {
			value = -value
		}
		g.turn = value
	case g.forwardCode:
		// evdev Y grows towards the driver, so forward needs InvertY on most pads.
		if g.cfg.InvertY {
			value = -value
		}
		g.forward = value
	}
	g.lastEvent = time.Now()
}

func (g *Gamepad) target() string {
	if g.cfg.Path != "" {
		return g.cfg.Path
	}
	return g.cfg.Device
}

// Normalize maps a raw axis value onto [-1, 1] around the centre of the
// axis range. Devices that report no range are assumed to be signed 16 bit.
func Normalize(value int32, info evdev.AbsInfo) float64 {
	minimum, maximum := float64(info.Minimum), float64(info.Maximum)
	if maximum <= minimum {
		minimum, maximum = -32768, 32767
	}

	center := (maximum + minimum) / 2
	half := (maximum - minimum) / 2
	return models.Clamp((float64(value)-center)/half, models.MinOutput, models.MaxOutput)
}

func openDevice(cfg config.GamepadConfig) (device, string, error) {
	path := cfg.Path
	if path == "" {
		found, err := findDevice(cfg.Device)
		if err != nil {
			return nil, "", err
		}
		path = found
	}

	dev, err := evdev.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("error opening %s: %w", path, err)
	}

	name, err := dev.Name()
	if err != nil {
		name = path
	}
	return dev, name, nil
}

func findDevice(name string) (string, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return "", fmt.Errorf("error listing input devices: %w", err)
	}
	for _, p := range paths {
		if p.Name == name {
			return p.Path, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}

func (g *Gamepad) LastEvent() time.Time {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return g.lastEvent
}

func (g *Gamepad) Name() string {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return g.name
}
