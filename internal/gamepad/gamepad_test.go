package gamepad

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/holoplot/go-evdev"
	"github.com/mbojarska/tadpole/internal/config"
	"github.com/mbojarska/tadpole/internal/vehicle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	events    chan evdev.InputEvent
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		events: make(chan evdev.InputEvent, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeDevice) ReadOne() (*evdev.InputEvent, error) {
	select {
	case event := <-f.events:
		return &event, nil
	case <-f.closed:
		return nil, io.EOF
	}
}

func (f *fakeDevice) AbsInfos() (map[evdev.EvCode]evdev.AbsInfo, error) {
	return map[evdev.EvCode]evdev.AbsInfo{
		evdev.EvCode(config.DefaultTurnAxis):    {Minimum: 0, Maximum: 65535},
		evdev.EvCode(config.DefaultForwardAxis): {Minimum: 0, Maximum: 65535},
	}, nil
}

func (f *fakeDevice) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func testConfig() config.GamepadConfig {
	return config.GamepadConfig{
		Device:         "Test Pad",
		InvertY:        true,
		TurnAxis:       config.DefaultTurnAxis,
		ForwardAxis:    config.DefaultForwardAxis,
		ReconnectDelay: 5 * time.Millisecond,
	}
}

func abs(code int, value int32) evdev.InputEvent {
	return evdev.InputEvent{Type: evdev.EV_ABS, Code: evdev.EvCode(code), Value: value}
}

func TestNormalize(t *testing.T) {
	xbox := evdev.AbsInfo{Minimum: 0, Maximum: 65535}
	assert.InDelta(t, -1.0, Normalize(0, xbox), 1e-9)
	assert.InDelta(t, 1.0, Normalize(65535, xbox), 1e-9)
	assert.InDelta(t, 0.0, Normalize(32768, xbox), 1e-4)

	signed := evdev.AbsInfo{Minimum: -32768, Maximum: 32767}
	assert.InDelta(t, 0.5, Normalize(16384, signed), 1e-4)

	assert.InDelta(t, 1.0, Normalize(40000, evdev.AbsInfo{}), 1e-9, "unknown range falls back to int16 and clamps")
}

func TestReadBeforeConnectTimesOut(t *testing.T) {
	g := NewGamepad(testConfig())
	_, err := g.Read(context.Background())
	assert.ErrorIs(t, err, vehicle.ErrInputTimeout)
}

func TestHandleMapsAxes(t *testing.T) {
	g := NewGamepad(testConfig())
	g.connected = true
	g.axes, _ = newFakeDevice().AbsInfos()

	g.handle(abs(config.DefaultForwardAxis, 0))
	g.handle(abs(config.DefaultTurnAxis, 65535))
	g.handle(evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.EvCode(config.DefaultTurnAxis), Value: 0})
	g.handle(abs(0, 0))

	input, err := g.Read(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, input.Forward, 1e-9, "stick up is forward once Y is inverted")
	assert.InDelta(t, 1.0, input.Turn, 1e-9)
}

func TestInvertX(t *testing.T) {
	cfg := testConfig()
	cfg.InvertX = true
	cfg.InvertY = false
	g := NewGamepad(cfg)
	g.connected = true
	g.axes, _ = newFakeDevice().AbsInfos()

	g.handle(abs(config.DefaultTurnAxis, 65535))
	g.handle(abs(config.DefaultForwardAxis, 65535))

	input, err := g.Read(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, -1.0, input.Turn, 1e-9)
	assert.InDelta(t, 1.0, input.Forward, 1e-9)
}

func TestStartReadsAndReconnects(t *testing.T) {
	first, second := newFakeDevice(), newFakeDevice()
	devices := make(chan *fakeDevice, 2)
	devices <- first
	devices <- second
	opened := 0

	g := NewGamepad(testConfig())
	g.open = func(cfg config.GamepadConfig) (device, string, error) {
		select {
		case dev := <-devices:
			opened++
			return dev, fmt.Sprintf("pad-%d", opened), nil
		default:
			return nil, "", ErrDeviceNotFound
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- g.Start(ctx)
	}()

	first.events <- abs(config.DefaultForwardAxis, 0)
	require.Eventually(t, func() bool {
		input, err := g.Read(context.Background())
		return err == nil && input.Forward > 0.99
	}, time.Second, time.Millisecond)

	// Losing the device drops the cached stick to zero.
	first.Close()
	require.Eventually(t, func() bool {
		return g.Connected() && g.Name() == "pad-2"
	}, time.Second, time.Millisecond)
	input, err := g.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, input.Forward)

	second.events <- abs(config.DefaultTurnAxis, 0)
	require.Eventually(t, func() bool {
		input, err := g.Read(context.Background())
		return err == nil && input.Turn < -0.99
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("gamepad reader did not stop")
	}
	assert.False(t, g.Connected())
}
