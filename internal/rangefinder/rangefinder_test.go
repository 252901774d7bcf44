package rangefinder

import (
	"context"
	"testing"
	"time"

	"github.com/mbojarska/tadpole/internal/config"
	"github.com/mbojarska/tadpole/internal/vehicle"
	"github.com/stianeikeland/go-rpio/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by step every time it is read.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

type fakeTrigger struct {
	pulses int
	high   bool
}

func (f *fakeTrigger) High() {
	f.high = true
	f.pulses++
}

func (f *fakeTrigger) Low() { f.high = false }

// fakeEcho is low for riseAfter reads, then high for highReads reads, then low.
type fakeEcho struct {
	reads     int
	riseAfter int
	highReads int
}

func (f *fakeEcho) Read() rpio.State {
	f.reads++
	if f.reads > f.riseAfter && f.reads <= f.riseAfter+f.highReads {
		return rpio.High
	}
	return rpio.Low
}

func newTestSensor(echo *fakeEcho, step time.Duration) (*HCSR04, *fakeTrigger) {
	clock := &fakeClock{now: time.Unix(0, 0), step: step}
	trigger := &fakeTrigger{}
	return &HCSR04{
		cfg: config.RangeConfig{
			MinRange: config.DefaultMinRange,
			MaxRange: config.DefaultMaxRange,
			MaxEcho:  config.DefaultMaxEchoMs * time.Millisecond,
		},
		trigger: trigger,
		echo:    echo,
		now:     clock.Now,
		sleep:   func(time.Duration) {},
	}, trigger
}

func TestEchoToDistance(t *testing.T) {
	assert.InDelta(t, 0.343, EchoToDistance(2*time.Millisecond), 1e-9)
	assert.InDelta(t, 1.715, EchoToDistance(10*time.Millisecond), 1e-9)
	assert.Equal(t, 0.0, EchoToDistance(0))
}

func TestValidateDistance(t *testing.T) {
	assert.NoError(t, ValidateDistance(0.5, 0.02, 4))
	assert.ErrorIs(t, ValidateDistance(0.01, 0.02, 4), vehicle.ErrSensorInvalidReading)
	assert.ErrorIs(t, ValidateDistance(4.5, 0.02, 4), vehicle.ErrSensorInvalidReading)
}

func TestReadMeasuresEcho(t *testing.T) {
	// Each clock read advances 100us. The rising edge is seen on the 4th
	// poll and the echo stays high for 20 polls in total.
	sensor, trigger := newTestSensor(&fakeEcho{riseAfter: 3, highReads: 20}, 100*time.Microsecond)

	dist, err := sensor.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, dist.Known)
	assert.Equal(t, 1, trigger.pulses)
	assert.False(t, trigger.high)
	// 19 high polls after the edge, plus the closing clock read: 2ms round trip.
	assert.InDelta(t, EchoToDistance(2*time.Millisecond), dist.Meters, 1e-9)
}

func TestReadNoEchoTimesOut(t *testing.T) {
	sensor, _ := newTestSensor(&fakeEcho{riseAfter: 1 << 30}, time.Millisecond)

	dist, err := sensor.Read(context.Background())
	assert.ErrorIs(t, err, vehicle.ErrSensorTimeout)
	assert.False(t, dist.Known)
}

func TestReadStuckEchoTimesOut(t *testing.T) {
	sensor, _ := newTestSensor(&fakeEcho{riseAfter: 0, highReads: 1 << 30}, time.Millisecond)

	_, err := sensor.Read(context.Background())
	assert.ErrorIs(t, err, vehicle.ErrSensorTimeout)
}

func TestReadHonoursCancel(t *testing.T) {
	sensor, _ := newTestSensor(&fakeEcho{riseAfter: 1 << 30}, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sensor.Read(ctx)
	assert.ErrorIs(t, err, vehicle.ErrSensorTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadTooCloseIsInvalid(t *testing.T) {
	// 1 poll at 10us is about 2mm, under the minimum range.
	sensor, _ := newTestSensor(&fakeEcho{riseAfter: 0, highReads: 1}, 10*time.Microsecond)

	dist, err := sensor.Read(context.Background())
	assert.ErrorIs(t, err, vehicle.ErrSensorInvalidReading)
	assert.False(t, dist.Known)
}

func TestNoSensor(t *testing.T) {
	dist, err := NoSensor{}.Read(context.Background())
	require.NoError(t, err)
	assert.False(t, dist.Known)
}
