package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mbojarska/tadpole/internal/command"
	pca9685 "github.com/mbojarska/tadpole/internal/command/pca9685"
	pipwm "github.com/mbojarska/tadpole/internal/command/pi_pwm"
	"github.com/mbojarska/tadpole/internal/config"
	"github.com/mbojarska/tadpole/internal/models"
	"github.com/mbojarska/tadpole/internal/rangefinder"
	"github.com/mbojarska/tadpole/internal/safety"
	"github.com/mbojarska/tadpole/internal/vehicle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewActuator(t *testing.T) {
	tests := []struct {
		driver string
		want   any
	}{
		{driver: "pipwm", want: &pipwm.CommandDriver{}},
		{driver: "pca9685", want: &pca9685.Command{}},
		{driver: "log", want: &command.LogDriver{}},
		{driver: "none", want: &command.LogDriver{}},
	}

	for _, tc := range tests {
		t.Run(tc.driver, func(t *testing.T) {
			actuator, err := newActuator(config.MotorConfig{MotorDriver: tc.driver})
			require.NoError(t, err)
			assert.IsType(t, tc.want, actuator)
		})
	}

	_, err := newActuator(config.MotorConfig{MotorDriver: "servo"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestNewSensor(t *testing.T) {
	s, err := newSensor(config.RangeConfig{Driver: "hcsr04"})
	require.NoError(t, err)
	assert.IsType(t, &rangefinder.HCSR04{}, s)

	s, err = newSensor(config.RangeConfig{Driver: "none"})
	require.NoError(t, err)
	assert.IsType(t, rangefinder.NoSensor{}, s)

	_, err = newSensor(config.RangeConfig{Driver: "lidar"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestNewAppWiring(t *testing.T) {
	cfg := config.GetConfig()
	cfg.MotorCfg.MotorDriver = "log"
	cfg.RangeCfg.Driver = "none"
	cfg.BatteryCfg.Enabled = false

	a, err := NewApp(cfg)
	require.NoError(t, err)
	assert.False(t, a.usesGpio)
	assert.Nil(t, a.guard)
	assert.NotNil(t, a.loop)

	cfg.BatteryCfg.Enabled = true
	a, err = NewApp(cfg)
	require.NoError(t, err)
	assert.True(t, a.usesGpio)
	assert.NotNil(t, a.guard)
}

func TestNewAppRejectsBadConfig(t *testing.T) {
	cfg := config.GetConfig()
	cfg.MotorCfg.MotorDriver = "log"
	cfg.RangeCfg.Driver = "none"
	cfg.SafetyCfg.BlockThreshold = 1
	cfg.SafetyCfg.AttenuateThreshold = 0.5

	_, err := NewApp(cfg)
	assert.Error(t, err)
}

func TestIsShutdown(t *testing.T) {
	assert.True(t, isShutdown(context.Canceled))
	assert.True(t, isShutdown(fmt.Errorf("%w: %w", vehicle.ErrShutdownRequested, context.Canceled)))
	assert.False(t, isShutdown(vehicle.ErrSensorTimeout))
}

func TestStatusFields(t *testing.T) {
	stats := vehicle.Stats{
		Ticks:       40,
		InputErrors: 2,
		Zone:        safety.Attenuated,
		Last:        models.MotorCommand{Left: 0.5, Right: 0.25},
	}

	fields := statusFields(stats, inputStatus{}, nil)
	assert.Equal(t, uint64(40), fields["ticks"])
	assert.Equal(t, uint64(2), fields["input_errors"])
	assert.Equal(t, safety.Attenuated.String(), fields["zone"])
	assert.Equal(t, stats.Last.String(), fields["command"])
	assert.NotContains(t, fields, "rss_bytes")
	assert.Equal(t, false, fields["input_connected"])

	fields = statusFields(stats, inputStatus{Connected: true, Idle: 1500 * time.Millisecond}, &processStats{ResidentMemory: 4096, CPUTime: 1.5})
	assert.Equal(t, true, fields["input_connected"])
	assert.Equal(t, "1.5s", fields["input_idle"])
	assert.Equal(t, 4096, fields["rss_bytes"])
	assert.Equal(t, 1.5, fields["cpu_seconds"])
}

func TestNewInputStatus(t *testing.T) {
	now := time.Unix(100, 0)

	status := newInputStatus(true, now.Add(-250*time.Millisecond), now)
	assert.True(t, status.Connected)
	assert.Equal(t, 250*time.Millisecond, status.Idle)

	status = newInputStatus(false, time.Time{}, now)
	assert.False(t, status.Connected)
	assert.Zero(t, status.Idle)
}

func TestPlayShutdownWithSpeakerDisabled(t *testing.T) {
	cfg := config.GetConfig()
	cfg.MotorCfg.MotorDriver = "log"
	cfg.RangeCfg.Driver = "none"
	cfg.BatteryCfg.Enabled = false
	cfg.SpeakerCfg.Enabled = false

	a, err := NewApp(cfg)
	require.NoError(t, err)
	assert.NotPanics(t, a.playShutdown)
}
