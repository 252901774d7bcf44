package pipwm

import (
	"testing"

	"github.com/mbojarska/tadpole/internal/config"
	"github.com/mbojarska/tadpole/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder logs pin writes in order across all pins of one motor.
type recorder struct {
	writes []string
}

type fakePwm struct {
	rec  *recorder
	duty uint32
}

func (f *fakePwm) DutyCycle(dutyLen, cycleLen uint32) {
	f.duty = dutyLen
	f.rec.writes = append(f.rec.writes, "duty")
}

type fakeDir struct {
	rec  *recorder
	name string
	high bool
}

func (f *fakeDir) High() {
	f.high = true
	f.rec.writes = append(f.rec.writes, f.name+"+")
}

func (f *fakeDir) Low() {
	f.high = false
	f.rec.writes = append(f.rec.writes, f.name+"-")
}

func newTestMotor(inverted bool) (*Motor, *fakePwm, *fakeDir, *fakeDir, *recorder) {
	rec := &recorder{}
	pwm := &fakePwm{rec: rec}
	in1 := &fakeDir{rec: rec, name: "in1"}
	in2 := &fakeDir{rec: rec, name: "in2"}
	return NewMotor("test", inverted, pwm, in1, in2, 100), pwm, in1, in2, rec
}

func TestMotorForwardAndReverse(t *testing.T) {
	m, pwm, in1, in2, _ := newTestMotor(false)

	m.Set(0.5)
	assert.Equal(t, uint32(50), pwm.duty)
	assert.True(t, in1.high)
	assert.False(t, in2.high)

	m.Set(-0.25)
	assert.Equal(t, uint32(25), pwm.duty)
	assert.False(t, in1.high)
	assert.True(t, in2.high)
}

func TestMotorInverted(t *testing.T) {
	m, pwm, in1, in2, _ := newTestMotor(true)

	m.Set(1)
	assert.Equal(t, uint32(100), pwm.duty)
	assert.False(t, in1.high)
	assert.True(t, in2.high)
}

func TestMotorBrakesBeforeReversing(t *testing.T) {
	m, _, _, _, rec := newTestMotor(false)
	m.Set(0.5)
	rec.writes = nil

	m.Set(-0.5)
	require.Len(t, rec.writes, 5)
	assert.Equal(t, []string{"duty", "in1-", "in2-", "in2+", "duty"}, rec.writes)
}

func TestMotorSameDirectionOnlyChangesDuty(t *testing.T) {
	m, pwm, _, _, rec := newTestMotor(false)
	m.Set(0.5)
	rec.writes = nil

	m.Set(0.7)
	assert.Equal(t, []string{"duty"}, rec.writes)
	assert.Equal(t, uint32(70), pwm.duty)
}

func TestMotorZeroBrakes(t *testing.T) {
	m, pwm, in1, in2, _ := newTestMotor(false)
	m.Set(0.5)
	m.Set(0)
	assert.Equal(t, uint32(0), pwm.duty)
	assert.False(t, in1.high)
	assert.False(t, in2.high)

	m.Set(0.3)
	assert.True(t, in1.high, "direction pins are raised again after a stop")
	assert.Equal(t, uint32(30), pwm.duty)
}

func TestDriverApplyBeforeInit(t *testing.T) {
	d := NewCommand(config.MotorConfig{})
	assert.Error(t, d.Apply(models.Stop))
	assert.NoError(t, d.Stop())
}

func TestDriverApply(t *testing.T) {
	left, leftPwm, _, _, _ := newTestMotor(true)
	right, rightPwm, _, _, _ := newTestMotor(false)
	d := &CommandDriver{left: left, right: right}

	require.NoError(t, d.Apply(models.MotorCommand{Left: 0.4, Right: -0.6}))
	assert.Equal(t, uint32(40), leftPwm.duty)
	assert.Equal(t, uint32(60), rightPwm.duty)

	require.NoError(t, d.Stop())
	assert.Equal(t, uint32(0), leftPwm.duty)
	assert.Equal(t, uint32(0), rightPwm.duty)
}
