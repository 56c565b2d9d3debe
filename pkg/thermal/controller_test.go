package thermal

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c := New(Options{})

	assert.Len(t, c.IntegralWindow(), DefaultISteps)
	assert.Len(t, c.DerivativeWindow(), DefaultDSteps)
	assert.Equal(t, DefaultPWMSteps, c.PWMSteps())
	assert.Equal(t, DefaultTarget, c.Target())

	kp, ki, kd := c.Coefficients()
	assert.Equal(t, float32(1), kp)
	assert.Equal(t, float32(1), ki)
	assert.Equal(t, float32(1), kd)

	for _, v := range c.IntegralWindow() {
		require.Equal(t, DefaultSeed, v)
	}
	for _, v := range c.DerivativeWindow() {
		require.Equal(t, DefaultSeed, v)
	}
}

func TestUpdate_ColdStartAboveTarget(t *testing.T) {
	c := New(Options{ISteps: 600})
	c.SetTarget(37.5)
	c.SetCoefficients(1, 0, 0)

	for step := uint64(0); step < 20; step++ {
		out := c.Update(step, 38.5)
		assert.Equal(t, float32(-1), out.Duty)
		assert.Equal(t, -10, out.Level)
		assert.False(t, out.Active, "step %d", step)
	}
	assert.Equal(t, float32(-1), c.Duty())
}

func TestUpdate_ColdStartBelowTarget(t *testing.T) {
	c := New(Options{})
	c.SetTarget(39.0)
	c.SetCoefficients(1, 0, 0)

	for step := uint64(0); step < 30; step++ {
		out := c.Update(step, 38.5)
		assert.Equal(t, float32(0.5), out.Duty)
		assert.Equal(t, 5, out.Level)
		assert.Equal(t, step%10 < 5, out.Active, "step %d", step)
	}
}

func TestUpdate_IntegralIsWindowAverage(t *testing.T) {
	c := New(Options{ISteps: 4, DSteps: 2, Seed: 37})
	c.SetTarget(37)
	c.SetCoefficients(0, 1, 0)

	// One slot at 35 -> average deviation (37-35)/4.
	out := c.Update(0, 35)
	assert.InDelta(t, 0.5, out.Duty, 1e-6)

	// Overwriting the same slot replaces, not accumulates.
	out = c.Update(4, 36)
	assert.InDelta(t, 0.25, out.Duty, 1e-6)
}

func TestUpdate_DerivativeAgainstOldestSample(t *testing.T) {
	c := New(Options{ISteps: 8, DSteps: 4, Seed: 37})
	c.SetTarget(37)
	c.SetCoefficients(0, 0, 1)

	// Fill the derivative window with 36, 37, 38, 39 at slots 0..3.
	c.Update(0, 36)
	c.Update(1, 37)
	c.Update(2, 38)
	out := c.Update(3, 39)
	// Last slot compares against slot 0: 39 - 36 = 3, D enters negatively.
	assert.InDelta(t, -3, out.Duty, 1e-6)

	// Slot 0 compares against slot 1, the next to be overwritten: 40 - 37.
	out = c.Update(4, 40)
	assert.InDelta(t, -3, out.Duty, 1e-6)
	assert.Equal(t, -DefaultPWMSteps, out.Level)
}

func TestUpdate_DerivativeScalingCancels(t *testing.T) {
	// D = (diff/DSteps)*DSteps is carried as D = diff.
	c := New(Options{ISteps: 10, DSteps: 120, Seed: 37})
	c.SetTarget(37)
	c.SetCoefficients(0, 0, 0.1)

	out := c.Update(5, 37.3)
	diff := float32(37.3) - float32(37)
	assert.InDelta(t, -0.1*diff, out.Duty, 1e-6)
}

func TestUpdate_WindowsHoldLatestPerSlot(t *testing.T) {
	const iSteps, dSteps = 6, 4
	c := New(Options{ISteps: iSteps, DSteps: dSteps})
	rng := rand.New(rand.NewSource(1))

	wantI := make([]float32, iSteps)
	wantD := make([]float32, dSteps)
	for i := range wantI {
		wantI[i] = DefaultSeed
	}
	for i := range wantD {
		wantD[i] = DefaultSeed
	}

	for step := uint64(1000); step < 1100; step++ {
		v := 30 + rng.Float32()*10
		c.Update(step, v)
		wantI[step%iSteps] = v
		wantD[step%dSteps] = v

		require.Equal(t, wantI, c.IntegralWindow())
		require.Equal(t, wantD, c.DerivativeWindow())
	}
}

func TestUpdate_LevelNeverExceedsPWMSteps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	c := New(Options{ISteps: 16, DSteps: 8})

	for n := range 2000 {
		c.SetCoefficients(rng.Float32()*10, rng.Float32()*10, rng.Float32()*10)
		c.SetTarget(25 + rng.Float32()*15)
		out := c.Update(uint64(n), 20+rng.Float32()*25)

		require.LessOrEqual(t, out.Level, DefaultPWMSteps)
		require.GreaterOrEqual(t, out.Level, -DefaultPWMSteps)
		if out.Duty > 1 {
			require.Equal(t, DefaultPWMSteps, out.Level)
		}
		if out.Duty < -1 {
			require.Equal(t, -DefaultPWMSteps, out.Level)
		}
	}
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		name string
		duty float32
		want int
	}{
		{"zero", 0, 0},
		{"half level rounds up", 0.25, 3},
		{"negative half level rounds down", -0.25, -3},
		{"below half", 0.24, 2},
		{"exact", 0.7, 7},
		{"clamped high", 3.2, 10},
		{"clamped low", -12, -10},
		{"full", 1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Quantize(tt.duty, 10))
		})
	}
}

func TestSlotActive(t *testing.T) {
	tests := []struct {
		name  string
		step  uint64
		level int
		want  bool
	}{
		{"level 0 never on", 0, 0, false},
		{"first slot of level 1", 20, 1, true},
		{"second slot of level 1", 21, 1, false},
		{"last slot of full level", 9, 10, true},
		{"cooling forces off", 0, -5, false},
		{"slot equal to level is off", 13, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SlotActive(tt.step, tt.level, 10))
		})
	}
}

func TestReseed(t *testing.T) {
	c := New(Options{ISteps: 3, DSteps: 2})
	c.Update(0, 20)
	c.Reseed(37)

	assert.Equal(t, []float32{37, 37, 37}, c.IntegralWindow())
	assert.Equal(t, []float32{37, 37}, c.DerivativeWindow())
}
