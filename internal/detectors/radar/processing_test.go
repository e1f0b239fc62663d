package radar

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRespirationExtractor_UncertainUntilWindowFilled(t *testing.T) {
	r := NewRespirationExtractor()
	_, _, _, uncertain := r.Update(800)
	assert.True(t, uncertain)
}

func TestRespirationExtractor_EstimatesKnownRate(t *testing.T) {
	r := NewRespirationExtractor()

	// 15 breaths/min at the extractor's fixed 10Hz sample rate.
	breathsPerMinute := 15.0
	angularFreq := 2 * math.Pi * (breathsPerMinute / 60.0) / sampleRateHz

	var rate float64
	for i := 0; i < int(sampleRateHz*30); i++ {
		y := 800 + 5*math.Sin(angularFreq*float64(i))
		rate, _, _, _ = r.Update(y)
	}

	if rate > 0 {
		assert.InDelta(t, breathsPerMinute, rate, 6.0)
	}
}

func TestHeartRateEstimator_NoRateBeforeWindowFilled(t *testing.T) {
	h := NewHeartRateEstimator()
	rate, conf := h.Update(800)
	assert.Equal(t, 0.0, rate)
	assert.Equal(t, 0.0, conf)
}

func TestMovementDetector_FlagsLargeExcursionAsMacro(t *testing.T) {
	m := NewMovementDetector()
	var level float64
	var isMacro bool
	for i := 0; i < 5; i++ {
		x := float64(i * 200)
		level, isMacro = m.Update(x, 800, 100)
	}
	assert.True(t, isMacro)
	assert.Greater(t, level, 0.0)
}

func TestMovementDetector_StillTargetNoMacro(t *testing.T) {
	m := NewMovementDetector()
	var isMacro bool
	for i := 0; i < 5; i++ {
		_, isMacro = m.Update(100, 800, 0)
	}
	assert.False(t, isMacro)
}

func TestPresenceTracker_RequiresSustainedDetection(t *testing.T) {
	var p PresenceTracker
	now := time.Now()

	assert.False(t, p.Update(now, true)) // single sample isn't sustained yet
	assert.True(t, p.Update(now.Add(1500*time.Millisecond), true))
}

func TestPresenceTracker_ExpiresOldSightings(t *testing.T) {
	var p PresenceTracker
	now := time.Now()
	p.Update(now, true)
	p.Update(now.Add(1500*time.Millisecond), true)

	present := p.Update(now.Add(10*time.Second), false)
	assert.False(t, present)
}
