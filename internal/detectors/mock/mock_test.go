package mock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buzzwordmojo/nightwatch/internal/events"
)

func TestSource_NormalStateWithoutAnomaly(t *testing.T) {
	s := New()
	require.NoError(t, s.Connect(context.Background()))

	value, state, confidence, ok := s.Process(nil, time.Now().Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, events.StateNormal, state)
	assert.Equal(t, 0.95, confidence)
	require.NotNil(t, value["respiration_rate"].Number)
	assert.Greater(t, *value["respiration_rate"].Number, 0.0)
}

func TestSource_ApneaAnomalyZeroesRespiration(t *testing.T) {
	s := New()
	require.NoError(t, s.Connect(context.Background()))
	s.InjectAnomaly("apnea", time.Minute)

	value, state, _, ok := s.Process(nil, time.Now())
	require.True(t, ok)
	assert.Equal(t, events.StateAlert, state)
	require.NotNil(t, value["respiration_rate"].Number)
	assert.Equal(t, 0.0, *value["respiration_rate"].Number)
}

func TestSource_BradycardiaAnomalyLowersHeartRate(t *testing.T) {
	s := New()
	require.NoError(t, s.Connect(context.Background()))
	s.InjectAnomaly("bradycardia", time.Minute)

	value, state, _, _ := s.Process(nil, time.Now())
	assert.Equal(t, events.StateAlert, state)
	assert.Equal(t, 35.0, *value["heart_rate"].Number)
}

func TestSource_AnomalyExpiresAfterDuration(t *testing.T) {
	s := New()
	require.NoError(t, s.Connect(context.Background()))
	s.InjectAnomaly("apnea", 10*time.Millisecond)

	_, state, _, _ := s.Process(nil, time.Now().Add(50*time.Millisecond))
	assert.Equal(t, events.StateNormal, state)
}

func TestSource_CalibrateReportsBaselines(t *testing.T) {
	s := New()
	result, err := s.Calibrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 14.0, result["baseline_respiration"])
	assert.Equal(t, 70.0, result["baseline_heart_rate"])
}
