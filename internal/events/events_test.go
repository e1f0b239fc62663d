package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValue_IsNullForZeroValue(t *testing.T) {
	assert.True(t, Value{}.IsNull())
	assert.False(t, NumberValue(1).IsNull())
	assert.False(t, BoolValue(false).IsNull())
}

func TestValue_FloatAndTruthReportPresence(t *testing.T) {
	v := NumberValue(3.5)
	f, ok := v.Float()
	assert.True(t, ok)
	assert.Equal(t, 3.5, f)
	_, ok = v.Truth()
	assert.False(t, ok)

	b := BoolValue(true)
	truth, ok := b.Truth()
	assert.True(t, ok)
	assert.True(t, truth)
	_, ok = b.Float()
	assert.False(t, ok)
}

func TestEvent_FieldLooksUpByName(t *testing.T) {
	e := Event{Value: map[string]Value{"heart_rate": NumberValue(70)}}
	v, ok := e.Field("heart_rate")
	assert.True(t, ok)
	f, _ := v.Float()
	assert.Equal(t, 70.0, f)

	_, ok = e.Field("missing")
	assert.False(t, ok)
}

func TestSignalValue_StaleComparesAgainstMaxAge(t *testing.T) {
	now := time.Now()
	fresh := SignalValue{Timestamp: now.Add(-time.Second)}
	stale := SignalValue{Timestamp: now.Add(-time.Hour)}

	assert.False(t, fresh.Stale(now, 5*time.Second))
	assert.True(t, stale.Stale(now, 5*time.Second))
}

func TestFusedSignal_ToEventNormalWhenValuePresent(t *testing.T) {
	f := FusedSignal{Name: "resp_rate", Value: NumberValue(14), Confidence: 0.9, Timestamp: time.Now()}
	ev := f.ToEvent()
	assert.Equal(t, "fusion.resp_rate", ev.Detector)
	assert.Equal(t, StateNormal, ev.State)
	val, ok := ev.Field("value")
	assert.True(t, ok)
	num, _ := val.Float()
	assert.Equal(t, 14.0, num)
}

func TestFusedSignal_ToEventUncertainWhenValueMissing(t *testing.T) {
	f := FusedSignal{Name: "resp_rate", Value: Value{}, Timestamp: time.Now()}
	ev := f.ToEvent()
	assert.Equal(t, StateUncertain, ev.State)
}

func TestPauseState_ActiveHonorsPauseUntil(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.False(t, PauseState{}.Active(now))
	assert.True(t, PauseState{Paused: true}.Active(now))
	assert.True(t, PauseState{Paused: true, PauseUntil: &future}.Active(now))
	assert.False(t, PauseState{Paused: true, PauseUntil: &past}.Active(now))
}
