package resolver

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/hand_rehab/internal/imu"
	"github.com/relabs-tech/hand_rehab/internal/samplelog"
)

var fixedNow = time.Date(2026, 2, 3, 4, 5, 6, 789_654_321, time.Local)

func newTestResolver() *Resolver {
	return New(Config{Now: func() time.Time { return fixedNow }})
}

func num(v float64) *float64 { return &v }

func record(sessionID, mode, y, z *float64) imu.RawUpdate {
	return imu.RawUpdate{Path: "IMU", Record: &imu.Record{SessionID: sessionID, Mode: mode, Y: y, Z: z}}
}

func scalar(key string, v float64) imu.RawUpdate {
	return imu.RawUpdate{Path: "IMU/" + key, Scalar: num(v)}
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRepDetector_CountsReturnsToNeutral(t *testing.T) {
	d := NewRepDetector(1e-3)
	var got []int
	for _, v := range []float64{0.5, -0.3, 0, 0.2, 0, 0, -0.1} {
		got = append(got, d.Observe(v))
	}
	assert.Equal(t, []int{1, 1, 2, 2, 3, 3, 3}, got)
	assert.Equal(t, PhaseNegative, d.Phase)
}

func TestRepDetector_ThresholdBoundary(t *testing.T) {
	// Exactly the threshold is outside the neutral band.
	d := NewRepDetector(1e-3)
	d.Observe(0.5)
	assert.Equal(t, 1, d.Observe(1e-3))
	assert.Equal(t, PhasePositive, d.Phase)

	// Just inside the band completes the rep.
	assert.Equal(t, 2, d.Observe(0.0009))
	assert.Equal(t, PhaseNeutral, d.Phase)

	// Negative side of the band behaves the same.
	d.Observe(-0.5)
	assert.Equal(t, 2, d.Observe(-1e-3))
	assert.Equal(t, 3, d.Observe(-0.0009))
}

func TestRepDetector_NeutralFirstDoesNotCount(t *testing.T) {
	d := NewRepDetector(1e-3)
	assert.Equal(t, 1, d.Observe(0))
	assert.Equal(t, 1, d.Observe(0))
	assert.Equal(t, PhaseNeutral, d.Phase)
}

func TestRepDetector_OscillationOnOneSide(t *testing.T) {
	d := NewRepDetector(1e-3)
	for _, v := range []float64{5, 10, 2, 8, 0.5} {
		assert.Equal(t, 1, d.Observe(v))
	}
	assert.Equal(t, 2, d.Observe(0))
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "unknown", PhaseUnknown.String())
	assert.Equal(t, "neutral", PhaseNeutral.String())
	assert.Equal(t, "negative", PhaseNegative.String())
	assert.Equal(t, "positive", PhasePositive.String())
}

func TestApply_PartialUpdatesMatchFullRecord(t *testing.T) {
	partial := newTestResolver()
	_, ok := partial.Apply(scalar(imu.FieldSessionID, 3))
	require.False(t, ok)
	_, ok = partial.Apply(scalar(imu.FieldMode, 2))
	require.False(t, ok)
	fromPartial, ok := partial.Apply(scalar(imu.FieldZ, 5.0))
	require.True(t, ok)

	full := newTestResolver()
	_, ok = full.Apply(scalar(imu.FieldSessionID, 3))
	require.False(t, ok)
	fromFull, ok := full.Apply(record(nil, num(2), nil, num(5.0)))
	require.True(t, ok)

	assert.Equal(t, fromFull, fromPartial)
	assert.Equal(t, 5.0, fromPartial.AngleValue)
	assert.Equal(t, 2, fromPartial.Mode)
	assert.Equal(t, 3, fromPartial.SessionID)
	assert.Equal(t, 1, fromPartial.RepNumber)
	assert.Equal(t, fixedNow.Truncate(time.Millisecond), fromPartial.Timestamp)
	assert.Equal(t, 789_000_000, fromPartial.Timestamp.Nanosecond())
}

func TestApply_NoPrematureEmission(t *testing.T) {
	r := newTestResolver()
	_, ok := r.Apply(scalar(imu.FieldSessionID, 3))
	assert.False(t, ok)
	_, ok = r.Apply(scalar(imu.FieldMode, 1))
	assert.False(t, ok)

	// z is not the mode 1 axis.
	_, ok = r.Apply(scalar(imu.FieldZ, 4))
	assert.False(t, ok)

	s, ok := r.Apply(scalar(imu.FieldY, 7))
	require.True(t, ok)
	assert.Equal(t, 7.0, s.AngleValue)
}

func TestApply_RequiresSessionID(t *testing.T) {
	r := newTestResolver()
	_, ok := r.Apply(record(nil, num(1), num(3), nil))
	assert.False(t, ok)

	s, ok := r.Apply(scalar(imu.FieldSessionID, 9))
	require.True(t, ok)
	assert.Equal(t, 9, s.SessionID)
	assert.Equal(t, 3.0, s.AngleValue)
}

func TestApply_ClearsAxesButKeepsSessionAndMode(t *testing.T) {
	r := newTestResolver()
	_, ok := r.Apply(record(num(1), num(1), num(2), num(6)))
	require.True(t, ok)

	st := r.State()
	assert.Nil(t, st.Y)
	assert.Nil(t, st.Z)
	require.NotNil(t, st.SessionID)
	assert.Equal(t, 1, *st.SessionID)
	require.NotNil(t, st.Mode)
	assert.Equal(t, 1, *st.Mode)

	// An unrelated update must not re-emit the consumed sample.
	_, ok = r.Apply(scalar(imu.FieldSessionID, 1))
	assert.False(t, ok)
	_, ok = r.Apply(scalar(imu.FieldMode, 2))
	assert.False(t, ok)
}

func TestApply_AbsentFieldsKeepPreviousValues(t *testing.T) {
	r := newTestResolver()
	_, ok := r.Apply(record(num(4), num(2), nil, nil))
	require.False(t, ok)

	s, ok := r.Apply(record(nil, nil, nil, num(-3)))
	require.True(t, ok)
	assert.Equal(t, 4, s.SessionID)
	assert.Equal(t, 2, s.Mode)
	assert.Equal(t, -3.0, s.AngleValue)
}

func TestApply_IgnoredUpdates(t *testing.T) {
	r := newTestResolver()
	_, ok := r.Apply(record(num(1), num(1), nil, nil))
	require.False(t, ok)
	before := r.State()

	for _, u := range []imu.RawUpdate{
		{Path: "IMU/y"},                  // deletion
		scalar("pitch", 12),              // unknown key
		scalar(imu.FieldSessionID, 2.5),  // non-integral id
		scalar(imu.FieldMode, 1.5),       // non-integral mode
		scalar(imu.FieldSessionID, 1e19), // id beyond int range
		scalar(imu.FieldMode, -1e19),     // mode beyond int range
		record(nil, nil, nil, nil),       // record with nothing in it
	} {
		_, ok := r.Apply(u)
		assert.False(t, ok)
	}
	assert.Equal(t, before, r.State())
}

func TestApply_UnsupportedModeNeverResolves(t *testing.T) {
	r := newTestResolver()
	_, ok := r.Apply(record(num(1), num(3), num(1), num(1)))
	assert.False(t, ok)
}

func TestApply_RepStateSurvivesSessionChange(t *testing.T) {
	r := newTestResolver()
	s, _ := r.Apply(record(num(1), num(1), num(10), nil))
	assert.Equal(t, 1, s.RepNumber)
	s, _ = r.Apply(scalar(imu.FieldY, 0))
	assert.Equal(t, 2, s.RepNumber)

	_, ok := r.Apply(scalar(imu.FieldSessionID, 2))
	require.False(t, ok)
	s, ok = r.Apply(scalar(imu.FieldY, 5))
	require.True(t, ok)
	assert.Equal(t, 2, s.SessionID)
	assert.Equal(t, 2, s.RepNumber)
}

func TestApply_RepNumbersAcrossStream(t *testing.T) {
	r := newTestResolver()
	_, _ = r.Apply(record(num(1), num(2), nil, nil))

	var reps []int
	for _, v := range []float64{0.5, -0.3, 0, 0.2, 0, 0, -0.1} {
		s, ok := r.Apply(scalar(imu.FieldZ, v))
		require.True(t, ok)
		reps = append(reps, s.RepNumber)
	}
	assert.Equal(t, []int{1, 1, 2, 2, 3, 3, 3}, reps)
}

func TestRun_SerializesUpdatesIntoSink(t *testing.T) {
	updates := make(chan imu.RawUpdate, 8)
	updates <- scalar(imu.FieldSessionID, 5)
	updates <- scalar(imu.FieldMode, 1)
	updates <- imu.RawUpdate{Path: "IMU/y"}
	updates <- scalar(imu.FieldY, 1.5)
	updates <- scalar(imu.FieldY, 0)
	close(updates)

	var got []samplelog.Sample
	sink := SinkFunc(func(s samplelog.Sample) error {
		got = append(got, s)
		return nil
	})

	err := Run(context.Background(), newTestResolver(), updates, sink, quietLogger())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1.5, got[0].AngleValue)
	assert.Equal(t, 1, got[0].RepNumber)
	assert.Equal(t, 0.0, got[1].AngleValue)
	assert.Equal(t, 2, got[1].RepNumber)
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan imu.RawUpdate)

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, newTestResolver(), updates, SinkFunc(func(samplelog.Sample) error { return nil }), quietLogger())
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_SinkFailureKeepsConsuming(t *testing.T) {
	updates := make(chan imu.RawUpdate, 4)
	updates <- record(num(1), num(1), num(1), nil)
	updates <- scalar(imu.FieldY, 2)
	close(updates)

	calls := 0
	sink := SinkFunc(func(samplelog.Sample) error {
		calls++
		return errors.New("disk full")
	})

	require.NoError(t, Run(context.Background(), newTestResolver(), updates, sink, quietLogger()))
	assert.Equal(t, 2, calls)
}

func TestTee_DeliversToAllAndJoinsErrors(t *testing.T) {
	var a, b int
	failing := SinkFunc(func(samplelog.Sample) error { a++; return errors.New("broker down") })
	counting := SinkFunc(func(samplelog.Sample) error { b++; return nil })

	err := Tee(failing, counting).Append(samplelog.Sample{})
	assert.ErrorContains(t, err, "broker down")
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)

	assert.NoError(t, Tee(counting).Append(samplelog.Sample{}))
}
