package benchacq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func trackerFixture(t *testing.T) (*DeviceSession, *PowerTracker) {
	t.Helper()
	_, ds := newTestSession(t, NewDemoLoad())
	pt, err := NewPowerTracker(ds.VoltageSignal(), ds.CurrentSignal())
	if err != nil {
		t.Fatalf("NewPowerTracker: %v", err)
	}
	return ds, pt
}

func TestPowerTrackerValidation(t *testing.T) {
	_, ds := newTestSession(t, NewDemoLoad())
	if _, err := NewPowerTracker(nil, ds.CurrentSignal()); err == nil {
		t.Error("a nil voltage signal should be rejected")
	}
	if _, err := NewPowerTracker(ds.VoltageSignal(), ds.VoltageSignal()); err == nil {
		t.Error("a voltage signal in the current slot should be rejected")
	}
}

func TestPowerTrackerUpdate(t *testing.T) {
	ds, pt := trackerFixture(t)
	v := ds.VoltageSignal().Data()
	i := ds.CurrentSignal().Data()

	for k := 0; k < 4; k++ {
		assert.NoError(t, v.Append(12.0))
	}
	for k := 0; k < 3; k++ {
		assert.NoError(t, i.Append(2.0))
	}

	// The laggard bounds the pairing.
	assert.Equal(t, 3, pt.Update())
	assert.Equal(t, 3, pt.Power().Len())
	assert.Equal(t, 24.0, pt.Power().At(0))

	// Nothing new pairs up until the current series catches up.
	assert.Equal(t, 0, pt.Update())
	assert.NoError(t, i.Append(3.0))
	assert.Equal(t, 1, pt.Update())
	assert.Equal(t, 36.0, pt.Power().At(3))

	assert.Equal(t, Power, pt.Power().Quantity())
	assert.Equal(t, Watt, pt.Power().Unit())
}

func TestWindowStats(t *testing.T) {
	b := NewTimeSeriesBuffer(Voltage, Volt, true)
	for _, v := range []float64{1, 2, 3, 4, 5, 6} {
		assert.NoError(t, b.Append(v))
	}

	all := WindowStats(b, 0)
	assert.Equal(t, 6, all.N)
	assert.InDelta(t, 3.5, all.Mean, 1e-12)
	assert.Equal(t, 1.0, all.Min)
	assert.Equal(t, 6.0, all.Max)

	last3 := WindowStats(b, 3)
	assert.Equal(t, 3, last3.N)
	assert.InDelta(t, 5.0, last3.Mean, 1e-12)
	assert.Equal(t, 4.0, last3.Min)
	assert.Equal(t, 6.0, last3.Max)

	empty := WindowStats(NewTimeSeriesBuffer(Voltage, Volt, true), 10)
	assert.Equal(t, 0, empty.N)
}
