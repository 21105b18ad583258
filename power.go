package benchacq

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PowerTracker derives a power series, P = V * I, from the canonical
// voltage and current signals of a session or channel group. It is a
// consumer of the signal buffers: it reads the monotonically growing
// series and appends the products to its own buffer, so the UI can plot
// power next to the measured quantities.
type PowerTracker struct {
	voltage *Signal
	current *Signal
	power   *TimeSeriesBuffer
	synced  int // samples multiplied so far
}

// NewPowerTracker pairs a voltage and a current signal. Both must exist;
// a device without either quantity cannot have derived power.
func NewPowerTracker(voltage, current *Signal) (*PowerTracker, error) {
	if voltage == nil || current == nil {
		return nil, fmt.Errorf("power tracking needs both a voltage and a current signal")
	}
	if voltage.Quantity() != Voltage {
		return nil, fmt.Errorf("signal %s has quantity %s, want Voltage", voltage.Name(), voltage.Quantity())
	}
	if current.Quantity() != Current {
		return nil, fmt.Errorf("signal %s has quantity %s, want Current", current.Name(), current.Quantity())
	}
	return &PowerTracker{
		voltage: voltage,
		current: current,
		power:   NewTimeSeriesBuffer(Power, Watt, true),
	}, nil
}

// Power returns the derived power buffer.
func (pt *PowerTracker) Power() *TimeSeriesBuffer { return pt.power }

// Update multiplies the samples that have arrived since the last call and
// appends them to the power buffer. Only sample indices present in both
// inputs are used; the laggard bounds the pairing. Returns the number of
// samples appended.
func (pt *PowerTracker) Update() int {
	// Length-then-index: the buffers may grow underneath us, but never
	// shrink.
	n := pt.voltage.Data().Len()
	if ni := pt.current.Data().Len(); ni < n {
		n = ni
	}
	if n <= pt.synced {
		return 0
	}
	v := pt.voltage.Data().CopyRange(pt.synced, n)
	i := pt.current.Data().CopyRange(pt.synced, n)
	appended := 0
	for k := range v {
		if err := pt.power.Append(v[k] * i[k]); err != nil {
			break
		}
		appended++
	}
	pt.synced += appended
	return appended
}

// SeriesStats summarizes the recent samples of a buffer.
type SeriesStats struct {
	N      int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// WindowStats computes statistics over the last window samples of a
// buffer (all samples when window <= 0 or larger than the series).
func WindowStats(b *TimeSeriesBuffer, window int) SeriesStats {
	n := b.Len()
	if n == 0 {
		return SeriesStats{}
	}
	from := 0
	if window > 0 && window < n {
		from = n - window
	}
	values := b.CopyRange(from, n)
	return SeriesStats{
		N:      len(values),
		Mean:   stat.Mean(values, nil),
		StdDev: stat.StdDev(values, nil),
		Min:    floats.Min(values),
		Max:    floats.Max(values),
	}
}
