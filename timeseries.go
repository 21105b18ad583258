package benchacq

import (
	"fmt"
	"sync"
)

// TimeSeriesBuffer is an append-only store of one physical quantity's
// samples. During acquisition it is mutated exclusively by the acquisition
// goroutine; any number of consumer goroutines may read it concurrently.
// Readers must treat it as monotonically growing: take Len() once, then
// index below that length.
//
// A buffer may be owned by one Signal or shared as the common time base of
// all Signals in a channel group; that choice is made once at session
// construction and never changes.
type TimeSeriesBuffer struct {
	quantity      Quantity
	unit          Unit
	fixedQuantity bool

	mu         sync.RWMutex
	samples    []float64
	maxSamples int // 0 means no cap
}

// NewTimeSeriesBuffer creates an empty buffer with the given static
// metadata.
func NewTimeSeriesBuffer(q Quantity, u Unit, fixedQuantity bool) *TimeSeriesBuffer {
	return &TimeSeriesBuffer{quantity: q, unit: u, fixedQuantity: fixedQuantity}
}

// newTimeBase creates the buffer used as a time axis: quantity Time, unit
// second, always fixed.
func newTimeBase() *TimeSeriesBuffer {
	return NewTimeSeriesBuffer(TimeQuantity, Second, true)
}

// errBufferFull reports an append beyond the configured sample cap. The
// cap stands in for allocation failure, which Go cannot trap per-append.
var errBufferFull = fmt.Errorf("time series buffer is full")

// Append adds one sample. It fails only when the sample cap is reached.
func (b *TimeSeriesBuffer) Append(v float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.maxSamples > 0 && len(b.samples) >= b.maxSamples {
		return errBufferFull
	}
	b.samples = append(b.samples, v)
	return nil
}

// Len returns the number of samples appended so far.
func (b *TimeSeriesBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// At returns sample i. The caller must have observed i < Len().
func (b *TimeSeriesBuffer) At(i int) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.samples[i]
}

// CopyRange copies samples [from, to) into a fresh slice.
func (b *TimeSeriesBuffer) CopyRange(from, to int) []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]float64, to-from)
	copy(out, b.samples[from:to])
	return out
}

// Quantity returns the buffer's physical quantity.
func (b *TimeSeriesBuffer) Quantity() Quantity {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.quantity
}

// Unit returns the buffer's measurement unit.
func (b *TimeSeriesBuffer) Unit() Unit {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.unit
}

// FixedQuantity tells whether quantity and unit are pinned for the life of
// the session.
func (b *TimeSeriesBuffer) FixedQuantity() bool {
	return b.fixedQuantity
}

// SetQuantityUnit reclassifies a non-fixed buffer, as happens when a
// multimeter switches measurement modes. It is an error on a fixed buffer.
func (b *TimeSeriesBuffer) SetQuantityUnit(q Quantity, u Unit) error {
	if b.fixedQuantity {
		return fmt.Errorf("buffer quantity is fixed at %s, cannot change to %s", b.quantity, q)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quantity = q
	b.unit = u
	return nil
}

// setSampleLimit caps the buffer at n samples; 0 removes the cap.
func (b *TimeSeriesBuffer) setSampleLimit(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxSamples = n
}
