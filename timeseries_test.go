package benchacq

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferAppendAndRead(t *testing.T) {
	b := NewTimeSeriesBuffer(Voltage, Volt, true)
	assert.Equal(t, 0, b.Len())
	for i := 0; i < 100; i++ {
		assert.NoError(t, b.Append(float64(i)))
	}
	assert.Equal(t, 100, b.Len())
	assert.Equal(t, 42.0, b.At(42))
	assert.Equal(t, []float64{10, 11, 12}, b.CopyRange(10, 13))
	assert.Equal(t, Voltage, b.Quantity())
	assert.Equal(t, Volt, b.Unit())
	assert.True(t, b.FixedQuantity())
}

func TestBufferSampleCap(t *testing.T) {
	b := NewTimeSeriesBuffer(Current, Ampere, true)
	b.setSampleLimit(3)
	for i := 0; i < 3; i++ {
		if err := b.Append(1.0); err != nil {
			t.Fatalf("Append %d failed below the cap: %v", i, err)
		}
	}
	if err := b.Append(1.0); err == nil {
		t.Error("Append beyond the sample cap should fail")
	}
	assert.Equal(t, 3, b.Len())

	b.setSampleLimit(0)
	assert.NoError(t, b.Append(1.0), "removing the cap should allow appends again")
}

func TestBufferQuantityChange(t *testing.T) {
	fixed := NewTimeSeriesBuffer(Voltage, Volt, true)
	if err := fixed.SetQuantityUnit(Current, Ampere); err == nil {
		t.Error("a fixed-quantity buffer must refuse reclassification")
	}

	// A meter's buffer may be reclassified between measurements.
	meter := NewTimeSeriesBuffer(Voltage, Volt, false)
	assert.NoError(t, meter.SetQuantityUnit(Frequency, Hertz))
	assert.Equal(t, Frequency, meter.Quantity())
	assert.Equal(t, Hertz, meter.Unit())
}

// TestBufferConcurrentReaders checks the reader contract: take Len once,
// then index below it, while the writer keeps appending.
func TestBufferConcurrentReaders(t *testing.T) {
	b := NewTimeSeriesBuffer(Voltage, Volt, true)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 10000; i++ {
			b.Append(float64(i))
		}
	}()
	go func() {
		defer wg.Done()
		for k := 0; k < 100; k++ {
			n := b.Len()
			for i := 0; i < n; i++ {
				if got := b.At(i); got != float64(i) {
					t.Errorf("At(%d) = %v, want %v", i, got, float64(i))
					return
				}
			}
		}
	}()
	wg.Wait()
}
