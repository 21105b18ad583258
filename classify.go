package benchacq

import (
	"fmt"
	"strings"
)

// DeviceType tags what kind of instrument a session controls.
type DeviceType int

// Names for the possible values of DeviceType.
const (
	UnknownDevice DeviceType = iota
	PowerSupply
	ElectronicLoad
	Multimeter
	DemoDev
)

func (dt DeviceType) String() string {
	switch dt {
	case PowerSupply:
		return "PowerSupply"
	case ElectronicLoad:
		return "ElectronicLoad"
	case Multimeter:
		return "Multimeter"
	case DemoDev:
		return "DemoDevice"
	}
	return "Unknown"
}

// Quantity is the physical quantity a buffer's samples measure.
type Quantity int

// Names for the possible values of Quantity.
const (
	NoQuantity Quantity = iota
	Voltage
	Current
	Frequency
	Power
	TimeQuantity
)

func (q Quantity) String() string {
	switch q {
	case Voltage:
		return "Voltage"
	case Current:
		return "Current"
	case Frequency:
		return "Frequency"
	case Power:
		return "Power"
	case TimeQuantity:
		return "Time"
	}
	return "None"
}

// Unit is the measurement unit paired with a Quantity.
type Unit int

// Names for the possible values of Unit.
const (
	NoUnit Unit = iota
	Volt
	Ampere
	Hertz
	Watt
	Second
)

func (u Unit) String() string {
	switch u {
	case Volt:
		return "V"
	case Ampere:
		return "A"
	case Hertz:
		return "Hz"
	case Watt:
		return "W"
	case Second:
		return "s"
	}
	return ""
}

// devicePolicy is the per-device-type classification decided once at
// session construction: whether quantities are pinned for the whole
// session and whether all channels share one time base.
type devicePolicy struct {
	devType        DeviceType
	fixedQuantity  bool
	sharedTimeBase bool
}

// classifyDevice maps the driver's capability keys to a device policy.
// A device advertising none of the known keys is a configuration error.
func classifyDevice(caps []Capability) (devicePolicy, error) {
	has := func(want Capability) bool {
		for _, c := range caps {
			if c == want {
				return true
			}
		}
		return false
	}
	switch {
	case has(CapPowerSupply):
		// Each supply output has its own clock in this design.
		return devicePolicy{PowerSupply, true, false}, nil
	case has(CapElectronicLoad):
		return devicePolicy{ElectronicLoad, true, true}, nil
	case has(CapMultimeter):
		// A meter's quantity can change between measurements.
		return devicePolicy{Multimeter, false, false}, nil
	case has(CapDemoDev):
		return devicePolicy{DemoDev, false, false}, nil
	}
	return devicePolicy{}, fmt.Errorf("device advertises no recognized capability key %v, cannot classify", caps)
}

// classifyChannelName maps a driver-internal channel name to its quantity
// and unit by the fixed naming convention shared by all supported drivers.
// The name "P1" is recognized but deliberately left unclassified; ok is
// false for it and for names outside the convention.
func classifyChannelName(name string) (q Quantity, u Unit, ok bool) {
	switch {
	case name == "P1":
		return NoQuantity, NoUnit, false
	case strings.HasPrefix(name, "V"):
		return Voltage, Volt, true
	case strings.HasPrefix(name, "I"):
		return Current, Ampere, true
	case strings.HasPrefix(name, "F"):
		return Frequency, Hertz, true
	case strings.HasPrefix(name, "A"):
		// Generic analog inputs are repurposed as voltage readings.
		return Voltage, Volt, true
	}
	return NoQuantity, NoUnit, false
}
