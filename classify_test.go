package benchacq

import "testing"

func TestClassifyChannelName(t *testing.T) {
	var tests = []struct {
		name string
		q    Quantity
		u    Unit
		ok   bool
	}{
		{"V1", Voltage, Volt, true},
		{"V2", Voltage, Volt, true},
		{"I1", Current, Ampere, true},
		{"F1", Frequency, Hertz, true},
		{"P1", NoQuantity, NoUnit, false},
		{"A1", Voltage, Volt, true},
		{"A7", Voltage, Volt, true},
		{"X1", NoQuantity, NoUnit, false},
		{"", NoQuantity, NoUnit, false},
	}
	for _, test := range tests {
		q, u, ok := classifyChannelName(test.name)
		if q != test.q || u != test.u || ok != test.ok {
			t.Errorf("classifyChannelName(%q) = (%v, %v, %v), want (%v, %v, %v)",
				test.name, q, u, ok, test.q, test.u, test.ok)
		}
	}
}

func TestClassifyDevice(t *testing.T) {
	var tests = []struct {
		caps   []Capability
		dtype  DeviceType
		fixed  bool
		shared bool
	}{
		{[]Capability{CapPowerSupply}, PowerSupply, true, false},
		{[]Capability{CapElectronicLoad}, ElectronicLoad, true, true},
		{[]Capability{CapMultimeter}, Multimeter, false, false},
		{[]Capability{CapDemoDev}, DemoDev, false, false},
	}
	for _, test := range tests {
		policy, err := classifyDevice(test.caps)
		if err != nil {
			t.Errorf("classifyDevice(%v) returned error %v", test.caps, err)
			continue
		}
		if policy.devType != test.dtype {
			t.Errorf("classifyDevice(%v).devType = %v, want %v", test.caps, policy.devType, test.dtype)
		}
		if policy.fixedQuantity != test.fixed {
			t.Errorf("classifyDevice(%v).fixedQuantity = %v, want %v", test.caps, policy.fixedQuantity, test.fixed)
		}
		if policy.sharedTimeBase != test.shared {
			t.Errorf("classifyDevice(%v).sharedTimeBase = %v, want %v", test.caps, policy.sharedTimeBase, test.shared)
		}
	}
}

func TestClassifyUnknownDevice(t *testing.T) {
	if _, err := classifyDevice(nil); err == nil {
		t.Error("classifyDevice(nil) should fail, devices without capability keys cannot be classified")
	}
	if _, err := classifyDevice([]Capability{Capability(99)}); err == nil {
		t.Error("classifyDevice with only unknown keys should fail")
	}
}
