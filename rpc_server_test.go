package benchacq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/benchlab/benchacq/internal/benchdb"
)

func controlFixture(t *testing.T) (*SessionControl, *DeviceManager) {
	t.Helper()
	drv := NewDemoSession()
	drv.Interval = time.Millisecond
	manager := NewDeviceManager()
	for _, dev := range []*DemoDevice{NewDemoPowerSupply(), NewDemoLoad(), NewDemoMultimeter()} {
		ds, err := NewDeviceSession(drv, dev)
		if err != nil {
			t.Fatalf("NewDeviceSession: %v", err)
		}
		manager.Add(ds)
	}
	return NewSessionControl(manager, benchdb.DummyConnection()), manager
}

func TestControlOpenClose(t *testing.T) {
	sc, manager := controlFixture(t)
	name := "BenchLab LD-300 (usb:1-5)"

	var ok bool
	assert.NoError(t, sc.OpenDevice(&name, &ok))
	assert.True(t, ok)
	assert.True(t, manager.FindByShortName(name).IsOpen())

	ok = false
	assert.NoError(t, sc.CloseDevice(&name, &ok))
	assert.True(t, ok)
	assert.False(t, manager.FindByShortName(name).IsOpen())

	// Closing a closed session is allowed.
	assert.NoError(t, sc.CloseDevice(&name, &ok))

	missing := "no such device"
	assert.Error(t, sc.OpenDevice(&missing, &ok))
	assert.Error(t, sc.CloseDevice(&missing, &ok))
}

func TestControlStatus(t *testing.T) {
	sc, _ := controlFixture(t)
	dummy := ""
	var st ServerStatus
	assert.NoError(t, sc.Status(&dummy, &st))
	assert.Len(t, st.Devices, 3)
	for _, dev := range st.Devices {
		assert.False(t, dev.Open)
		assert.False(t, dev.Running)
	}
}

func TestControlSignalInventory(t *testing.T) {
	sc, _ := controlFixture(t)
	name := "BenchLab PSU-2000 (usb:1-4)"
	var infos []SignalInfo
	assert.NoError(t, sc.SignalInventory(&name, &infos))
	assert.Len(t, infos, 4)

	// Group order, then channel order within the group.
	assert.Equal(t, "V1", infos[0].Name)
	assert.Equal(t, "1", infos[0].Group)
	assert.Equal(t, "I1", infos[1].Name)
	assert.Equal(t, "V2", infos[2].Name)
	assert.Equal(t, "2", infos[2].Group)
	assert.Equal(t, "Voltage", infos[0].Quantity)
	assert.Equal(t, "V", infos[0].Unit)
	assert.True(t, infos[0].FixedQty)
	assert.False(t, infos[0].SharedTime)

	name = "BenchLab DMM-100 (usb:1-6)"
	assert.NoError(t, sc.SignalInventory(&name, &infos))
	assert.Len(t, infos, 1)
	assert.Equal(t, "P1", infos[0].Name)
	assert.Equal(t, "DMM-100", infos[0].Group, "group-less devices report the implicit group")
	assert.False(t, infos[0].FixedQty)
}
