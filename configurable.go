package benchacq

import (
	"sync"

	"github.com/benchlab/benchacq/internal/eventqueue"
)

// ConfigKey identifies one device parameter carried by metadata packets.
type ConfigKey int

// The metadata keys benchacq decodes. Drivers may report others; those are
// ignored, which is expected and not an error.
const (
	KeyEnabled ConfigKey = iota + 1
	KeyVoltageTarget
	KeyCurrentLimit
	KeyOTPEnabled
	KeyOTPActive
	KeyOVPEnabled
	KeyOVPActive
	KeyOVPThreshold
	KeyOCPEnabled
	KeyOCPActive
	KeyOCPThreshold
	KeyUVCEnabled
	KeyUVCActive
)

func (k ConfigKey) String() string {
	switch k {
	case KeyEnabled:
		return "Enabled"
	case KeyVoltageTarget:
		return "VoltageTarget"
	case KeyCurrentLimit:
		return "CurrentLimit"
	case KeyOTPEnabled:
		return "OTPEnabled"
	case KeyOTPActive:
		return "OTPActive"
	case KeyOVPEnabled:
		return "OVPEnabled"
	case KeyOVPActive:
		return "OVPActive"
	case KeyOVPThreshold:
		return "OVPThreshold"
	case KeyOCPEnabled:
		return "OCPEnabled"
	case KeyOCPActive:
		return "OCPActive"
	case KeyOCPThreshold:
		return "OCPThreshold"
	case KeyUVCEnabled:
		return "UVCEnabled"
	case KeyUVCActive:
		return "UVCActive"
	}
	return "unknown"
}

// ConfigChange is one decoded configuration-change event. Bool is valid
// for the enabled/active keys, Float for targets, limits and thresholds.
type ConfigChange struct {
	Configurable string
	Key          ConfigKey
	Bool         bool
	Float        float64
}

// ConfigState holds the last known values of the parameters a Configurable
// has been notified about. The seen map records which fields carry real
// device-reported values rather than zero defaults.
type ConfigState struct {
	Enabled       bool
	VoltageTarget float64
	CurrentLimit  float64
	OTPEnabled    bool
	OTPActive     bool
	OVPEnabled    bool
	OVPActive     bool
	OVPThreshold  float64
	OCPEnabled    bool
	OCPActive     bool
	OCPThreshold  float64
	UVCEnabled    bool
	UVCActive     bool
}

// Configurable is one controllable unit of a device, usually one channel
// group. Its state is mutated by metadata-packet handling during
// acquisition; every decoded change is fanned out to subscribers as a
// typed ConfigChange event.
type Configurable struct {
	name         string
	controllable bool

	mu    sync.Mutex
	state ConfigState
	seen  map[ConfigKey]bool
	subs  []*eventqueue.Queue[ConfigChange]
}

func newConfigurable(name string, controllable bool) *Configurable {
	return &Configurable{
		name:         name,
		controllable: controllable,
		seen:         make(map[ConfigKey]bool),
	}
}

// Name returns the channel group name this Configurable represents, or the
// device's model name for the implicit whole-device Configurable.
func (c *Configurable) Name() string { return c.name }

// Controllable tells whether the underlying group accepts set-requests.
func (c *Configurable) Controllable() bool { return c.controllable }

// State returns a copy of the last known parameter values.
func (c *Configurable) State() ConfigState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Known tells whether the device has ever reported a value for key.
func (c *Configurable) Known(key ConfigKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen[key]
}

// Subscribe returns a channel of future configuration changes. Delivery is
// unbounded, so a slow subscriber never stalls the acquisition task.
func (c *Configurable) Subscribe() <-chan ConfigChange {
	q := eventqueue.New[ConfigChange]()
	c.mu.Lock()
	c.subs = append(c.subs, q)
	c.mu.Unlock()
	return q.Out()
}

func (c *Configurable) emit(change ConfigChange) {
	change.Configurable = c.name
	c.mu.Lock()
	subs := append([]*eventqueue.Queue[ConfigChange]{}, c.subs...)
	c.mu.Unlock()
	for _, q := range subs {
		q.In() <- change
	}
	publishUpdate("CONFIG", change)
}

// applyBool records a boolean parameter and notifies subscribers.
// The caller holds no lock; parameter updates are serialized because only
// the acquisition task (or an explicit user write, never both at once by
// the device contract) mutates a Configurable.
func (c *Configurable) applyBool(key ConfigKey, v bool) {
	c.mu.Lock()
	switch key {
	case KeyEnabled:
		c.state.Enabled = v
	case KeyOTPEnabled:
		c.state.OTPEnabled = v
	case KeyOTPActive:
		c.state.OTPActive = v
	case KeyOVPEnabled:
		c.state.OVPEnabled = v
	case KeyOVPActive:
		c.state.OVPActive = v
	case KeyOCPEnabled:
		c.state.OCPEnabled = v
	case KeyOCPActive:
		c.state.OCPActive = v
	case KeyUVCEnabled:
		c.state.UVCEnabled = v
	case KeyUVCActive:
		c.state.UVCActive = v
	default:
		c.mu.Unlock()
		return
	}
	c.seen[key] = true
	c.mu.Unlock()
	c.emit(ConfigChange{Key: key, Bool: v})
}

// applyFloat records a numeric parameter and notifies subscribers.
func (c *Configurable) applyFloat(key ConfigKey, v float64) {
	c.mu.Lock()
	switch key {
	case KeyVoltageTarget:
		c.state.VoltageTarget = v
	case KeyCurrentLimit:
		c.state.CurrentLimit = v
	case KeyOVPThreshold:
		c.state.OVPThreshold = v
	case KeyOCPThreshold:
		c.state.OCPThreshold = v
	default:
		c.mu.Unlock()
		return
	}
	c.seen[key] = true
	c.mu.Unlock()
	c.emit(ConfigChange{Key: key, Float: v})
}
