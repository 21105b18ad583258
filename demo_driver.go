package benchacq

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// An in-process driver backend that synthesizes bench-instrument data.
// It serves two purposes: it is the default device set of benchacqd when
// no hardware is attached, and it grounds the lifecycle and demux tests.

// DemoSession implements DriverSession. Its run loop ticks at a fixed
// interval, asks every registered demo device for its next packets, and
// delivers them synchronously to the datafeed callbacks.
type DemoSession struct {
	Interval   time.Duration // time between frames
	FrameLimit int           // stop after this many ticks; 0 means run until Stop

	mu        sync.Mutex
	devices   []DriverDevice
	callbacks []DatafeedCallback
	abort     chan struct{}

	// Test hooks: injected failures for Start and Run.
	startErr error
	runErr   error
}

// NewDemoSession returns a session ticking every 10 ms.
func NewDemoSession() *DemoSession {
	return &DemoSession{Interval: 10 * time.Millisecond}
}

// AddDevice registers a device with the session.
func (s *DemoSession) AddDevice(dev DriverDevice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d == dev {
			return fmt.Errorf("device %s is already in the session", dev.Info().Model)
		}
	}
	s.devices = append(s.devices, dev)
	return nil
}

// RemoveDevice unregisters a device.
func (s *DemoSession) RemoveDevice(dev DriverDevice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.devices {
		if d == dev {
			s.devices = append(s.devices[:i], s.devices[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("device %s is not in the session", dev.Info().Model)
}

// AddDatafeedCallback installs a packet callback.
func (s *DemoSession) AddDatafeedCallback(cb DatafeedCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// RemoveDatafeedCallbacks uninstalls all packet callbacks.
func (s *DemoSession) RemoveDatafeedCallbacks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = nil
}

// Start prepares a run. It must be called before Run.
func (s *DemoSession) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abort = make(chan struct{})
	return nil
}

// Stop requests the run loop to end. Safe to call more than once and
// before Start has ever run.
func (s *DemoSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abort != nil {
		closeIfOpen(s.abort)
	}
	return nil
}

// Run generates frames until Stop is called or FrameLimit is reached.
// Packets are delivered synchronously from this goroutine, matching the
// contract real drivers give the acquisition task.
func (s *DemoSession) Run() error {
	if s.runErr != nil {
		return s.runErr
	}
	s.mu.Lock()
	abort := s.abort
	interval := s.Interval
	s.mu.Unlock()
	if abort == nil {
		return fmt.Errorf("Run called without Start")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	frames := 0
	for {
		select {
		case <-abort:
			return nil
		case now := <-ticker.C:
			s.deliverFrame(now)
			frames++
			if s.FrameLimit > 0 && frames >= s.FrameLimit {
				return nil
			}
		}
	}
}

func (s *DemoSession) deliverFrame(now time.Time) {
	s.mu.Lock()
	devices := append([]DriverDevice{}, s.devices...)
	callbacks := append([]DatafeedCallback{}, s.callbacks...)
	s.mu.Unlock()

	for _, dev := range devices {
		demo, ok := dev.(*DemoDevice)
		if !ok {
			continue
		}
		for _, pkt := range demo.nextPackets(now) {
			for _, cb := range callbacks {
				cb(dev, pkt)
			}
		}
	}
}

// closeIfOpen closes c unless it is already closed.
func closeIfOpen(c chan struct{}) {
	select {
	case <-c:
	default:
		close(c)
	}
}

// DemoDevice implements DriverDevice with synthesized channel data:
// slow sine waves on voltage channels, noise-free ramps on current and
// measurement channels, and a metadata packet every metaEvery frames.
type DemoDevice struct {
	info     DeviceInfo
	caps     []Capability
	channels []*Channel
	groups   []*ChannelGroup

	metaEvery int // 0 disables metadata packets
	opened    bool
	openErr   error // test hook
	frame     int
}

// Open marks the device open, or fails with the injected error.
func (d *DemoDevice) Open() error {
	if d.openErr != nil {
		return d.openErr
	}
	d.opened = true
	return nil
}

// Close marks the device closed.
func (d *DemoDevice) Close() error {
	d.opened = false
	return nil
}

// Info returns the device identity.
func (d *DemoDevice) Info() DeviceInfo { return d.info }

// Capabilities returns the advertised capability keys.
func (d *DemoDevice) Capabilities() []Capability { return d.caps }

// Channels returns the raw channel handles.
func (d *DemoDevice) Channels() []*Channel { return d.channels }

// ChannelGroups returns the device-defined channel groups.
func (d *DemoDevice) ChannelGroups() []*ChannelGroup { return d.groups }

// nextPackets synthesizes the packets for one frame: one data packet per
// channel group (or one covering all channels for group-less devices),
// plus a metadata packet every metaEvery frames.
func (d *DemoDevice) nextPackets(now time.Time) []Packet {
	d.frame++
	phase := float64(d.frame) / 50.0

	channelSets := make([][]*Channel, 0, len(d.groups))
	if len(d.groups) > 0 {
		for _, g := range d.groups {
			channelSets = append(channelSets, g.Channels)
		}
	} else {
		channelSets = append(channelSets, d.channels)
	}

	var packets []Packet
	for _, set := range channelSets {
		pkt := &DataPacket{Timestamp: now}
		for _, ch := range set {
			if ch.Kind != AnalogChannel {
				continue
			}
			pkt.Samples = append(pkt.Samples, ChannelSamples{
				Channel: ch,
				Values:  []float64{demoValue(ch.Name, phase)},
			})
		}
		packets = append(packets, pkt)
	}

	if d.metaEvery > 0 && d.frame%d.metaEvery == 0 {
		packets = append(packets, &MetaPacket{Entries: []MetaEntry{
			{Key: KeyEnabled, Value: true},
			{Key: KeyVoltageTarget, Value: 12.0},
			{Key: KeyCurrentLimit, Value: 1.5},
		}})
	}
	return packets
}

func demoValue(name string, phase float64) float64 {
	switch {
	case len(name) > 0 && name[0] == 'V':
		return 12.0 + 0.5*math.Sin(phase)
	case len(name) > 0 && name[0] == 'I':
		return 1.0 + 0.1*math.Sin(phase+math.Pi/3)
	case len(name) > 0 && name[0] == 'F':
		return 50.0 + 0.01*math.Sin(phase)
	default:
		return 3.3 + 0.2*math.Sin(phase/2)
	}
}

// NewDemoPowerSupply builds a two-output bench supply: channels V1/I1 and
// V2/I2 in channel groups "1" and "2".
func NewDemoPowerSupply() *DemoDevice {
	v1 := &Channel{Name: "V1", Kind: AnalogChannel, Index: 0}
	i1 := &Channel{Name: "I1", Kind: AnalogChannel, Index: 1}
	v2 := &Channel{Name: "V2", Kind: AnalogChannel, Index: 2}
	i2 := &Channel{Name: "I2", Kind: AnalogChannel, Index: 3}
	return &DemoDevice{
		info: DeviceInfo{
			Vendor: "BenchLab", Model: "PSU-2000", Version: "1.2",
			Serial: "0042", ConnectionID: "usb:1-4",
		},
		caps:     []Capability{CapPowerSupply},
		channels: []*Channel{v1, i1, v2, i2},
		groups: []*ChannelGroup{
			{Name: "1", Channels: []*Channel{v1, i1}, Controllable: true},
			{Name: "2", Channels: []*Channel{v2, i2}, Controllable: true},
		},
		metaEvery: 25,
	}
}

// NewDemoLoad builds a single-channel electronic load with a shared time
// base across V1 and I1.
func NewDemoLoad() *DemoDevice {
	v1 := &Channel{Name: "V1", Kind: AnalogChannel, Index: 0}
	i1 := &Channel{Name: "I1", Kind: AnalogChannel, Index: 1}
	return &DemoDevice{
		info: DeviceInfo{
			Vendor: "BenchLab", Model: "LD-300", Version: "2.0",
			Serial: "0007", ConnectionID: "usb:1-5",
		},
		caps:     []Capability{CapElectronicLoad},
		channels: []*Channel{v1, i1},
		groups: []*ChannelGroup{
			{Name: "1", Channels: []*Channel{v1, i1}, Controllable: true},
		},
		metaEvery: 25,
	}
}

// NewDemoMultimeter builds a meter exposing the single measurement
// channel "P1" and no channel groups.
func NewDemoMultimeter() *DemoDevice {
	p1 := &Channel{Name: "P1", Kind: AnalogChannel, Index: 0}
	return &DemoDevice{
		info: DeviceInfo{
			Vendor: "BenchLab", Model: "DMM-100", Version: "1.0",
			Serial: "1234", ConnectionID: "usb:1-6",
		},
		caps:     []Capability{CapMultimeter},
		channels: []*Channel{p1},
	}
}
