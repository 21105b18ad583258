package benchacq

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
)

// AcquisitionState is the sampling state of an open session.
type AcquisitionState int

// Names for the possible values of AcquisitionState.
const (
	Stopped AcquisitionState = iota
	Running
)

// DeviceSession owns the signals and configurables of one instrument and
// drives its open/close/acquire lifecycle. Channel classification happens
// once, in NewDeviceSession; Open spawns the acquisition goroutine that
// demultiplexes driver packets into the signal buffers.
type DeviceSession struct {
	device     DriverDevice
	drvSession DriverSession
	devType    DeviceType

	signals        []*Signal
	signalsByName  map[string]*Signal
	channelSignals map[*Channel]*Signal
	groupSignals   map[string][]*Signal
	groupNames     []string
	configurables  []*Configurable
	commonTime     *TimeSeriesBuffer // non-nil only for shared-clock device types

	voltageSignal     *Signal
	currentSignal     *Signal
	measurementSignal *Signal

	lifecycleLock sync.Mutex // serializes Open and Close
	stateLock     sync.Mutex // guards open, acqState and outOfMemory
	open          bool
	acqState      AcquisitionState
	outOfMemory   bool
	runDone       sync.WaitGroup
}

// NewDeviceSession classifies the device's channels into signals and its
// channel groups into configurables. It fails on devices whose capability
// keys match no known instrument type: an unclassifiable device must never
// silently become a signal source.
func NewDeviceSession(drvSession DriverSession, device DriverDevice) (*DeviceSession, error) {
	policy, err := classifyDevice(device.Capabilities())
	if err != nil {
		return nil, fmt.Errorf("cannot create session for %s %s: %w",
			device.Info().Vendor, device.Info().Model, err)
	}

	ds := &DeviceSession{
		device:         device,
		drvSession:     drvSession,
		devType:        policy.devType,
		signalsByName:  make(map[string]*Signal),
		channelSignals: make(map[*Channel]*Signal),
		groupSignals:   make(map[string][]*Signal),
	}

	// When multiple channels sample within one frame on a common clock,
	// they share one time base. The choice is per device type and fixed
	// for the life of the session.
	if policy.sharedTimeBase {
		ds.commonTime = newTimeBase()
	}

	for _, ch := range device.Channels() {
		ds.initSignal(ch, policy)
	}

	groups := device.ChannelGroups()
	for _, g := range groups {
		ds.configurables = append(ds.configurables, newConfigurable(g.Name, g.Controllable))
		var sigs []*Signal
		for _, ch := range g.Channels {
			// Channels without a signal (e.g. logic channels) are
			// excluded from the group's signal list.
			if sig, ok := ds.channelSignals[ch]; ok {
				sigs = append(sigs, sig)
			}
		}
		ds.groupSignals[g.Name] = sigs
		ds.groupNames = append(ds.groupNames, g.Name)
	}
	if len(groups) == 0 {
		// A device reporting no groups gets one implicit configurable
		// covering every channel.
		name := device.Info().Model
		ds.configurables = append(ds.configurables, newConfigurable(name, true))
		ds.groupSignals[name] = append([]*Signal{}, ds.signals...)
		ds.groupNames = append(ds.groupNames, name)
	}
	return ds, nil
}

// initSignal creates the Signal for one analog channel: value buffer
// classified by the channel-name convention, time buffer either shared or
// private. Logic channels are not supported and are skipped.
func (ds *DeviceSession) initSignal(ch *Channel, policy devicePolicy) *Signal {
	if ch.Kind != AnalogChannel {
		return nil
	}

	q, u, classified := classifyChannelName(ch.Name)
	data := NewTimeSeriesBuffer(NoQuantity, NoUnit, policy.fixedQuantity)
	if classified {
		data.quantity = q
		data.unit = u
	}
	// "P1" stays unclassified: the convention recognizes it as the
	// meter's measurement channel but does not yet wire a quantity.

	sig := &Signal{
		channel:      ch,
		internalName: ch.Name,
		timeStart:    time.Now(),
		data:         data,
	}
	if ds.commonTime != nil {
		sig.timeBase = ds.commonTime
		sig.sharedTime = true
	} else {
		sig.timeBase = newTimeBase()
	}

	ds.signals = append(ds.signals, sig)
	ds.signalsByName[sig.internalName] = sig
	ds.channelSignals[ch] = sig

	// First-seen wins for the canonical signals.
	switch {
	case strings.HasPrefix(ch.Name, "V") && ds.voltageSignal == nil:
		ds.voltageSignal = sig
	case strings.HasPrefix(ch.Name, "I") && ds.currentSignal == nil:
		ds.currentSignal = sig
	case (ch.Name == "P1" || ch.Name == "A1") && ds.measurementSignal == nil:
		ds.measurementSignal = sig
	}
	return sig
}

// Type returns the classified device type.
func (ds *DeviceSession) Type() DeviceType { return ds.devType }

// Device returns the underlying driver handle.
func (ds *DeviceSession) Device() DriverDevice { return ds.device }

// AllSignals returns the session's signals in channel order.
func (ds *DeviceSession) AllSignals() []*Signal { return ds.signals }

// SignalByName returns the signal with the given driver-internal name.
func (ds *DeviceSession) SignalByName(name string) *Signal {
	return ds.signalsByName[name]
}

// VoltageSignal returns the first voltage signal created, or nil if the
// device exposes none.
func (ds *DeviceSession) VoltageSignal() *Signal { return ds.voltageSignal }

// CurrentSignal returns the first current signal created, or nil.
func (ds *DeviceSession) CurrentSignal() *Signal { return ds.currentSignal }

// MeasurementSignal returns the meter's measurement signal ("P1" or "A1"),
// or nil.
func (ds *DeviceSession) MeasurementSignal() *Signal { return ds.measurementSignal }

// ChannelGroupSignals maps each channel group name to its ordered signals.
func (ds *DeviceSession) ChannelGroupSignals() map[string][]*Signal {
	out := make(map[string][]*Signal, len(ds.groupSignals))
	for name, sigs := range ds.groupSignals {
		out[name] = sigs
	}
	return out
}

// Configurables returns the session's configurables. Index 0 is the
// implicit target for metadata packets.
func (ds *DeviceSession) Configurables() []*Configurable { return ds.configurables }

// CommonTimeBase returns the shared time buffer, or nil for device types
// whose channels have independent clocks.
func (ds *DeviceSession) CommonTimeBase() *TimeSeriesBuffer { return ds.commonTime }

// SetSampleLimit caps every buffer of the session at n samples (0 removes
// the cap). Appending past the cap flags the out-of-memory condition.
func (ds *DeviceSession) SetSampleLimit(n int) {
	if ds.commonTime != nil {
		ds.commonTime.setSampleLimit(n)
	}
	for _, sig := range ds.signals {
		sig.data.setSampleLimit(n)
		if !sig.sharedTime {
			sig.timeBase.setSampleLimit(n)
		}
	}
}

// IsOpen tells whether the session currently holds the driver handle open.
func (ds *DeviceSession) IsOpen() bool {
	ds.stateLock.Lock()
	defer ds.stateLock.Unlock()
	return ds.open
}

// State returns the acquisition state in a race-free fashion.
func (ds *DeviceSession) State() AcquisitionState {
	ds.stateLock.Lock()
	defer ds.stateLock.Unlock()
	return ds.acqState
}

func (ds *DeviceSession) setState(s AcquisitionState) {
	ds.stateLock.Lock()
	ds.acqState = s
	ds.stateLock.Unlock()
}

// Open opens the driver handle and starts acquisition. A driver failure
// while opening propagates synchronously to the caller; failures after
// that point are asynchronous and reported through errorHandler, always
// after the acquisition task has reached the Stopped state. Calling Open
// on an open session closes it first.
func (ds *DeviceSession) Open(errorHandler func(msg string)) error {
	if errorHandler == nil {
		return fmt.Errorf("Open requires a non-nil error handler")
	}
	ds.lifecycleLock.Lock()
	defer ds.lifecycleLock.Unlock()
	if ds.IsOpen() {
		ds.closeLocked()
	}

	if err := ds.device.Open(); err != nil {
		return fmt.Errorf("cannot open %s: %w", ds.ShortName(), err)
	}

	if err := ds.drvSession.AddDevice(ds.device); err != nil {
		ds.device.Close()
		return fmt.Errorf("cannot add %s to driver session: %w", ds.ShortName(), err)
	}
	ds.drvSession.AddDatafeedCallback(ds.dataFeedIn)

	ds.stateLock.Lock()
	ds.open = true
	ds.outOfMemory = false
	ds.stateLock.Unlock()

	if verbosity > 1 {
		UpdateLogger.Println(spew.Sdump(ds.signalsByName))
	}
	UpdateLogger.Printf("opened %s (%s) with %d signals in %d groups\n",
		ds.ShortName(), ds.devType, len(ds.signals), len(ds.configurables))

	ds.setState(Running)
	ds.runDone.Add(1)
	go ds.acquisitionLoop(errorHandler)
	metricOpenSessions.Inc()
	publishUpdate("SESSION", ds.statusUpdate())
	return nil
}

// Close stops acquisition, waits for the acquisition task to terminate,
// and tears down the driver session. It is idempotent, safe to call from
// a different goroutine than Open, and a no-op on a never-opened session.
func (ds *DeviceSession) Close() {
	ds.lifecycleLock.Lock()
	defer ds.lifecycleLock.Unlock()
	ds.closeLocked()
}

func (ds *DeviceSession) closeLocked() {
	if !ds.IsOpen() {
		return
	}
	ds.drvSession.RemoveDatafeedCallbacks()
	if ds.State() != Stopped {
		if err := ds.drvSession.Stop(); err != nil {
			ProblemLogger.Printf("driver stop for %s: %v\n", ds.ShortName(), err)
		}
		ds.setState(Stopped)
	}

	// Block until the acquisition task has fully terminated. A hung
	// driver stop hangs here; there is no internal timeout.
	ds.runDone.Wait()

	if err := ds.drvSession.RemoveDevice(ds.device); err != nil {
		ProblemLogger.Printf("driver remove-device for %s: %v\n", ds.ShortName(), err)
	}
	if err := ds.device.Close(); err != nil {
		ProblemLogger.Printf("driver close for %s: %v\n", ds.ShortName(), err)
	}
	ds.stateLock.Lock()
	ds.open = false
	ds.stateLock.Unlock()
	metricOpenSessions.Dec()
	UpdateLogger.Printf("closed %s\n", ds.ShortName())
	publishUpdate("SESSION", ds.statusUpdate())
}

// acquisitionLoop is the body of the acquisition task. Driver errors here
// are asynchronous by definition: they go to errorHandler, never across
// the goroutine boundary, and only once the state is Stopped.
func (ds *DeviceSession) acquisitionLoop(errorHandler func(msg string)) {
	defer ds.runDone.Done()

	if err := ds.drvSession.Start(); err != nil {
		ds.setState(Stopped)
		errorHandler(fmt.Sprintf("cannot start acquisition on %s: %v", ds.ShortName(), err))
		return
	}
	ds.setState(Running)

	// Run blocks until Close requests a stop or the driver decides the
	// acquisition is complete. Packets arrive synchronously via
	// dataFeedIn from inside this call.
	runErr := ds.drvSession.Run()
	ds.setState(Stopped)
	if runErr != nil {
		errorHandler(fmt.Sprintf("acquisition on %s failed: %v", ds.ShortName(), runErr))
		return
	}

	// The out-of-memory condition is surfaced exactly once, and only
	// after the task has fully stopped, never from the packet callback.
	ds.stateLock.Lock()
	oom := ds.outOfMemory
	ds.stateLock.Unlock()
	if oom {
		errorHandler("Out of memory, acquisition stopped.")
	}
}

func (ds *DeviceSession) flagOutOfMemory() {
	ds.stateLock.Lock()
	ds.outOfMemory = true
	ds.stateLock.Unlock()
}

// dataFeedIn is the packet callback registered with the driver session.
// It routes packets for this session's device and ignores the rest.
func (ds *DeviceSession) dataFeedIn(device DriverDevice, packet Packet) {
	if device != ds.device {
		return
	}
	switch p := packet.(type) {
	case *DataPacket:
		ds.feedInData(p)
	case *MetaPacket:
		ds.feedInMeta(p)
	}
}

// feedInData demultiplexes one frame into the signal buffers. The frame's
// timestamp goes to each signal's own time buffer, or at most once to the
// shared time base regardless of how many signals share it. An append
// failure flags the out-of-memory condition and aborts the packet.
func (ds *DeviceSession) feedInData(p *DataPacket) {
	ts := float64(p.Timestamp.UnixNano()) / 1e9
	sharedAppended := false
	for _, cs := range p.Samples {
		sig, ok := ds.channelSignals[cs.Channel]
		if !ok {
			continue
		}
		for _, v := range cs.Values {
			if err := sig.data.Append(v); err != nil {
				ds.flagOutOfMemory()
				return
			}
			metricSamplesAppended.Inc()
		}
		if sig.sharedTime {
			if !sharedAppended {
				if err := sig.timeBase.Append(ts); err != nil {
					ds.flagOutOfMemory()
					return
				}
				sharedAppended = true
			}
		} else if err := sig.timeBase.Append(ts); err != nil {
			ds.flagOutOfMemory()
			return
		}
	}
	metricPacketsDemuxed.Inc()
}

// feedInMeta decodes a metadata packet against the fixed key table and
// applies each recognized entry to the first configurable.
//
// Known limitation: the driver does not say which channel group a meta
// packet originated from, so every packet is applied to configurables[0].
// That is wrong for multi-group devices; preserved deliberately until the
// protocol carries the group.
func (ds *DeviceSession) feedInMeta(p *MetaPacket) {
	if len(ds.configurables) == 0 {
		return
	}
	c := ds.configurables[0]
	for _, entry := range p.Entries {
		switch entry.Key {
		case KeyEnabled, KeyOTPEnabled, KeyOTPActive, KeyOVPEnabled, KeyOVPActive,
			KeyOCPEnabled, KeyOCPActive, KeyUVCEnabled, KeyUVCActive:
			if v, ok := entry.Value.(bool); ok {
				c.applyBool(entry.Key, v)
				metricMetaDecoded.Inc()
			}
		case KeyVoltageTarget, KeyCurrentLimit, KeyOVPThreshold, KeyOCPThreshold:
			if v, ok := entry.Value.(float64); ok {
				c.applyFloat(entry.Key, v)
				metricMetaDecoded.Inc()
			}
		default:
			// Unknown metadata is not an error.
			metricMetaIgnored.Inc()
		}
	}
}

// FullName concatenates all non-empty identity fields with spaces, the
// connection id parenthesized.
func (ds *DeviceSession) FullName() string {
	info := ds.device.Info()
	return joinIdentity(info.Vendor, info.Model, info.Version, info.Serial, info.ConnectionID)
}

// ShortName is FullName without version and serial number.
func (ds *DeviceSession) ShortName() string {
	info := ds.device.Info()
	return joinIdentity(info.Vendor, info.Model, "", "", info.ConnectionID)
}

func joinIdentity(vendor, model, version, serial, connectionID string) string {
	var parts []string
	for _, p := range []string{vendor, model, version, serial} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if connectionID != "" {
		parts = append(parts, "("+connectionID+")")
	}
	return strings.Join(parts, " ")
}

// DisplayName returns vendor and model, extended with version, serial and
// possibly connection id when the device manager knows another device of
// the same vendor and model that must be told apart.
func (ds *DeviceSession) DisplayName(dm *DeviceManager) string {
	info := ds.device.Info()
	multiple := false
	if dm != nil {
		for _, other := range dm.Devices() {
			if other == ds {
				continue
			}
			oinfo := other.device.Info()
			if oinfo.Vendor == info.Vendor && oinfo.Model == info.Model {
				multiple = true
				break
			}
		}
	}

	parts := []string{}
	for _, p := range []string{info.Vendor, info.Model} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if multiple {
		if info.Version != "" {
			parts = append(parts, info.Version)
		}
		if info.Serial != "" {
			parts = append(parts, info.Serial)
		} else if info.ConnectionID != "" {
			parts = append(parts, "("+info.ConnectionID+")")
		}
	}
	return strings.Join(parts, " ")
}

// SessionStatus is the JSON-serializable snapshot published to clients.
type SessionStatus struct {
	Name    string
	Type    string
	Open    bool
	Running bool
	Signals int
	Groups  int
}

func (ds *DeviceSession) statusUpdate() SessionStatus {
	return SessionStatus{
		Name:    ds.ShortName(),
		Type:    ds.devType.String(),
		Open:    ds.IsOpen(),
		Running: ds.State() == Running,
		Signals: len(ds.signals),
		Groups:  len(ds.configurables),
	}
}
