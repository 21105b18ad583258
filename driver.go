package benchacq

import "time"

// This file defines the boundary to the hardware-abstraction driver. The
// driver enumerates instruments, opens them, and delivers packets; benchacq
// consumes that boundary and never reaches below it.

// Capability is a driver capability key reported for a device. The device
// type is derived from which of these keys the driver advertises.
type Capability int

// The capability keys benchacq recognizes.
const (
	CapPowerSupply Capability = iota + 1
	CapElectronicLoad
	CapMultimeter
	CapDemoDev
)

// ChannelKind distinguishes the raw data a channel carries.
type ChannelKind int

// Channel kinds. Logic channels are reported by some drivers but are not
// supported here; they are skipped during signal creation.
const (
	AnalogChannel ChannelKind = iota
	LogicChannel
)

// Channel is the driver-level handle for one raw data source on a device.
// Channels are compared by identity: the driver must hand out one *Channel
// per physical channel and reuse it in every packet.
type Channel struct {
	Name  string // driver-internal short name, e.g. "V1", "I1", "P1"
	Kind  ChannelKind
	Index int
}

// ChannelGroup is a named, device-defined set of channels that are
// configured and reported together (e.g. one output of a multi-channel
// supply).
type ChannelGroup struct {
	Name         string
	Channels     []*Channel
	Controllable bool // whether the group accepts set-requests
}

// DeviceInfo holds the identity fields of one instrument.
type DeviceInfo struct {
	Vendor       string
	Model        string
	Version      string
	Serial       string
	ConnectionID string
}

// ChannelSamples is one channel's batch of values within a frame.
type ChannelSamples struct {
	Channel *Channel
	Values  []float64
}

// DataPacket carries one frame: a batch of synchronously sampled values
// per channel, stamped once for the whole frame.
type DataPacket struct {
	Timestamp time.Time
	Samples   []ChannelSamples
}

// MetaPacket carries device-originated configuration values.
type MetaPacket struct {
	Entries []MetaEntry
}

// MetaEntry is one (key, value) pair in a metadata packet. Value holds a
// bool or a float64 depending on the key; entries with keys or value types
// benchacq does not recognize are ignored.
type MetaEntry struct {
	Key   ConfigKey
	Value any
}

// Packet is either a *DataPacket or a *MetaPacket.
type Packet interface {
	isPacket()
}

func (*DataPacket) isPacket() {}
func (*MetaPacket) isPacket() {}

// DatafeedCallback receives every packet the driver session delivers. The
// driver invokes it synchronously from within its run loop.
type DatafeedCallback func(device DriverDevice, packet Packet)

// DriverDevice is the driver's handle for one physical instrument.
type DriverDevice interface {
	Open() error
	Close() error
	Info() DeviceInfo
	Capabilities() []Capability
	Channels() []*Channel
	ChannelGroups() []*ChannelGroup
}

// DriverSession is the driver's acquisition session object. A session can
// carry multiple devices; Run blocks until Stop is called or the driver
// decides the acquisition is complete.
type DriverSession interface {
	AddDevice(DriverDevice) error
	RemoveDevice(DriverDevice) error
	Start() error
	Stop() error
	Run() error
	AddDatafeedCallback(DatafeedCallback)
	RemoveDatafeedCallbacks()
}
