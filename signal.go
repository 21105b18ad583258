package benchacq

import "time"

// Signal is the typed, classified view of one driver channel: its value
// buffer plus a time buffer that is either private or the channel group's
// shared time base.
type Signal struct {
	channel      *Channel
	internalName string
	timeStart    time.Time
	data         *TimeSeriesBuffer
	timeBase     *TimeSeriesBuffer
	sharedTime   bool
}

// Name returns the driver-internal channel name, e.g. "V1".
func (s *Signal) Name() string { return s.internalName }

// Channel returns the driver channel this signal was derived from.
func (s *Signal) Channel() *Channel { return s.channel }

// TimeStart is the wall-clock time the signal was created.
func (s *Signal) TimeStart() time.Time { return s.timeStart }

// Data returns the value buffer.
func (s *Signal) Data() *TimeSeriesBuffer { return s.data }

// TimeBase returns the timestamp buffer. It may be shared with the other
// signals of the channel group; see SharesTimeBase.
func (s *Signal) TimeBase() *TimeSeriesBuffer { return s.timeBase }

// SharesTimeBase tells whether the time buffer is the group-wide shared
// time base rather than this signal's own.
func (s *Signal) SharesTimeBase() bool { return s.sharedTime }

// Quantity returns the value buffer's current quantity.
func (s *Signal) Quantity() Quantity { return s.data.Quantity() }

// Unit returns the value buffer's current unit.
func (s *Signal) Unit() Unit { return s.data.Unit() }

// FixedQuantity tells whether the quantity is pinned for the session.
func (s *Signal) FixedQuantity() bool { return s.data.FixedQuantity() }
