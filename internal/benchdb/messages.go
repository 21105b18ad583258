package benchdb

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// The composite types used for messages to the ClickHouse database.

// ActivityMessage is the information for the benchactivity table: one row
// per run of the benchacqd daemon.
type ActivityMessage struct {
	ID        string
	Hostname  string
	Githash   string
	Version   string
	GoVersion string
	Start     time.Time
	End       time.Time
}

// SessionMessage is the information required to make an entry in the
// sessions table: one row per device session open..close interval.
type SessionMessage struct {
	ID         string
	ActivityID string
	Vendor     string
	Model      string
	Serial     string
	DeviceType string
	Nsignals   int
	Ngroups    int
	Start      time.Time
	End        time.Time
}

// SignalMessage describes one signal of a session for the signals table.
type SignalMessage struct {
	SessionID  string
	Name       string
	Group      string
	Quantity   string
	Unit       string
	FixedQty   bool
	SharedTime bool
}

// NewID returns a fresh ULID string, the key type for all benchdb rows.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
