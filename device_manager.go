package benchacq

import "sync"

// DeviceManager tracks the sessions for all currently known devices. The
// engine queries it only to disambiguate display names; enumeration and
// discovery live with the driver.
type DeviceManager struct {
	mu       sync.Mutex
	sessions []*DeviceSession
}

// NewDeviceManager returns an empty manager.
func NewDeviceManager() *DeviceManager {
	return &DeviceManager{}
}

// Add registers a session with the manager.
func (dm *DeviceManager) Add(ds *DeviceSession) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.sessions = append(dm.sessions, ds)
}

// Remove forgets a session. Removing an unknown session is a no-op.
func (dm *DeviceManager) Remove(ds *DeviceSession) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for i, s := range dm.sessions {
		if s == ds {
			dm.sessions = append(dm.sessions[:i], dm.sessions[i+1:]...)
			return
		}
	}
}

// Devices returns a snapshot of the currently known sessions.
func (dm *DeviceManager) Devices() []*DeviceSession {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	out := make([]*DeviceSession, len(dm.sessions))
	copy(out, dm.sessions)
	return out
}

// FindByShortName returns the first session whose short name matches, or
// nil.
func (dm *DeviceManager) FindByShortName(name string) *DeviceSession {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, s := range dm.sessions {
		if s.ShortName() == name {
			return s
		}
	}
	return nil
}

// CloseAll closes every open session.
func (dm *DeviceManager) CloseAll() {
	for _, s := range dm.Devices() {
		s.Close()
	}
}
