package benchacq

import (
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"
	"time"

	"github.com/benchlab/benchacq/internal/benchdb"
)

// SessionControl is the sub-server that handles opening, closing and
// inspecting device sessions over JSON-RPC.
type SessionControl struct {
	manager  *DeviceManager
	recorder *benchdb.Connection

	mu          sync.Mutex
	openRecords map[*DeviceSession]*benchdb.SessionMessage
}

// NewSessionControl builds the control server for a device manager. The
// recorder may be a benchdb.DummyConnection when recording is disabled.
func NewSessionControl(manager *DeviceManager, recorder *benchdb.Connection) *SessionControl {
	return &SessionControl{
		manager:     manager,
		recorder:    recorder,
		openRecords: make(map[*DeviceSession]*benchdb.SessionMessage),
	}
}

// ServerStatus is the status that SessionControl reports to clients.
type ServerStatus struct {
	Devices []SessionStatus
}

// SignalInfo describes one signal for RPC clients.
type SignalInfo struct {
	Name       string
	Group      string
	Quantity   string
	Unit       string
	FixedQty   bool
	SharedTime bool
	Samples    int
}

// OpenDevice opens the session whose short name matches. Asynchronous
// acquisition failures are published to status subscribers with the
// "ERROR" tag.
func (sc *SessionControl) OpenDevice(name *string, reply *bool) error {
	ds := sc.manager.FindByShortName(*name)
	if ds == nil {
		return fmt.Errorf("no device with short name %q", *name)
	}
	onError := func(msg string) {
		ProblemLogger.Printf("%s: %s\n", ds.ShortName(), msg)
		publishUpdate("ERROR", struct {
			Device  string
			Message string
		}{ds.ShortName(), msg})
	}
	if err := ds.Open(onError); err != nil {
		return err
	}
	sc.recordOpen(ds)
	*reply = true
	return nil
}

// CloseDevice closes the named session. Closing a session that is not
// open is not an error.
func (sc *SessionControl) CloseDevice(name *string, reply *bool) error {
	ds := sc.manager.FindByShortName(*name)
	if ds == nil {
		return fmt.Errorf("no device with short name %q", *name)
	}
	ds.Close()
	sc.recordClose(ds)
	*reply = true
	return nil
}

// Status reports a snapshot of every known session.
func (sc *SessionControl) Status(dummy *string, reply *ServerStatus) error {
	var st ServerStatus
	for _, ds := range sc.manager.Devices() {
		st.Devices = append(st.Devices, ds.statusUpdate())
	}
	*reply = st
	return nil
}

// SignalInventory lists the signals of the named session, grouped by
// channel group in group order.
func (sc *SessionControl) SignalInventory(name *string, reply *[]SignalInfo) error {
	ds := sc.manager.FindByShortName(*name)
	if ds == nil {
		return fmt.Errorf("no device with short name %q", *name)
	}
	*reply = signalInventory(ds)
	return nil
}

// SendAllStatus causes a broadcast to clients containing all
// broadcastable status info.
func (sc *SessionControl) SendAllStatus(dummy *string, reply *bool) error {
	for _, ds := range sc.manager.Devices() {
		publishUpdate("SESSION", ds.statusUpdate())
	}
	*reply = true
	return nil
}

func signalInventory(ds *DeviceSession) []SignalInfo {
	var infos []SignalInfo
	for _, group := range ds.groupNames {
		for _, sig := range ds.groupSignals[group] {
			infos = append(infos, SignalInfo{
				Name:       sig.Name(),
				Group:      group,
				Quantity:   sig.Quantity().String(),
				Unit:       sig.Unit().String(),
				FixedQty:   sig.FixedQuantity(),
				SharedTime: sig.SharesTimeBase(),
				Samples:    sig.Data().Len(),
			})
		}
	}
	return infos
}

func (sc *SessionControl) recordOpen(ds *DeviceSession) {
	info := ds.Device().Info()
	msg := &benchdb.SessionMessage{
		ID:         benchdb.NewID(),
		Vendor:     info.Vendor,
		Model:      info.Model,
		Serial:     info.Serial,
		DeviceType: ds.Type().String(),
		Nsignals:   len(ds.AllSignals()),
		Ngroups:    len(ds.Configurables()),
		Start:      time.Now(),
	}
	sc.recorder.RecordSession(msg)
	for _, si := range signalInventory(ds) {
		sc.recorder.RecordSignal(&benchdb.SignalMessage{
			SessionID:  msg.ID,
			Name:       si.Name,
			Group:      si.Group,
			Quantity:   si.Quantity,
			Unit:       si.Unit,
			FixedQty:   si.FixedQty,
			SharedTime: si.SharedTime,
		})
	}
	sc.mu.Lock()
	sc.openRecords[ds] = msg
	sc.mu.Unlock()
}

func (sc *SessionControl) recordClose(ds *DeviceSession) {
	sc.mu.Lock()
	msg := sc.openRecords[ds]
	delete(sc.openRecords, ds)
	sc.mu.Unlock()
	sc.recorder.FinishSession(msg)
}

// RunRPCServer sets up and runs a permanent JSON-RPC server on portrpc.
func RunRPCServer(sc *SessionControl, portrpc int) {
	server := rpc.NewServer()
	if err := server.Register(sc); err != nil {
		ProblemLogger.Fatal("RPC register error: ", err)
	}
	server.HandleHTTP(rpc.DefaultRPCPath, rpc.DefaultDebugPath)
	port := fmt.Sprintf(":%d", portrpc)
	listener, err := net.Listen("tcp", port)
	if err != nil {
		ProblemLogger.Fatal("listen error: ", err)
	}
	for {
		conn, err := listener.Accept()
		if err != nil {
			ProblemLogger.Fatal("accept error: " + err.Error())
		}
		UpdateLogger.Printf("new RPC connection established\n")
		go server.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}
