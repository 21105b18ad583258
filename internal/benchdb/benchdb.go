// Package benchdb records benchacq activity in a ClickHouse database:
// daemon runs, device sessions, and the signal inventory of each session.
// The database is optional; when no server is reachable, the connection
// object degrades to a disconnected no-op recorder.
package benchdb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Connection wraps one ClickHouse connection plus the message channels
// that serialize inserts through a single handler goroutine.
type Connection struct {
	conn          clickhouse.Conn
	err           error
	activityEntry *ActivityMessage
	sessionmsg    chan *SessionMessage
	signalmsg     chan *SignalMessage
	sync.WaitGroup
}

const databaseName = "benchacq" // official SQL name of the database

// IsConnected tells whether the connection is usable.
func (db *Connection) IsConnected() bool {
	return (db != nil) && (db.conn != nil) && (db.err == nil)
}

// PingServer checks that a ClickHouse server is reachable with the
// configured credentials.
func PingServer(addr string) error {
	db := createConnection(addr)
	if !db.IsConnected() {
		return fmt.Errorf("database is not connected: %w", db.err)
	}
	v, err := db.conn.ServerVersion()
	if err != nil {
		return err
	}
	fmt.Printf("ClickHouse server is alive. Version:\n%s\n", v)
	return db.conn.Close()
}

// StartConnection opens the database, records the activity row, and
// launches the handler goroutine. It never fails: an unreachable server
// yields a disconnected Connection whose recorders are no-ops.
func StartConnection(addr string, activity *ActivityMessage, abort <-chan struct{}) *Connection {
	db := createConnection(addr)
	db.activityEntry = activity
	db.logActivity()
	go db.handleConnection(abort)
	return db
}

// DummyConnection returns a disconnected no-op Connection, for use when
// recording is disabled by configuration.
func DummyConnection() *Connection {
	db := &Connection{}
	db.Add(1)
	return db
}

func createConnection(addr string) *Connection {
	db := &Connection{}
	auth := clickhouse.Auth{
		Database: databaseName,
		Username: os.Getenv("BENCHACQ_DB_USER"),
		Password: os.Getenv("BENCHACQ_DB_PASSWORD"),
	}
	client := clickhouse.ClientInfo{
		Products: []struct {
			Name    string
			Version string
		}{
			{Name: "benchacq", Version: "unknown"},
		},
	}
	opt := clickhouse.Options{
		Addr:       []string{addr},
		Auth:       auth,
		ClientInfo: client,
		TLS:        nil,
	}
	ctx := context.Background()
	conn, err := clickhouse.Open(&opt)
	if err != nil {
		db.err = err
		return db
	}
	db.conn = conn
	db.Add(1)

	if err = conn.Ping(ctx); err != nil {
		if exception, ok := err.(*clickhouse.Exception); ok {
			fmt.Printf("Exception [%d] %s \n%s\n", exception.Code, exception.Message, exception.StackTrace)
		}
		db.err = err
		return db
	}

	db.sessionmsg = make(chan *SessionMessage)
	db.signalmsg = make(chan *SignalMessage)
	return db
}

func (db *Connection) logActivity() {
	if !db.IsConnected() {
		return
	}
	ctx := context.Background()
	const nowait = false
	ae := db.activityEntry
	formattedStart := ae.Start.Format("2006-01-02 15:04:05.000000")
	formattedEnd := ae.End.Format("2006-01-02 15:04:05.000000")
	if err := db.conn.AsyncInsert(ctx, `INSERT INTO benchactivity VALUES (?, ?, ?, ?, ?, ?, ?)`, nowait,
		ae.ID, ae.Hostname, ae.Githash, ae.Version, ae.GoVersion,
		formattedStart, formattedEnd,
	); err != nil {
		fmt.Println("Error raised on AsyncInsert into benchactivity ", err)
		db.err = err
	}
}

func (db *Connection) handleConnection(abort <-chan struct{}) {
	defer db.Done()
	for {
		select {
		case <-abort:
			db.Disconnect()
			return
		case smsg := <-db.sessionmsg:
			db.handleSessionMessage(smsg)
		case gmsg := <-db.signalmsg:
			db.handleSignalMessage(gmsg)
		}
	}
}

// Disconnect finalizes the activity row with the end time.
func (db *Connection) Disconnect() {
	if db.IsConnected() {
		db.activityEntry.End = time.Now()
		db.logActivity()
	}
}

// RecordSession takes a SessionMessage and stores it in the DB (if it's
// open). This function will block until the select statement in
// handleConnection accepts the message.
// WARNING: Don't change this blocking behavior! It is how we ensure that
// a session is entered in the DB before any corresponding calls to
// RecordSignal begin. Without the blocking, there would be a race between
// the 2 kinds of DB entries, and some signals would be entered without
// valid session IDs.
func (db *Connection) RecordSession(msg *SessionMessage) {
	if !db.IsConnected() || msg == nil {
		return
	}
	db.sessionmsg <- msg
}

// FinishSession re-records the session row with its end time.
func (db *Connection) FinishSession(msg *SessionMessage) {
	if !db.IsConnected() || msg == nil {
		return
	}
	msg.End = time.Now()
	go func() { db.sessionmsg <- msg }()
}

// RecordSignal stores one signal-inventory row.
func (db *Connection) RecordSignal(msg *SignalMessage) {
	if !db.IsConnected() || msg == nil {
		return
	}
	go func() { db.signalmsg <- msg }()
}

func (db *Connection) handleSessionMessage(m *SessionMessage) {
	if !db.IsConnected() {
		return
	}
	ctx := context.Background()
	const nowait = false
	formattedStart := m.Start.Format("2006-01-02 15:04:05.000000")
	formattedEnd := m.End.Format("2006-01-02 15:04:05.000000")
	if err := db.conn.AsyncInsert(ctx, `INSERT INTO sessions VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, nowait,
		m.ID, db.activityEntry.ID, m.Vendor, m.Model, m.Serial, m.DeviceType,
		m.Nsignals, m.Ngroups, formattedStart, formattedEnd,
	); err != nil {
		fmt.Println("Error raised on AsyncInsert into sessions ", err)
		db.err = err
	}
}

func (db *Connection) handleSignalMessage(m *SignalMessage) {
	if !db.IsConnected() {
		return
	}
	ctx := context.Background()
	const nowait = false
	if err := db.conn.AsyncInsert(ctx, `INSERT INTO signals VALUES (?, ?, ?, ?, ?, ?, ?)`, nowait,
		m.SessionID, m.Name, m.Group, m.Quantity, m.Unit, m.FixedQty, m.SharedTime,
	); err != nil {
		fmt.Println("Error raised on AsyncInsert into signals ", err)
		db.err = err
	}
}
