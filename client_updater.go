package benchacq

// Contains the client updater, which publishes JSON-encoded messages
// giving the latest benchacq state: session lifecycle transitions,
// configuration changes reported by devices, and acquisition errors.

import (
	"encoding/json"
	"fmt"

	"github.com/pebbe/zmq4"
)

// ClientUpdate carries the messages to be published on the status port.
type ClientUpdate struct {
	tag   string
	state any
}

// clientMessageChan is where the rest of the package drops updates bound
// for subscribed clients. Buffered so that publishing never blocks the
// acquisition task; if no updater is draining it, updates are shed.
var clientMessageChan = make(chan ClientUpdate, 256)

// publishUpdate queues one update for the status publisher, dropping it
// if the queue is full.
func publishUpdate(tag string, state any) {
	select {
	case clientMessageChan <- ClientUpdate{tag: tag, state: state}:
	default:
	}
}

// RunClientUpdater forwards updates to a ZMQ PUB socket as two-frame
// messages: the tag, then the JSON-encoded state. It runs until abort is
// closed.
func RunClientUpdater(portstatus int, abort <-chan struct{}) {
	hostname := fmt.Sprintf("tcp://*:%d", portstatus)
	pubSocket, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		ProblemLogger.Printf("could not create status socket: %v\n", err)
		return
	}
	defer pubSocket.Close()
	if err = pubSocket.Bind(hostname); err != nil {
		ProblemLogger.Printf("could not bind status socket to %s: %v\n", hostname, err)
		return
	}

	for {
		select {
		case <-abort:
			return
		case update := <-clientMessageChan:
			message, err := json.Marshal(update.state)
			if err != nil {
				ProblemLogger.Printf("could not encode %q update: %v\n", update.tag, err)
				continue
			}
			if _, err := pubSocket.SendMessage(update.tag, message); err != nil {
				ProblemLogger.Printf("could not publish %q update: %v\n", update.tag, err)
			}
			UpdateLogger.Printf("%s %s\n", update.tag, message)
		}
	}
}
