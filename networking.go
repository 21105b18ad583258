package benchacq

// Portnumbers holds all TCP port numbers used by benchacq.
type Portnumbers struct {
	RPC    int // JSON-RPC control server
	Status int // ZMQ PUB socket for session/config updates
	HTTP   int // Prometheus metrics and status page
}

// Ports globally holds all TCP port numbers used by benchacq.
var Ports = Portnumbers{5530, 5531, 5532}

// SetPortnumbers assigns the full port block from one base port.
func SetPortnumbers(base int) {
	Ports.RPC = base
	Ports.Status = base + 1
	Ports.HTTP = base + 2
}
