package radio

import "context"

// Device is a peer found during a scan.
type Device struct {
	ID   string
	Name string
	RSSI int
}

// ConnState is the radio connection lifecycle. Any unexpected disconnect
// returns to Disconnected; reconnection is the coordinator's call, never the
// transport's.
type ConnState int

const (
	Disconnected ConnState = iota
	Scanning
	Connecting
	ServiceDiscovery
	Ready
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Scanning:
		return "scanning"
	case Connecting:
		return "connecting"
	case ServiceDiscovery:
		return "service_discovery"
	case Ready:
		return "ready"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// LinkEvent is published by the physical link when its connection changes
// outside of a client-initiated call.
type LinkEvent struct {
	State ConnState
	Err   error
}

// Link abstracts the physical radio stack (pairing and service discovery
// mechanics live behind it). The data channel is MTU-capped per write; the
// state channel holds one small unfragmented value.
type Link interface {
	Scan(ctx context.Context) ([]Device, error)
	Connect(ctx context.Context, dev Device) error
	Disconnect() error

	// Data channel, one frame per call.
	WriteFrame(ctx context.Context, frame []byte) error
	ReadFrame(ctx context.Context) ([]byte, error)

	// State channel, unfragmented.
	ReadState(ctx context.Context) ([]byte, error)
	WriteState(ctx context.Context, data []byte) error

	// Events delivers unsolicited connection transitions, e.g. peer drops.
	Events() <-chan LinkEvent
}
