// Package transport defines the capability set shared by the two batch
// transports (local HTTP server and direct radio link) and the typed error
// taxonomy the coordinator relies on. Transports are stateless with respect
// to sync watermarks; they carry data and never decide what "since" means.
package transport

import (
	"context"
	"time"

	"github.com/openwearables/pulse/internal/record"
)

// Transport is the common capability set both clients implement.
type Transport interface {
	// Name identifies the subsystem in logs and error messages.
	Name() string
	// TestReachable probes the remote side without transferring data.
	TestReachable(ctx context.Context) bool
	// Fetch returns the remote batch of records newer than since.
	Fetch(ctx context.Context, since time.Time) (record.Batch, error)
	// Send uploads a locally pending batch.
	Send(ctx context.Context, batch record.Batch) error
}

// Status is the transport the coordinator currently considers usable. Not
// persisted; recomputed from the live connection flags of the two clients.
type Status int

const (
	StatusOffline Status = iota
	StatusLocalServer
	StatusRadio
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLocalServer:
		return "local_server"
	case StatusRadio:
		return "radio"
	case StatusError:
		return "error"
	default:
		return "offline"
	}
}
