// Package coordinator implements the hybrid transport sync coordinator: the
// single authority for what data is missing, where it comes from, and where
// it goes.
package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openwearables/pulse/internal/config"
	"github.com/openwearables/pulse/internal/sink"
	"github.com/openwearables/pulse/internal/syncstate"
	"github.com/openwearables/pulse/internal/transport"
	"github.com/openwearables/pulse/internal/transport/radio"
)

// LocalTransport is the capability set the coordinator needs from the local
// HTTP server client.
type LocalTransport interface {
	transport.Transport
	Alive() bool
	UpdateAddress(host string, port int)
	Discover(ctx context.Context, candidates []string) []string
}

// RadioTransport is the capability set the coordinator needs from the radio
// link client.
type RadioTransport interface {
	transport.Transport
	Connected() bool
	LastError() error
	Scan(ctx context.Context) ([]radio.Device, error)
	Connect(ctx context.Context, dev radio.Device) error
	PeerState(ctx context.Context) (*syncstate.SyncState, error)
	PushState(ctx context.Context, state *syncstate.SyncState) error
}

// Status is a point-in-time snapshot of coordinator state for callers and
// UIs. ErrMessage holds the last cycle's failure, prefixed by the subsystem
// that produced it, and is overwritten each cycle.
type Status struct {
	Transport  transport.Status
	Syncing    bool
	Progress   float64
	LastSync   time.Time
	ErrMessage string
}

// Coordinator owns the single mutable SyncState and drives the
// fetch/process/upload sequence over whichever transport is available.
type Coordinator struct {
	Local   LocalTransport
	Radio   RadioTransport
	Adapter *sink.Adapter
	Store   syncstate.Store
	Outbox  Outbox

	Intervals *config.IntervalConfig

	Ctx    context.Context
	Cancel context.CancelFunc
	Wg     sync.WaitGroup

	// mu guards state and the status fields below. syncRunning is the
	// re-entrancy guard; it is checked-and-set before any blocking call so
	// two cycles can never interleave.
	mu          sync.Mutex
	syncRunning atomic.Bool

	state      *syncstate.SyncState
	progress   float64
	errMessage string
	lastSync   time.Time

	notify chan Status
}

// New loads the persisted sync state and wires the coordinator. On first run
// the state carries epoch watermarks, so everything remote counts as new.
func New(
	cfg *config.SyncEnvConfig,
	local LocalTransport,
	radioLink RadioTransport,
	adapter *sink.Adapter,
	store syncstate.Store,
	outbox Outbox,
) (*Coordinator, error) {
	state, err := store.Load(context.Background())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		Local:     local,
		Radio:     radioLink,
		Adapter:   adapter,
		Store:     store,
		Outbox:    outbox,
		Intervals: config.NewIntervalConfig(cfg.Environment),
		Ctx:       ctx,
		Cancel:    cancel,
		state:     state,
		notify:    make(chan Status, 8),
	}, nil
}

// runTicker runs fn periodically until the provided context is canceled. fn
// runs in its own goroutine so the loop exits promptly on cancel; the
// re-entrancy guard makes overlapping ticks harmless.
func (c *Coordinator) runTicker(ctx context.Context, d time.Duration, fn func()) {
	defer c.Wg.Done()
	t := time.NewTicker(d)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			go fn()
		}
	}
}

// Start kicks off the periodic sync and discovery routines.
func (c *Coordinator) Start() {
	c.Wg.Add(1)
	go c.runTicker(c.Ctx, c.Intervals.SyncInterval, func() {
		c.performSync(c.Ctx)
	})

	c.Wg.Add(1)
	go c.runTicker(c.Ctx, c.Intervals.DiscoveryInterval, func() {
		c.discoverLocalServer(c.Ctx)
	})
}

// Stop cancels background routines and waits for them to finish.
func (c *Coordinator) Stop() {
	if c.Cancel != nil {
		c.Cancel()
	}
	c.Wg.Wait()
}

// StartSync triggers one sync cycle without waiting for it. A no-op when a
// cycle is already in flight.
func (c *Coordinator) StartSync() {
	go c.performSync(c.Ctx)
}

// ForceFullSync resets every watermark to the epoch, persists the reset,
// then triggers a cycle. The next fetch's since parameter equals the epoch
// regardless of prior watermark values.
func (c *Coordinator) ForceFullSync() {
	c.mu.Lock()
	c.state.Reset()
	if err := c.Store.Save(c.Ctx, c.state); err != nil {
		log.Error().Err(err).Msg("failed to persist reset sync state")
	}
	c.mu.Unlock()

	log.Info().Msg("sync state reset to epoch, forcing full sync")
	c.StartSync()
}

// TransportStatus recomputes the usable transport from the clients' live
// connection flags. LocalServer wins over Radio when both report connected.
func (c *Coordinator) TransportStatus() transport.Status {
	if c.Local != nil && c.Local.Alive() {
		return transport.StatusLocalServer
	}
	if c.Radio != nil {
		if c.Radio.Connected() {
			return transport.StatusRadio
		}
		if c.Radio.LastError() != nil {
			return transport.StatusError
		}
	}
	return transport.StatusOffline
}

// Status returns a snapshot of the coordinator's observable state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Transport:  c.TransportStatus(),
		Syncing:    c.syncRunning.Load(),
		Progress:   c.progress,
		LastSync:   c.lastSync,
		ErrMessage: c.errMessage,
	}
}

// Changes delivers status snapshots on transitions. Slow receivers miss
// intermediate snapshots, never the channel.
func (c *Coordinator) Changes() <-chan Status { return c.notify }

func (c *Coordinator) publish() {
	select {
	case c.notify <- c.Status():
	default:
	}
}

// State returns a copy of the current sync state.
func (c *Coordinator) State() *syncstate.SyncState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// UpdateLocalServerAddress repoints the local server transport. Pure
// delegation; no coordinator-level state changes.
func (c *Coordinator) UpdateLocalServerAddress(host string, port int) {
	c.Local.UpdateAddress(host, port)
}

// StartScanning delegates a radio scan to the transport.
func (c *Coordinator) StartScanning(ctx context.Context) ([]radio.Device, error) {
	return c.Radio.Scan(ctx)
}

// ConnectRadio delegates a radio connect to the transport.
func (c *Coordinator) ConnectRadio(ctx context.Context, dev radio.Device) error {
	return c.Radio.Connect(ctx, dev)
}

// discoverLocalServer adopts a discovered address when the configured one is
// not answering. Best-effort; correctness never depends on it.
func (c *Coordinator) discoverLocalServer(ctx context.Context) {
	if c.Local == nil || c.Local.TestReachable(ctx) {
		return
	}
	if found := c.Local.Discover(ctx, nil); len(found) > 0 {
		c.Local.UpdateAddress(found[0], 0)
	}
}
