// Package radio implements the direct device-to-device transport on top of
// an abstract MTU-capped link. Batches are fragmented on the data channel;
// the peer's sync checkpoint is exchanged unfragmented on the state channel.
package radio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"github.com/openwearables/pulse/internal/record"
	"github.com/openwearables/pulse/internal/syncstate"
	"github.com/openwearables/pulse/internal/transport"
)

// Subsystem tags errors and log lines produced by this transport.
const Subsystem = "radio"

// Client drives the radio connection state machine and moves batches over
// the link.
type Client struct {
	cfg   *Config
	link  Link
	codec *BatchCodec

	mu      sync.Mutex
	state   ConnState
	lastErr error

	notify chan ConnState
}

// NewClient wraps a physical link. Call WatchEvents to track unsolicited
// disconnects.
func NewClient(cfg *Config, link Link) (*Client, error) {
	if link == nil {
		return nil, fmt.Errorf("link cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	codec, err := NewBatchCodec()
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:    cfg,
		link:   link,
		codec:  codec,
		state:  Disconnected,
		notify: make(chan ConnState, 8),
	}, nil
}

// Name identifies this transport in logs and error messages.
func (c *Client) Name() string { return Subsystem }

// StateChanges delivers connection state transitions. Receivers that fall
// behind miss intermediate states, never the channel itself.
func (c *Client) StateChanges() <-chan ConnState { return c.notify }

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the logical connection is usable for transfers.
func (c *Client) Connected() bool {
	s := c.State()
	return s == Connected || s == Ready
}

// LastError returns the error recorded at the most recent drop to
// Disconnected, if any.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Client) setState(s ConnState, err error) {
	c.mu.Lock()
	c.state = s
	if err != nil {
		c.lastErr = err
	}
	c.mu.Unlock()

	select {
	case c.notify <- s:
	default:
	}
	log.Debug().Str("state", s.String()).Err(err).Msg("radio state changed")
}

// WatchEvents consumes unsolicited link events until ctx is done. An
// unexpected disconnect returns the machine to Disconnected and records the
// error; the coordinator decides if and when to reconnect.
func (c *Client) WatchEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.link.Events():
			if !ok {
				return
			}
			if ev.State == Disconnected {
				c.setState(Disconnected, ev.Err)
				continue
			}
			c.setState(ev.State, ev.Err)
		}
	}
}

// Scan searches for peers. The machine passes through Scanning and returns
// to its previous resting state afterwards.
func (c *Client) Scan(ctx context.Context) ([]Device, error) {
	c.setState(Scanning, nil)

	scanCtx, cancel := context.WithTimeout(ctx, c.cfg.ScanTimeout)
	defer cancel()

	devices, err := c.link.Scan(scanCtx)
	c.setState(Disconnected, err)
	if err != nil {
		return nil, transport.NewError(transport.KindNetwork, Subsystem, fmt.Errorf("scan: %w", err))
	}

	log.Info().Int("devices", len(devices)).Msg("radio scan finished")
	return devices, nil
}

// Connect establishes the logical connection to a scanned device.
func (c *Client) Connect(ctx context.Context, dev Device) error {
	c.setState(Connecting, nil)
	if err := c.link.Connect(ctx, dev); err != nil {
		c.setState(Disconnected, err)
		return transport.NewError(transport.KindNetwork, Subsystem, fmt.Errorf("connect %s: %w", dev.ID, err))
	}

	// The link resolves its service table during Connect; surface the
	// intermediate states for observers before settling.
	c.setState(ServiceDiscovery, nil)
	c.setState(Ready, nil)
	c.setState(Connected, nil)

	log.Info().Str("device", dev.ID).Str("name", dev.Name).Msg("radio connected")
	return nil
}

// Disconnect tears the connection down deliberately.
func (c *Client) Disconnect() error {
	err := c.link.Disconnect()
	c.setState(Disconnected, err)
	return err
}

// TestReachable reports whether the logical connection is up. No I/O: the
// link publishes drops via events.
func (c *Client) TestReachable(ctx context.Context) bool {
	return c.Connected()
}

// PeerState reads the peer's own sync checkpoint from the state channel.
// This is the peer's watermark record, never the coordinator's.
func (c *Client) PeerState(ctx context.Context) (*syncstate.SyncState, error) {
	if !c.Connected() {
		return nil, transport.Errorf(transport.KindUnavailable, Subsystem, "not connected")
	}

	readCtx, cancel := context.WithTimeout(ctx, c.cfg.ReadTimeout)
	defer cancel()

	data, err := c.link.ReadState(readCtx)
	if err != nil {
		return nil, transport.NewError(transport.KindNetwork, Subsystem, fmt.Errorf("read peer state: %w", err))
	}

	var state syncstate.SyncState
	if err := sonic.Unmarshal(data, &state); err != nil {
		return nil, transport.NewError(transport.KindCodec, Subsystem, fmt.Errorf("decode peer state: %w", err))
	}
	return &state, nil
}

// PushState writes our sync checkpoint to the state channel for the peer to
// read on its next cycle.
func (c *Client) PushState(ctx context.Context, state *syncstate.SyncState) error {
	if !c.Connected() {
		return transport.Errorf(transport.KindUnavailable, Subsystem, "not connected")
	}

	data, err := sonic.Marshal(state)
	if err != nil {
		return transport.NewError(transport.KindCodec, Subsystem, fmt.Errorf("marshal state: %w", err))
	}
	if err := c.link.WriteState(ctx, data); err != nil {
		return transport.NewError(transport.KindNetwork, Subsystem, fmt.Errorf("write state: %w", err))
	}
	return nil
}

// Send fragments a batch onto the data channel with inter-frame pacing.
func (c *Client) Send(ctx context.Context, batch record.Batch) error {
	if !c.Connected() {
		return transport.Errorf(transport.KindUnavailable, Subsystem, "not connected")
	}

	payload, err := c.codec.Encode(batch)
	if err != nil {
		return transport.NewError(transport.KindCodec, Subsystem, err)
	}

	frames, err := Fragment(payload, c.cfg.MaxPayload)
	if err != nil {
		return transport.NewError(transport.KindCodec, Subsystem, err)
	}

	for i, frame := range frames {
		if err := c.link.WriteFrame(ctx, frame); err != nil {
			return transport.NewError(transport.KindNetwork, Subsystem,
				fmt.Errorf("write frame %d/%d: %w", i+1, len(frames), err))
		}
		if i < len(frames)-1 {
			select {
			case <-ctx.Done():
				return transport.NewError(transport.KindNetwork, Subsystem, ctx.Err())
			case <-time.After(c.cfg.FramePacing):
			}
		}
	}

	log.Info().
		Str("batch_id", batch.ID).
		Int("frames", len(frames)).
		Int("bytes", len(payload)).
		Msg("batch sent over radio")
	return nil
}

// Fetch reassembles one inbound batch transfer and drops records at or
// before since.
func (c *Client) Fetch(ctx context.Context, since time.Time) (record.Batch, error) {
	if !c.Connected() {
		return record.Batch{}, transport.Errorf(transport.KindUnavailable, Subsystem, "not connected")
	}

	asm := NewReassembler()
	for {
		readCtx, cancel := context.WithTimeout(ctx, c.cfg.ReadTimeout)
		frame, err := c.link.ReadFrame(readCtx)
		cancel()
		if err != nil {
			return record.Batch{}, transport.NewError(transport.KindNetwork, Subsystem, fmt.Errorf("read frame: %w", err))
		}

		done, err := asm.Add(frame)
		if err != nil {
			return record.Batch{}, transport.NewError(transport.KindCodec, Subsystem, err)
		}
		if done {
			break
		}
	}

	payload, err := asm.Payload()
	if err != nil {
		return record.Batch{}, transport.NewError(transport.KindCodec, Subsystem, err)
	}

	batch, err := c.codec.Decode(payload)
	if err != nil {
		return record.Batch{}, transport.NewError(transport.KindCodec, Subsystem, err)
	}
	return batch.FilterSince(since), nil
}
