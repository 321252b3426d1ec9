package coordinator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openwearables/pulse/internal/syncstate"
	"github.com/openwearables/pulse/internal/transport"
)

// performSync runs one sync cycle. Idempotent no-op when a cycle is already
// in flight: the guard is set before any blocking call so the check and set
// cannot race. Failures end the cycle cleanly with an error message; the
// next tick retries from the unchanged watermark, which is safe because
// fetch and process are idempotent per record id.
func (c *Coordinator) performSync(ctx context.Context) {
	if !c.syncRunning.CompareAndSwap(false, true) {
		log.Debug().Msg("sync already in flight, skipping trigger")
		return
	}
	defer c.syncRunning.Store(false)

	c.mu.Lock()
	c.progress = 0
	c.errMessage = ""
	c.mu.Unlock()
	c.publish()

	status := c.TransportStatus()
	log.Info().Str("transport", status.String()).Msg("sync cycle starting")

	var err error
	switch status {
	case transport.StatusLocalServer:
		err = c.syncLocalServer(ctx)
	case transport.StatusRadio:
		err = c.syncRadio(ctx)
	default:
		// Offline and Error short-circuit with no I/O attempted.
		err = transport.Errorf(transport.KindUnavailable, status.String(), "no transport available")
	}

	c.mu.Lock()
	if err != nil {
		c.errMessage = err.Error()
		log.Error().Err(err).Msg("sync cycle failed")
	}
	c.progress = 1.0
	c.lastSync = time.Now().UTC()
	if saveErr := c.Store.Save(ctx, c.state); saveErr != nil {
		log.Error().Err(saveErr).Msg("failed to persist sync state")
	}
	c.mu.Unlock()
	c.publish()
}

// syncLocalServer drives the HTTP cycle: reachability, delta fetch since the
// earliest watermark, process into the sink, then upload anything pending
// locally. Upload never starts before every fetched record has had its sink
// write attempt.
func (c *Coordinator) syncLocalServer(ctx context.Context) error {
	if !c.Local.TestReachable(ctx) {
		return transport.Errorf(transport.KindUnavailable, c.Local.Name(), "server not reachable")
	}

	c.mu.Lock()
	// Failed sink writes from earlier cycles go first so retries cannot
	// starve behind new data.
	c.Adapter.FlushRetained(ctx, c.state)
	since := c.state.EarliestWatermark()
	c.mu.Unlock()
	c.setProgress(0.2)

	batch, err := c.Local.Fetch(ctx, since)
	if err != nil {
		return err
	}
	c.setProgress(0.4)

	if !batch.IsEmpty() {
		c.mu.Lock()
		res := c.Adapter.ProcessBatch(ctx, batch, c.state)
		c.state.Touch(time.Now())
		c.mu.Unlock()
		log.Info().Int("saved", res.Saved).Int("failed", res.Failed).Msg("remote batch resolved into sink")
	}
	c.setProgress(0.7)

	outbound, err := c.Outbox.Pending(ctx, syncstate.Epoch)
	if err != nil {
		return err
	}
	if outbound.IsEmpty() {
		return nil
	}

	if err := c.Local.Send(ctx, outbound); err != nil {
		return err
	}

	c.mu.Lock()
	c.state.AdvanceFromBatch(outbound)
	c.state.Touch(time.Now())
	c.mu.Unlock()
	return c.Outbox.MarkSent(ctx, outbound)
}

// syncRadio drives the device-to-device cycle: read the peer's checkpoint,
// send it everything it has not seen, then publish our own checkpoint.
func (c *Coordinator) syncRadio(ctx context.Context) error {
	if !c.Radio.Connected() {
		return transport.Errorf(transport.KindUnavailable, c.Radio.Name(), "not connected")
	}

	peer, err := c.Radio.PeerState(ctx)
	if err != nil {
		return err
	}
	c.setProgress(0.3)

	outbound, err := c.Outbox.Pending(ctx, peer.EarliestWatermark())
	if err != nil {
		return err
	}

	if !outbound.IsEmpty() {
		if err := c.Radio.Send(ctx, outbound); err != nil {
			return err
		}

		c.mu.Lock()
		c.state.AdvanceFromBatch(outbound)
		c.state.Touch(time.Now())
		c.mu.Unlock()
		if err := c.Outbox.MarkSent(ctx, outbound); err != nil {
			return err
		}
	}
	c.setProgress(0.8)

	c.mu.Lock()
	snapshot := c.state.Clone()
	c.mu.Unlock()
	if err := c.Radio.PushState(ctx, snapshot); err != nil {
		// The peer will re-read our checkpoint next cycle; data already
		// sent is not at risk.
		log.Warn().Err(err).Msg("failed to publish checkpoint to peer")
	}
	return nil
}

func (c *Coordinator) setProgress(p float64) {
	c.mu.Lock()
	c.progress = p
	c.mu.Unlock()
	c.publish()
}
