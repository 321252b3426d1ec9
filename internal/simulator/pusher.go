package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/openwearables/pulse/internal/config"
	"github.com/openwearables/pulse/internal/record"
)

// Pusher posts generated batches to the local server on a fixed interval.
type Pusher struct {
	cfg    *config.SimulatorEnvConfig
	gen    *Generator
	client *resty.Client
}

func NewPusher(cfg *config.SimulatorEnvConfig) (*Pusher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	client := resty.New().
		SetBaseURL(cfg.TargetURL).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	return &Pusher{
		cfg:    cfg,
		gen:    NewGenerator(cfg.Seed),
		client: client,
	}, nil
}

// PushOnce generates and uploads one batch. A 409 means the server already
// holds every record, which a simulator treats as success.
func (p *Pusher) PushOnce(ctx context.Context) error {
	batch := p.gen.NextBatch(time.Now())
	return p.upload(ctx, batch)
}

func (p *Pusher) upload(ctx context.Context, batch record.Batch) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(batch).
		Post("/api/v1/data")
	if err != nil {
		return fmt.Errorf("upload batch: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != 409 {
		return fmt.Errorf("upload batch status %d: %s", resp.StatusCode(), resp.String())
	}

	log.Info().
		Str("batch_id", batch.ID).
		Int("records", batch.TotalCount()).
		Int("status", resp.StatusCode()).
		Msg("simulated batch pushed")
	return nil
}

// Run pushes batches until ctx is done.
func (p *Pusher) Run(ctx context.Context) {
	t := time.NewTicker(p.cfg.PushInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := p.PushOnce(ctx); err != nil {
				log.Error().Err(err).Msg("simulated push failed")
			}
		}
	}
}
