package localserver

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/openwearables/pulse/internal/record"
	"github.com/openwearables/pulse/internal/transport"
)

// Send uploads a batch. Status mapping: 2xx success, 409 means the server
// already holds every record and counts as success, 400 is a non-retryable
// payload error, everything else is retryable. retryablehttp already retried
// 5xx and connection failures before we see them.
func (c *Client) Send(ctx context.Context, batch record.Batch) error {
	payload, err := sonic.Marshal(batch)
	if err != nil {
		return transport.NewError(transport.KindCodec, Subsystem, fmt.Errorf("marshal batch: %w", err))
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", c.BaseURL()+dataPath, payload)
	if err != nil {
		return transport.NewError(transport.KindNetwork, Subsystem, fmt.Errorf("build upload request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.uploader.Do(req)
	if err != nil {
		return transport.NewError(transport.KindNetwork, Subsystem, fmt.Errorf("upload: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == 409:
		// Duplicate batch: the data is already durable server-side.
		log.Info().Str("batch_id", batch.ID).Msg("upload reported conflict, treating as already synced")
		return nil
	case resp.StatusCode == 400:
		return transport.Errorf(transport.KindBadRequest, Subsystem, "upload rejected with status 400")
	case resp.StatusCode >= 400:
		return transport.Errorf(transport.KindNetwork, Subsystem, "upload returned status %d", resp.StatusCode)
	}

	var body uploadResponse
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&body); err != nil {
		return transport.NewError(transport.KindCodec, Subsystem, fmt.Errorf("decode upload response: %w", err))
	}

	log.Info().
		Str("batch_id", batch.ID).
		Int("processed", body.ProcessedCount).
		Msg("batch uploaded to local server")
	return nil
}
