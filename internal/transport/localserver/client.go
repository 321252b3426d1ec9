// Package localserver implements the HTTP transport against the phone-local
// aggregation server.
package localserver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/openwearables/pulse/internal/config"
	"github.com/openwearables/pulse/internal/record"
	"github.com/openwearables/pulse/internal/transport"
)

// Subsystem tags errors and log lines produced by this transport.
const Subsystem = "local server"

const (
	healthPath = "/api/v1/health"
	dataPath   = "/api/v1/data"
)

// Client talks to the local server over HTTP. Fetches go through resty, the
// upload path goes through retryablehttp so transient 5xx responses do not
// cost a whole sync cycle.
type Client struct {
	cfg *config.LocalServerEnvConfig

	mu       sync.RWMutex
	baseURL  string
	alive    bool
	client   *resty.Client
	uploader *retryablehttp.Client
}

// NewClient constructs a client pointed at the configured host and port.
func NewClient(cfg *config.LocalServerEnvConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	baseURL := fmt.Sprintf("http://%s:%d", cfg.ServerHost, cfg.ServerPort)

	cli := resty.New().
		SetBaseURL(baseURL).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetHeader("Accept-Encoding", "zstd").
		SetTimeout(cfg.ClientTimeout)

	up := retryablehttp.NewClient()
	up.RetryMax = cfg.UploadRetryMax
	up.HTTPClient.Timeout = cfg.ClientTimeout
	up.RetryWaitMin = 500 * time.Millisecond
	up.RetryWaitMax = 10 * time.Second
	up.Logger = nil

	return &Client{
		cfg:      cfg,
		baseURL:  baseURL,
		client:   cli,
		uploader: up,
	}, nil
}

// Name identifies this transport in logs and error messages.
func (c *Client) Name() string { return Subsystem }

// UpdateAddress repoints the client, e.g. after discovery finds the server
// on a different LAN address. A non-positive port keeps the configured one.
func (c *Client) UpdateAddress(host string, port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if port <= 0 {
		port = c.cfg.ServerPort
	}
	c.baseURL = fmt.Sprintf("http://%s:%d", host, port)
	c.client.SetBaseURL(c.baseURL)
	c.alive = false
	log.Info().Str("base_url", c.baseURL).Msg("local server address updated")
}

// BaseURL returns the current server address.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Alive reports the result of the last reachability probe.
func (c *Client) Alive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.alive
}

// TestReachable probes the health endpoint and updates the liveness flag.
func (c *Client) TestReachable(ctx context.Context) bool {
	var health healthResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&health).
		Get(healthPath)

	ok := err == nil && resp.StatusCode() == 200
	c.mu.Lock()
	c.alive = ok
	c.mu.Unlock()

	if err != nil {
		log.Debug().Err(err).Msg("local server health probe failed")
	}
	return ok
}

// Fetch requests the batch of records newer than since. A 404 means the
// server has nothing newer and is returned as an empty batch, not an error.
func (c *Client) Fetch(ctx context.Context, since time.Time) (record.Batch, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("since", since.UTC().Format(time.RFC3339)).
		SetQueryParam("limit", strconv.Itoa(c.cfg.FetchLimit)).
		Get(dataPath)
	if err != nil {
		return record.Batch{}, transport.NewError(transport.KindNetwork, Subsystem, fmt.Errorf("fetch: %w", err))
	}

	switch {
	case resp.StatusCode() == 404:
		return record.Batch{}, nil
	case resp.StatusCode() == 400:
		return record.Batch{}, transport.Errorf(transport.KindBadRequest, Subsystem, "fetch rejected: %s", resp.String())
	case resp.StatusCode() >= 400:
		return record.Batch{}, transport.Errorf(transport.KindNetwork, Subsystem, "fetch returned status %d", resp.StatusCode())
	}

	data, err := maybeDecompress(resp)
	if err != nil {
		return record.Batch{}, transport.NewError(transport.KindCodec, Subsystem, err)
	}

	var body dataResponse
	if err := sonic.Unmarshal(data, &body); err != nil {
		return record.Batch{}, transport.NewError(transport.KindCodec, Subsystem, fmt.Errorf("decode batch: %w", err))
	}

	log.Debug().
		Int("total", body.Batch.TotalCount()).
		Bool("has_more", body.HasMore).
		Time("since", since).
		Msg("fetched batch from local server")
	return body.Batch, nil
}

func maybeDecompress(resp *resty.Response) ([]byte, error) {
	data := resp.Body()
	if !strings.Contains(strings.ToLower(resp.Header().Get("Content-Encoding")), "zstd") {
		return data, nil
	}

	r, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zstd: failed to create reader: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("zstd: failed to decompress response: %w", err)
	}
	return out, nil
}
