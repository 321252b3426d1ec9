// Package server implements the reference local aggregation server: the
// wire contract the HTTP transport client depends on.
package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"github.com/openwearables/pulse/internal/config"
	"github.com/openwearables/pulse/internal/record"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

type Server struct {
	App   *fiber.App
	Store *Store
	cfg   *config.ServerEnvConfig
}

// NewServer builds the fiber app with the wire-contract routes mounted.
func NewServer(cfg *config.ServerEnvConfig) *Server {
	if cfg == nil {
		cfg = &config.ServerEnvConfig{Address: "0.0.0.0", Port: 8421, BodySizeLimit: 1 << 20}
	}

	app := fiber.New(fiber.Config{
		Prefork:      false,
		ErrorHandler: fiberErrHandler,
		JSONEncoder:  sonic.Marshal,
		JSONDecoder:  sonic.Unmarshal,
		BodyLimit:    cfg.BodySizeLimit,
	})

	app.Use(recover.New())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	s := &Server{
		App:   app,
		Store: NewStore(),
		cfg:   cfg,
	}

	api := app.Group("/api/v1")
	api.Get("/health", s.handleHealth)
	api.Get("/data", s.handleGetData)
	api.Post("/data", s.handlePostData)

	return s
}

func fiberErrHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	log.Error().
		Err(err).
		Int("status_code", code).
		Str("path", ctx.Path()).
		Str("method", ctx.Method()).
		Msg("request failed")

	return ctx.Status(code).JSON(fiber.Map{"status": "error", "error": err.Error()})
}

// Start blocks serving until the listener fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Address, s.cfg.Port)
	log.Info().Str("address", addr).Msg("local server listening")
	return s.App.Listen(addr)
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown() error {
	return s.App.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(healthResponse{
		Status:    "ok",
		Version:   Version,
		Timestamp: time.Now().UTC(),
	})
}

// handleGetData serves the delta batch since the client's watermark. Nothing
// newer is signalled with 404, by contract, not with an empty 200.
func (s *Server) handleGetData(c *fiber.Ctx) error {
	since := time.Unix(0, 0).UTC()
	if raw := c.Query("since"); raw != "" {
		parsed, err := parseSince(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid since parameter: %v", err))
		}
		since = parsed
	}

	limit := c.QueryInt("limit", 500)
	types := parseTypeFilter(c.Query("types"))

	batch, hasMore := s.Store.Since(since, limit, types)
	if batch.IsEmpty() {
		return fiber.NewError(fiber.StatusNotFound, "no data since watermark")
	}

	batch.ID = fmt.Sprintf("delta-%d", time.Now().UnixNano())
	batch.CreatedAt = time.Now().UTC()

	resp := dataResponse{
		Batch:     batch,
		Timestamp: time.Now().UTC(),
		HasMore:   hasMore,
	}
	if hasMore {
		resp.NextCursor = newestTimestamp(batch).UTC().Format(time.RFC3339Nano)
	}

	log.Debug().
		Time("since", since).
		Int("total", batch.TotalCount()).
		Bool("has_more", hasMore).
		Msg("serving delta batch")
	return c.JSON(resp)
}

// handlePostData ingests an uploaded batch. A batch that is entirely
// duplicates answers 409 so idempotent re-sends are distinguishable from
// fresh data.
func (s *Server) handlePostData(c *fiber.Ctx) error {
	var batch record.Batch
	if err := c.BodyParser(&batch); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("malformed batch: %v", err))
	}

	for _, w := range batch.Workout {
		if err := w.Validate(); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}

	processed, duplicates := s.Store.Put(batch)
	if processed == 0 && duplicates > 0 {
		return c.Status(fiber.StatusConflict).JSON(uploadResponse{
			Status:         "duplicate",
			ProcessedCount: 0,
			Timestamp:      time.Now().UTC(),
		})
	}

	log.Info().
		Str("batch_id", batch.ID).
		Int("processed", processed).
		Int("duplicates", duplicates).
		Msg("batch ingested")
	return c.JSON(uploadResponse{
		Status:         "success",
		ProcessedCount: processed,
		Timestamp:      time.Now().UTC(),
	})
}

// parseSince accepts ISO-8601 or epoch milliseconds.
func parseSince(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	var ms int64
	if _, err := fmt.Sscanf(raw, "%d", &ms); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("expected RFC3339 or epoch milliseconds, got %q", raw)
}

func newestTimestamp(b record.Batch) time.Time {
	var newest time.Time
	for _, r := range b.HeartRate {
		if r.Timestamp.After(newest) {
			newest = r.Timestamp
		}
	}
	for _, r := range b.StepCount {
		if r.Timestamp.After(newest) {
			newest = r.Timestamp
		}
	}
	for _, r := range b.Sleep {
		if r.Timestamp.After(newest) {
			newest = r.Timestamp
		}
	}
	for _, r := range b.Workout {
		if r.Timestamp.After(newest) {
			newest = r.Timestamp
		}
	}
	return newest
}
