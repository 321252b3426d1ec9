package server

import (
	"time"

	"github.com/openwearables/pulse/internal/record"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type dataResponse struct {
	record.Batch
	Timestamp  time.Time `json:"timestamp"`
	HasMore    bool      `json:"hasMore"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

type uploadResponse struct {
	Status         string    `json:"status"`
	ProcessedCount int       `json:"processedCount"`
	Timestamp      time.Time `json:"timestamp"`
}
