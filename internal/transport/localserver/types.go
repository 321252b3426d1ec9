package localserver

import (
	"time"

	"github.com/openwearables/pulse/internal/record"
)

// healthResponse is the reachability probe reply.
type healthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// dataResponse wraps a batch with the server's paging envelope.
type dataResponse struct {
	record.Batch
	Timestamp  time.Time `json:"timestamp"`
	HasMore    bool      `json:"hasMore"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

// uploadResponse is the reply to a successful batch POST.
type uploadResponse struct {
	Status         string    `json:"status"`
	ProcessedCount int       `json:"processedCount"`
	Timestamp      time.Time `json:"timestamp"`
}
