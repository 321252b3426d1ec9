package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openwearables/pulse/internal/record"
)

// Outbox holds locally produced records the remote side has not seen yet.
// Pending builds an immutable batch of unsent records newer than since;
// MarkSent retires a batch after the transport confirmed delivery.
type Outbox interface {
	Pending(ctx context.Context, since time.Time) (record.Batch, error)
	MarkSent(ctx context.Context, batch record.Batch) error
}

// MemoryOutbox is the in-process outbox used by the daemon and tests.
type MemoryOutbox struct {
	mu sync.Mutex

	heartRate []record.HeartRate
	stepCount []record.StepCount
	sleep     []record.Sleep
	workout   []record.Workout
	sent      map[string]struct{}
}

func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{sent: make(map[string]struct{})}
}

// Add queues a locally produced record for upload.
func (o *MemoryOutbox) Add(rec record.Record) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch r := rec.(type) {
	case record.HeartRate:
		o.heartRate = append(o.heartRate, r)
	case record.StepCount:
		o.stepCount = append(o.stepCount, r)
	case record.Sleep:
		o.sleep = append(o.sleep, r)
	case record.Workout:
		o.workout = append(o.workout, r)
	default:
		return fmt.Errorf("unsupported record type %T", rec)
	}
	return nil
}

// Pending returns a fresh batch of unsent records newer than since.
func (o *MemoryOutbox) Pending(ctx context.Context, since time.Time) (record.Batch, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	batch := record.Batch{
		ID:        fmt.Sprintf("outbound-%d", time.Now().UnixNano()),
		CreatedAt: time.Now().UTC(),
	}
	for _, r := range o.heartRate {
		if o.unsent(r.ID) && r.Timestamp.After(since) {
			batch.HeartRate = append(batch.HeartRate, r)
		}
	}
	for _, r := range o.stepCount {
		if o.unsent(r.ID) && r.Timestamp.After(since) {
			batch.StepCount = append(batch.StepCount, r)
		}
	}
	for _, r := range o.sleep {
		if o.unsent(r.ID) && r.Timestamp.After(since) {
			batch.Sleep = append(batch.Sleep, r)
		}
	}
	for _, r := range o.workout {
		if o.unsent(r.ID) && r.Timestamp.After(since) {
			batch.Workout = append(batch.Workout, r)
		}
	}
	return batch, nil
}

func (o *MemoryOutbox) unsent(id string) bool {
	_, ok := o.sent[id]
	return !ok
}

// MarkSent retires every record in the delivered batch.
func (o *MemoryOutbox) MarkSent(ctx context.Context, batch record.Batch) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, r := range batch.HeartRate {
		o.sent[r.ID] = struct{}{}
	}
	for _, r := range batch.StepCount {
		o.sent[r.ID] = struct{}{}
	}
	for _, r := range batch.Sleep {
		o.sent[r.ID] = struct{}{}
	}
	for _, r := range batch.Workout {
		o.sent[r.ID] = struct{}{}
	}
	return nil
}
