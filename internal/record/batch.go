package record

import "time"

// Batch bundles health records of mixed types for one transfer. Batches are
// value objects: a new batch is built per sync cycle and never mutated after
// construction.
type Batch struct {
	ID        string      `json:"id"`
	CreatedAt time.Time   `json:"createdAt"`
	HeartRate []HeartRate `json:"heartRateData"`
	StepCount []StepCount `json:"stepCountData"`
	Sleep     []Sleep     `json:"sleepData"`
	Workout   []Workout   `json:"workoutData"`
}

// IsEmpty reports whether all four record sequences are empty.
func (b Batch) IsEmpty() bool {
	return len(b.HeartRate) == 0 && len(b.StepCount) == 0 && len(b.Sleep) == 0 && len(b.Workout) == 0
}

// TotalCount returns the number of records across all types.
func (b Batch) TotalCount() int {
	return len(b.HeartRate) + len(b.StepCount) + len(b.Sleep) + len(b.Workout)
}

// FilterSince returns a copy of b holding only records strictly newer than
// the given watermark. Used by transports that receive a full peer batch and
// need to drop already-synced records client-side.
func (b Batch) FilterSince(since time.Time) Batch {
	out := Batch{ID: b.ID, CreatedAt: b.CreatedAt}
	for _, r := range b.HeartRate {
		if r.Timestamp.After(since) {
			out.HeartRate = append(out.HeartRate, r)
		}
	}
	for _, r := range b.StepCount {
		if r.Timestamp.After(since) {
			out.StepCount = append(out.StepCount, r)
		}
	}
	for _, r := range b.Sleep {
		if r.Timestamp.After(since) {
			out.Sleep = append(out.Sleep, r)
		}
	}
	for _, r := range b.Workout {
		if r.Timestamp.After(since) {
			out.Workout = append(out.Workout, r)
		}
	}
	return out
}
