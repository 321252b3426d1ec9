// Package syncstate tracks per-data-type watermarks marking the boundary of
// already-synced data, and persists them between runs.
package syncstate

import (
	"time"

	"github.com/openwearables/pulse/internal/record"
)

// Epoch is the "sync everything" sentinel used before the first successful
// cycle and after a forced full sync.
var Epoch = time.Unix(0, 0).UTC()

// SyncState holds one watermark per data type plus a liveness stamp. The
// coordinator exclusively owns the single mutable instance; transports only
// carry serialized copies.
type SyncState struct {
	LastHeartRateSync time.Time  `json:"lastHeartRateSync"`
	LastStepCountSync time.Time  `json:"lastStepCountSync"`
	LastSleepSync     time.Time  `json:"lastSleepSync"`
	LastWorkoutSync   time.Time  `json:"lastWorkoutSync"`
	LastFullSync      *time.Time `json:"lastFullSync,omitempty"`
}

// New returns a fresh state with all watermarks at the epoch.
func New() *SyncState {
	return &SyncState{
		LastHeartRateSync: Epoch,
		LastStepCountSync: Epoch,
		LastSleepSync:     Epoch,
		LastWorkoutSync:   Epoch,
	}
}

// Reset moves every watermark back to the epoch and clears the liveness
// stamp, so the next cycle treats all remote data as new.
func (s *SyncState) Reset() {
	s.LastHeartRateSync = Epoch
	s.LastStepCountSync = Epoch
	s.LastSleepSync = Epoch
	s.LastWorkoutSync = Epoch
	s.LastFullSync = nil
}

// EarliestWatermark returns the minimum of the four per-type watermarks.
// Fetching since this point can only over-fetch, never miss data.
func (s *SyncState) EarliestWatermark() time.Time {
	min := s.LastHeartRateSync
	for _, t := range []time.Time{s.LastStepCountSync, s.LastSleepSync, s.LastWorkoutSync} {
		if t.Before(min) {
			min = t
		}
	}
	return min
}

// Watermarks never move backward: each Advance* call is a no-op unless ts is
// strictly newer than the stored value.

// AdvanceHeartRate raises the heart-rate watermark to ts if newer.
func (s *SyncState) AdvanceHeartRate(ts time.Time) {
	if ts.After(s.LastHeartRateSync) {
		s.LastHeartRateSync = ts
	}
}

// AdvanceStepCount raises the step-count watermark to ts if newer.
func (s *SyncState) AdvanceStepCount(ts time.Time) {
	if ts.After(s.LastStepCountSync) {
		s.LastStepCountSync = ts
	}
}

// AdvanceSleep raises the sleep watermark to ts if newer.
func (s *SyncState) AdvanceSleep(ts time.Time) {
	if ts.After(s.LastSleepSync) {
		s.LastSleepSync = ts
	}
}

// AdvanceWorkout raises the workout watermark to ts if newer.
func (s *SyncState) AdvanceWorkout(ts time.Time) {
	if ts.After(s.LastWorkoutSync) {
		s.LastWorkoutSync = ts
	}
}

// AdvanceFromBatch raises each per-type watermark to the max timestamp among
// that type's records in the batch. Used after a successful outbound upload,
// where the whole batch is known to be durable on the remote side.
func (s *SyncState) AdvanceFromBatch(b record.Batch) {
	for _, r := range b.HeartRate {
		s.AdvanceHeartRate(r.Timestamp)
	}
	for _, r := range b.StepCount {
		s.AdvanceStepCount(r.Timestamp)
	}
	for _, r := range b.Sleep {
		s.AdvanceSleep(r.Timestamp)
	}
	for _, r := range b.Workout {
		s.AdvanceWorkout(r.Timestamp)
	}
}

// Touch records a successful watermark update at now. This is a liveness
// indicator, not a per-type watermark.
func (s *SyncState) Touch(now time.Time) {
	t := now.UTC()
	s.LastFullSync = &t
}

// Clone returns an independent copy of s.
func (s *SyncState) Clone() *SyncState {
	out := *s
	if s.LastFullSync != nil {
		t := *s.LastFullSync
		out.LastFullSync = &t
	}
	return &out
}
