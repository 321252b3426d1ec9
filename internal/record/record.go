// Package record defines the typed health records exchanged between the
// wearable and the phone-side aggregator, plus the Batch container used for
// transfers. Timestamps are serialized as ISO-8601 UTC (RFC 3339).
package record

import (
	"fmt"
	"time"
)

// Record is the capability every health record variant provides. The id must
// be unique within its type and stable across retries; receivers dedup on it.
type Record interface {
	RecordID() string
	RecordTime() time.Time
}

// HeartRate is a single heart-rate measurement in beats per minute.
type HeartRate struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	ValueBPM   float64   `json:"value"`
	Confidence *float64  `json:"confidence,omitempty"`
}

func (h HeartRate) RecordID() string      { return h.ID }
func (h HeartRate) RecordTime() time.Time { return h.Timestamp }

// StepCount is an aggregated step counter reading. Duration, when present,
// is the window the count was accumulated over, in seconds.
type StepCount struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Count     uint64    `json:"count"`
	Duration  *float64  `json:"duration,omitempty"`
}

func (s StepCount) RecordID() string      { return s.ID }
func (s StepCount) RecordTime() time.Time { return s.Timestamp }

// StageKind is a sleep stage classification.
type StageKind string

const (
	StageAwake   StageKind = "AWAKE"
	StageLight   StageKind = "LIGHT"
	StageDeep    StageKind = "DEEP"
	StageREM     StageKind = "REM"
	StageUnknown StageKind = "UNKNOWN"
)

// Valid reports whether k is one of the known stage kinds.
func (k StageKind) Valid() bool {
	switch k {
	case StageAwake, StageLight, StageDeep, StageREM, StageUnknown:
		return true
	}
	return false
}

// SleepStage is one contiguous stretch of a sleep session spent in a single
// stage.
type SleepStage struct {
	Stage StageKind `json:"stage"`
	Start time.Time `json:"startTime"`
	End   time.Time `json:"endTime"`
}

// Sleep is a full sleep session with its ordered stage sequence.
type Sleep struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Start     time.Time    `json:"startTime"`
	End       time.Time    `json:"endTime"`
	Stages    []SleepStage `json:"stages"`
}

func (s Sleep) RecordID() string      { return s.ID }
func (s Sleep) RecordTime() time.Time { return s.Timestamp }

// WorkoutKind is the activity type of a workout.
type WorkoutKind string

const (
	WorkoutRunning  WorkoutKind = "RUNNING"
	WorkoutWalking  WorkoutKind = "WALKING"
	WorkoutCycling  WorkoutKind = "CYCLING"
	WorkoutSwimming WorkoutKind = "SWIMMING"
	WorkoutOther    WorkoutKind = "OTHER"
)

// Valid reports whether k is one of the known workout kinds.
func (k WorkoutKind) Valid() bool {
	switch k {
	case WorkoutRunning, WorkoutWalking, WorkoutCycling, WorkoutSwimming, WorkoutOther:
		return true
	}
	return false
}

// LocationPoint is one GPS sample on a workout route.
type LocationPoint struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Speed     *float64  `json:"speed,omitempty"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
}

// Workout is a recorded exercise session. Duration is derived from the
// start/end pair and serialized in seconds.
type Workout struct {
	ID                  string          `json:"id"`
	Timestamp           time.Time       `json:"timestamp"`
	Kind                WorkoutKind     `json:"type"`
	Start               time.Time       `json:"startTime"`
	End                 time.Time       `json:"endTime"`
	DurationSeconds     float64         `json:"duration"`
	TotalDistanceMeters float64         `json:"totalDistance"`
	TotalCalories       float64         `json:"totalCalories"`
	AvgHeartRate        *float64        `json:"averageHeartRate,omitempty"`
	MaxHeartRate        *float64        `json:"maxHeartRate,omitempty"`
	Route               []LocationPoint `json:"route,omitempty"`
}

func (w Workout) RecordID() string      { return w.ID }
func (w Workout) RecordTime() time.Time { return w.Timestamp }

// Duration returns the derived session duration.
func (w Workout) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Validate checks the enum fields a remote peer could get wrong.
func (w Workout) Validate() error {
	if !w.Kind.Valid() {
		return fmt.Errorf("workout %s: unknown kind %q", w.ID, w.Kind)
	}
	return nil
}
