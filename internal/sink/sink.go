// Package sink adapts typed health records to the external health store's
// write model. The store itself is opaque and injected; tests substitute the
// in-memory implementation.
package sink

import (
	"context"
	"time"

	"github.com/openwearables/pulse/internal/record"
)

// Stage categories in the external store's sample model.
const (
	CategoryAwake = iota
	CategoryLight
	CategoryDeep
	CategoryREM
	CategoryUnknown
)

// StageCategory maps a stage kind to the store's category value.
func StageCategory(k record.StageKind) int {
	switch k {
	case record.StageAwake:
		return CategoryAwake
	case record.StageLight:
		return CategoryLight
	case record.StageDeep:
		return CategoryDeep
	case record.StageREM:
		return CategoryREM
	default:
		return CategoryUnknown
	}
}

// StageSample is one sleep-stage sample written to the store, spanning the
// stage's own start/end.
type StageSample struct {
	SleepID  string
	Category int
	Start    time.Time
	End      time.Time
}

// HealthSink is the write surface of the external health store.
type HealthSink interface {
	SaveHeartRate(ctx context.Context, rec record.HeartRate) error
	SaveStepCount(ctx context.Context, rec record.StepCount) error
	SaveSleepStage(ctx context.Context, sample StageSample) error
	// BeginWorkout opens a workout-collection context; the returned session
	// drives the multi-step save sequence.
	BeginWorkout(ctx context.Context, rec record.Workout) (WorkoutSession, error)
}

// WorkoutSession is the store's workout builder. Each step can fail
// independently; a failure aborts only that workout's save.
type WorkoutSession interface {
	AddDistance(ctx context.Context, meters float64) error
	AddCalories(ctx context.Context, kcal float64) error
	End(ctx context.Context) error
	Finalize(ctx context.Context) error
	// SaveRoute inserts route points and attaches the finalized route to
	// the finalized workout.
	SaveRoute(ctx context.Context, route []record.LocationPoint) error
}
