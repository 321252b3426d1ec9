package sink

import (
	"context"
	"fmt"
	"sync"

	"github.com/openwearables/pulse/internal/record"
)

// MemorySink is an in-process health store. It backs tests and the daemon's
// default wiring when no platform binding is present.
type MemorySink struct {
	mu sync.Mutex

	HeartRates  map[string]record.HeartRate
	StepCounts  map[string]record.StepCount
	SleepStages map[string][]StageSample
	Workouts    map[string]record.Workout
	Routes      map[string][]record.LocationPoint
}

func NewMemorySink() *MemorySink {
	return &MemorySink{
		HeartRates:  make(map[string]record.HeartRate),
		StepCounts:  make(map[string]record.StepCount),
		SleepStages: make(map[string][]StageSample),
		Workouts:    make(map[string]record.Workout),
		Routes:      make(map[string][]record.LocationPoint),
	}
}

func (m *MemorySink) SaveHeartRate(ctx context.Context, rec record.HeartRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HeartRates[rec.ID] = rec
	return nil
}

func (m *MemorySink) SaveStepCount(ctx context.Context, rec record.StepCount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StepCounts[rec.ID] = rec
	return nil
}

func (m *MemorySink) SaveSleepStage(ctx context.Context, sample StageSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SleepStages[sample.SleepID] = append(m.SleepStages[sample.SleepID], sample)
	return nil
}

func (m *MemorySink) BeginWorkout(ctx context.Context, rec record.Workout) (WorkoutSession, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &memorySession{sink: m, workout: rec}, nil
}

// memorySession commits the workout only at Finalize, mirroring the real
// store's collection semantics.
type memorySession struct {
	sink    *MemorySink
	workout record.Workout
	ended   bool
}

func (s *memorySession) AddDistance(ctx context.Context, meters float64) error {
	s.workout.TotalDistanceMeters = meters
	return nil
}

func (s *memorySession) AddCalories(ctx context.Context, kcal float64) error {
	s.workout.TotalCalories = kcal
	return nil
}

func (s *memorySession) End(ctx context.Context) error {
	s.ended = true
	return nil
}

func (s *memorySession) Finalize(ctx context.Context) error {
	if !s.ended {
		return fmt.Errorf("workout %s finalized before End", s.workout.ID)
	}
	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()
	s.sink.Workouts[s.workout.ID] = s.workout
	return nil
}

func (s *memorySession) SaveRoute(ctx context.Context, route []record.LocationPoint) error {
	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()
	if _, ok := s.sink.Workouts[s.workout.ID]; !ok {
		return fmt.Errorf("route for unfinalized workout %s", s.workout.ID)
	}
	s.sink.Routes[s.workout.ID] = route
	return nil
}
