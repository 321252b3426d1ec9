package simulator

import (
	"testing"
	"time"
)

func TestNextBatchCoversWindow(t *testing.T) {
	g := NewGenerator(42)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	first := g.NextBatch(now)
	if len(first.HeartRate) == 0 {
		t.Fatalf("first batch carries no heart-rate samples")
	}
	if len(first.StepCount) != 1 {
		t.Fatalf("expected one step window, got %d", len(first.StepCount))
	}

	later := now.Add(5 * time.Minute)
	second := g.NextBatch(later)
	if len(second.HeartRate) != 5 {
		t.Fatalf("5-minute window should yield 5 samples, got %d", len(second.HeartRate))
	}
	for _, hr := range second.HeartRate {
		if !hr.Timestamp.After(now) || hr.Timestamp.After(later) {
			t.Fatalf("sample %s outside window: %v", hr.ID, hr.Timestamp)
		}
		if hr.ValueBPM < 30 || hr.ValueBPM > 220 {
			t.Fatalf("implausible heart rate %v", hr.ValueBPM)
		}
	}
}

func TestGeneratorIDsAreUnique(t *testing.T) {
	g := NewGenerator(7)
	seen := make(map[string]struct{})
	now := time.Now().UTC()
	for i := 0; i < 20; i++ {
		now = now.Add(time.Minute)
		batch := g.NextBatch(now)
		for _, hr := range batch.HeartRate {
			if _, dup := seen[hr.ID]; dup {
				t.Fatalf("duplicate record id %s", hr.ID)
			}
			seen[hr.ID] = struct{}{}
		}
	}
}

func TestGeneratedWorkoutsAreValid(t *testing.T) {
	g := NewGenerator(3)
	now := time.Now().UTC()
	var workouts int
	for i := 0; i < 100; i++ {
		now = now.Add(time.Minute)
		for _, w := range g.NextBatch(now).Workout {
			workouts++
			if err := w.Validate(); err != nil {
				t.Fatalf("generated workout invalid: %v", err)
			}
			if !w.End.After(w.Start) {
				t.Fatalf("workout window inverted: %v..%v", w.Start, w.End)
			}
			if len(w.Route) == 0 {
				t.Fatalf("workout %s has no route", w.ID)
			}
		}
	}
	if workouts == 0 {
		t.Fatalf("100 batches produced no workouts")
	}
}
