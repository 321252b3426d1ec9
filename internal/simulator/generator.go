// Package simulator produces synthetic wearable activity for exercising the
// sync chain end to end without a physical device.
package simulator

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/openwearables/pulse/internal/record"
)

// Generator emits plausible health records. A fixed seed makes a run
// reproducible; seed 0 derives one from the clock.
type Generator struct {
	rng  *rand.Rand
	seq  int
	last time.Time
}

func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

func (g *Generator) id(kind string) string {
	g.seq++
	return fmt.Sprintf("%s-%s-%d", kind, uuid.NewString()[:8], g.seq)
}

// heartRateAt models a resting rate with a mild diurnal swing plus jitter.
func (g *Generator) heartRateAt(t time.Time) float64 {
	hour := float64(t.Hour()) + float64(t.Minute())/60
	diurnal := 8 * math.Sin((hour-4)*math.Pi/12)
	return 62 + diurnal + g.rng.NormFloat64()*3
}

// NextBatch covers the window since the previous call: heart-rate samples
// every minute, a step-count reading for the window, and occasionally a
// workout with a short route.
func (g *Generator) NextBatch(now time.Time) record.Batch {
	now = now.UTC()
	from := g.last
	if from.IsZero() {
		from = now.Add(-time.Minute)
	}
	g.last = now

	batch := record.Batch{
		ID:        g.id("batch"),
		CreatedAt: now,
	}

	for t := from.Add(time.Minute); !t.After(now); t = t.Add(time.Minute) {
		conf := 0.8 + g.rng.Float64()*0.2
		batch.HeartRate = append(batch.HeartRate, record.HeartRate{
			ID:         g.id("hr"),
			Timestamp:  t,
			ValueBPM:   math.Round(g.heartRateAt(t)),
			Confidence: &conf,
		})
	}

	windowSec := now.Sub(from).Seconds()
	dur := windowSec
	batch.StepCount = append(batch.StepCount, record.StepCount{
		ID:        g.id("steps"),
		Timestamp: now,
		Count:     uint64(g.rng.Intn(40)) * uint64(math.Max(windowSec/60, 1)),
		Duration:  &dur,
	})

	// A workout roughly every tenth batch.
	if g.rng.Intn(10) == 0 {
		batch.Workout = append(batch.Workout, g.workout(now))
	}

	return batch
}

func (g *Generator) workout(now time.Time) record.Workout {
	durSec := 600 + g.rng.Intn(1800)
	start := now.Add(-time.Duration(durSec) * time.Second)
	dist := float64(durSec) * (2.0 + g.rng.Float64())

	kinds := []record.WorkoutKind{
		record.WorkoutRunning,
		record.WorkoutWalking,
		record.WorkoutCycling,
	}

	var route []record.LocationPoint
	lat, lon := 52.5200, 13.4050
	for t := start; t.Before(now); t = t.Add(30 * time.Second) {
		lat += (g.rng.Float64() - 0.5) * 0.001
		lon += (g.rng.Float64() - 0.5) * 0.001
		route = append(route, record.LocationPoint{
			Latitude:  lat,
			Longitude: lon,
			Timestamp: t,
		})
	}

	return record.Workout{
		ID:                  g.id("workout"),
		Timestamp:           now,
		Kind:                kinds[g.rng.Intn(len(kinds))],
		Start:               start,
		End:                 now,
		DurationSeconds:     float64(durSec),
		TotalDistanceMeters: math.Round(dist),
		TotalCalories:       math.Round(dist * 0.06),
		Route:               route,
	}
}
