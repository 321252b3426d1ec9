package sink

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/openwearables/pulse/internal/record"
)

// backfillHeartRate fills a workout's missing average/max heart rate from
// heart-rate samples inside the workout window. Returns the (possibly
// enriched) workout; workouts that already carry both values pass through.
func backfillHeartRate(w record.Workout, samples []record.HeartRate) record.Workout {
	if w.AvgHeartRate != nil && w.MaxHeartRate != nil {
		return w
	}

	var values []float64
	for _, s := range samples {
		if !s.Timestamp.Before(w.Start) && !s.Timestamp.After(w.End) {
			values = append(values, s.ValueBPM)
		}
	}
	if len(values) == 0 {
		return w
	}

	if w.AvgHeartRate == nil {
		avg := stat.Mean(values, nil)
		w.AvgHeartRate = &avg
	}
	if w.MaxHeartRate == nil {
		max := floats.Max(values)
		w.MaxHeartRate = &max
	}
	return w
}
