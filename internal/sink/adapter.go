package sink

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/openwearables/pulse/internal/record"
	"github.com/openwearables/pulse/internal/syncstate"
)

// maxRetained bounds the retained-retry queue; beyond it the oldest failed
// records are dropped with a log line rather than growing without limit.
const maxRetained = 512

// Result summarizes one batch's processing.
type Result struct {
	Saved   int
	Skipped int
	Failed  int
}

// Adapter forwards batch records to the health sink and advances the
// coordinator's watermarks. Writes are independent per record: a single
// failure is logged, the record is retained for retry on a later cycle, and
// the rest of the batch still processes. The watermark advances past failed
// records; the retained queue is what brings them back.
type Adapter struct {
	sink HealthSink

	seen     map[string]struct{}
	retained record.Batch
}

// NewAdapter wraps a health sink.
func NewAdapter(s HealthSink) *Adapter {
	return &Adapter{
		sink: s,
		seen: make(map[string]struct{}),
	}
}

// ProcessBatch writes every record in the batch to the sink, advancing the
// matching per-type watermark after each record's write attempt. Records
// whose id was already saved are skipped, so re-fetching the same batch
// cannot duplicate sink entries.
func (a *Adapter) ProcessBatch(ctx context.Context, batch record.Batch, state *syncstate.SyncState) Result {
	var res Result

	for _, r := range batch.HeartRate {
		a.saveHeartRate(ctx, r, &res)
		state.AdvanceHeartRate(r.Timestamp)
	}
	for _, r := range batch.StepCount {
		a.saveStepCount(ctx, r, &res)
		state.AdvanceStepCount(r.Timestamp)
	}
	for _, r := range batch.Sleep {
		a.saveSleep(ctx, r, &res)
		state.AdvanceSleep(r.Timestamp)
	}
	for _, r := range batch.Workout {
		a.saveWorkout(ctx, r, batch.HeartRate, &res)
		state.AdvanceWorkout(r.Timestamp)
	}

	log.Info().
		Int("saved", res.Saved).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Str("batch_id", batch.ID).
		Msg("batch processed into health sink")
	return res
}

// FlushRetained re-attempts records whose sink write failed on an earlier
// cycle. Called before new work so retries cannot starve.
func (a *Adapter) FlushRetained(ctx context.Context, state *syncstate.SyncState) Result {
	if a.retained.IsEmpty() {
		return Result{}
	}

	pending := a.retained
	a.retained = record.Batch{}
	log.Info().Int("records", pending.TotalCount()).Msg("retrying previously failed sink writes")
	return a.ProcessBatch(ctx, pending, state)
}

// RetainedCount returns the number of records queued for retry.
func (a *Adapter) RetainedCount() int { return a.retained.TotalCount() }

func (a *Adapter) markSaved(id string, res *Result) {
	a.seen[id] = struct{}{}
	res.Saved++
}

func (a *Adapter) alreadySaved(id string, res *Result) bool {
	if _, ok := a.seen[id]; ok {
		res.Skipped++
		return true
	}
	return false
}

func (a *Adapter) retainFailed(res *Result, add func()) {
	res.Failed++
	if a.retained.TotalCount() >= maxRetained {
		log.Warn().Int("max", maxRetained).Msg("retained-retry queue full, dropping failed record")
		return
	}
	add()
}

func (a *Adapter) saveHeartRate(ctx context.Context, r record.HeartRate, res *Result) {
	if a.alreadySaved(r.ID, res) {
		return
	}
	if err := a.sink.SaveHeartRate(ctx, r); err != nil {
		log.Error().Err(err).Str("id", r.ID).Msg("heart rate sink write failed")
		a.retainFailed(res, func() { a.retained.HeartRate = append(a.retained.HeartRate, r) })
		return
	}
	a.markSaved(r.ID, res)
}

func (a *Adapter) saveStepCount(ctx context.Context, r record.StepCount, res *Result) {
	if a.alreadySaved(r.ID, res) {
		return
	}
	if err := a.sink.SaveStepCount(ctx, r); err != nil {
		log.Error().Err(err).Str("id", r.ID).Msg("step count sink write failed")
		a.retainFailed(res, func() { a.retained.StepCount = append(a.retained.StepCount, r) })
		return
	}
	a.markSaved(r.ID, res)
}

// saveSleep writes one sample per stage, each spanning the stage's own
// start/end.
func (a *Adapter) saveSleep(ctx context.Context, r record.Sleep, res *Result) {
	if a.alreadySaved(r.ID, res) {
		return
	}

	for _, stage := range r.Stages {
		sample := StageSample{
			SleepID:  r.ID,
			Category: StageCategory(stage.Stage),
			Start:    stage.Start,
			End:      stage.End,
		}
		if err := a.sink.SaveSleepStage(ctx, sample); err != nil {
			log.Error().Err(err).Str("id", r.ID).Str("stage", string(stage.Stage)).Msg("sleep stage sink write failed")
			a.retainFailed(res, func() { a.retained.Sleep = append(a.retained.Sleep, r) })
			return
		}
	}
	a.markSaved(r.ID, res)
}

// saveWorkout runs the store's multi-step sequence: begin, distance and
// calories when present, end, finalize, then the route. A failure at any
// step aborts only this workout's save.
func (a *Adapter) saveWorkout(ctx context.Context, r record.Workout, hr []record.HeartRate, res *Result) {
	if a.alreadySaved(r.ID, res) {
		return
	}

	fail := func(step string, err error) {
		log.Error().Err(err).Str("id", r.ID).Str("step", step).Msg("workout sink write failed")
		a.retainFailed(res, func() { a.retained.Workout = append(a.retained.Workout, r) })
	}

	enriched := backfillHeartRate(r, hr)

	session, err := a.sink.BeginWorkout(ctx, enriched)
	if err != nil {
		fail("begin", err)
		return
	}
	if enriched.TotalDistanceMeters > 0 {
		if err := session.AddDistance(ctx, enriched.TotalDistanceMeters); err != nil {
			fail("distance", err)
			return
		}
	}
	if enriched.TotalCalories > 0 {
		if err := session.AddCalories(ctx, enriched.TotalCalories); err != nil {
			fail("calories", err)
			return
		}
	}
	if err := session.End(ctx); err != nil {
		fail("end", err)
		return
	}
	if err := session.Finalize(ctx); err != nil {
		fail("finalize", err)
		return
	}
	if len(enriched.Route) > 0 {
		if err := session.SaveRoute(ctx, enriched.Route); err != nil {
			fail("route", err)
			return
		}
	}
	a.markSaved(r.ID, res)
}
