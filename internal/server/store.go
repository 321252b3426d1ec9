package server

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openwearables/pulse/internal/record"
)

// Store is the server-side record set. Records dedup by id within their
// type; re-sent batches never create duplicates.
type Store struct {
	mu sync.RWMutex

	heartRate map[string]record.HeartRate
	stepCount map[string]record.StepCount
	sleep     map[string]record.Sleep
	workout   map[string]record.Workout
}

func NewStore() *Store {
	return &Store{
		heartRate: make(map[string]record.HeartRate),
		stepCount: make(map[string]record.StepCount),
		sleep:     make(map[string]record.Sleep),
		workout:   make(map[string]record.Workout),
	}
}

// Put merges a batch and reports how many records were new versus already
// present.
func (s *Store) Put(batch record.Batch) (processed, duplicates int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range batch.HeartRate {
		if _, ok := s.heartRate[r.ID]; ok {
			duplicates++
			continue
		}
		s.heartRate[r.ID] = r
		processed++
	}
	for _, r := range batch.StepCount {
		if _, ok := s.stepCount[r.ID]; ok {
			duplicates++
			continue
		}
		s.stepCount[r.ID] = r
		processed++
	}
	for _, r := range batch.Sleep {
		if _, ok := s.sleep[r.ID]; ok {
			duplicates++
			continue
		}
		s.sleep[r.ID] = r
		processed++
	}
	for _, r := range batch.Workout {
		if _, ok := s.workout[r.ID]; ok {
			duplicates++
			continue
		}
		s.workout[r.ID] = r
		processed++
	}
	return processed, duplicates
}

// typeFilter parses the types CSV query parameter. Empty means all types.
type typeFilter map[string]bool

func parseTypeFilter(csv string) typeFilter {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	f := make(typeFilter)
	for _, t := range strings.Split(csv, ",") {
		f[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return f
}

func (f typeFilter) want(name string) bool {
	return f == nil || f[name]
}

// Since collects records strictly newer than the watermark, ordered by
// timestamp per type, capped at limit across all types.
func (s *Store) Since(since time.Time, limit int, types typeFilter) (batch record.Batch, hasMore bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 500
	}
	budget := limit

	if types.want("heartrate") {
		var recs []record.HeartRate
		for _, r := range s.heartRate {
			if r.Timestamp.After(since) {
				recs = append(recs, r)
			}
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i].Timestamp.Before(recs[j].Timestamp) })
		if len(recs) > budget {
			recs = recs[:budget]
			hasMore = true
		}
		batch.HeartRate = recs
		budget -= len(recs)
	}

	if types.want("stepcount") && budget > 0 {
		var recs []record.StepCount
		for _, r := range s.stepCount {
			if r.Timestamp.After(since) {
				recs = append(recs, r)
			}
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i].Timestamp.Before(recs[j].Timestamp) })
		if len(recs) > budget {
			recs = recs[:budget]
			hasMore = true
		}
		batch.StepCount = recs
		budget -= len(recs)
	}

	if types.want("sleep") && budget > 0 {
		var recs []record.Sleep
		for _, r := range s.sleep {
			if r.Timestamp.After(since) {
				recs = append(recs, r)
			}
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i].Timestamp.Before(recs[j].Timestamp) })
		if len(recs) > budget {
			recs = recs[:budget]
			hasMore = true
		}
		batch.Sleep = recs
		budget -= len(recs)
	}

	if types.want("workout") && budget > 0 {
		var recs []record.Workout
		for _, r := range s.workout {
			if r.Timestamp.After(since) {
				recs = append(recs, r)
			}
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i].Timestamp.Before(recs[j].Timestamp) })
		if len(recs) > budget {
			recs = recs[:budget]
			hasMore = true
		}
		batch.Workout = recs
	}

	return batch, hasMore
}
