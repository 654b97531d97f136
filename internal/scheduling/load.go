package scheduling

import (
	"time"

	"github.com/go-kit/log/level"

	"ptd/internal/worker"
)

// LoadScheduler spreads the whole collection over every worker and keeps
// their queues topped up as items complete. Group tags are ignored.
type LoadScheduler struct {
	tracker
	maxSchedChunk int
}

// NewLoadScheduler creates a LoadScheduler
func NewLoadScheduler(opts Options) *LoadScheduler {
	return &LoadScheduler{
		tracker:       newTracker(opts, "scheduler"),
		maxSchedChunk: opts.MaxSchedChunk,
	}
}

// AddCollection records the collection of w
func (s *LoadScheduler) AddCollection(w worker.Handle, items []string) error {
	_, err := s.addCollection(w, items)
	return err
}

// Schedule sends the initial batches. With fewer than two items per worker,
// items go out one at a time round-robin so every worker gets something.
func (s *LoadScheduler) Schedule() {
	if !s.CollectionComplete() {
		level.Warn(s.logger).Log("msg", "schedule called before collection completed")
		return
	}
	if s.finalized {
		for _, w := range s.Workers() {
			s.CheckSchedule(w, 0, false)
		}
		return
	}

	s.finalize()
	if len(s.collection) == 0 {
		return
	}
	if s.maxSchedChunk <= 0 {
		s.maxSchedChunk = len(s.collection)
	}

	targets := s.eligible()
	if len(targets) == 0 {
		return
	}
	if len(s.pending) < 2*len(targets) {
		for i := 0; len(s.pending) > 0; i++ {
			s.send(targets[i%len(targets)], s.pending[:1])
		}
	} else {
		perWorker := len(s.collection) / len(targets)
		chunk := max(min(perWorker/4, s.maxSchedChunk), 2)
		for _, w := range targets {
			s.send(w, s.pending[:min(chunk, len(s.pending))])
		}
	}
	if len(s.pending) == 0 {
		for _, w := range s.workers {
			w.Shutdown()
		}
	}
}

// CheckSchedule tops up w when its queue runs low. Workers that recently
// finished a slow item and still hold two or more are left alone.
func (s *LoadScheduler) CheckSchedule(w worker.Handle, duration time.Duration, fromLoop bool) {
	if w.ShuttingDown() {
		return
	}
	if len(s.pending) == 0 {
		w.Shutdown()
		return
	}
	if s.divergent[w] {
		return
	}
	if _, collected := s.collections[w]; !collected {
		return
	}

	numWorkers := len(s.inflight)
	minItems := max(2, len(s.pending)/numWorkers/4)
	maxItems := max(2, len(s.pending)/numWorkers/2)
	queued := len(s.inflight[w])
	if queued >= minItems {
		return
	}
	if duration >= 100*time.Millisecond && queued >= 2 {
		return
	}
	num := maxItems - queued
	chunk := max(2-queued, s.maxSchedChunk)
	s.send(w, s.pending[:min(num, chunk, len(s.pending))])
}

// MarkComplete removes index from the worker's queue and tops it up
func (s *LoadScheduler) MarkComplete(w worker.Handle, index int, duration time.Duration) error {
	if err := s.complete(w, index); err != nil {
		return err
	}
	s.CheckSchedule(w, duration, false)
	return nil
}

// RemoveWorker drops w and hands whatever it still held to the others
func (s *LoadScheduler) RemoveWorker(w worker.Handle) (string, error) {
	items, err := s.remove(w)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", nil
	}
	crashItem := s.collection[items[0]]
	s.pending = append(s.pending, items[1:]...)
	s.observePending()
	s.metrics.itemsRequeued.Add(float64(len(items) - 1))
	for _, other := range s.Workers() {
		s.CheckSchedule(other, 0, false)
	}
	return crashItem, nil
}
