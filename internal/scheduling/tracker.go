package scheduling

import (
	"fmt"
	"slices"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"ptd/internal/logging"
	"ptd/internal/worker"
)

// tracker is the bookkeeping shared by every policy: registered workers, what
// each of them collected, what each of them still has to run, and the items
// nobody has been given yet.
type tracker struct {
	numWorkers        int
	logger            log.Logger
	metrics           *Metrics
	onCollectionError func(workerID, message string)

	workers     []worker.Handle
	inflight    map[worker.Handle][]int
	collections map[worker.Handle][]string
	reporters   []worker.Handle        // workers in the order their collections arrived
	divergent   map[worker.Handle]bool // collected something else, never given work

	collection []string
	finalized  bool
	pending    []int
}

func newTracker(opts Options, component string) tracker {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return tracker{
		numWorkers:        opts.NumWorkers,
		logger:            logging.With(opts.Logger, component),
		metrics:           metrics,
		onCollectionError: opts.OnCollectionError,
		inflight:          make(map[worker.Handle][]int),
		collections:       make(map[worker.Handle][]string),
		divergent:         make(map[worker.Handle]bool),
	}
}

func (t *tracker) Workers() []worker.Handle {
	return slices.Clone(t.workers)
}

func (t *tracker) AddWorker(w worker.Handle) error {
	if _, ok := t.inflight[w]; ok {
		return fmt.Errorf("%w: %s", ErrWorkerExists, w.ID())
	}
	t.workers = append(t.workers, w)
	t.inflight[w] = []int{}
	return nil
}

// addCollection stores the collection of w. Once the collection is final a
// report that differs from it is logged and dropped; accepted reports whether
// the worker may receive work.
func (t *tracker) addCollection(w worker.Handle, items []string) (accepted bool, err error) {
	if _, ok := t.inflight[w]; !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownWorker, w.ID())
	}
	if t.CollectionComplete() && t.finalized {
		if msg := CollectionDiff(t.collection, items, t.reporters[0].ID(), w.ID()); msg != "" {
			t.divergent[w] = true
			t.reportCollectionError(w, msg)
			return false, nil
		}
	}
	if _, seen := t.collections[w]; !seen {
		t.reporters = append(t.reporters, w)
	}
	t.collections[w] = slices.Clone(items)
	return true, nil
}

func (t *tracker) CollectionComplete() bool {
	return len(t.collections) >= t.numWorkers
}

func (t *tracker) Finished() bool {
	if !t.CollectionComplete() {
		return false
	}
	if len(t.pending) > 0 {
		return false
	}
	return t.Settled()
}

func (t *tracker) HasPending() bool {
	if len(t.pending) > 0 {
		return true
	}
	for _, items := range t.inflight {
		if len(items) > 0 {
			return true
		}
	}
	return false
}

func (t *tracker) Settled() bool {
	for _, items := range t.inflight {
		if len(items) >= 2 {
			return false
		}
	}
	return true
}

func (t *tracker) Collection() []string {
	return t.collection
}

func (t *tracker) RemovePendingFromWorker(w worker.Handle, indices []int) error {
	return fmt.Errorf("%w: removing %d pending items from %s", ErrNotSupported, len(indices), w.ID())
}

// finalize takes the collection of the first reporter and marks every worker
// that collected something else as divergent. It is a no-op once done.
func (t *tracker) finalize() {
	if t.finalized || len(t.reporters) == 0 {
		return
	}
	first := t.reporters[0]
	base := t.collections[first]
	for _, w := range t.reporters[1:] {
		if msg := CollectionDiff(base, t.collections[w], first.ID(), w.ID()); msg != "" {
			t.divergent[w] = true
			t.reportCollectionError(w, msg)
		}
	}
	t.collection = base
	t.pending = make([]int, len(base))
	for i := range base {
		t.pending[i] = i
	}
	t.finalized = true
	t.observePending()
}

func (t *tracker) observePending() {
	t.metrics.pendingItems.Set(float64(len(t.pending)))
}

// eligible returns the registered workers allowed to receive work
func (t *tracker) eligible() []worker.Handle {
	var out []worker.Handle
	for _, w := range t.workers {
		if _, collected := t.collections[w]; !collected || t.divergent[w] || w.ShuttingDown() {
			continue
		}
		out = append(out, w)
	}
	return out
}

// send moves indices from the global pending list to the worker
func (t *tracker) send(w worker.Handle, indices []int) {
	if len(indices) == 0 {
		return
	}
	// indices may alias t.pending, which is rewritten below
	indices = slices.Clone(indices)
	for _, idx := range indices {
		if pos := slices.Index(t.pending, idx); pos >= 0 {
			t.pending = slices.Delete(t.pending, pos, pos+1)
		}
	}
	t.inflight[w] = append(t.inflight[w], indices...)
	t.metrics.itemsSent.Add(float64(len(indices)))
	t.observePending()
	level.Debug(t.logger).Log("msg", "sending items", "worker", w.ID(), "indices", fmt.Sprint(indices))
	w.Send(slices.Clone(indices))
}

func (t *tracker) complete(w worker.Handle, index int) error {
	items, ok := t.inflight[w]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWorker, w.ID())
	}
	pos := slices.Index(items, index)
	if pos < 0 {
		return fmt.Errorf("item %d is not assigned to %s", index, w.ID())
	}
	t.inflight[w] = slices.Delete(items, pos, pos+1)
	return nil
}

// remove unregisters w and returns what it still had to run
func (t *tracker) remove(w worker.Handle) ([]int, error) {
	items, ok := t.inflight[w]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorker, w.ID())
	}
	delete(t.inflight, w)
	delete(t.divergent, w)
	if pos := slices.Index(t.workers, w); pos >= 0 {
		t.workers = slices.Delete(t.workers, pos, pos+1)
	}
	return items, nil
}

func (t *tracker) reportCollectionError(w worker.Handle, msg string) {
	level.Warn(t.logger).Log("msg", "collection differs", "worker", w.ID())
	if t.onCollectionError != nil {
		t.onCollectionError(w.ID(), msg)
	}
}
