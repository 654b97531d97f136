package scheduling

import (
	"slices"
	"time"

	"github.com/go-kit/log/level"

	"ptd/internal/worker"
)

// group is a batch of items that runs on at most `workers` workers
type group struct {
	name    string
	workers int
	indices []int // every item of the group, in collection order
	pending []int // items not sent yet
}

// GroupScheduler runs the collection as a sequence of groups. Items are
// grouped by the tag at the end of their identifier ("<base>@<name>_<n>"),
// groups run in the order they first appear in the collection, and each group
// is spread round-robin over its first n workers. The next group is released
// by the coordinator's poll loop once no worker holds more than one item.
type GroupScheduler struct {
	tracker

	groups    map[string]*group
	order     []string // groups waiting to be dispatched
	groupOf   []string // item index -> group name
	caps      map[string]int
	firstTime bool
	// lost counts pool members that went away unexpectedly and whose
	// replacements have not reported a collection yet. No new group is
	// dispatched while it is non-zero.
	lost int
}

// NewGroupScheduler creates a GroupScheduler
func NewGroupScheduler(opts Options) *GroupScheduler {
	return &GroupScheduler{
		tracker:   newTracker(opts, "scheduler"),
		groups:    make(map[string]*group),
		caps:      make(map[string]int),
		firstTime: true,
	}
}

// AddCollection records the collection of w. A replacement worker reporting
// its collection ends the reschedule it was spawned for.
func (s *GroupScheduler) AddCollection(w worker.Handle, items []string) error {
	wasFinal := s.finalized
	if _, err := s.addCollection(w, items); err != nil {
		return err
	}
	if wasFinal && s.lost > 0 {
		s.lost--
	}
	return nil
}

// Schedule finalizes the collection, splits it into groups and dispatches the
// first one. Later calls only re-check every worker.
func (s *GroupScheduler) Schedule() {
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
	if s.firstTime {
		s.partition()
		s.firstTime = false
	}
	s.dispatchNext()
}

// partition builds one group per distinct tag, in collection order
func (s *GroupScheduler) partition() {
	available := len(s.eligible())
	s.groupOf = make([]string, len(s.collection))
	for i, id := range s.collection {
		name, workers, err := ParseGroup(id, available)
		if err != nil {
			level.Warn(s.logger).Log("msg", "using all workers for group", "err", err)
		}
		g, ok := s.groups[name]
		if !ok {
			g = &group{name: name, workers: workers}
			s.groups[name] = g
			s.order = append(s.order, name)
			s.caps[name] = workers
		}
		g.indices = append(g.indices, i)
		g.pending = append(g.pending, i)
		s.groupOf[i] = name
	}
	level.Info(s.logger).Log("msg", "collection partitioned", "items", len(s.collection), "groups", len(s.order))
}

// dispatchNext sends the next waiting group round-robin, one item per send
func (s *GroupScheduler) dispatchNext() bool {
	if len(s.order) == 0 {
		return false
	}
	targets := s.eligible()
	if len(targets) == 0 {
		return false
	}
	name := s.order[0]
	s.order = s.order[1:]
	g := s.groups[name]
	delete(s.groups, name)

	n := clampWorkers(g.workers, len(targets))
	targets = targets[:n]
	for i := 0; len(g.pending) > 0; i++ {
		idx := g.pending[0]
		g.pending = g.pending[1:]
		s.send(targets[i%n], []int{idx})
	}
	s.metrics.groupsDispatched.WithLabelValues(name).Inc()
	level.Info(s.logger).Log("msg", "dispatched group", "group", name, "items", len(g.indices), "workers", n)
	return true
}

// CheckSchedule shuts w down once nothing is left to hand out. When called
// from the coordinator's poll loop while every worker is down to its last
// item, it releases the next group.
func (s *GroupScheduler) CheckSchedule(w worker.Handle, duration time.Duration, fromLoop bool) {
	if w.ShuttingDown() {
		return
	}
	if len(s.pending) == 0 {
		w.Shutdown()
		return
	}
	if fromLoop && s.lost == 0 && s.Settled() {
		s.dispatchNext()
	}
	level.Debug(s.logger).Log("msg", "items waiting", "pending", len(s.pending), "groups", len(s.order))
}

// MarkComplete removes index from the worker's queue and re-checks it
func (s *GroupScheduler) MarkComplete(w worker.Handle, index int, duration time.Duration) error {
	if err := s.complete(w, index); err != nil {
		return err
	}
	s.CheckSchedule(w, duration, false)
	return nil
}

// RemoveWorker drops w. The first item it still held is the crash item; the
// rest return to the pending list as a recovery batch that keeps the worker
// cap of the group they came from and runs before any group not yet started.
func (s *GroupScheduler) RemoveWorker(w worker.Handle) (string, error) {
	_, reported := s.collections[w]
	unexpected := reported && !s.divergent[w] && !w.ShuttingDown()

	items, err := s.remove(w)
	if err != nil {
		return "", err
	}
	if unexpected && s.finalized {
		s.lost++
	}
	if len(items) == 0 {
		return "", nil
	}

	crashItem := s.collection[items[0]]
	rest := items[1:]
	s.pending = append(s.pending, rest...)
	s.observePending()
	s.requeue(rest)
	s.metrics.itemsRequeued.Add(float64(len(rest)))
	level.Warn(s.logger).Log("msg", "worker removed with items", "worker", w.ID(), "crash_item", crashItem, "requeued", len(rest))

	for _, other := range s.Workers() {
		s.CheckSchedule(other, 0, false)
	}
	return crashItem, nil
}

// requeue puts indices back in front of the waiting groups, keyed by the
// group they belong to
func (s *GroupScheduler) requeue(indices []int) {
	var front []string
	for _, idx := range indices {
		name := DefaultGroup
		if idx < len(s.groupOf) {
			name = s.groupOf[idx]
		}
		g, ok := s.groups[name]
		if !ok {
			g = &group{name: name, workers: s.capOf(name)}
			s.groups[name] = g
		}
		g.indices = append(g.indices, idx)
		g.pending = append(g.pending, idx)
		if !slices.Contains(front, name) && !slices.Contains(s.order, name) {
			front = append(front, name)
		}
	}
	s.order = append(front, s.order...)
}

func (s *GroupScheduler) capOf(name string) int {
	if n, ok := s.caps[name]; ok {
		return n
	}
	return s.numWorkers
}
