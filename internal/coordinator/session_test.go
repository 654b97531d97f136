package coordinator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ptd/internal/config"
	"ptd/internal/domain"
	"ptd/internal/event"
	"ptd/internal/scheduling"
	"ptd/internal/worker"
)

type sent struct {
	worker string
	item   string
}

// fakeSpawner starts scripted in-memory workers. Workers run items as soon as
// they are sent, so every event they produce is already queued when the
// coordinator looks at the next one.
type fakeSpawner struct {
	collection  func(id string) []string
	failOn      map[string]bool
	crashOn     map[string]int // item -> remaining crashes
	interruptOn map[string]bool
	stopAfter   map[string]string
	abandonOn   map[string]bool
	onSpawn     func(w *fakeWorker) bool // returning false skips the normal startup

	next      int
	spawned   []*fakeWorker
	log       []sent
	tornDown  bool
	spawnErrs int
}

func newFakeSpawner(collection []string) *fakeSpawner {
	return &fakeSpawner{
		collection:  func(string) []string { return collection },
		failOn:      map[string]bool{},
		crashOn:     map[string]int{},
		interruptOn: map[string]bool{},
		stopAfter:   map[string]string{},
		abandonOn:   map[string]bool{},
	}
}

func (f *fakeSpawner) Spawn(spec worker.Spec, sink event.Sink) (worker.Handle, error) {
	if f.spawnErrs > 0 {
		f.spawnErrs--
		return nil, errors.New("cannot start")
	}
	spec.ID = fmt.Sprintf("gw%d", f.next)
	f.next++
	w := &fakeWorker{spec: spec, sink: sink, pool: f}
	w.items = f.collection(spec.ID)
	f.spawned = append(f.spawned, w)
	if f.onSpawn != nil && !f.onSpawn(w) {
		return w, nil
	}
	sink.Put(event.Ready(w))
	sink.Put(event.CollectionFinished(w, w.items))
	return w, nil
}

func (f *fakeSpawner) Teardown() { f.tornDown = true }

func (f *fakeSpawner) workerIDs() []string {
	var ids []string
	for _, w := range f.spawned {
		ids = append(ids, w.spec.ID)
	}
	return ids
}

type fakeWorker struct {
	spec  worker.Spec
	sink  event.Sink
	pool  *fakeSpawner
	items []string
	exit  worker.ExitInfo
	down  bool
	dead  bool
}

func (w *fakeWorker) ID() string                { return w.spec.ID }
func (w *fakeWorker) Spec() worker.Spec         { return w.spec }
func (w *fakeWorker) ShuttingDown() bool        { return w.down }
func (w *fakeWorker) ExitInfo() worker.ExitInfo { return w.exit }

func (w *fakeWorker) Shutdown() {
	if w.down || w.dead {
		return
	}
	w.down = true
	w.dead = true
	w.sink.Put(event.Finished(w))
}

func (w *fakeWorker) Send(indices []int) {
	for _, idx := range indices {
		if w.dead {
			return
		}
		item := w.items[idx]
		w.pool.log = append(w.pool.log, sent{worker: w.ID(), item: item})
		switch {
		case w.pool.crashOn[item] > 0:
			w.pool.crashOn[item]--
			w.dead = true
			w.sink.Put(event.Crashed(w, errors.New("segmentation fault")))
			return
		case w.pool.interruptOn[item]:
			w.exit.ExitCode = worker.ExitCodeInterrupted
			w.dead = true
			w.sink.Put(event.Finished(w))
			return
		case w.pool.abandonOn[item]:
			w.dead = true
			w.sink.Put(event.Finished(w))
			return
		}
		w.sink.Put(event.ItemReport(w, domain.TestResult{
			ItemID:  item,
			Worker:  w.ID(),
			Success: !w.pool.failOn[item],
		}))
		w.sink.Put(event.ItemComplete(w, idx, time.Millisecond))
		if reason, ok := w.pool.stopAfter[item]; ok {
			w.exit.StopReason = reason
			w.dead = true
			w.sink.Put(event.Finished(w))
			return
		}
	}
}

type recordingReporter struct {
	NopReporter
	results          []domain.TestResult
	lines            []string
	summaries        []string
	collectionErrors []string
	internalErrors   []string
	completions      []int
	down             map[string]error
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{down: map[string]error{}}
}

func (r *recordingReporter) ItemReport(result domain.TestResult) {
	r.results = append(r.results, result)
}
func (r *recordingReporter) Line(msg string)    { r.lines = append(r.lines, msg) }
func (r *recordingReporter) Summary(msg string) { r.summaries = append(r.summaries, msg) }
func (r *recordingReporter) CollectionError(workerID, msg string) {
	r.collectionErrors = append(r.collectionErrors, workerID+": "+msg)
}
func (r *recordingReporter) InternalError(workerID, msg string) {
	r.internalErrors = append(r.internalErrors, workerID+": "+msg)
}
func (r *recordingReporter) WorkerDown(w worker.Handle, err error) { r.down[w.ID()] = err }
func (r *recordingReporter) CollectionComplete(count int)        { r.completions = append(r.completions, count) }

func (r *recordingReporter) outcomes() map[string]string {
	out := map[string]string{}
	for _, res := range r.results {
		switch {
		case res.Crashed:
			out[res.ItemID] = "crashed"
		case res.Success:
			out[res.ItemID] = "passed"
		default:
			out[res.ItemID] = "failed"
		}
	}
	return out
}

func testConfig(workers int) *config.Config {
	cfg := config.New()
	cfg.Processors = workers
	cfg.PollInterval = 5 * time.Millisecond
	return cfg
}

func run(t *testing.T, cfg *config.Config, sp *fakeSpawner) (*Session, *recordingReporter, error) {
	t.Helper()
	rep := newRecordingReporter()
	s := New(cfg, sp, rep)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.Run(ctx)
	assert.True(t, sp.tornDown, "workers must be torn down")
	return s, rep, err
}

func scenarioCollection() []string {
	return []string{
		"a@low_4", "b@low_4", "c@low_4", "d@low_4",
		"e@med_2", "f@med_2",
		"g@high_1", "h@high_1",
		"i", "j",
	}
}

func TestSession_RunsGroupsInOrder(t *testing.T) {
	collection := scenarioCollection()
	sp := newFakeSpawner(collection)

	s, rep, err := run(t, testConfig(4), sp)
	require.NoError(t, err)

	outcomes := rep.outcomes()
	require.Len(t, outcomes, len(collection))
	for _, item := range collection {
		assert.Equal(t, "passed", outcomes[item], item)
	}

	// each group is fully sent before the next one starts and stays within its cap
	caps := map[string]int{"low_4": 4, "med_2": 2, "high_1": 1, "default": 4}
	var order []string
	used := map[string]map[string]bool{}
	for _, e := range sp.log {
		name, _, err := scheduling.ParseGroup(e.item, 4)
		require.NoError(t, err)
		if len(order) == 0 || order[len(order)-1] != name {
			require.NotContains(t, order, name, "group %s dispatched twice", name)
			order = append(order, name)
		}
		if used[name] == nil {
			used[name] = map[string]bool{}
		}
		used[name][e.worker] = true
	}
	assert.Equal(t, []string{"low_4", "med_2", "high_1", "default"}, order)
	for name, workers := range used {
		assert.LessOrEqual(t, len(workers), caps[name], name)
	}
	assert.Equal(t, Stats{}, s.Stats())
}

func TestSession_LoadMode(t *testing.T) {
	collection := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}
	cfg := testConfig(2)
	cfg.Dist = "load"

	_, rep, err := run(t, cfg, newFakeSpawner(collection))
	require.NoError(t, err)
	assert.Len(t, rep.outcomes(), len(collection))
}

func TestSession_ReplacesCrashedWorker(t *testing.T) {
	collection := []string{"a", "b", "c", "d"}
	sp := newFakeSpawner(collection)
	sp.crashOn["b"] = 1

	s, rep, err := run(t, testConfig(2), sp)
	require.NoError(t, err)

	outcomes := rep.outcomes()
	assert.Equal(t, "crashed", outcomes["b"])
	for _, item := range []string{"a", "c", "d"} {
		assert.Equal(t, "passed", outcomes[item], item)
	}
	assert.Equal(t, []string{"gw0", "gw1", "gw2"}, sp.workerIDs())
	assert.Equal(t, sp.spawned[1].spec.Slot, sp.spawned[2].spec.Slot, "replacement keeps the slot")
	assert.Contains(t, rep.lines, "replacing crashed worker gw1")
	assert.Equal(t, []int{4}, rep.completions, "the replacement's collection is not a new start")
	assert.Equal(t, 1, s.Stats().CrashedWorkers)
	assert.Empty(t, s.Stats().Summary)
}

func TestSession_RestartBudget(t *testing.T) {
	t.Run("budget exhausted", func(t *testing.T) {
		sp := newFakeSpawner([]string{"a", "b", "c"})
		for _, item := range []string{"a", "b", "c"} {
			sp.crashOn[item] = 100
		}
		cfg := testConfig(1)
		cfg.MaxWorkerRestart = 2

		s, rep, err := run(t, cfg, sp)
		require.NoError(t, err)

		msg := "maximum crashed workers reached: 2"
		assert.Equal(t, msg, s.Stats().Summary)
		assert.Equal(t, []string{msg}, rep.summaries)
		assert.Contains(t, rep.lines, msg)
		assert.Equal(t, 3, s.Stats().CrashedWorkers)
		assert.Equal(t, []string{"gw0", "gw1", "gw2"}, sp.workerIDs())
		assert.Equal(t, map[string]string{"a": "crashed", "b": "crashed", "c": "crashed"}, rep.outcomes())
	})

	t.Run("restarting disabled", func(t *testing.T) {
		sp := newFakeSpawner([]string{"a"})
		sp.crashOn["a"] = 1
		cfg := testConfig(1)
		cfg.MaxWorkerRestart = 0

		s, _, err := run(t, cfg, sp)
		require.NoError(t, err)
		assert.Equal(t, "worker gw0 crashed and worker restarting disabled", s.Stats().Summary)
		assert.Len(t, sp.spawned, 1)
	})
}

func TestSession_MaxFail(t *testing.T) {
	collection := []string{"a", "b", "c", "d", "e", "f"}
	sp := newFakeSpawner(collection)
	sp.failOn["a"] = true
	sp.failOn["b"] = true
	cfg := testConfig(1)
	cfg.MaxFail = 2

	s, _, err := run(t, cfg, sp)

	var interrupted *InterruptedError
	require.ErrorAs(t, err, &interrupted)
	assert.Equal(t, "stopping after 2 failures", interrupted.Reason)
	assert.Equal(t, 2, s.Stats().Failures)
}

func TestSession_KeyboardInterrupt(t *testing.T) {
	sp := newFakeSpawner([]string{"a", "b"})
	sp.interruptOn["a"] = true

	_, rep, err := run(t, testConfig(1), sp)

	var interrupted *InterruptedError
	require.ErrorAs(t, err, &interrupted)
	assert.Equal(t, "gw0 received keyboard-interrupt", interrupted.Reason)
	assert.Equal(t, "crashed", rep.outcomes()["a"])
	require.Contains(t, rep.down, "gw0")
	assert.EqualError(t, rep.down["gw0"], "keyboard-interrupt")
	assert.Len(t, sp.spawned, 1, "no replacement while stopping")
}

func TestSession_WorkerStopReason(t *testing.T) {
	sp := newFakeSpawner([]string{"a", "b"})
	sp.stopAfter["a"] = "stopping after 1 failures"

	_, _, err := run(t, testConfig(1), sp)

	var interrupted *InterruptedError
	require.ErrorAs(t, err, &interrupted)
	assert.Equal(t, "stopping after 1 failures", interrupted.Reason)
}

func TestSession_FinishedWithPendingWorkPanics(t *testing.T) {
	sp := newFakeSpawner([]string{"a"})
	sp.abandonOn["a"] = true
	s := New(testConfig(1), sp, nil)

	assert.Panics(t, func() { _ = s.Run(context.Background()) })
	assert.True(t, sp.tornDown)
}

func TestSession_InternalError(t *testing.T) {
	sp := newFakeSpawner([]string{"a"})
	sp.onSpawn = func(w *fakeWorker) bool {
		w.sink.Put(event.Ready(w))
		w.sink.Put(event.InternalError(w, "assertion failed in runner"))
		return false
	}

	_, rep, err := run(t, testConfig(1), sp)

	var internal *InternalError
	require.ErrorAs(t, err, &internal)
	assert.Equal(t, "gw0", internal.Worker)
	assert.Equal(t, []string{"gw0: assertion failed in runner"}, rep.internalErrors)
}

func TestSession_UnscheduledIsFatal(t *testing.T) {
	sp := newFakeSpawner([]string{"a", "b"})
	sp.onSpawn = func(w *fakeWorker) bool {
		w.sink.Put(event.Ready(w))
		w.sink.Put(event.CollectionFinished(w, w.items))
		w.sink.Put(event.Unscheduled(w, []int{0}))
		return false
	}

	_, _, err := run(t, testConfig(1), sp)

	require.ErrorIs(t, err, scheduling.ErrNotSupported)
	assert.Contains(t, err.Error(), "unschedule items on gw0")
	assert.True(t, sp.tornDown)
}

func TestSession_NoActiveWorkers(t *testing.T) {
	sp := newFakeSpawner([]string{"a"})
	sp.onSpawn = func(w *fakeWorker) bool {
		w.dead = true
		w.sink.Put(event.Finished(w))
		return false
	}

	_, _, err := run(t, testConfig(2), sp)
	assert.ErrorIs(t, err, ErrNoActiveWorkers)
}

func TestSession_DivergentCollection(t *testing.T) {
	base := []string{"a", "b", "c"}
	sp := newFakeSpawner(base)
	sp.collection = func(id string) []string {
		if id == "gw1" {
			return []string{"a", "c"}
		}
		return base
	}

	_, rep, err := run(t, testConfig(2), sp)
	require.NoError(t, err)

	require.Len(t, rep.collectionErrors, 1)
	assert.True(t, strings.HasPrefix(rep.collectionErrors[0], "gw1: Different tests were collected between gw0 and gw1"))
	assert.Len(t, rep.outcomes(), 3)
	for _, e := range sp.log {
		assert.Equal(t, "gw0", e.worker, "divergent worker must not run %s", e.item)
	}
}

func TestSession_CancelledContext(t *testing.T) {
	sp := newFakeSpawner([]string{"a", "b"})
	s := New(testConfig(2), sp, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx)

	var interrupted *InterruptedError
	require.ErrorAs(t, err, &interrupted)
	assert.Equal(t, "run cancelled: context canceled", interrupted.Reason)
	assert.Empty(t, sp.log)
}

func TestSession_SpawnFailure(t *testing.T) {
	sp := newFakeSpawner([]string{"a"})
	sp.spawnErrs = 1

	_, _, err := run(t, testConfig(1), sp)
	assert.ErrorContains(t, err, "start worker 1")
}

func TestSession_UnknownDist(t *testing.T) {
	cfg := testConfig(1)
	cfg.Dist = "random"
	err := New(cfg, newFakeSpawner(nil), nil).Run(context.Background())
	assert.Error(t, err)
}

func TestSession_EmptyCollection(t *testing.T) {
	sp := newFakeSpawner(nil)

	_, rep, err := run(t, testConfig(3), sp)
	require.NoError(t, err)
	assert.Empty(t, rep.results)
	assert.True(t, slices.IsSorted(sp.workerIDs()))
}
