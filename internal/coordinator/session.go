// Package coordinator runs the controller side of a distributed test run: it
// starts the workers, feeds their events to the scheduling policy, replaces
// workers that crash and decides when the run is over.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"ptd/internal/config"
	"ptd/internal/domain"
	"ptd/internal/event"
	"ptd/internal/logging"
	"ptd/internal/scheduling"
	"ptd/internal/worker"
)

// Spawner starts workers. Spawn must return without waiting for the worker to
// become ready; the worker announces itself by posting to sink.
type Spawner interface {
	Spawn(spec worker.Spec, sink event.Sink) (worker.Handle, error)
	// Teardown stops every worker still running and waits for them
	Teardown()
}

// Stats is what a finished session knows about the run
type Stats struct {
	Failures       int
	CrashedWorkers int
	Summary        string
}

// Session drives one run. It is not reusable.
type Session struct {
	cfg      *config.Config
	spawner  Spawner
	reporter Reporter
	logger   log.Logger
	metrics  *Metrics
	schedOpt scheduling.Options

	queue *event.Queue
	sched scheduling.Policy

	active        map[worker.Handle]struct{}
	shuttingDown  bool
	shouldStop    string
	countFailures int
	failedWorkers int
	maxRestarts   *int
	summary       string
	reported      map[string]bool // collection errors already shown
}

// Option customizes a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(logger log.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithMetrics sets the session metrics
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithSchedulingMetrics instruments the scheduling policy
func WithSchedulingMetrics(m *scheduling.Metrics) Option {
	return func(s *Session) { s.schedOpt.Metrics = m }
}

// New creates a Session
func New(cfg *config.Config, spawner Spawner, reporter Reporter, opts ...Option) *Session {
	if reporter == nil {
		reporter = NopReporter{}
	}
	s := &Session{
		cfg:         cfg,
		spawner:     spawner,
		reporter:    reporter,
		queue:       event.NewQueue(),
		active:      make(map[worker.Handle]struct{}),
		maxRestarts: cfg.MaxWorkerRestarts(),
		reported:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.With(s.logger, "coordinator")
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s
}

// Stats returns the counters of the run so far
func (s *Session) Stats() Stats {
	return Stats{
		Failures:       s.countFailures,
		CrashedWorkers: s.failedWorkers,
		Summary:        s.summary,
	}
}

// Run starts the workers and processes their events until all of them are
// gone. It returns an *InterruptedError when the run was stopped early, an
// *InternalError when a worker hit a bug, and ErrNoActiveWorkers when the
// pool died out on its own. Cancelling ctx stops the run like an interrupt.
func (s *Session) Run(ctx context.Context) error {
	mode, err := scheduling.ParseMode(s.cfg.Dist)
	if err != nil {
		return err
	}
	opts := s.schedOpt
	opts.NumWorkers = s.cfg.Processors
	opts.MaxSchedChunk = s.cfg.MaxSchedChunk
	opts.Logger = s.logger
	opts.OnCollectionError = s.collectionError
	s.sched, err = scheduling.New(mode, opts)
	if err != nil {
		return err
	}

	defer s.spawner.Teardown()
	defer s.queue.Close()

	for slot := 1; slot <= s.cfg.Processors; slot++ {
		spec := worker.Spec{Slot: slot, MaxFail: s.cfg.MaxFail}
		if err := s.spawn(spec); err != nil {
			return fmt.Errorf("start worker %d: %w", slot, err)
		}
	}
	level.Info(s.logger).Log("msg", "workers started", "workers", s.cfg.Processors, "dist", mode)

	var pending error
	for !s.finished() {
		if err := s.loopOnce(ctx); err != nil {
			s.triggerShutdown()
			return err
		}
		if s.shouldStop != "" {
			s.triggerShutdown()
			pending = &InterruptedError{Reason: s.shouldStop}
		}
	}
	if s.summary != "" {
		s.reporter.Summary(s.summary)
	}
	return pending
}

func (s *Session) finished() bool {
	return s.shuttingDown && len(s.active) == 0
}

// loopOnce handles one event, or re-checks the schedule when none arrives
// within the poll interval
func (s *Session) loopOnce(ctx context.Context) error {
	for {
		if len(s.active) == 0 {
			return ErrNoActiveWorkers
		}
		if ctx.Err() != nil && s.shouldStop == "" {
			s.shouldStop = "run cancelled: " + ctx.Err().Error()
			return nil
		}

		e, err := s.queue.Poll(s.cfg.PollInterval)
		if errors.Is(err, event.ErrTimeout) {
			s.onIdle()
			continue
		}
		if err != nil {
			return err
		}

		if err := s.handle(e); err != nil {
			return err
		}
		if s.sched.Finished() {
			s.triggerShutdown()
		}
		return nil
	}
}

// onIdle releases work that only the poll loop may hand out
func (s *Session) onIdle() {
	if s.shuttingDown || !s.sched.CollectionComplete() || !s.sched.Settled() {
		return
	}
	workers := s.sched.Workers()
	if len(workers) == 0 {
		return
	}
	s.sched.CheckSchedule(workers[0], time.Second, true)
	if s.sched.Finished() {
		s.triggerShutdown()
	}
}

func (s *Session) handle(e event.Event) error {
	s.metrics.eventsHandled.WithLabelValues(e.Kind.String()).Inc()
	defer func() { s.metrics.activeWorkers.Set(float64(len(s.active))) }()

	level.Debug(s.logger).Log("msg", "event", "kind", e.Kind, "worker", workerID(e.Worker))
	switch e.Kind {
	case event.KindReady:
		return s.onReady(e.Worker)
	case event.KindCollectionFinished:
		return s.onCollectionFinished(e.Worker, e.Items)
	case event.KindCollectReport:
		s.onCollectReport(e.Worker, e.Message)
	case event.KindItemReport:
		s.onItemReport(*e.Result)
	case event.KindItemComplete:
		if err := s.sched.MarkComplete(e.Worker, e.Index, e.Duration); err != nil {
			return fmt.Errorf("complete item %d on %s: %w", e.Index, workerID(e.Worker), err)
		}
	case event.KindUnscheduled:
		if err := s.sched.RemovePendingFromWorker(e.Worker, e.Indices); err != nil {
			return fmt.Errorf("unschedule items on %s: %w", workerID(e.Worker), err)
		}
	case event.KindCrashed:
		return s.onCrashed(e.Worker, e.Err)
	case event.KindFinished:
		return s.onFinished(e.Worker)
	case event.KindInternalError:
		delete(s.active, e.Worker)
		s.reporter.InternalError(workerID(e.Worker), e.Message)
		return &InternalError{Worker: workerID(e.Worker), Message: e.Message}
	default:
		return fmt.Errorf("unknown event kind %d", int(e.Kind))
	}
	return nil
}

func (s *Session) onReady(w worker.Handle) error {
	s.reporter.WorkerReady(w)
	if s.shuttingDown {
		w.Shutdown()
		return nil
	}
	return s.sched.AddWorker(w)
}

func (s *Session) onCollectionFinished(w worker.Handle, items []string) error {
	if s.shuttingDown {
		return nil
	}
	s.reporter.CollectionFinished(w, len(items))
	if err := s.sched.AddCollection(w, items); err != nil {
		return err
	}
	if s.sched.CollectionComplete() {
		if !s.sched.HasPending() {
			s.reporter.CollectionComplete(len(items))
			level.Info(s.logger).Log("msg", "collection complete", "items", len(items), "dist", s.cfg.Dist)
		}
		s.sched.Schedule()
	}
	return nil
}

func (s *Session) onCollectReport(w worker.Handle, message string) {
	s.collectionError(workerID(w), message)
	s.handleFailure()
}

// collectionError shows each distinct collection problem once
func (s *Session) collectionError(workerID, message string) {
	if s.reported[message] {
		return
	}
	s.reported[message] = true
	s.reporter.CollectionError(workerID, message)
}

func (s *Session) onItemReport(result domain.TestResult) {
	s.reporter.ItemReport(result)
	switch {
	case result.Skipped:
		s.metrics.itemsReported.WithLabelValues("skipped").Inc()
	case result.Success:
		s.metrics.itemsReported.WithLabelValues("passed").Inc()
	default:
		s.metrics.itemsReported.WithLabelValues("failed").Inc()
		s.handleFailure()
	}
}

func (s *Session) handleFailure() {
	s.countFailures++
	if s.cfg.MaxFail > 0 && s.countFailures >= s.cfg.MaxFail && s.shouldStop == "" {
		s.shouldStop = fmt.Sprintf("stopping after %d failures", s.countFailures)
	}
}

func (s *Session) onFinished(w worker.Handle) error {
	info := w.ExitInfo()
	if info.Interrupted() {
		s.shouldStop = fmt.Sprintf("%s received keyboard-interrupt", w.ID())
		return s.onCrashed(w, errors.New("keyboard-interrupt"))
	}
	s.reporter.WorkerDown(w, nil)

	stopped := false
	for _, reason := range []string{info.FailReason, info.StopReason} {
		if reason == "" {
			continue
		}
		if s.shouldStop == "" {
			s.shouldStop = reason
		}
		stopped = true
		break
	}
	if !stopped {
		crashItem, err := s.sched.RemoveWorker(w)
		if err != nil && !errors.Is(err, scheduling.ErrUnknownWorker) {
			return err
		}
		if crashItem != "" {
			panic(fmt.Sprintf("worker %s finished with %q still to run", w.ID(), crashItem))
		}
	}
	delete(s.active, w)
	return nil
}

// onCrashed reports the item w was running as failed and starts a
// replacement while the restart budget allows it
func (s *Session) onCrashed(w worker.Handle, cause error) error {
	s.reporter.WorkerDown(w, cause)
	s.metrics.workersCrashed.Inc()

	crashItem, err := s.sched.RemoveWorker(w)
	if err != nil && !errors.Is(err, scheduling.ErrUnknownWorker) {
		return err
	}
	if crashItem != "" {
		s.reportCrashItem(w, crashItem, cause)
	}
	delete(s.active, w)

	s.failedWorkers++
	if s.maxRestarts != nil && s.failedWorkers > *s.maxRestarts {
		if *s.maxRestarts == 0 {
			s.summary = fmt.Sprintf("worker %s crashed and worker restarting disabled", w.ID())
		} else {
			s.summary = fmt.Sprintf("maximum crashed workers reached: %d", *s.maxRestarts)
		}
		s.reporter.Line(s.summary)
		s.triggerShutdown()
		return nil
	}

	if s.shouldStop != "" {
		level.Info(s.logger).Log("msg", "not replacing worker, run is stopping", "worker", w.ID(), "reason", s.shouldStop)
		return nil
	}

	s.reporter.Line(fmt.Sprintf("replacing crashed worker %s", w.ID()))
	s.shuttingDown = false
	if err := s.spawn(w.Spec().Clone()); err != nil {
		return fmt.Errorf("replace worker %s: %w", w.ID(), err)
	}
	return nil
}

func (s *Session) reportCrashItem(w worker.Handle, itemID string, cause error) {
	path, _, _ := strings.Cut(itemID, "::")
	msg := fmt.Sprintf("worker %q crashed while running %q", w.ID(), itemID)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	s.reporter.ItemReport(domain.TestResult{
		ItemID:   itemID,
		TestPath: path,
		Worker:   w.ID(),
		Crashed:  true,
		Output:   msg,
		Error:    cause,
	})
	s.metrics.itemsReported.WithLabelValues("crashed").Inc()
}

func (s *Session) spawn(spec worker.Spec) error {
	w, err := s.spawner.Spawn(spec, s.queue)
	if err != nil {
		return err
	}
	s.active[w] = struct{}{}
	s.metrics.workersSpawned.Inc()
	s.metrics.activeWorkers.Set(float64(len(s.active)))
	return nil
}

func (s *Session) triggerShutdown() {
	if s.shuttingDown {
		return
	}
	level.Debug(s.logger).Log("msg", "shutting down workers")
	s.shuttingDown = true
	for _, w := range s.sched.Workers() {
		w.Shutdown()
	}
}

func workerID(w worker.Handle) string {
	if w == nil {
		return "<none>"
	}
	return w.ID()
}
