package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"ptd/internal/domain"
	"ptd/internal/event"
	"ptd/internal/worker"
)

// Process is a local worker: a goroutine that collects the project's tests
// and runs the items it is sent, one at a time, in the order they arrive.
type Process struct {
	spec      worker.Spec
	token     string
	sink      event.Sink
	collector Collector
	executor  Executor
	logger    log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	done   chan struct{}

	mu       sync.Mutex
	queue    []int
	shutdown bool
	exit     worker.ExitInfo
}

func newProcess(ctx context.Context, spec worker.Spec, token string, sink event.Sink, collector Collector, executor Executor, logger log.Logger) *Process {
	ctx, cancel := context.WithCancel(ctx)
	return &Process{
		spec:      spec,
		token:     token,
		sink:      sink,
		collector: collector,
		executor:  executor,
		logger:    log.With(logger, "worker", spec.ID),
		ctx:       ctx,
		cancel:    cancel,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

func (p *Process) ID() string        { return p.spec.ID }
func (p *Process) Spec() worker.Spec { return p.spec }

// Send queues items behind the ones already sent
func (p *Process) Send(indices []int) {
	p.mu.Lock()
	p.queue = append(p.queue, indices...)
	p.mu.Unlock()
	p.signal()
}

// Shutdown asks the worker to finish once its queue is empty
func (p *Process) Shutdown() {
	p.mu.Lock()
	p.shutdown = true
	p.mu.Unlock()
	p.signal()
}

func (p *Process) ShuttingDown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdown
}

func (p *Process) ExitInfo() worker.ExitInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exit
}

// Done is closed when the worker goroutine has returned
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// kill abandons the current item and stops the worker
func (p *Process) kill() {
	p.cancel()
}

func (p *Process) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// next blocks until an item is queued, the queue drained after Shutdown, or
// the worker was killed
func (p *Process) next() (int, bool) {
	for {
		p.mu.Lock()
		if len(p.queue) > 0 {
			idx := p.queue[0]
			p.queue = p.queue[1:]
			p.mu.Unlock()
			return idx, true
		}
		stop := p.shutdown
		p.mu.Unlock()
		if stop {
			return 0, false
		}

		select {
		case <-p.wake:
		case <-p.ctx.Done():
			return 0, false
		}
	}
}

func (p *Process) run() {
	defer close(p.done)
	defer p.cancel()

	p.sink.Put(event.Ready(p))

	collection, err := p.collector.Collect()
	if err != nil {
		p.sink.Put(event.InternalError(p, fmt.Sprintf("collection failed: %v", err)))
		return
	}
	for _, msg := range collection.Errors {
		p.sink.Put(event.CollectReport(p, msg))
	}
	cases := collection.Cases
	p.sink.Put(event.CollectionFinished(p, collection.IDs()))
	level.Debug(p.logger).Log("msg", "collected", "items", len(cases))

	failures := 0
	for {
		idx, ok := p.next()
		if !ok {
			break
		}
		if idx < 0 || idx >= len(cases) {
			p.sink.Put(event.InternalError(p, fmt.Sprintf("item index %d out of range (%d items)", idx, len(cases))))
			return
		}

		start := time.Now()
		result, err := p.executor.Run(p.ctx, p.job(cases[idx]))
		if err != nil {
			if p.ctx.Err() != nil {
				break
			}
			level.Warn(p.logger).Log("msg", "worker crashed", "item", cases[idx].ID(), "err", err)
			p.sink.Put(event.Crashed(p, err))
			return
		}
		p.sink.Put(event.ItemReport(p, result))
		p.sink.Put(event.ItemComplete(p, idx, time.Since(start)))

		if result.Success || result.Skipped {
			continue
		}
		failures++
		if p.spec.MaxFail > 0 && failures >= p.spec.MaxFail {
			p.finish(worker.ExitInfo{FailReason: fmt.Sprintf("stopping after %d failures", failures)})
			return
		}
	}

	if p.ctx.Err() != nil {
		p.finish(worker.ExitInfo{ExitCode: worker.ExitCodeInterrupted})
		return
	}
	p.finish(worker.ExitInfo{})
}

func (p *Process) finish(info worker.ExitInfo) {
	p.mu.Lock()
	p.exit = info
	p.mu.Unlock()
	level.Debug(p.logger).Log("msg", "worker finished", "exit_code", info.ExitCode)
	p.sink.Put(event.Finished(p))
}

func (p *Process) job(tc domain.TestCase) Job {
	return Job{
		Case:   tc,
		Worker: p.spec.ID,
		Slot:   p.spec.Slot,
		Token:  p.token,
		Env:    p.spec.Env,
	}
}
