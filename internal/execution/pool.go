// Package execution runs workers as goroutines of the controller process.
package execution

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"ptd/internal/config"
	"ptd/internal/event"
	"ptd/internal/logging"
	"ptd/internal/worker"
)

// Pool starts local workers and tears them down at the end of a run
type Pool struct {
	config    *config.Config
	ctx       context.Context
	collector Collector
	executor  Executor
	logger    log.Logger

	mu    sync.Mutex
	next  int
	procs []*Process
	wg    sync.WaitGroup
}

// NewPool creates a Pool. Cancelling ctx interrupts every worker.
func NewPool(ctx context.Context, cfg *config.Config, collector Collector, executor Executor, logger log.Logger) *Pool {
	return &Pool{
		config:    cfg,
		ctx:       ctx,
		collector: collector,
		executor:  executor,
		logger:    logging.With(logger, "pool"),
	}
}

// Spawn starts a worker for spec. Workers without an identity get the next
// free "gw<N>"; every worker gets a fresh session token.
func (p *Pool) Spawn(spec worker.Spec, sink event.Sink) (worker.Handle, error) {
	if err := p.ctx.Err(); err != nil {
		return nil, fmt.Errorf("pool stopped: %w", err)
	}

	p.mu.Lock()
	if spec.ID == "" {
		spec.ID = fmt.Sprintf("gw%d", p.next)
		p.next++
	}
	proc := newProcess(p.ctx, spec, uuid.NewString(), sink, p.collector, p.executor, p.logger)
	p.procs = append(p.procs, proc)
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		proc.run()
	}()
	level.Debug(p.logger).Log("msg", "worker spawned", "worker", spec.ID, "slot", spec.Slot)
	return proc, nil
}

// Teardown stops every worker still running and waits for all of them
func (p *Pool) Teardown() {
	p.mu.Lock()
	procs := p.procs
	p.mu.Unlock()

	for _, proc := range procs {
		proc.kill()
	}
	p.wg.Wait()
	level.Debug(p.logger).Log("msg", "pool torn down", "workers", len(procs))
}
