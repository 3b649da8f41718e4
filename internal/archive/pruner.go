package archive

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type pruneTask struct {
	code  string
	uptoN int
}

// Pruner runs archive deletions off the request path. Tasks go through a
// bounded queue served by a small worker pool; when the queue is full the
// task is dropped and logged, since archive pruning is best-effort cleanup.
type Pruner struct {
	store Store
	tasks chan pruneTask
	log   *zap.Logger
	wg    sync.WaitGroup
}

func NewPruner(store Store, workers, queueSize int, log *zap.Logger) *Pruner {
	p := &Pruner{
		store: store,
		tasks: make(chan pruneTask, queueSize),
		log:   log,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Enqueue schedules deletion of archived bodies with n <= uptoN. It never
// blocks the caller.
func (p *Pruner) Enqueue(code string, uptoN int) {
	select {
	case p.tasks <- pruneTask{code: code, uptoN: uptoN}:
	default:
		p.log.Warn("prune queue full, dropping task",
			zap.String("check", code), zap.Int("upto_n", uptoN))
	}
}

func (p *Pruner) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		if err := p.store.RemoveUpTo(context.Background(), t.code, t.uptoN); err != nil {
			p.log.Warn("archive prune failed",
				zap.String("check", t.code), zap.Int("upto_n", t.uptoN), zap.Error(err))
		}
	}
}

// Stop drains the queue and waits for in-flight deletions.
func (p *Pruner) Stop() {
	close(p.tasks)
	p.wg.Wait()
}
