package multicaster

import (
	"context"
	"sync"

	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
)

// Task is one unit of delivery work: the full ordered subscriber chain for one
// published event.
type Task func(ctx context.Context)

// Executor decides where delivery runs. It is chosen once, when the
// multicaster is built.
type Executor interface {
	Execute(ctx context.Context, task Task) error
}

// SyncExecutor runs delivery on the publishing goroutine. Publish returns only
// after every subscriber has finished.
type SyncExecutor struct{}

func (SyncExecutor) Execute(ctx context.Context, task Task) error {
	task(ctx)
	return nil
}

// PoolExecutor runs delivery on a fixed set of worker goroutines. Each task is
// executed by exactly one worker, so subscriber order within one event is kept;
// tasks of different events may run concurrently.
type PoolExecutor struct {
	tasks chan queuedTask
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

type queuedTask struct {
	ctx  context.Context
	task Task
}

// NewPoolExecutor starts workers goroutines consuming a queue of queueSize
// pending tasks. Non-positive arguments fall back to one worker and an
// unbuffered queue.
func NewPoolExecutor(workers, queueSize int) *PoolExecutor {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &PoolExecutor{tasks: make(chan queuedTask, queueSize)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

// workerKey marks contexts handed to tasks by a pool's workers.
type workerKey struct{}

func (p *PoolExecutor) work() {
	defer p.wg.Done()
	for qt := range p.tasks {
		qt.task(context.WithValue(qt.ctx, workerKey{}, p))
	}
}

// Execute enqueues task. It blocks while the queue is full and gives up when
// ctx is done. The task runs with a context detached from ctx cancellation so
// the publisher returning does not abort delivery.
//
// A task submitted from one of this pool's own workers, such as a subscriber
// publishing a follow-up event, runs inline on that worker. Queueing it could
// wait forever on a pool whose workers are all busy publishing.
func (p *PoolExecutor) Execute(ctx context.Context, task Task) error {
	if owner, _ := ctx.Value(workerKey{}).(*PoolExecutor); owner == p {
		task(ctx)
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errspkg.ErrExecutorClosed
	}
	select {
	case p.tasks <- queuedTask{ctx: context.WithoutCancel(ctx), task: task}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (p *PoolExecutor) Close() error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
	})
	p.wg.Wait()
	return nil
}
