package extraction

import (
	"context"
	"errors"
	"sync"

	"github.com/LLMontreal/llmontreal-backend/internal/logger"
)

// ErrQueueFull is returned by Submit when the task buffer is at capacity.
var ErrQueueFull = errors.New("extraction queue is full")

// Pool runs extraction tasks on a fixed number of workers with a bounded
// queue, so a burst of archive uploads cannot spawn unbounded goroutines.
type Pool struct {
	tasks   chan func()
	workers int
	wg      sync.WaitGroup
}

func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		tasks:   make(chan func(), queueSize),
		workers: workers,
	}
}

// Start launches the workers. They drain the queue until ctx is canceled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task, ok := <-p.tasks:
					if !ok {
						return
					}
					task()
				}
			}
		}(i)
	}
	logger.Info("extraction pool started", "workers", p.workers, "queue_size", cap(p.tasks))
}

// Submit enqueues a task without blocking.
func (p *Pool) Submit(task func()) error {
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}
