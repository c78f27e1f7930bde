package worker

import (
	"context"
	"sync"
)

type ProcessFunc[T any] func(ctx context.Context, job T) error

// ErrorFunc receives the error of a failed job.
type ErrorFunc[T any] func(job T, err error)

type WorkerPool[T any] struct {
	numWorkers int
	jobs       chan T
	processor  ProcessFunc[T]
	onError    ErrorFunc[T]
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

func NewWorkerPool[T any](numWorkers int, bufferSize int, processor ProcessFunc[T]) *WorkerPool[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &WorkerPool[T]{
		numWorkers: numWorkers,
		jobs:       make(chan T, bufferSize),
		processor:  processor,
	}
}

// OnError registers fn for failed jobs. Call before Start.
func (wp *WorkerPool[T]) OnError(fn ErrorFunc[T]) {
	wp.onError = fn
}

func (wp *WorkerPool[T]) Start(ctx context.Context) {
	for i := 1; i <= wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx)
	}
}

func (wp *WorkerPool[T]) worker(ctx context.Context) {
	defer wp.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			if err := wp.processor(ctx, job); err != nil && wp.onError != nil {
				wp.onError(job, err)
			}
		}
	}
}

// Submit queues job, blocking while the buffer is full. It gives up and
// returns false once ctx is done.
func (wp *WorkerPool[T]) Submit(ctx context.Context, job T) bool {
	select {
	case wp.jobs <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stop closes the queue and waits for workers to exit. No Submit may run
// concurrently with or after Stop.
func (wp *WorkerPool[T]) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.jobs)
	})
	wp.wg.Wait()
}
