package service

import "sync"

// WorkerPool runs submitted tasks on a fixed number of goroutines.
type WorkerPool struct {
	jobs chan func()
	wg   sync.WaitGroup
	once sync.Once
}

func NewWorkerPool(workers, queueSize int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	pool := &WorkerPool{jobs: make(chan func(), queueSize)}
	pool.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker()
	}
	return pool
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for task := range wp.jobs {
		task()
	}
}

// TrySubmit queues the task without blocking. It reports false when the
// queue is full.
func (wp *WorkerPool) TrySubmit(task func()) bool {
	select {
	case wp.jobs <- task:
		return true
	default:
		return false
	}
}

// Shutdown stops accepting work and waits for queued tasks to finish.
func (wp *WorkerPool) Shutdown() {
	wp.once.Do(func() {
		close(wp.jobs)
	})
	wp.wg.Wait()
}

// SerialQueue runs tasks one at a time in submission order on its own
// goroutine. Unlike WorkerPool it never drops a task.
type SerialQueue struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func NewSerialQueue() *SerialQueue {
	q := &SerialQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go q.loop()
	return q
}

// Go queues the task and returns immediately. Tasks submitted after Close
// are discarded.
func (q *SerialQueue) Go(task func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Do queues the task and waits for it to run. It returns without running the
// task when the queue is closed.
func (q *SerialQueue) Do(task func()) {
	done := make(chan struct{})
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.tasks = append(q.tasks, func() {
		defer close(done)
		task()
	})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-done
}

// Close stops accepting tasks and waits for the queued ones to finish.
func (q *SerialQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.done
}

func (q *SerialQueue) loop() {
	defer close(q.done)
	for {
		q.mu.Lock()
		tasks, closed := q.tasks, q.closed
		q.tasks = nil
		q.mu.Unlock()

		for _, task := range tasks {
			task()
		}
		if len(tasks) > 0 {
			continue
		}
		if closed {
			return
		}
		<-q.wake
	}
}
