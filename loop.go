package composer

import (
	"context"
	"sync"
	"sync/atomic"
)

var _ Scheduler = new(EventLoop)

// EventLoop is a Scheduler running all turns one after another on a single goroutine.
// Pipelines sharing an EventLoop never run two steps at the same time.
type EventLoop struct {
	ctx     context.Context
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped chan struct{}
	started atomic.Bool
}

// Returns started EventLoop.
// Loop stops when ctx is done; turns still queued at that moment are handed off
// to their own goroutines so that every started run reaches its end.
func NewEventLoop(ctx context.Context) *EventLoop {
	l := &EventLoop{
		ctx:     ctx,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}

	l.start()

	return l
}

// Queues task and returns ErrLoopStopped if EventLoop is stopped.
func (l *EventLoop) Submit(task func()) error {
	l.mu.Lock()

	if !l.started.Load() {
		l.mu.Unlock()

		return ErrLoopStopped
	}

	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	return nil
}

// Implementation of Scheduler.
// Falls back to a new goroutine once the loop is stopped.
func (l *EventLoop) Schedule(task func()) {
	if err := l.Submit(task); err != nil {
		go task()
	}
}

// returns false if EventLoop was stopped.
func (l *EventLoop) IsRunning() bool {
	return l.started.Load()
}

// Blocks until EventLoop goroutine exits.
func (l *EventLoop) Wait() {
	<-l.stopped
}

func (l *EventLoop) start() {
	if l.started.Load() {
		return
	}

	l.started.Store(true)

	go func() {
		defer close(l.stopped)

		for {
			select {
			case <-l.ctx.Done():
				l.shutdown()

				return
			case <-l.wake:
			}

			for task := l.pop(); task != nil; task = l.pop() {
				task()

				if l.ctx.Err() != nil {
					break
				}
			}
		}
	}()
}

func (l *EventLoop) pop() func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil
	}

	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]

	return task
}

func (l *EventLoop) shutdown() {
	l.mu.Lock()
	l.started.Store(false)
	pending := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, task := range pending {
		go task()
	}
}
