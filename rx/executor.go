package rx

import (
	"github.com/gammazero/workerpool"
)

// Executor runs work items. Sources submit exactly one long-lived task per
// subscription, so an executor with n workers runs at most n subscriptions
// at a time; the rest wait in its queue.
//
// *workerpool.WorkerPool satisfies Executor.
type Executor interface {
	Submit(task func())
}

// Pool is a bounded Executor.
type Pool struct {
	*workerpool.WorkerPool
}

// NewPool returns an executor with at most maxWorkers concurrent tasks.
func NewPool(maxWorkers int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{WorkerPool: workerpool.New(maxWorkers)}
}

// Spawn is an unbounded Executor that starts a goroutine per task.
type Spawn struct{}

func (Spawn) Submit(task func()) {
	go task()
}
