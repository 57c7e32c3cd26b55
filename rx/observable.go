// Package rx is a small push-based sequence abstraction. An Observable is
// lazy: nothing runs until Subscribe, and every subscription gets its own
// producer. Cancellation is cooperative through the context handed to the
// producer.
package rx

import (
	"context"
	"sync"
)

// Observer receives the elements of a sequence followed by at most one
// terminal signal.
type Observer[T any] interface {
	OnNext(v T)
	OnError(err error)
	OnCompleted()
}

// ObserverFuncs adapts plain functions to an Observer. Nil funcs are ignored.
type ObserverFuncs[T any] struct {
	Next      func(T)
	Error     func(error)
	Completed func()
}

func (o ObserverFuncs[T]) OnNext(v T) {
	if o.Next != nil {
		o.Next(v)
	}
}

func (o ObserverFuncs[T]) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

func (o ObserverFuncs[T]) OnCompleted() {
	if o.Completed != nil {
		o.Completed()
	}
}

// Producer drives a sequence. It must return promptly once ctx is done and
// must not call the observer after a terminal signal.
type Producer[T any] func(ctx context.Context, o Observer[T])

// Observable is a lazily produced sequence of T.
type Observable[T any] struct {
	produce Producer[T]
}

// Create returns an Observable that runs produce once per subscription.
func Create[T any](produce Producer[T]) Observable[T] {
	return Observable[T]{produce: produce}
}

// Subscribe starts the sequence. The returned Subscription is done after the
// first terminal signal or after Dispose, whichever comes first. Cancelling
// ctx is equivalent to Dispose.
func (o Observable[T]) Subscribe(ctx context.Context, obs Observer[T]) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{cancel: cancel, done: make(chan struct{})}
	so := &safeObserver[T]{obs: obs, sub: s, ctx: ctx}
	context.AfterFunc(ctx, func() { s.finish(nil) })
	if o.produce == nil {
		so.OnCompleted()
		return s
	}
	o.produce(ctx, so)
	return s
}

// Subscription is the handle of one running sequence.
type Subscription struct {
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
	err    error
}

// Dispose cancels the producer. It is safe to call more than once.
func (s *Subscription) Dispose() {
	s.cancel()
	s.finish(nil)
}

// Done is closed once the subscription has terminated or been disposed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the error the sequence terminated with, if any. It is only
// meaningful after Done is closed.
func (s *Subscription) Err() error {
	<-s.done
	return s.err
}

func (s *Subscription) finish(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

// safeObserver serializes calls and drops anything after a terminal signal
// or after the subscription was cancelled.
type safeObserver[T any] struct {
	mu      sync.Mutex
	obs     Observer[T]
	sub     *Subscription
	ctx     context.Context
	stopped bool
}

func (so *safeObserver[T]) OnNext(v T) {
	so.mu.Lock()
	defer so.mu.Unlock()
	if so.stopped || so.ctx.Err() != nil {
		return
	}
	so.obs.OnNext(v)
}

func (so *safeObserver[T]) OnError(err error) {
	so.mu.Lock()
	defer so.mu.Unlock()
	if so.stopped || so.ctx.Err() != nil {
		return
	}
	so.stopped = true
	so.obs.OnError(err)
	so.sub.finish(err)
	so.sub.cancel()
}

func (so *safeObserver[T]) OnCompleted() {
	so.mu.Lock()
	defer so.mu.Unlock()
	if so.stopped || so.ctx.Err() != nil {
		return
	}
	so.stopped = true
	so.obs.OnCompleted()
	so.sub.finish(nil)
	so.sub.cancel()
}
