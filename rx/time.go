package rx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrPeriod is returned for a non-positive interval or window.
var ErrPeriod = errors.New("non-positive period")

// Interval emits 0, 1, 2, ... once every period on exec. It never completes.
func Interval(exec Executor, period time.Duration) Observable[int] {
	return Create(func(ctx context.Context, o Observer[int]) {
		if period <= 0 {
			o.OnError(fmt.Errorf("%w: %v", ErrPeriod, period))
			return
		}
		exec.Submit(func() {
			ticker := time.NewTicker(period)
			defer ticker.Stop()
			for i := 0; ; i++ {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				o.OnNext(i)
			}
		})
	})
}

// BufferTime groups the elements of src into consecutive windows of the
// given length. Every window is emitted, empty ones included. The window
// timer runs on exec. On completion a non-empty pending window is flushed;
// on error it is dropped.
func BufferTime[T any](exec Executor, src Observable[T], window time.Duration) Observable[[]T] {
	return Create(func(ctx context.Context, o Observer[[]T]) {
		if window <= 0 {
			o.OnError(fmt.Errorf("%w: %v", ErrPeriod, window))
			return
		}
		ctx, cancel := context.WithCancel(ctx)
		var (
			mu      sync.Mutex
			pending []T
			stopped bool
		)
		exec.Submit(func() {
			ticker := time.NewTicker(window)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				mu.Lock()
				if !stopped {
					w := pending
					if w == nil {
						w = []T{}
					}
					pending = nil
					o.OnNext(w)
				}
				mu.Unlock()
			}
		})
		if src.produce == nil {
			mu.Lock()
			stopped = true
			mu.Unlock()
			o.OnCompleted()
			cancel()
			return
		}
		src.produce(ctx, ObserverFuncs[T]{
			Next: func(v T) {
				mu.Lock()
				if !stopped {
					pending = append(pending, v)
				}
				mu.Unlock()
			},
			Error: func(err error) {
				mu.Lock()
				stopped, pending = true, nil
				mu.Unlock()
				o.OnError(err)
				cancel()
			},
			Completed: func() {
				mu.Lock()
				defer mu.Unlock()
				stopped = true
				if len(pending) > 0 {
					o.OnNext(pending)
				}
				pending = nil
				o.OnCompleted()
				cancel()
			},
		})
	})
}
