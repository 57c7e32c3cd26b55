package rx

import (
	"context"
	"sync"
	"sync/atomic"
)

// Operator transforms a sequence into another sequence of the same type.
type Operator[T any] func(Observable[T]) Observable[T]

// Pipe applies ops left to right.
func (o Observable[T]) Pipe(ops ...Operator[T]) Observable[T] {
	for _, op := range ops {
		o = op(o)
	}
	return o
}

// Lift runs src with obs wrapped by wrap, sharing the subscriber's context.
// It is the building block of every operator in this package.
func Lift[In, Out any](src Observable[In], wrap func(ctx context.Context, o Observer[Out]) Observer[In]) Observable[Out] {
	return Create(func(ctx context.Context, o Observer[Out]) {
		if src.produce == nil {
			o.OnCompleted()
			return
		}
		src.produce(ctx, wrap(ctx, o))
	})
}

// Map projects every element with fn.
func Map[In, Out any](src Observable[In], fn func(In) Out) Observable[Out] {
	return Lift(src, func(_ context.Context, o Observer[Out]) Observer[In] {
		return ObserverFuncs[In]{
			Next:      func(v In) { o.OnNext(fn(v)) },
			Error:     o.OnError,
			Completed: o.OnCompleted,
		}
	})
}

// Filter keeps the elements for which keep returns true.
func Filter[T any](keep func(T) bool) Operator[T] {
	return func(src Observable[T]) Observable[T] {
		return Lift(src, func(_ context.Context, o Observer[T]) Observer[T] {
			return ObserverFuncs[T]{
				Next: func(v T) {
					if keep(v) {
						o.OnNext(v)
					}
				},
				Error:     o.OnError,
				Completed: o.OnCompleted,
			}
		})
	}
}

// Take completes after n elements.
func Take[T any](n int) Operator[T] {
	return func(src Observable[T]) Observable[T] {
		return Create(func(ctx context.Context, o Observer[T]) {
			if n <= 0 || src.produce == nil {
				o.OnCompleted()
				return
			}
			ctx, cancel := context.WithCancel(ctx)
			var seen atomic.Int64
			src.produce(ctx, ObserverFuncs[T]{
				Next: func(v T) {
					c := seen.Add(1)
					if c > int64(n) {
						return
					}
					o.OnNext(v)
					if c == int64(n) {
						o.OnCompleted()
						cancel()
					}
				},
				Error: o.OnError,
				Completed: func() {
					cancel()
					o.OnCompleted()
				},
			})
		})
	}
}

// Collect subscribes and blocks until the sequence terminates or ctx is
// done, returning every element received.
func Collect[T any](ctx context.Context, src Observable[T]) ([]T, error) {
	var (
		mu  sync.Mutex
		out []T
	)
	sub := src.Subscribe(ctx, ObserverFuncs[T]{
		Next: func(v T) {
			mu.Lock()
			out = append(out, v)
			mu.Unlock()
		},
	})
	<-sub.Done()
	err := sub.Err()
	if err == nil {
		err = ctx.Err()
	}
	mu.Lock()
	defer mu.Unlock()
	return append([]T(nil), out...), err
}

// DistinctUntilChanged drops elements equal to their predecessor.
func DistinctUntilChanged[T comparable]() Operator[T] {
	return func(src Observable[T]) Observable[T] {
		return Lift(src, func(_ context.Context, o Observer[T]) Observer[T] {
			var (
				last T
				seen bool
			)
			return ObserverFuncs[T]{
				Next: func(v T) {
					if seen && v == last {
						return
					}
					last, seen = v, true
					o.OnNext(v)
				},
				Error:     o.OnError,
				Completed: o.OnCompleted,
			}
		})
	}
}

// Buffer groups elements into windows of count, starting a new window every
// skip elements. Partial windows are flushed on completion and dropped on
// error.
func Buffer[T any](src Observable[T], count, skip int) Observable[[]T] {
	if count < 1 {
		count = 1
	}
	if skip < 1 {
		skip = count
	}
	return Lift(src, func(_ context.Context, o Observer[[]T]) Observer[T] {
		var (
			windows [][]T
			n       int
		)
		return ObserverFuncs[T]{
			Next: func(v T) {
				if n%skip == 0 {
					windows = append(windows, make([]T, 0, count))
				}
				n++
				for i := range windows {
					windows[i] = append(windows[i], v)
				}
				for len(windows) > 0 && len(windows[0]) == count {
					o.OnNext(windows[0])
					windows = windows[1:]
				}
			},
			Error: o.OnError,
			Completed: func() {
				for _, w := range windows {
					if len(w) > 0 {
						o.OnNext(w)
					}
				}
				o.OnCompleted()
			},
		}
	})
}

// CombineLatest emits the latest element of every source, in source order,
// each time one of them emits, once all of them have emitted at least once.
// It completes when every source has completed, or as soon as one completes
// without having emitted. The first error terminates it.
func CombineLatest[T any](sources ...Observable[T]) Observable[[]T] {
	return Create(func(ctx context.Context, o Observer[[]T]) {
		if len(sources) == 0 {
			o.OnCompleted()
			return
		}
		ctx, cancel := context.WithCancel(ctx)
		var (
			mu      sync.Mutex
			latest  = make([]T, len(sources))
			has     = make([]bool, len(sources))
			missing = len(sources)
			active  = len(sources)
		)
		complete := func(i int) {
			mu.Lock()
			defer mu.Unlock()
			active--
			if active == 0 || !has[i] {
				o.OnCompleted()
				cancel()
			}
		}
		for i, src := range sources {
			i := i
			if ctx.Err() != nil {
				return
			}
			if src.produce == nil {
				complete(i)
				continue
			}
			src.produce(ctx, ObserverFuncs[T]{
				Next: func(v T) {
					mu.Lock()
					defer mu.Unlock()
					latest[i] = v
					if !has[i] {
						has[i] = true
						missing--
					}
					if missing == 0 {
						o.OnNext(append([]T(nil), latest...))
					}
				},
				Error: func(err error) {
					o.OnError(err)
					cancel()
				},
				Completed: func() { complete(i) },
			})
		}
	})
}

// Last emits only the final element, then completes.
func Last[T any]() Operator[T] {
	return func(src Observable[T]) Observable[T] {
		return Lift(src, func(_ context.Context, o Observer[T]) Observer[T] {
			var (
				last T
				seen bool
			)
			return ObserverFuncs[T]{
				Next: func(v T) {
					last, seen = v, true
				},
				Error: o.OnError,
				Completed: func() {
					if seen {
						o.OnNext(last)
					}
					o.OnCompleted()
				},
			}
		})
	}
}

// Do calls fn for every element before passing it on.
func Do[T any](fn func(T)) Operator[T] {
	return Filter(func(v T) bool {
		fn(v)
		return true
	})
}
