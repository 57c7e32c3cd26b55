package rx

import (
	"context"
	"errors"
	"time"
)

// ErrMarble is the error emitted by '#' in a marble diagram.
var ErrMarble = errors.New("marble error")

// Marbles plays a diagram such as "1-2-3-|" on exec. Every '-' waits one
// tick, '|' completes, '#' fails with ErrMarble and any other run of
// characters is emitted as one value. Spaces are ignored. A diagram without
// a terminal marker never completes.
func Marbles(exec Executor, diagram string, tick time.Duration) Observable[string] {
	return Create(func(ctx context.Context, o Observer[string]) {
		exec.Submit(func() {
			playMarbles(ctx, diagram, tick, o)
		})
	})
}

func playMarbles(ctx context.Context, diagram string, tick time.Duration, o Observer[string]) {
	wait := func() bool {
		timer := time.NewTimer(tick)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		}
	}
	start := -1
	for i := 0; i <= len(diagram); i++ {
		var c byte
		if i < len(diagram) {
			c = diagram[i]
		}
		switch c {
		case '-', '|', '#', ' ', 0:
			if start >= 0 {
				o.OnNext(diagram[start:i])
				start = -1
			}
		default:
			if start < 0 {
				start = i
			}
			continue
		}
		if ctx.Err() != nil {
			return
		}
		switch c {
		case '-':
			if !wait() {
				return
			}
		case '|':
			o.OnCompleted()
			return
		case '#':
			o.OnError(ErrMarble)
			return
		}
	}
	<-ctx.Done()
}
