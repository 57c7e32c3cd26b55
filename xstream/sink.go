package xstream

import (
	"context"
	"fmt"

	"github.com/moontrade/rxredis/rx"
)

// Name is resolved once per element: either a fixed string or a string
// derived from the element.
type Name[T any] struct {
	literal string
	derive  func(T) string
}

// Literal is a Name independent of the element.
func Literal[T any](s string) Name[T] {
	return Name[T]{literal: s}
}

// Derived is a Name computed from each element.
func Derived[T any](fn func(T) string) Name[T] {
	return Name[T]{derive: fn}
}

func (n Name[T]) resolve(v T) string {
	if n.derive != nil {
		return n.derive(v)
	}
	return n.literal
}

// SinkConfig configures ToStreamOf.
type SinkConfig[T any] struct {
	// Stream is the target stream.
	Stream Name[T]
	// ID is the write identifier; the zero value requests AutoID.
	ID Name[T]
	// Unstructure converts an element to the fields to write.
	Unstructure func(T) (Record, error)
	// MaxLen caps the target stream approximately. Zero means
	// DefaultMaxLen, negative means no cap.
	MaxLen int64
}

// ToStream writes every event to stream and re-emits it unchanged. With
// relayID set the event's own identifier is used for the write, otherwise
// the store assigns one.
func ToStream(log Appender, stream Name[Event], relayID bool, maxLen int64) rx.Operator[Event] {
	id := Literal[Event](AutoID)
	if relayID {
		id = Derived(func(ev Event) string { return ev.ID })
	}
	return ToStreamOf(log, SinkConfig[Event]{
		Stream:      stream,
		ID:          id,
		Unstructure: func(ev Event) (Record, error) { return ev.Record, nil },
		MaxLen:      maxLen,
	})
}

// ToStreamOf appends every element of the upstream sequence to a stream and
// forwards the element downstream after the append was attempted. When the
// append fails the element is still forwarded, then the failure terminates
// the sequence. Upstream completion and errors pass through untouched.
//
// Appends run on the upstream's worker, so a slow store slows the source.
func ToStreamOf[T any](log Appender, cfg SinkConfig[T]) rx.Operator[T] {
	maxLen := cfg.MaxLen
	switch {
	case maxLen == 0:
		maxLen = DefaultMaxLen
	case maxLen < 0:
		maxLen = 0
	}
	return func(src rx.Observable[T]) rx.Observable[T] {
		return rx.Lift(src, func(ctx context.Context, o rx.Observer[T]) rx.Observer[T] {
			return rx.ObserverFuncs[T]{
				Next: func(v T) {
					err := write(ctx, log, cfg, maxLen, v)
					o.OnNext(v)
					if err != nil {
						o.OnError(err)
					}
				},
				Error:     o.OnError,
				Completed: o.OnCompleted,
			}
		})
	}
}

func write[T any](ctx context.Context, log Appender, cfg SinkConfig[T], maxLen int64, v T) error {
	stream := cfg.Stream.resolve(v)
	id := cfg.ID.resolve(v)
	if id == "" {
		id = AutoID
	}
	if cfg.Unstructure == nil {
		return fmt.Errorf("%w: no unstructure function for %T", ErrInvalidOptions, v)
	}
	rec, err := cfg.Unstructure(v)
	if err != nil {
		return fmt.Errorf("unstructure: %w", err)
	}
	if _, err := log.Append(ctx, stream, id, rec, maxLen); err != nil {
		return transportErr("append", stream, err)
	}
	return nil
}
