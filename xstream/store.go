package xstream

import (
	"context"
	"time"
)

// Appender appends entries to a stream.
type Appender interface {
	// Append adds rec to stream under id (AutoID for a store-assigned one)
	// and returns the identifier the store recorded. maxLen > 0 caps the
	// stream approximately; the store may trim lazily.
	Append(ctx context.Context, stream, id string, rec Record, maxLen int64) (string, error)
}

// Log is the durable stream store.
type Log interface {
	Appender

	// Read returns up to count entries strictly after the identifier after,
	// waiting up to block for one to arrive. An empty result means the
	// wait timed out.
	Read(ctx context.Context, stream, after string, count int, block time.Duration) ([]Event, error)

	// LastEntryID returns the identifier of the newest entry. found is
	// false when the stream does not exist or is empty.
	LastEntryID(ctx context.Context, stream string) (id string, found bool, err error)
}

// Message is one message received on a pattern subscription.
type Message struct {
	Pattern string
	Channel string
	Data    string
}

// PatternSubscription is owned by exactly one reader.
type PatternSubscription interface {
	// Receive waits up to timeout. ok is false when nothing arrived.
	Receive(timeout time.Duration) (msg Message, ok bool, err error)
	Unsubscribe() error
	Close() error
}

// PubSub opens pattern subscriptions.
type PubSub interface {
	PSubscribe(ctx context.Context, patterns ...string) (PatternSubscription, error)
}

// Clock is the store clock.
type Clock interface {
	Time(ctx context.Context) (sec, usec int64, err error)
}
