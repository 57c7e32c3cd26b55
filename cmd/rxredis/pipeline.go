package main

import (
	"context"
	"time"

	"github.com/moontrade/rxredis/logger"
	"github.com/moontrade/rxredis/rx"
	"github.com/moontrade/rxredis/xstream"
)

// drain runs src until it terminates or ctx is done, calling each for every
// element. Interruption is not an error: Err is nil once ctx is done.
func drain[T any](ctx context.Context, src rx.Observable[T], each func(T)) error {
	sub := src.Subscribe(ctx, rx.ObserverFuncs[T]{Next: each})
	<-sub.Done()
	return sub.Err()
}

// marbleProducer writes every marble of diagram to stream as a "marble"
// field with a store assigned identifier.
func marbleProducer(e *env, stream, diagram string, tick time.Duration) rx.Observable[xstream.Event] {
	events := rx.Map(rx.Marbles(e.pool, diagram, tick), func(m string) xstream.Event {
		return xstream.Event{Record: xstream.RecordOf("marble", m)}
	})
	return events.Pipe(xstream.ToStream(e.client, xstream.Literal[xstream.Event](stream), false, cfg.Sink.MaxLen))
}

func logEvent(msg string) func(xstream.Event) {
	return func(ev xstream.Event) {
		logger.Info("id", ev.ID, "fields", ev.Record.Map(), msg)
	}
}
