package xstream

import (
	"context"

	"github.com/moontrade/rxredis/logger"
	"github.com/moontrade/rxredis/rx"
)

// FromStream turns a stream into a lazy sequence of its entries. Every
// subscription owns one polling task on exec with its own cursor; separate
// subscriptions never coordinate.
//
// The loop issues one blocking read per iteration. An empty read completes
// the sequence when CompleteOnTimeout is set and is otherwise ignored. Store
// errors terminate the sequence with a *TransportError.
func FromStream(exec rx.Executor, log Log, opts StreamOptions) rx.Observable[Event] {
	return rx.Create(func(ctx context.Context, o rx.Observer[Event]) {
		opts, err := opts.withDefaults()
		if err != nil {
			o.OnError(err)
			return
		}
		exec.Submit(func() {
			pollStream(ctx, log, opts, o)
		})
	})
}

func pollStream(ctx context.Context, log Log, opts StreamOptions, o rx.Observer[Event]) {
	cursor, err := ResolveStart(ctx, log, opts.Stream, opts.StartID)
	if err != nil {
		o.OnError(err)
		return
	}
	logger.Debug("stream", opts.Stream, "cursor", cursor, "batch", opts.Batch,
		"block", opts.Block, "stream subscribed")
	defer func() {
		logger.Debug("stream", opts.Stream, "cursor", cursor, "stream released")
	}()

	for ctx.Err() == nil {
		batch, err := log.Read(ctx, opts.Stream, cursor, opts.Batch, opts.Block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WarnErr(err, "stream", opts.Stream, "cursor", cursor, "stream read failed")
			o.OnError(transportErr("read", opts.Stream, err))
			return
		}
		if len(batch) == 0 {
			if opts.CompleteOnTimeout {
				o.OnCompleted()
				return
			}
			continue
		}

		emit := batch
		if opts.LatestOnly {
			emit = batch[len(batch)-1:]
		}
		for _, ev := range emit {
			if ctx.Err() != nil {
				return
			}
			o.OnNext(ev)
		}
		cursor = batch[len(batch)-1].ID
	}
}

// ResolveStart turns NewOnly into the identifier of the current last entry,
// or Beginning for a missing stream; other starts are returned unchanged.
// The lookup races with concurrent writers: an entry appended between the
// lookup and the first read may be skipped or delivered depending on timing.
// Callers that also write to stream can resolve first and pass the result as
// StartID to order their writes after the cursor.
func ResolveStart(ctx context.Context, log Log, stream, start string) (string, error) {
	if start != NewOnly {
		return start, nil
	}
	id, found, err := log.LastEntryID(ctx, stream)
	if err != nil {
		return "", transportErr("metadata", stream, err)
	}
	if !found {
		return Beginning, nil
	}
	return id, nil
}
