package xstream

import (
	"context"
	"strings"

	"github.com/moontrade/rxredis/logger"
	"github.com/moontrade/rxredis/rx"
)

// FromPubSub turns a pattern subscription into a lazy sequence of
// notifications stamped with the store clock. The subscription is opened
// when the sequence is subscribed and released exactly once when its
// polling task exits, whatever the reason.
func FromPubSub(exec rx.Executor, ps PubSub, clock Clock, opts PubSubOptions) rx.Observable[Notification] {
	return rx.Create(func(ctx context.Context, o rx.Observer[Notification]) {
		opts, err := opts.withDefaults()
		if err != nil {
			o.OnError(err)
			return
		}
		exec.Submit(func() {
			pollPubSub(ctx, ps, clock, opts, o)
		})
	})
}

func pollPubSub(ctx context.Context, ps PubSub, clock Clock, opts PubSubOptions, o rx.Observer[Notification]) {
	patterns := strings.Join(opts.Patterns, ",")
	sub, err := ps.PSubscribe(ctx, opts.Patterns...)
	if err != nil {
		o.OnError(transportErr("subscribe", patterns, err))
		return
	}
	logger.Debug("patterns", opts.Patterns, "block", opts.Block, "pubsub subscribed")
	defer release(sub, patterns)

	for ctx.Err() == nil {
		msg, ok, err := sub.Receive(opts.Block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WarnErr(err, "patterns", opts.Patterns, "pubsub receive failed")
			o.OnError(transportErr("receive", patterns, err))
			return
		}
		if !ok {
			if opts.CompleteOnTimeout {
				o.OnCompleted()
				return
			}
			continue
		}
		sec, usec, err := clock.Time(ctx)
		if err != nil {
			o.OnError(transportErr("time", "", err))
			return
		}
		o.OnNext(Notification{
			Timestamp: clockMillis(sec, usec),
			Channel:   msg.Channel,
			Message:   msg.Data,
		})
	}
}

func release(sub PatternSubscription, patterns string) {
	if err := sub.Unsubscribe(); err != nil {
		logger.Debug(err, "patterns", patterns, "pubsub unsubscribe failed")
	}
	if err := sub.Close(); err != nil {
		logger.Debug(err, "patterns", patterns, "pubsub close failed")
	}
	logger.Debug("patterns", patterns, "pubsub released")
}
