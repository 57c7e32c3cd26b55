package xstream

import (
	"strings"

	"github.com/moontrade/rxredis/rx"
)

// KeyspacePattern is the notification channel pattern of key in db.
func KeyspacePattern(db, key string) string {
	if db == "" {
		db = DefaultKeyspaceDB
	}
	return keyspaceChannelBase + db + "__:" + key
}

// OnKeyspace emits a KeyEvent for every keyspace notification about keys.
// The store must have keyspace notifications enabled.
func OnKeyspace(exec rx.Executor, ps PubSub, clock Clock, keys []string, opts KeyspaceOptions) rx.Observable[KeyEvent] {
	patterns := make([]string, len(keys))
	for i, key := range keys {
		patterns[i] = KeyspacePattern(opts.DB, key)
	}
	src := FromPubSub(exec, ps, clock, PubSubOptions{
		Patterns:          patterns,
		Block:             opts.Block,
		CompleteOnTimeout: opts.CompleteOnTimeout,
	})
	return rx.Map(src, ParseKeyEvent)
}

// ParseKeyEvent takes the key from the text after the last ':' of the
// channel and the event from the text after the last ':' of the message.
// Input without a ':' is passed through whole; nothing is validated.
func ParseKeyEvent(n Notification) KeyEvent {
	return KeyEvent{
		Timestamp: n.Timestamp,
		Key:       afterLast(n.Channel, ':'),
		Event:     afterLast(n.Message, ':'),
	}
}

func afterLast(s string, sep byte) string {
	return s[strings.LastIndexByte(s, sep)+1:]
}
