package memredis

import (
	"sync"

	"github.com/tidwall/match"
	"github.com/tidwall/redcon"
)

// subscriber is a connection detached from the redcon loop after its first
// SUBSCRIBE or PSUBSCRIBE. Writes come from the connection's own goroutine
// and from publishers, so they are serialized by mu.
type subscriber struct {
	mu       sync.Mutex
	conn     redcon.DetachedConn
	client   *client
	channels map[string]struct{}
	patterns map[string]struct{}
}

func (sub *subscriber) count() int {
	return len(sub.channels) + len(sub.patterns)
}

// hub routes published messages to subscribers.
type hub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[*subscriber]struct{})}
}

func (h *hub) add(sub *subscriber) {
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// publish sends message to every subscriber of channel, once per matching
// subscription, and returns the number of deliveries.
func (h *hub) publish(channel, message string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var n int
	for sub := range h.subs {
		sub.mu.Lock()
		var wrote bool
		if _, ok := sub.channels[channel]; ok {
			sub.conn.WriteArray(3)
			sub.conn.WriteBulkString("message")
			sub.conn.WriteBulkString(channel)
			sub.conn.WriteBulkString(message)
			wrote = true
			n++
		}
		for pattern := range sub.patterns {
			if !match.Match(channel, pattern) {
				continue
			}
			sub.conn.WriteArray(4)
			sub.conn.WriteBulkString("pmessage")
			sub.conn.WriteBulkString(pattern)
			sub.conn.WriteBulkString(channel)
			sub.conn.WriteBulkString(message)
			wrote = true
			n++
		}
		if wrote {
			sub.conn.Flush()
		}
		sub.mu.Unlock()
	}
	return n
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		sub.conn.Close()
		delete(h.subs, sub)
	}
}

// subscribe detaches conn and serves it in subscribed mode until it closes.
func (s *Server) subscribe(conn redcon.Conn, c *client, args []string) {
	s.untrack(conn)
	sub := &subscriber{
		conn:     conn.Detach(),
		client:   c,
		channels: make(map[string]struct{}),
		patterns: make(map[string]struct{}),
	}
	s.hub.add(sub)
	go s.serveSubscriber(sub, args)
}

func (s *Server) serveSubscriber(sub *subscriber, first []string) {
	defer func() {
		s.hub.remove(sub)
		sub.conn.Close()
	}()
	if !s.execSubscribed(sub, first) {
		return
	}
	for {
		cmd, err := sub.conn.ReadCommand()
		if err != nil {
			return
		}
		if !s.execSubscribed(sub, commandArgs(cmd)) {
			return
		}
	}
}

// execSubscribed runs one command for a detached connection. It returns
// false when the connection should be closed. Once every subscription is
// dropped the connection accepts regular commands again.
func (s *Server) execSubscribed(sub *subscriber, args []string) bool {
	sub.mu.Lock()
	subscribed := sub.count() > 0
	sub.mu.Unlock()
	switch args[0] {
	case "subscribe", "psubscribe", "unsubscribe", "punsubscribe":
	default:
		if !subscribed {
			// nothing is published to a connection without subscriptions
			ok := s.exec(sub.conn, sub.conn.RemoteAddr(), sub.client, args)
			sub.conn.Flush()
			return ok
		}
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	defer sub.conn.Flush()
	w := sub.conn
	switch args[0] {
	case "subscribe", "psubscribe":
		if len(args) < 2 {
			w.WriteError(errorReply(errWrongNumArgsFor(args[0])))
			return true
		}
		set := sub.channels
		if args[0] == "psubscribe" {
			set = sub.patterns
		}
		for _, name := range args[1:] {
			set[name] = struct{}{}
			writeSubscription(w, args[0], name, sub.count())
		}
	case "unsubscribe", "punsubscribe":
		set := sub.channels
		if args[0] == "punsubscribe" {
			set = sub.patterns
		}
		names := args[1:]
		if len(names) == 0 {
			for name := range set {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			w.WriteArray(3)
			w.WriteBulkString(args[0])
			w.WriteNull()
			w.WriteInt(sub.count())
		}
		for _, name := range names {
			delete(set, name)
			writeSubscription(w, args[0], name, sub.count())
		}
	case "ping":
		w.WriteArray(2)
		w.WriteBulkString("pong")
		if len(args) > 1 {
			w.WriteBulkString(args[1])
		} else {
			w.WriteBulkString("")
		}
	case "quit":
		w.WriteString("OK")
		return false
	default:
		w.WriteError(errorReply(errSubscribedContext(args[0])))
	}
	return true
}

func writeSubscription(w replyWriter, kind, name string, count int) {
	w.WriteArray(3)
	w.WriteBulkString(kind)
	w.WriteBulkString(name)
	w.WriteInt(count)
}
