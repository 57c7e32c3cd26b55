package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/moontrade/rxredis/logger"
	"github.com/moontrade/rxredis/xstream"
)

// ErrSubscriptionClosed is returned by Receive after Close.
var ErrSubscriptionClosed = errors.New("subscription closed")

// PSubscribe opens a dedicated connection subscribed to patterns. It returns
// once the server confirmed every pattern, so nothing published afterwards
// is missed.
//
// A redigo connection is unusable after a read timeout, so messages are read
// by a background goroutine and Receive waits on its channel instead.
func (c *Client) PSubscribe(ctx context.Context, patterns ...string) (xstream.PatternSubscription, error) {
	if len(patterns) == 0 {
		return nil, errors.New("psubscribe: no patterns")
	}
	conn, err := Dial(ctx, c.opts)
	if err != nil {
		return nil, err
	}
	psc := redis.PubSubConn{Conn: conn}
	if err := psc.PSubscribe(redis.Args{}.AddFlat(patterns)...); err != nil {
		conn.Close()
		return nil, err
	}
	for confirmed := 0; confirmed < len(patterns); {
		switch v := psc.ReceiveWithTimeout(c.opts.DialTimeout).(type) {
		case redis.Subscription:
			if v.Kind == "psubscribe" {
				confirmed++
			}
		case error:
			conn.Close()
			return nil, v
		}
	}
	s := &subscription{
		psc:  psc,
		msgs: make(chan xstream.Message, 64),
		errc: make(chan error, 1),
		done: make(chan struct{}),
	}
	go s.run()
	return s, nil
}

type subscription struct {
	psc       redis.PubSubConn
	msgs      chan xstream.Message
	errc      chan error
	done      chan struct{}
	closeOnce sync.Once
}

func (s *subscription) run() {
	for {
		switch v := s.psc.Receive().(type) {
		case redis.Message:
			select {
			case s.msgs <- xstream.Message{Pattern: v.Pattern, Channel: v.Channel, Data: string(v.Data)}:
			case <-s.done:
				return
			}
		case redis.Subscription:
			logger.Trace("kind", v.Kind, "channel", v.Channel, "count", v.Count, "pubsub subscription changed")
		case error:
			select {
			case <-s.done:
			default:
				s.errc <- v
			}
			return
		}
	}
}

// Receive waits up to timeout for the next message.
func (s *subscription) Receive(timeout time.Duration) (xstream.Message, bool, error) {
	// buffered messages are delivered before an error that followed them
	select {
	case msg := <-s.msgs:
		return msg, true, nil
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case msg := <-s.msgs:
		return msg, true, nil
	case err := <-s.errc:
		return xstream.Message{}, false, err
	case <-s.done:
		return xstream.Message{}, false, ErrSubscriptionClosed
	case <-t.C:
		return xstream.Message{}, false, nil
	}
}

// Unsubscribe drops every pattern of the subscription.
func (s *subscription) Unsubscribe() error {
	select {
	case <-s.done:
		return ErrSubscriptionClosed
	default:
	}
	if err := s.psc.PUnsubscribe(); err != nil {
		return fmt.Errorf("punsubscribe: %w", err)
	}
	return nil
}

// Close releases the connection. It is safe to call more than once.
func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.psc.Close()
	})
	return err
}
