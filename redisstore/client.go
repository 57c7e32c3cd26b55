package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/moontrade/rxredis/xstream"
)

// Client is a pooled connection to one Redis database. It implements
// xstream.Log, xstream.PubSub and xstream.Clock and is safe for concurrent
// use.
type Client struct {
	opts Options
	pool *redis.Pool
}

var (
	_ xstream.Log    = (*Client)(nil)
	_ xstream.PubSub = (*Client)(nil)
	_ xstream.Clock  = (*Client)(nil)
)

// New returns a Client. No connection is made until the first command.
func New(opts Options) *Client {
	opts = opts.withDefaults()
	c := &Client{opts: opts}
	c.pool = &redis.Pool{
		MaxIdle:     opts.MaxIdle,
		MaxActive:   opts.MaxActive,
		IdleTimeout: opts.IdleTimeout,
		Wait:        opts.MaxActive > 0,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return Dial(ctx, opts)
		},
		TestOnBorrow: func(conn redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := conn.Do("ping")
			return err
		},
	}
	return c
}

// Addr is the server address.
func (c *Client) Addr() string {
	return c.opts.Addr
}

// Close releases the pooled connections.
func (c *Client) Close() error {
	return c.pool.Close()
}

// Ping checks the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	res, err := redis.String(conn.Do("ping"))
	if err != nil {
		return err
	}
	if res != "PONG" {
		return fmt.Errorf("'PONG', got '%s'", res)
	}
	return nil
}

// ConfigureKeyspaceEvents enables keyspace notifications for flags, for
// example "K$x" or "KA".
func (c *Client) ConfigureKeyspaceEvents(ctx context.Context, flags string) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Do("config", "set", "notify-keyspace-events", flags)
	return err
}

// FlushAll deletes every key of every database.
func (c *Client) FlushAll(ctx context.Context) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Do("flushall")
	return err
}

// Publish sends message on channel and returns the number of receivers.
func (c *Client) Publish(ctx context.Context, channel, message string) (int, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	return redis.Int(conn.Do("publish", channel, message))
}

// Append adds rec to stream with XADD, trimming approximately to maxLen
// entries when maxLen is positive.
func (c *Client) Append(ctx context.Context, stream, id string, rec xstream.Record, maxLen int64) (string, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	args := make(redis.Args, 0, 5+2*len(rec))
	args = append(args, stream)
	if maxLen > 0 {
		args = append(args, "MAXLEN", "~", maxLen)
	}
	if id == "" {
		id = xstream.AutoID
	}
	args = append(args, id)
	for _, f := range rec {
		args = append(args, f.Name, f.Value)
	}
	return redis.String(conn.Do("XADD", args...))
}

// Read issues XREAD for a single stream. A nil reply, which the server sends
// when block elapses, yields no events and no error.
func (c *Client) Read(ctx context.Context, stream, after string, count int, block time.Duration) ([]xstream.Event, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	args := redis.Args{}
	if count > 0 {
		args = append(args, "COUNT", count)
	}
	timeout := time.Duration(0)
	if block > 0 {
		args = append(args, "BLOCK", block.Milliseconds())
		timeout = block + readMargin
	}
	args = append(args, "STREAMS", stream, after)
	reply, err := redis.Values(redis.DoWithTimeout(conn, timeout, "XREAD", args...))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for _, s := range reply {
		pair, err := redis.Values(s, nil)
		if err != nil {
			return nil, err
		}
		if len(pair) != 2 {
			return nil, fmt.Errorf("xread: unexpected stream reply of %d elements", len(pair))
		}
		name, err := redis.String(pair[0], nil)
		if err != nil {
			return nil, err
		}
		if name != stream {
			continue
		}
		return parseEntries(pair[1])
	}
	return nil, nil
}

// Range returns up to count entries between start and end inclusive.
// "-" and "+" denote the first and last entry.
func (c *Client) Range(ctx context.Context, stream, start, end string, count int) ([]xstream.Event, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	args := redis.Args{stream, start, end}
	if count > 0 {
		args = append(args, "COUNT", count)
	}
	reply, err := conn.Do("XRANGE", args...)
	if err != nil {
		return nil, err
	}
	return parseEntries(reply)
}

// Len returns the number of entries in stream.
func (c *Client) Len(ctx context.Context, stream string) (int64, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	return redis.Int64(conn.Do("XLEN", stream))
}

// LastEntryID reads the last entry of stream from XINFO STREAM. A missing
// stream, or one whose entries were all trimmed, is reported as not found.
func (c *Client) LastEntryID(ctx context.Context, stream string) (string, bool, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return "", false, err
	}
	defer conn.Close()
	info, err := redis.Values(conn.Do("XINFO", "STREAM", stream))
	if err != nil {
		var rerr redis.Error
		if errors.As(err, &rerr) && strings.Contains(strings.ToLower(rerr.Error()), "no such key") {
			return "", false, nil
		}
		return "", false, err
	}
	for i := 0; i+1 < len(info); i += 2 {
		key, err := redis.String(info[i], nil)
		if err != nil || key != "last-entry" {
			continue
		}
		if info[i+1] == nil {
			return "", false, nil
		}
		entry, err := redis.Values(info[i+1], nil)
		if err != nil {
			return "", false, err
		}
		if len(entry) == 0 {
			return "", false, nil
		}
		id, err := redis.String(entry[0], nil)
		if err != nil {
			return "", false, err
		}
		return id, true, nil
	}
	return "", false, nil
}

// Time returns the server clock from the TIME command.
func (c *Client) Time(ctx context.Context) (sec, usec int64, err error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer conn.Close()
	parts, err := redis.Int64s(conn.Do("TIME"))
	if err != nil {
		return 0, 0, err
	}
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("time: unexpected reply of %d elements", len(parts))
	}
	return parts[0], parts[1], nil
}

func parseEntries(reply interface{}) ([]xstream.Event, error) {
	entries, err := redis.Values(reply, nil)
	if err != nil {
		return nil, err
	}
	events := make([]xstream.Event, 0, len(entries))
	for _, e := range entries {
		entry, err := redis.Values(e, nil)
		if err != nil {
			return nil, err
		}
		if len(entry) != 2 {
			return nil, fmt.Errorf("unexpected entry of %d elements", len(entry))
		}
		id, err := redis.String(entry[0], nil)
		if err != nil {
			return nil, err
		}
		// entries deleted while still referenced by a consumer group come
		// back with a nil field list
		var flat []string
		if entry[1] != nil {
			if flat, err = redis.Strings(entry[1], nil); err != nil {
				return nil, err
			}
		}
		rec := make(xstream.Record, 0, len(flat)/2)
		for i := 0; i+1 < len(flat); i += 2 {
			rec = append(rec, xstream.Field{Name: flat[i], Value: flat[i+1]})
		}
		events = append(events, xstream.Event{ID: id, Record: rec})
	}
	return events, nil
}
