package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moontrade/rxredis/memredis"
	"github.com/moontrade/rxredis/redisstore"
	"github.com/moontrade/rxredis/xstream"
)

func newClient(t *testing.T, opts memredis.Options) (*redisstore.Client, *memredis.Server) {
	t.Helper()
	srv, err := memredis.Listen(opts)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	c := redisstore.New(redisstore.Options{Addr: srv.Addr(), Password: opts.Auth})
	t.Cleanup(func() { c.Close() })
	return c, srv
}

func TestAppendAndRead(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t, memredis.Options{})
	require.NoError(t, c.Ping(ctx))

	for _, id := range []string{"1-0", "2-0", "3-0"} {
		got, err := c.Append(ctx, "s", id, xstream.RecordOf("id", id, "n", "x"), 0)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}

	events, err := c.Read(ctx, "s", "1-0", 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "2-0", events[0].ID)
	assert.Equal(t, xstream.RecordOf("id", "2-0", "n", "x"), events[0].Record)

	events, err = c.Read(ctx, "s", "0", 1, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "1-0", events[0].ID)

	n, err := c.Len(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	all, err := c.Range(ctx, "s", "-", "+", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAppendOrderingError(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t, memredis.Options{})
	_, err := c.Append(ctx, "s", "5-0", xstream.RecordOf("f", "v"), 0)
	require.NoError(t, err)
	_, err = c.Append(ctx, "s", "5-0", xstream.RecordOf("f", "v"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "equal or smaller than the target stream top item")
}

func TestAppendTrims(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t, memredis.Options{})
	for i := 0; i < 20; i++ {
		_, err := c.Append(ctx, "s", xstream.AutoID, xstream.RecordOf("i", "x"), 5)
		require.NoError(t, err)
	}
	n, err := c.Len(ctx, "s")
	require.NoError(t, err)
	assert.LessOrEqual(t, n, int64(5))
}

func TestReadBlockTimeout(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t, memredis.Options{})
	start := time.Now()
	events, err := c.Read(ctx, "s", xstream.Latest, 1, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	// the connection is still usable after a server-side timeout
	_, err = c.Append(ctx, "s", xstream.AutoID, xstream.RecordOf("f", "v"), 0)
	require.NoError(t, err)
}

func TestReadBlockWakesOnAppend(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t, memredis.Options{})
	go func() {
		time.Sleep(30 * time.Millisecond)
		c.Append(ctx, "s", "9-0", xstream.RecordOf("f", "v"), 0)
	}()
	events, err := c.Read(ctx, "s", xstream.Latest, 1, 2*time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "9-0", events[0].ID)
}

func TestLastEntryID(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t, memredis.Options{})

	_, found, err := c.LastEntryID(ctx, "s")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = c.Append(ctx, "s", "4-2", xstream.RecordOf("f", "v"), 0)
	require.NoError(t, err)
	id, found, err := c.LastEntryID(ctx, "s")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "4-2", id)
}

func TestTime(t *testing.T) {
	c, _ := newClient(t, memredis.Options{})
	sec, usec, err := c.Time(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Unix(), sec, 2)
	assert.GreaterOrEqual(t, usec, int64(0))
	assert.Less(t, usec, int64(1000000))
}

func TestAuth(t *testing.T) {
	c, srv := newClient(t, memredis.Options{Auth: "secret"})
	require.NoError(t, c.Ping(context.Background()))

	bad := redisstore.New(redisstore.Options{Addr: srv.Addr(), Password: "wrong"})
	defer bad.Close()
	assert.Error(t, bad.Ping(context.Background()))
}

func TestPSubscribe(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t, memredis.Options{})

	sub, err := c.PSubscribe(ctx, "news.*")
	require.NoError(t, err)
	defer sub.Close()

	_, ok, err := sub.Receive(20 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := c.Publish(ctx, "news.eu", "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	msg, ok, err := sub.Receive(time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, xstream.Message{Pattern: "news.*", Channel: "news.eu", Data: "hello"}, msg)

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	_, _, err = sub.Receive(time.Millisecond)
	assert.ErrorIs(t, err, redisstore.ErrSubscriptionClosed)
}

func TestPSubscribeServerGone(t *testing.T) {
	c, srv := newClient(t, memredis.Options{})
	sub, err := c.PSubscribe(context.Background(), "a")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, srv.Close())
	_, _, err = sub.Receive(2 * time.Second)
	assert.Error(t, err)
}

func TestKeyspaceEvents(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t, memredis.Options{})
	require.NoError(t, c.ConfigureKeyspaceEvents(ctx, "K$"))

	sub, err := c.PSubscribe(ctx, xstream.KeyspacePattern("", "k*"))
	require.NoError(t, err)
	defer sub.Close()

	conn, err := redisstore.Dial(ctx, redisstore.Options{Addr: c.Addr()})
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Do("SET", "k1", "v")
	require.NoError(t, err)

	msg, ok, err := sub.Receive(time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "__keyspace@0__:k1", msg.Channel)
	assert.Equal(t, "set", msg.Data)
}

func TestFlushAll(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t, memredis.Options{})
	_, err := c.Append(ctx, "s", "1-0", xstream.RecordOf("f", "v"), 0)
	require.NoError(t, err)
	require.NoError(t, c.FlushAll(ctx))
	n, err := c.Len(ctx, "s")
	require.NoError(t, err)
	assert.Zero(t, n)
}
