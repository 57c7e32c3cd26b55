package xstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moontrade/rxredis/rx"
)

var testClock = fixedClock{sec: 1701423882, usec: 967000}

func collectN[T any](t *testing.T, src rx.Observable[T]) ([]T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return rx.Collect(ctx, src)
}

func TestFromPubSubTimestamps(t *testing.T) {
	ps := newMemPubSub()
	ps.msgs <- Message{Pattern: "news.*", Channel: "news.eu", Data: "hello"}
	ps.msgs <- Message{Pattern: "news.*", Channel: "news.us", Data: "world"}

	got, err := collectN(t, FromPubSub(rx.Spawn{}, ps, testClock, PubSubOptions{
		Patterns:          []string{"news.*"},
		Block:             20 * time.Millisecond,
		CompleteOnTimeout: true,
	}))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Notification{Timestamp: "1701423882967", Channel: "news.eu", Message: "hello"}, got[0])
	assert.Equal(t, "news.us", got[1].Channel)
	assert.Equal(t, time.Date(2023, 12, 1, 9, 44, 42, 967e6, time.UTC), Time(got[0].Timestamp))

	assert.Equal(t, [][]string{{"news.*"}}, ps.patterns)
	// release runs after the terminal signal
	require.Eventually(t, func() bool {
		unsub, closed := ps.counts()
		return unsub == 1 && closed == 1
	}, time.Second, time.Millisecond)
}

func TestFromPubSubReleaseOnError(t *testing.T) {
	ps := newMemPubSub()
	boom := errors.New("connection reset")
	ps.recvErr = boom

	_, err := collectN(t, FromPubSub(rx.Spawn{}, ps, testClock, PubSubOptions{Patterns: []string{"a"}}))
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "receive", te.Op)
	assert.ErrorIs(t, err, boom)

	require.Eventually(t, func() bool {
		unsub, closed := ps.counts()
		return unsub == 1 && closed == 1
	}, time.Second, time.Millisecond)
}

func TestFromPubSubReleaseOnDispose(t *testing.T) {
	ps := newMemPubSub()
	var next int
	sub := FromPubSub(rx.Spawn{}, ps, testClock, PubSubOptions{
		Patterns: []string{"a"},
		Block:    5 * time.Millisecond,
	}).Subscribe(context.Background(), rx.ObserverFuncs[Notification]{Next: func(Notification) { next++ }})

	time.Sleep(30 * time.Millisecond)
	select {
	case <-sub.Done():
		t.Fatal("idle subscription terminated")
	default:
	}
	sub.Dispose()
	sub.Dispose()

	require.Eventually(t, func() bool {
		unsub, closed := ps.counts()
		return unsub == 1 && closed == 1
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	unsub, closed := ps.counts()
	assert.Equal(t, 1, unsub)
	assert.Equal(t, 1, closed)
	assert.Zero(t, next)
}

func TestFromPubSubSubscribeFailure(t *testing.T) {
	ps := newMemPubSub()
	ps.subErr = errors.New("refused")
	_, err := collectN(t, FromPubSub(rx.Spawn{}, ps, testClock, PubSubOptions{Patterns: []string{"a", "b"}}))
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "subscribe", te.Op)
	assert.Equal(t, "a,b", te.Stream)

	unsub, closed := ps.counts()
	assert.Zero(t, unsub)
	assert.Zero(t, closed)
}

func TestFromPubSubClockFailure(t *testing.T) {
	ps := newMemPubSub()
	ps.msgs <- Message{Channel: "a", Data: "x"}
	boom := errors.New("clock")
	got, err := collectN(t, FromPubSub(rx.Spawn{}, ps, fixedClock{err: boom}, PubSubOptions{Patterns: []string{"a"}}))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, got)
}

func TestPattern(t *testing.T) {
	opts := Pattern("prices.*")
	assert.Equal(t, []string{"prices.*"}, opts.Patterns)
	assert.Zero(t, opts.Block)
	assert.False(t, opts.CompleteOnTimeout)

	ps := newMemPubSub()
	ps.msgs <- Message{Pattern: "prices.*", Channel: "prices.btc", Data: "42"}
	opts.Block = 20 * time.Millisecond
	opts.CompleteOnTimeout = true
	got, err := collectN(t, FromPubSub(rx.Spawn{}, ps, testClock, opts))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "prices.btc", got[0].Channel)
	assert.Equal(t, [][]string{{"prices.*"}}, ps.patterns)
}

func TestFromPubSubInvalidOptions(t *testing.T) {
	for name, opts := range map[string]PubSubOptions{
		"no patterns":    {},
		"empty pattern":  {Patterns: []string{""}},
		"negative block": {Patterns: []string{"a"}, Block: -time.Second},
	} {
		_, err := collectN(t, FromPubSub(rx.Spawn{}, newMemPubSub(), testClock, opts))
		assert.ErrorIs(t, err, ErrInvalidOptions, name)
	}
}
