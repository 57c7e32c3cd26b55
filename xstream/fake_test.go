package xstream

import (
	"context"
	"errors"
	"sync"
	"time"
)

// memLog is an in-memory Log that records every read cursor.
type memLog struct {
	mu      sync.Mutex
	streams map[string][]Event
	reads   []string
	appends []appendCall
	readErr error
	// appendErr returns a non-nil error to reject an append.
	appendErr func(stream, id string) error
	metaErr   error
	wait      time.Duration
}

type appendCall struct {
	Stream string
	ID     string
	Record Record
	MaxLen int64
}

func newMemLog() *memLog {
	return &memLog{streams: make(map[string][]Event)}
}

func (m *memLog) add(stream string, ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.streams[stream] = append(m.streams[stream], Event{ID: id, Record: RecordOf("v", id)})
	}
}

func (m *memLog) Append(_ context.Context, stream, id string, rec Record, maxLen int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends = append(m.appends, appendCall{Stream: stream, ID: id, Record: rec, MaxLen: maxLen})
	if m.appendErr != nil {
		if err := m.appendErr(stream, id); err != nil {
			return "", err
		}
	}
	if id == AutoID {
		id = IDFromTime(time.UnixMilli(int64(len(m.streams[stream]) + 1)))
	}
	m.streams[stream] = append(m.streams[stream], Event{ID: id, Record: rec})
	return id, nil
}

func (m *memLog) Read(ctx context.Context, stream, after string, count int, block time.Duration) ([]Event, error) {
	m.mu.Lock()
	m.reads = append(m.reads, after)
	if m.readErr != nil {
		err := m.readErr
		m.mu.Unlock()
		return nil, err
	}
	entries := m.streams[stream]
	if after == Latest && len(entries) > 0 {
		after = entries[len(entries)-1].ID
	}
	var out []Event
	for _, ev := range entries {
		if CompareIDs(ev.ID, after) > 0 {
			out = append(out, ev)
			if len(out) == count {
				break
			}
		}
	}
	m.mu.Unlock()
	if len(out) == 0 && m.wait > 0 {
		select {
		case <-time.After(m.wait):
		case <-ctx.Done():
		}
	}
	return out, nil
}

func (m *memLog) LastEntryID(_ context.Context, stream string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.metaErr != nil {
		return "", false, m.metaErr
	}
	entries := m.streams[stream]
	if len(entries) == 0 {
		return "", false, nil
	}
	return entries[len(entries)-1].ID, true, nil
}

func (m *memLog) readCursors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.reads...)
}

func (m *memLog) appendCalls() []appendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]appendCall(nil), m.appends...)
}

// memPubSub delivers messages pushed on msgs to every subscription.
type memPubSub struct {
	msgs       chan Message
	subErr     error
	recvErr    error
	mu         sync.Mutex
	patterns   [][]string
	unsubCalls int
	closeCalls int
}

func newMemPubSub() *memPubSub {
	return &memPubSub{msgs: make(chan Message, 16)}
}

func (p *memPubSub) PSubscribe(_ context.Context, patterns ...string) (PatternSubscription, error) {
	if p.subErr != nil {
		return nil, p.subErr
	}
	p.mu.Lock()
	p.patterns = append(p.patterns, patterns)
	p.mu.Unlock()
	return &memSubscription{ps: p}, nil
}

func (p *memPubSub) counts() (unsub, closed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unsubCalls, p.closeCalls
}

type memSubscription struct {
	ps *memPubSub
}

func (s *memSubscription) Receive(timeout time.Duration) (Message, bool, error) {
	if s.ps.recvErr != nil {
		return Message{}, false, s.ps.recvErr
	}
	select {
	case msg := <-s.ps.msgs:
		return msg, true, nil
	case <-time.After(timeout):
		return Message{}, false, nil
	}
}

func (s *memSubscription) Unsubscribe() error {
	s.ps.mu.Lock()
	defer s.ps.mu.Unlock()
	s.ps.unsubCalls++
	return nil
}

func (s *memSubscription) Close() error {
	s.ps.mu.Lock()
	defer s.ps.mu.Unlock()
	s.ps.closeCalls++
	return nil
}

type fixedClock struct {
	sec, usec int64
	err       error
}

func (c fixedClock) Time(context.Context) (int64, int64, error) {
	return c.sec, c.usec, c.err
}

var errOutOfOrder = errors.New("ERR The ID specified in XADD is equal or smaller than the target stream top item")
