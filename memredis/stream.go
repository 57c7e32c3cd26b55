package memredis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/tinybtree"
)

type streamID struct {
	ms, seq uint64
}

func (id streamID) String() string {
	return strconv.FormatUint(id.ms, 10) + "-" + strconv.FormatUint(id.seq, 10)
}

func (id streamID) less(other streamID) bool {
	return id.ms < other.ms || id.ms == other.ms && id.seq < other.seq
}

// key is the btree key of id. Zero padding keeps keys in id order.
func (id streamID) key() string {
	return fmt.Sprintf("%020d-%020d", id.ms, id.seq)
}

// parseStreamID parses "ms", "ms-seq" or "ms-*". A missing sequence is
// reported as seq 0 and autoSeq false; "ms-*" sets autoSeq.
func parseStreamID(s string) (id streamID, autoSeq bool, err error) {
	head, tail, hasSeq := strings.Cut(s, "-")
	id.ms, err = strconv.ParseUint(head, 10, 64)
	if err != nil {
		return id, false, ErrInvalidStreamID
	}
	if !hasSeq {
		return id, false, nil
	}
	if tail == "*" {
		return id, true, nil
	}
	id.seq, err = strconv.ParseUint(tail, 10, 64)
	if err != nil {
		return id, false, ErrInvalidStreamID
	}
	return id, false, nil
}

// parseRangeID parses an XRANGE bound: "-", "+", or an id whose missing
// sequence defaults to the low or high end.
func parseRangeID(s string, high bool) (streamID, error) {
	switch s {
	case "-":
		return streamID{}, nil
	case "+":
		return streamID{ms: ^uint64(0), seq: ^uint64(0)}, nil
	}
	id, auto, err := parseStreamID(s)
	if err != nil || auto {
		return streamID{}, ErrInvalidStreamID
	}
	if high && !strings.Contains(s, "-") {
		id.seq = ^uint64(0)
	}
	return id, nil
}

type entry struct {
	id     streamID
	fields []string
}

func (e *entry) reply() []interface{} {
	fields := make([]interface{}, len(e.fields))
	for i, f := range e.fields {
		fields[i] = f
	}
	return []interface{}{e.id.String(), fields}
}

// stream is an append-only log of entries ordered by id.
type stream struct {
	entries tinybtree.BTree
	last    streamID
}

func (s *stream) len() int {
	return s.entries.Len()
}

// nextID resolves the id requested by XADD against the stream top and the
// server clock.
func (s *stream) nextID(requested string, nowMS uint64) (streamID, error) {
	if requested == "*" {
		if nowMS > s.last.ms {
			return streamID{ms: nowMS}, nil
		}
		return streamID{ms: s.last.ms, seq: s.last.seq + 1}, nil
	}
	id, autoSeq, err := parseStreamID(requested)
	if err != nil {
		return id, err
	}
	if autoSeq {
		switch {
		case id.ms < s.last.ms:
			return id, ErrStreamIDTooSmall
		case id.ms == s.last.ms && s.last != (streamID{}):
			id.seq = s.last.seq + 1
		case id.ms == 0:
			id.seq = 1
		}
		return id, nil
	}
	if id.ms == 0 && id.seq == 0 {
		return id, ErrStreamIDZero
	}
	if !s.last.less(id) {
		return id, ErrStreamIDTooSmall
	}
	return id, nil
}

func (s *stream) append(id streamID, fields []string) {
	s.entries.Set(id.key(), &entry{id: id, fields: fields})
	s.last = id
}

// trim removes the oldest entries until at most maxLen remain and returns
// how many were removed.
func (s *stream) trim(maxLen int) int {
	n := s.len() - maxLen
	if n <= 0 {
		return 0
	}
	keys := make([]string, 0, n)
	s.entries.Scan(func(key string, _ interface{}) bool {
		keys = append(keys, key)
		return len(keys) < n
	})
	for _, key := range keys {
		s.entries.Delete(key)
	}
	return len(keys)
}

// after returns up to count entries with an id greater than id. A count
// of zero or less means no limit.
func (s *stream) after(id streamID, count int) []*entry {
	var out []*entry
	pivot := id.key()
	s.entries.Ascend(pivot, func(key string, value interface{}) bool {
		if key == pivot {
			return true
		}
		out = append(out, value.(*entry))
		return count <= 0 || len(out) < count
	})
	return out
}

// between returns up to count entries with start <= id <= end.
func (s *stream) between(start, end streamID, count int) []*entry {
	var out []*entry
	s.entries.Ascend(start.key(), func(_ string, value interface{}) bool {
		e := value.(*entry)
		if end.less(e.id) {
			return false
		}
		out = append(out, e)
		return count <= 0 || len(out) < count
	})
	return out
}

func (s *stream) first() (*entry, bool) {
	var first *entry
	s.entries.Scan(func(_ string, value interface{}) bool {
		first = value.(*entry)
		return false
	})
	return first, first != nil
}

func (s *stream) lastEntry() (*entry, bool) {
	if s.len() == 0 {
		return nil, false
	}
	v, ok := s.entries.Get(s.last.key())
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}
