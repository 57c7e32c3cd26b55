package memredis

import (
	"strconv"
	"strings"

	"github.com/tidwall/rhh"
)

const numDatabases = 16

// database holds the keys of one logical database. Values are either a
// string or a *stream.
type database struct {
	index int
	keys  *rhh.Map
	// appended is closed and replaced after every stream append so blocked
	// readers can re-check their streams.
	appended chan struct{}
}

func newDatabase(index int) *database {
	return &database{
		index:    index,
		keys:     rhh.New(0),
		appended: make(chan struct{}),
	}
}

func (db *database) flush() int {
	n := db.keys.Len()
	db.keys = rhh.New(0)
	return n
}

func (db *database) signalAppend() {
	close(db.appended)
	db.appended = make(chan struct{})
}

func (db *database) stream(key string) (*stream, error) {
	v, ok := db.keys.Get(key)
	if !ok {
		return nil, nil
	}
	st, ok := v.(*stream)
	if !ok {
		return nil, ErrWrongType
	}
	return st, nil
}

func typeName(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case *stream:
		return "stream"
	}
	return "none"
}

// Keyspace event classes, as accepted by notify-keyspace-events.
const (
	classGeneric = 'g'
	classString  = '$'
	classStream  = 't'
)

type notifyFlags struct {
	keyspace bool
	keyevent bool
	classes  string
}

func parseNotifyFlags(s string) (notifyFlags, error) {
	var f notifyFlags
	for _, c := range s {
		switch c {
		case 'K':
			f.keyspace = true
		case 'E':
			f.keyevent = true
		case 'A':
			f.classes += "g$lshzxet"
		case 'g', '$', 'l', 's', 'h', 'z', 'x', 'e', 't', 'm', 'd', 'n':
			f.classes += string(c)
		default:
			return notifyFlags{}, ErrSyntax
		}
	}
	return f, nil
}

func (f notifyFlags) String() string {
	var sb strings.Builder
	if f.keyspace {
		sb.WriteByte('K')
	}
	if f.keyevent {
		sb.WriteByte('E')
	}
	seen := make(map[rune]bool)
	for _, c := range f.classes {
		if !seen[c] {
			seen[c] = true
			sb.WriteRune(c)
		}
	}
	return sb.String()
}

func (f notifyFlags) enabled(class byte) bool {
	return (f.keyspace || f.keyevent) && strings.IndexByte(f.classes, class) >= 0
}

// notify publishes the keyspace and keyevent messages of event on key.
// s.mu must be held.
func (s *Server) notify(db *database, class byte, event, key string) {
	flags := s.notifyFlags
	if !flags.enabled(class) {
		return
	}
	idx := strconv.Itoa(db.index)
	if flags.keyspace {
		s.hub.publish("__keyspace@"+idx+"__:"+key, event)
	}
	if flags.keyevent {
		s.hub.publish("__keyevent@"+idx+"__:"+event, key)
	}
}
