package memredis

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/match"
	"github.com/tidwall/redcon"
)

type command func(s *Server, c *client, args []string) (interface{}, error)

var commands map[string]command

func init() {
	commands = map[string]command{
		"ping":     cmdPING,
		"echo":     cmdECHO,
		"select":   cmdSELECT,
		"flushall": cmdFLUSHALL,
		"flushdb":  cmdFLUSHDB,
		"dbsize":   cmdDBSIZE,
		"time":     cmdTIME,
		"type":     cmdTYPE,
		"exists":   cmdEXISTS,
		"set":      cmdSET,
		"get":      cmdGET,
		"del":      cmdDEL,
		"publish":  cmdPUBLISH,
		"config":   cmdCONFIG,
		"xadd":     cmdXADD,
		"xread":    cmdXREAD,
		"xlen":     cmdXLEN,
		"xrange":   cmdXRANGE,
		"xtrim":    cmdXTRIM,
		"xinfo":    cmdXINFO,
		// these only reach here on a connection that has no subscriptions
		"unsubscribe":  cmdUNSUBSCRIBE,
		"punsubscribe": cmdUNSUBSCRIBE,
	}
}

type quitReply struct{}

// replyWriter is the part of redcon.Conn used to write replies. Both
// regular and detached connections satisfy it.
type replyWriter interface {
	WriteError(msg string)
	WriteString(str string)
	WriteBulkString(bulk string)
	WriteInt(num int)
	WriteInt64(num int64)
	WriteArray(count int)
	WriteNull()
}

func writeReply(w replyWriter, v interface{}) {
	switch v := v.(type) {
	case nil:
		w.WriteNull()
	case quitReply:
		w.WriteString("OK")
	case redcon.SimpleString:
		w.WriteString(string(v))
	case string:
		w.WriteBulkString(v)
	case int:
		w.WriteInt(v)
	case int64:
		w.WriteInt64(v)
	case bool:
		if v {
			w.WriteInt(1)
		} else {
			w.WriteInt(0)
		}
	case []string:
		w.WriteArray(len(v))
		for _, s := range v {
			w.WriteBulkString(s)
		}
	case []interface{}:
		w.WriteArray(len(v))
		for _, item := range v {
			writeReply(w, item)
		}
	case error:
		w.WriteError(errorReply(v))
	default:
		w.WriteError(errorReply(ErrSyntax))
	}
}

var okReply = redcon.SimpleString("OK")

// PING [message]
// help: returns PONG, or message when given.
func cmdPING(s *Server, c *client, args []string) (interface{}, error) {
	switch len(args) {
	case 1:
		return redcon.SimpleString("PONG"), nil
	case 2:
		return args[1], nil
	}
	return nil, errWrongNumArgsFor(args[0])
}

// ECHO message
func cmdECHO(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) != 2 {
		return nil, errWrongNumArgsFor(args[0])
	}
	return args[1], nil
}

// SELECT index
// help: changes the database of the connection.
func cmdSELECT(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) != 2 {
		return nil, errWrongNumArgsFor(args[0])
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, ErrNotInteger
	}
	if n < 0 || n >= numDatabases {
		return nil, ErrDBIndex
	}
	c.db = n
	return okReply, nil
}

// FLUSHALL
// help: removes every key of every database.
func cmdFLUSHALL(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) > 2 {
		return nil, errWrongNumArgsFor(args[0])
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, db := range s.dbs {
		db.flush()
	}
	return okReply, nil
}

// FLUSHDB
// help: removes every key of the selected database.
func cmdFLUSHDB(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) > 2 {
		return nil, errWrongNumArgsFor(args[0])
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db(c).flush()
	return okReply, nil
}

// DBSIZE
func cmdDBSIZE(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) != 1 {
		return nil, errWrongNumArgsFor(args[0])
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db(c).keys.Len(), nil
}

// TIME
// help: returns the server time as unix seconds and microseconds.
func cmdTIME(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) != 1 {
		return nil, errWrongNumArgsFor(args[0])
	}
	now := s.clock.now()
	return []string{
		strconv.FormatInt(now.Unix(), 10),
		strconv.FormatInt(int64(now.Nanosecond()/1000), 10),
	}, nil
}

// TYPE key
func cmdTYPE(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) != 2 {
		return nil, errWrongNumArgsFor(args[0])
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := s.db(c).keys.Get(args[1])
	return redcon.SimpleString(typeName(v)), nil
}

// EXISTS key [key ...]
func cmdEXISTS(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, errWrongNumArgsFor(args[0])
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, key := range args[1:] {
		if _, ok := s.db(c).keys.Get(key); ok {
			n++
		}
	}
	return n, nil
}

// SET key value [NX|XX]
func cmdSET(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) < 3 {
		return nil, errWrongNumArgsFor(args[0])
	}
	var nx, xx bool
	for _, opt := range args[3:] {
		switch strings.ToLower(opt) {
		case "nx":
			nx = true
		case "xx":
			xx = true
		default:
			return nil, ErrSyntax
		}
	}
	if nx && xx {
		return nil, ErrSyntax
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	db := s.db(c)
	_, exists := db.keys.Get(args[1])
	if nx && exists || xx && !exists {
		return nil, nil
	}
	db.keys.Set(args[1], args[2])
	s.notify(db, classString, "set", args[1])
	return okReply, nil
}

// GET key
func cmdGET(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) != 2 {
		return nil, errWrongNumArgsFor(args[0])
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, found := s.db(c).keys.Get(args[1])
	if !found {
		return nil, nil
	}
	str, isString := v.(string)
	if !isString {
		return nil, ErrWrongType
	}
	return str, nil
}

// DEL key [key ...]
func cmdDEL(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, errWrongNumArgsFor(args[0])
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	db := s.db(c)
	var n int
	for _, key := range args[1:] {
		if _, deleted := db.keys.Delete(key); deleted {
			n++
			s.notify(db, classGeneric, "del", key)
		}
	}
	return n, nil
}

// PUBLISH channel message
// help: returns the number of subscriptions that received the message.
func cmdPUBLISH(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) != 3 {
		return nil, errWrongNumArgsFor(args[0])
	}
	return s.hub.publish(args[1], args[2]), nil
}

// UNSUBSCRIBE and PUNSUBSCRIBE outside of subscribed mode.
func cmdUNSUBSCRIBE(s *Server, c *client, args []string) (interface{}, error) {
	return []interface{}{args[0], nil, 0}, nil
}

// CONFIG GET|SET notify-keyspace-events [flags]
// help: only the keyspace notification setting is supported.
func cmdCONFIG(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) < 3 {
		return nil, errWrongNumArgsFor(args[0])
	}
	sub := strings.ToLower(args[1])
	param := strings.ToLower(args[2])
	switch {
	case sub == "get" && len(args) == 3:
		if !match.Match("notify-keyspace-events", param) {
			return []string{}, nil
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return []string{"notify-keyspace-events", s.notifyFlags.String()}, nil
	case sub == "set" && len(args) == 4:
		if param != "notify-keyspace-events" {
			return nil, errUnknownConfig(args[2])
		}
		flags, err := parseNotifyFlags(args[3])
		if err != nil {
			return nil, errInvalidConfig(args[2], args[3])
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.notifyFlags = flags
		return okReply, nil
	}
	return nil, errWrongNumArgsFor(args[0] + "|" + sub)
}

// XADD key [NOMKSTREAM] [MAXLEN [=|~] threshold] <*|id> field value [field value ...]
// help: appends an entry and returns its id.
func cmdXADD(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) < 5 {
		return nil, errWrongNumArgsFor(args[0])
	}
	key := args[1]
	var (
		noMkStream bool
		maxLen     = -1
		i          = 2
	)
options:
	for ; i < len(args); i++ {
		switch strings.ToLower(args[i]) {
		case "nomkstream":
			noMkStream = true
		case "maxlen":
			n, next, err := parseThreshold(args, i+1)
			if err != nil {
				return nil, err
			}
			maxLen, i = n, next-1
		default:
			break options
		}
	}
	if i >= len(args) {
		return nil, ErrSyntax
	}
	requested := args[i]
	fields := args[i+1:]
	if len(fields) == 0 || len(fields)%2 != 0 {
		return nil, errWrongNumArgsFor(args[0])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	db := s.db(c)
	st, err := db.stream(key)
	if err != nil {
		return nil, err
	}
	if st == nil {
		if noMkStream {
			return nil, nil
		}
		st = new(stream)
	}
	id, err := st.nextID(requested, uint64(s.clock.now().UnixMilli()))
	if err != nil {
		return nil, err
	}
	if st.len() == 0 {
		db.keys.Set(key, st)
	}
	st.append(id, append([]string(nil), fields...))
	db.signalAppend()
	s.notify(db, classStream, "xadd", key)
	if maxLen >= 0 && st.trim(maxLen) > 0 {
		s.notify(db, classStream, "xtrim", key)
	}
	return id.String(), nil
}

// parseThreshold reads "[=|~] n [LIMIT count]" starting at args[i] and
// returns n and the index following the option.
func parseThreshold(args []string, i int) (int, int, error) {
	if i < len(args) && (args[i] == "=" || args[i] == "~") {
		i++
	}
	if i >= len(args) {
		return 0, i, ErrSyntax
	}
	n, err := strconv.Atoi(args[i])
	if err != nil || n < 0 {
		return 0, i, ErrNotInteger
	}
	i++
	if i+1 < len(args) && strings.ToLower(args[i]) == "limit" {
		if _, err := strconv.Atoi(args[i+1]); err != nil {
			return 0, i, ErrNotInteger
		}
		i += 2
	}
	return n, i, nil
}

// XTRIM key MAXLEN [=|~] threshold
// help: returns the number of removed entries.
func cmdXTRIM(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) < 4 {
		return nil, errWrongNumArgsFor(args[0])
	}
	if strings.ToLower(args[2]) != "maxlen" {
		return nil, ErrSyntax
	}
	maxLen, next, err := parseThreshold(args, 3)
	if err != nil {
		return nil, err
	}
	if next != len(args) {
		return nil, ErrSyntax
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	db := s.db(c)
	st, err := db.stream(args[1])
	if err != nil || st == nil {
		return 0, err
	}
	n := st.trim(maxLen)
	if n > 0 {
		s.notify(db, classStream, "xtrim", args[1])
	}
	return n, nil
}

// XLEN key
func cmdXLEN(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) != 2 {
		return nil, errWrongNumArgsFor(args[0])
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.db(c).stream(args[1])
	if err != nil || st == nil {
		return 0, err
	}
	return st.len(), nil
}

// XRANGE key start end [COUNT count]
func cmdXRANGE(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) != 4 && len(args) != 6 {
		return nil, errWrongNumArgsFor(args[0])
	}
	start, err := parseRangeID(args[2], false)
	if err != nil {
		return nil, err
	}
	end, err := parseRangeID(args[3], true)
	if err != nil {
		return nil, err
	}
	count := 0
	if len(args) == 6 {
		if strings.ToLower(args[4]) != "count" {
			return nil, ErrSyntax
		}
		if count, err = strconv.Atoi(args[5]); err != nil {
			return nil, ErrNotInteger
		}
		if count <= 0 {
			return []interface{}{}, nil
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.db(c).stream(args[1])
	if err != nil {
		return nil, err
	}
	if st == nil {
		return []interface{}{}, nil
	}
	return entriesReply(st.between(start, end, count)), nil
}

// XINFO STREAM key
// help: returns the length, last generated id and boundary entries.
func cmdXINFO(s *Server, c *client, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, errWrongNumArgsFor(args[0])
	}
	if strings.ToLower(args[1]) != "stream" {
		return nil, errUnknownCommand(args)
	}
	if len(args) != 3 {
		return nil, errWrongNumArgsFor(args[0] + "|stream")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.db(c).stream(args[2])
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrNoSuchKey
	}
	var first, last interface{}
	if e, ok := st.first(); ok {
		first = e.reply()
	}
	if e, ok := st.lastEntry(); ok {
		last = e.reply()
	}
	return []interface{}{
		"length", st.len(),
		"last-generated-id", st.last.String(),
		"groups", 0,
		"first-entry", first,
		"last-entry", last,
	}, nil
}

// XREAD [COUNT count] [BLOCK milliseconds] STREAMS key [key ...] id [id ...]
// help: returns the entries after each id. With BLOCK the call waits for an
//       append when nothing is available and returns nil on timeout.
func cmdXREAD(s *Server, c *client, args []string) (interface{}, error) {
	var (
		count   int
		block   = time.Duration(-1)
		streams []string
	)
	for i := 1; i < len(args); i++ {
		switch strings.ToLower(args[i]) {
		case "count":
			if i+1 >= len(args) {
				return nil, ErrSyntax
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil {
				return nil, ErrNotInteger
			}
			count, i = n, i+1
		case "block":
			if i+1 >= len(args) {
				return nil, ErrSyntax
			}
			ms, err := strconv.ParseInt(args[i+1], 10, 64)
			if err != nil || ms < 0 {
				return nil, errBlockTimeout
			}
			block, i = time.Duration(ms)*time.Millisecond, i+1
		case "streams":
			streams = args[i+1:]
			i = len(args)
		default:
			return nil, ErrSyntax
		}
	}
	if len(streams) == 0 || len(streams)%2 != 0 {
		return nil, errUnbalancedXRead
	}
	keys := streams[:len(streams)/2]

	s.mu.Lock()
	db := s.db(c)
	after := make([]streamID, len(keys))
	for i, raw := range streams[len(keys):] {
		if raw == "$" {
			st, err := db.stream(keys[i])
			if err != nil {
				s.mu.Unlock()
				return nil, err
			}
			if st != nil {
				after[i] = st.last
			}
			continue
		}
		id, auto, err := parseStreamID(raw)
		if err != nil || auto {
			s.mu.Unlock()
			return nil, ErrInvalidStreamID
		}
		after[i] = id
	}

	var deadline <-chan time.Time
	if block > 0 {
		t := time.NewTimer(block)
		defer t.Stop()
		deadline = t.C
	}
	for {
		reply, err := readStreams(db, keys, after, count)
		if err != nil || reply != nil || block < 0 {
			s.mu.Unlock()
			return reply, err
		}
		appended := db.appended
		s.mu.Unlock()
		select {
		case <-appended:
		case <-deadline:
			return nil, nil
		case <-s.done:
			return nil, nil
		}
		s.mu.Lock()
		db = s.db(c)
	}
}

// readStreams collects the entries after each id. It returns nil when no
// stream has any. s.mu must be held.
func readStreams(db *database, keys []string, after []streamID, count int) (interface{}, error) {
	var reply []interface{}
	for i, key := range keys {
		st, err := db.stream(key)
		if err != nil {
			return nil, err
		}
		if st == nil {
			continue
		}
		entries := st.after(after[i], count)
		if len(entries) == 0 {
			continue
		}
		reply = append(reply, []interface{}{key, entriesReply(entries)})
	}
	if reply == nil {
		return nil, nil
	}
	return reply, nil
}

func entriesReply(entries []*entry) []interface{} {
	out := make([]interface{}, len(entries))
	for i, e := range entries {
		out[i] = e.reply()
	}
	return out
}
