package xstream

import (
	"strconv"
	"strings"
	"time"
)

// Stream identifiers are "<ms>-<seq>" strings assigned by the store.
const (
	// Latest reads only entries appended after the read is issued.
	Latest = "$"
	// NewOnly starts after the last entry present when the subscription
	// starts. It is resolved once against the store.
	NewOnly = ">"
	// Beginning reads the whole stream.
	Beginning = "0"
	// AutoID asks the store to assign a fresh identifier on append.
	AutoID = "*"
)

// Time returns the wall-clock time encoded in a stream identifier or in a
// pub/sub timestamp. Only the millisecond part is used. Malformed input is
// not rejected; it yields the Unix epoch.
func Time(id string) time.Time {
	if i := strings.IndexByte(id, '-'); i >= 0 {
		id = id[:i]
	}
	ms, err := strconv.ParseFloat(id, 64)
	if err != nil {
		ms = 0
	}
	return time.UnixMicro(int64(ms * 1e3)).UTC()
}

// IDFromTime returns the smallest identifier at or after t.
func IDFromTime(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10) + "-0"
}

// SplitID parses "<ms>-<seq>" or "<ms>". ok is false for anything else,
// including the sentinels.
func SplitID(id string) (ms, seq uint64, ok bool) {
	head, tail, hasSeq := strings.Cut(id, "-")
	ms, err := strconv.ParseUint(head, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if !hasSeq {
		return ms, 0, true
	}
	seq, err = strconv.ParseUint(tail, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return ms, seq, true
}

// CompareIDs orders two identifiers the way the store does. Identifiers
// that do not parse sort before every valid identifier.
func CompareIDs(a, b string) int {
	ams, aseq, aok := SplitID(a)
	bms, bseq, bok := SplitID(b)
	switch {
	case !aok && !bok:
		return strings.Compare(a, b)
	case !aok:
		return -1
	case !bok:
		return 1
	case ams != bms:
		if ams < bms {
			return -1
		}
		return 1
	case aseq != bseq:
		if aseq < bseq {
			return -1
		}
		return 1
	}
	return 0
}

// clockMillis renders a TIME reply as a millisecond timestamp string.
func clockMillis(sec, usec int64) string {
	return strconv.FormatInt(sec*1000+usec/1000, 10)
}
