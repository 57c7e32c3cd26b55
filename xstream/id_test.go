package xstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTime(t *testing.T) {
	want := time.Date(2023, 12, 1, 9, 44, 42, 967e6, time.UTC)
	assert.Equal(t, want, Time("1701423882967-0"))
	assert.Equal(t, want, Time("1701423882967-12"))
	assert.Equal(t, want, Time("1701423882967"))
	assert.Equal(t, time.Unix(0, 0).UTC(), Time("garbage"))
	assert.Equal(t, time.Unix(0, 0).UTC(), Time(""))
}

func TestIDFromTime(t *testing.T) {
	ts := time.Date(2023, 12, 1, 9, 44, 42, 967e6, time.UTC)
	assert.Equal(t, "1701423882967-0", IDFromTime(ts))
	assert.Equal(t, ts, Time(IDFromTime(ts)))
}

func TestSplitID(t *testing.T) {
	ms, seq, ok := SplitID("12-3")
	assert.True(t, ok)
	assert.Equal(t, uint64(12), ms)
	assert.Equal(t, uint64(3), seq)

	ms, seq, ok = SplitID("12")
	assert.True(t, ok)
	assert.Equal(t, uint64(12), ms)
	assert.Zero(t, seq)

	for _, bad := range []string{"", "$", ">", "*", "1-x", "a-1", "-1"} {
		_, _, ok := SplitID(bad)
		assert.False(t, ok, bad)
	}
}

func TestCompareIDs(t *testing.T) {
	assert.Equal(t, -1, CompareIDs("1-0", "2-0"))
	assert.Equal(t, -1, CompareIDs("2-0", "2-1"))
	assert.Equal(t, 1, CompareIDs("10-0", "9-5"))
	assert.Equal(t, 0, CompareIDs("3-0", "3"))
	assert.Equal(t, -1, CompareIDs("$", "0-0"))
	assert.Equal(t, 1, CompareIDs("0-1", "0"))
}

func TestClockMillis(t *testing.T) {
	assert.Equal(t, "1701423882967", clockMillis(1701423882, 967000))
	assert.Equal(t, "1000", clockMillis(1, 999))
}
