package memredis

import (
	"sync"
	"time"

	"github.com/tidwall/rtime"

	"github.com/moontrade/rxredis/logger"
)

// clock is the server time. It never goes backwards, so identifiers
// generated for "*" keep increasing even when the host clock is adjusted.
type clock struct {
	mu     sync.Mutex
	offset time.Duration
	last   time.Time
}

// newClock returns a clock following the host time, or the internet time
// when remote is set and reachable.
func newClock(remote bool) *clock {
	c := new(clock)
	if !remote {
		return c
	}
	tm := rtime.Now()
	if tm.IsZero() {
		logger.Warn("remote time unavailable, using local clock")
		return c
	}
	c.offset = time.Until(tm)
	logger.Debug("offset", c.offset, "remote time synced")
	return c
}

func (c *clock) now() time.Time {
	t := time.Now().Add(c.offset)
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
