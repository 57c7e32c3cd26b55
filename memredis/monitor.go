package memredis

import (
	"sync"
	"time"
)

// Message is a command processed by the server.
type Message struct {
	Addr    string
	Args    []string
	Err     error
	Elapsed time.Duration
}

// An Observer holds a channel that delivers the messages for all commands
// processed by a Server.
type Observer interface {
	Stop()
	C() <-chan Message
}

type observer struct {
	mon  *monitor
	msgC chan Message
}

func (o *observer) C() <-chan Message {
	return o.msgC
}

func (o *observer) Stop() {
	o.mon.obMu.Lock()
	defer o.mon.obMu.Unlock()
	if _, ok := o.mon.obs[o]; ok {
		delete(o.mon.obs, o)
		close(o.msgC)
	}
}

type monitor struct {
	obMu sync.Mutex
	obs  map[*observer]struct{}
}

func newMonitor() *monitor {
	return &monitor{obs: make(map[*observer]struct{})}
}

// Send delivers msg to every observer. An observer that fell behind misses
// the message rather than stalling the server.
func (m *monitor) Send(msg Message) {
	if len(msg.Args) > 0 && msg.Args[0] == "auth" {
		return
	}
	m.obMu.Lock()
	defer m.obMu.Unlock()
	for o := range m.obs {
		select {
		case o.msgC <- msg:
		default:
		}
	}
}

// NewObserver returns an Observer receiving every command processed from now
// on. Stop the observer to release associated resources.
func (m *monitor) NewObserver() Observer {
	o := &observer{mon: m, msgC: make(chan Message, 256)}
	m.obMu.Lock()
	m.obs[o] = struct{}{}
	m.obMu.Unlock()
	return o
}

func (m *monitor) stopAll() {
	m.obMu.Lock()
	defer m.obMu.Unlock()
	for o := range m.obs {
		delete(m.obs, o)
		close(o.msgC)
	}
}
