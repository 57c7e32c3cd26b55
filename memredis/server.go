// Package memredis is an in-process server speaking the Redis protocol. It
// implements the string, stream, pub/sub and keyspace notification commands
// used by rxredis so pipelines and tests run without an external Redis.
package memredis

import (
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/redcon"

	"github.com/moontrade/rxredis/logger"
)

// Options configures a Server.
type Options struct {
	// Addr is the listen address; "127.0.0.1:0" picks a free port.
	Addr string
	// Auth is the password required by AUTH. Empty disables authentication.
	Auth string
	TLS  *tls.Config
	// NotifyKeyspaceEvents is the initial notify-keyspace-events setting,
	// for example "KA".
	NotifyKeyspaceEvents string
	// RemoteTime syncs the server clock with internet time at start.
	RemoteTime bool
}

// Server is a running in-memory store.
type Server struct {
	opts  Options
	ln    net.Listener
	rs    *redcon.Server
	hub   *hub
	mon   *monitor
	clock *clock

	mu          sync.Mutex
	dbs         [numDatabases]*database
	notifyFlags notifyFlags
	conns       map[redcon.Conn]struct{}

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	err       error
}

type client struct {
	authorized bool
	db         int
}

// Listen starts a Server in the background.
func Listen(opts Options) (*Server, error) {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	flags, err := parseNotifyFlags(opts.NotifyKeyspaceEvents)
	if err != nil {
		return nil, err
	}
	var ln net.Listener
	if opts.TLS != nil {
		ln, err = tls.Listen("tcp", opts.Addr, opts.TLS)
	} else {
		ln, err = net.Listen("tcp", opts.Addr)
	}
	if err != nil {
		return nil, err
	}
	s := &Server{
		opts:        opts,
		ln:          ln,
		hub:         newHub(),
		mon:         newMonitor(),
		clock:       newClock(opts.RemoteTime),
		notifyFlags: flags,
		conns:       make(map[redcon.Conn]struct{}),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	for i := range s.dbs {
		s.dbs[i] = newDatabase(i)
	}
	s.rs = redcon.NewServer(ln.Addr().String(), s.handle, s.accept, s.closed)
	s.rs.AcceptError = s.acceptError
	logger.Info("addr", ln.Addr().String(), "memredis listening")
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	defer close(s.stopped)
	err := s.rs.Serve(s.ln)
	select {
	case <-s.done:
	default:
		logger.Error(err, "memredis stopped")
		s.err = err
	}
}

// acceptError stops the redcon loop once Close closed the listener. The loop
// only exits after redcon's own Close, which fails before Serve has taken
// the listener, so it is called from inside the loop.
func (s *Server) acceptError(err error) {
	select {
	case <-s.done:
		s.rs.Close()
	default:
		logger.WarnErr(err, "memredis accept failed")
	}
}

// Addr is the address the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Monitor returns an Observer of every command processed from now on.
func (s *Server) Monitor() Observer {
	return s.mon.NewObserver()
}

// Done is closed once the server stopped serving.
func (s *Server) Done() <-chan struct{} {
	return s.stopped
}

// Err is the reason the server stopped on its own, if any.
func (s *Server) Err() error {
	<-s.stopped
	return s.err
}

// Close stops the listener, wakes blocked readers and closes every
// connection.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.ln.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
		<-s.stopped
		s.hub.closeAll()
		s.mu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.conns = make(map[redcon.Conn]struct{})
		s.mu.Unlock()
		s.mon.stopAll()
		logger.Debug("addr", s.Addr(), "memredis closed")
	})
	return err
}

func (s *Server) accept(conn redcon.Conn) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	conn.SetContext(&client{authorized: s.opts.Auth == ""})
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	return true
}

func (s *Server) closed(conn redcon.Conn, err error) {
	s.untrack(conn)
	if err != nil {
		logger.Trace(err, "addr", conn.RemoteAddr(), "connection closed")
	}
}

func (s *Server) untrack(conn redcon.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func commandArgs(cmd redcon.Command) []string {
	args := make([]string, len(cmd.Args))
	args[0] = strings.ToLower(string(cmd.Args[0]))
	for i := 1; i < len(cmd.Args); i++ {
		args[i] = string(cmd.Args[i])
	}
	return args
}

func (s *Server) handle(conn redcon.Conn, cmd redcon.Command) {
	c := conn.Context().(*client)
	args := commandArgs(cmd)
	switch args[0] {
	case "subscribe", "psubscribe":
		if !c.authorized {
			conn.WriteError(errorReply(ErrUnauthorized))
			return
		}
		s.subscribe(conn, c, args)
		return
	}
	if !s.exec(conn, conn.RemoteAddr(), c, args) {
		conn.Close()
	}
}

// exec runs one command and writes its reply. It returns false when the
// connection should be closed.
func (s *Server) exec(w replyWriter, addr string, c *client, args []string) bool {
	start := time.Now()
	resp, err := s.dispatch(c, args)
	if err != nil {
		w.WriteError(errorReply(err))
	} else {
		writeReply(w, resp)
	}
	s.mon.Send(Message{
		Addr:    addr,
		Args:    args,
		Err:     err,
		Elapsed: time.Since(start),
	})
	_, quit := resp.(quitReply)
	return !quit
}

func (s *Server) dispatch(c *client, args []string) (interface{}, error) {
	switch args[0] {
	case "quit":
		return quitReply{}, nil
	case "auth":
		return s.cmdAUTH(c, args)
	}
	if !c.authorized {
		return nil, ErrUnauthorized
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return nil, errUnknownCommand(args)
	}
	return cmd(s, c, args)
}

func (s *Server) cmdAUTH(c *client, args []string) (interface{}, error) {
	var password string
	switch len(args) {
	case 2:
		password = args[1]
	case 3:
		if args[1] != "default" {
			c.authorized = false
			return nil, ErrInvalidPassword
		}
		password = args[2]
	default:
		return nil, errWrongNumArgsFor(args[0])
	}
	if s.opts.Auth == "" {
		return nil, errors.New("AUTH <password> called without any password configured for the default user. Are you sure your configuration is correct?")
	}
	if password != s.opts.Auth {
		c.authorized = false
		return nil, ErrInvalidPassword
	}
	c.authorized = true
	return redcon.SimpleString("OK"), nil
}

// db returns the selected database. s.mu must be held.
func (s *Server) db(c *client) *database {
	return s.dbs[c.db]
}
