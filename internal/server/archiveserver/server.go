package archiveserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/arclink-go/internal/core/domain"
)

// Config holds the archive node configuration.
type Config struct {
	// Address is the listen address (default: 127.0.0.1:0).
	Address string
	// Version is the banner answered to HELLO; it must end with ")".
	Version string
	// NodeID is the line following the banner.
	NodeID string
	// UserReply answers USER (default: OK).
	UserReply string
	// ReadTimeout is the timeout for reading a command (default: 5s).
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing a response (default: 5s).
	WriteTimeout time.Duration
	// IdleTimeout is the timeout for idle connections (default: 1m).
	IdleTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:      "127.0.0.1:0",
		Version:      "ArcLink v0.4 (2010.256)",
		NodeID:       "GFZ",
		UserReply:    "OK",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  time.Minute,
	}
}

// Server is a scripted archive node.
type Server struct {
	cfg       *Config
	handler   *CommandHandler
	logger    *slog.Logger
	ln        net.Listener
	running   atomic.Bool
	wg        sync.WaitGroup
	journalMu sync.Mutex
	journal   []string
}

// Conn is one client connection.
type Conn struct {
	netConn net.Conn
	br      *bufio.Reader
	bw      *bufio.Writer

	state  ConnState
	closed atomic.Bool
}

// ConnState holds the per-connection protocol state.
type ConnState struct {
	Hello       bool
	User        string
	Institution string
	// pending is the request being collected between REQUEST and END.
	pending *Request
}

func newConn(c net.Conn) *Conn {
	return &Conn{
		netConn: c,
		br:      bufio.NewReader(c),
		bw:      bufio.NewWriter(c),
	}
}

// Close closes the connection once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// New creates a node answering requests from responder.
func New(cfg *Config, responder Responder, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
	}
	s.handler = NewCommandHandler(s, responder, logger)
	return s
}

// Start listens and serves connections in the background. The listener
// is bound when Start returns, so Endpoint is valid immediately.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.Address
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.running.Store(true)
	s.logger.Info("starting archive node", "address", ln.Addr().String(), "node", s.cfg.NodeID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx, ln); err != nil && s.running.Load() {
			s.logger.Error("archive node error", "error", err)
		}
	}()
	return nil
}

// Endpoint returns the bound address.
func (s *Server) Endpoint() domain.Endpoint {
	if s.ln == nil {
		return domain.Endpoint{}
	}
	addr := s.ln.Addr().(*net.TCPAddr)
	return domain.Endpoint{Host: addr.IP.String(), Port: addr.Port}
}

// Address returns the bound address as host:port.
func (s *Server) Address() string {
	return s.Endpoint().Address()
}

// Shutdown closes the listener and waits for connections to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// Journal returns every command line received so far, in order.
func (s *Server) Journal() []string {
	s.journalMu.Lock()
	defer s.journalMu.Unlock()
	return append([]string(nil), s.journal...)
}

// Count returns how many journal lines start with prefix.
func (s *Server) Count(prefix string) int {
	n := 0
	for _, line := range s.Journal() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

// Has reports whether line was received verbatim.
func (s *Server) Has(line string) bool {
	for _, l := range s.Journal() {
		if l == line {
			return true
		}
	}
	return false
}

func (s *Server) record(line string) {
	s.journalMu.Lock()
	s.journal = append(s.journal, line)
	s.journalMu.Unlock()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(newConn(c))
		}()
	}
}

func (s *Server) serveConn(c *Conn) {
	defer c.Close()

	readTimeout := s.cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 5 * time.Second
	}
	writeTimeout := s.cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 5 * time.Second
	}
	idleTimeout := s.cfg.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = time.Minute
	}

	for {
		if err := c.netConn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return
		}
		if _, err := c.br.Peek(1); err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("connection read error", "remote", c.RemoteAddr(), "error", err)
			}
			return
		}

		if err := c.netConn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}
		line, err := readLine(c.br, MaxLineLen)
		if err != nil {
			if errors.Is(err, ErrLimitExceeded) {
				s.logger.Warn("protocol limit exceeded", "remote", c.RemoteAddr(), "error", err)
			}
			return
		}
		s.record(line)

		keep := s.handler.Handle(c, line)

		if err := c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return
		}
		if err := c.bw.Flush(); err != nil {
			return
		}
		if !keep {
			return
		}
	}
}

// parseID parses the numeric argument of STATUS, DOWNLOAD and PURGE.
func parseID(args []string) (int, bool) {
	if len(args) != 1 {
		return 0, false
	}
	id, err := strconv.Atoi(args[0])
	return id, err == nil
}
