// Package connection provides the line-oriented connection to an ArcLink archive node.
package connection

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/yndnr/arclink-go/internal/core/domain"
	"github.com/yndnr/arclink-go/internal/telemetry/logger"
	"github.com/yndnr/arclink-go/internal/telemetry/metric"
)

// Protocol lines of the handshake and teardown.
const (
	cmdHello       = "HELLO"
	cmdInstitution = "INSTITUTION"
	cmdBye         = "BYE"
	replyOK        = "OK"

	// versionSentinel ends the version banner, e.g. "ArcLink v1.2 (2010.256)".
	versionSentinel = ")"
)

// SessionOptions configure a Session.
type SessionOptions struct {
	Transport TransportOptions
	Metrics   *metric.Registry
}

// Session owns a Transport and the credentials used to log in. Every
// request cycle opens it with a full handshake and closes it afterwards;
// nothing is cached across cycles or endpoints.
type Session struct {
	transport *Transport
	creds     domain.Credentials
	endpoint  domain.Endpoint
	timeout   time.Duration
	metrics   *metric.Registry
	log       logger.Logger

	version string
	nodeID  string
	open    bool
	// fresh is set by a handshake and cleared once a request cycle claims it.
	fresh bool
}

// NewSession creates a closed session targeting endpoint.
func NewSession(endpoint domain.Endpoint, creds domain.Credentials, opts SessionOptions) *Session {
	t := NewTransport(opts.Transport)
	return &Session{
		transport: t,
		creds:     creds,
		endpoint:  endpoint,
		timeout:   t.opts.Timeout,
		metrics:   opts.Metrics,
		log:       t.log,
	}
}

// Endpoint returns the current target.
func (s *Session) Endpoint() domain.Endpoint {
	return s.endpoint
}

// Version returns the banner of the last handshake.
func (s *Session) Version() string {
	return s.version
}

// NodeID returns the node id reported by the last handshake.
func (s *Session) NodeID() string {
	return s.nodeID
}

// IsOpen reports whether the handshake succeeded and Close has not run.
func (s *Session) IsOpen() bool {
	return s.open
}

// Transport exposes the underlying line transport for request commands.
func (s *Session) Transport() *Transport {
	return s.transport
}

// Open connects and runs the handshake:
//
//	C: HELLO          S: <version>)  S: <node id>
//	C: USER u [pw]    S: OK
//	C: INSTITUTION i  S: OK
//
// An open session is closed first. On failure the connection is dropped.
func (s *Session) Open(ctx context.Context) error {
	if err := s.Close(); err != nil {
		s.log.Warn("session teardown failed", "endpoint", s.endpoint.String(), "error", err)
	}

	err := s.handshake(ctx)
	s.metrics.ObserveHandshake(err)
	if err != nil {
		_ = s.transport.Close()
		return err
	}

	s.open = true
	s.fresh = true
	logger.FromContext(ctx, s.log).Debug("session opened", "endpoint", s.endpoint.String(), "version", s.version, "node", s.nodeID)
	return nil
}

func (s *Session) handshake(ctx context.Context) error {
	if err := s.transport.Connect(ctx, s.endpoint, s.timeout); err != nil {
		return err
	}

	if err := s.transport.WriteLine(ctx, cmdHello); err != nil {
		return err
	}
	version, err := s.transport.ReadUntil(versionSentinel, s.timeout)
	if err != nil {
		return err
	}
	nodeID, err := s.transport.ReadUntil("", s.timeout)
	if err != nil {
		return err
	}

	if err := s.command(ctx, s.creds.UserCommand()); err != nil {
		return err
	}
	if err := s.command(ctx, cmdInstitution+" "+s.creds.Institution); err != nil {
		return err
	}

	s.version = version
	s.nodeID = nodeID
	return nil
}

// command sends line and requires the reply OK.
func (s *Session) command(ctx context.Context, line string) error {
	if err := s.transport.WriteLine(ctx, line); err != nil {
		return err
	}
	return s.ExpectOK()
}

// ExpectOK reads one line and fails with domain.ErrProtocol unless it is OK.
func (s *Session) ExpectOK() error {
	reply, err := s.transport.ReadUntil("", s.timeout)
	if err != nil {
		return err
	}
	if reply != replyOK {
		return domain.ErrProtocol.WithDetails("expected OK, got " + quote(reply))
	}
	return nil
}

// Claim marks the start of a request cycle. A session opened but not yet
// used (for example right after Retarget) is reused as is; any other
// session gets a new handshake.
func (s *Session) Claim(ctx context.Context) error {
	if s.open && s.fresh {
		s.fresh = false
		return nil
	}
	if err := s.Open(ctx); err != nil {
		return err
	}
	s.fresh = false
	return nil
}

// Close sends BYE and closes the connection. It is safe to call more
// than once.
func (s *Session) Close() error {
	if !s.transport.Connected() {
		s.open = false
		s.fresh = false
		return nil
	}

	var err error
	if s.open {
		err = s.transport.WriteLine(context.Background(), cmdBye)
	}
	err = multierr.Append(err, s.transport.Close())

	s.open = false
	s.fresh = false
	return err
}

// Retarget closes the session and opens it against endpoint.
func (s *Session) Retarget(ctx context.Context, endpoint domain.Endpoint) error {
	if err := s.Close(); err != nil {
		s.log.Warn("session teardown failed", "endpoint", s.endpoint.String(), "error", err)
	}
	logger.FromContext(ctx, s.log).Info("requesting from node", "endpoint", endpoint.String())
	s.endpoint = endpoint
	return s.Open(ctx)
}

// SetEndpoint repoints a closed session without connecting.
func (s *Session) SetEndpoint(endpoint domain.Endpoint) {
	if s.open {
		_ = s.Close()
	}
	s.endpoint = endpoint
}

func quote(s string) string {
	const limit = 80
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return `"` + s + `"`
}
