// Package connection provides the line-oriented connection to an ArcLink archive node.
package connection

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/arclink-go/internal/core/domain"
	"github.com/yndnr/arclink-go/internal/telemetry/logger"
)

const (
	// LineTerminator ends every line on the wire.
	LineTerminator = "\r\n"

	// DefaultTimeout applies when no timeout is configured.
	DefaultTimeout = 20 * time.Second

	// MaxResponseLen bounds the text accumulated by ReadUntil.
	MaxResponseLen = 16 << 20

	// MaxPayloadLen bounds the declared length of a download frame.
	MaxPayloadLen int64 = 8 << 30

	// rawChunk is the read size of ReadRawBytes; the deadline is renewed
	// per chunk so large downloads do not hit a single overall deadline.
	rawChunk int64 = 64 << 10

	// rawPrealloc caps the allocation made before any payload arrives.
	rawPrealloc int64 = 1 << 20
)

// TransportOptions configure a Transport.
type TransportOptions struct {
	// Timeout is the default deadline for a single read or write.
	Timeout time.Duration

	// CommandDelay paces writes: consecutive lines are at least this far
	// apart. Zero disables pacing.
	CommandDelay time.Duration

	// Trace logs every written (">>>") and read ("...") line at debug level.
	Trace bool

	Logger logger.Logger
}

// Transport is a blocking CRLF line connection to one endpoint.
type Transport struct {
	opts   TransportOptions
	log    logger.Logger
	dialer net.Dialer

	endpoint domain.Endpoint
	conn     net.Conn
	br       *bufio.Reader
	pacer    *rate.Limiter

	// trace is the logger of the last written command; replies are
	// traced with it so both directions share the request id.
	trace logger.Logger
}

// NewTransport creates an unconnected transport.
func NewTransport(opts TransportOptions) *Transport {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Transport{opts: opts, log: log}
}

// Connect dials endpoint. An existing connection is closed first.
func (t *Transport) Connect(ctx context.Context, endpoint domain.Endpoint, timeout time.Duration) error {
	_ = t.Close()

	if timeout <= 0 {
		timeout = t.opts.Timeout
	}
	t.dialer.Timeout = timeout

	conn, err := t.dialer.DialContext(ctx, "tcp", endpoint.Address())
	if err != nil {
		return domain.ErrConnect.WithDetails(endpoint.Address()).WithCause(err)
	}

	t.endpoint = endpoint
	t.conn = conn
	t.br = bufio.NewReader(conn)
	if t.opts.CommandDelay > 0 {
		t.pacer = rate.NewLimiter(rate.Every(t.opts.CommandDelay), 1)
		// Spend the initial token so the first command is paced as well.
		t.pacer.Allow()
	}
	return nil
}

func (t *Transport) traceLog() logger.Logger {
	if t.trace != nil {
		return t.trace
	}
	return t.log
}

// Connected reports whether a connection is open.
func (t *Transport) Connected() bool {
	return t.conn != nil
}

// Endpoint returns the endpoint of the last Connect.
func (t *Transport) Endpoint() domain.Endpoint {
	return t.endpoint
}

// Close closes the connection. It is safe to call more than once.
func (t *Transport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.br = nil
	t.pacer = nil
	t.trace = nil
	return err
}

// WriteLine sends text followed by CRLF, waiting for the pacing interval
// first when one is configured.
func (t *Transport) WriteLine(ctx context.Context, text string) error {
	if t.conn == nil {
		return domain.ErrConnect.WithDetails("not connected")
	}
	if t.pacer != nil {
		if err := t.pacer.Wait(ctx); err != nil {
			return err
		}
	}

	if err := t.conn.SetWriteDeadline(time.Now().Add(t.opts.Timeout)); err != nil {
		return domain.ErrConnect.WithCause(err)
	}
	if _, err := io.WriteString(t.conn, text+LineTerminator); err != nil {
		return domain.ErrConnect.WithDetails("write " + t.endpoint.Address()).WithCause(err)
	}

	if t.opts.Trace {
		t.trace = logger.FromContext(ctx, t.log)
		t.trace.Debug(">>>", "line", logger.RedactCommand(text), "endpoint", t.endpoint.String())
	}
	return nil
}

// ReadUntil accumulates input until it ends with sentinel+CRLF and returns
// it with surrounding whitespace trimmed. An empty sentinel reads one line.
// When the deadline passes or the peer closes first, a
// *domain.TransportTimeout carrying the partial text is returned.
func (t *Transport) ReadUntil(sentinel string, timeout time.Duration) (string, error) {
	if t.conn == nil {
		return "", domain.ErrConnect.WithDetails("not connected")
	}
	if timeout <= 0 {
		timeout = t.opts.Timeout
	}
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", domain.ErrConnect.WithCause(err)
	}

	want := sentinel + LineTerminator
	var sb strings.Builder
	for {
		chunk, err := t.br.ReadString('\n')
		sb.WriteString(chunk)

		if strings.HasSuffix(sb.String(), want) {
			break
		}
		if err != nil {
			return "", &domain.TransportTimeout{
				Sentinel: sentinel,
				Partial:  strings.TrimSpace(sb.String()),
				Cause:    err,
			}
		}
		if sb.Len() > MaxResponseLen {
			return "", domain.ErrProtocol.WithDetails("response exceeds limit waiting for " + sentinel)
		}
	}

	line := strings.TrimSpace(sb.String())
	if t.opts.Trace {
		t.traceLog().Debug("...", "line", line, "endpoint", t.endpoint.String())
	}
	return line, nil
}

// ReadRawLine reads bytes up to and including '\n', failing with
// domain.ErrFraming when no newline shows up within maxLen bytes. The
// returned line has its terminator and surrounding whitespace removed.
func (t *Transport) ReadRawLine(maxLen int) (string, error) {
	if t.conn == nil {
		return "", domain.ErrConnect.WithDetails("not connected")
	}
	if err := t.conn.SetReadDeadline(time.Now().Add(t.opts.Timeout)); err != nil {
		return "", domain.ErrConnect.WithCause(err)
	}

	buf := make([]byte, 0, maxLen)
	for len(buf) < maxLen {
		b, err := t.br.ReadByte()
		if err != nil {
			return "", domain.ErrFraming.WithDetails("line read").WithCause(err)
		}
		if b == '\n' {
			return strings.TrimSpace(string(buf)), nil
		}
		buf = append(buf, b)
	}
	return "", domain.ErrFraming.WithDetails("line longer than limit")
}

// ReadRawBytes reads exactly n bytes. The buffer grows as data arrives,
// so a bogus length fails with domain.ErrFraming on the short read
// instead of allocating it up front. Lengths above MaxPayloadLen are
// rejected without reading.
func (t *Transport) ReadRawBytes(n int64) ([]byte, error) {
	if t.conn == nil {
		return nil, domain.ErrConnect.WithDetails("not connected")
	}
	if n < 0 {
		return nil, domain.ErrFraming.WithDetails("negative length")
	}
	if n > MaxPayloadLen {
		return nil, domain.ErrFraming.WithDetails(fmt.Sprintf("length %d exceeds limit", n))
	}

	var buf bytes.Buffer
	buf.Grow(int(min(n, rawPrealloc)))
	for remaining := n; remaining > 0; {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.opts.Timeout)); err != nil {
			return nil, domain.ErrConnect.WithCause(err)
		}
		read, err := io.CopyN(&buf, t.br, min(remaining, rawChunk))
		remaining -= read
		if err != nil {
			return nil, domain.ErrFraming.WithDetails(fmt.Sprintf("short read %d of %d bytes", n-remaining, n)).WithCause(err)
		}
	}
	return buf.Bytes(), nil
}
