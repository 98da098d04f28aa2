package service

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/oklog/ulid/v2"

	"github.com/yndnr/arclink-go/internal/connection"
	"github.com/yndnr/arclink-go/internal/core/domain"
	"github.com/yndnr/arclink-go/internal/telemetry/logger"
	"github.com/yndnr/arclink-go/internal/telemetry/metric"
)

const (
	// DefaultStatusInterval is the pause between two STATUS commands.
	DefaultStatusInterval = 500 * time.Millisecond

	// DefaultMaxStalledPolls bounds how often an identical status document
	// may repeat before polling is abandoned.
	DefaultMaxStalledPolls = 50

	// MaxLengthLine bounds the length line of a download frame.
	MaxLengthLine = 100

	// CompressionParam marks a bzip2 compressed request.
	CompressionParam = "compression=bzip2"

	downloadTrailer = "END"
	statusSentinel  = "END"
)

// ExecutorOptions configure an Executor.
type ExecutorOptions struct {
	StatusInterval  time.Duration
	MaxStalledPolls int
	Clock           clock.Clock
	Metrics         *metric.Registry
	Logger          logger.Logger
}

// Executor runs request cycles on a Session. Every cycle claims the
// session (handshake), and ends with PURGE and a closed session once a
// request id has been assigned, whatever the outcome.
type Executor struct {
	session   *connection.Session
	keys      KeyStore
	decryptor Decryptor
	opts      ExecutorOptions
	log       logger.Logger
}

// NewExecutor creates an Executor. keys and decryptor may be nil, in which
// case encrypted payloads are returned as received with a warning.
func NewExecutor(session *connection.Session, keys KeyStore, decryptor Decryptor, opts ExecutorOptions) *Executor {
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = DefaultStatusInterval
	}
	if opts.MaxStalledPolls <= 0 {
		opts.MaxStalledPolls = DefaultMaxStalledPolls
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Executor{
		session:   session,
		keys:      keys,
		decryptor: decryptor,
		opts:      opts,
		log:       log,
	}
}

// Session returns the session the executor drives.
func (e *Executor) Session() *connection.Session {
	return e.session
}

// cycleResult is what a finished cycle hands to post-processing.
type cycleResult struct {
	data    []byte
	doc     *domain.StatusDocument
	rounds  int
	stalled bool
}

// Execute runs one request cycle for desc on the current session target.
func (e *Executor) Execute(ctx context.Context, desc domain.RequestDescriptor) (payload *domain.Payload, err error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	ctx = logger.WithLogger(ctx, e.log.With("verb", string(desc.Verb)))
	ctx = logger.WithRequestID(ctx, ulid.Make().String())
	log := logger.L(ctx)
	defer func() { e.opts.Metrics.ObserveRequest(desc.Verb, err) }()

	log.Debug("request started", "request", desc.String(), "endpoint", e.session.Endpoint().String())

	res, err := e.cycle(ctx, log, desc)
	if err != nil {
		log.Debug("request failed", "error", err)
		return nil, err
	}

	payload = &domain.Payload{
		Data:       res.data,
		Encrypted:  res.doc.Encrypted(),
		Compressed: slices.Contains(desc.Params, CompressionParam),
		DCID:       res.doc.DCID(),
		Stalled:    res.stalled,
		PollRounds: res.rounds,
	}
	if payload.Encrypted {
		if err := e.decrypt(log, payload); err != nil {
			return nil, err
		}
	}

	log.Debug("request finished", "bytes", len(payload.Data), "poll_rounds", res.rounds)
	return payload, nil
}

// cycle covers Submit through Release.
func (e *Executor) cycle(ctx context.Context, log logger.Logger, desc domain.RequestDescriptor) (*cycleResult, error) {
	// 1. Handshake
	if err := e.session.Claim(ctx); err != nil {
		return nil, err
	}

	// 2. Submit; without a request id there is nothing to purge
	id, err := e.submit(ctx, desc)
	if err != nil {
		e.closeSession(log)
		return nil, err
	}
	log = log.With("arclink_id", id)
	defer e.release(ctx, log, id)

	// 3. Poll until ready or stalled
	res, err := e.poll(ctx, log, id)
	if err != nil {
		return nil, err
	}

	// 4. Classify the last document
	if err := res.doc.Classify(); err != nil {
		return nil, err
	}

	// 5. Download
	res.data, err = e.download(ctx, id)
	if err != nil {
		return nil, err
	}
	e.opts.Metrics.ObserveDownload(len(res.data))
	return res, nil
}

func (e *Executor) submit(ctx context.Context, desc domain.RequestDescriptor) (int, error) {
	t := e.session.Transport()
	for _, line := range []string{desc.RequestLine(), desc.DataLine(), "END"} {
		if err := t.WriteLine(ctx, line); err != nil {
			return 0, err
		}
	}
	if err := e.session.ExpectOK(); err != nil {
		return 0, err
	}

	for {
		line, err := t.ReadUntil("", 0)
		if err != nil {
			return 0, err
		}
		if id, err := strconv.Atoi(line); err == nil {
			return id, nil
		}
		if strings.Contains(line, "ERROR") {
			return 0, domain.ErrSubmission.WithDetails(desc.String())
		}
	}
}

func (e *Executor) poll(ctx context.Context, log logger.Logger, id int) (*cycleResult, error) {
	t := e.session.Transport()
	cmd := "STATUS " + strconv.Itoa(id)

	res := &cycleResult{}
	var last *domain.StatusDocument
	repeats := 0
	defer func() { e.opts.Metrics.ObservePolling(res.rounds, res.stalled) }()

	for {
		if err := t.WriteLine(ctx, cmd); err != nil {
			return nil, err
		}
		raw, err := t.ReadUntil(statusSentinel, 0)
		if err != nil {
			return nil, err
		}
		res.rounds++

		doc, err := domain.ParseStatusDocument(raw)
		if err != nil {
			return nil, err
		}
		res.doc = doc
		if doc.Ready() {
			return res, nil
		}

		if doc.Equal(last) {
			repeats++
		} else {
			repeats = 0
			last = doc
		}
		if repeats > e.opts.MaxStalledPolls {
			res.stalled = true
			log.Warn("status unchanged, giving up polling", "rounds", res.rounds)
			return res, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-e.opts.Clock.After(e.opts.StatusInterval):
		}
	}
}

// download reads the frame "<length>\n<bytes>END\n".
func (e *Executor) download(ctx context.Context, id int) ([]byte, error) {
	t := e.session.Transport()
	if err := t.WriteLine(ctx, "DOWNLOAD "+strconv.Itoa(id)); err != nil {
		return nil, err
	}

	line, err := t.ReadRawLine(MaxLengthLine)
	if err != nil {
		return nil, err
	}
	length, err := strconv.ParseInt(line, 10, 64)
	if err != nil || length < 0 {
		return nil, domain.ErrFraming.WithDetails("bad length line " + strconv.Quote(line))
	}

	data, err := t.ReadRawBytes(length)
	if err != nil {
		return nil, err
	}

	trailer, err := t.ReadRawLine(MaxLengthLine)
	if err != nil {
		return nil, err
	}
	if trailer != downloadTrailer {
		return nil, domain.ErrFraming.WithDetails("expected END trailer, got " + strconv.Quote(trailer))
	}
	return data, nil
}

// release purges the request and closes the session. Failures are logged
// and never replace the outcome of the cycle.
func (e *Executor) release(ctx context.Context, log logger.Logger, id int) {
	t := e.session.Transport()
	if t.Connected() {
		// A cancelled cycle still purges.
		if err := t.WriteLine(context.WithoutCancel(ctx), "PURGE "+strconv.Itoa(id)); err != nil {
			log.Warn("purge failed", "error", err)
		}
	}
	e.closeSession(log)
}

func (e *Executor) closeSession(log logger.Logger) {
	if err := e.session.Close(); err != nil {
		log.Warn("session close failed", "error", err)
	}
}

func (e *Executor) decrypt(log logger.Logger, p *domain.Payload) error {
	var secret string
	ok := false
	if e.keys != nil && e.decryptor != nil {
		secret, ok = e.keys.Lookup(p.DCID)
	}
	if !ok {
		warning := domain.ErrDecryptionUnavailable.WithDetails("dcid " + p.DCID)
		p.Warnings = append(p.Warnings, warning)
		log.Warn("could not decrypt waveform data", "dcid", p.DCID)
		return nil
	}

	plain, err := e.decryptor.Decrypt(secret, p.Data)
	if err != nil {
		if !errors.Is(err, domain.ErrDecryption) {
			err = domain.ErrDecryption.WithDetails("dcid " + p.DCID).WithCause(err)
		}
		return err
	}
	p.Data = plain
	return nil
}
