package service

import (
	"context"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/yndnr/arclink-go/internal/connection"
	"github.com/yndnr/arclink-go/internal/core/domain"
	"github.com/yndnr/arclink-go/internal/telemetry/logger"
	"github.com/yndnr/arclink-go/internal/telemetry/metric"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	Endpoint    domain.Endpoint
	Credentials domain.Credentials

	Timeout      time.Duration
	CommandDelay time.Duration
	Trace        bool

	StatusInterval  time.Duration
	MaxStalledPolls int

	// Route enables routing for the verbs that support it.
	Route            bool
	TryAllCandidates bool
}

// Option customizes a Client.
type Option func(*clientDeps)

type clientDeps struct {
	log     logger.Logger
	metrics *metric.Registry
	clock   clock.Clock
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *clientDeps) { d.log = l }
}

// WithMetrics records request metrics in m.
func WithMetrics(m *metric.Registry) Option {
	return func(d *clientDeps) { d.metrics = m }
}

// WithClock replaces the clock used between status polls.
func WithClock(c clock.Clock) Option {
	return func(d *clientDeps) { d.clock = c }
}

// Client is the high level ArcLink client. It owns one Session and must
// not be used from several goroutines at once.
type Client struct {
	cfg        ClientConfig
	session    *connection.Session
	exec       *Executor
	resolver   *RoutingResolver
	dispatcher *Dispatcher
}

// NewClient wires a session, executor, resolver and dispatcher. No
// connection is made until the first request.
func NewClient(cfg ClientConfig, keys KeyStore, decryptor Decryptor, opts ...Option) *Client {
	deps := clientDeps{}
	for _, opt := range opts {
		opt(&deps)
	}
	if deps.log == nil {
		deps.log = logger.Nop()
	}

	session := connection.NewSession(cfg.Endpoint, cfg.Credentials, connection.SessionOptions{
		Transport: connection.TransportOptions{
			Timeout:      cfg.Timeout,
			CommandDelay: cfg.CommandDelay,
			Trace:        cfg.Trace,
			Logger:       deps.log,
		},
		Metrics: deps.metrics,
	})
	exec := NewExecutor(session, keys, decryptor, ExecutorOptions{
		StatusInterval:  cfg.StatusInterval,
		MaxStalledPolls: cfg.MaxStalledPolls,
		Clock:           deps.clock,
		Metrics:         deps.metrics,
		Logger:          deps.log,
	})
	resolver := NewRoutingResolver(exec)
	dispatcher := NewDispatcher(exec, resolver, cfg.Endpoint, DispatcherOptions{
		TryAllCandidates: cfg.TryAllCandidates,
		Metrics:          deps.metrics,
	})

	return &Client{
		cfg:        cfg,
		session:    session,
		exec:       exec,
		resolver:   resolver,
		dispatcher: dispatcher,
	}
}

// Session exposes the client's session, e.g. for the node id of the last
// handshake.
func (c *Client) Session() *connection.Session {
	return c.session
}

// Close closes the session if a request left it open.
func (c *Client) Close() error {
	return c.session.Close()
}

// ============================================================================
// Request types
// ============================================================================

// WaveformRequest asks for waveform data of one stream selection.
type WaveformRequest struct {
	Selector   domain.Selector
	Start, End time.Time
	// Format is MSEED (default) or FSEED.
	Format         string
	Compressed     bool
	DisableRouting bool
}

// RoutingRequest asks for the routing table of a network and station.
type RoutingRequest struct {
	Network, Station string
	Start, End       time.Time
	ModifiedAfter    time.Time
}

// InventoryRequest asks for network, station and stream metadata. Empty
// station, location and channel default to "*".
type InventoryRequest struct {
	Selector      domain.Selector
	Start, End    time.Time
	Instruments   bool
	ModifiedAfter time.Time

	Restricted *bool
	Permanent  *bool
	SensorType string

	MinLatitude, MaxLatitude   *float64
	MinLongitude, MaxLongitude *float64

	DisableRouting bool
}

// QCRequest asks for quality control parameters. QC requests are never
// routed.
type QCRequest struct {
	Selector   domain.Selector
	Start, End time.Time
	// Parameters is a comma separated list, "*" (default) for all.
	Parameters string
	Outages    bool
	Logs       bool
}

// ResponseRequest asks for instrument responses as dataless SEED.
type ResponseRequest struct {
	Selector   domain.Selector
	Start, End time.Time
	// Format defaults to SEED.
	Format         string
	DisableRouting bool
}

// ============================================================================
// Operations
// ============================================================================

// Waveform fetches waveform data. The payload is decrypted when a key for
// its archive is known; compressed payloads are left compressed, see
// domain.Payload.Unpack.
func (c *Client) Waveform(ctx context.Context, req WaveformRequest) (*domain.Payload, error) {
	format := req.Format
	if format == "" {
		format = "MSEED"
	}
	params := []string{"format=" + format}
	if req.Compressed {
		params = append(params, CompressionParam)
	}

	desc := domain.NewRequestDescriptor(domain.VerbWaveform,
		domain.Window{Start: req.Start, End: req.End}, req.Selector, params, nil)
	return c.dispatcher.Dispatch(ctx, desc, c.cfg.Route && !req.DisableRouting)
}

// Routing fetches and decodes the routing table of the current node.
func (c *Client) Routing(ctx context.Context, req RoutingRequest) (domain.RoutingTable, error) {
	if req.Network == "" {
		return nil, domain.ErrMissingArgument.WithDetails("network")
	}
	var params []string
	if !req.ModifiedAfter.IsZero() {
		params = append(params, "modified_after="+domain.FormatTime(req.ModifiedAfter))
	}
	return c.resolver.Resolve(ctx, req.Network, req.Station,
		domain.Window{Start: req.Start, End: req.End}, params...)
}

// Inventory fetches the inventory XML document. Requests for all
// networks ("*") are never routed.
func (c *Client) Inventory(ctx context.Context, req InventoryRequest) ([]byte, error) {
	sel := req.Selector
	sel.Station = orWildcard(sel.Station)
	sel.Location = orWildcard(sel.Location)
	sel.Channel = orWildcard(sel.Channel)

	var params []string
	if req.Instruments {
		params = append(params, "instruments=true")
	}
	if !req.ModifiedAfter.IsZero() {
		params = append(params, "modified_after="+domain.FormatTime(req.ModifiedAfter))
	}

	extra := []string{"."}
	if req.Restricted != nil {
		extra = append(extra, "restricted="+strconv.FormatBool(*req.Restricted))
	}
	if req.Permanent != nil {
		extra = append(extra, "permanent="+strconv.FormatBool(*req.Permanent))
	}
	if req.SensorType != "" {
		extra = append(extra, "sensortype="+req.SensorType)
	}
	for _, f := range []struct {
		key string
		val *float64
	}{
		{"latmin", req.MinLatitude},
		{"latmax", req.MaxLatitude},
		{"lonmin", req.MinLongitude},
		{"lonmax", req.MaxLongitude},
	} {
		if f.val != nil {
			extra = append(extra, f.key+"="+strconv.FormatFloat(*f.val, 'f', 6, 64))
		}
	}

	desc := domain.NewRequestDescriptor(domain.VerbInventory,
		domain.Window{Start: req.Start, End: req.End}, sel, params, extra)
	route := c.cfg.Route && !req.DisableRouting && sel.Network != "*"

	payload, err := c.dispatcher.Dispatch(ctx, desc, route)
	if err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// QC fetches the quality control XML document.
func (c *Client) QC(ctx context.Context, req QCRequest) ([]byte, error) {
	parameters := req.Parameters
	if parameters == "" {
		parameters = "*"
	}
	params := []string{
		"outages=" + strconv.FormatBool(req.Outages),
		"logs=" + strconv.FormatBool(req.Logs),
		"parameters=" + parameters,
	}

	desc := domain.NewRequestDescriptor(domain.VerbQC,
		domain.Window{Start: req.Start, End: req.End}, req.Selector, params, nil)
	payload, err := c.dispatcher.Dispatch(ctx, desc, false)
	if err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// Response fetches instrument responses as dataless SEED.
func (c *Client) Response(ctx context.Context, req ResponseRequest) ([]byte, error) {
	format := req.Format
	if format == "" {
		format = "SEED"
	}

	desc := domain.NewRequestDescriptor(domain.VerbResponse,
		domain.Window{Start: req.Start, End: req.End}, req.Selector, []string{"format=" + format}, nil)
	payload, err := c.dispatcher.Dispatch(ctx, desc, c.cfg.Route && !req.DisableRouting)
	if err != nil {
		return nil, err
	}
	return payload.Data, nil
}

func orWildcard(s string) string {
	if s == "" {
		return "*"
	}
	return s
}
