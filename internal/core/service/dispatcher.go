package service

import (
	"context"
	"errors"

	"go.uber.org/multierr"

	"github.com/yndnr/arclink-go/internal/connection"
	"github.com/yndnr/arclink-go/internal/core/domain"
	"github.com/yndnr/arclink-go/internal/telemetry/logger"
	"github.com/yndnr/arclink-go/internal/telemetry/metric"
)

// DispatcherOptions configure a Dispatcher.
type DispatcherOptions struct {
	// TryAllCandidates moves on to the next route when a candidate node
	// cannot be reached or times out. Answers from a reachable node
	// (status, no data, framing) always end the dispatch.
	TryAllCandidates bool

	Metrics *metric.Registry
}

// Dispatcher is the entry point for data requests. It resolves the route
// for the requested stream, points the session at the chosen node and
// runs the request there.
type Dispatcher struct {
	exec     *Executor
	resolver *RoutingResolver
	origin   domain.Endpoint
	opts     DispatcherOptions
	log      logger.Logger
}

// NewDispatcher creates a Dispatcher. origin is the originally configured
// node that the dispatcher falls back to once when routing finds nothing.
func NewDispatcher(exec *Executor, resolver *RoutingResolver, origin domain.Endpoint, opts DispatcherOptions) *Dispatcher {
	return &Dispatcher{
		exec:     exec,
		resolver: resolver,
		origin:   origin,
		opts:     opts,
		log:      exec.log,
	}
}

func (d *Dispatcher) session() *connection.Session {
	return d.exec.Session()
}

// Dispatch runs desc. With route false the request goes to the current
// session target. Otherwise the routing table of the current node decides
// the target; when no key matches and the session has moved away from the
// origin, the origin is tried once more before failing with
// domain.ErrRouting.
func (d *Dispatcher) Dispatch(ctx context.Context, desc domain.RequestDescriptor, route bool) (*domain.Payload, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if !route {
		return d.exec.Execute(ctx, desc)
	}

	sel := desc.Selector
	for fallback := false; ; fallback = true {
		// Location and channel only take part in matching.
		table, err := d.resolver.Resolve(ctx, sel.Network, sel.Station, desc.Window)
		if err != nil {
			return nil, err
		}

		candidates, ok := table.Match(sel)
		if ok {
			return d.dispatchCandidates(ctx, desc, candidates)
		}

		if fallback || d.session().Endpoint() == d.origin {
			return nil, domain.ErrRouting.WithDetails(sel.Network + "." + sel.Station)
		}
		d.log.Info("no route found, retrying origin", "endpoint", d.origin.String())
		d.opts.Metrics.ObserveRoutingFallback()
		d.session().SetEndpoint(d.origin)
	}
}

// dispatchCandidates runs desc on the candidates of one routing answer.
// An authoritative entry means the node that answered the routing query,
// which is recorded up front since a failed retarget moves the session.
func (d *Dispatcher) dispatchCandidates(ctx context.Context, desc domain.RequestDescriptor, candidates []domain.RouteEntry) (*domain.Payload, error) {
	answered := d.session().Endpoint()
	if !d.opts.TryAllCandidates {
		return d.dispatchTo(ctx, desc, candidates[0], answered)
	}

	var errs error
	for _, c := range candidates {
		payload, err := d.dispatchTo(ctx, desc, c, answered)
		if err == nil {
			return payload, nil
		}
		if !isUnreachable(err) {
			return nil, err
		}
		d.log.Warn("candidate failed, trying next", "endpoint", c.Endpoint.String(), "error", err)
		errs = multierr.Append(errs, err)
	}
	return nil, errs
}

func (d *Dispatcher) dispatchTo(ctx context.Context, desc domain.RequestDescriptor, c domain.RouteEntry, answered domain.Endpoint) (*domain.Payload, error) {
	target := c.Endpoint
	if c.Authoritative {
		target = answered
	}

	s := d.session()
	if target != s.Endpoint() {
		if err := s.Retarget(ctx, target); err != nil {
			return nil, err
		}
	}
	return d.exec.Execute(ctx, desc)
}

func isUnreachable(err error) bool {
	return errors.Is(err, domain.ErrConnect) || errors.Is(err, domain.ErrTransportTimeout)
}
