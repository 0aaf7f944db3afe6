// Package client orchestrates query, mutation, and subscription execution:
// it applies the cache policy, drives the transport, unifies errors, and
// writes results back to the cache.
package client

import (
	"context"
	"errors"
	"time"

	"github.com/graphfetch/graphfetch/internal/cache"
	"github.com/graphfetch/graphfetch/internal/eventbus"
	"github.com/graphfetch/graphfetch/internal/events"
	"github.com/graphfetch/graphfetch/internal/operation"
	"github.com/graphfetch/graphfetch/internal/opid"
	"github.com/graphfetch/graphfetch/internal/result"
	"github.com/graphfetch/graphfetch/internal/transport"
)

// CachePolicy governs how one execution reads and writes the result cache.
type CachePolicy string

const (
	// CacheFirst serves a cached result when present and only hits the
	// network on a miss.
	CacheFirst CachePolicy = "cache-first"
	// CacheAndNetwork serves a cached result immediately when present and
	// always issues a network call, delivering its result to the registered
	// refresh handler.
	CacheAndNetwork CachePolicy = "cache-and-network"
	// NetworkOnly always hits the network and bypasses the cache entirely.
	NetworkOnly CachePolicy = "network-only"
)

// Valid reports whether p names a known policy.
func (p CachePolicy) Valid() bool {
	switch p {
	case CacheFirst, CacheAndNetwork, NetworkOnly:
		return true
	}
	return false
}

// ContextFactory supplies ambient per-request options, evaluated fresh on
// every call (e.g. auth headers). It never overrides the method or body.
type ContextFactory func() operation.FetchOptions

// SubscriptionForwarder executes a subscription operation on an external
// transport, returning a stream of results.
type SubscriptionForwarder func(op operation.Operation) (<-chan result.OperationResult, error)

// RefreshHandler receives the fresh result of a cache-and-network execution
// that already delivered a cached result synchronously.
type RefreshHandler func(op operation.Operation, res result.OperationResult)

// Configuration errors. These indicate programmer error and are returned as
// hard failures at the call boundary.
var (
	ErrNoURL                   = errors.New("client: url is required")
	ErrNoTransport             = errors.New("client: transport is required")
	ErrNoSubscriptionForwarder = errors.New("client: no subscription forwarder configured")
	ErrInvalidCachePolicy      = errors.New("client: invalid cache policy")
)

// Client executes GraphQL operations against a single endpoint.
type Client struct {
	url       string
	transport transport.Doer
	policy    CachePolicy
	fetchOpts operation.FetchOptions
	context   ContextFactory
	forwarder SubscriptionForwarder
	refresh   RefreshHandler
	cache     *cache.ResultCache
}

type Option func(*Client)

// WithCachePolicy sets the client-wide default policy.
func WithCachePolicy(p CachePolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithFetchOptions sets client-wide base fetch options, applied to every
// call. Options from the context factory take precedence over them.
func WithFetchOptions(opts operation.FetchOptions) Option {
	return func(c *Client) { c.fetchOpts = opts }
}

// WithContextFactory installs the per-call fetch options factory.
func WithContextFactory(f ContextFactory) Option {
	return func(c *Client) { c.context = f }
}

// WithSubscriptionForwarder installs the subscription transport.
func WithSubscriptionForwarder(f SubscriptionForwarder) Option {
	return func(c *Client) { c.forwarder = f }
}

// WithRefreshHandler installs the collaborator that receives second
// deliveries under cache-and-network.
func WithRefreshHandler(h RefreshHandler) Option {
	return func(c *Client) { c.refresh = h }
}

// WithCache replaces the default unbounded cache, e.g. with one configured
// for eviction.
func WithCache(rc *cache.ResultCache) Option {
	return func(c *Client) { c.cache = rc }
}

// New creates a Client for the given endpoint. The transport is an explicit
// dependency: construction fails when it is absent. transport.Default()
// builds one on net/http for callers without a custom stack.
func New(url string, doer transport.Doer, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, ErrNoURL
	}
	if doer == nil {
		return nil, ErrNoTransport
	}
	c := &Client{
		url:       url,
		transport: doer,
		policy:    CacheFirst,
		cache:     cache.New(),
	}
	for _, f := range opts {
		f(c)
	}
	if !c.policy.Valid() {
		return nil, ErrInvalidCachePolicy
	}
	return c, nil
}

type execOptions struct {
	policy CachePolicy
}

type ExecOption func(*execOptions)

// WithPolicy overrides the client's cache policy for a single call.
func WithPolicy(p CachePolicy) ExecOption {
	return func(o *execOptions) { o.policy = p }
}

// ExecuteQuery runs op under the active cache policy and returns one result.
// Network and protocol failures are captured inside the result; only invalid
// operations and configuration mistakes return a Go error.
func (c *Client) ExecuteQuery(ctx context.Context, op operation.Operation, opts ...ExecOption) (result.OperationResult, error) {
	norm, err := operation.Normalize(op)
	if err != nil {
		return result.OperationResult{}, err
	}

	eo := execOptions{policy: c.policy}
	for _, f := range opts {
		f(&eo)
	}
	if !eo.policy.Valid() {
		return result.OperationResult{}, ErrInvalidCachePolicy
	}

	ctx, _ = opid.NewContext(ctx)
	start := time.Now()
	eventbus.Publish(ctx, events.OperationStart{Kind: "query", Key: norm.Key(), Policy: string(eo.policy)})
	finish := func(res result.OperationResult, hit bool) {
		eventbus.Publish(ctx, events.OperationFinish{
			Kind:     "query",
			Key:      norm.Key(),
			Policy:   string(eo.policy),
			CacheHit: hit,
			Err:      combinedOrNil(res),
			Duration: time.Since(start),
		})
	}

	switch eo.policy {
	case NetworkOnly:
		res := c.fetch(ctx, norm)
		finish(res, false)
		return res, nil

	case CacheFirst:
		if res, ok := c.cache.Get(norm.Key()); ok {
			finish(res, true)
			return res, nil
		}
		res := c.fetch(ctx, norm)
		c.cache.Set(norm.Key(), res)
		finish(res, false)
		return res, nil

	default: // CacheAndNetwork
		cached, hit := c.cache.Get(norm.Key())
		if !hit {
			res := c.fetch(ctx, norm)
			c.cache.Set(norm.Key(), res)
			finish(res, false)
			return res, nil
		}
		// Second delivery: the fresh fetch outlives the caller's interest,
		// so it must not be cancelable through ctx.
		bg := context.WithoutCancel(ctx)
		go func() {
			fresh := c.fetch(bg, norm)
			c.cache.Set(norm.Key(), fresh)
			eventbus.Publish(bg, events.OperationFinish{
				Kind:     "query",
				Key:      norm.Key(),
				Policy:   string(eo.policy),
				CacheHit: false,
				Err:      combinedOrNil(fresh),
				Duration: time.Since(start),
			})
			if c.refresh != nil {
				c.refresh(op, fresh)
			}
		}()
		finish(cached, true)
		return cached, nil
	}
}

// ExecuteMutation always hits the network; the cache is never consulted or
// updated for mutations.
func (c *Client) ExecuteMutation(ctx context.Context, op operation.Operation) (result.OperationResult, error) {
	norm, err := operation.Normalize(op)
	if err != nil {
		return result.OperationResult{}, err
	}

	ctx, _ = opid.NewContext(ctx)
	start := time.Now()
	eventbus.Publish(ctx, events.OperationStart{Kind: "mutation", Key: norm.Key(), Policy: string(NetworkOnly)})
	res := c.fetch(ctx, norm)
	eventbus.Publish(ctx, events.OperationFinish{
		Kind:     "mutation",
		Key:      norm.Key(),
		Policy:   string(NetworkOnly),
		Err:      combinedOrNil(res),
		Duration: time.Since(start),
	})
	return res, nil
}

// ExecuteSubscription delegates op to the configured forwarder. A missing
// forwarder is a configuration error, not a runtime one.
func (c *Client) ExecuteSubscription(ctx context.Context, op operation.Operation) (<-chan result.OperationResult, error) {
	if c.forwarder == nil {
		return nil, ErrNoSubscriptionForwarder
	}
	if _, err := operation.Normalize(op); err != nil {
		return nil, err
	}
	return c.forwarder(op)
}

// fetch performs one network round trip and unifies its outcome into an
// OperationResult. It never fails as a Go error.
func (c *Client) fetch(ctx context.Context, norm operation.Normalized) result.OperationResult {
	opts := c.fetchOpts
	if c.context != nil {
		opts = operation.Merge(opts, c.context())
	}
	req, err := norm.NewRequest(ctx, c.url, opts)
	if err != nil {
		return result.OperationResult{Error: result.NetworkError(err)}
	}

	start := time.Now()
	eventbus.Publish(ctx, events.FetchStart{URL: c.url, Key: norm.Key()})
	resp, err := c.transport.Do(req)
	fin := events.FetchFinish{URL: c.url, Key: norm.Key(), Err: err, Duration: time.Since(start)}
	if resp != nil {
		fin.Status = resp.StatusCode
	}
	eventbus.Publish(ctx, fin)

	if err != nil {
		return result.OperationResult{Error: result.NetworkError(err)}
	}

	env := transport.Parse(resp)
	if !env.OK || env.Body == nil {
		return result.OperationResult{Error: result.ResponseError(env.Status, env.StatusText)}
	}
	return result.OperationResult{
		Data:  env.Body.Data,
		Error: result.ProtocolErrors(env.Body.Errors),
	}
}

// combinedOrNil converts a result's error field to a plain error for events,
// avoiding a non-nil interface wrapping a nil pointer.
func combinedOrNil(res result.OperationResult) error {
	if res.Error == nil {
		return nil
	}
	return res.Error
}
