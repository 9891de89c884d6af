// Package fetch performs a single logical GET-for-JSON against an arbitrary
// origin. Panels are frequently HTTP-only, self-signed or geo-restricted, so
// a failed direct attempt falls through a fixed ordered chain of pass-through
// relays; the first parseable answer wins and callers never learn which path
// produced it. This is a fan-out-then-fail chain, not a backoff loop.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/iptvplus/iptv-plus/internal/httpclient"
	"github.com/iptvplus/iptv-plus/internal/metrics"
)

// Reason classifies a terminal fetch failure.
type Reason string

const (
	ReasonTimeout     Reason = "timeout"
	ReasonUnreachable Reason = "unreachable"
)

// Error is the single error surfaced when the direct path and every relay
// have been exhausted. Err keeps the last underlying cause for logs only.
type Error struct {
	Reason Reason
	URL    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Relay wraps a target URL into a pass-through endpoint. When PayloadField is
// set the relay answers a JSON wrapper object and the real payload is a
// JSON-encoded string under that field.
type Relay struct {
	Name         string
	Wrap         func(target string) string
	PayloadField string
}

// DefaultRelays is the production fallback chain, in attempt order.
var DefaultRelays = []Relay{
	{
		Name: "corsproxy",
		Wrap: func(t string) string { return "https://corsproxy.io/?url=" + url.QueryEscape(t) },
	},
	{
		Name: "codetabs",
		Wrap: func(t string) string { return "https://api.codetabs.com/v1/proxy?quest=" + url.QueryEscape(t) },
	},
	{
		Name:         "allorigins",
		Wrap:         func(t string) string { return "https://api.allorigins.win/get?url=" + url.QueryEscape(t) },
		PayloadField: "contents",
	},
}

// Fetcher resolves URLs to JSON payloads. Safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	relays  []Relay
	limiter *rate.Limiter // paces relay attempts; public relays throttle hard
	log     *logrus.Entry
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient overrides the HTTP client (tests, custom timeout budgets).
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithRelays overrides the fallback chain.
func WithRelays(relays []Relay) Option {
	return func(f *Fetcher) { f.relays = relays }
}

// WithRelayRate overrides relay pacing.
func WithRelayRate(l *rate.Limiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// New returns a Fetcher using the shared tuned client, the default relay
// chain and one relay attempt per second with a burst of the chain length.
func New(log *logrus.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:  httpclient.Default(),
		relays:  DefaultRelays,
		limiter: rate.NewLimiter(rate.Every(time.Second), len(DefaultRelays)),
		log:     log.WithField("component", "fetch"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// JSON performs the logical fetch for target and returns the raw JSON value.
// The context carries the overall timeout budget; expiry is reported as
// ReasonTimeout, anything else as ReasonUnreachable.
func (f *Fetcher) JSON(ctx context.Context, target string) (json.RawMessage, error) {
	start := time.Now()
	defer func() { metrics.FetchDuration.Observe(time.Since(start).Seconds()) }()

	body, err := f.get(ctx, target)
	if err == nil {
		if payload, perr := validJSON(body); perr == nil {
			metrics.FetchDirect.Inc()
			return payload, nil
		}
		err = errors.New("direct response is not JSON")
	}
	f.log.WithField("url", target).Debugf("direct attempt failed: %v", err)

	lastErr := err
	for _, relay := range f.relays {
		if werr := f.limiter.Wait(ctx); werr != nil {
			lastErr = werr
			break
		}
		payload, rerr := f.viaRelay(ctx, relay, target)
		if rerr == nil {
			metrics.FetchRelay.WithLabelValues(relay.Name).Inc()
			return payload, nil
		}
		f.log.WithField("url", target).Debugf("relay %s failed: %v", relay.Name, rerr)
		lastErr = rerr
	}

	metrics.FetchFailed.Inc()
	reason := ReasonUnreachable
	if ctx.Err() != nil || errors.Is(lastErr, context.DeadlineExceeded) {
		reason = ReasonTimeout
	}
	return nil, &Error{Reason: reason, URL: target, Err: lastErr}
}

func (f *Fetcher) viaRelay(ctx context.Context, relay Relay, target string) (json.RawMessage, error) {
	body, err := f.get(ctx, relay.Wrap(target))
	if err != nil {
		return nil, err
	}
	if relay.PayloadField != "" {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(body, &wrapper); err != nil {
			return nil, fmt.Errorf("relay %s: wrapper: %w", relay.Name, err)
		}
		field, ok := wrapper[relay.PayloadField]
		if !ok {
			return nil, fmt.Errorf("relay %s: wrapper lacks %q", relay.Name, relay.PayloadField)
		}
		// The payload arrives JSON-encoded inside the field: decode the
		// string, then treat its contents as the actual JSON value.
		var inner string
		if err := json.Unmarshal(field, &inner); err != nil {
			return nil, fmt.Errorf("relay %s: payload field: %w", relay.Name, err)
		}
		return validJSON([]byte(inner))
	}
	return validJSON(body)
}

// get issues one GET and returns the body for 2xx responses.
func (f *Fetcher) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "IPTVPlus/1.0")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: %s", u, resp.Status)
	}
	return body, nil
}

func validJSON(b []byte) (json.RawMessage, error) {
	if !json.Valid(b) {
		return nil, errors.New("invalid JSON")
	}
	return json.RawMessage(b), nil
}
