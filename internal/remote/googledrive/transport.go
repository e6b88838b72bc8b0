package googledrive

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	// driveRateLimitPerSecond is the max requests per second sent to Drive
	driveRateLimitPerSecond = 10
	// driveRateLimitBurst is the burst capacity for rate limiting
	driveRateLimitBurst = 20

	// requestTimeout bounds every Drive request so a stalled transfer
	// cannot wedge a sync run.
	requestTimeout = 30 * time.Second
)

// rateLimitedTransport wraps an http.RoundTripper with rate limiting
type rateLimitedTransport struct {
	transport http.RoundTripper
	limiter   *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Wait for rate limiter to allow the request
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.transport.RoundTrip(req)
}

// NewHTTPClient creates the authenticated, rate limited client shared
// by the Drive service and the raw upload requests. Tokens are drawn
// from src at dispatch time, so a refresh that lands mid-run is picked
// up by the next request rather than the ones already in flight.
func NewHTTPClient(ctx context.Context, src oauth2.TokenSource) *http.Client {
	// Calculate interval from rate: 1 second / requests per second
	interval := time.Second / time.Duration(driveRateLimitPerSecond)

	authed := oauth2.NewClient(ctx, src)
	transport := &rateLimitedTransport{
		transport: authed.Transport,
		limiter:   rate.NewLimiter(rate.Every(interval), driveRateLimitBurst),
	}
	return &http.Client{
		Transport: transport,
		Timeout:   requestTimeout,
	}
}
