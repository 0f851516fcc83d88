package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-assistant/internal/common"
	"github.com/i474232898/weather-assistant/internal/weather"
)

var (
	errRateLimited  = errors.New("rate limited")
	errServerError  = errors.New("server error")
	errUnexpected   = errors.New("unexpected status code")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
	errNoAPIKey     = errors.New("api key is not configured")
)

// Option customizes a provider.
type Option func(*options)

type options struct {
	baseURL string
}

// WithBaseURL points a provider at a different endpoint, e.g. a proxy or a test server.
func WithBaseURL(u string) Option {
	return func(o *options) {
		o.baseURL = u
	}
}

func applyOptions(defaultURL string, opts []Option) options {
	o := options{baseURL: defaultURL}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// doRequest executes one HTTP request through the circuit breaker. Only
// transport failures, 429 and 5xx answers count against the breaker; other
// responses are handed back so the provider can map 4xx bodies to domain
// errors. There are no retries here, see WithRetry.
func doRequest(
	ctx context.Context,
	client *http.Client,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrTelemetryUnavailable, errNoHTTPClient)
	}

	req, err := buildRequest()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrTelemetryUnavailable, err)
	}
	req = req.WithContext(ctx)

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			return nil, execErr
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			drain(resp)
			return nil, errRateLimited
		}
		if resp.StatusCode >= 500 {
			drain(resp)
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w: %v", weather.ErrTelemetryUnavailable, errCircuitOpen, err)
		}
		if classified := common.ClassifyTimeout(err); errors.Is(classified, common.ErrTransportTimeout) {
			return nil, classified
		}
		return nil, fmt.Errorf("%w: %v", weather.ErrTelemetryUnavailable, err)
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected result type from circuit breaker", weather.ErrTelemetryUnavailable)
	}
	return resp, nil
}

// unexpectedStatus closes the body and reports a non-success answer.
func unexpectedStatus(resp *http.Response) error {
	body := drain(resp)
	return fmt.Errorf("%w: %w: %d %s", weather.ErrTelemetryUnavailable, errUnexpected, resp.StatusCode, body)
}

func drain(resp *http.Response) string {
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return string(b)
}

func decodeError(provider string, err error) error {
	return fmt.Errorf("%w: %s payload: %v", weather.ErrTelemetryUnavailable, provider, err)
}
