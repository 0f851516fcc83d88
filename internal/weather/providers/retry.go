package providers

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/i474232898/weather-assistant/internal/weather"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultBackoff returns the backoff settings used when only a retry count is configured.
func DefaultBackoff(maxRetries int) BackoffConfig {
	return BackoffConfig{
		MaxRetries:      maxRetries,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

type retryingProvider struct {
	next weather.Provider
	cfg  BackoffConfig
}

// WithRetry layers retries with exponential backoff around a provider.
// Unknown locations and an open circuit are never retried. With MaxRetries <= 0
// the provider is returned unchanged.
func WithRetry(p weather.Provider, cfg BackoffConfig) weather.Provider {
	if cfg.MaxRetries <= 0 || cfg.InitialInterval <= 0 {
		return p
	}
	return &retryingProvider{next: p, cfg: cfg}
}

func (r *retryingProvider) Name() string {
	return r.next.Name()
}

func (r *retryingProvider) FetchCurrent(ctx context.Context, loc weather.Location) (weather.Snapshot, error) {
	var attempt int
	for {
		snap, err := r.next.FetchCurrent(ctx, loc)
		if err == nil {
			return snap, nil
		}
		if errors.Is(err, weather.ErrLocationNotFound) || errors.Is(err, errCircuitOpen) {
			return weather.Snapshot{}, err
		}
		if attempt >= r.cfg.MaxRetries {
			return weather.Snapshot{}, err
		}

		delay := r.cfg.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > r.cfg.MaxInterval && r.cfg.MaxInterval > 0 {
			delay = r.cfg.MaxInterval
		}
		slog.Debug("weather: retrying fetch", "provider", r.next.Name(), "attempt", attempt+1, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return weather.Snapshot{}, err
		case <-timer.C:
		}
		attempt++
	}
}
