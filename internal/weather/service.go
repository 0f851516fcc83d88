package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/i474232898/weather-assistant/internal/common"
)

// Service is the telemetry adapter used by the assistant. It resolves a free
// text location, performs exactly one provider call and maps every failure to
// ErrLocationNotFound, ErrTelemetryUnavailable or common.ErrTransportTimeout.
type Service struct {
	provider Provider
	now      func() time.Time
}

// NewService creates a new Service around a single provider.
func NewService(provider Provider) *Service {
	return &Service{
		provider: provider,
		now:      time.Now,
	}
}

// FetchCurrent returns the current conditions for the named location.
func (s *Service) FetchCurrent(ctx context.Context, location string) (Snapshot, error) {
	loc := ParseLocation(location)
	if loc.City == "" {
		return Snapshot{}, fmt.Errorf("%w: empty location", ErrLocationNotFound)
	}
	if s.provider == nil {
		return Snapshot{}, fmt.Errorf("%w: no weather provider configured", ErrTelemetryUnavailable)
	}

	slog.Debug("weather: fetching current conditions", "provider", s.provider.Name(), "location", loc.Query())

	snap, err := s.provider.FetchCurrent(ctx, loc)
	if err != nil {
		err = normalizeError(err)
		slog.Warn("weather: fetch failed", "provider", s.provider.Name(), "location", loc.Query(), "error", err)
		return Snapshot{}, err
	}

	if strings.TrimSpace(snap.Location.City) == "" {
		snap.Location.City = loc.City
	}
	if snap.Location.Country == "" {
		snap.Location.Country = loc.Country
	}
	// The fetch time, not the provider's observation time, drives freshness.
	snap.FetchedAt = s.now().UTC()
	if snap.Provider == "" {
		snap.Provider = s.provider.Name()
	}
	if snap.Metrics.Condition == "" {
		snap.Metrics.Condition = ConditionUnknown
	}
	return snap, nil
}

// Name reports the underlying provider name.
func (s *Service) Name() string {
	if s.provider == nil {
		return "none"
	}
	return s.provider.Name()
}

func normalizeError(err error) error {
	switch {
	case errors.Is(err, ErrLocationNotFound),
		errors.Is(err, ErrTelemetryUnavailable),
		errors.Is(err, common.ErrTransportTimeout):
		return err
	}
	if classified := common.ClassifyTimeout(err); errors.Is(classified, common.ErrTransportTimeout) {
		return classified
	}
	return fmt.Errorf("%w: %v", ErrTelemetryUnavailable, err)
}
