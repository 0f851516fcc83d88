package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/i474232898/weather-assistant/internal/assistant"
	"github.com/i474232898/weather-assistant/internal/config"
	"github.com/i474232898/weather-assistant/internal/knowledge"
	"github.com/i474232898/weather-assistant/internal/llm"
	"github.com/i474232898/weather-assistant/internal/metrics"
	"github.com/i474232898/weather-assistant/internal/store"
	"github.com/i474232898/weather-assistant/internal/weather"
	"github.com/i474232898/weather-assistant/internal/weather/providers"
)

// vectorStore is what both store backends provide.
type vectorStore interface {
	knowledge.Collection
	Prune(ctx context.Context) (int, error)
	Close() error
}

type components struct {
	orchestrator *assistant.Orchestrator
	store        vectorStore
	metrics      *metrics.Metrics
}

func (a *components) Close() {
	if err := a.store.Close(); err != nil {
		slog.Error("closing knowledge store", "error", err)
	}
}

func buildApp(cfg *config.AppConfig) (*components, error) {
	// Shared HTTP client for outbound telemetry calls.
	httpClient := &http.Client{Timeout: cfg.TelemetryTimeout}

	provider, err := newProvider(cfg, httpClient)
	if err != nil {
		return nil, err
	}
	if cfg.TelemetryMaxRetries > 0 {
		provider = providers.WithRetry(provider, providers.DefaultBackoff(cfg.TelemetryMaxRetries))
	}
	telemetry := weather.NewService(provider)

	st, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	var embedder knowledge.Embedder
	switch cfg.EmbeddingProvider {
	case "openai":
		embedder = knowledge.NewOpenAIEmbedder(knowledge.OpenAIEmbedderConfig{
			APIKey:     cfg.EmbeddingAPIKey,
			BaseURL:    cfg.EmbeddingBaseURL,
			Model:      cfg.EmbeddingModel,
			Dimensions: cfg.EmbeddingDimensions,
		})
	default:
		embedder = knowledge.NewHashingEmbedder(cfg.EmbeddingDimensions)
	}
	kb := knowledge.NewBase(st, embedder, cfg.KBMinSimilarity)

	engine, err := llm.NewClient(llm.Config{
		Provider:    cfg.LLMProvider,
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		Temperature: float32(cfg.LLMTemperature),
		Timeout:     cfg.LLMTimeout,
		Title:       "Weather Assistant",
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var intents assistant.IntentExtractor = assistant.NewLLMExtractor(engine, cfg.LLMIntentModel)
	if cfg.IntentMode == "smart" {
		intents = assistant.NewSmartExtractor(intents)
	}

	m := metrics.New()
	orch := assistant.New(assistant.Deps{
		Intents:     intents,
		Knowledge:   kb,
		Telemetry:   telemetry,
		Synthesizer: assistant.NewSynthesizer(engine, ""),
		Recorder:    m,
	}, assistant.Config{
		RetrievalK: cfg.RetrievalK,
		Freshness:  assistant.FreshnessPolicy{Threshold: cfg.StalenessThreshold},
	})

	slog.Info("assistant ready",
		"telemetry", telemetry.Name(),
		"store", cfg.KBBackend,
		"embeddings", cfg.EmbeddingProvider,
		"model", engine.Model(),
		"intent_mode", cfg.IntentMode,
	)
	return &components{orchestrator: orch, store: st, metrics: m}, nil
}

func newProvider(cfg *config.AppConfig, client *http.Client) (weather.Provider, error) {
	switch cfg.TelemetryProvider {
	case "openweather":
		return providers.NewOpenWeatherProvider(client, cfg.OpenWeatherAPIKey), nil
	case "weatherapi":
		return providers.NewWeatherAPIProvider(client, cfg.WeatherAPIKey), nil
	case "openmeteo":
		// Open-Meteo needs no key, but geocoding requires a Google API key.
		if cfg.GeocoderAPIKey == "" {
			return nil, fmt.Errorf("GEOCODER_API_KEY is required for the openmeteo provider")
		}
		return providers.NewOpenMeteoProvider(client, providers.GoogleGeocoder(cfg.GeocoderAPIKey)), nil
	default:
		return nil, fmt.Errorf("unknown telemetry provider %q", cfg.TelemetryProvider)
	}
}

func newStore(cfg *config.AppConfig) (vectorStore, error) {
	if cfg.KBBackend == "memory" {
		return store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge), nil
	}
	s, err := store.NewSQLiteStore(cfg.KBPath, cfg.KBCollection, cfg.StoreMaxAge)
	if err != nil {
		return nil, fmt.Errorf("open knowledge store: %w", err)
	}
	return s, nil
}
