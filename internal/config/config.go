package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/weather-assistant/internal/weather"
)

// DefaultKBMinSimilarity is the KB_MIN_SIMILARITY used when the variable is unset.
const DefaultKBMinSimilarity = 0.1

type AppConfig struct {
	Port           string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	// Request limit on the chat endpoints, one budget shared by all clients.
	RateLimitRPS   float64
	RateLimitBurst int

	// Telemetry.
	TelemetryProvider   string // openweather, weatherapi or openmeteo
	OpenWeatherAPIKey   string
	WeatherAPIKey       string
	GeocoderAPIKey      string
	TelemetryTimeout    time.Duration
	TelemetryMaxRetries int

	// Language engine.
	LLMProvider    string
	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	LLMIntentModel string
	LLMTemperature float64
	LLMTimeout     time.Duration
	IntentMode     string // llm or smart

	// Embeddings.
	EmbeddingProvider   string // local or openai
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingModel      string
	EmbeddingDimensions int

	// Knowledge store.
	KBBackend       string // sqlite or memory
	KBPath          string
	KBCollection    string
	KBMinSimilarity float64 // only gates retrieval without a location scope
	RetrievalK      int

	StalenessThreshold time.Duration

	// FetchInterval controls how often tracked locations are refreshed.
	FetchInterval time.Duration

	// Locations to keep warm.
	Locations []weather.Location

	// Store retention.
	StoreMaxHistory int           // max entries per location, memory backend only (0 = unlimited)
	StoreMaxAge     time.Duration // max age of entries (0 = unlimited)
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("config: no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(getenvDefault("LOG_FORMAT", "text"))
	if cfg.RequestTimeout, err = getenvDuration("REQUEST_TIMEOUT", 120*time.Second); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = getenvFloat("RATE_LIMIT_RPS", 5); err != nil {
		return nil, err
	}
	cfg.RateLimitBurst = getenvInt("RATE_LIMIT_BURST", 10)

	cfg.TelemetryProvider = strings.ToLower(getenvDefault("TELEMETRY_PROVIDER", "openweather"))
	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")
	if cfg.TelemetryTimeout, err = getenvDuration("TELEMETRY_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	cfg.TelemetryMaxRetries = getenvInt("TELEMETRY_MAX_RETRIES", 0)

	cfg.LLMProvider = strings.ToLower(getenvDefault("LLM_PROVIDER", "openrouter"))
	cfg.LLMAPIKey = getenvDefault("LLM_API_KEY", os.Getenv("OPENROUTER_API_KEY"))
	cfg.LLMBaseURL = os.Getenv("LLM_BASE_URL")
	cfg.LLMModel = getenvDefault("LLM_MODEL", "tngtech/deepseek-r1t2-chimera:free")
	cfg.LLMIntentModel = getenvDefault("LLM_INTENT_MODEL", cfg.LLMModel)
	if cfg.LLMTemperature, err = getenvFloat("LLM_TEMPERATURE", 0.3); err != nil {
		return nil, err
	}
	if cfg.LLMTimeout, err = getenvDuration("LLM_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	cfg.IntentMode = strings.ToLower(getenvDefault("INTENT_MODE", "llm"))

	cfg.EmbeddingProvider = strings.ToLower(getenvDefault("EMBEDDING_PROVIDER", "local"))
	cfg.EmbeddingAPIKey = os.Getenv("EMBEDDING_API_KEY")
	cfg.EmbeddingBaseURL = os.Getenv("EMBEDDING_BASE_URL")
	cfg.EmbeddingModel = getenvDefault("EMBEDDING_MODEL", "text-embedding-3-small")
	cfg.EmbeddingDimensions = getenvInt("EMBEDDING_DIMENSIONS", 256)

	cfg.KBBackend = strings.ToLower(getenvDefault("KB_BACKEND", "sqlite"))
	cfg.KBPath = getenvDefault("KB_PATH", "./data/knowledge.db")
	cfg.KBCollection = getenvDefault("KB_COLLECTION", "weather_insights")
	if cfg.KBMinSimilarity, err = getenvFloat("KB_MIN_SIMILARITY", DefaultKBMinSimilarity); err != nil {
		return nil, err
	}
	cfg.RetrievalK = getenvInt("RETRIEVAL_K", 3)

	if cfg.StalenessThreshold, err = getenvDuration("STALENESS_THRESHOLD", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}

	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96) // roughly 24h at 15-minute intervals
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", 0); err != nil {
		return nil, err
	}

	locs, err := loadTrackedLocations()
	if err != nil {
		return nil, err
	}
	cfg.Locations = locs

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.TelemetryProvider {
	case "openweather", "weatherapi", "openmeteo":
	default:
		return fmt.Errorf("invalid TELEMETRY_PROVIDER %q", c.TelemetryProvider)
	}
	switch c.IntentMode {
	case "llm", "smart":
	default:
		return fmt.Errorf("invalid INTENT_MODE %q", c.IntentMode)
	}
	switch c.EmbeddingProvider {
	case "local", "openai":
	default:
		return fmt.Errorf("invalid EMBEDDING_PROVIDER %q", c.EmbeddingProvider)
	}
	switch c.KBBackend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("invalid KB_BACKEND %q", c.KBBackend)
	}
	if c.RetrievalK <= 0 {
		return fmt.Errorf("RETRIEVAL_K must be positive, got %d", c.RetrievalK)
	}
	if c.StalenessThreshold <= 0 {
		return fmt.Errorf("STALENESS_THRESHOLD must be positive, got %s", c.StalenessThreshold)
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be within [0, 2], got %v", c.LLMTemperature)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %v", c.RateLimitRPS)
	}
	return nil
}

// loadTrackedLocations reads the comma separated city and country lists.
func loadTrackedLocations() ([]weather.Location, error) {
	city := strings.TrimSpace(os.Getenv("WEATHER_LOCATION_CITY"))
	country := strings.TrimSpace(os.Getenv("WEATHER_LOCATION_COUNTRY"))
	if city == "" && country == "" {
		return nil, nil
	}
	cities := strings.Split(city, ",")
	countries := strings.Split(country, ",")
	if len(cities) != len(countries) {
		return nil, fmt.Errorf("number of cities and countries must be the same")
	}
	var locs []weather.Location
	for i := range cities {
		c := strings.TrimSpace(cities[i])
		if c == "" {
			continue
		}
		locs = append(locs, weather.Location{
			City:    c,
			Country: strings.TrimSpace(countries[i]),
		})
	}

	return locs, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
