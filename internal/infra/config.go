package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	AllowedOrigins     []string
	ReplicateAPIToken  string
	ReplicateBaseURL   string
	ProvidersFile      string
	DefaultProvider    string
	StrictProviderKeys bool
	CacheExpiry        time.Duration
	CacheStaleFor      time.Duration
	CacheSweepInterval time.Duration
	SubmitTimeout      time.Duration
	RunTimeout         time.Duration
	StatusTimeout      time.Duration
	ProviderRPS        float64
	PollInterval       time.Duration
	PollMaxAttempts    int
	PollMaxElapsed     time.Duration
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AllowedOrigins:     getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		ReplicateAPIToken:  strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN")),
		ReplicateBaseURL:   getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ProvidersFile:      strings.TrimSpace(os.Getenv("PROVIDERS_FILE")),
		DefaultProvider:    strings.TrimSpace(os.Getenv("DEFAULT_PROVIDER")),
		StrictProviderKeys: getEnvBool("STRICT_PROVIDER_KEYS", true),
		CacheExpiry:        getEnvDuration("CACHE_EXPIRY", time.Hour),
		CacheStaleFor:      getEnvDuration("CACHE_STALE_RETENTION", time.Hour),
		CacheSweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", 10*time.Minute),
		SubmitTimeout:      getEnvDuration("PROVIDER_SUBMIT_TIMEOUT", 30*time.Second),
		RunTimeout:         getEnvDuration("PROVIDER_RUN_TIMEOUT", 60*time.Second),
		StatusTimeout:      getEnvDuration("PROVIDER_STATUS_TIMEOUT", 5*time.Second),
		ProviderRPS:        getEnvFloat("PROVIDER_REQUESTS_PER_SECOND", 5),
		PollInterval:       getEnvDuration("POLL_INTERVAL", 2*time.Second),
		PollMaxAttempts:    getEnvInt("POLL_MAX_ATTEMPTS", 150),
		PollMaxElapsed:     getEnvDuration("POLL_MAX_ELAPSED", 5*time.Minute),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 75)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.CacheExpiry <= 0 {
		return nil, fmt.Errorf("CACHE_EXPIRY must be positive")
	}
	if cfg.CacheSweepInterval < 0 {
		return nil, fmt.Errorf("CACHE_SWEEP_INTERVAL must not be negative")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s") or bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	v = strings.TrimSpace(v)
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
