package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates runtime configuration for the gigbridge services.
type Config struct {
	Environment    string
	HTTPPort       int
	DatabaseURL    string
	DataStore      string
	SessionStore   string
	RedisURL       string
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string
	FrontendURL    string
	// PublicURL is where this API is reachable; OAuth providers redirect back to it.
	PublicURL string

	// Deep links accepted by the mobile app.
	AppScheme         string
	UniversalLinkHost string

	// Backend auth service.
	BackendURL          string
	BackendClientID     string
	BackendClientSecret string
	BackendOIDCIssuer   string
	BackendJWTSecret    string
	BackendJWTIssuer    string

	SessionTTL    time.Duration
	ClientIdleTTL time.Duration
}

// Load reads configuration from environment variables with sensible defaults for local development.
func Load() (Config, error) {
	databaseURL, err := getEnvOrFile("DATABASE_URL", "/run/secrets/gigbridge_database_url")
	if err != nil {
		return Config{}, err
	}

	redisURL, err := getEnvOrFile("REDIS_URL", "/run/secrets/gigbridge_redis_url")
	if err != nil {
		return Config{}, err
	}

	jwtSecret, err := getEnvOrFile("BACKEND_JWT_SECRET", "/run/secrets/gigbridge_backend_jwt_secret")
	if err != nil {
		return Config{}, err
	}

	clientSecret, err := getEnvOrFile("BACKEND_CLIENT_SECRET", "/run/secrets/gigbridge_backend_client_secret")
	if err != nil {
		return Config{}, err
	}

	backendURL := strings.TrimRight(strings.TrimSpace(getEnv("BACKEND_URL", "")), "/")

	environment := strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	if environment == "" {
		if backendURL != "" {
			environment = "production"
		} else {
			environment = "development"
		}
	}

	cfg := Config{
		Environment:         environment,
		DatabaseURL:         databaseURL,
		DataStore:           strings.ToLower(getEnv("DATA_STORE", "memory")),
		SessionStore:        strings.ToLower(getEnv("SESSION_STORE", "memory")),
		RedisURL:            strings.TrimSpace(redisURL),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:           strings.ToLower(getEnv("LOG_FORMAT", "text")),
		AllowedOrigins:      parseCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8081")),
		FrontendURL:         strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
		PublicURL:           strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8080"), "/"),
		AppScheme:           strings.ToLower(getEnv("APP_SCHEME", "gigbridge")),
		UniversalLinkHost:   strings.ToLower(getEnv("UNIVERSAL_LINK_HOST", "gigbridge.app")),
		BackendURL:          backendURL,
		BackendClientID:     strings.TrimSpace(getEnv("BACKEND_CLIENT_ID", "")),
		BackendClientSecret: strings.TrimSpace(clientSecret),
		BackendOIDCIssuer:   strings.TrimSpace(getEnv("BACKEND_OIDC_ISSUER", "")),
		BackendJWTSecret:    strings.TrimSpace(jwtSecret),
		BackendJWTIssuer:    strings.TrimSpace(getEnv("BACKEND_JWT_ISSUER", "")),
	}

	portValue := getEnv("PORT", getEnv("HTTP_PORT", "8080"))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return Config{}, fmt.Errorf("invalid port %q: %w", portValue, err)
	}
	cfg.HTTPPort = port

	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 7*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ClientIdleTTL, err = getDuration("CLIENT_IDLE_TTL", 2*time.Hour); err != nil {
		return Config{}, err
	}

	if cfg.DataStore == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATA_STORE is postgres but DATABASE_URL is not set")
	}
	if cfg.SessionStore == "redis" && cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("SESSION_STORE is redis but REDIS_URL is not set")
	}

	if !cfg.IsDevelopment() {
		if err := cfg.validateProduction(); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func (c Config) validateProduction() error {
	if c.BackendURL == "" {
		return errors.New("config: BACKEND_URL is required outside development")
	}
	if c.BackendClientID == "" {
		return errors.New("config: BACKEND_CLIENT_ID is required outside development")
	}
	if c.BackendJWTSecret == "" {
		return errors.New("config: BACKEND_JWT_SECRET is required outside development")
	}
	if len(c.AllowedOrigins) == 0 {
		return errors.New("config: ALLOWED_ORIGINS must define at least one origin outside development")
	}
	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			return errors.New("config: ALLOWED_ORIGINS cannot contain wildcard outside development")
		}
	}
	return nil
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IsDevelopment reports whether the service runs with development defaults.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// EmailRedirectURL is the app link embedded in confirmation and recovery emails.
func (c Config) EmailRedirectURL() string {
	return c.AppScheme + "://auth/callback"
}

// OAuthCallbackURL is the web callback handled by this API.
func (c Config) OAuthCallbackURL() string {
	return c.PublicURL + "/api/auth/callback"
}

// UseInMemoryStore returns true if the in-memory user record repository should be used.
func (c Config) UseInMemoryStore() bool {
	return c.DataStore == "memory"
}

// UseRedisSessions returns true if client sessions should be persisted in Redis.
func (c Config) UseRedisSessions() bool {
	return c.SessionStore == "redis"
}

// BackendEnabled returns true when a backend auth service is configured.
func (c Config) BackendEnabled() bool {
	return c.BackendURL != "" && c.BackendClientID != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, value)
	}
	return d, nil
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}
