package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"spinshot/internal/domain"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string

	VideoModel        string
	VideoPollInterval time.Duration
	VideoMaxPolls     int

	ImageHostURL    string
	ImageHostAPIKey string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioPublicURL string
	MinioUseSSL    bool

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	AllowedOrigins   []string
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. The Gemini key gates every generation feature, so a
// missing one fails startup before any network call is attempted.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		VideoModel:        getEnv("VIDEO_MODEL", "veo-3.0-generate-001"),
		VideoPollInterval: time.Second * time.Duration(getEnvInt("VIDEO_POLL_SECONDS", 10)),
		VideoMaxPolls:     getEnvInt("VIDEO_MAX_POLLS", 30),
		ImageHostURL:      os.Getenv("IMAGE_HOST_URL"),
		ImageHostAPIKey:   os.Getenv("IMAGE_HOST_API_KEY"),
		MinioEndpoint:     os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey:    os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:    os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:       getEnv("MINIO_BUCKET", "spinshot"),
		MinioPublicURL:    os.Getenv("MINIO_PUBLIC_URL"),
		MinioUseSSL:       getEnvBool("MINIO_USE_SSL", false),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 600)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		AllowedOrigins:    splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required: %w", domain.ErrConfigurationMissing)
	}

	return cfg, nil
}

// ImageHostConfigured reports whether the image-bed upload client can be built.
func (c *Config) ImageHostConfigured() bool {
	return strings.TrimSpace(c.ImageHostURL) != ""
}

// MinioConfigured reports whether the S3-compatible host can be built.
func (c *Config) MinioConfigured() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != ""
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

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
