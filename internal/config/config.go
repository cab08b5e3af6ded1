package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	BaseURL     string
	DataDir     string

	GeminiAPIKeys  []string
	GeminiModel    string
	AnalyzeTimeout time.Duration
	AnalyzeWorkers int
	MergePolish    bool

	IngressLimitBytes int64
	SegmentDuration   time.Duration
	MaxUploadBytes    int64

	JWTSecret string
	TokenTTL  time.Duration

	UploadLinkSecret string
	UploadLinkTTL    time.Duration

	FFmpegPath  string
	PDFFontPath string
}

func LoadConfig() (Config, error) {
	cfg := Config{}

	cfg.Port = envOrDefault("PORT", "8080")
	cfg.Environment = envOrDefault("ENVIRONMENT", "local")
	cfg.BaseURL = envOrDefault("BASE_URL", fmt.Sprintf("http://localhost:%s", cfg.Port))
	cfg.DataDir = envOrDefault("DATA_DIR", "data")

	cfg.GeminiAPIKeys = splitKeys(geminiKeyEnv())
	cfg.GeminiModel = envOrDefault("GEMINI_MODEL", "gemini-2.5-flash")

	analyzeTimeoutSeconds, err := parseIntEnv("ANALYZE_TIMEOUT_SECONDS", 600)
	if err != nil {
		return Config{}, fmt.Errorf("parse ANALYZE_TIMEOUT_SECONDS: %w", err)
	}
	cfg.AnalyzeTimeout = time.Duration(analyzeTimeoutSeconds) * time.Second

	analyzeWorkers, err := parseIntEnv("ANALYZE_WORKERS", 1)
	if err != nil {
		return Config{}, fmt.Errorf("parse ANALYZE_WORKERS: %w", err)
	}
	cfg.AnalyzeWorkers = int(analyzeWorkers)

	cfg.MergePolish, err = parseBoolEnv("MERGE_POLISH", false)
	if err != nil {
		return Config{}, fmt.Errorf("parse MERGE_POLISH: %w", err)
	}

	ingressLimitMB, err := parseIntEnv("INGRESS_LIMIT_MB", 100)
	if err != nil {
		return Config{}, fmt.Errorf("parse INGRESS_LIMIT_MB: %w", err)
	}
	cfg.IngressLimitBytes = ingressLimitMB * 1024 * 1024

	segmentMinutes, err := parseIntEnv("SEGMENT_MINUTES", 10)
	if err != nil {
		return Config{}, fmt.Errorf("parse SEGMENT_MINUTES: %w", err)
	}
	cfg.SegmentDuration = time.Duration(segmentMinutes) * time.Minute

	maxUploadMB, err := parseIntEnv("MAX_UPLOAD_MB", 512)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_UPLOAD_MB: %w", err)
	}
	cfg.MaxUploadBytes = maxUploadMB * 1024 * 1024

	cfg.JWTSecret = envOrDefault("JWT_SECRET_KEY", "your-secret-key-change-in-production")

	tokenTTLMinutes, err := parseIntEnv("TOKEN_TTL_MINUTES", 480)
	if err != nil {
		return Config{}, fmt.Errorf("parse TOKEN_TTL_MINUTES: %w", err)
	}
	cfg.TokenTTL = time.Duration(tokenTTLMinutes) * time.Minute

	cfg.UploadLinkSecret = envOrDefault("UPLOAD_LINK_SECRET", "change-me")

	uploadLinkTTLMinutes, err := parseIntEnv("UPLOAD_LINK_TTL_MINUTES", 15)
	if err != nil {
		return Config{}, fmt.Errorf("parse UPLOAD_LINK_TTL_MINUTES: %w", err)
	}
	cfg.UploadLinkTTL = time.Duration(uploadLinkTTLMinutes) * time.Minute

	cfg.FFmpegPath = envOrDefault("FFMPEG_PATH", "ffmpeg")
	cfg.PDFFontPath = os.Getenv("PDF_FONT_PATH")

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = absDataDir

	return cfg, nil
}

// geminiKeyEnv prefers the list variable, then the single-key variables the
// upstream tooling also understands.
func geminiKeyEnv() string {
	if keys := os.Getenv("GEMINI_API_KEYS"); keys != "" {
		return keys
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("GOOGLE_API_KEY")
}

func splitKeys(raw string) []string {
	var keys []string
	for _, part := range strings.Split(raw, ",") {
		if key := strings.TrimSpace(part); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseIntEnv(key string, fallback int64) (int64, error) {
	value := envOrDefault(key, "")
	if value == "" {
		return fallback, nil
	}

	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return num, nil
}

func parseBoolEnv(key string, fallback bool) (bool, error) {
	value := envOrDefault(key, "")
	if value == "" {
		return fallback, nil
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, err
	}
	return b, nil
}
