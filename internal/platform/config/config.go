package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	Port    string
	GinMode string

	FirebaseProjectID   string
	FirebaseCredsBase64 string
	FirebaseCredsFile   string

	GooglePlacesAPIKey string
	FoursquareAPIKey   string
	URBISBaseURL       string
	OverpassBaseURL    string

	EnabledPipelines       []string
	MaxConcurrentPipelines int
	GlobalTimeout          time.Duration

	EnableGoogle     bool
	EnableURBIS      bool
	EnableOSM        bool
	EnableFoursquare bool
	EnableFallback   bool
	EnableValidation bool
	EnableDedupe     bool

	GoogleDailyQuota      int
	FoursquareDailyQuota  int
	URBISDailyQuota       int
	OSMDailyQuota         int
	QuotaWarningThreshold float64

	VersionKeepCount int

	SlackWebhookURL string
	NotifyEmail     string
}

// Load reads environment variables into a Config with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                getEnv("PORT", "8080"),
		GinMode:             getEnv("GIN_MODE", "release"),
		FirebaseProjectID:   strings.TrimSpace(os.Getenv("FIREBASE_PROJECT_ID")),
		FirebaseCredsBase64: strings.TrimSpace(os.Getenv("FIREBASE_CREDS_BASE64")),
		FirebaseCredsFile:   strings.TrimSpace(os.Getenv("FIREBASE_CREDS_FILE")),
		GooglePlacesAPIKey:  strings.TrimSpace(os.Getenv("GOOGLE_PLACES_API_KEY")),
		FoursquareAPIKey:    strings.TrimSpace(os.Getenv("FOURSQUARE_API_KEY")),
		URBISBaseURL:        getEnv("URBIS_BASE_URL", "https://geoservices-urbis.irisnet.be/geoserver/ows"),
		OverpassBaseURL:     getEnv("OVERPASS_BASE_URL", "https://overpass-api.de/api/interpreter"),
		EnabledPipelines:    splitCSV(getEnv("ENABLED_PIPELINES", "addresses,dogPlaces")),
		SlackWebhookURL:     strings.TrimSpace(os.Getenv("SLACK_WEBHOOK_URL")),
		NotifyEmail:         strings.TrimSpace(os.Getenv("NOTIFY_EMAIL")),
	}

	var err error
	if cfg.MaxConcurrentPipelines, err = parseIntEnv("MAX_CONCURRENT_PIPELINES", 1); err != nil {
		return Config{}, err
	}
	timeoutSec, err := parseIntEnv("GLOBAL_TIMEOUT_SECONDS", 300)
	if err != nil {
		return Config{}, err
	}
	cfg.GlobalTimeout = time.Duration(timeoutSec) * time.Second

	if cfg.EnableGoogle, err = parseBoolEnv("ENABLE_GOOGLE_PLACES", true); err != nil {
		return Config{}, err
	}
	if cfg.EnableURBIS, err = parseBoolEnv("ENABLE_URBIS", true); err != nil {
		return Config{}, err
	}
	if cfg.EnableOSM, err = parseBoolEnv("ENABLE_OSM", true); err != nil {
		return Config{}, err
	}
	if cfg.EnableFoursquare, err = parseBoolEnv("ENABLE_FOURSQUARE", false); err != nil {
		return Config{}, err
	}
	if cfg.EnableFallback, err = parseBoolEnv("ENABLE_FALLBACK", true); err != nil {
		return Config{}, err
	}
	if cfg.EnableValidation, err = parseBoolEnv("ENABLE_VALIDATION", true); err != nil {
		return Config{}, err
	}
	if cfg.EnableDedupe, err = parseBoolEnv("ENABLE_DEDUPLICATION", true); err != nil {
		return Config{}, err
	}

	if cfg.GoogleDailyQuota, err = parseIntEnv("GOOGLE_DAILY_QUOTA", 1000); err != nil {
		return Config{}, err
	}
	if cfg.FoursquareDailyQuota, err = parseIntEnv("FOURSQUARE_DAILY_QUOTA", 500); err != nil {
		return Config{}, err
	}
	if cfg.URBISDailyQuota, err = parseIntEnv("URBIS_DAILY_QUOTA", 200); err != nil {
		return Config{}, err
	}
	if cfg.OSMDailyQuota, err = parseIntEnv("OSM_DAILY_QUOTA", 100); err != nil {
		return Config{}, err
	}
	threshold, err := parseIntEnv("QUOTA_WARNING_PERCENT", 80)
	if err != nil {
		return Config{}, err
	}
	cfg.QuotaWarningThreshold = float64(threshold) / 100

	if cfg.VersionKeepCount, err = parseIntEnv("VERSION_KEEP_COUNT", 10); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate ensures required fields are present.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required")
	}
	if c.FirebaseCredsBase64 == "" && c.FirebaseCredsFile == "" {
		return errors.New("provide FIREBASE_CREDS_BASE64 or FIREBASE_CREDS_FILE for Firestore auth")
	}
	if c.EnableGoogle && c.GooglePlacesAPIKey == "" {
		return errors.New("GOOGLE_PLACES_API_KEY is required when ENABLE_GOOGLE_PLACES is set")
	}
	if c.EnableFoursquare && c.FoursquareAPIKey == "" {
		return errors.New("FOURSQUARE_API_KEY is required when ENABLE_FOURSQUARE is set")
	}
	if c.MaxConcurrentPipelines < 1 {
		return errors.New("MAX_CONCURRENT_PIPELINES must be at least 1")
	}
	if c.QuotaWarningThreshold <= 0 || c.QuotaWarningThreshold > 1 {
		return errors.New("QUOTA_WARNING_PERCENT must be in (0, 100]")
	}
	return nil
}

// FirebaseCredentialsJSON returns the service account JSON bytes and the source used.
func (c Config) FirebaseCredentialsJSON() ([]byte, string, error) {
	if c.FirebaseCredsBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(c.FirebaseCredsBase64)
		if err != nil {
			return nil, "base64", fmt.Errorf("decode FIREBASE_CREDS_BASE64: %w", err)
		}
		return decoded, "base64", nil
	}
	if c.FirebaseCredsFile != "" {
		data, err := os.ReadFile(c.FirebaseCredsFile)
		if err != nil {
			return nil, "file", fmt.Errorf("read FIREBASE_CREDS_FILE: %w", err)
		}
		return data, "file", nil
	}
	return nil, "", errors.New("no firebase credentials found")
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func parseBoolEnv(key string, defaultVal bool) (bool, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func parseIntEnv(key string, defaultVal int) (int, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func splitCSV(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
