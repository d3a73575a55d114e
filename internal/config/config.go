package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	RedisHost string
	RedisPort string
	Port      string
	LogLevel  string

	DirectoryBaseURL string
	DataDir          string

	DNSResolver        string
	ResolveConcurrency int
	CacheTTLHours      int
	RedirectMaxHops    int

	RunSchedule     string
	EnableScheduler bool
	RunOnStart      bool

	EnableWhois       bool
	EnableGeo         bool
	GeoIPURL          string
	MaxMindLicenseKey string
	MaxMindAccountID  string

	TrustedIPs    string
	TrustProxy    bool
	UseCloudflare bool
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisHost:          getEnv("REDIS_HOST", "localhost"),
		RedisPort:          getEnv("REDIS_PORT", "6379"),
		Port:               getEnv("PORT", "5000"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DirectoryBaseURL:   getEnv("DIRECTORY_BASE_URL", "https://island.is"),
		DataDir:            getEnv("DATA_DIR", "data"),
		DNSResolver:        os.Getenv("DNS_RESOLVER"),
		ResolveConcurrency: getEnvInt("RESOLVE_CONCURRENCY", 8),
		CacheTTLHours:      getEnvInt("CACHE_TTL_HOURS", 24),
		RedirectMaxHops:    getEnvInt("REDIRECT_MAX_HOPS", 10),
		RunSchedule:        getEnv("RUN_SCHEDULE", "0 4 * * *"),
		EnableScheduler:    getEnvBool("ENABLE_SCHEDULER", true),
		RunOnStart:         getEnvBool("RUN_ON_START", false),
		EnableWhois:        getEnvBool("ENABLE_WHOIS", true),
		EnableGeo:          getEnvBool("ENABLE_GEO", true),
		GeoIPURL:           os.Getenv("GEOIP_URL"),
		MaxMindLicenseKey:  os.Getenv("MAXMIND_LICENSE_KEY"),
		MaxMindAccountID:   os.Getenv("MAXMIND_ACCOUNT_ID"),
		TrustedIPs:         getEnv("TRUSTED_IPS", "127.0.0.1,::1,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,100.64.0.0/10"),
		TrustProxy:         getEnvBool("TRUST_PROXY", true),
		UseCloudflare:      getEnvBool("USE_CLOUDFLARE", false),
	}

	if cfg.DirectoryBaseURL == "" {
		return nil, fmt.Errorf("DIRECTORY_BASE_URL environment variable is required")
	}
	if cfg.ResolveConcurrency < 1 {
		return nil, fmt.Errorf("RESOLVE_CONCURRENCY must be at least 1, got %d", cfg.ResolveConcurrency)
	}
	if cfg.CacheTTLHours < 0 {
		return nil, fmt.Errorf("CACHE_TTL_HOURS must not be negative, got %d", cfg.CacheTTLHours)
	}
	if cfg.RedirectMaxHops < 1 {
		return nil, fmt.Errorf("REDIRECT_MAX_HOPS must be at least 1, got %d", cfg.RedirectMaxHops)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return fallback
}
