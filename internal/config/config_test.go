package config

import (
	"os"
	"testing"
)

func TestGetEnv(t *testing.T) {
	_ = os.Setenv("TEST_KEY", "test_value")
	defer func() { _ = os.Unsetenv("TEST_KEY") }()

	val := getEnv("TEST_KEY", "fallback")
	if val != "test_value" {
		t.Errorf("Expected test_value, got %s", val)
	}

	val = getEnv("NON_EXISTENT", "fallback")
	if val != "fallback" {
		t.Errorf("Expected fallback, got %s", val)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		key      string
		val      string
		fallback bool
		expected bool
	}{
		{"TEST_BOOL_TRUE", "true", false, true},
		{"TEST_BOOL_1", "1", false, true},
		{"TEST_BOOL_FALSE", "false", true, false},
		{"TEST_BOOL_0", "0", true, false},
		{"NON_EXISTENT", "", true, true},
		{"NON_EXISTENT", "", false, false},
	}

	for _, tt := range tests {
		if tt.val != "" {
			_ = os.Setenv(tt.key, tt.val)
		}
		res := getEnvBool(tt.key, tt.fallback)
		if res != tt.expected {
			t.Errorf("For %s=%s (fallback %v), expected %v, got %v", tt.key, tt.val, tt.fallback, tt.expected, res)
		}
		_ = os.Unsetenv(tt.key)
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		key      string
		val      string
		fallback int
		expected int
	}{
		{"TEST_INT", "12", 5, 12},
		{"TEST_INT_PADDED", " 7 ", 5, 7},
		{"TEST_INT_BAD", "twelve", 5, 5},
		{"NON_EXISTENT", "", 5, 5},
	}

	for _, tt := range tests {
		if tt.val != "" {
			_ = os.Setenv(tt.key, tt.val)
		}
		res := getEnvInt(tt.key, tt.fallback)
		if res != tt.expected {
			t.Errorf("For %s=%s (fallback %d), expected %d, got %d", tt.key, tt.val, tt.fallback, tt.expected, res)
		}
		_ = os.Unsetenv(tt.key)
	}
}

func TestLoadConfig(t *testing.T) {
	// Defaults
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Port != "5000" {
		t.Errorf("Expected default port 5000, got %s", cfg.Port)
	}
	if cfg.DirectoryBaseURL != "https://island.is" {
		t.Errorf("Expected default directory URL, got %s", cfg.DirectoryBaseURL)
	}
	if cfg.ResolveConcurrency != 8 {
		t.Errorf("Expected default concurrency 8, got %d", cfg.ResolveConcurrency)
	}
	if !cfg.EnableScheduler {
		t.Error("Expected scheduler enabled by default")
	}

	// An explicitly empty directory URL is a hard error
	_ = os.Setenv("DIRECTORY_BASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error for empty DIRECTORY_BASE_URL")
	}
	_ = os.Unsetenv("DIRECTORY_BASE_URL")

	// Concurrency below 1 is a hard error
	_ = os.Setenv("RESOLVE_CONCURRENCY", "0")
	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error for zero RESOLVE_CONCURRENCY")
	}
	_ = os.Unsetenv("RESOLVE_CONCURRENCY")

	// Negative cache TTL is a hard error
	_ = os.Setenv("CACHE_TTL_HOURS", "-1")
	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error for negative CACHE_TTL_HOURS")
	}
	_ = os.Unsetenv("CACHE_TTL_HOURS")
}
