package scheduler

import (
	"os"
	"testing"
	"time"
)

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name       string
		envValue   string
		setEnv     bool
		defaultVal bool
		want       bool
	}{
		{name: "not set returns default true", setEnv: false, defaultVal: true, want: true},
		{name: "not set returns default false", setEnv: false, defaultVal: false, want: false},
		{name: "set to true", envValue: "true", setEnv: true, defaultVal: false, want: true},
		{name: "set to false", envValue: "false", setEnv: true, defaultVal: true, want: false},
		{name: "set to invalid falls back to default", envValue: "nope", setEnv: true, defaultVal: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_SCHEDULER_BOOL"
			os.Unsetenv(key)
			defer os.Unsetenv(key)
			if tt.setEnv {
				os.Setenv(key, tt.envValue)
			}

			got := getEnvBool(key, tt.defaultVal)
			if got != tt.want {
				t.Errorf("getEnvBool(%q, %v) = %v, want %v", key, tt.defaultVal, got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name       string
		envValue   string
		setEnv     bool
		defaultVal time.Duration
		want       time.Duration
	}{
		{name: "not set returns default", setEnv: false, defaultVal: 5 * time.Minute, want: 5 * time.Minute},
		{name: "set to milliseconds", envValue: "1000", setEnv: true, want: time.Second},
		{name: "set to zero", envValue: "0", setEnv: true, defaultVal: time.Minute, want: 0},
		{name: "invalid value falls back to default", envValue: "nope", setEnv: true, defaultVal: 10 * time.Second, want: 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_SCHEDULER_DURATION"
			os.Unsetenv(key)
			defer os.Unsetenv(key)
			if tt.setEnv {
				os.Setenv(key, tt.envValue)
			}

			got := getEnvDuration(key, tt.defaultVal)
			if got != tt.want {
				t.Errorf("getEnvDuration(%q, %v) = %v, want %v", key, tt.defaultVal, got, tt.want)
			}
		})
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	for _, key := range []string{"SCHEDULER_ENABLED", "SCHEDULER_SYNC_INTERVAL_MS", "SCHEDULER_RUN_TIMEOUT_MS"} {
		os.Unsetenv(key)
	}

	cfg := NewConfig()

	if !cfg.Enabled {
		t.Error("Enabled should default to true")
	}
	if cfg.SyncInterval != 5*time.Minute {
		t.Errorf("SyncInterval = %v, want 5m", cfg.SyncInterval)
	}
	if cfg.RunTimeout != 30*time.Minute {
		t.Errorf("RunTimeout = %v, want 30m", cfg.RunTimeout)
	}
}

func TestNewConfig_FromEnv(t *testing.T) {
	os.Setenv("SCHEDULER_ENABLED", "false")
	os.Setenv("SCHEDULER_SYNC_INTERVAL_MS", "60000")
	os.Setenv("SCHEDULER_RUN_TIMEOUT_MS", "120000")
	defer func() {
		os.Unsetenv("SCHEDULER_ENABLED")
		os.Unsetenv("SCHEDULER_SYNC_INTERVAL_MS")
		os.Unsetenv("SCHEDULER_RUN_TIMEOUT_MS")
	}()

	cfg := NewConfig()

	if cfg.Enabled {
		t.Error("Enabled should be false when SCHEDULER_ENABLED=false")
	}
	if cfg.SyncInterval != time.Minute {
		t.Errorf("SyncInterval = %v, want 1m", cfg.SyncInterval)
	}
	if cfg.RunTimeout != 2*time.Minute {
		t.Errorf("RunTimeout = %v, want 2m", cfg.RunTimeout)
	}
}
