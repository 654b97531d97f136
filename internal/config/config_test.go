package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_GetTestPath(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		expected string
	}{
		{
			name: "default path",
			config: &Config{
				ProjectPath: ".",
				TestPath:    ".",
				Flags:       Flags{},
			},
			expected: ".",
		},
		{
			name: "with test path flag",
			config: &Config{
				ProjectPath: "/project",
				TestPath:    ".",
				Flags: Flags{
					TestPath: "tests",
				},
			},
			expected: "/project/tests",
		},
		{
			name: "absolute test path",
			config: &Config{
				ProjectPath: "/project",
				TestPath:    ".",
				Flags: Flags{
					TestPath: "/absolute/path",
				},
			},
			expected: "/absolute/path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.config.GetTestPath()
			if result != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestConfig_GetDatabaseName(t *testing.T) {
	cfg := New()

	t.Run("default database name", func(t *testing.T) {
		name := cfg.GetDatabaseName(1)
		expected := "testing_1"
		if name != expected {
			t.Errorf("expected %s, got %s", expected, name)
		}
	})

	t.Run("custom prefix", func(t *testing.T) {
		c := New()
		c.DatabasePrefix = "webiz_testing"
		for i := 1; i <= 3; i++ {
			name := c.GetDatabaseName(i)
			expected := "webiz_testing_" + string(rune('0'+i))
			if name != expected {
				t.Errorf("expected %s, got %s", expected, name)
			}
		}
	})
}

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.ProjectPath != DefaultProjectPath {
		t.Errorf("expected ProjectPath %s, got %s", DefaultProjectPath, cfg.ProjectPath)
	}

	if cfg.Processors != DefaultProcessors {
		t.Errorf("expected Processors %d, got %d", DefaultProcessors, cfg.Processors)
	}

	if cfg.Dist != DefaultDist {
		t.Errorf("expected Dist %s, got %s", DefaultDist, cfg.Dist)
	}

	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("expected PollInterval %s, got %s", DefaultPollInterval, cfg.PollInterval)
	}

	if len(cfg.PathsToIgnore) != len(DefaultPathsToIgnore) {
		t.Errorf("expected %d paths to ignore, got %d", len(DefaultPathsToIgnore), len(cfg.PathsToIgnore))
	}
}

func TestConfig_MaxWorkerRestarts(t *testing.T) {
	tests := []struct {
		name       string
		processors int
		restarts   int
		expected   *int
	}{
		{name: "derived from processors", processors: 3, restarts: Unset, expected: intPtr(12)},
		{name: "explicit value", processors: 3, restarts: 1, expected: intPtr(1)},
		{name: "explicit zero disables restarts", processors: 3, restarts: 0, expected: intPtr(0)},
		{name: "unlimited without worker count", processors: 0, restarts: Unset, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Processors: tt.processors, MaxWorkerRestart: tt.restarts}
			got := cfg.MaxWorkerRestarts()
			switch {
			case tt.expected == nil && got != nil:
				t.Errorf("expected unlimited, got %d", *got)
			case tt.expected != nil && got == nil:
				t.Errorf("expected %d, got unlimited", *tt.expected)
			case tt.expected != nil && *got != *tt.expected:
				t.Errorf("expected %d, got %d", *tt.expected, *got)
			}
		})
	}
}

func TestLoad_AppliesFlags(t *testing.T) {
	cfg := Load(Flags{
		Processors:       6,
		Dist:             "load",
		MaxWorkerRestart: 2,
		FailFast:         true,
		MaxSchedChunk:    16,
		PollInterval:     500 * time.Millisecond,
		LogLevel:         "debug",
	})

	if cfg.Processors != 6 {
		t.Errorf("expected Processors 6, got %d", cfg.Processors)
	}
	if cfg.Dist != "load" {
		t.Errorf("expected Dist load, got %s", cfg.Dist)
	}
	if cfg.MaxWorkerRestart != 2 {
		t.Errorf("expected MaxWorkerRestart 2, got %d", cfg.MaxWorkerRestart)
	}
	if cfg.MaxFail != 1 {
		t.Errorf("expected fail-fast to set MaxFail 1, got %d", cfg.MaxFail)
	}
	if cfg.MaxSchedChunk != 16 {
		t.Errorf("expected MaxSchedChunk 16, got %d", cfg.MaxSchedChunk)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("expected PollInterval 500ms, got %s", cfg.PollInterval)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel debug, got %s", cfg.LogLevel)
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"PTD_PROCESSORS":         "8",
		"PTD_MAX_WORKER_RESTART": "0",
		"PTD_MAXSCHEDCHUNK":      "4",
		"PTD_DIST":               "load",
		"DB_DATABASE_PREFIX":     "ci",
	}
	cfg := New()
	if err := cfg.applyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Processors != 8 {
		t.Errorf("expected Processors 8, got %d", cfg.Processors)
	}
	if cfg.MaxWorkerRestart != 0 {
		t.Errorf("expected MaxWorkerRestart 0, got %d", cfg.MaxWorkerRestart)
	}
	if cfg.MaxSchedChunk != 4 {
		t.Errorf("expected MaxSchedChunk 4, got %d", cfg.MaxSchedChunk)
	}
	if cfg.Dist != "load" {
		t.Errorf("expected Dist load, got %s", cfg.Dist)
	}
	if got := cfg.GetDatabaseName(2); got != "ci_2" {
		t.Errorf("expected ci_2, got %s", got)
	}

	t.Run("invalid integer", func(t *testing.T) {
		cfg := New()
		err := cfg.applyEnv(func(k string) string {
			if k == "PTD_MAXFAIL" {
				return "many"
			}
			return ""
		})
		if err == nil {
			t.Error("expected error for invalid PTD_MAXFAIL")
		}
	})
}

func TestConfig_LoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PTD_MAXFAIL=3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PTD_MAXFAIL", "")
	os.Unsetenv("PTD_MAXFAIL")

	cfg := New()
	cfg.ProjectPath = dir
	if err := cfg.LoadEnv(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxFail != 3 {
		t.Errorf("expected MaxFail 3, got %d", cfg.MaxFail)
	}

	t.Run("missing file is not an error", func(t *testing.T) {
		cfg := New()
		cfg.ProjectPath = t.TempDir()
		if err := cfg.LoadEnv(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func intPtr(n int) *int { return &n }
