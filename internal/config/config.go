package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Project settings
	ProjectPath string
	TestPath    string

	// Output settings
	OutputJSONFile string
	OutputJSONDir  string

	// Execution settings
	Processors       int
	Dist             string
	MaxWorkerRestart int // Unset means derive from Processors
	MaxFail          int // 0 disables
	MaxSchedChunk    int
	PollInterval     time.Duration

	// Worker resources
	DatabasePrefix string
	SetupCommand   string

	// Observability
	LogLevel    string
	MetricsAddr string

	// Paths to ignore when scanning
	PathsToIgnore []string

	// Command flags
	Flags Flags
}

// Flags holds command-line flags
type Flags struct {
	Processors       int
	Dist             string
	MaxWorkerRestart int
	MaxFail          int
	MaxSchedChunk    int
	FailFast         bool
	TestPath         string
	NameFilter       string
	TestCases        bool
	Groups           bool
	Prepare          bool
	NoFresh          bool
	OpenFailures     bool
	LogLevel         string
	MetricsAddr      string
	PollInterval     time.Duration
}

// New creates a new Config with defaults
func New() *Config {
	cfg := &Config{
		ProjectPath:      DefaultProjectPath,
		TestPath:         DefaultTestPath,
		OutputJSONFile:   DefaultOutputJSONFile,
		OutputJSONDir:    DefaultOutputJSONDir,
		Processors:       DefaultProcessors,
		Dist:             DefaultDist,
		MaxWorkerRestart: Unset,
		PollInterval:     DefaultPollInterval,
		DatabasePrefix:   DefaultDatabasePrefix,
		SetupCommand:     DefaultSetupCommand,
		LogLevel:         DefaultLogLevel,
		Flags:            Flags{Processors: DefaultProcessors, MaxWorkerRestart: Unset},
	}
	// Copy default paths to ignore
	cfg.PathsToIgnore = make([]string, len(DefaultPathsToIgnore))
	copy(cfg.PathsToIgnore, DefaultPathsToIgnore)
	return cfg
}

// Load creates a config and applies flags
func Load(flags Flags) *Config {
	cfg := New()
	cfg.Apply(flags)
	return cfg
}

// Apply overrides settings with the flags that were provided
func (c *Config) Apply(flags Flags) {
	c.Flags = flags

	if flags.Processors > 0 {
		c.Processors = flags.Processors
	}
	if flags.Dist != "" {
		c.Dist = flags.Dist
	}
	if flags.MaxWorkerRestart != Unset {
		c.MaxWorkerRestart = flags.MaxWorkerRestart
	}
	if flags.MaxFail > 0 {
		c.MaxFail = flags.MaxFail
	}
	if flags.FailFast {
		c.MaxFail = 1
	}
	if flags.MaxSchedChunk > 0 {
		c.MaxSchedChunk = flags.MaxSchedChunk
	}
	if flags.PollInterval > 0 {
		c.PollInterval = flags.PollInterval
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}
	if flags.MetricsAddr != "" {
		c.MetricsAddr = flags.MetricsAddr
	}
}

// LoadEnv reads the project's .env file (if any) into the process environment
// and applies the PTD_* and DB_DATABASE_PREFIX overrides found there.
// Variables already set in the environment win over the file.
func (c *Config) LoadEnv() error {
	envPath := filepath.Join(c.ProjectPath, ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", envPath, err)
	}
	return c.applyEnv(os.Getenv)
}

func (c *Config) applyEnv(getenv func(string) string) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"PTD_PROCESSORS", &c.Processors},
		{"PTD_MAX_WORKER_RESTART", &c.MaxWorkerRestart},
		{"PTD_MAXFAIL", &c.MaxFail},
		{"PTD_MAXSCHEDCHUNK", &c.MaxSchedChunk},
	}
	for _, v := range ints {
		raw := strings.TrimSpace(getenv(v.key))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", v.key, raw, err)
		}
		*v.dst = n
	}
	if dist := getenv("PTD_DIST"); dist != "" {
		c.Dist = dist
	}
	if prefix := getenv("DB_DATABASE_PREFIX"); prefix != "" {
		c.DatabasePrefix = prefix
	}
	if setup := getenv("PTD_SETUP_COMMAND"); setup != "" {
		c.SetupCommand = setup
	}
	return nil
}

// MaxWorkerRestarts returns how many crashed workers are replaced before the
// run stops. Without an explicit value the budget is four restarts per
// worker; nil means unlimited.
func (c *Config) MaxWorkerRestarts() *int {
	if c.MaxWorkerRestart >= 0 {
		n := c.MaxWorkerRestart
		return &n
	}
	if c.Processors > 0 {
		n := c.Processors * RestartsPerWorker
		return &n
	}
	return nil
}

// GetTestPath returns the test path, using flag if provided
func (c *Config) GetTestPath() string {
	if c.Flags.TestPath != "" {
		// If TestPath is provided, make it relative to PROJECT_PATH if it's not absolute
		if filepath.IsAbs(c.Flags.TestPath) {
			return c.Flags.TestPath
		}
		return filepath.Join(c.ProjectPath, c.Flags.TestPath)
	}

	// Default: combine project path and test path
	return filepath.Join(c.ProjectPath, c.TestPath)
}

// GetOutputPath returns the absolute path to the output JSON file, so run and
// failures always use the same file regardless of cwd.
func (c *Config) GetOutputPath() string {
	p := filepath.Join(c.ProjectPath, c.OutputJSONDir, c.OutputJSONFile)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// GetPHPUnitPath returns the path to PHPUnit binary
func (c *Config) GetPHPUnitPath() string {
	return filepath.Join(c.ProjectPath, "vendor", "bin", "phpunit")
}

// GetDatabaseName returns the database name for a worker slot
func (c *Config) GetDatabaseName(slot int) string {
	prefix := c.DatabasePrefix
	if prefix == "" {
		prefix = DefaultDatabasePrefix
	}
	return fmt.Sprintf("%s_%d", prefix, slot)
}
