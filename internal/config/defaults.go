package config

import "time"

const (
	// DefaultProjectPath is the default project path
	DefaultProjectPath = "."
	// DefaultTestPath is the default test path
	DefaultTestPath = "."
	// DefaultOutputJSONFile is the default output JSON file name
	DefaultOutputJSONFile = "test-results.json"
	// DefaultOutputJSONDir is the default output directory
	DefaultOutputJSONDir = "storage"
	// DefaultProcessors is the default number of workers
	DefaultProcessors = 4
	// DefaultDist is the default scheduling policy
	DefaultDist = "group"
	// DefaultPollInterval is how long the coordinator waits for an event before re-checking its workers
	DefaultPollInterval = 2 * time.Second
	// DefaultLogLevel is the default controller log level
	DefaultLogLevel = "warn"
	// DefaultDatabasePrefix prefixes the per-worker database names
	DefaultDatabasePrefix = "testing"
	// DefaultSetupCommand prepares each worker database
	DefaultSetupCommand = "php artisan migrate:fresh --env=testing --force"
	// RestartsPerWorker is the restart budget per worker when none is configured
	RestartsPerWorker = 4
	// Unset marks an integer setting that was not provided
	Unset = -1
)

// DefaultPathsToIgnore are the default directories to ignore when scanning for tests
var DefaultPathsToIgnore = []string{
	"vendor",
	"node_modules",
	"public",
	"storage",
	"bootstrap",
	"config",
	"database",
	"resources",
	"routes",
}
