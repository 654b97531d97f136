// Package storage persists run results between invocations.
package storage

import (
	"time"

	"ptd/internal/config"
	"ptd/internal/domain"
)

// Storage persists and loads run results (e.g. for the failures viewer).
type Storage interface {
	Save(output *domain.RunOutput) error
	Load() (*domain.RunOutput, error)
}

// RunInfo describes a finished run
type RunInfo struct {
	RunID          string
	Dist           string
	Duration       time.Duration
	Workers        int
	CrashedWorkers int
	Summary        string
}

// NewRunOutput aggregates item results and parsed failures into what Save writes
func NewRunOutput(info RunInfo, results []domain.TestResult, failures []domain.TestFailure) *domain.RunOutput {
	meta := domain.RunMeta{
		RunID:           info.RunID,
		Dist:            info.Dist,
		TotalItems:      len(results),
		FailedTestCases: len(failures),
		Duration:        info.Duration.Round(time.Millisecond).String(),
		DurationSeconds: info.Duration.Seconds(),
		Workers:         info.Workers,
		CrashedWorkers:  info.CrashedWorkers,
		Summary:         info.Summary,
		Timestamp:       time.Now().Format(time.RFC3339),
	}
	for _, r := range results {
		switch {
		case r.Crashed:
			meta.CrashedItems++
			meta.FailedItems++
		case r.Skipped:
			meta.SkippedItems++
		case r.Success:
			meta.PassedItems++
		default:
			meta.FailedItems++
		}
	}
	if failures == nil {
		failures = []domain.TestFailure{}
	}
	return &domain.RunOutput{Meta: meta, Details: failures}
}

// JSONStorage stores results in a JSON file under the configured output path.
type JSONStorage struct {
	cfg *config.Config
}

// NewJSONStorage returns a Storage that reads/writes the config's output JSON path.
func NewJSONStorage(cfg *config.Config) *JSONStorage {
	return &JSONStorage{cfg: cfg}
}
