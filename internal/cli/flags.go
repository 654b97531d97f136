package cli

import (
	"time"

	"ptd/internal/config"
)

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

// ToConfigFlags converts CLI flags to config flags
func (f *Flags) ToConfigFlags() config.Flags {
	return config.Flags{
		Processors:       f.Processors,
		Dist:             f.Dist,
		MaxWorkerRestart: f.MaxWorkerRestart,
		MaxFail:          f.MaxFail,
		MaxSchedChunk:    f.MaxSchedChunk,
		FailFast:         f.FailFast,
		TestPath:         f.TestPath,
		NameFilter:       f.NameFilter,
		TestCases:        f.TestCases,
		Groups:           f.Groups,
		Prepare:          f.Prepare,
		NoFresh:          f.NoFresh,
		OpenFailures:     f.OpenFailures,
		LogLevel:         f.LogLevel,
		MetricsAddr:      f.MetricsAddr,
		PollInterval:     f.PollInterval,
	}
}
