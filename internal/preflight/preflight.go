package preflight

import (
	"capturebridge/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The export directory is only checked when configured; the daemon runs
// without it and placeholder export fails per capture instead.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir),
	}

	if cfg.Paths.ExportDir != "" {
		results = append(results, CheckDirectoryAccess("Export directory", cfg.Paths.ExportDir))
	}

	results = append(results,
		CheckWhisperBinary(cfg.Whisper.Binary),
		CheckModelFile(cfg.Whisper.ModelPath),
		CheckScratchSpace(cfg.Paths.ScratchDir),
	)
	return results
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
