package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		problems = append(problems, "paths.scratch_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		problems = append(problems, "paths.export_dir must not be empty")
	}
	if strings.TrimSpace(c.Whisper.Binary) == "" {
		problems = append(problems, "whisper.binary must not be empty")
	}
	if c.Transcription.TimeoutCapSeconds < c.Transcription.TimeoutBaseSeconds {
		problems = append(problems, fmt.Sprintf(
			"transcription.timeout_cap_seconds (%d) must not be below transcription.timeout_base_seconds (%d)",
			c.Transcription.TimeoutCapSeconds, c.Transcription.TimeoutBaseSeconds))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
