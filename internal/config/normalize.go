package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWhisper()
	c.normalizeTranscription()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultScratchDir
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeWhisper() {
	c.Whisper.Binary = strings.TrimSpace(c.Whisper.Binary)
	if c.Whisper.Binary == "" {
		c.Whisper.Binary = defaultWhisperBinary
	}
	c.Whisper.Model = strings.TrimSpace(c.Whisper.Model)
	if c.Whisper.Model == "" {
		c.Whisper.Model = defaultWhisperModel
	}
	c.Whisper.ModelPath = strings.TrimSpace(c.Whisper.ModelPath)
	c.Whisper.Language = strings.ToLower(strings.TrimSpace(c.Whisper.Language))
	if c.Whisper.Language == "" {
		c.Whisper.Language = defaultWhisperLanguage
	}
	if c.Whisper.Threads < 0 {
		c.Whisper.Threads = 0
	}
}

func (c *Config) normalizeTranscription() {
	if c.Transcription.QueueMaxDepth <= 0 {
		c.Transcription.QueueMaxDepth = defaultQueueMaxDepth
	}
	if c.Transcription.TimeoutBaseSeconds <= 0 {
		c.Transcription.TimeoutBaseSeconds = defaultTimeoutBaseSeconds
	}
	if c.Transcription.TimeoutCapSeconds <= 0 {
		c.Transcription.TimeoutCapSeconds = defaultTimeoutCapSeconds
	}
	if c.Transcription.MemoryCeilingMB <= 0 {
		c.Transcription.MemoryCeilingMB = defaultMemoryCeilingMB
	}
	if c.Transcription.MemorySampleInterval <= 0 {
		c.Transcription.MemorySampleInterval = defaultMemorySampleInterval
	}
	if c.Transcription.AudioBytesPerSecond <= 0 {
		c.Transcription.AudioBytesPerSecond = defaultAudioBytesPerSecond
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "auto":
		c.Logging.Format = "auto"
	case "console", "json":
	default:
		c.Logging.Format = "auto"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}
