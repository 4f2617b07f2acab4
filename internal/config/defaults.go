package config

const (
	defaultDataDir              = "~/.local/share/capturebridge"
	defaultLogDir               = "~/.local/share/capturebridge/logs"
	defaultScratchDir           = "~/.local/share/capturebridge/scratch"
	defaultExportDir            = "~/vault/inbox"
	defaultAPIBind              = "127.0.0.1:7519"
	defaultLogFormat            = "auto"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 60
	defaultWhisperBinary        = "whisper-cli"
	defaultWhisperModel         = "base.en"
	defaultWhisperLanguage      = "en"
	defaultQueueMaxDepth        = 256
	defaultTimeoutBaseSeconds   = 30
	defaultTimeoutCapSeconds    = 240
	defaultMemoryCeilingMB      = 3072
	defaultMemorySampleInterval = 10
	defaultAudioBytesPerSecond  = 32000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			ScratchDir: defaultScratchDir,
			ExportDir:  defaultExportDir,
			APIBind:    defaultAPIBind,
		},
		Whisper: Whisper{
			Binary:   defaultWhisperBinary,
			Model:    defaultWhisperModel,
			Language: defaultWhisperLanguage,
		},
		Transcription: Transcription{
			QueueMaxDepth:        defaultQueueMaxDepth,
			TimeoutBaseSeconds:   defaultTimeoutBaseSeconds,
			TimeoutCapSeconds:    defaultTimeoutCapSeconds,
			MemoryCeilingMB:      defaultMemoryCeilingMB,
			MemorySampleInterval: defaultMemorySampleInterval,
			AudioBytesPerSecond:  defaultAudioBytesPerSecond,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
