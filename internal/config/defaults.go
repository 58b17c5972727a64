package config

const (
	defaultLogDir                = "~/.local/share/vise/logs"
	defaultStateDir              = "~/.local/share/vise"
	defaultLogRetentionDays      = 30
	defaultLogFormat             = "auto"
	defaultLogLevel              = "info"
	defaultCodec                 = "hevc"
	defaultQuality               = 23
	defaultPreset                = "medium"
	defaultOutputSuffix          = "compressed"
	defaultMinFreeSpaceMiB       = 512
	defaultProbeTimeout          = 10
	defaultAnalyzeDuration       = 10
	defaultProbeSizeMiB          = 50
	defaultSettleSeconds         = 3
	defaultHistoryMaxRuns        = 500
	defaultNotifyRequestTimeout  = 10
	defaultNotifyDedupWindowSecs = 600
)

func defaultExtensions() []string {
	return []string{".mp4", ".mkv", ".mov", ".avi", ".webm", ".m4v", ".ts"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Compression: Compression{
			Codec:            defaultCodec,
			Quality:          defaultQuality,
			Preset:           defaultPreset,
			AudioPassthrough: true,
			OutputSuffix:     defaultOutputSuffix,
			MinFreeSpaceMiB:  defaultMinFreeSpaceMiB,
		},
		FFmpeg: FFmpeg{
			ProbeTimeout:           defaultProbeTimeout,
			AnalyzeDurationSeconds: defaultAnalyzeDuration,
			ProbeSizeMiB:           defaultProbeSizeMiB,
			Extensions:             defaultExtensions(),
		},
		Queue: Queue{
			AutoCompress:  true,
			SettleSeconds: defaultSettleSeconds,
		},
		History: History{
			Enabled: true,
			MaxRuns: defaultHistoryMaxRuns,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyRequestTimeout,
			Completed:          true,
			Failed:             true,
			Queue:              true,
			DedupWindowSeconds: defaultNotifyDedupWindowSecs,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
