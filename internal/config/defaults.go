package config

const (
	defaultDataDir     = "~/.local/share/quill"
	defaultArtifactDir = "~/.local/share/quill/artifacts"
	defaultLogDir      = "~/.local/share/quill/logs"

	defaultRequestTimeout     = 30
	defaultMinPublishInterval = 1800

	defaultGenerationTimeout = 300

	defaultMaxAttempts      = 3
	defaultBackoffBase      = 2
	defaultBackoffMax       = 60
	defaultOperationTimeout = 120

	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 900

	defaultNotifyRequestTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			ArtifactDir: defaultArtifactDir,
			LogDir:      defaultLogDir,
		},
		Publisher: Publisher{
			RequestTimeout:     defaultRequestTimeout,
			MinPublishInterval: defaultMinPublishInterval,
		},
		Generation: Generation{
			Timeout: defaultGenerationTimeout,
		},
		Retry: Retry{
			MaxAttempts:      defaultMaxAttempts,
			BackoffBase:      defaultBackoffBase,
			BackoffMax:       defaultBackoffMax,
			OperationTimeout: defaultOperationTimeout,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Publishes:      true,
			Status:         true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
