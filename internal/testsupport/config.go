package testsupport

import (
	"path/filepath"
	"testing"

	"quill/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.ArtifactDir = filepath.Join(base, "artifacts")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	cfg.Workflow.HeartbeatInterval = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithPublisher points the test config at a publisher endpoint.
func WithPublisher(baseURL, token string) ConfigOption {
	return func(c *config.Config) {
		c.Publisher.BaseURL = baseURL
		c.Publisher.AccessToken = token
	}
}

// WithMinPublishInterval overrides the publish rate limit window in seconds.
func WithMinPublishInterval(seconds int) ConfigOption {
	return func(c *config.Config) {
		c.Publisher.MinPublishInterval = seconds
	}
}
