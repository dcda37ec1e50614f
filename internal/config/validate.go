package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePublisher(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validatePublisher() error {
	if strings.TrimSpace(c.Publisher.BaseURL) != "" && strings.TrimSpace(c.Publisher.AccessToken) == "" {
		return errors.New("publisher.access_token must be set when publisher.base_url is configured")
	}
	if c.Publisher.MinPublishInterval < 0 {
		return errors.New("publisher.min_publish_interval must not be negative")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	if c.Retry.BackoffMax > 0 && c.Retry.BackoffMax < c.Retry.BackoffBase {
		return errors.New("retry.backoff_max must not be below retry.backoff_base")
	}
	return ensurePositiveMap(map[string]int{
		"retry.backoff_base":      c.Retry.BackoffBase,
		"retry.operation_timeout": c.Retry.OperationTimeout,
	})
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"publisher.request_timeout":      c.Publisher.RequestTimeout,
		"notifications.request_timeout":  c.Notifications.RequestTimeout,
		"workflow.queue_poll_interval":   c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval":  c.Workflow.ErrorRetryInterval,
		"workflow.heartbeat_interval":    c.Workflow.HeartbeatInterval,
		"generation.timeout":             c.Generation.Timeout,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
