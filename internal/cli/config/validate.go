package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/leapstack-labs/mfbot-download/internal/cli/output"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.StatePath == "" {
		errs = append(errs, errors.New("state_path is required"))
	}
	if !output.Valid(c.OutputFormat) {
		errs = append(errs, fmt.Errorf("invalid output format %q (use one of: %s)",
			c.OutputFormat, strings.Join(output.Modes, ", ")))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log_format %q (use text or json)", c.LogFormat))
	}
	if err := validateURL("metadata.url", c.Metadata.URL); err != nil {
		errs = append(errs, err)
	}
	if c.Metadata.Timeout <= 0 {
		errs = append(errs, errors.New("metadata.timeout must be positive"))
	}
	if c.Metadata.MaxRetries < 0 {
		errs = append(errs, errors.New("metadata.max_retries must not be negative"))
	}
	if c.Storage.MaxSizeMB <= 0 {
		errs = append(errs, errors.New("storage.max_size_mb must be positive"))
	}
	if c.Storage.Endpoint != "" {
		if err := validateURL("storage.endpoint", c.Storage.Endpoint); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Slack.APIURL != "" {
		if err := validateURL("slack.api_url", c.Slack.APIURL); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Server.Workers <= 0 {
		errs = append(errs, errors.New("server.workers must be positive"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst <= 0 {
		errs = append(errs, errors.New("server.rate_burst must be positive when rate_limit is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// ValidateSlack checks the settings the Slack integration needs.
func (c *Config) ValidateSlack(server bool) error {
	if c.Slack.Token == "" {
		return errors.New("slack token is required\nHint: set SLACK_BOT_TOKEN or slack.token in mfbot.yaml")
	}
	if server && c.Slack.SigningSecret == "" {
		return errors.New("slack signing secret is required\nHint: set SLACK_SIGNING_SECRET or slack.signing_secret in mfbot.yaml")
	}
	return nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
	}
	return nil
}
