package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/mfbot-download/internal/cli/config"
)

// ConfigField describes one mfbot.yaml key.
type ConfigField struct {
	Key         string
	Type        string
	Default     string
	Env         string
	Description string
}

// getConfigSchema mirrors internal/cli/config/types.go.
func getConfigSchema() []ConfigField {
	return []ConfigField{
		{Key: "state_path", Type: "string", Default: config.DefaultStateFile, Description: "Download ledger database, relative to the config file"},
		{Key: "output", Type: "string", Default: config.DefaultOutput, Description: "Output format: auto, text, markdown, json or yaml"},
		{Key: "log_format", Type: "string", Default: config.DefaultLogFormat, Description: "Log format: text or json"},
		{Key: "verbose", Type: "bool", Default: "false", Description: "Debug logging"},
		{Key: "metadata.url", Type: "string", Default: config.DefaultMetadataURL, Env: "METAFLOW_SERVICE_URL", Description: "Metaflow metadata service"},
		{Key: "metadata.auth_key", Type: "string", Env: "METAFLOW_SERVICE_AUTH_KEY", Description: "Sent as x-api-key"},
		{Key: "metadata.timeout", Type: "duration", Default: config.DefaultTimeout.String(), Description: "Per request timeout"},
		{Key: "metadata.max_retries", Type: "int", Default: fmt.Sprint(config.DefaultMaxRetries), Description: "Retries for 5xx and 429 responses"},
		{Key: "storage.region", Type: "string", Default: config.DefaultRegion, Env: "AWS_REGION", Description: "S3 region"},
		{Key: "storage.endpoint", Type: "string", Description: "S3 compatible endpoint, e.g. MinIO"},
		{Key: "storage.path_style", Type: "bool", Default: "false", Description: "Path-style S3 addressing"},
		{Key: "storage.max_size_mb", Type: "int", Default: fmt.Sprint(config.DefaultMaxSizeMB), Description: "Largest object the bot downloads"},
		{Key: "storage.root", Type: "string", Description: "Base directory for relative file:// locations"},
		{Key: "slack.token", Type: "string", Env: "SLACK_BOT_TOKEN", Description: "Bot token; without it replies go to the console"},
		{Key: "slack.signing_secret", Type: "string", Env: "SLACK_SIGNING_SECRET", Description: "Verifies slash command requests"},
		{Key: "slack.api_url", Type: "string", Description: "Slack Web API base URL override"},
		{Key: "server.addr", Type: "string", Default: config.DefaultAddr, Description: "Listen address of serve"},
		{Key: "server.workers", Type: "int", Default: fmt.Sprint(config.DefaultWorkers), Description: "Concurrent download commands"},
		{Key: "server.command_timeout", Type: "duration", Default: config.DefaultCommandTimeout.String(), Description: "Deadline of one download command"},
		{Key: "server.rate_limit", Type: "float", Default: fmt.Sprint(config.DefaultRateLimit), Description: "Slash commands per second per user, 0 disables"},
		{Key: "server.rate_burst", Type: "int", Default: fmt.Sprint(config.DefaultRateBurst), Description: "Commands a user may send at once"},
	}
}

// generateConfigDocs writes configuration.md.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating configuration docs to %s", outDir)

	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "mfbot-download configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph("mfbot-download reads `mfbot.yaml` from the working directory, or the file given with `--config`. " +
		"Environment variables override the file and flags override both.")

	headers := []string{"Key", "Type", "Default", "Environment", "Description"}
	var rows [][]string
	for _, f := range getConfigSchema() {
		def, env := "-", "-"
		if f.Default != "" {
			def = InlineCode(f.Default)
		}
		if f.Env != "" {
			env = InlineCode(f.Env)
		}
		rows = append(rows, []string{InlineCode(f.Key), f.Type, def, env, f.Description})
	}
	w.Table(headers, rows)

	w.Header(2, "Example")
	w.CodeBlock("yaml", `metadata:
  url: https://metaflow.example.com/api
  auth_key: ${METAFLOW_SERVICE_AUTH_KEY}
storage:
  region: eu-west-1
  max_size_mb: 500
slack:
  token: ${SLACK_BOT_TOKEN}
  signing_secret: ${SLACK_SIGNING_SECRET}
server:
  addr: ":3000"
  workers: 8`)

	w.Paragraph("`${VAR}` references in secrets are expanded from the environment.")

	return os.WriteFile(filepath.Join(outDir, "configuration.md"), w.Bytes(), 0600)
}
