package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/mfbot-download/internal/chat"
	"github.com/leapstack-labs/mfbot-download/internal/cli/config"
	"github.com/leapstack-labs/mfbot-download/internal/cli/output"
	"github.com/leapstack-labs/mfbot-download/pkg/core"
	"github.com/spf13/cobra"
)

// Check statuses.
const (
	checkPass  = "pass"
	checkWarn  = "warn"
	checkError = "error"
)

const doctorTimeout = 10 * time.Second

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and connectivity",
		Long: `Verify that the bot can do its job:
- configuration file and settings
- the download ledger (state database and schema version)
- the Metaflow metadata service
- object storage settings
- the Slack token and signing secret

Exits with an error when a check fails.`,
		RunE: runDoctor,
	}
}

// DoctorOutput is the structured output of the doctor command.
type DoctorOutput struct {
	ConfigFile string  `json:"config_file,omitempty" yaml:"config_file,omitempty"`
	Checks     []Check `json:"checks" yaml:"checks"`
	Failed     int     `json:"failed" yaml:"failed"`
}

// Check is the result of one health check.
type Check struct {
	Group  string `json:"group" yaml:"group"`
	Name   string `json:"name" yaml:"name"`
	Status string `json:"status" yaml:"status"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
	defer cancel()

	out := &DoctorOutput{ConfigFile: config.GetConfigFileUsed()}
	out.Checks = append(out.Checks, checkConfig(out.ConfigFile))
	out.Checks = append(out.Checks, checkState(ctx, cmdCtx))
	out.Checks = append(out.Checks, checkMetadata(ctx, cmdCtx))
	out.Checks = append(out.Checks, checkStorage(cmdCtx.Cfg))
	out.Checks = append(out.Checks, checkSlack(ctx, cmdCtx)...)
	for _, c := range out.Checks {
		if c.Status == checkError {
			out.Failed++
		}
	}

	var err error
	if ok, sErr := r.Structured(out); ok {
		err = sErr
	} else if r.EffectiveMode() == output.ModeMarkdown {
		renderDoctorMarkdown(r, out)
	} else {
		renderDoctorText(r, out)
	}
	if err != nil {
		return err
	}
	if out.Failed > 0 {
		return fmt.Errorf("%d check(s) failed", out.Failed)
	}
	return nil
}

func checkConfig(file string) Check {
	c := Check{Group: "configuration", Name: "config file", Status: checkPass, Detail: file}
	if file == "" {
		c.Status = checkWarn
		c.Detail = "no mfbot.yaml found, using defaults and environment"
	}
	return c
}

func checkState(ctx context.Context, cmdCtx *CommandContext) Check {
	c := Check{Group: "state", Name: "download ledger"}

	store, err := cmdCtx.OpenStore()
	if err != nil {
		c.Status, c.Detail = checkError, err.Error()
		return c
	}
	defer func() { _ = store.Close() }()

	version, err := store.GetMigrationVersion()
	if err != nil {
		c.Status, c.Detail = checkError, err.Error()
		return c
	}
	downloads, err := store.ListDownloads(ctx, core.ListOptions{})
	if err != nil {
		c.Status, c.Detail = checkError, err.Error()
		return c
	}
	c.Status = checkPass
	c.Detail = fmt.Sprintf("%s (schema v%d, %d downloads)", cmdCtx.Cfg.StatePath, version, len(downloads))
	return c
}

func checkMetadata(ctx context.Context, cmdCtx *CommandContext) Check {
	c := Check{Group: "metadata", Name: "metadata service", Detail: cmdCtx.Cfg.Metadata.URL}

	client, err := cmdCtx.NewClient()
	if err != nil {
		c.Status, c.Detail = checkError, err.Error()
		return c
	}
	if err := client.Ping(ctx); err != nil {
		c.Status, c.Detail = checkError, err.Error()
		return c
	}
	c.Status = checkPass
	if cmdCtx.Cfg.Metadata.AuthKey == "" {
		c.Detail += " (no auth key)"
	}
	return c
}

func checkStorage(cfg *config.Config) Check {
	c := Check{Group: "storage", Name: "object storage", Status: checkPass}
	parts := []string{"region " + cfg.Storage.Region}
	if cfg.Storage.Endpoint != "" {
		parts = append(parts, "endpoint "+cfg.Storage.Endpoint)
	}
	parts = append(parts, fmt.Sprintf("limit %d MB", cfg.Storage.MaxSizeMB))
	c.Detail = strings.Join(parts, ", ")
	if cfg.Storage.Region == "" {
		c.Status = checkWarn
	}
	return c
}

func checkSlack(ctx context.Context, cmdCtx *CommandContext) []Check {
	cfg := cmdCtx.Cfg
	token := Check{Group: "chat", Name: "slack token"}
	secret := Check{Group: "chat", Name: "signing secret", Status: checkPass, Detail: "set"}
	if cfg.Slack.SigningSecret == "" {
		secret.Status, secret.Detail = checkWarn, "not set, slash command signatures are not verified"
	}

	if cfg.Slack.Token == "" {
		token.Status, token.Detail = checkWarn, "not set, replies go to the console"
		return []Check{token, secret}
	}

	s, err := chat.NewSlack(chat.SlackConfig{Token: cfg.Slack.Token, APIURL: cfg.Slack.APIURL, Logger: cmdCtx.Logger})
	if err != nil {
		token.Status, token.Detail = checkError, err.Error()
		return []Check{token, secret}
	}
	user, team, err := s.Identity(ctx)
	if err != nil {
		token.Status, token.Detail = checkError, err.Error()
		return []Check{token, secret}
	}
	token.Status, token.Detail = checkPass, fmt.Sprintf("%s @ %s", user, team)
	return []Check{token, secret}
}

func statusIcon(styles *output.Styles, status string) string {
	switch status {
	case checkPass:
		return styles.StatusSuccess.Render("✓")
	case checkWarn:
		return styles.Warning.Render("!")
	default:
		return styles.StatusFailed.Render("✗")
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()
	titleCaser := cases.Title(language.English)

	r.Println(styles.Header1.Render("mfbot-download health report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 45)))

	currentGroup := ""
	for _, c := range out.Checks {
		if c.Group != currentGroup {
			currentGroup = c.Group
			r.Println("")
			r.Println(styles.Bold.Render(titleCaser.String(currentGroup)))
		}
		line := fmt.Sprintf("  %s %s", statusIcon(styles, c.Status), c.Name)
		if c.Detail != "" {
			line += styles.Muted.Render(": " + c.Detail)
		}
		r.Println(line)
	}

	r.Println("")
	if out.Failed > 0 {
		r.Println(styles.Error.Render(fmt.Sprintf("%d check(s) failed", out.Failed)))
		return
	}
	r.Println(styles.Success.Render("All checks passed"))
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	titleCaser := cases.Title(language.English)
	r.Println("# Health Report")

	currentGroup := ""
	for _, c := range out.Checks {
		if c.Group != currentGroup {
			currentGroup = c.Group
			r.Printf("\n## %s\n\n", titleCaser.String(currentGroup))
		}
		if c.Detail != "" {
			r.Printf("- **%s** %s: %s\n", c.Status, c.Name, c.Detail)
		} else {
			r.Printf("- **%s** %s\n", c.Status, c.Name)
		}
	}

	r.Println("")
	if out.Failed > 0 {
		r.Printf("**%d check(s) failed**\n", out.Failed)
		return
	}
	r.Println("All checks passed")
}
