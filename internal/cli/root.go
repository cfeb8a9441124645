// Package cli provides the arkctl Cobra commands.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shonenark/ark-gateway/internal/config"
	"github.com/shonenark/ark-gateway/internal/domain"
)

// GlobalOptions are the flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	LogLevel   string
}

// NewRootCommand builds the arkctl command tree.
func NewRootCommand(version string) *cobra.Command {
	g := &GlobalOptions{}

	root := &cobra.Command{
		Use:   "arkctl",
		Short: "Deploy n8n workflows and run the Shonen Ark webhook gateway",
		Long: `arkctl keeps the site's n8n instance in line with the workflow files in
this repository and runs the gateway that receives signed webhooks.

Configuration comes from config.yaml (optional), .env and the environment.
The deploy, info and test commands need N8N_API_URL and N8N_API_KEY.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&g.ConfigPath, "config", config.DefaultPath, "config file path")
	root.PersistentFlags().StringVar(&g.LogLevel, "log-level", os.Getenv("LOG_LEVEL"), "log level (debug, info, warn, error)")

	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(NewDeployCommand(g))
	root.AddCommand(NewInfoCommand(g))
	root.AddCommand(NewTestCommand(g))
	root.AddCommand(NewServeCommand(g))
	root.AddCommand(NewHistoryCommand(g))
	root.AddCommand(NewSignCommand(g))

	return root
}

// Execute runs arkctl with args and returns the process exit code.
func Execute(version string, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(version)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, styleFail.Render("Error:"), err)

	var ce *domain.ConfigError
	if errors.As(err, &ce) && ce.Hint != "" {
		fmt.Fprintln(w, styleDim.Render("Hint:"), ce.Hint)
	}
	if domain.IsConnectivity(err) {
		fmt.Fprintln(w, styleDim.Render("Hint:"), "check N8N_API_URL and N8N_API_KEY, then run `arkctl test`")
	}
}

func (g *GlobalOptions) loadConfig() (*config.Config, error) {
	return config.Load(g.ConfigPath)
}

// newLogger builds the CLI logger: text on stderr, or JSON for the server.
func (g *GlobalOptions) newLogger(w io.Writer, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(g.LogLevel)}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
