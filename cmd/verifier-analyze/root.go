package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/abyrne55/verifier-log-analysis/internal/config"
	"github.com/abyrne55/verifier-log-analysis/internal/hcp"
	"github.com/abyrne55/verifier-log-analysis/internal/logging"
	"github.com/abyrne55/verifier-log-analysis/internal/ocm"
)

type rootFlags struct {
	configFile string
	dotEnv     string
}

func newRootCmd() *cobra.Command {
	var rf rootFlags
	cmd := &cobra.Command{
		Use:   "verifier-analyze",
		Short: "Score the network verifier against its own cron job logs",
		Long: `verifier-analyze reads the CSV written by the network verifier cron job,
merges the observations of each cluster, classifies every cluster as a
true/false positive/negative and reports detection quality metrics.

Settings come from flags, VLA_* environment variables, a .env file and an
optional YAML config file (--config), in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&rf.configFile, "config", "", "YAML config file")
	pf.StringVar(&rf.dotEnv, "env-file", ".env", "dotenv file loaded into the environment when present")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text or json")

	cmd.AddCommand(newAnalyzeCmd(&rf))
	cmd.AddCommand(newLookupCmd(&rf))
	cmd.AddCommand(newValidateCmd(&rf))
	return cmd
}

// setup loads configuration for cmd and installs the logger. Logs go to
// the command's stderr so stdout carries only the report.
func setup(cmd *cobra.Command, rf *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		ConfigFile: rf.configFile,
		DotEnv:     rf.dotEnv,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if err := logging.Init(logging.Options{Level: level, Format: cfg.LogFormat, Writer: cmd.ErrOrStderr()}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newClassifier builds an OCM-backed topology classifier. It fails when no
// token is configured since every lookup would be rejected.
func newClassifier(cfg *config.Config) (*hcp.Classifier, error) {
	token, err := cfg.Token()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, errors.New("an OCM token is required for hcp lookups: set --ocm-token, --ocm-token-file or VLA_OCM_TOKEN")
	}
	client, err := ocm.New(cfg.OCMURL, token,
		ocm.WithTimeout(cfg.Timeout),
		ocm.WithLogger(logging.New("ocm")))
	if err != nil {
		return nil, err
	}
	return hcp.NewClassifier(client, hcp.WithLogger(logging.New("hcp"))), nil
}

// openInput opens path, or the command's stdin for "-".
func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

func addOCMFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("ocm-url", ocm.DefaultBaseURL, "OCM API base URL")
	f.String("ocm-token", "", "OCM bearer token (default: $VLA_OCM_TOKEN)")
	f.String("ocm-token-file", "", "File whose first line is the OCM bearer token")
	f.Duration("timeout", 30*time.Second, "Per-request timeout for OCM and log downloads")
	f.Int("parallel", 8, "Maximum concurrent OCM lookups and log downloads")
}
