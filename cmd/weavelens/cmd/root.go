// Package cmd provides the CLI commands for weavelens.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/weavelens/weavelens/internal/config"
	"github.com/weavelens/weavelens/internal/logging"
	"github.com/weavelens/weavelens/internal/pipeline"
	"github.com/weavelens/weavelens/pkg/version"
)

// rootOptions carries the persistent flags shared by all commands.
type rootOptions struct {
	configPath string
	logLevel   string
	jsonOutput bool
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "weavelens",
		Short: "Local document ingestion and hybrid retrieval",
		Long: `Weavelens indexes local documents (text, markdown, PDF, DOCX, XLSX,
images) into a searchable store and retrieves them with combined
semantic and keyword search.

Point it at your folders, run 'weavelens scan', then query with
'weavelens search' or assemble answer context with 'weavelens ask'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(opts)
		},
	}

	cmd.SetVersionTemplate("weavelens version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to the YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Machine-readable JSON output")

	cmd.AddCommand(newScanCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newAskCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI with signal-aware cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCmd().ExecuteContext(ctx)
}

func setupLogging(opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	level := cfg.Logging.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}

	format := cfg.Logging.Format
	// Human-friendly text logs on a terminal unless JSON was asked for.
	if !opts.jsonOutput && isatty.IsTerminal(os.Stderr.Fd()) {
		format = "text"
	}

	logging.Setup(logging.Config{
		Level:  level,
		Format: format,
		Output: os.Stderr,
	})
	return nil
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		if _, err := os.Stat("weavelens.yaml"); err == nil {
			path = "weavelens.yaml"
		}
	}
	return config.Load(path)
}

// openPipeline builds the pipeline for one command invocation.
func openPipeline(ctx context.Context, opts *rootOptions) (*pipeline.Pipeline, *config.Config, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return p, cfg, nil
}
