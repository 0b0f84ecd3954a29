// Blockpage serves pages composed of typed content blocks, with a JSON
// admin API for editing them and a live preview of unsaved drafts.
//
// Start the server:
//
//	blockpage serve --config blockpage.yaml
//
// Create the database tables:
//
//	blockpage migrate
//
// List the registered block types:
//
//	blockpage types
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/blockpage/pkg/config"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// options are the flags shared by every command.
type options struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "blockpage",
		Short:         "Block-composed pages with an admin editor",
		Version:       version,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("BLOCKPAGE_CONFIG"), "Path to YAML config file")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newTypesCmd(opts),
	)
	return root
}

// load reads the configuration and installs the logger.
func (o *options) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.debug {
		cfg.Server.Debug = true
	}

	logLevel := slog.LevelInfo
	if cfg.Server.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}
