// Package cli implements the studytrack command line.
package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tutu-network/studytrack/internal/app/tracker"
	"github.com/tutu-network/studytrack/internal/daemon"
	"github.com/tutu-network/studytrack/internal/infra/artifacts"
	"github.com/tutu-network/studytrack/internal/infra/ledgerstore"
	"github.com/tutu-network/studytrack/internal/infra/logging"
)

var homeFlag string

var rootCmd = &cobra.Command{
	Use:   "studytrack",
	Short: "Track completed study units and their PDFs",
	Long: `studytrack keeps a ledger of completed study units and moves each unit's
PDF between the pending folder and the done folder to match. Run
'studytrack serve' for the browser page, or use the subcommands directly.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeFlag, "home", "", "Directory holding config.toml and .env; a relative base_dir resolves against it (default $STUDYTRACK_HOME or the working directory)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// runtime is everything a command needs to talk to the tracker.
type runtime struct {
	cfg    daemon.Config
	log    *logrus.Logger
	files  *artifacts.Relocator
	engine *tracker.Engine
}

func homeDir() string {
	if homeFlag != "" {
		return homeFlag
	}
	return daemon.Home()
}

// openRuntime loads config and wires the store, relocator and engine.
// The done directory is created if missing.
func openRuntime() (*runtime, error) {
	cfg, err := daemon.LoadConfig(homeDir())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return nil, err
	}

	files := artifacts.New(cfg.PendingDir(), cfg.DoneDir(), cfg.Tracker.Ext, log)
	if err := files.Init(); err != nil {
		return nil, fmt.Errorf("create done directory: %w", err)
	}
	store, err := ledgerstore.New(cfg.StatePath(), log)
	if err != nil {
		return nil, err
	}

	return &runtime{
		cfg:    cfg,
		log:    log,
		files:  files,
		engine: tracker.New(store, files, log),
	}, nil
}
