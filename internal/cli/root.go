// Package cli wires configuration, storage and the transports into the
// memory-store command.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wagnerlima/memory-cloud/memory-store/internal/config"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/observe"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/storage"
)

var (
	configPath string
	dbPath     string
	project    string
	verbose    bool
	logFormat  string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "memory-store",
	Short: "Project-scoped knowledge store for agents",
	Long: `memory-store keeps a knowledge graph of entities, observations and relations
and a timeline of memory items per project, served over MCP and a JSON API.`,
	SilenceUsage: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := RootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file (default ~/.memory-store/config.yaml if present)")
	pf.StringVar(&dbPath, "db", "", "SQLite database path")
	pf.StringVarP(&project, "project", "p", "", "Default project")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	pf.StringVar(&logFormat, "log-format", "", "Log format: console or json")
}

// loadConfig reads file and environment configuration, then applies the
// flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = dbPath
	}
	if flags.Changed("project") {
		cfg.DefaultProject = project
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if flags.Changed("host") {
		cfg.Host = serveHost
	}
	if flags.Changed("port") {
		cfg.Port = servePort
	}
	if flags.Changed("max-sessions") {
		cfg.MaxSessions = maxSessions
	}
	return cfg, cfg.Validate()
}

func newObserver(cfg config.Config, out io.Writer) *observe.Observer {
	return observe.NewFormat(cfg.LogFormat, out, cfg.Verbose)
}

func openStore(ctx context.Context, cfg config.Config) (*storage.Store, error) {
	store, err := storage.Open(ctx, cfg.DBPath, storage.Options{Private: cfg.PrivateFiles})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}
