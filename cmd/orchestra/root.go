package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/orchestra/config"
	"github.com/hupe1980/orchestra/logging"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "orchestra",
		Short: "Multi-agent orchestration engine",
		Long: `Orchestra executes plans of agent invocations: ordered stages whose
invocations run sequentially or in parallel, with per-invocation timeouts,
retries with exponential backoff, and a synthesis step that merges the
results into one output.

Agents and orchestrator policy are declared in a YAML config file; plans
are separate YAML documents.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "config file (YAML)")
	cmd.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before the config")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	cmd.AddCommand(newRunCmd(g))
	cmd.AddCommand(newHistoryCmd(g))
	cmd.AddCommand(newRolesCmd(g))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (g *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(g.configPath, func(o *config.LoadOptions) {
		o.EnvFiles = []string{g.envFile}
	})
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.StructuredLogger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.Logging.Level),
		Format:    cfg.Logging.Format,
		Output:    os.Stderr,
		Component: "cli",
	})
}
