package commands

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"equity_valuation/pkg/core/config"
	"equity_valuation/pkg/core/pipeline"
	"equity_valuation/pkg/logger"
)

var (
	configPath string
	logLevel   string
	pretty     bool
	jsonOut    bool

	cfg  *config.Config
	log  zerolog.Logger
	orch *pipeline.Orchestrator
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "valuate",
		Short:        "DCF, scenario and comparables valuation engine",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if cmd.Flags().Changed("pretty") {
				cfg.Log.Pretty = pretty
			}

			log = logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Out: os.Stderr})
			logger.SetGlobalLogger(log)

			orch, err = pipeline.NewFromConfig(cfg, log)
			return err
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&pretty, "pretty", false, "human-readable log output")
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON instead of tables")

	root.AddCommand(runCmd(), sensitivityCmd(), checkCmd())
	return root
}
