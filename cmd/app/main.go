package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"videosafety-worker/internal/config"
	"videosafety-worker/internal/logging"
)

// app carries what every subcommand needs once the root command has loaded it.
type app struct {
	configPath string
	configName string
	envFile    string

	cfg       *config.Config
	logger    *logrus.Logger
	logCloser io.Closer
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "videosafety-worker",
		Short:         "Child-safety analysis of YouTube videos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.logCloser != nil {
				return a.logCloser.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config-path", "./configs", "directory holding the config file")
	root.PersistentFlags().StringVar(&a.configName, "config-name", "config", "config file name without extension")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the config; missing is fine")

	root.AddCommand(
		newServeCmd(a),
		newProcessCmd(a),
		newMigrateCmd(a),
		newExportCmd(a),
	)
	return root
}

func (a *app) load() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}
	cfg, err := config.Load(a.configPath, a.configName)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	a.cfg, a.logger, a.logCloser = cfg, logger, closer
	logger.WithField("app", cfg.AppName).Debug("[App] configuration loaded")
	return nil
}
