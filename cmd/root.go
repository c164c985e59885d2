package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hazardwatch/hazardwatch/cmd/dbcopy"
	"github.com/hazardwatch/hazardwatch/cmd/ingest"
	"github.com/hazardwatch/hazardwatch/cmd/migrate"
	"github.com/hazardwatch/hazardwatch/cmd/notify"
	"github.com/hazardwatch/hazardwatch/cmd/serve"
	"github.com/hazardwatch/hazardwatch/cmd/sources"
	"github.com/hazardwatch/hazardwatch/cmd/token"
	"github.com/hazardwatch/hazardwatch/cmd/version"
	"github.com/hazardwatch/hazardwatch/internal/buildinfo"
	"github.com/hazardwatch/hazardwatch/internal/conf"
	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/logging"
	"github.com/hazardwatch/hazardwatch/internal/privacy"
)

const sentryFlushTimeout = 2 * time.Second

// flags shared by every sub-command
type globalFlags struct {
	configPath string
	debug      bool
	logLevel   string
}

// RootCommand creates and returns the root command. settings is filled in
// before any sub-command that needs configuration runs.
func RootCommand(settings *conf.Settings) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "hazardwatch",
		Short:         "Hazard ingestion and reconciliation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, flags); err != nil {
		panic(err)
	}

	tokenCmd := token.Command()
	versionCmd := version.Command()

	subcommands := []*cobra.Command{
		serve.Command(settings),
		ingest.Command(settings),
		migrate.Command(settings),
		dbcopy.Command(settings),
		sources.Command(settings),
		notify.Command(settings),
		tokenCmd,
		versionCmd,
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// token and version work without a configuration
		if cmd.Name() == tokenCmd.Name() || cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(settings, flags)
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		errors.FlushSentry(sentryFlushTimeout)
		_ = logging.Close()
	}

	return rootCmd
}

// initialize loads settings and sets up logging and error telemetry.
func initialize(settings *conf.Settings, flags *globalFlags) error {
	var (
		loaded *conf.Settings
		err    error
	)
	if flags.configPath != "" {
		loaded, err = conf.LoadFile(flags.configPath)
	} else {
		loaded, err = conf.Load()
	}
	if err != nil {
		return err
	}
	*settings = *loaded

	// command line takes precedence over the file
	if flags.debug {
		settings.Debug = true
	}
	level := settings.Main.Log.Level
	if flags.logLevel != "" {
		level = flags.logLevel
	} else if settings.Debug {
		level = "debug"
	}

	logCfg := logging.Config{Level: level, Format: settings.Main.Log.Format}
	if settings.Main.Log.Enabled {
		logCfg.FilePath = settings.Main.Log.Path
		logCfg.Rotation = settings.Main.Log.Rotation
		logCfg.MaxSizeMB = settings.Main.Log.MaxSize
	}
	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	if settings.Sentry.Enabled {
		errors.SetPrivacyScrubber(privacy.ScrubMessage)
		if err := errors.InitSentry(settings.Sentry.DSN, buildinfo.Current().Release(), settings.Sentry.Environment); err != nil {
			return err
		}
	}
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, flags *globalFlags) error {
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to config.yaml (default: search the standard locations)")
	rootCmd.PersistentFlags().BoolVarP(&flags.debug, "debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override main.log.level (trace, debug, info, warn, error)")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
