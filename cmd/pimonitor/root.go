package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pimonitor/pimonitor/internal/app"
	"github.com/pimonitor/pimonitor/internal/config"
)

type rootFlags struct {
	configPath string
	envFile    string
	noOSEnv    bool
}

func (f *rootFlags) source() config.Source {
	return config.Source{
		Path:         f.configPath,
		EnvFile:      f.envFile,
		IncludeOSEnv: !f.noOSEnv,
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "pimonitor",
		Short:         "Poll monitors and route their events to actions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "pimonitor.yaml", "path to the YAML or TOML config file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file with secrets referenced as ${VAR}")
	root.PersistentFlags().BoolVar(&flags.noOSEnv, "no-os-env", false, "do not expose process environment variables to ${VAR} references")

	root.AddCommand(newRunCmd(flags), newCheckCmd(flags), newVersionCmd())
	return root
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the dispatch loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(app.Options{Source: flags.source(), Watch: watch})
			if err != nil {
				return err
			}
			defer a.Close()

			slog.Info("pimonitor starting",
				"version", version,
				"config", flags.configPath,
				"monitors", a.Monitors.Len(),
				"actions", a.Actions.Len(),
			)
			if err := a.Run(cmd.Context()); err != nil {
				return err
			}
			slog.Info("pimonitor stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "log a warning when the config file changes")
	return cmd
}

func newCheckCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load, build and wire the configuration, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(app.Options{Source: flags.source()})
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "configuration OK: %d monitors, %d actions, %d listeners\n",
				a.Monitors.Len(), a.Actions.Len(), len(a.Settings.Listeners))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pimonitor %s (%s)\n", version, commit)
		},
	}
}
