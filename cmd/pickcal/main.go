package main

import (
	"os"

	"github.com/spf13/cobra"

	"pickcal/cmd/pickcal/commands"
	"pickcal/internal/config"
	appLog "pickcal/internal/log"
)

func main() {
	opts := &commands.Options{}

	rootCmd := &cobra.Command{
		Use:           "pickcal",
		Short:         "Gregorian/Jalali date and time picker constraints",
		Long:          `pickcal answers date and time picker queries (range checks, nearest selectable value, calendar conversion) from a YAML config, ICS holiday feeds and RRULE/cron rules.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultPath, "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "Print query results as JSON")

	rootCmd.AddCommand(commands.NewServeCommand(opts))
	rootCmd.AddCommand(commands.NewDateCommand(opts))
	rootCmd.AddCommand(commands.NewTimeCommand(opts))
	rootCmd.AddCommand(commands.NewConvertCommand(opts))
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		appLog.Error("command failed", err)
		appLog.Sync()
		os.Exit(1)
	}
	appLog.Sync()
}
