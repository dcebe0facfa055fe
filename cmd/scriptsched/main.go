// scriptsched — инструмент командной строки для управления
// расписаниями скриптов через HTTP API.
//
// Использование:
//
//	scriptsched [--api-url URL] [--config FILE] [--json] schedule <subcommand> [flags]
//
// Команды:
//
//	schedule  Управление schedules
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shaiso/scriptsched/internal/cli"
	"github.com/shaiso/scriptsched/internal/config"
	"github.com/shaiso/scriptsched/internal/mq"
	"github.com/shaiso/scriptsched/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var configPath string
	var jsonOutput bool
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           "scriptsched",
		Short:         "scriptsched CLI — script schedule management",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env не обязателен
			_ = godotenv.Load()

			loaded, err := config.LoadDefault(configPath)
			if err != nil {
				return err
			}
			cfg = loaded

			if cmd.Flags().Changed("api-url") {
				cfg.API.URL = apiURL
			}

			// Логи в stderr, чтобы не мешать выводу данных
			telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client {
		return cli.NewClient(cfg.API.URL, cli.WithTimeout(cfg.API.Timeout))
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }
	amqpURLFn := func() string {
		if cfg.AMQP.URL != "" {
			return cfg.AMQP.URL
		}
		return mq.DefaultURL()
	}

	rootCmd.AddCommand(
		cli.NewScheduleCmd(clientFn, outputFn, amqpURLFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
