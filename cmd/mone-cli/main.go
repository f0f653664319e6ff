package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mone/internal/cli"
	"mone/internal/config"
	applog "mone/internal/log"
)

var (
	envFile     string
	backendFlag string
	dbPath      string
	seedFile    string
	logLevel    string
	format      string

	sess *session
)

var rootCmd = &cobra.Command{
	Use:           "mone-cli",
	Short:         "Personal bookkeeping from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd == cmd.Root() || cmd.Name() == "help" {
			return nil
		}
		if envFile != "" {
			cli.LoadEnvFile(envFile)
		} else {
			cli.LoadEnvFile()
		}

		cfg := config.Load()
		overrideConfig(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger := cli.SetupLogger(cfg.LogLevel, applog.NewTerminalHandler).WithComponent(applog.ComponentCLI)
		s, err := openSession(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		sess = s
		return nil
	},
}

// overrideConfig applies the persistent flags the user set on top of the
// environment.
func overrideConfig(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.DataBackend = backendFlag
	}
	if flags.Changed("db") {
		cfg.SQLiteDBPath = dbPath
	}
	if flags.Changed("seed") {
		cfg.SeedFile = seedFile
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Environment file to load (default .env)")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "memory", "Data backend: memory or sqlite")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./data/mone.db", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&seedFile, "seed", "./data/seed.yaml", "YAML seed for the memory backend")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "o", "yaml", "Output format: yaml or json")

	bookCmd.Flags().Bool("full", false, "Include transactions")

	addImportFlags(importCmd.Flags())

	historyCmd.Flags().String("from", "", "First day, YYYY-MM-DD")
	historyCmd.Flags().String("to", "", "Last day, YYYY-MM-DD")

	rootCmd.AddCommand(bookCmd, importCmd, replaceCmd, removeCmd, historyCmd, eventsCmd)
}

func main() {
	err := rootCmd.Execute()
	if sess != nil {
		err = errors.Join(err, sess.Close())
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addImportFlags(fs *pflag.FlagSet) {
	fs.Int("value-column", 0, "Column holding the amount")
	fs.Int("date-column", 1, "Column holding the date")
	fs.Int("description-column", 2, "Column holding the description")
	fs.Int("skip-rows", 0, "Header rows to skip")
	fs.String("delimiter", "", "Field delimiter (default from IMPORT_DELIMITER)")
	fs.String("thousands", "", "Thousands separator (default from IMPORT_THOUSANDS)")
	fs.String("decimal", "", "Decimal separator (default from IMPORT_DECIMAL)")
	fs.String("date-format", "", "strftime date layout (default from IMPORT_DATE_FORMAT)")
	fs.String("account", "", "Account the export belongs to")
	fs.String("counterpart", "", "Account or budget on the other side of each row")
	fs.StringSlice("tag", nil, "Tag added to every imported transaction")
	fs.Bool("dry-run", false, "Print the parsed rows without booking them")
}
