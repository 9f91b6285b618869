// Package cmd holds the command line interface: building the enriched
// dataset and its embeddings, serving the API and one-off lookups.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/giygas/medicaments-alternatives/config"
	"github.com/giygas/medicaments-alternatives/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// cfg is loaded once per invocation by the root command.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "medicaments-alternatives",
	Short: "Find cheaper equivalents of New Caledonian medications",
	Long: `medicaments-alternatives enriches the medication price list with the brand,
dosage and galenic form of every label, embeds each record and serves
equivalent alternatives: the most similar records sharing the same dosage
and form under a different brand.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Close()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "Environment file to load before reading the configuration")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log info messages to the console in the test environment")
}

// setup loads the environment file, the configuration and the logger
func setup(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	loaded, err := config.Load()
	if err != nil {
		return err
	}
	cfg = loaded

	verbose, _ := cmd.Flags().GetBool("verbose")
	if err := logging.InitLogger(logging.Options{
		Dir:            cfg.LogDir,
		Env:            cfg.Env,
		Level:          cfg.LogLevel,
		Verbose:        verbose,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
		Console:        cmd.ErrOrStderr(),
	}); err != nil {
		// console logging still works
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}

	logging.Debug("Configuration loaded", "env", cfg.Env.String(), "vars", config.GetEnvVars())
	return nil
}
