// Package cmd is the voicetype command line.
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voicetype/internal/config"
	"voicetype/internal/logging"
)

// Version information (set at build time via ldflags).
var (
	Version = "dev"
	Commit  = "unknown"
)

// Global flags.
var (
	flagConfig  string
	flagEnvFile string
	flagDebug   bool
	flagColor   string
)

// Shared state resolved before any command runs.
var (
	cfg config.Config
	log *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:   "voicetype",
	Short: "Hotkey voice typing",
	Long: `voicetype records speech on a global hotkey, transcribes it, optionally cleans it up
with a language model, applies replacement rules and types the result at the cursor.

Running without a subcommand starts the tray and overlay.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(config.Options{File: flagConfig, EnvFile: flagEnvFile})
		if err != nil {
			return err
		}
		log = logging.New(flagDebug || cfg.Debug)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "",
		"Config file (default "+config.DefaultFile()+")")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "",
		"Environment file preloaded before reading config (default .env)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagColor, "color", "auto",
		"Color output: auto, always, never")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// version needs no config.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("voicetype %s\n", Version)
		cmd.Printf("  commit: %s\n", Commit)
	},
}
