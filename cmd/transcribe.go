package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"voicetype/internal/bootstrap"
	"voicetype/internal/settings"
	"voicetype/internal/usecase"
)

// Transcribe command flags.
var (
	transcribeFlagStdout  bool
	transcribeFlagNoClean bool
	transcribeFlagOutput  string
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe FILE",
	Short: "Transcribe an audio file",
	Long: `Transcribe an audio file with the configured provider, then apply cleanup and rules the
same way a dictation would. The text is written next to the input as FILE.txt unless --stdout
or --output is given.

Examples:
  voicetype transcribe meeting.wav
  voicetype transcribe --stdout --no-clean note.wav`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	transcribeCmd.Flags().BoolVar(&transcribeFlagStdout, "stdout", false, "Print the transcript instead of writing a file")
	transcribeCmd.Flags().BoolVar(&transcribeFlagNoClean, "no-clean", false, "Skip language model cleanup")
	transcribeCmd.Flags().StringVarP(&transcribeFlagOutput, "output", "o", "", "Output file (default FILE.txt)")
}

// filePrefs answers the controller's preference questions for a one-shot run.
type filePrefs struct {
	clean bool
}

func (p filePrefs) CleanTranscription() bool      { return p.clean }
func (p filePrefs) SilenceTimeout() time.Duration { return 0 }

func runTranscribe(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := args[0]
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("audio file: %w", err)
	}

	text, err := bootstrap.BuildTranscription(cfg, log)
	if err != nil {
		return err
	}
	prefs := filePrefs{clean: !transcribeFlagNoClean && settings.Open(cfg.Paths.Settings, log).CleanTranscription()}

	result, err := usecase.TranscribeFile(cmd.Context(), path, usecase.Dependencies{
		Transcriber: text.Transcriber,
		Cleaner:     text.Cleaner,
		Rules:       text.Rules,
		Preferences: prefs,
	}, log)
	if err != nil {
		return err
	}
	log.Debugw("file transcribed", "path", path, "cleaned", result.Cleaned, "chars", len(result.Final))

	if transcribeFlagStdout {
		fmt.Fprintln(out, result.Final)
		return nil
	}
	dest := transcribeFlagOutput
	if dest == "" {
		dest = strings.TrimSuffix(path, filepath.Ext(path)) + ".txt"
	}
	if err := os.WriteFile(dest, []byte(result.Final+"\n"), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	fmt.Fprintf(out, "Transcript written to %s\n", dest)
	return nil
}
