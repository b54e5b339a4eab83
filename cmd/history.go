package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"voicetype/internal/history"
	"voicetype/internal/inserter"
)

// History command flags.
var (
	historyFlagLimit int
	historyFlagCopy  int
	historyFlagFull  bool
)

const previewWidth = 60

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"hist", "h"},
	Short:   "List recent transcriptions",
	Long: `List recent transcriptions, newest first. Use --copy N to put entry N on the clipboard.

Examples:
  voicetype history
  voicetype history --limit 3 --full
  voicetype history --copy 1`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyFlagLimit, "limit", "n", 0, "Number of entries to show (default all)")
	historyCmd.Flags().IntVar(&historyFlagCopy, "copy", 0, "Copy entry N (1 is newest) to the clipboard")
	historyCmd.Flags().BoolVar(&historyFlagFull, "full", false, "Print full text instead of a preview")
}

func runHistory(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	store, err := history.Open(cfg.Paths.History, cfg.History.Limit)
	if err != nil {
		return err
	}

	entries := store.Recent(0)
	if historyFlagCopy != 0 {
		if historyFlagCopy < 1 || historyFlagCopy > len(entries) {
			return fmt.Errorf("no history entry %d (have %d)", historyFlagCopy, len(entries))
		}
		if err := inserter.CopyToClipboard(entries[historyFlagCopy-1].Text); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
		fmt.Fprintf(out, "Copied entry %d to the clipboard\n", historyFlagCopy)
		return nil
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No transcriptions yet")
		return nil
	}
	if historyFlagLimit > 0 && historyFlagLimit < len(entries) {
		entries = entries[:historyFlagLimit]
	}
	paint := newPainter(out)
	for i, e := range entries {
		text := e.Text
		if !historyFlagFull {
			text = history.Preview(text, previewWidth)
		}
		stamp := ""
		if !e.CreatedAt.IsZero() {
			stamp = e.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(out, "%s  %s  %s\n",
			paint.paint(styleAccent, fmt.Sprintf("%2d", i+1)),
			paint.paint(styleMuted, fmt.Sprintf("%-16s", stamp)),
			text)
	}
	return nil
}
