package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"voicetype/internal/audio"
	"voicetype/internal/audio/portaudio"
	"voicetype/internal/settings"
)

var devicesFlagAll bool

var devicesCmd = &cobra.Command{
	Use:     "devices",
	Aliases: []string{"mics"},
	Short:   "List input devices",
	Long: `List microphones PortAudio can open. Devices exposed through several host APIs are shown
once; --all prints every variant. The system default is marked with *, the selected
microphone with >.`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

func init() {
	devicesCmd.Flags().BoolVar(&devicesFlagAll, "all", false, "Show every host API variant")
}

func runDevices(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	all, err := portaudio.Devices()
	if err != nil {
		return err
	}
	devices := audio.DedupeInputDevices(all)
	if len(devices) == 0 {
		fmt.Fprintln(out, "No input devices found")
		return nil
	}

	selected, hasSelected := settings.Open(cfg.Paths.Settings, log).SelectedMicrophone()
	variants := audio.GroupVariants(all)
	paint := newPainter(out)
	for _, d := range devices {
		mark := " "
		if d.Default {
			mark = "*"
		}
		if hasSelected && d.Name == selected.Name {
			mark = ">"
		}
		name := d.Name
		if mark != " " {
			name = paint.paint(styleMarked, name)
		}
		fmt.Fprintf(out, "%s %s %s\n", mark, name,
			paint.paint(styleMuted, fmt.Sprintf("(%d ch, %.0f Hz)", d.MaxInputChannels, d.DefaultSampleRate)))
		if !devicesFlagAll {
			continue
		}
		group := variants[d.Name]
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		for _, v := range group {
			fmt.Fprintf(out, "    %s %s: %d ch, %.0f Hz\n",
				paint.paint(styleAccent, fmt.Sprintf("#%d", v.ID)), v.HostAPI, v.MaxInputChannels, v.DefaultSampleRate)
		}
	}
	return nil
}
