package tray

import (
	"fmt"
	"strconv"
	"strings"

	"voicetype/internal/audio"
	"voicetype/internal/domain"
	"voicetype/internal/history"
)

const (
	ActionToggle     = "toggle"
	ActionRetry      = "retry"
	ActionCopy       = "copy"
	ActionSelectMic  = "mic"
	ActionFavorite   = "favorite"
	ActionRefresh    = "refresh"
	ActionClean      = "clean"
	ActionAutoStop   = "autostop"
	ActionExit       = "exit"
	historyPreviewLn = 50

	maxDevices = 16
)

// Item is one menu entry. Action is "<kind>" or "<kind>:<index>".
type Item struct {
	Action   string
	Title    string
	Checked  bool
	Disabled bool
	Children []Item
}

// Model is everything the menu is derived from.
type Model struct {
	Status             domain.StatusUpdate
	CanRetry           bool
	History            []domain.HistoryEntry
	Devices            []domain.Device
	Selected           *domain.DeviceIdentifier
	Favorites          []domain.DeviceIdentifier
	CleanTranscription bool
	AutoStop           bool
}

// Build derives the full menu from m.
func Build(m Model) []Item {
	toggle := "Start Dictation"
	if m.Status.Status == domain.StatusRecording {
		toggle = "Stop Dictation"
	}

	return []Item{
		{Action: ActionToggle, Title: toggle, Disabled: m.Status.Status == domain.StatusProcessing},
		{Action: ActionRetry, Title: "Retry Last Transcription", Disabled: !m.CanRetry},
		historyMenu(m.History),
		microphoneMenu(m),
		favoritesMenu(m),
		{Title: "Settings", Children: []Item{
			{Action: ActionClean, Title: "Clean Transcription", Checked: m.CleanTranscription},
			{Action: ActionAutoStop, Title: "Auto-Stop on Silence", Checked: m.AutoStop},
		}},
		{Action: ActionExit, Title: "Exit"},
	}
}

func historyMenu(entries []domain.HistoryEntry) Item {
	item := Item{Title: "Recent Transcriptions"}
	if len(entries) == 0 {
		item.Disabled = true
		item.Children = []Item{{Title: "No transcriptions yet", Disabled: true}}
		return item
	}
	for i, e := range entries {
		item.Children = append(item.Children, Item{
			Action: indexed(ActionCopy, i),
			Title:  history.Preview(e.Text, historyPreviewLn),
		})
	}
	return item
}

func microphoneMenu(m Model) Item {
	item := Item{Title: "Microphone"}
	for i, d := range listed(m.Devices) {
		title := d.Name
		if isFavorite(m.Favorites, d.Identifier()) {
			title = "★ " + title
		}
		if d.Default {
			title += " (default)"
		}
		item.Children = append(item.Children, Item{
			Action:  indexed(ActionSelectMic, i),
			Title:   title,
			Checked: selected(m, d),
		})
	}
	if len(item.Children) == 0 {
		item.Children = []Item{{Title: "No input devices", Disabled: true}}
	}
	item.Children = append(item.Children, Item{Action: ActionRefresh, Title: "Refresh Devices"})
	return item
}

func favoritesMenu(m Model) Item {
	item := Item{Title: "Manage Favourites"}
	for i, d := range listed(m.Devices) {
		item.Children = append(item.Children, Item{
			Action:  indexed(ActionFavorite, i),
			Title:   d.Name,
			Checked: isFavorite(m.Favorites, d.Identifier()),
		})
	}
	if len(item.Children) == 0 {
		item.Disabled = true
	}
	return item
}

// listed is the menu's view of devices: one entry per name, capped to the slots available.
func listed(devices []domain.Device) []domain.Device {
	deduped := audio.DedupeInputDevices(devices)
	if len(deduped) > maxDevices {
		deduped = deduped[:maxDevices]
	}
	return deduped
}

// selected matches by name so a device that reappears with other channel counts stays checked.
func selected(m Model, d domain.Device) bool {
	if m.Selected == nil {
		return d.Default
	}
	return m.Selected.Name == d.Name
}

func isFavorite(favorites []domain.DeviceIdentifier, id domain.DeviceIdentifier) bool {
	for _, f := range favorites {
		if f.Name == id.Name {
			return true
		}
	}
	return false
}

// Tooltip is the tray hover text for an update.
func Tooltip(update domain.StatusUpdate) string {
	text := update.View.Text
	if update.Message != "" {
		text = update.Message
	}
	return strings.TrimSpace(update.View.TrayGlyph + " " + text)
}

func indexed(kind string, i int) string {
	return fmt.Sprintf("%s:%d", kind, i)
}

// ParseAction splits an action into its kind and index. Index is -1 when absent.
func ParseAction(action string) (string, int) {
	kind, rawIndex, found := strings.Cut(action, ":")
	if !found {
		return kind, -1
	}
	i, err := strconv.Atoi(rawIndex)
	if err != nil {
		return kind, -1
	}
	return kind, i
}
