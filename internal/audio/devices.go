package audio

import (
	"sort"
	"strings"

	"voicetype/internal/domain"
)

// DedupeInputDevices keeps one variant per device name: the one with the most input channels,
// then the highest default sample rate. Output devices are dropped. Result is sorted by name.
func DedupeInputDevices(devices []domain.Device) []domain.Device {
	best := make(map[string]domain.Device)
	defaults := make(map[string]bool)
	for _, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		if d.Default {
			defaults[d.Name] = true
		}
		if current, seen := best[d.Name]; !seen || better(d, current) {
			best[d.Name] = d
		}
	}

	out := make([]domain.Device, 0, len(best))
	for name, d := range best {
		d.Default = defaults[name]
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// GroupVariants groups all input variants by device name.
func GroupVariants(devices []domain.Device) map[string][]domain.Device {
	groups := make(map[string][]domain.Device)
	for _, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		groups[d.Name] = append(groups[d.Name], d)
	}
	return groups
}

// MatchDevice finds the device for a saved identifier: an exact match first, then the best
// variant sharing the name.
func MatchDevice(devices []domain.Device, id domain.DeviceIdentifier) (domain.Device, bool) {
	for _, d := range devices {
		if d.MaxInputChannels > 0 && d.Identifier() == id {
			return d, true
		}
	}

	var (
		found bool
		match domain.Device
	)
	for _, d := range devices {
		if d.MaxInputChannels <= 0 || d.Name != id.Name {
			continue
		}
		if !found || better(d, match) {
			match = d
			found = true
		}
	}
	return match, found
}

func better(a, b domain.Device) bool {
	if a.MaxInputChannels != b.MaxInputChannels {
		return a.MaxInputChannels > b.MaxInputChannels
	}
	return a.DefaultSampleRate > b.DefaultSampleRate
}
