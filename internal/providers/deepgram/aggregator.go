package deepgram

import (
	"strings"
	"sync"
)

// transcriptAggregator joins final results, falling back to the latest interim text when the
// stream closed before a final arrived.
type transcriptAggregator struct {
	mu         sync.Mutex
	finals     []string
	lastSpoken string
}

func newTranscriptAggregator() *transcriptAggregator {
	return &transcriptAggregator{}
}

func (a *transcriptAggregator) Add(event transcriptEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	text := strings.TrimSpace(event.Text)
	if text == "" {
		return
	}
	a.lastSpoken = text
	if event.Final {
		a.finals = append(a.finals, text)
	}
}

func (a *transcriptAggregator) Raw() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	joined := strings.TrimSpace(strings.Join(a.finals, " "))
	switch {
	case joined == "":
		return a.lastSpoken
	case a.lastSpoken == "", strings.HasSuffix(joined, a.lastSpoken):
		return joined
	case len(a.lastSpoken) > len(joined):
		return strings.TrimSpace(joined + " " + a.lastSpoken)
	default:
		return joined
	}
}
