// Package inserter places text at the cursor by pasting it through the system clipboard.
package inserter

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
	"go.uber.org/zap"
)

const (
	settleDelay  = 80 * time.Millisecond
	restoreDelay = 100 * time.Millisecond
)

// Clipboard reads and writes the system clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// Keyboard sends the platform paste chord.
type Keyboard interface {
	Paste() error
}

type Inserter struct {
	clip Clipboard
	keys Keyboard
	log  *zap.SugaredLogger

	settle  time.Duration
	restore time.Duration

	mu sync.Mutex
}

// New uses the system clipboard and a virtual keyboard.
func New(log *zap.SugaredLogger) (*Inserter, error) {
	if clipboard.Unsupported {
		return nil, errors.New("no clipboard utility available")
	}
	keys, err := newVirtualKeyboard()
	if err != nil {
		return nil, err
	}
	return NewWith(systemClipboard{}, keys, log), nil
}

func NewWith(clip Clipboard, keys Keyboard, log *zap.SugaredLogger) *Inserter {
	return &Inserter{clip: clip, keys: keys, log: log, settle: settleDelay, restore: restoreDelay}
}

// Insert pastes text at the cursor and then puts the previous clipboard contents back.
// Calls are serialised.
func (i *Inserter) Insert(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	original, readErr := i.clip.ReadAll()
	if readErr != nil {
		i.log.Debugw("clipboard read failed, contents will not be restored", "error", readErr)
	}

	if err := i.clip.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	if err := wait(ctx, i.settle); err != nil {
		i.put(original, readErr)
		return err
	}
	if err := i.keys.Paste(); err != nil {
		i.put(original, readErr)
		return fmt.Errorf("send paste: %w", err)
	}

	// the target application reads the clipboard asynchronously
	_ = wait(context.Background(), i.restore)
	i.put(original, readErr)
	return nil
}

// Copy replaces the clipboard contents with text.
func (i *Inserter) Copy(text string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.clip.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

func (i *Inserter) put(original string, readErr error) {
	if readErr != nil {
		return
	}
	if err := i.clip.WriteAll(original); err != nil {
		i.log.Warnw("clipboard restore failed", "error", err)
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// CopyToClipboard writes text to the system clipboard.
func CopyToClipboard(text string) error {
	return clipboard.WriteAll(text)
}

type virtualKeyboard struct {
	kb keybd_event.KeyBonding
}

func newVirtualKeyboard() (*virtualKeyboard, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("virtual keyboard: %w", err)
	}
	if runtime.GOOS == "linux" {
		// uinput needs time to register the new device
		time.Sleep(2 * time.Second)
	}
	kb.SetKeys(keybd_event.VK_V)
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	return &virtualKeyboard{kb: kb}, nil
}

func (k *virtualKeyboard) Paste() error {
	return k.kb.Launching()
}
