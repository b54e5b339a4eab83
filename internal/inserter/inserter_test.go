package inserter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"voicetype/internal/logging"
)

type fakeClipboard struct {
	mu      sync.Mutex
	content string
	readErr error
	writes  []string
}

func (c *fakeClipboard) ReadAll() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content, c.readErr
}

func (c *fakeClipboard) WriteAll(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = text
	c.writes = append(c.writes, text)
	return nil
}

type fakeKeyboard struct {
	clip   *fakeClipboard
	pasted []string
	err    error
}

func (k *fakeKeyboard) Paste() error {
	if k.err != nil {
		return k.err
	}
	text, _ := k.clip.ReadAll()
	k.pasted = append(k.pasted, text)
	return nil
}

func newTestInserter(clip *fakeClipboard, keys *fakeKeyboard) *Inserter {
	ins := NewWith(clip, keys, logging.Nop())
	ins.settle = 0
	ins.restore = 0
	return ins
}

func TestInsertPastesAndRestoresClipboard(t *testing.T) {
	t.Parallel()

	clip := &fakeClipboard{content: "previous"}
	keys := &fakeKeyboard{clip: clip}
	if err := newTestInserter(clip, keys).Insert(context.Background(), "hello world"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if len(keys.pasted) != 1 || keys.pasted[0] != "hello world" {
		t.Fatalf("unexpected paste: %v", keys.pasted)
	}
	if clip.content != "previous" {
		t.Fatalf("expected clipboard restored, got %q", clip.content)
	}
}

func TestInsertSkipsRestoreWhenClipboardUnreadable(t *testing.T) {
	t.Parallel()

	clip := &fakeClipboard{content: "binary", readErr: errors.New("not text")}
	keys := &fakeKeyboard{clip: clip}
	if err := newTestInserter(clip, keys).Insert(context.Background(), "typed"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if strings.Join(clip.writes, ",") != "typed" {
		t.Fatalf("expected a single write, got %v", clip.writes)
	}
}

func TestInsertReportsPasteFailure(t *testing.T) {
	t.Parallel()

	clip := &fakeClipboard{content: "keep me"}
	keys := &fakeKeyboard{clip: clip, err: errors.New("no uinput")}
	err := newTestInserter(clip, keys).Insert(context.Background(), "lost")
	if err == nil || !strings.Contains(err.Error(), "send paste") {
		t.Fatalf("expected paste error, got %v", err)
	}
	if clip.content != "keep me" {
		t.Fatalf("expected clipboard restored after failure, got %q", clip.content)
	}
}

func TestInsertHonoursCancellation(t *testing.T) {
	t.Parallel()

	clip := &fakeClipboard{content: "orig"}
	keys := &fakeKeyboard{clip: clip}
	ins := newTestInserter(clip, keys)
	ins.settle = 1e9

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ins.Insert(ctx, "never"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(keys.pasted) != 0 || clip.content != "orig" {
		t.Fatalf("nothing should be pasted: pasted=%v clip=%q", keys.pasted, clip.content)
	}
}

func TestInsertEmptyTextIsNoop(t *testing.T) {
	t.Parallel()

	clip := &fakeClipboard{}
	keys := &fakeKeyboard{clip: clip}
	if err := newTestInserter(clip, keys).Insert(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clip.writes) != 0 {
		t.Fatalf("expected no clipboard writes, got %v", clip.writes)
	}
}

func TestCopyWritesClipboard(t *testing.T) {
	t.Parallel()

	clip := &fakeClipboard{}
	if err := newTestInserter(clip, &fakeKeyboard{clip: clip}).Copy("from history"); err != nil {
		t.Fatalf("copy failed: %v", err)
	}
	if clip.content != "from history" {
		t.Fatalf("unexpected clipboard: %q", clip.content)
	}
}
