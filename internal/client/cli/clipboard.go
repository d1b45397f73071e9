package cli

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ErrNoClipboard is returned when no clipboard tool is installed.
var ErrNoClipboard = errors.New("no clipboard tool found")

// Clipboard writes text to the system clipboard.
type Clipboard interface {
	Write(text string) error
}

// execCommand and lookPath are test seams for os/exec.
var (
	execCommand = exec.Command
	lookPath    = exec.LookPath
)

type clipTool struct {
	name string
	args []string
}

func clipTools(goos string) []clipTool {
	switch goos {
	case "darwin":
		return []clipTool{{name: "pbcopy"}}
	case "windows":
		return []clipTool{{name: "clip.exe"}}
	default:
		return []clipTool{
			{name: "wl-copy"},
			{name: "xclip", args: []string{"-selection", "clipboard"}},
			{name: "xsel", args: []string{"--clipboard", "--input"}},
		}
	}
}

// SystemClipboard pipes text into the first available platform tool.
type SystemClipboard struct {
	goos string
}

func NewSystemClipboard() *SystemClipboard {
	return &SystemClipboard{goos: runtime.GOOS}
}

func (c *SystemClipboard) Write(text string) error {
	for _, t := range clipTools(c.goos) {
		path, err := lookPath(t.name)
		if err != nil {
			continue
		}
		cmd := execCommand(path, t.args...)
		cmd.Stdin = strings.NewReader(text)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("%s: %w: %s", t.name, err, strings.TrimSpace(string(out)))
		}
		return nil
	}
	return ErrNoClipboard
}

// ClipboardWiper copies secrets and optionally overwrites them after a
// delay. A new copy cancels the pending wipe.
type ClipboardWiper struct {
	clip  Clipboard
	delay time.Duration
	onErr func(error)

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

func NewClipboardWiper(clip Clipboard, delay time.Duration, onErr func(error)) *ClipboardWiper {
	if onErr == nil {
		onErr = func(error) {}
	}
	return &ClipboardWiper{clip: clip, delay: delay, onErr: onErr}
}

// Copy writes text to the clipboard. With wipe set the clipboard is
// cleared after the configured delay.
func (w *ClipboardWiper) Copy(text string, wipe bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopLocked()
	if err := w.clip.Write(text); err != nil {
		return err
	}
	if !wipe {
		return nil
	}

	w.gen++
	gen := w.gen
	w.timer = time.AfterFunc(w.delay, func() { w.fire(gen) })
	return nil
}

func (w *ClipboardWiper) fire(gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen || w.timer == nil {
		return
	}
	w.timer = nil
	if err := w.clip.Write(""); err != nil {
		w.onErr(err)
	}
}

// Pending reports whether a wipe is scheduled.
func (w *ClipboardWiper) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timer != nil
}

// Flush clears the clipboard now if a wipe is pending.
func (w *ClipboardWiper) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer == nil {
		return
	}
	w.stopLocked()
	if err := w.clip.Write(""); err != nil {
		w.onErr(err)
	}
}

func (w *ClipboardWiper) stopLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.gen++
}
