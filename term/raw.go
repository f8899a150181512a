//go:build unix
// +build unix

package term

import (
	"fmt"
	"os"
	"sync"

	xterm "golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return xterm.IsTerminal(int(f.Fd()))
}

// RawMode holds the terminal state saved when the terminal was switched
// to raw mode, for password entry and byte-at-a-time input.
type RawMode struct {
	mu    sync.Mutex
	f     *os.File
	saved *xterm.State
}

// EnterRawMode puts the terminal behind f into raw mode. The previous
// state is restored by Leave.
func EnterRawMode(f *os.File) (*RawMode, error) {
	if !IsTerminal(f) {
		return nil, fmt.Errorf("%s: %w", f.Name(), ErrNotTerminal)
	}
	saved, err := xterm.MakeRaw(int(f.Fd()))
	if err != nil {
		return nil, fmt.Errorf("entering raw mode on %s: %w", f.Name(), err)
	}
	return &RawMode{f: f, saved: saved}, nil
}

// Leave restores the saved terminal state. Calling it more than once is a
// no-op.
func (r *RawMode) Leave() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saved == nil {
		return nil
	}
	if err := xterm.Restore(int(r.f.Fd()), r.saved); err != nil {
		return fmt.Errorf("leaving raw mode on %s: %w", r.f.Name(), err)
	}
	r.saved = nil
	return nil
}
