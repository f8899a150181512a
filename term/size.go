//go:build unix
// +build unix

// Package term queries and controls the terminal attached to the process.
package term

import (
	"errors"
	"fmt"
	"os"

	"github.com/creack/pty"
)

var (
	ErrNotTerminal = errors.New("not a terminal")
	ErrNoSize      = errors.New("terminal reports no size")
)

// Size is the character-cell geometry of a terminal.
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// SizeOf returns the current size of the terminal behind f. The size is
// read from the kernel on every call.
func SizeOf(f *os.File) (Size, error) {
	if !IsTerminal(f) {
		return Size{}, fmt.Errorf("%s: %w", f.Name(), ErrNotTerminal)
	}
	ws, err := pty.GetsizeFull(f)
	if err != nil {
		return Size{}, fmt.Errorf("%s: %w", f.Name(), os.NewSyscallError("ioctl TIOCGWINSZ", err))
	}
	if ws.Cols == 0 || ws.Rows == 0 {
		return Size{}, fmt.Errorf("%s: %w", f.Name(), ErrNoSize)
	}
	return Size{Width: int(ws.Cols), Height: int(ws.Rows)}, nil
}

// GetSize returns the size of the terminal on standard output.
func GetSize() (Size, error) {
	return SizeOf(os.Stdout)
}

// Width returns the number of columns of the terminal on standard output,
// or -1 and an error.
func Width() (int, error) {
	sz, err := GetSize()
	if err != nil {
		return -1, err
	}
	return sz.Width, nil
}

// Height returns the number of rows of the terminal on standard output,
// or -1 and an error.
func Height() (int, error) {
	sz, err := GetSize()
	if err != nil {
		return -1, err
	}
	return sz.Height, nil
}
