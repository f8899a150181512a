//go:build unix
// +build unix

package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"

	"snai.pe/agentterm/term"
)

type PTY interface {
	io.ReadWriteCloser
	Resize(size term.Size) error
}

type ptyimpl struct {
	*os.File
}

// StartPTY starts cmd on a new pseudo-terminal of the given size. A zero
// size leaves the kernel default in place.
func StartPTY(cmd *exec.Cmd, size term.Size) (PTY, error) {
	var ws *pty.Winsize
	if size.Width > 0 && size.Height > 0 {
		ws = winsize(size)
	}
	f, err := pty.StartWithSize(cmd, ws)
	if err != nil {
		return nil, err
	}
	return &ptyimpl{f}, nil
}

func (p *ptyimpl) Resize(size term.Size) error {
	if size.Width <= 0 || size.Height <= 0 || size.Width > 0xffff || size.Height > 0xffff {
		return fmt.Errorf("invalid terminal size %v", size)
	}
	return pty.Setsize(p.File, winsize(size))
}

func winsize(size term.Size) *pty.Winsize {
	return &pty.Winsize{Rows: uint16(size.Height), Cols: uint16(size.Width)}
}
