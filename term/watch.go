//go:build unix
// +build unix

package term

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Watch sends the current size of the terminal behind f, then every new
// size reported after a SIGWINCH. Sizes equal to the last one sent are
// dropped. The channel is closed once ctx is done.
func Watch(ctx context.Context, f *os.File) <-chan Size {
	sizes := make(chan Size, 1)

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)

	go func() {
		defer close(sizes)
		defer signal.Stop(winch)

		var last Size
		send := func() bool {
			sz, err := SizeOf(f)
			if err != nil {
				slog.Debug("reading terminal size", "file", f.Name(), "error", err)
				return true
			}
			if sz == last {
				return true
			}
			select {
			case sizes <- sz:
				last = sz
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-winch:
				if !send() {
					return
				}
			}
		}
	}()

	return sizes
}
