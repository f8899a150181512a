//go:build unix
// +build unix

package main

import (
	"os"

	"github.com/gliderlabs/ssh"
	"golang.org/x/sys/unix"
)

// processSignal maps a signal name received over ssh, which carries no SIG
// prefix, to the local signal. Unknown names are reported with ok == false.
func processSignal(name ssh.Signal) (sig os.Signal, ok bool) {
	num := unix.SignalNum("SIG" + string(name))
	if num == 0 {
		return nil, false
	}
	return num, true
}
