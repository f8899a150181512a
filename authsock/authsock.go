//go:build unix
// +build unix

// Package authsock talks to an SSH agent over its Unix domain socket.
//
// The low-level functions operate on raw descriptors and map one-to-one to
// connect(2), read(2), write(2) and close(2). A Handle must be closed
// exactly once, and must not be used after it has been closed. Handles carry
// no locking: concurrent reads or writes on the same handle need external
// synchronization.
//
// Buffers are always owned by the caller. Read and Write never touch more
// than count bytes, and count may not exceed len(buf).
//
// Paths always name a filesystem socket. A leading '@', which Linux would
// resolve in the abstract socket namespace, is rejected with ErrAbstractPath.
package authsock

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// Handle is the descriptor of a connected agent socket.
type Handle int

// InvalidHandle is returned by Open alongside a non-nil error.
const InvalidHandle Handle = -1

// EnvAuthSock names the environment variable holding the agent socket path.
const EnvAuthSock = "SSH_AUTH_SOCK"

var (
	ErrEmptyPath     = errors.New("empty socket path")
	ErrAbstractPath  = errors.New("abstract socket addresses are not supported")
	ErrInvalidHandle = errors.New("invalid socket handle")
	ErrBadCount      = errors.New("byte count out of buffer range")
	ErrNoAuthSock    = errors.New(EnvAuthSock + " is not set")
)

// Valid reports whether h may refer to an open descriptor.
func (h Handle) Valid() bool { return h >= 0 }

// Open connects to the Unix domain stream socket at path. There is exactly
// one connection attempt.
func Open(path string) (Handle, error) {
	if path == "" {
		return InvalidHandle, ErrEmptyPath
	}
	if strings.HasPrefix(path, "@") {
		return InvalidHandle, fmt.Errorf("opening auth socket %q: %w", path, ErrAbstractPath)
	}

	// Hold ForkLock so no child is forked between socket and CloseOnExec.
	syscall.ForkLock.RLock()
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err == nil {
		unix.CloseOnExec(fd)
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return InvalidHandle, fmt.Errorf("opening auth socket %q: %w", path, os.NewSyscallError("socket", err))
	}

	if err := unix.Connect(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return InvalidHandle, fmt.Errorf("opening auth socket %q: %w", path, os.NewSyscallError("connect", err))
	}

	return Handle(fd), nil
}

// Close releases h. Closing a handle twice is a caller error: the
// descriptor number may already have been reused.
func Close(h Handle) error {
	if !h.Valid() {
		return ErrInvalidHandle
	}
	if err := unix.Close(int(h)); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}

func checkCount(buf []byte, count int) error {
	if count < 0 || count > len(buf) {
		return fmt.Errorf("%w: count %d, buffer %d", ErrBadCount, count, len(buf))
	}
	return nil
}

// Read reads at most count bytes from h into buf. It returns 0 and a nil
// error at end of stream. It blocks for as long as the socket does.
func Read(h Handle, buf []byte, count int) (int, error) {
	if !h.Valid() {
		return 0, ErrInvalidHandle
	}
	if err := checkCount(buf, count); err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	for {
		n, err := unix.Read(int(h), buf[:count])
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return 0, os.NewSyscallError("read", err)
		}
		return n, nil
	}
}

// Write writes at most count bytes of buf to h and returns how many were
// sent. A short count is not an error; see WriteFull.
func Write(h Handle, buf []byte, count int) (int, error) {
	if !h.Valid() {
		return 0, ErrInvalidHandle
	}
	if err := checkCount(buf, count); err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	for {
		n, err := unix.Write(int(h), buf[:count])
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return 0, os.NewSyscallError("write", err)
		}
		return n, nil
	}
}

// WriteFull writes all of buf to h, looping over short writes.
func WriteFull(h Handle, buf []byte) (int, error) {
	var total int
	for total < len(buf) {
		n, err := Write(h, buf[total:], len(buf)-total)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, os.NewSyscallError("write", unix.EPIPE)
		}
	}
	return total, nil
}
