//go:build unix
// +build unix

package authsock

import (
	"io"
	"os"
	"sync"
)

// Conn adapts a Handle to io.ReadWriteCloser so that stream-oriented code,
// such as an agent protocol client, can run on top of it.
type Conn struct {
	path string

	mu sync.Mutex
	h  Handle
}

// Dial opens the agent socket at path.
func Dial(path string) (*Conn, error) {
	h, err := Open(path)
	if err != nil {
		return nil, err
	}
	return &Conn{path: path, h: h}, nil
}

// DialEnv opens the agent socket named by SSH_AUTH_SOCK.
func DialEnv() (*Conn, error) {
	path := os.Getenv(EnvAuthSock)
	if path == "" {
		return nil, ErrNoAuthSock
	}
	return Dial(path)
}

// Path returns the socket path the Conn was dialed with.
func (c *Conn) Path() string { return c.path }

func (c *Conn) handle() Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h
}

// Read implements io.Reader, turning end of stream into io.EOF.
func (c *Conn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := Read(c.handle(), p, len(p))
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write implements io.Writer. Unlike the package-level Write it does not
// return until all of p has been sent or an error occurs.
func (c *Conn) Write(p []byte) (int, error) {
	return WriteFull(c.handle(), p)
}

// Close releases the underlying handle. Subsequent calls return nil.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.h.Valid() {
		return nil
	}
	err := Close(c.h)
	c.h = InvalidHandle
	return err
}
