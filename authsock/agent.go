//go:build unix
// +build unix

package authsock

import (
	"fmt"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// NewAgent returns an SSH agent protocol client speaking over conn.
func NewAgent(conn *Conn) agent.ExtendedAgent {
	return agent.NewClient(conn)
}

// Key describes one identity held by an agent.
type Key struct {
	Type        string
	Fingerprint string
	Comment     string
}

func (k Key) String() string {
	return fmt.Sprintf("%s %s %s", k.Type, k.Fingerprint, k.Comment)
}

// ListKeys dials the agent at path and returns the identities it holds.
func ListKeys(path string) ([]Key, error) {
	conn, err := Dial(path)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	keys, err := NewAgent(conn).List()
	if err != nil {
		return nil, fmt.Errorf("listing agent keys at %q: %w", path, err)
	}

	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		out = append(out, Key{
			Type:        k.Type(),
			Fingerprint: ssh.FingerprintSHA256(k),
			Comment:     k.Comment,
		})
	}
	return out, nil
}
