//go:build unix
// +build unix

package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"snai.pe/agentterm/authsock"
)

type AgentCmd struct {
	List  AgentListCmd  `cmd:"" help:"list the identities held by the agent"`
	Ping  AgentPingCmd  `cmd:"" help:"write PING to the socket and report the reply size"`
	Check AgentCheckCmd `cmd:"" help:"check that the agent answers an identities request"`
}

type AgentFlags struct {
	Socket string `env:"SSH_AUTH_SOCK" required:"" help:"path to the agent socket"`
}

type AgentListCmd struct {
	AgentFlags
}

func (c *AgentListCmd) Run(ctx *Context) error {
	keys, err := authsock.ListKeys(c.Socket)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Fprintln(ctx.Stdout, "The agent has no identities.")
		return nil
	}
	for _, k := range keys {
		fmt.Fprintln(ctx.Stdout, k)
	}
	return nil
}

type AgentPingCmd struct {
	AgentFlags
}

// Run performs one write of PING and one read of at most 64 bytes. Any
// stream peer will do; an ssh agent never answers because PING is not a
// complete agent message, so use check for agents.
func (c *AgentPingCmd) Run(ctx *Context) error {
	h, err := authsock.Open(c.Socket)
	if err != nil {
		return err
	}
	defer authsock.Close(h)

	sent, err := authsock.Write(h, []byte("PING"), 4)
	if err != nil {
		return fmt.Errorf("sending ping: %w", err)
	}

	buf := make([]byte, 64)
	n, err := authsock.Read(h, buf, len(buf))
	if err != nil {
		return fmt.Errorf("reading reply: %w", err)
	}
	slog.Debug("ping", "socket", c.Socket, "sent", sent, "received", n)

	fmt.Fprintf(ctx.Stdout, "sent %d bytes, received %d bytes\n", sent, n)
	return nil
}

type AgentCheckCmd struct {
	AgentFlags
}

const (
	agentcRequestIdentities = 11
	agentIdentitiesAnswer   = 12
	agentFailure            = 5
)

var errShortReply = errors.New("agent closed the connection before replying")

// Run sends a bare identities request using the raw socket primitives and
// reports the size and type of the reply.
func (c *AgentCheckCmd) Run(ctx *Context) error {
	logger := slog.With("socket", c.Socket)

	h, err := authsock.Open(c.Socket)
	if err != nil {
		return err
	}
	defer authsock.Close(h)

	req := []byte{0, 0, 0, 1, agentcRequestIdentities}
	sent, err := authsock.WriteFull(h, req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	logger.Debug("request sent", "bytes", sent)

	// A reply is a 4-byte big-endian length followed by the message.
	buf := make([]byte, 64)
	var got int
	for got < 5 {
		n, err := authsock.Read(h, buf[got:], len(buf)-got)
		if err != nil {
			return fmt.Errorf("reading reply: %w", err)
		}
		if n == 0 {
			return errShortReply
		}
		got += n
	}

	length := binary.BigEndian.Uint32(buf[:4])
	typ := buf[4]
	logger.Debug("reply received", "bytes", got, "length", length, "type", typ)

	switch typ {
	case agentIdentitiesAnswer:
		fmt.Fprintf(ctx.Stdout, "agent at %s is alive (%d byte reply)\n", c.Socket, length+4)
	case agentFailure:
		fmt.Fprintf(ctx.Stdout, "agent at %s answered with a failure\n", c.Socket)
	default:
		return fmt.Errorf("unexpected reply type %d from %s", typ, c.Socket)
	}
	return nil
}
