//go:build unix
// +build unix

package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/gliderlabs/ssh"
	"github.com/google/shlex"
	"github.com/pkg/sftp"
	"golang.org/x/text/encoding/unicode"

	"snai.pe/agentterm/authsock"
	"snai.pe/agentterm/term"
)

var windowsUTF16 = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

type ServeCmd struct {
	Chdir   string   `help:"set current work directory"`
	NoEnv   bool     `help:"do not inherit current environment"`
	Env     []string `help:"set extra environment variable"`
	Bind    string   `default:":2222" help:"address to bind the server to"`
	Shell   string   `default:"sh" help:"shell command to execute"`
	HostKey string   `type:"existingfile" help:"PEM host key file (generated at startup if unset)"`
	NoAgent bool     `help:"refuse ssh agent forwarding"`
}

func (c *ServeCmd) Run(ctx *Context) error {
	l, err := net.Listen("tcp", c.Bind)
	if err != nil {
		return err
	}
	return c.serve(ctx, l)
}

// newServer returns a server accepting any credentials, with port
// forwarding and the sftp subsystem enabled.
func (c *ServeCmd) newServer() (*ssh.Server, error) {
	var forwardHandler ssh.ForwardedTCPHandler
	allowForward := func(ssh.Context, string, uint32) bool { return true }

	server := &ssh.Server{
		Addr:                          c.Bind,
		Handler:                       c.handleShell,
		SubsystemHandlers:             map[string]ssh.SubsystemHandler{"sftp": c.handleSftp},
		LocalPortForwardingCallback:   allowForward,
		ReversePortForwardingCallback: allowForward,
		RequestHandlers: map[string]ssh.RequestHandler{
			"tcpip-forward":        forwardHandler.HandleSSHRequest,
			"cancel-tcpip-forward": forwardHandler.HandleSSHRequest,
		},
		PublicKeyHandler: func(ssh.Context, ssh.PublicKey) bool { return true },
		PasswordHandler:  func(ssh.Context, string) bool { return true },
	}

	if c.HostKey != "" {
		if err := server.SetOption(ssh.HostKeyFile(c.HostKey)); err != nil {
			return nil, fmt.Errorf("loading host key: %w", err)
		}
	}
	return server, nil
}

// serve accepts connections on l until ctx is done.
func (c *ServeCmd) serve(ctx context.Context, l net.Listener) error {
	server, err := c.newServer()
	if err != nil {
		l.Close()
		return err
	}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	slog.Info("starting ssh server", "address", l.Addr())

	err = server.Serve(l)
	slog.Info("stopping ssh server", "error", err)
	if errors.Is(err, ssh.ErrServerClosed) {
		return nil
	}
	return err
}

// shellArgs builds the argv running rawcmd with the configured shell, or
// the interactive shell itself when rawcmd is empty.
func (c *ServeCmd) shellArgs(rawcmd string) ([]string, error) {
	words, err := shlex.Split(c.Shell)
	if err != nil {
		return nil, fmt.Errorf("splitting shell command: %w", err)
	}
	if len(words) == 0 {
		return nil, errors.New("empty shell command")
	}
	if rawcmd == "" {
		return words, nil
	}

	switch c.Shell {
	case "sh", "bash", "zsh", "ash", "dash", "fish":
		return []string{c.Shell, "-c", rawcmd}, nil
	case "powershell", "pwsh":
		utfenc, err := windowsUTF16.NewEncoder().String(rawcmd)
		if err != nil {
			return nil, fmt.Errorf("encoding command to utf16le: %w", err)
		}
		return []string{c.Shell, "-EncodedCommand", base64.StdEncoding.EncodeToString([]byte(utfenc))}, nil
	}
	return append(words, rawcmd), nil
}

// forwardAgent exposes the client's agent on a local socket and returns its
// path. The socket and its directory are removed by the returned cleanup.
func forwardAgent(s ssh.Session, logger *slog.Logger) (string, func(), error) {
	l, err := ssh.NewAgentListener()
	if err != nil {
		return "", nil, err
	}
	sock := l.Addr().String()
	cleanup := func() {
		l.Close()
		os.RemoveAll(filepath.Dir(sock))
	}

	go ssh.ForwardAgentConnections(l, s)
	go probeAgent(logger, sock)

	return sock, cleanup, nil
}

// probeAgent logs how many identities the forwarded agent offers.
func probeAgent(logger *slog.Logger, sock string) {
	keys, err := authsock.ListKeys(sock)
	if err != nil {
		logger.Warn("probing forwarded agent", "socket", sock, "error", err)
		return
	}
	logger.Info("agent forwarded", "socket", sock, "keys", len(keys))
}

// failSession reports err to the client and ends the session.
func failSession(s ssh.Session, format string, err error) {
	fmt.Fprintf(s, format+": %v\n", err)
	s.Exit(127)
}

func (c *ServeCmd) handleShell(s ssh.Session) {
	logger := slog.With("client", s.RemoteAddr(), "subsystem", "shell")

	args, err := c.shellArgs(s.RawCommand())
	if err != nil {
		logger.Error("building command", "shell", c.Shell, "error", err)
		failSession(s, "failed to construct shell command", err)
		return
	}

	cmd := exec.CommandContext(s.Context(), args[0], args[1:]...)
	if !c.NoEnv {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, s.Environ()...)
	cmd.Env = append(cmd.Env, c.Env...)
	cmd.Dir = c.Chdir

	if !c.NoAgent && ssh.AgentRequested(s) {
		sock, cleanup, err := forwardAgent(s, logger)
		if err != nil {
			logger.Error("forwarding agent", "error", err)
		} else {
			defer cleanup()
			cmd.Env = append(cmd.Env, authsock.EnvAuthSock+"="+sock)
		}
	}

	logger.Info("start", "command", cmd.Args)

	signals := make(chan ssh.Signal, 1)
	s.Signals(signals)
	defer s.Signals(nil)

	if ptyReq, winCh, isPty := s.Pty(); isPty {
		cmd.Env = append(cmd.Env, "TERM="+ptyReq.Term)
		p, err := StartPTY(cmd, term.Size{Width: ptyReq.Window.Width, Height: ptyReq.Window.Height})
		if err != nil {
			failSession(s, "cannot start program", err)
			return
		}
		defer p.Close()

		go resizeOnWindowChange(logger, p, winCh)
		go io.Copy(p, s)
		go io.Copy(s, p)
	} else {
		// Feed stdin through a pipe so Wait does not hang on a client
		// that never sends a full line after the program exited.
		stdin, err := cmd.StdinPipe()
		if err != nil {
			failSession(s, "failed to set up program stdin", err)
			return
		}
		cmd.Stdout = s
		cmd.Stderr = s
		if err := cmd.Start(); err != nil {
			failSession(s, "cannot start program", err)
			return
		}
		go io.Copy(stdin, s)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	for {
		select {
		case err := <-waitErr:
			logger.Info("exit", "status", cmd.ProcessState.String(), "error", err)
			s.Exit(cmd.ProcessState.ExitCode())
			return
		case name := <-signals:
			if sig, ok := processSignal(name); ok {
				cmd.Process.Signal(sig)
			} else {
				logger.Warn("ignoring unknown signal", "signal", name)
			}
		}
	}
}

func resizeOnWindowChange(logger *slog.Logger, p PTY, winCh <-chan ssh.Window) {
	for win := range winCh {
		size := term.Size{Width: win.Width, Height: win.Height}
		if err := p.Resize(size); err != nil {
			logger.Warn("resizing pty", "size", size, "error", err)
			continue
		}
		logger.Debug("resized pty", "size", size)
	}
}

func (c *ServeCmd) handleSftp(s ssh.Session) {
	logger := slog.With("client", s.RemoteAddr(), "subsystem", "sftp")

	var opts []sftp.ServerOption
	if c.Chdir != "" {
		opts = append(opts, sftp.WithServerWorkingDirectory(c.Chdir))
	}

	server, err := sftp.NewServer(s, opts...)
	if err != nil {
		logger.Error("starting sftp server", "error", err)
		return
	}
	defer server.Close()

	switch err := server.Serve(); {
	case errors.Is(err, io.EOF):
		logger.Info("client disconnected")
	case err != nil:
		logger.Error("serve", "error", err)
	}
}
