//go:build unix
// +build unix

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"
)

var cli struct {
	LogLevel slog.Level `default:"info" env:"AGENTTERM_LOG_LEVEL" help:"log level (debug, info, warn, error)"`

	Size  SizeCmd  `cmd:"" help:"print the size of the terminal on stdout"`
	Agent AgentCmd `cmd:"" help:"talk to the ssh agent"`
	Serve ServeCmd `cmd:"" help:"run a permissive ssh server"`
}

// Context is bound to every command's Run method.
type Context struct {
	context.Context
	Stdout io.Writer
}

func setupLogging(level slog.Level) {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}),
	))
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("agentterm"),
		kong.Description("Terminal and ssh-agent socket utilities."),
		kong.UsageOnError(),
	)
	setupLogging(cli.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := kctx.Run(&Context{Context: ctx, Stdout: os.Stdout})
	if err != nil {
		slog.Error(kctx.Command(), "error", err)
		stop()
		os.Exit(1)
	}
}
