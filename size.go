//go:build unix
// +build unix

package main

import (
	"fmt"
	"os"

	"snai.pe/agentterm/term"
)

type SizeCmd struct {
	Watch bool `short:"w" help:"keep printing the size whenever the terminal is resized"`
}

func (c *SizeCmd) Run(ctx *Context) error {
	if !c.Watch {
		sz, err := term.SizeOf(os.Stdout)
		if err != nil {
			return err
		}
		printSize(ctx, sz)
		return nil
	}

	if !term.IsTerminal(os.Stdout) {
		return fmt.Errorf("%s: %w", os.Stdout.Name(), term.ErrNotTerminal)
	}
	for sz := range term.Watch(ctx, os.Stdout) {
		printSize(ctx, sz)
	}
	return nil
}

func printSize(ctx *Context, sz term.Size) {
	fmt.Fprintf(ctx.Stdout, "width: %d\nheight: %d\n", sz.Width, sz.Height)
}
