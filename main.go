package main

import (
	"os"

	"github.com/kapitanov/chip8vm/internal/cli"
	"github.com/kapitanov/chip8vm/internal/config"
	"github.com/kapitanov/chip8vm/internal/hal"
	"github.com/retroenv/retrogolib/app"
)

func main() {
	ctx := app.Context()

	cmd := cli.NewRootCommand(ctx, newBackend)
	os.Exit(cli.Execute(cmd, os.Args[1:], os.Stderr))
}

func newBackend(opts config.Options) (cli.Backend, error) {
	if opts.Backend == config.BackendTerm {
		return hal.NewTerminal(opts.Layout())
	}
	return hal.NewSDL(opts.Layout(), opts.Scale)
}
