// Package cli builds the command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kapitanov/chip8vm/internal/config"
	"github.com/kapitanov/chip8vm/internal/emulator"
	"github.com/kapitanov/chip8vm/internal/rom"
	"github.com/kapitanov/chip8vm/internal/vm"
	"github.com/spf13/cobra"
)

const addressSpace = 0x10000

// Backend is a HAL that owns host resources.
type Backend interface {
	emulator.HAL
	Shutdown()
}

type BackendFactory func(opts config.Options) (Backend, error)

// Execute runs cmd with args and returns the process exit code. A failure is
// reported on stderr, after every backend has been shut down.
func Execute(cmd *cobra.Command, args []string, stderr io.Writer) int {
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		slog.New(slog.NewTextHandler(stderr, nil)).Error("fatal error", "err", err)
		return 1
	}
	return 0
}

func NewRootCommand(ctx context.Context, newBackend BackendFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:           fmt.Sprintf("%s [PATH_TO_ROM_FILE]", filepath.Base(os.Args[0])),
		Short:         "Run emulator",
		Long:          "Run a CHIP-8 program. Without a ROM path a file dialog asks for one.",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	opts := config.Default()
	opts.Bind(cmd.Flags())

	cmd.RunE = func(_ *cobra.Command, args []string) error {
		if err := opts.Validate(); err != nil {
			return err
		}

		logOutput, closeLog, err := opts.LogOutput()
		if err != nil {
			return err
		}
		defer closeLog()
		slog.SetDefault(config.NewLogger(logOutput, opts.Verbose))

		path, err := romPath(args)
		if err == nil {
			err = run(ctx, opts, path, newBackend)
		}
		if err != nil && opts.LogFile != "" {
			slog.Error("fatal error", "err", err)
		}
		return err
	}

	cmd.AddCommand(NewDisasmCommand())
	return cmd
}

func romPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	path, err := rom.Pick()
	if err != nil {
		return "", err
	}
	slog.Info("picked rom", "path", path)
	return path, nil
}

func run(ctx context.Context, opts config.Options, path string, newBackend BackendFactory) error {
	program, err := rom.Read(path)
	if err != nil {
		return err
	}

	machine := vm.New(vm.WithQuirks(opts.Quirks()))
	if err := machine.Load(program); err != nil {
		return fmt.Errorf("unable to load program %q: %w", path, err)
	}

	h, err := newBackend(opts)
	if err != nil {
		return fmt.Errorf("unable to initialize hal: %w", err)
	}
	defer h.Shutdown()

	err = emulator.New(machine, h, opts.Emulator()).Run(ctx)
	switch {
	case errors.Is(err, emulator.ErrQuit):
		return nil
	case errors.Is(err, context.Canceled):
		slog.Info("interrupted")
		return nil
	default:
		return err
	}
}

func NewDisasmCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disasm PATH_TO_ROM_FILE",
		Short: "Print a program listing",
		Args:  cobra.ExactArgs(1),
	}

	origin := cmd.Flags().Uint16("origin", vm.ProgramStart, "address of the first byte")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		program, err := rom.Read(args[0])
		if err != nil {
			return err
		}

		if int(*origin)+len(program) > addressSpace {
			return fmt.Errorf("origin 0x%04x: %d bytes do not fit below 0x%x", *origin, len(program), addressSpace)
		}

		return printListing(cmd.OutOrStdout(), vm.Listing(program, *origin))
	}
	return cmd
}

func printListing(w io.Writer, lines []vm.Line) error {
	for _, line := range lines {
		text := line.Text
		if !line.Known {
			text = "; " + text
		}

		if _, err := fmt.Fprintf(w, "0x%04x  %04X  %s\n", line.Addr, line.Opcode, text); err != nil {
			return err
		}
	}
	return nil
}
