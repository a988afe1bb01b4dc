// Package config holds the command line options and builds the logger.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kapitanov/chip8vm/internal/emulator"
	"github.com/kapitanov/chip8vm/internal/keymap"
	"github.com/kapitanov/chip8vm/internal/vm"
	"github.com/spf13/pflag"
)

const (
	BackendSDL  = "sdl"
	BackendTerm = "term"

	MinSpeed = 1
	MaxSpeed = 100000

	DefaultScale = 16
	MaxScale     = 64
)

type Options struct {
	Verbose bool
	Speed   int
	Backend string
	Keymap  string
	Scale   int
	LogFile string

	QuirkIndexOverflow bool
	QuirkShiftVY       bool
	QuirkLoadStore     bool
	QuirkLogicVF       bool
}

func Default() Options {
	return Options{
		Speed:   emulator.DefaultClockSpeed,
		Backend: BackendSDL,
		Keymap:  keymap.Qwerty.Name,
		Scale:   DefaultScale,
	}
}

// Bind registers the run options on flags, with o's current values as
// defaults.
func (o *Options) Bind(flags *pflag.FlagSet) {
	flags.BoolVarP(&o.Verbose, "verbose", "v", o.Verbose, "enable verbose logging")
	flags.IntVar(&o.Speed, "speed", o.Speed, "instructions per second")
	flags.StringVar(&o.Backend, "backend", o.Backend, "display backend (sdl, term)")
	flags.StringVar(&o.Keymap, "keymap", o.Keymap, "keyboard layout ("+strings.Join(keymap.Names(), ", ")+")")
	flags.IntVar(&o.Scale, "scale", o.Scale, "window pixels per CHIP-8 pixel (sdl backend)")
	flags.StringVar(&o.LogFile, "log-file", o.LogFile, "append logs to this file instead of stderr")

	flags.BoolVar(&o.QuirkIndexOverflow, "quirk-index-overflow", o.QuirkIndexOverflow, "FX1E sets VF when I overflows 0xFFF")
	flags.BoolVar(&o.QuirkShiftVY, "quirk-shift-vy", o.QuirkShiftVY, "8XY6/8XYE shift VY into VX")
	flags.BoolVar(&o.QuirkLoadStore, "quirk-load-store", o.QuirkLoadStore, "FX55/FX65 advance I past the last register")
	flags.BoolVar(&o.QuirkLogicVF, "quirk-logic-vf", o.QuirkLogicVF, "8XY1/8XY2/8XY3 reset VF")
}

func (o Options) Validate() error {
	if o.Speed < MinSpeed || o.Speed > MaxSpeed {
		return fmt.Errorf("speed %d is out of range %d..%d", o.Speed, MinSpeed, MaxSpeed)
	}

	switch o.Backend {
	case BackendSDL, BackendTerm:
	default:
		return fmt.Errorf("unsupported backend: %s. Valid options: %s, %s", o.Backend, BackendSDL, BackendTerm)
	}

	if _, err := keymap.Parse(o.Keymap); err != nil {
		return err
	}

	if o.Scale < 1 || o.Scale > MaxScale {
		return fmt.Errorf("scale %d is out of range 1..%d", o.Scale, MaxScale)
	}
	return nil
}

func (o Options) Quirks() vm.Quirks {
	return vm.Quirks{
		IndexOverflow:            o.QuirkIndexOverflow,
		ShiftUsesVY:              o.QuirkShiftVY,
		LoadStoreIncrementsIndex: o.QuirkLoadStore,
		LogicResetsFlag:          o.QuirkLogicVF,
	}
}

func (o Options) Layout() keymap.Layout {
	l, err := keymap.Parse(o.Keymap)
	if err != nil {
		return keymap.Qwerty
	}
	return l
}

func (o Options) Emulator() emulator.Config {
	return emulator.Config{
		ClockSpeed: o.Speed,
		TimerRate:  emulator.DefaultTimerRate,
	}
}

// LogOutput opens the log destination. The terminal backend owns the TTY, so
// without a log file its logs are dropped.
func (o Options) LogOutput() (io.Writer, func() error, error) {
	if o.LogFile != "" {
		f, err := os.OpenFile(o.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open log file %q: %w", o.LogFile, err)
		}
		return f, f.Close, nil
	}

	if o.Backend == BackendTerm {
		return io.Discard, func() error { return nil }, nil
	}
	return os.Stderr, func() error { return nil }, nil
}

func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	loggerOpts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if verbose {
		loggerOpts.Level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(w, loggerOpts))
}
