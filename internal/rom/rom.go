package rom

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/kapitanov/chip8vm/internal/vm"
	"github.com/sqweek/dialog"
)

var ErrNoROM = errors.New("no rom selected")

// Read loads a program image from path and checks that it fits the machine.
func Read(path string) ([]byte, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load file %q: %w", path, err)
	}

	if err := vm.ValidateProgram(bs); err != nil {
		return nil, fmt.Errorf("unable to load file %q: %w", path, err)
	}

	slog.Debug("rom: read", "path", path, "n", len(bs))
	return bs, nil
}

// Pick asks the user for a ROM file with a native file dialog.
func Pick() (string, error) {
	path, err := dialog.File().
		Filter("CHIP-8 ROM", "ch8", "c8").
		Title("Open CHIP-8 ROM").
		Load()
	if errors.Is(err, dialog.ErrCancelled) {
		return "", ErrNoROM
	}
	if err != nil {
		return "", fmt.Errorf("unable to show file dialog: %w", err)
	}
	return path, nil
}
