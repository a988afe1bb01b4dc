package emulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kapitanov/chip8vm/internal/vm"
)

const (
	DefaultClockSpeed = 700
	DefaultTimerRate  = 60

	minCyclePeriod = time.Millisecond
)

var (
	ErrReboot = errors.New("reboot")
	ErrQuit   = errors.New("quit")
)

// HAL is the host side of the machine: input, video and sound.
// ReadInput returns ErrQuit or ErrReboot to request those actions.
type HAL interface {
	ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error
	Draw(gfx []byte) error
	Sound(active bool) error
}

type Config struct {
	ClockSpeed int // instructions per second
	TimerRate  int // timer ticks and frames per second
}

// Emulator drives a VM against a HAL, running instructions at the clock
// speed and timers, input and video at the timer rate. All VM calls happen
// on the goroutine that called Run.
type Emulator struct {
	machine *vm.VM
	hal     HAL
	cfg     Config

	owed   time.Duration // clock time not yet spent on instructions
	looped bool

	keyDown func(vm.Key)
	keyUp   func(vm.Key)
}

func New(machine *vm.VM, hal HAL, cfg Config) *Emulator {
	if cfg.ClockSpeed <= 0 {
		cfg.ClockSpeed = DefaultClockSpeed
	}
	if cfg.TimerRate <= 0 {
		cfg.TimerRate = DefaultTimerRate
	}

	e := &Emulator{
		machine: machine,
		hal:     hal,
		cfg:     cfg,
	}
	e.keyDown = func(key vm.Key) {
		if err := machine.KeyDown(key); err != nil {
			slog.Warn("emulator: drop key press", "key", key.String(), "err", err)
		}
	}
	e.keyUp = func(key vm.Key) {
		if err := machine.KeyUp(key); err != nil {
			slog.Warn("emulator: drop key release", "key", key.String(), "err", err)
		}
	}
	return e
}

// Run executes the program until ctx is cancelled, the HAL asks to quit or
// the program fails. A reboot request restarts the program and keeps going.
func (e *Emulator) Run(ctx context.Context) error {
	cycles := time.NewTicker(e.cyclePeriod())
	defer cycles.Stop()

	frames := time.NewTicker(time.Second / time.Duration(e.cfg.TimerRate))
	defer frames.Stop()

	slog.Debug("emulator: start", "clock", e.cfg.ClockSpeed, "timers", e.cfg.TimerRate)

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case now := <-cycles.C:
			elapsed := now.Sub(last)
			last = now
			if err := e.runCycles(elapsed); err != nil {
				return err
			}

		case <-frames.C:
			err := e.runFrame()
			if errors.Is(err, ErrReboot) {
				if err = e.reboot(); err != nil {
					return err
				}
				last = time.Now()
				continue
			}
			if err != nil {
				return err
			}
		}
	}
}

func (e *Emulator) cyclePeriod() time.Duration {
	return max(time.Second/time.Duration(e.cfg.ClockSpeed), minCyclePeriod)
}

// maxBurst caps how many instructions one tick may run after a stall.
func (e *Emulator) maxBurst() int {
	return max(e.cfg.ClockSpeed/e.cfg.TimerRate, 1)
}

func (e *Emulator) runCycles(elapsed time.Duration) error {
	if e.looped {
		return nil
	}

	period := time.Second / time.Duration(e.cfg.ClockSpeed)
	e.owed += elapsed
	n := int(e.owed / period)
	if n > e.maxBurst() {
		n = e.maxBurst()
		e.owed = 0
	} else {
		e.owed -= time.Duration(n) * period
	}

	for i := 0; i < n; i++ {
		pc := e.machine.State().PC()
		status, err := e.machine.Step()
		if err != nil {
			return fmt.Errorf("step at 0x%04x: %w", pc, err)
		}

		switch status {
		case vm.AwaitingKey:
			// Keys only change on the frame tick.
			e.owed = 0
			return nil

		case vm.Looped:
			slog.Info("program looped", "pc", fmt.Sprintf("0x%04x", pc))
			e.looped = true
			return nil
		}
	}
	return nil
}

func (e *Emulator) runFrame() error {
	e.machine.TickTimers()

	if err := e.hal.Sound(e.machine.SoundActive()); err != nil {
		return err
	}

	if err := e.hal.ReadInput(e.keyDown, e.keyUp); err != nil {
		return err
	}

	if gfx, changed := e.machine.Frame(); changed {
		if err := e.hal.Draw(gfx); err != nil {
			return err
		}
	}

	return nil
}

func (e *Emulator) reboot() error {
	slog.Info("reboot")
	e.looped = false
	e.owed = 0
	if err := e.machine.Reset(); err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	return e.hal.Sound(false)
}
