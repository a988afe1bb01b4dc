package hal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/kapitanov/chip8vm/internal/emulator"
	"github.com/kapitanov/chip8vm/internal/hal/hostio"
	"github.com/kapitanov/chip8vm/internal/keymap"
	"github.com/kapitanov/chip8vm/internal/vm"
	"github.com/nsf/termbox-go"
	"golang.org/x/term"
)

const (
	// Terminals send no key release, and the first auto repeat comes
	// after about half a second.
	keyHold = 600 * time.Millisecond

	speakerRate   = beep.SampleRate(44100)
	speakerVolume = 0.2
)

var ErrNoTerminal = errors.New("stdout is not a terminal")

// Terminal presents the machine in a text terminal, two pixels per cell.
type Terminal struct {
	layout keymap.Layout
	events chan termbox.Event
	holds  *hostio.Holds

	beeper *beep.Ctrl // nil without audio
}

var _ emulator.HAL = (*Terminal)(nil)

func NewTerminal(layout keymap.Layout) (*Terminal, error) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return nil, ErrNoTerminal
	}

	if err := termbox.Init(); err != nil {
		return nil, fmt.Errorf("failed to init termbox: %w", err)
	}
	termbox.SetInputMode(termbox.InputEsc)
	slog.Debug("hal: init terminal")

	h := &Terminal{
		layout: layout,
		events: make(chan termbox.Event, 64),
		holds:  hostio.NewHolds(keyHold),
	}
	go h.pollEvents()

	if err := h.openSpeaker(); err != nil {
		slog.Warn("hal: sound disabled", "err", err)
	}

	return h, nil
}

func (h *Terminal) pollEvents() {
	for {
		e := termbox.PollEvent()
		if e.Type == termbox.EventInterrupt {
			close(h.events)
			return
		}
		h.events <- e
	}
}

func (h *Terminal) openSpeaker() error {
	if err := speaker.Init(speakerRate, speakerRate.N(time.Second/20)); err != nil {
		return fmt.Errorf("failed to init speaker: %w", err)
	}

	tone := hostio.NewTone(int(speakerRate), toneHz)
	h.beeper = &beep.Ctrl{
		Streamer: beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
			tone.Stereo(samples, speakerVolume)
			return len(samples), true
		}),
		Paused: true,
	}
	speaker.Play(h.beeper)
	slog.Debug("hal: open speaker", "rate", int(speakerRate))
	return nil
}

func (h *Terminal) Shutdown() {
	if h.beeper != nil {
		speaker.Close()
	}

	termbox.Interrupt()
	for range h.events {
	}
	termbox.Close()
}

func (h *Terminal) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	now := time.Now()

	for {
		select {
		case e, ok := <-h.events:
			if !ok {
				return emulator.ErrQuit
			}
			if err := h.processEvent(e, now, keyDown); err != nil {
				return err
			}

		default:
			for _, key := range h.holds.Expire(now) {
				keyUp(key)
			}
			return nil
		}
	}
}

func (h *Terminal) processEvent(e termbox.Event, now time.Time, keyDown func(vm.Key)) error {
	switch e.Type {
	case termbox.EventError:
		return fmt.Errorf("terminal input: %w", e.Err)

	case termbox.EventResize:
		return termbox.Sync()

	case termbox.EventKey:
		switch e.Key {
		case termbox.KeyEsc, termbox.KeyCtrlC:
			slog.Debug("hal: exit requested")
			return emulator.ErrQuit
		case termbox.KeyBackspace, termbox.KeyBackspace2:
			h.holds.Reset()
			return emulator.ErrReboot
		}

		key, ok := h.layout.Lookup(e.Ch)
		if ok && h.holds.Press(key, now) {
			keyDown(key)
		}
	}
	return nil
}

func (h *Terminal) Draw(gfx []uint8) error {
	const (
		fg = termbox.ColorYellow
		bg = termbox.ColorBlack
	)

	if err := termbox.Clear(fg, bg); err != nil {
		return fmt.Errorf("failed to clear terminal: %w", err)
	}

	hostio.HalfBlocks(gfx, func(x, y int, r rune) {
		termbox.SetCell(x, y, r, fg, bg)
	})

	if err := termbox.Flush(); err != nil {
		return fmt.Errorf("failed to flush terminal: %w", err)
	}
	return nil
}

func (h *Terminal) Sound(active bool) error {
	if h.beeper == nil {
		return nil
	}

	speaker.Lock()
	h.beeper.Paused = !active
	speaker.Unlock()
	return nil
}
