package hal

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/kapitanov/chip8vm/internal/emulator"
	"github.com/kapitanov/chip8vm/internal/hal/hostio"
	"github.com/kapitanov/chip8vm/internal/keymap"
	"github.com/kapitanov/chip8vm/internal/vm"
	"github.com/veandco/go-sdl2/sdl"
)

const (
	bgColor = uint32(0x000000)
	fgColor = uint32(0xbea700)

	sampleRate = 22050
	toneHz     = 440
)

// SDL presents the machine in an SDL window.
type SDL struct {
	window          *sdl.Window
	renderer        *sdl.Renderer
	texture         *sdl.Texture
	backBuffer      []uint32
	backBufferPitch int

	layout keymap.Layout

	audio   sdl.AudioDeviceID
	tone    []byte // one frame of square wave
	beeping bool
}

var _ emulator.HAL = (*SDL)(nil)

func NewSDL(layout keymap.Layout, scale int) (*SDL, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS | sdl.INIT_AUDIO); err != nil {
		return nil, fmt.Errorf("failed to init sdl: %w", err)
	}

	width, height := int32(vm.ScreenWidth*scale), int32(vm.ScreenHeight*scale)
	window, err := sdl.CreateWindow("CHIP-8", sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, width, height, sdl.WINDOW_SHOWN)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("failed to create sdl window: %w", err)
	}
	slog.Debug("hal: create window", "width", width, "height", height)

	h := &SDL{
		window:          window,
		layout:          layout,
		backBuffer:      make([]uint32, vm.ScreenWidth*vm.ScreenHeight),
		backBufferPitch: int(vm.ScreenWidth) * int(unsafe.Sizeof(uint32(0))),
	}

	h.renderer, err = sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		h.Shutdown()
		return nil, fmt.Errorf("failed to create sdl renderer: %w", err)
	}
	if err = h.renderer.SetLogicalSize(width, height); err != nil {
		h.Shutdown()
		return nil, fmt.Errorf("failed to resize sdl renderer: %w", err)
	}
	slog.Debug("hal: create renderer")

	h.texture, err = h.renderer.CreateTexture(sdl.PIXELFORMAT_ARGB8888, sdl.TEXTUREACCESS_STREAMING, vm.ScreenWidth, vm.ScreenHeight)
	if err != nil {
		h.Shutdown()
		return nil, fmt.Errorf("failed to create sdl texture: %w", err)
	}
	slog.Debug("hal: create texture")

	if err = h.openAudio(); err != nil {
		slog.Warn("hal: sound disabled", "err", err)
	}

	return h, nil
}

func (h *SDL) openAudio() error {
	spec := &sdl.AudioSpec{
		Freq:     sampleRate,
		Format:   sdl.AUDIO_U8,
		Channels: 1,
		Samples:  512,
	}

	dev, err := sdl.OpenAudioDevice("", false, spec, nil, 0)
	if err != nil {
		return fmt.Errorf("failed to open sdl audio device: %w", err)
	}
	slog.Debug("hal: open audio", "device", dev)

	h.audio = dev
	h.tone = hostio.NewTone(sampleRate, toneHz).U8(sampleRate/emulator.DefaultTimerRate, 0x20)
	return nil
}

func (h *SDL) Shutdown() {
	if h.audio != 0 {
		sdl.CloseAudioDevice(h.audio)
	}

	if h.texture != nil {
		if err := h.texture.Destroy(); err != nil {
			slog.Error("failed to destroy sdl texture", "err", err)
		}
	}

	if h.renderer != nil {
		if err := h.renderer.Destroy(); err != nil {
			slog.Error("failed to destroy sdl renderer", "err", err)
		}
	}

	if err := h.window.Destroy(); err != nil {
		slog.Error("failed to destroy sdl window", "err", err)
	}

	sdl.Quit()
}

func (h *SDL) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	for e := sdl.PollEvent(); e != nil; e = sdl.PollEvent() {
		switch e.GetType() {
		case sdl.QUIT:
			slog.Debug("hal: exit requested")
			return emulator.ErrQuit

		case sdl.KEYDOWN:
			err := h.processKeyDown(e.(*sdl.KeyboardEvent), keyDown)
			if err != nil {
				return err
			}

		case sdl.KEYUP:
			h.processKeyUp(e.(*sdl.KeyboardEvent), keyUp)
		}
	}

	return nil
}

func (h *SDL) processKeyDown(e *sdl.KeyboardEvent, callback func(vm.Key)) error {
	switch e.Keysym.Scancode {
	case sdl.SCANCODE_ESCAPE:
		slog.Debug("hal: exit requested")
		return emulator.ErrQuit
	case sdl.SCANCODE_BACKSPACE:
		return emulator.ErrReboot
	}

	if e.Repeat != 0 {
		return nil
	}

	key, ok := h.layout.Lookup(rune(e.Keysym.Sym))
	if ok {
		callback(key)
	}

	return nil
}

func (h *SDL) processKeyUp(e *sdl.KeyboardEvent, callback func(vm.Key)) {
	key, ok := h.layout.Lookup(rune(e.Keysym.Sym))
	if ok {
		callback(key)
	}
}

func (h *SDL) Draw(gfx []uint8) error {
	for i, p := range gfx {
		color := bgColor
		if p != 0 {
			color = fgColor
		}

		h.backBuffer[i] = color
	}

	backBufferPtr := unsafe.Pointer(&h.backBuffer[0])
	if err := h.texture.Update(nil, backBufferPtr, h.backBufferPitch); err != nil {
		return fmt.Errorf("failed to update sdl texture: %w", err)
	}

	if err := h.renderer.Clear(); err != nil {
		return fmt.Errorf("failed to clear sdl renderer: %w", err)
	}

	if err := h.renderer.Copy(h.texture, nil, nil); err != nil {
		return fmt.Errorf("failed to copy sdl texture to renderer: %w", err)
	}

	h.renderer.Present()
	return nil
}

// Sound keeps about two frames of tone queued while active.
func (h *SDL) Sound(active bool) error {
	if h.audio == 0 {
		return nil
	}

	if !active {
		if h.beeping {
			sdl.PauseAudioDevice(h.audio, true)
			sdl.ClearQueuedAudio(h.audio)
			h.beeping = false
		}
		return nil
	}

	if sdl.GetQueuedAudioSize(h.audio) < uint32(2*len(h.tone)) {
		if err := sdl.QueueAudio(h.audio, h.tone); err != nil {
			return fmt.Errorf("failed to queue sdl audio: %w", err)
		}
	}

	if !h.beeping {
		sdl.PauseAudioDevice(h.audio, false)
		h.beeping = true
	}
	return nil
}
