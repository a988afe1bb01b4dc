package vm

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/retroenv/retrogolib/assert"
)

// newTestVM returns a VM running the given instruction words.
func newTestVM(t *testing.T, program ...uint16) *VM {
	t.Helper()
	return newTestVMWithOptions(t, nil, program...)
}

func newTestVMWithOptions(t *testing.T, opts []Option, program ...uint16) *VM {
	t.Helper()

	image := make([]byte, 0, len(program)*2)
	for _, w := range program {
		image = append(image, uint8(w>>8), uint8(w))
	}

	machine := New(opts...)
	assert.NoError(t, machine.Load(image))
	return machine
}

func step(t *testing.T, machine *VM, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		status, err := machine.Step()
		assert.NoError(t, err)
		assert.Equal(t, Running, status)
	}
}

func reg(t *testing.T, machine *VM, x int) uint8 {
	t.Helper()
	v, err := machine.State().Register(x)
	assert.NoError(t, err)
	return v
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name    string
		program []uint16
		x       int
		want    uint8
		wantVF  uint8
	}{
		{name: "7XKK wraps without flag", program: []uint16{0x6AFF, 0x6F07, 0x7A02}, x: 0xA, want: 0x01, wantVF: 0x07},
		{name: "8XY4 carry", program: []uint16{0x61FF, 0x6202, 0x8124}, x: 1, want: 0x01, wantVF: 1},
		{name: "8XY4 no carry", program: []uint16{0x6110, 0x6220, 0x6F09, 0x8124}, x: 1, want: 0x30, wantVF: 0},
		{name: "8XY5 no borrow", program: []uint16{0x6110, 0x6201, 0x8125}, x: 1, want: 0x0F, wantVF: 1},
		{name: "8XY5 borrow", program: []uint16{0x6101, 0x6202, 0x8125}, x: 1, want: 0xFF, wantVF: 0},
		{name: "8XY5 equal", program: []uint16{0x6105, 0x6205, 0x8125}, x: 1, want: 0x00, wantVF: 1},
		{name: "8XY7 no borrow", program: []uint16{0x6101, 0x6210, 0x8127}, x: 1, want: 0x0F, wantVF: 1},
		{name: "8XY7 borrow", program: []uint16{0x6102, 0x6201, 0x8127}, x: 1, want: 0xFF, wantVF: 0},
		{name: "8XY6 shifts VX", program: []uint16{0x6105, 0x62F0, 0x8126}, x: 1, want: 0x02, wantVF: 1},
		{name: "8XYE shifts VX", program: []uint16{0x6181, 0x6201, 0x812E}, x: 1, want: 0x02, wantVF: 1},
		{name: "8XY0 assign", program: []uint16{0x6233, 0x8120}, x: 1, want: 0x33, wantVF: 0},
		{name: "8XY1 or", program: []uint16{0x610C, 0x6203, 0x6F05, 0x8121}, x: 1, want: 0x0F, wantVF: 5},
		{name: "8XY2 and", program: []uint16{0x610C, 0x6206, 0x8122}, x: 1, want: 0x04, wantVF: 0},
		{name: "8XY3 xor", program: []uint16{0x610C, 0x6206, 0x8123}, x: 1, want: 0x0A, wantVF: 0},
		// The flag wins over the result when X is VF.
		{name: "8XY4 into VF", program: []uint16{0x6FFF, 0x6102, 0x8F14}, x: 0xF, want: 1, wantVF: 1},
		{name: "8XY5 into VF", program: []uint16{0x6F01, 0x6102, 0x8F15}, x: 0xF, want: 0, wantVF: 0},
		{name: "8XY6 into VF", program: []uint16{0x6F02, 0x8F06}, x: 0xF, want: 0, wantVF: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := newTestVM(t, tt.program...)
			step(t, machine, len(tt.program))

			assert.Equal(t, tt.want, reg(t, machine, tt.x))
			assert.Equal(t, tt.wantVF, reg(t, machine, 0xF))
		})
	}
}

func TestQuirks(t *testing.T) {
	tests := []struct {
		name    string
		quirks  Quirks
		program []uint16
		x       int
		want    uint8
		wantVF  uint8
	}{
		{
			name:    "shift uses VY",
			quirks:  Quirks{ShiftUsesVY: true},
			program: []uint16{0x6100, 0x6203, 0x8126},
			x:       1, want: 0x01, wantVF: 1,
		},
		{
			name:    "shift left uses VY",
			quirks:  Quirks{ShiftUsesVY: true},
			program: []uint16{0x6100, 0x6240, 0x812E},
			x:       1, want: 0x80, wantVF: 0,
		},
		{
			name:    "logic resets flag",
			quirks:  Quirks{LogicResetsFlag: true},
			program: []uint16{0x6F01, 0x610C, 0x6203, 0x8121},
			x:       1, want: 0x0F, wantVF: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := newTestVMWithOptions(t, []Option{WithQuirks(tt.quirks)}, tt.program...)
			step(t, machine, len(tt.program))

			assert.Equal(t, tt.want, reg(t, machine, tt.x))
			assert.Equal(t, tt.wantVF, reg(t, machine, 0xF))
		})
	}
}

func TestIndexAdd(t *testing.T) {
	// I = 0xFFF, V0 = 2, VF = 7, I += V0
	program := []uint16{0xAFFF, 0x6002, 0x6F07, 0xF01E}

	t.Run("default leaves VF alone", func(t *testing.T) {
		machine := newTestVM(t, program...)
		step(t, machine, len(program))

		assert.Equal(t, uint16(0x1001), machine.State().Index())
		assert.Equal(t, uint8(7), reg(t, machine, 0xF))
	})

	t.Run("overflow quirk sets VF", func(t *testing.T) {
		machine := newTestVMWithOptions(t, []Option{WithQuirks(Quirks{IndexOverflow: true})}, program...)
		step(t, machine, len(program))

		assert.Equal(t, uint16(0x1001), machine.State().Index())
		assert.Equal(t, uint8(1), reg(t, machine, 0xF))
	})

	t.Run("overflow quirk clears VF", func(t *testing.T) {
		machine := newTestVMWithOptions(t, []Option{WithQuirks(Quirks{IndexOverflow: true})},
			0xA100, 0x6002, 0x6F07, 0xF01E)
		step(t, machine, 4)

		assert.Equal(t, uint16(0x102), machine.State().Index())
		assert.Equal(t, uint8(0), reg(t, machine, 0xF))
	})

	t.Run("index wraps at 16 bits", func(t *testing.T) {
		machine := newTestVM(t, 0x60FF, 0xF01E)
		machine.State().SetIndex(0xFFF0)
		step(t, machine, 2)

		assert.Equal(t, uint16(0x00EF), machine.State().Index())
	})
}

func TestClearScreen(t *testing.T) {
	// Draw the "0" glyph, then clear.
	machine := newTestVM(t, 0x6000, 0xF029, 0xD005, 0x00E0)
	step(t, machine, 3)

	gfx, changed := machine.Frame()
	assert.True(t, changed)
	assert.True(t, countLit(gfx) > 0)

	step(t, machine, 1)
	gfx, changed = machine.Frame()
	assert.True(t, changed)
	if diff := cmp.Diff(make([]byte, ScreenWidth*ScreenHeight), gfx); diff != "" {
		t.Errorf("framebuffer: (-want, +got)\n%s", diff)
	}

	_, changed = machine.Frame()
	assert.False(t, changed)
}

func TestCallReturn(t *testing.T) {
	for _, target := range []uint16{0x206, 0x300, 0xFFE} {
		machine := newTestVM(t, 0x2000|target)
		assert.NoError(t, machine.State().WriteBlock(int(target), []byte{0x00, 0xEE}))

		step(t, machine, 1)
		assert.Equal(t, target, machine.State().PC())
		assert.Equal(t, 1, machine.State().StackDepth())

		step(t, machine, 1)
		assert.Equal(t, ProgramStart+InstructionSize, machine.State().PC())
		assert.Equal(t, 0, machine.State().StackDepth())
	}
}

func TestStackLimits(t *testing.T) {
	t.Run("overflow", func(t *testing.T) {
		// 0x200: call 0x200 forever.
		machine := newTestVM(t, 0x2200)
		step(t, machine, StackSize)

		_, err := machine.Step()
		assert.True(t, errors.Is(err, ErrStackOverflow))
	})

	t.Run("underflow", func(t *testing.T) {
		machine := newTestVM(t, 0x00EE)
		_, err := machine.Step()
		assert.True(t, errors.Is(err, ErrStackUnderflow))
	})
}

func TestJumps(t *testing.T) {
	machine := newTestVM(t, 0x1208)
	step(t, machine, 1)
	assert.Equal(t, uint16(0x208), machine.State().PC())

	machine = newTestVM(t, 0x6010, 0xB300)
	step(t, machine, 2)
	assert.Equal(t, uint16(0x310), machine.State().PC())

	// NNN + V0 past the end of memory wraps to 12 bits.
	machine = newTestVM(t, 0x60FF, 0xBFFF)
	step(t, machine, 2)
	assert.Equal(t, uint16(0x0FE), machine.State().PC())
}

func TestSelfJump(t *testing.T) {
	machine := newTestVM(t, 0x6001, 0x1202)
	step(t, machine, 1)

	status, err := machine.Step()
	assert.NoError(t, err)
	assert.Equal(t, Looped, status)
	assert.Equal(t, uint16(0x202), machine.State().PC())
}

func TestSkips(t *testing.T) {
	tests := []struct {
		name    string
		setup   []uint16
		skip    uint16
		skipped bool
	}{
		{name: "3XKK equal", setup: []uint16{0x6142}, skip: 0x3142, skipped: true},
		{name: "3XKK not equal", setup: []uint16{0x6141}, skip: 0x3142},
		{name: "4XKK not equal", setup: []uint16{0x6141}, skip: 0x4142, skipped: true},
		{name: "4XKK equal", setup: []uint16{0x6142}, skip: 0x4142},
		{name: "5XY0 equal", setup: []uint16{0x6107, 0x6207}, skip: 0x5120, skipped: true},
		{name: "5XY0 not equal", setup: []uint16{0x6107, 0x6208}, skip: 0x5120},
		{name: "9XY0 not equal", setup: []uint16{0x6107, 0x6208}, skip: 0x9120, skipped: true},
		{name: "9XY0 equal", setup: []uint16{0x6107, 0x6207}, skip: 0x9120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := newTestVM(t, append(tt.setup, tt.skip)...)
			step(t, machine, len(tt.setup)+1)

			want := ProgramStart + uint16(len(tt.setup)+1)*InstructionSize
			if tt.skipped {
				want += InstructionSize
			}
			assert.Equal(t, want, machine.State().PC())
		})
	}
}

func TestKeySkips(t *testing.T) {
	tests := []struct {
		name    string
		vx      uint16
		opcode  uint16
		pressed bool
		skipped bool
	}{
		{name: "EX9E pressed", vx: 0x0B, opcode: 0xE19E, pressed: true, skipped: true},
		{name: "EX9E released", vx: 0x0B, opcode: 0xE19E},
		{name: "EXA1 pressed", vx: 0x0B, opcode: 0xE1A1, pressed: true},
		{name: "EXA1 released", vx: 0x0B, opcode: 0xE1A1, skipped: true},
		{name: "EX9E high nibble ignored", vx: 0xFB, opcode: 0xE19E, pressed: true, skipped: true},
		{name: "EXA1 high nibble ignored", vx: 0x1B, opcode: 0xE1A1, pressed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := newTestVM(t, 0x6100|tt.vx, tt.opcode)
			if tt.pressed {
				assert.NoError(t, machine.KeyDown(KeyB))
			}
			step(t, machine, 2)

			want := ProgramStart + 2*InstructionSize
			if tt.skipped {
				want += InstructionSize
			}
			assert.Equal(t, want, machine.State().PC())
		})
	}
}

func TestRandom(t *testing.T) {
	machine := newTestVMWithOptions(t, []Option{WithRand(rand.New(rand.NewPCG(1, 2)))},
		0xC00F, 0xC100)
	step(t, machine, 2)

	assert.Equal(t, uint8(0), reg(t, machine, 0)&0xF0)
	assert.Equal(t, uint8(0), reg(t, machine, 1))
}

func TestTimerOpcodes(t *testing.T) {
	machine := newTestVM(t, 0x6103, 0xF115, 0xF118, 0xF207)
	step(t, machine, 3)

	state := machine.State()
	assert.Equal(t, uint8(3), state.DelayTimer())
	assert.Equal(t, uint8(3), state.SoundTimer())
	assert.True(t, machine.SoundActive())

	machine.TickTimers()
	step(t, machine, 1)
	assert.Equal(t, uint8(2), reg(t, machine, 2))

	for i := 0; i < 5; i++ {
		machine.TickTimers()
	}
	assert.Equal(t, uint8(0), state.DelayTimer())
	assert.False(t, machine.SoundActive())
}

func TestFont(t *testing.T) {
	for d := uint8(0); d < 0x20; d++ {
		machine := newTestVM(t, 0x6000|uint16(d), 0xF029)
		step(t, machine, 2)
		assert.Equal(t, FontStart+uint16(d&0xF)*FontGlyphSize, machine.State().Index())
	}
}

func TestBCD(t *testing.T) {
	tests := []struct {
		value uint8
		want  []byte
	}{
		{value: 0, want: []byte{0, 0, 0}},
		{value: 7, want: []byte{0, 0, 7}},
		{value: 42, want: []byte{0, 4, 2}},
		{value: 255, want: []byte{2, 5, 5}},
	}

	for _, tt := range tests {
		machine := newTestVM(t, 0x6500|uint16(tt.value), 0xA300, 0xF533)
		step(t, machine, 3)

		got, err := machine.State().ReadBlock(0x300, 3)
		assert.NoError(t, err)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("bcd(%d): (-want, +got)\n%s", tt.value, diff)
		}
		assert.Equal(t, uint16(0x300), machine.State().Index())
	}

	machine := newTestVM(t, 0xAFFE, 0xF033)
	step(t, machine, 1)
	_, err := machine.Step()
	assert.True(t, errors.Is(err, ErrAddressOutOfRange))
}

func TestStoreLoad(t *testing.T) {
	program := []uint16{0x6011, 0x6122, 0x6233, 0xA400, 0xF255, 0x6000, 0x6100, 0x6200, 0xF165}

	t.Run("index unchanged", func(t *testing.T) {
		machine := newTestVM(t, program...)
		step(t, machine, len(program))

		mem, err := machine.State().ReadBlock(0x400, 4)
		assert.NoError(t, err)
		if diff := cmp.Diff([]byte{0x11, 0x22, 0x33, 0x00}, mem); diff != "" {
			t.Errorf("memory: (-want, +got)\n%s", diff)
		}
		assert.Equal(t, uint8(0x11), reg(t, machine, 0))
		assert.Equal(t, uint8(0x22), reg(t, machine, 1))
		assert.Equal(t, uint8(0x00), reg(t, machine, 2))
		assert.Equal(t, uint16(0x400), machine.State().Index())
	})

	t.Run("index incremented", func(t *testing.T) {
		machine := newTestVMWithOptions(t, []Option{WithQuirks(Quirks{LoadStoreIncrementsIndex: true})}, program...)
		step(t, machine, 5)
		assert.Equal(t, uint16(0x403), machine.State().Index())

		step(t, machine, 4)
		assert.Equal(t, uint16(0x405), machine.State().Index())
		assert.Equal(t, uint8(0x00), reg(t, machine, 0))
	})

	t.Run("out of range", func(t *testing.T) {
		machine := newTestVM(t, 0xAFFF, 0xF155)
		step(t, machine, 1)
		_, err := machine.Step()
		assert.True(t, errors.Is(err, ErrAddressOutOfRange))

		machine = newTestVM(t, 0xAFFF, 0xF165)
		step(t, machine, 1)
		_, err = machine.Step()
		assert.True(t, errors.Is(err, ErrAddressOutOfRange))
	})
}

func TestDecodeErrors(t *testing.T) {
	for _, opcode := range []uint16{0x0000, 0x0123, 0x00E1, 0x5121, 0x8128, 0x812F, 0x9121, 0xE19F, 0xF1FF, 0xF130} {
		machine := newTestVM(t, 0x6000, opcode)
		step(t, machine, 1)

		_, err := machine.Step()
		assert.True(t, errors.Is(err, ErrUnknownOpcode))

		var decodeErr *DecodeError
		assert.True(t, errors.As(err, &decodeErr))
		assert.Equal(t, opcode, decodeErr.Opcode)
		assert.Equal(t, ProgramStart+InstructionSize, decodeErr.PC)
	}
}

func TestFetchError(t *testing.T) {
	machine := newTestVM(t, 0x1FFF)
	step(t, machine, 1)

	_, err := machine.Step()
	assert.True(t, errors.Is(err, ErrAddressOutOfRange))

	var fetchErr *FetchError
	assert.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, uint16(0xFFF), fetchErr.PC)
	assert.Equal(t, uint16(0xFFF), machine.State().PC())
}

func TestReset(t *testing.T) {
	machine := newTestVM(t, 0x6A01, 0xA123, 0x2300)
	step(t, machine, 3)

	assert.NoError(t, machine.Reset())
	state := machine.State()
	assert.Equal(t, ProgramStart, state.PC())
	assert.Equal(t, uint16(0), state.Index())
	assert.Equal(t, 0, state.StackDepth())
	assert.Equal(t, uint8(0), reg(t, machine, 0xA))

	v, err := state.ReadByte(int(ProgramStart))
	assert.NoError(t, err)
	assert.Equal(t, uint8(0x6A), v)
}

func TestSprite(t *testing.T) {
	// Draw the "0" glyph at (62, 30) twice.
	machine := newTestVM(t, 0x603E, 0x611E, 0x6200, 0xF229, 0xD015, 0xD015)
	step(t, machine, 5)

	state := machine.State()
	assert.Equal(t, uint8(0), reg(t, machine, 0xF))
	assert.Equal(t, uint8(1), state.Pixel(62, 30))
	assert.Equal(t, uint8(1), state.Pixel(1, 30))  // wrapped horizontally
	assert.Equal(t, uint8(1), state.Pixel(62, 2))  // wrapped vertically
	assert.Equal(t, uint8(0), state.Pixel(63, 31)) // hollow row

	gfx, _ := machine.Frame()
	assert.Equal(t, 14, countLit(gfx))

	step(t, machine, 1)
	assert.Equal(t, uint8(1), reg(t, machine, 0xF))
	gfx, changed := machine.Frame()
	assert.True(t, changed)
	assert.Equal(t, 0, countLit(gfx))
}

func TestSpriteOutOfRange(t *testing.T) {
	machine := newTestVM(t, 0xAFFE, 0xD003)
	step(t, machine, 1)

	_, err := machine.Step()
	assert.True(t, errors.Is(err, ErrAddressOutOfRange))
}

func TestWaitKey(t *testing.T) {
	machine := newTestVM(t, 0xF30A, 0x6001)

	// A key held before the wait does not satisfy it.
	assert.NoError(t, machine.KeyDown(Key5))

	for i := 0; i < 3; i++ {
		status, err := machine.Step()
		assert.NoError(t, err)
		assert.Equal(t, AwaitingKey, status)
		assert.Equal(t, ProgramStart, machine.State().PC())
	}

	assert.NoError(t, machine.KeyDown(Key5))
	status, err := machine.Step()
	assert.NoError(t, err)
	assert.Equal(t, AwaitingKey, status)

	assert.NoError(t, machine.KeyDown(Key9))
	assert.NoError(t, machine.KeyUp(Key9))
	assert.NoError(t, machine.KeyDown(KeyC))

	step(t, machine, 1)
	assert.Equal(t, uint8(Key9), reg(t, machine, 3))
	assert.Equal(t, ProgramStart+InstructionSize, machine.State().PC())

	step(t, machine, 1)
	assert.Equal(t, uint8(1), reg(t, machine, 0))
}

func TestWaitKeyTimersRun(t *testing.T) {
	machine := newTestVM(t, 0x6005, 0xF015, 0xF10A)
	step(t, machine, 2)

	status, err := machine.Step()
	assert.NoError(t, err)
	assert.Equal(t, AwaitingKey, status)

	machine.TickTimers()
	machine.TickTimers()
	assert.Equal(t, uint8(3), machine.State().DelayTimer())
}

func countLit(gfx []byte) int {
	n := 0
	for _, p := range gfx {
		n += int(p)
	}
	return n
}
