package vm

import "fmt"

// State holds everything a running CHIP-8 program can observe: memory,
// registers, stack, timers, framebuffer and keypad.
//
// Every exported mutator keeps the machine state consistent and reports a
// violation as an error instead of clamping. State is not safe for
// concurrent use.
type State struct {
	memory    [MemorySize]uint8    // Memory (4k)
	registers [RegisterCount]uint8 // V registers (V0-VF)

	stack [StackSize]uint16 // Stack
	sp    int               // Stack pointer, number of used entries

	pc    uint16 // Program counter
	index uint16 // Index register

	delayTimer uint8 // Delay timer
	soundTimer uint8 // Sound timer

	gfx      [ScreenWidth * ScreenHeight]uint8 // Graphics buffer
	keypad   [KeyCount]bool                    // Keypad
	drawFlag bool                              // Indicates a draw has occurred
}

// NewState returns a zeroed state with the font sprites preloaded and the
// program counter at the program entry point.
func NewState() *State {
	s := &State{}
	s.reset()
	return s
}

func (s *State) reset() {
	*s = State{}
	copy(s.memory[FontStart:], chip8Font)
	s.pc = ProgramStart
	s.drawFlag = true
}

func (s *State) PC() uint16 {
	return s.pc
}

func (s *State) SetPC(pc uint16) {
	s.pc = pc
}

func (s *State) Index() uint16 {
	return s.index
}

func (s *State) SetIndex(i uint16) {
	s.index = i
}

func (s *State) Register(x int) (uint8, error) {
	if x < 0 || x >= RegisterCount {
		return 0, fmt.Errorf("read v%d: %w", x, ErrInvalidRegister)
	}
	return s.registers[x], nil
}

func (s *State) SetRegister(x int, value uint8) error {
	if x < 0 || x >= RegisterCount {
		return fmt.Errorf("write v%d: %w", x, ErrInvalidRegister)
	}
	s.registers[x] = value
	return nil
}

func (s *State) Registers() [RegisterCount]uint8 {
	return s.registers
}

func (s *State) Push(addr uint16) error {
	if s.sp >= StackSize {
		return fmt.Errorf("push 0x%04x at depth %d: %w", addr, s.sp, ErrStackOverflow)
	}
	s.stack[s.sp] = addr
	s.sp++
	return nil
}

func (s *State) Pop() (uint16, error) {
	if s.sp == 0 {
		return 0, ErrStackUnderflow
	}
	s.sp--
	return s.stack[s.sp], nil
}

func (s *State) StackDepth() int {
	return s.sp
}
