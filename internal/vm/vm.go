package vm

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
)

const (
	MemorySize    = 4096
	StackSize     = 16
	RegisterCount = 16
	ScreenWidth   = 64
	ScreenHeight  = 32
	KeyCount      = 16

	ProgramStart    = uint16(0x200)
	FontStart       = uint16(0x50)
	FontGlyphSize   = 5
	MaxProgramSize  = MemorySize - int(ProgramStart)
	InstructionSize = 2
)

// Status describes what the interpreter is doing after a Step.
type Status int

const (
	// Running means the instruction completed and the next one can run.
	Running Status = iota
	// AwaitingKey means FX0A is waiting for a key press; the program
	// counter still points at the FX0A instruction.
	AwaitingKey
	// Looped means the program jumped to its own address and can make no
	// further progress.
	Looped
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case AwaitingKey:
		return "awaiting key"
	case Looped:
		return "looped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Quirks select between behaviours that differ across CHIP-8 interpreters.
// The zero value is the behaviour most modern programs expect.
type Quirks struct {
	IndexOverflow            bool // FX1E sets VF when I+VX leaves 0x000-0xFFF
	ShiftUsesVY              bool // 8XY6/8XYE shift VY into VX
	LoadStoreIncrementsIndex bool // FX55/FX65 leave I = I+X+1
	LogicResetsFlag          bool // 8XY1/8XY2/8XY3 clear VF
}

// VM is the CHIP-8 interpreter. It owns a State exclusively and is not safe
// for concurrent use.
type VM struct {
	state   *State
	quirks  Quirks
	rand    *rand.Rand
	program []byte

	waitingKey bool // FX0A is armed
	keyLatched bool // a key was pressed while FX0A was armed
	latchedKey Key
}

type Option func(*VM)

// WithQuirks selects interpreter quirks.
func WithQuirks(q Quirks) Option {
	return func(vm *VM) {
		vm.quirks = q
	}
}

// WithRand sets the random source used by CXKK.
func WithRand(r *rand.Rand) Option {
	return func(vm *VM) {
		vm.rand = r
	}
}

// New returns a VM with the font loaded and no program.
func New(opts ...Option) *VM {
	vm := &VM{
		state: NewState(),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

var (
	errInfiniteLoop = errors.New("infinite loop")
	errAwaitingKey  = errors.New("awaiting key")
)

// Load validates a program image and resets the machine with it.
func (vm *VM) Load(program []byte) error {
	if err := ValidateProgram(program); err != nil {
		return err
	}

	vm.program = slices.Clone(program)
	return vm.Reset()
}

// Reset restores the state the machine had right after Load.
func (vm *VM) Reset() error {
	vm.state.reset()
	vm.waitingKey = false
	vm.keyLatched = false

	slog.Debug("load font", "at", fmt.Sprintf("0x%04x", FontStart), "n", len(chip8Font))

	if vm.program == nil {
		return nil
	}

	slog.Info("load program", "at", fmt.Sprintf("0x%04x", ProgramStart), "n", len(vm.program))
	return vm.state.LoadProgram(vm.program)
}

// State exposes the machine state to the host.
func (vm *VM) State() *State {
	return vm.state
}

// Quirks returns the active quirks.
func (vm *VM) Quirks() Quirks {
	return vm.quirks
}

// Step fetches, decodes and executes one instruction.
func (vm *VM) Step() (Status, error) {
	pc := vm.state.pc
	opcode, err := vm.fetchOpcode()
	if err != nil {
		return Running, err
	}

	err = vm.executeOpcode(pc, opcode)
	switch {
	case err == nil:
		return Running, nil
	case errors.Is(err, errAwaitingKey):
		return AwaitingKey, nil
	case errors.Is(err, errInfiniteLoop):
		return Looped, nil
	default:
		return Running, err
	}
}

func (vm *VM) fetchOpcode() (uint16, error) {
	pc := vm.state.pc
	if int(pc)+1 >= MemorySize {
		return 0, &FetchError{PC: pc}
	}

	hi := vm.state.memory[pc]
	lo := vm.state.memory[pc+1]
	vm.state.pc += InstructionSize

	opcode := uint16(hi)<<8 | uint16(lo) // Op code is two bytes
	return opcode, nil
}

// TickTimers is the 60 Hz timer step.
func (vm *VM) TickTimers() {
	vm.state.DecrementTimers()
}

// SoundActive reports whether the beeper should sound.
func (vm *VM) SoundActive() bool {
	return vm.state.SoundActive()
}

// Frame returns a framebuffer snapshot and whether it changed since the
// previous call.
func (vm *VM) Frame() ([]byte, bool) {
	changed := vm.state.drawFlag
	vm.state.drawFlag = false
	return vm.state.Framebuffer(), changed
}

// KeyDown records a key press. A press of a released key while FX0A is
// waiting satisfies the wait.
func (vm *VM) KeyDown(key Key) error {
	wasPressed := vm.state.IsKeyPressed(key)
	if err := vm.state.KeyDown(key); err != nil {
		return err
	}

	if vm.waitingKey && !wasPressed && !vm.keyLatched {
		vm.keyLatched = true
		vm.latchedKey = key
	}
	return nil
}

// KeyUp records a key release.
func (vm *VM) KeyUp(key Key) error {
	return vm.state.KeyUp(key)
}

func (vm *VM) randomByte() uint8 {
	if vm.rand != nil {
		return uint8(vm.rand.IntN(256))
	}
	return uint8(rand.IntN(256))
}
