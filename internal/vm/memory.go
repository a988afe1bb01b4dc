package vm

import "fmt"

func (s *State) ReadByte(addr int) (uint8, error) {
	if addr < 0 || addr >= MemorySize {
		return 0, fmt.Errorf("read 0x%04x: %w", addr, ErrAddressOutOfRange)
	}
	return s.memory[addr], nil
}

func (s *State) WriteByte(addr int, v uint8) error {
	if addr < 0 || addr >= MemorySize {
		return fmt.Errorf("write 0x%04x: %w", addr, ErrAddressOutOfRange)
	}
	s.memory[addr] = v
	return nil
}

// ReadBlock checks the whole range before reading.
func (s *State) ReadBlock(addr, n int) ([]byte, error) {
	if err := checkRange(addr, n); err != nil {
		return nil, fmt.Errorf("read %d bytes: %w", n, err)
	}
	block := make([]byte, n)
	copy(block, s.memory[addr:addr+n])
	return block, nil
}

// WriteBlock checks the whole range before writing.
func (s *State) WriteBlock(addr int, data []byte) error {
	if err := checkRange(addr, len(data)); err != nil {
		return fmt.Errorf("write %d bytes: %w", len(data), err)
	}
	copy(s.memory[addr:], data)
	return nil
}

func (s *State) Memory() [MemorySize]uint8 {
	return s.memory
}

func (s *State) LoadProgram(image []byte) error {
	if err := ValidateProgram(image); err != nil {
		return err
	}
	copy(s.memory[ProgramStart:], image)
	s.pc = ProgramStart
	return nil
}

func ValidateProgram(image []byte) error {
	if len(image) == 0 {
		return &LoadError{Size: 0, Err: ErrEmptyProgram}
	}
	if len(image) > MaxProgramSize {
		return &LoadError{Size: len(image), Err: ErrProgramTooLarge}
	}
	return nil
}

func checkRange(addr, n int) error {
	if addr < 0 || n < 0 || addr+n > MemorySize {
		return fmt.Errorf("0x%04x-0x%04x: %w", addr, addr+n-1, ErrAddressOutOfRange)
	}
	return nil
}
