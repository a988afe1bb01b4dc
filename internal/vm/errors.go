package vm

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyProgram      = errors.New("program is empty")
	ErrProgramTooLarge   = errors.New("program does not fit in memory")
	ErrAddressOutOfRange = errors.New("address out of range")
	ErrUnknownOpcode     = errors.New("unknown opcode")
	ErrStackOverflow     = errors.New("stack overflow")
	ErrStackUnderflow    = errors.New("stack underflow")
	ErrInvalidRegister   = errors.New("invalid register")
	ErrInvalidKey        = errors.New("invalid key")
)

// LoadError is returned when a program image is rejected before execution.
type LoadError struct {
	Size int
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load program (%d bytes): %v", e.Size, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// FetchError reports a program counter that points outside of memory.
type FetchError struct {
	PC uint16
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch at 0x%04x: %v", e.PC, ErrAddressOutOfRange)
}

func (e *FetchError) Unwrap() error {
	return ErrAddressOutOfRange
}

// DecodeError reports an instruction word that matches no opcode.
// PC is the address the word was fetched from.
type DecodeError struct {
	Opcode uint16
	PC     uint16
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v 0x%04X at 0x%04x", ErrUnknownOpcode, e.Opcode, e.PC)
}

func (e *DecodeError) Unwrap() error {
	return ErrUnknownOpcode
}
