package vm

import "fmt"

type Key uint8

const (
	Key0 = Key(iota)
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
)

func (k Key) String() string {
	return fmt.Sprintf("%X", uint8(k))
}

// KeyDown marks a logical key as pressed.
func (s *State) KeyDown(key Key) error {
	if key >= KeyCount {
		return fmt.Errorf("key down 0x%02x: %w", uint8(key), ErrInvalidKey)
	}
	s.keypad[key] = true
	return nil
}

// KeyUp marks a logical key as released.
func (s *State) KeyUp(key Key) error {
	if key >= KeyCount {
		return fmt.Errorf("key up 0x%02x: %w", uint8(key), ErrInvalidKey)
	}
	s.keypad[key] = false
	return nil
}

// IsKeyPressed reports whether a logical key is held. Keys outside 0x0-0xF
// are never pressed.
func (s *State) IsKeyPressed(key Key) bool {
	if key >= KeyCount {
		return false
	}
	return s.keypad[key]
}
