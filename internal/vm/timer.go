package vm

func (s *State) DelayTimer() uint8 {
	return s.delayTimer
}

func (s *State) SetDelayTimer(v uint8) {
	s.delayTimer = v
}

func (s *State) SoundTimer() uint8 {
	return s.soundTimer
}

func (s *State) SetSoundTimer(v uint8) {
	s.soundTimer = v
}

// DecrementTimers counts both timers down by one, stopping at zero.
func (s *State) DecrementTimers() {
	if s.delayTimer > 0 {
		s.delayTimer--
	}

	if s.soundTimer > 0 {
		s.soundTimer--
	}
}

func (s *State) SoundActive() bool {
	return s.soundTimer > 0
}
