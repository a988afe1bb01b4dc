package vm

// ClearScreen turns every pixel off.
func (s *State) ClearScreen() {
	for i := range s.gfx {
		s.gfx[i] = 0
	}
	s.drawFlag = true
}

// XORPixel toggles the pixel at (x, y), wrapping both coordinates around the
// screen edges. It reports whether a lit pixel was turned off.
func (s *State) XORPixel(x, y int) bool {
	addr := getScreenAddr(x, y)
	collision := s.gfx[addr] != 0
	s.gfx[addr] ^= 1
	s.drawFlag = true
	return collision
}

// Pixel returns 1 if the pixel at (x, y) is lit. Coordinates wrap.
func (s *State) Pixel(x, y int) uint8 {
	return s.gfx[getScreenAddr(x, y)]
}

// Framebuffer returns a row-major copy of the screen, one byte per pixel.
func (s *State) Framebuffer() []byte {
	gfx := make([]byte, len(s.gfx))
	copy(gfx, s.gfx[:])
	return gfx
}

func getScreenAddr(x, y int) int {
	x %= ScreenWidth
	if x < 0 {
		x += ScreenWidth
	}
	y %= ScreenHeight
	if y < 0 {
		y += ScreenHeight
	}

	return ScreenWidth*y + x
}
