package hostio

import "github.com/kapitanov/chip8vm/internal/vm"

const (
	blockEmpty = ' '
	blockUpper = '▀'
	blockLower = '▄'
	blockFull  = '█'
)

// HalfBlockRows is the number of text rows needed to show the screen with
// two pixels per cell.
const HalfBlockRows = vm.ScreenHeight / 2

// HalfBlocks calls set for every cell of a text rendering of gfx, where each
// cell covers two vertically adjacent pixels.
func HalfBlocks(gfx []byte, set func(x, y int, r rune)) {
	for y := 0; y < HalfBlockRows; y++ {
		for x := 0; x < vm.ScreenWidth; x++ {
			top := gfx[2*y*vm.ScreenWidth+x] != 0
			bottom := gfx[(2*y+1)*vm.ScreenWidth+x] != 0
			set(x, y, halfBlock(top, bottom))
		}
	}
}

func halfBlock(top, bottom bool) rune {
	switch {
	case top && bottom:
		return blockFull
	case top:
		return blockUpper
	case bottom:
		return blockLower
	default:
		return blockEmpty
	}
}
