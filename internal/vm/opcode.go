package vm

import (
	"context"
	"fmt"
	"log/slog"
)

// operands are the fixed bit fields of an instruction word.
type operands struct {
	opcode uint16
	pc     uint16 // address the word was fetched from

	x   int    // _X__
	y   int    // __Y_
	n   uint8  // ___N
	kk  uint8  // __KK
	nnn uint16 // _NNN
}

func decodeOperands(pc, opcode uint16) operands {
	return operands{
		opcode: opcode,
		pc:     pc,
		x:      int(opcode&0x0F00) >> 8,
		y:      int(opcode&0x00F0) >> 4,
		n:      uint8(opcode & 0x000F),
		kk:     uint8(opcode & 0x00FF),
		nnn:    opcode & 0x0FFF,
	}
}

func (vm *VM) executeOpcode(pc, opcode uint16) error {
	instr := decode(opcode)
	op := decodeOperands(pc, opcode)

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug(
			"exec",
			"pc", fmt.Sprintf("0x%04x", pc),
			"opcode", fmt.Sprintf("0x%04x", opcode),
			"instr", instr.Name(op),
		)
	}

	return instr.Execute(vm, op)
}

type instruction struct {
	Name    func(op operands) string
	Execute func(vm *VM, op operands) error
	unknown bool
}

func decode(opcode uint16) instruction {
	switch opcode {
	case 0x00E0:
		// 00E0 - Clear screen
		return clsInstruction

	case 0x00EE:
		// 00EE - Return from subroutine
		return rtsInstruction
	}

	switch opcode & 0xF000 {
	case 0x1000:
		// 1NNN - Jumps to address NNN
		return jmpInstruction

	case 0x2000:
		// 2NNN - Calls subroutine at NNN
		return jsrInstruction

	case 0x3000:
		// 3XKK - Skips the next instruction if VX equals KK
		return skeq1Instruction

	case 0x4000:
		// 4XKK - Skips the next instruction if VX does not equal KK
		return skne1Instruction

	case 0x5000:
		if opcode&0x000F == 0 {
			// 5XY0 - Skips the next instruction if VX equals VY
			return skeq2Instruction
		}

	case 0x6000:
		// 6XKK - Sets VX to KK
		return mov1Instruction

	case 0x7000:
		// 7XKK - Adds KK to VX, no carry
		return add1Instruction

	case 0x8000:
		switch opcode & 0x000F {
		case 0x0000:
			// 8XY0 - Sets VX to the value of VY
			return mov2Instruction

		case 0x0001:
			// 8XY1 - Sets VX to (VX OR VY)
			return orInstruction

		case 0x0002:
			// 8XY2 - Sets VX to (VX AND VY)
			return andInstruction

		case 0x0003:
			// 8XY3 - Sets VX to (VX XOR VY)
			return xorInstruction

		case 0x0004:
			// 8XY4 - Adds VY to VX. VF is 1 on carry, 0 otherwise.
			return add2Instruction

		case 0x0005:
			// 8XY5 - VX = VX - VY. VF is 0 on borrow, 1 otherwise.
			return subInstruction

		case 0x0006:
			// 8XY6 - Shifts right by one, VF gets the bit shifted out.
			return shrInstruction

		case 0x0007:
			// 8XY7 - VX = VY - VX. VF is 0 on borrow, 1 otherwise.
			return rsbInstruction

		case 0x000E:
			// 8XYE - Shifts left by one, VF gets the bit shifted out.
			return shlInstruction
		}

	case 0x9000:
		if opcode&0x000F == 0 {
			// 9XY0 - Skips the next instruction if VX doesn't equal VY
			return skne2Instruction
		}

	case 0xA000:
		// ANNN - Sets I to the address NNN
		return mviInstruction

	case 0xB000:
		// BNNN - Jumps to the address NNN plus V0
		return jmiInstruction

	case 0xC000:
		// CXKK - Sets VX to a random number, masked by KK
		return randInstruction

	case 0xD000:
		// DXYN - Draws an 8xN sprite from memory at I at (VX, VY).
		// VF is set to 1 if any lit pixel is turned off.
		return spriteInstruction

	case 0xE000:
		switch opcode & 0x00FF {
		case 0x009E:
			// EX9E - Skips the next instruction if the key stored in VX is pressed
			return skprInstruction

		case 0x00A1:
			// EXA1 - Skips the next instruction if the key stored in VX isn't pressed
			return skupInstruction
		}

	case 0xF000:
		switch opcode & 0x00FF {
		case 0x0007:
			// FX07 - Sets VX to the value of the delay timer
			return gdelayInstruction

		case 0x000A:
			// FX0A - A key press is awaited, and then stored in VX
			return keyInstruction

		case 0x0015:
			// FX15 - Sets the delay timer to VX
			return sdelayInstruction

		case 0x0018:
			// FX18 - Sets the sound timer to VX
			return ssoundInstruction

		case 0x001E:
			// FX1E - Adds VX to I
			return adiInstruction

		case 0x0029:
			// FX29 - Sets I to the font sprite for the digit in VX
			return fontInstruction

		case 0x0033:
			// FX33 - Stores the BCD representation of VX at I, I+1, I+2
			return bcdInstruction

		case 0x0055:
			// FX55 - Stores V0 to VX in memory starting at address I
			return strInstruction

		case 0x0065:
			// FX65 - Reads memory starting at address I into V0...VX
			return ldrInstruction
		}
	}

	// 0NNN machine calls land here as well.
	return unknownInstruction
}

func flag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func (vm *VM) skipIf(cond bool) {
	if cond {
		vm.state.pc += InstructionSize
	}
}

var (
	// 00E0	cls	Clear the screen
	clsInstruction = instruction{
		Name: func(op operands) string {
			return "cls"
		},
		Execute: func(vm *VM, op operands) error {
			vm.state.ClearScreen()
			return nil
		},
	}

	// 00EE	rts	return from subroutine call
	rtsInstruction = instruction{
		Name: func(op operands) string {
			return "rts"
		},
		Execute: func(vm *VM, op operands) error {
			addr, err := vm.state.Pop()
			if err != nil {
				return fmt.Errorf("rts at 0x%04x: %w", op.pc, err)
			}
			vm.state.pc = addr
			return nil
		},
	}

	// 1nnn	jmp nnn	jump to address nnn
	jmpInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("jmp 0x%04x", op.nnn)
		},
		Execute: func(vm *VM, op operands) error {
			vm.state.pc = op.nnn
			if op.nnn == op.pc {
				return errInfiniteLoop
			}
			return nil
		},
	}

	// 2nnn	jsr nnn	jump to subroutine at address nnn
	jsrInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("jsr 0x%04x", op.nnn)
		},
		Execute: func(vm *VM, op operands) error {
			if err := vm.state.Push(vm.state.pc); err != nil {
				return fmt.Errorf("jsr at 0x%04x: %w", op.pc, err)
			}
			vm.state.pc = op.nnn
			return nil
		},
	}

	// 3rkk	skeq vr,kk	skip if register r = constant
	skeq1Instruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("skeq v%x, %d", op.x, op.kk)
		},
		Execute: func(vm *VM, op operands) error {
			vm.skipIf(vm.state.registers[op.x] == op.kk)
			return nil
		},
	}

	// 4rkk	skne vr,kk	skip if register r <> constant
	skne1Instruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("skne v%x, %d", op.x, op.kk)
		},
		Execute: func(vm *VM, op operands) error {
			vm.skipIf(vm.state.registers[op.x] != op.kk)
			return nil
		},
	}

	// 5ry0	skeq vr,vy	skip if register r = register y
	skeq2Instruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("skeq v%x, v%x", op.x, op.y)
		},
		Execute: func(vm *VM, op operands) error {
			vm.skipIf(vm.state.registers[op.x] == vm.state.registers[op.y])
			return nil
		},
	}

	// 6rkk	mov vr,kk	move constant to register r
	mov1Instruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("mov v%x, %d", op.x, op.kk)
		},
		Execute: func(vm *VM, op operands) error {
			vm.state.registers[op.x] = op.kk
			return nil
		},
	}

	// 7rkk	add vr,kk	add constant to register r	No carry generated
	add1Instruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("add v%x, %d", op.x, op.kk)
		},
		Execute: func(vm *VM, op operands) error {
			vm.state.registers[op.x] += op.kk
			return nil
		},
	}

	// 8ry0	mov vr,vy	move register vy into vr
	mov2Instruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("mov v%x, v%x", op.x, op.y)
		},
		Execute: func(vm *VM, op operands) error {
			vm.state.registers[op.x] = vm.state.registers[op.y]
			return nil
		},
	}

	// 8ry1	or rx,ry	or register vy into register vx
	orInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("or v%x, v%x", op.x, op.y)
		},
		Execute: func(vm *VM, op operands) error {
			return vm.logic(op, func(x, y uint8) uint8 { return x | y })
		},
	}

	// 8ry2	and rx,ry	and register vy into register vx
	andInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("and v%x, v%x", op.x, op.y)
		},
		Execute: func(vm *VM, op operands) error {
			return vm.logic(op, func(x, y uint8) uint8 { return x & y })
		},
	}

	// 8ry3	xor rx,ry	exclusive or register ry into register rx
	xorInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("xor v%x, v%x", op.x, op.y)
		},
		Execute: func(vm *VM, op operands) error {
			return vm.logic(op, func(x, y uint8) uint8 { return x ^ y })
		},
	}

	// 8ry4	add vr,vy	add register vy to vr,carry in vf
	add2Instruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("add v%x, v%x", op.x, op.y)
		},
		Execute: func(vm *VM, op operands) error {
			x := vm.state.registers[op.x]
			y := vm.state.registers[op.y]
			sum := uint16(x) + uint16(y)

			vm.state.registers[op.x] = uint8(sum)
			vm.state.registers[0x0F] = flag(sum > 0xFF)
			return nil
		},
	}

	// 8ry5	sub vr,vy	subtract register vy from vr,borrow in vf	vf set to 0 if borrows
	subInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("sub v%x, v%x", op.x, op.y)
		},
		Execute: func(vm *VM, op operands) error {
			x := vm.state.registers[op.x]
			y := vm.state.registers[op.y]

			vm.state.registers[op.x] = x - y
			vm.state.registers[0x0F] = flag(x >= y)
			return nil
		},
	}

	// 8ry6	shr vr	shift register right, bit 0 goes into register vf
	shrInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("shr v%x, v%x", op.x, op.y)
		},
		Execute: func(vm *VM, op operands) error {
			src := vm.shiftSource(op)

			vm.state.registers[op.x] = src >> 1
			vm.state.registers[0x0F] = src & 0x1
			return nil
		},
	}

	// 8ry7	rsb vr,vy	subtract register vr from register vy, result in vr	vf set to 0 if borrows
	rsbInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("rsb v%x, v%x", op.x, op.y)
		},
		Execute: func(vm *VM, op operands) error {
			x := vm.state.registers[op.x]
			y := vm.state.registers[op.y]

			vm.state.registers[op.x] = y - x
			vm.state.registers[0x0F] = flag(y >= x)
			return nil
		},
	}

	// 8rye	shl vr	shift register left, bit 7 goes into register vf
	shlInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("shl v%x, v%x", op.x, op.y)
		},
		Execute: func(vm *VM, op operands) error {
			src := vm.shiftSource(op)

			vm.state.registers[op.x] = src << 1
			vm.state.registers[0x0F] = src >> 7
			return nil
		},
	}

	// 9ry0	skne vr,vy	skip if register r <> register y
	skne2Instruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("skne v%x, v%x", op.x, op.y)
		},
		Execute: func(vm *VM, op operands) error {
			vm.skipIf(vm.state.registers[op.x] != vm.state.registers[op.y])
			return nil
		},
	}

	// annn	mvi nnn	Load index register with constant nnn
	mviInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("mvi 0x%04x", op.nnn)
		},
		Execute: func(vm *VM, op operands) error {
			vm.state.index = op.nnn
			return nil
		},
	}

	// bnnn	jmi nnn	Jump to address nnn+register v0
	jmiInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("jmi 0x%04x", op.nnn)
		},
		Execute: func(vm *VM, op operands) error {
			vm.state.pc = (op.nnn + uint16(vm.state.registers[0])) & 0x0FFF
			return nil
		},
	}

	// crkk	rand vr,kk	vr = random byte masked by kk
	randInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("rand v%x, 0x%02x", op.x, op.kk)
		},
		Execute: func(vm *VM, op operands) error {
			vm.state.registers[op.x] = vm.randomByte() & op.kk
			return nil
		},
	}

	// drys	sprite rx,ry,s	Draw sprite at screen location rx,ry height s
	// Sprites stored in memory at location in index register, 8 bits wide.
	// Wraps around the screen.
	// If when drawn, clears a pixel, vf is set to 1 otherwise it is zero.
	// All drawing is xor drawing (e.g. it toggles the screen pixels)
	spriteInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("sprite v%x, v%x, %d", op.x, op.y, op.n)
		},
		Execute: func(vm *VM, op operands) error {
			sprite, err := vm.state.ReadBlock(int(vm.state.index), int(op.n))
			if err != nil {
				return fmt.Errorf("sprite at 0x%04x: %w", op.pc, err)
			}

			xLocation := int(vm.state.registers[op.x])
			yLocation := int(vm.state.registers[op.y])

			hasCollision := false
			for y, row := range sprite {
				const width = 8
				for x := 0; x < width; x++ {
					mask := uint8(0x80 >> x)
					if row&mask == 0 {
						continue
					}
					if vm.state.XORPixel(xLocation+x, yLocation+y) {
						hasCollision = true
					}
				}
			}

			vm.state.drawFlag = true
			vm.state.registers[0x0F] = flag(hasCollision)
			return nil
		},
	}

	// ek9e	skpr k	skip if key (register rk) pressed
	skprInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("skpr v%x", op.x)
		},
		Execute: func(vm *VM, op operands) error {
			vm.skipIf(vm.state.IsKeyPressed(keyOperand(vm.state.registers[op.x])))
			return nil
		},
	}

	// eka1	skup k	skip if key (register rk) not pressed
	skupInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("skup v%x", op.x)
		},
		Execute: func(vm *VM, op operands) error {
			vm.skipIf(!vm.state.IsKeyPressed(keyOperand(vm.state.registers[op.x])))
			return nil
		},
	}

	// fr07	gdelay vr	get delay timer into vr
	gdelayInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("gdelay v%x", op.x)
		},
		Execute: func(vm *VM, op operands) error {
			vm.state.registers[op.x] = vm.state.delayTimer
			return nil
		},
	}

	// fr0a	key vr	wait for for keypress,put key in register vr
	keyInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("key v%x", op.x)
		},
		Execute: func(vm *VM, op operands) error {
			if vm.keyLatched {
				vm.state.registers[op.x] = uint8(vm.latchedKey)
				vm.waitingKey = false
				vm.keyLatched = false
				return nil
			}

			// Run this instruction again on the next step.
			vm.waitingKey = true
			vm.state.pc = op.pc
			return errAwaitingKey
		},
	}

	// fr15	sdelay vr	set the delay timer to vr
	sdelayInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("sdelay v%x", op.x)
		},
		Execute: func(vm *VM, op operands) error {
			vm.state.delayTimer = vm.state.registers[op.x]
			return nil
		},
	}

	// fr18	ssound vr	set the sound timer to vr
	ssoundInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("ssound v%x", op.x)
		},
		Execute: func(vm *VM, op operands) error {
			vm.state.soundTimer = vm.state.registers[op.x]
			return nil
		},
	}

	// fr1e	adi vr	add register vr to the index register
	adiInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("adi v%x", op.x)
		},
		Execute: func(vm *VM, op operands) error {
			x := uint16(vm.state.registers[op.x])
			sum := uint32(vm.state.index) + uint32(x)

			vm.state.index += x
			if vm.quirks.IndexOverflow {
				vm.state.registers[0x0F] = flag(sum > 0x0FFF)
			}
			return nil
		},
	}

	// fr29	font vr	point I to the sprite for hexadecimal character in vr	Sprite is 5 bytes high
	fontInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("font v%x", op.x)
		},
		Execute: func(vm *VM, op operands) error {
			vm.state.index = FontAddr(vm.state.registers[op.x])
			return nil
		},
	}

	// fr33	bcd vr	store the bcd representation of register vr at location I,I+1,I+2	Doesn't change I
	bcdInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("bcd v%x", op.x)
		},
		Execute: func(vm *VM, op operands) error {
			x := vm.state.registers[op.x]
			digits := []byte{x / 100, (x / 10) % 10, x % 10}

			if err := vm.state.WriteBlock(int(vm.state.index), digits); err != nil {
				return fmt.Errorf("bcd at 0x%04x: %w", op.pc, err)
			}
			return nil
		},
	}

	// fr55	str v0-vr	store registers v0-vr at location I onwards
	strInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("str v0-v%x", op.x)
		},
		Execute: func(vm *VM, op operands) error {
			n := op.x + 1
			if err := vm.state.WriteBlock(int(vm.state.index), vm.state.registers[:n]); err != nil {
				return fmt.Errorf("str at 0x%04x: %w", op.pc, err)
			}

			// The COSMAC VIP interpreter leaves I = I + X + 1.
			if vm.quirks.LoadStoreIncrementsIndex {
				vm.state.index += uint16(n)
			}
			return nil
		},
	}

	// fr65	ldr v0-vr	load registers v0-vr from location I onwards
	ldrInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("ldr v0-v%x", op.x)
		},
		Execute: func(vm *VM, op operands) error {
			n := op.x + 1
			block, err := vm.state.ReadBlock(int(vm.state.index), n)
			if err != nil {
				return fmt.Errorf("ldr at 0x%04x: %w", op.pc, err)
			}
			copy(vm.state.registers[:n], block)

			if vm.quirks.LoadStoreIncrementsIndex {
				vm.state.index += uint16(n)
			}
			return nil
		},
	}

	unknownInstruction = instruction{
		Name: func(op operands) string {
			return fmt.Sprintf("unknown 0x%04X", op.opcode)
		},
		Execute: func(vm *VM, op operands) error {
			return &DecodeError{Opcode: op.opcode, PC: op.pc}
		},
		unknown: true,
	}
)

func (vm *VM) logic(op operands, fn func(x, y uint8) uint8) error {
	vm.state.registers[op.x] = fn(vm.state.registers[op.x], vm.state.registers[op.y])
	if vm.quirks.LogicResetsFlag {
		vm.state.registers[0x0F] = 0
	}
	return nil
}

// keyOperand uses the low nibble of VX, as FX29 does for digits.
func keyOperand(v uint8) Key {
	return Key(v & 0x0F)
}

func (vm *VM) shiftSource(op operands) uint8 {
	if vm.quirks.ShiftUsesVY {
		return vm.state.registers[op.y]
	}
	return vm.state.registers[op.x]
}
