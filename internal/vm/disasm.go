package vm

// Line is one instruction of a program listing.
type Line struct {
	Addr   uint16
	Opcode uint16
	Text   string
	Known  bool
}

// Disassemble returns the mnemonic for a single instruction word.
func Disassemble(opcode uint16) string {
	return decode(opcode).Name(decodeOperands(0, opcode))
}

// IsKnown reports whether the word decodes to a CHIP-8 instruction.
func IsKnown(opcode uint16) bool {
	return !decode(opcode).unknown
}

// Listing disassembles image as if loaded at origin, two bytes per line. A
// trailing odd byte is emitted as a data line.
func Listing(image []byte, origin uint16) []Line {
	lines := make([]Line, 0, (len(image)+1)/InstructionSize)
	for i := 0; i < len(image); i += InstructionSize {
		addr := origin + uint16(i)
		if i+1 >= len(image) {
			lines = append(lines, Line{Addr: addr, Opcode: uint16(image[i]), Text: "byte"})
			break
		}

		opcode := uint16(image[i])<<8 | uint16(image[i+1])
		lines = append(lines, Line{
			Addr:   addr,
			Opcode: opcode,
			Text:   Disassemble(opcode),
			Known:  IsKnown(opcode),
		})
	}
	return lines
}
