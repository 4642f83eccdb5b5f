// Package x86asm emits x86-64 machine code directly into a byte buffer: no
// assembler text, no external toolchain, just ModR/M and REX/VEX bytes
// built by hand. It backs the vertex-shader JIT compiler.
package x86asm

import "encoding/binary"

// Reg is a general-purpose x86-64 register encoding.
type Reg byte

const (
	RAX Reg = 0
	RCX Reg = 1
	RDX Reg = 2
	RBX Reg = 3
	RSP Reg = 4
	RBP Reg = 5
	RSI Reg = 6
	RDI Reg = 7
	R8  Reg = 8
	R9  Reg = 9
	R10 Reg = 10
	R11 Reg = 11
	R12 Reg = 12
	R13 Reg = 13
	R14 Reg = 14
	R15 Reg = 15
)

// Assembler emits x86-64 machine code into a fixed-size buffer supplied by
// the caller (typically a slice carved out of a codebuf.Buffer).
type Assembler struct {
	buf    []byte
	offset int
}

// NewAssembler targets buf; emission starts at offset 0.
func NewAssembler(buf []byte) *Assembler {
	return &Assembler{buf: buf}
}

// Offset returns the current write position.
func (a *Assembler) Offset() int {
	return a.offset
}

// Bytes returns the code emitted so far.
func (a *Assembler) Bytes() []byte {
	return a.buf[:a.offset]
}

func (a *Assembler) emit(bytes ...byte) {
	copy(a.buf[a.offset:], bytes)
	a.offset += len(bytes)
}

func (a *Assembler) emitUint32(v uint32) {
	binary.LittleEndian.PutUint32(a.buf[a.offset:], v)
	a.offset += 4
}

func (a *Assembler) emitUint64(v uint64) {
	binary.LittleEndian.PutUint64(a.buf[a.offset:], v)
	a.offset += 8
}

func (a *Assembler) emitInt32(v int32) {
	binary.LittleEndian.PutUint32(a.buf[a.offset:], uint32(v))
	a.offset += 4
}

// rex builds a REX prefix: 0100WRXB. W selects 64-bit operand size, R
// extends the reg field, X extends the SIB index field, B extends the
// rm/base field.
func rex(w, r, x, b bool) byte {
	var prefix byte = 0x40
	if w {
		prefix |= 0x08
	}
	if r {
		prefix |= 0x04
	}
	if x {
		prefix |= 0x02
	}
	if b {
		prefix |= 0x01
	}
	return prefix
}

func rexW(reg, rm Reg) byte {
	return rex(true, reg >= 8, false, rm >= 8)
}

// modRM builds a ModR/M byte; mod is pre-shifted (0x00/0x40/0x80/0xC0).
func modRM(mod byte, reg, rm Reg) byte {
	return mod | ((byte(reg) & 7) << 3) | (byte(rm) & 7)
}

// emitMemOperand emits the ModR/M (+SIB, +disp) bytes for a [base+disp]
// operand, handling the two cases x86 can't express directly in ModR/M:
// RSP/R12 as a base always needs a SIB byte, and RBP/R13 as a base with
// zero displacement still needs an explicit disp8 of 0 (mod=00 with those
// encodings means RIP-relative / no-base, not "no displacement").
func (a *Assembler) emitMemOperand(reg, base Reg, disp int32) {
	if base == RSP || base == R12 {
		switch {
		case disp == 0:
			a.emit(modRM(0x00, reg, RSP), 0x24)
		case disp >= -128 && disp <= 127:
			a.emit(modRM(0x40, reg, RSP), 0x24, byte(disp))
		default:
			a.emit(modRM(0x80, reg, RSP), 0x24)
			a.emitInt32(disp)
		}
		return
	}
	if base == RBP || base == R13 {
		if disp >= -128 && disp <= 127 {
			a.emit(modRM(0x40, reg, base), byte(disp))
		} else {
			a.emit(modRM(0x80, reg, base))
			a.emitInt32(disp)
		}
		return
	}
	switch {
	case disp == 0:
		a.emit(modRM(0x00, reg, base))
	case disp >= -128 && disp <= 127:
		a.emit(modRM(0x40, reg, base), byte(disp))
	default:
		a.emit(modRM(0x80, reg, base))
		a.emitInt32(disp)
	}
}

// MovRegReg: mov dst, src (64-bit).
func (a *Assembler) MovRegReg(dst, src Reg) {
	a.emit(rexW(src, dst), 0x89, modRM(0xC0, src, dst))
}

// MovRegImm64: mov reg, imm64.
func (a *Assembler) MovRegImm64(reg Reg, imm uint64) {
	a.emit(rex(true, false, false, reg >= 8), 0xB8|byte(reg&7))
	a.emitUint64(imm)
}

// MovRegImm32SignExt: mov reg, imm32 (sign-extended to 64-bit).
func (a *Assembler) MovRegImm32SignExt(reg Reg, imm int32) {
	a.emit(rex(true, false, false, reg >= 8), 0xC7, modRM(0xC0, 0, reg))
	a.emitInt32(imm)
}

// MovRegMem64: mov reg, [base+disp] (64-bit load).
func (a *Assembler) MovRegMem64(reg, base Reg, disp int32) {
	a.emit(rexW(reg, base), 0x8B)
	a.emitMemOperand(reg, base, disp)
}

// MovMemReg64: mov [base+disp], reg (64-bit store).
func (a *Assembler) MovMemReg64(base Reg, disp int32, reg Reg) {
	a.emit(rexW(reg, base), 0x89)
	a.emitMemOperand(reg, base, disp)
}

// MovRegMem32: mov reg32, [base+disp] (zero-extends to 64-bit).
func (a *Assembler) MovRegMem32(reg, base Reg, disp int32) {
	if reg >= 8 || base >= 8 {
		a.emit(rex(false, reg >= 8, false, base >= 8))
	}
	a.emit(0x8B)
	a.emitMemOperand(reg, base, disp)
}

// MovMemReg32: mov dword [base+disp], reg.
func (a *Assembler) MovMemReg32(base Reg, disp int32, reg Reg) {
	if reg >= 8 || base >= 8 {
		a.emit(rex(false, reg >= 8, false, base >= 8))
	}
	a.emit(0x89)
	a.emitMemOperand(reg, base, disp)
}

// MovsxdRegReg: movsxd dst64, src32 (sign-extend 32 to 64 bits).
func (a *Assembler) MovsxdRegReg(dst, src Reg) {
	a.emit(rexW(dst, src), 0x63, modRM(0xC0, dst, src))
}

// AddRegReg: add dst, src (64-bit).
func (a *Assembler) AddRegReg(dst, src Reg) {
	a.emit(rexW(src, dst), 0x01, modRM(0xC0, src, dst))
}

// AddRegImm32: add reg, imm32 (64-bit, sign-extended).
func (a *Assembler) AddRegImm32(reg Reg, imm int32) {
	if imm >= -128 && imm <= 127 {
		a.emit(rexW(0, reg), 0x83, modRM(0xC0, 0, reg), byte(imm))
	} else {
		a.emit(rexW(0, reg), 0x81, modRM(0xC0, 0, reg))
		a.emitInt32(imm)
	}
}

// SubRegReg: sub dst, src (64-bit).
func (a *Assembler) SubRegReg(dst, src Reg) {
	a.emit(rexW(src, dst), 0x29, modRM(0xC0, src, dst))
}

// SubRegImm32: sub reg, imm32 (64-bit, sign-extended).
func (a *Assembler) SubRegImm32(reg Reg, imm int32) {
	if imm >= -128 && imm <= 127 {
		a.emit(rexW(0, reg), 0x83, modRM(0xC0, 5, reg), byte(imm))
	} else {
		a.emit(rexW(0, reg), 0x81, modRM(0xC0, 5, reg))
		a.emitInt32(imm)
	}
}

// AndRegReg: and dst, src (64-bit).
func (a *Assembler) AndRegReg(dst, src Reg) {
	a.emit(rexW(src, dst), 0x21, modRM(0xC0, src, dst))
}

// OrRegReg: or dst, src (64-bit).
func (a *Assembler) OrRegReg(dst, src Reg) {
	a.emit(rexW(src, dst), 0x09, modRM(0xC0, src, dst))
}

// XorRegReg: xor dst, src (64-bit).
func (a *Assembler) XorRegReg(dst, src Reg) {
	a.emit(rexW(src, dst), 0x31, modRM(0xC0, src, dst))
}

// XorRegImm32: xor reg, imm32 (64-bit, sign-extended) — used by the JIT's
// condition evaluation to flip a 0/1 flag with imm 1.
func (a *Assembler) XorRegImm32(reg Reg, imm int32) {
	if imm >= -128 && imm <= 127 {
		a.emit(rexW(0, reg), 0x83, modRM(0xC0, 6, reg), byte(imm))
	} else {
		a.emit(rexW(0, reg), 0x81, modRM(0xC0, 6, reg))
		a.emitInt32(imm)
	}
}

// ShlRegImm8: shl reg, imm8 (64-bit).
func (a *Assembler) ShlRegImm8(reg Reg, imm byte) {
	if imm == 1 {
		a.emit(rexW(0, reg), 0xD1, modRM(0xC0, 4, reg))
	} else {
		a.emit(rexW(0, reg), 0xC1, modRM(0xC0, 4, reg), imm)
	}
}

// ShrRegImm8: shr reg, imm8 (64-bit logical).
func (a *Assembler) ShrRegImm8(reg Reg, imm byte) {
	if imm == 1 {
		a.emit(rexW(0, reg), 0xD1, modRM(0xC0, 5, reg))
	} else {
		a.emit(rexW(0, reg), 0xC1, modRM(0xC0, 5, reg), imm)
	}
}

// CmpRegReg: cmp left, right (64-bit).
func (a *Assembler) CmpRegReg(left, right Reg) {
	a.emit(rexW(right, left), 0x39, modRM(0xC0, right, left))
}

// CmpRegImm32: cmp reg, imm32 (64-bit, sign-extended).
func (a *Assembler) CmpRegImm32(reg Reg, imm int32) {
	if imm >= -128 && imm <= 127 {
		a.emit(rexW(0, reg), 0x83, modRM(0xC0, 7, reg), byte(imm))
	} else {
		a.emit(rexW(0, reg), 0x81, modRM(0xC0, 7, reg))
		a.emitInt32(imm)
	}
}

// CmpMem8Imm8: cmp byte [base+disp], imm8 — used to read a bool uniform.
func (a *Assembler) CmpMem8Imm8(base Reg, disp int32, imm byte) {
	if base >= 8 {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0x80)
	a.emitMemOperand(7, base, disp) // reg field = opcode extension 7 (CMP)
	a.emit(imm)
}

// TestRegReg: test left, right (64-bit).
func (a *Assembler) TestRegReg(left, right Reg) {
	a.emit(rexW(right, left), 0x85, modRM(0xC0, right, left))
}

func (a *Assembler) setcc(opcode byte, reg Reg) {
	if reg >= 8 || reg >= RSP {
		a.emit(rex(false, false, false, reg >= 8))
	}
	a.emit(0x0F, opcode, modRM(0xC0, 0, reg))
}

func (a *Assembler) Sete(reg Reg)  { a.setcc(0x94, reg) }
func (a *Assembler) Setne(reg Reg) { a.setcc(0x95, reg) }
func (a *Assembler) Setl(reg Reg)  { a.setcc(0x9C, reg) }
func (a *Assembler) Setge(reg Reg) { a.setcc(0x9D, reg) }
func (a *Assembler) Setg(reg Reg)  { a.setcc(0x9F, reg) }
func (a *Assembler) Setle(reg Reg) { a.setcc(0x9E, reg) }

// MovzxRegReg8: movzx dst, src8 (zero-extend byte to 64-bit).
func (a *Assembler) MovzxRegReg8(dst, src Reg) {
	a.emit(rexW(dst, src), 0x0F, 0xB6, modRM(0xC0, dst, src))
}

// Short-form (rel8) conditional jumps.
func (a *Assembler) Je(rel8 int8)  { a.emit(0x74, byte(rel8)) }
func (a *Assembler) Jne(rel8 int8) { a.emit(0x75, byte(rel8)) }

// Near-form (rel32) conditional jumps, used when the branch target isn't
// known to fit rel8 at emission time.
func (a *Assembler) jccNear(opcode byte, rel32 int32) {
	a.emit(0x0F, opcode)
	a.emitInt32(rel32)
}

func (a *Assembler) JeNear(rel32 int32)  { a.jccNear(0x84, rel32) }
func (a *Assembler) JneNear(rel32 int32) { a.jccNear(0x85, rel32) }
func (a *Assembler) JzNear(rel32 int32)  { a.jccNear(0x84, rel32) }
func (a *Assembler) JnzNear(rel32 int32) { a.jccNear(0x85, rel32) }

// JmpRel32: jmp rel32.
func (a *Assembler) JmpRel32(rel32 int32) {
	a.emit(0xE9)
	a.emitInt32(rel32)
}

// CallRel32: call rel32.
func (a *Assembler) CallRel32(rel32 int32) {
	a.emit(0xE8)
	a.emitInt32(rel32)
}

// Ret: ret.
func (a *Assembler) Ret() { a.emit(0xC3) }

// Push: push reg.
func (a *Assembler) Push(reg Reg) {
	if reg >= 8 {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0x50 | byte(reg&7))
}

// Pop: pop reg.
func (a *Assembler) Pop(reg Reg) {
	if reg >= 8 {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0x58 | byte(reg&7))
}

// Nop: nop.
func (a *Assembler) Nop() { a.emit(0x90) }

// Cmov conditional moves (64-bit).
func (a *Assembler) cmovcc(opcode byte, dst, src Reg) {
	a.emit(rexW(dst, src), 0x0F, opcode, modRM(0xC0, dst, src))
}

func (a *Assembler) Cmovl(dst, src Reg)  { a.cmovcc(0x4C, dst, src) }
func (a *Assembler) Cmovge(dst, src Reg) { a.cmovcc(0x4D, dst, src) }
func (a *Assembler) Cmovg(dst, src Reg)  { a.cmovcc(0x4F, dst, src) }
func (a *Assembler) Cmovle(dst, src Reg) { a.cmovcc(0x4E, dst, src) }
