package x86asm

// XMM is a 128-bit SIMD register encoding. The numbering matches Reg's
// (XMM0..XMM15) so the same >=8 extension tests apply.
type XMM byte

const (
	XMM0  XMM = 0
	XMM1  XMM = 1
	XMM2  XMM = 2
	XMM3  XMM = 3
	XMM4  XMM = 4
	XMM5  XMM = 5
	XMM6  XMM = 6
	XMM7  XMM = 7
	XMM8  XMM = 8
	XMM9  XMM = 9
	XMM10 XMM = 10
	XMM11 XMM = 11
	XMM12 XMM = 12
	XMM13 XMM = 13
	XMM14 XMM = 14
	XMM15 XMM = 15
)

func xmodRM(mod byte, reg, rm XMM) byte {
	return mod | ((byte(reg) & 7) << 3) | (byte(rm) & 7)
}

// xmmMemOperand mirrors emitMemOperand but for an XMM reg field against a
// general-purpose base register.
func (a *Assembler) xmmMemOperand(reg XMM, base Reg, disp int32) {
	if base == RSP || base == R12 {
		switch {
		case disp == 0:
			a.emit(xmodRM(0x00, reg, 4), 0x24)
		case disp >= -128 && disp <= 127:
			a.emit(xmodRM(0x40, reg, 4), 0x24, byte(disp))
		default:
			a.emit(xmodRM(0x80, reg, 4), 0x24)
			a.emitInt32(disp)
		}
		return
	}
	if base == RBP || base == R13 {
		if disp >= -128 && disp <= 127 {
			a.emit(xmodRM(0x40, reg, XMM(base)), byte(disp))
		} else {
			a.emit(xmodRM(0x80, reg, XMM(base)))
			a.emitInt32(disp)
		}
		return
	}
	switch {
	case disp == 0:
		a.emit(xmodRM(0x00, reg, XMM(base)))
	case disp >= -128 && disp <= 127:
		a.emit(xmodRM(0x40, reg, XMM(base)), byte(disp))
	default:
		a.emit(xmodRM(0x80, reg, XMM(base)))
		a.emitInt32(disp)
	}
}

// legacySSERex emits a REX prefix if needed for an XMM reg/rm pair whose
// index might be 8-15 — there is no operand-size bit to set (SSE encodes
// width in the opcode/prefix, not REX.W), so this only ever sets R/B.
func (a *Assembler) legacySSERex(reg, rm XMM) {
	if reg >= 8 || rm >= 8 {
		a.emit(rex(false, reg >= 8, false, rm >= 8))
	}
}

func (a *Assembler) legacySSERexMem(reg XMM, base Reg) {
	if reg >= 8 || base >= 8 {
		a.emit(rex(false, reg >= 8, false, base >= 8))
	}
}

// emitSIBMemOperand emits a [base+index*1+disp] operand — used for the
// address-register-indexed loads MOVA's ADDROFFS registers feed. The
// index registers are pre-shifted to a byte offset before use, so scale
// is always 1 here.
func (a *Assembler) emitSIBMemOperand(reg XMM, base, index Reg, disp int32) {
	sib := (byte(index)&7)<<3 | (byte(base) & 7)
	if base == RBP || base == R13 {
		if disp >= -128 && disp <= 127 {
			a.emit(xmodRM(0x40, reg, 4), sib, byte(disp))
		} else {
			a.emit(xmodRM(0x80, reg, 4), sib)
			a.emitInt32(disp)
		}
		return
	}
	switch {
	case disp == 0:
		a.emit(xmodRM(0x00, reg, 4), sib)
	case disp >= -128 && disp <= 127:
		a.emit(xmodRM(0x40, reg, 4), sib, byte(disp))
	default:
		a.emit(xmodRM(0x80, reg, 4), sib)
		a.emitInt32(disp)
	}
}

// MovapsRegMemIdx: movaps dst, [base+index+disp] (SIB scale=1).
func (a *Assembler) MovapsRegMemIdx(dst XMM, base, index Reg, disp int32) {
	if dst >= 8 || index >= 8 || base >= 8 {
		a.emit(rex(false, dst >= 8, index >= 8, base >= 8))
	}
	a.emit(0x0F, 0x28)
	a.emitSIBMemOperand(dst, base, index, disp)
}

// MOVAPS reg, reg
func (a *Assembler) MovapsRegReg(dst, src XMM) {
	a.legacySSERex(dst, src)
	a.emit(0x0F, 0x28, xmodRM(0xC0, dst, src))
}

// MOVAPS reg, [base+disp]
func (a *Assembler) MovapsRegMem(dst XMM, base Reg, disp int32) {
	a.legacySSERexMem(dst, base)
	a.emit(0x0F, 0x28)
	a.xmmMemOperand(dst, base, disp)
}

// MOVAPS [base+disp], reg
func (a *Assembler) MovapsMemReg(base Reg, disp int32, src XMM) {
	a.legacySSERexMem(src, base)
	a.emit(0x0F, 0x29)
	a.xmmMemOperand(src, base, disp)
}

func (a *Assembler) twoOpSSE(prefix, opcode byte, dst, src XMM) {
	if prefix != 0 {
		a.emit(prefix)
	}
	a.legacySSERex(dst, src)
	a.emit(0x0F, opcode, xmodRM(0xC0, dst, src))
}

// ADDPS dst, src — packed single-precision add, all four lanes.
func (a *Assembler) Addps(dst, src XMM) { a.twoOpSSE(0, 0x58, dst, src) }

// SUBPS dst, src.
func (a *Assembler) Subps(dst, src XMM) { a.twoOpSSE(0, 0x5C, dst, src) }

// MULPS dst, src.
func (a *Assembler) Mulps(dst, src XMM) { a.twoOpSSE(0, 0x59, dst, src) }

// MAXPS dst, src.
func (a *Assembler) Maxps(dst, src XMM) { a.twoOpSSE(0, 0x5F, dst, src) }

// MINPS dst, src.
func (a *Assembler) Minps(dst, src XMM) { a.twoOpSSE(0, 0x5D, dst, src) }

// XORPS dst, src.
func (a *Assembler) Xorps(dst, src XMM) { a.twoOpSSE(0, 0x57, dst, src) }

// ANDPS dst, src.
func (a *Assembler) Andps(dst, src XMM) { a.twoOpSSE(0, 0x54, dst, src) }

// UNPCKLPS dst, src — interleave the low two lanes of dst and src.
func (a *Assembler) Unpcklps(dst, src XMM) { a.twoOpSSE(0, 0x14, dst, src) }

// UNPCKHPS dst, src — interleave the high two lanes of dst and src.
func (a *Assembler) Unpckhps(dst, src XMM) { a.twoOpSSE(0, 0x15, dst, src) }

// RCPPS dst, src — fast reciprocal approximation.
func (a *Assembler) Rcpps(dst, src XMM) { a.twoOpSSE(0, 0x53, dst, src) }

// RSQRTPS dst, src — fast reciprocal-sqrt approximation.
func (a *Assembler) Rsqrtps(dst, src XMM) { a.twoOpSSE(0, 0x52, dst, src) }

// CVTPS2DQ dst, src — round packed floats to packed int32 (0x66 prefix).
func (a *Assembler) Cvtps2dq(dst, src XMM) { a.twoOpSSE(0x66, 0x5B, dst, src) }

// CVTDQ2PS dst, src — convert packed int32 to packed float.
func (a *Assembler) Cvtdq2ps(dst, src XMM) { a.twoOpSSE(0, 0x5B, dst, src) }

// SHUFPS dst, src, imm8 — select a lane permutation of {dst,src}.
func (a *Assembler) Shufps(dst, src XMM, imm8 byte) {
	a.legacySSERex(dst, src)
	a.emit(0x0F, 0xC6, xmodRM(0xC0, dst, src), imm8)
}

// CMPPS dst, src, imm8 — packed compare, predicate in {0:EQ,1:LT,2:LE,4:NEQ,5:NLT,6:NLE}.
func (a *Assembler) Cmpps(dst, src XMM, imm8 byte) {
	a.legacySSERex(dst, src)
	a.emit(0x0F, 0xC2, xmodRM(0xC0, dst, src), imm8)
}

// CMPSS dst, src, imm8 — scalar (low-lane-only) compare, 0xF3 prefix.
func (a *Assembler) Cmpss(dst, src XMM, imm8 byte) {
	a.emit(0xF3)
	a.legacySSERex(dst, src)
	a.emit(0x0F, 0xC2, xmodRM(0xC0, dst, src), imm8)
}

// threeByteSSE41 emits the 0x66 0F 3A escape used by DPPS/ROUNDPS/BLENDPS.
func (a *Assembler) threeByteSSE41(opcode byte, dst, src XMM, imm8 byte) {
	a.emit(0x66)
	a.legacySSERex(dst, src)
	a.emit(0x0F, 0x3A, opcode, xmodRM(0xC0, dst, src), imm8)
}

// DPPS dst, src, imm8 — SSE4.1 packed dot product; imm8 selects which
// lanes of dst/src participate and which lanes of the result get the sum
// (0x7F = lanes 0-2 in, broadcast to all four lanes out; 0xFF = all four
// lanes in, broadcast to all four out).
func (a *Assembler) Dpps(dst, src XMM, imm8 byte) { a.threeByteSSE41(0x40, dst, src, imm8) }

// ROUNDPS dst, src, mode — SSE4.1 packed rounding; mode 1 selects
// round-toward-negative-infinity (floor).
func (a *Assembler) Roundps(dst, src XMM, mode byte) { a.threeByteSSE41(0x08, dst, src, mode) }

// BLENDPS dst, src, imm8 — SSE4.1 per-lane select: dst[i] = imm8 bit i ?
// src[i] : dst[i].
func (a *Assembler) Blendps(dst, src XMM, imm8 byte) { a.threeByteSSE41(0x0C, dst, src, imm8) }

// MovdRegToXmm: movd dst_xmm, src32 — moves the low 32 bits and zeroes
// the rest of the register, used to seed a broadcast constant before a
// SHUFPS spreads it across all four lanes.
func (a *Assembler) MovdRegToXmm(dst XMM, src Reg) {
	a.emit(0x66)
	if dst >= 8 || src >= 8 {
		a.emit(rex(false, dst >= 8, false, src >= 8))
	}
	a.emit(0x0F, 0x6E, xmodRM(0xC0, dst, XMM(src)))
}

// MovqXmmToReg: movq dst64, src_xmm — low 64 bits (two lanes) of src_xmm.
func (a *Assembler) MovqXmmToReg(dst Reg, src XMM) {
	a.emit(0x66, rex(true, src >= 8, false, dst >= 8), 0x0F, 0x7E, xmodRM(0xC0, src, XMM(dst)))
}

// MovdXmmToReg: movd dst32, src_xmm — zero-extends the low lane into the
// full 64-bit dst register; MOVA reads one address-register component out
// of lane 0 this way and sign-extends it afterwards with MOVSXD.
func (a *Assembler) MovdXmmToReg(dst Reg, src XMM) {
	if dst >= 8 || src >= 8 {
		a.emit(0x66, rex(false, src >= 8, false, dst >= 8), 0x0F, 0x7E, xmodRM(0xC0, src, XMM(dst)))
	} else {
		a.emit(0x66, 0x0F, 0x7E, xmodRM(0xC0, src, XMM(dst)))
	}
}

// MovqRegToXmm: movq dst_xmm, src64.
func (a *Assembler) MovqRegToXmm(dst XMM, src Reg) {
	a.emit(0x66, rex(true, dst >= 8, false, src >= 8), 0x0F, 0x6E, xmodRM(0xC0, dst, XMM(src)))
}

// vex3 emits a 3-byte VEX prefix (required for the 0F38 opcode map that
// VFMADD213PS lives in; the 2-byte VEX form can't address that map).
// r/b are the usual REX-style extension bits for the reg/rm fields; vvvv
// is the second source operand, not-inverted; l selects 128-bit (false)
// vs 256-bit (true) vector length; pp selects the implied legacy prefix
// (1 = 0x66).
func (a *Assembler) vex3(r, b bool, mmmmm byte, w bool, vvvv XMM, l bool, pp byte) {
	byte2 := mmmmm & 0x1F
	if !r {
		byte2 |= 0x80
	}
	byte2 |= 0x40 // X bit: always 1 (no SIB index) since only reg-reg forms are used
	if !b {
		byte2 |= 0x20
	}
	var byte3 byte
	if w {
		byte3 |= 0x80
	}
	byte3 |= (^byte(vvvv) & 0xF) << 3
	if l {
		byte3 |= 0x04
	}
	byte3 |= pp & 0x3
	a.emit(0xC4, byte2, byte3)
}

// VFMADD213PS dst, a, b — FMA3: dst = a*dst + b (the "213" operand order:
// src1=dst's prior value is operand 2 of the product, a is operand 1, b
// is the addend).
func (a *Assembler) Vfmadd213ps(dst, mulBy, addend XMM) {
	a.vex3(dst >= 8, addend >= 8, 0x02, false, mulBy, false, 0x1)
	a.emit(0xA8, xmodRM(0xC0, dst, addend))
}
