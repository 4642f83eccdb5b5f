//go:build linux && amd64

package jit

import (
	"github.com/mattcackles/citra-1/pkg/isa"
	"github.com/mattcackles/citra-1/pkg/shaderctx"
	"github.com/mattcackles/citra-1/pkg/x86asm"
)

// addressIndexReg resolves operand-descriptor field address_register_index
// (1/2/3) to an x86 register holding the selected element offset shifted
// into a byte offset (×16, a Vec4's size) — computed here rather than kept
// pre-shifted in AddrReg0/AddrReg1/LoopCountReg, since those also get read
// back into UnitState as plain element offsets and a stored pre-shifted
// value would corrupt that round trip.
func (c *Compiler) addressIndexReg(index int) x86asm.Reg {
	var src x86asm.Reg
	switch index {
	case 1:
		src = AddrReg0
	case 2:
		src = AddrReg1
	case 3:
		src = LoopCountReg
	default:
		return 0
	}
	c.asm.MovRegReg(scratchGPR2, src)
	c.asm.ShlRegImm8(scratchGPR2, 4)
	return scratchGPR2
}

// swizzleLoad loads source operand src into dst, applying the operand's
// selector and negate bit: 1. resolve the base pointer and offset (UNIFORMS
// for float uniforms, REGISTERS for input/temporary); 2. if
// address_register_index selects one of the address registers and this is
// the offset-eligible source slot, load indexed instead of direct; 3. MOVAPS
// the four lanes in; 4. unless the selector is the identity swizzle, reverse
// its four 2-bit fields (isa.ShuffleImm) and SHUFPS; 5. if the negate bit is
// set, XORPS against the pinned sign-bit mask.
func (c *Compiler) swizzleLoad(dst x86asm.XMM, reg isa.SourceRegister, sel uint8, negate bool, addressRegisterIndex int, offsetEligible bool) {
	base, disp := c.operandLocation(reg)

	if offsetEligible && addressRegisterIndex != 0 {
		idx := c.addressIndexReg(addressRegisterIndex)
		c.asm.MovapsRegMemIdx(dst, base, idx, disp)
	} else {
		c.asm.MovapsRegMem(dst, base, disp)
	}

	if !isa.IsIdentity(sel) {
		c.asm.Shufps(dst, dst, isa.ShuffleImm(sel))
	}
	if negate {
		c.asm.Xorps(dst, xmmNegBit)
	}
}

// operandLocation resolves a decoded source register to a (base, disp)
// x86 memory operand: float uniforms live behind the Uniforms pointer,
// everything else behind Registers.
func (c *Compiler) operandLocation(reg isa.SourceRegister) (base x86asm.Reg, disp int32) {
	if reg.Type == isa.FloatUniform {
		return Uniforms, int32(shaderctx.FloatUniformOffset(reg.Index))
	}
	return Registers, int32(shaderctx.SourceOffset(reg))
}

// destStore writes src into dest according to the operand descriptor's write
// mask: - a full mask stores unmasked; - otherwise load the current
// destination value, blend in src's enabled lanes (BLENDPS on SSE4.1, or an
// UNPCK/SHUFPS sequence as a fallback), and store the blended result.
func (c *Compiler) destStore(dest isa.DestRegister, src x86asm.XMM, mask isa.Swizzle) {
	disp := int32(shaderctx.DestOffset(dest))

	if mask.FullMask() {
		c.asm.MovapsMemReg(Registers, disp, src)
		return
	}

	c.asm.MovapsRegMem(xmmScratch, Registers, disp)
	if c.features.SSE41 {
		c.asm.Blendps(xmmScratch, src, isa.BlendImm(mask.DestMask))
	} else {
		c.asm.MovapsRegReg(xmmScratch2, src)
		c.asm.Unpckhps(xmmScratch2, xmmScratch)
		c.asm.Unpcklps(xmmScratch, src)
		c.asm.Shufps(xmmScratch, xmmScratch2, fallbackBlendSelector(mask))
	}
	c.asm.MovapsMemReg(Registers, disp, xmmScratch)
}

// fallbackBlendSelector builds the SHUFPS immediate the non-SSE4.1 dest
// store path uses once UNPCKLPS/UNPCKHPS have interleaved src and the old
// destination value, selecting whichever lane of the interleaved pair
// carries the enabled component for each output lane.
func fallbackBlendSelector(mask isa.Swizzle) byte {
	sel := byte(0)
	if mask.DestComponentEnabled(0) {
		sel |= 1 << 0
	}
	if mask.DestComponentEnabled(1) {
		sel |= 3 << 2
	} else {
		sel |= 2 << 2
	}
	if !mask.DestComponentEnabled(2) {
		sel |= 1 << 4
	}
	if mask.DestComponentEnabled(3) {
		sel |= 2 << 6
	} else {
		sel |= 3 << 6
	}
	return sel
}
