//go:build linux && amd64

package jit

import "github.com/mattcackles/citra-1/pkg/isa"

// compileMOV emits MOV: swizzle-load src1 straight through to dst.
func (c *Compiler) compileMOV(instr isa.Decoded) {
	ops := instr.Common
	swz := c.prog.Swizzle(ops.OperandDescriptorID)

	c.swizzleLoad(xmmSrc1, ops.Src1, swz.Selector[0], swz.Negate[0], ops.AddressRegisterIndex, true)
	c.destStore(ops.Dest, xmmSrc1, swz)
}

// compileMOVA emits MOVA: convert src1's selected lanes to integers and
// extract them into the cached address registers as plain element offsets;
// the ×16 byte stride a later indexed load needs is applied at the point of
// use, in addressIndexReg, so these registers stay in the same units
// UnitState.AddressRegisters is read back in at the epilogue. Only the
// components the mask enables are written, matching the hardware's partial-
// MOVA semantics.
func (c *Compiler) compileMOVA(instr isa.Decoded) {
	ops := instr.Common
	swz := c.prog.Swizzle(ops.OperandDescriptorID)

	c.swizzleLoad(xmmSrc1, ops.Src1, swz.Selector[0], swz.Negate[0], ops.AddressRegisterIndex, true)
	c.asm.Cvtps2dq(xmmSrc1, xmmSrc1)

	if swz.DestComponentEnabled(0) {
		c.asm.MovdXmmToReg(scratchGPR, xmmSrc1)
		c.asm.MovsxdRegReg(AddrReg0, scratchGPR)
	}
	if swz.DestComponentEnabled(1) {
		c.asm.Shufps(xmmSrc1, xmmSrc1, 0xE1) // bring y into lane 0
		c.asm.MovdXmmToReg(scratchGPR, xmmSrc1)
		c.asm.MovsxdRegReg(AddrReg1, scratchGPR)
	}
}
