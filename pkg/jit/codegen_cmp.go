//go:build linux && amd64

package jit

import "github.com/mattcackles/citra-1/pkg/isa"

// cmpPredicate maps a decoded CompareOp onto the CMPPS/CMPSS immediate that
// implements it.
func cmpPredicate(op isa.CompareOp) byte {
	switch op {
	case isa.CmpEQ:
		return 0x00
	case isa.CmpNE:
		return 0x04
	case isa.CmpLT:
		return 0x01
	case isa.CmpLE:
		return 0x02
	case isa.CmpGE:
		return 0x05
	case isa.CmpGT:
		return 0x06
	default:
		return 0x00
	}
}

// compileCMP emits CMP: compares src1.x against src2.x with CompareOpX and
// src1.y against src2.y with CompareOpY, leaving each result (all-ones or
// all-zero) in Cond0/Cond1 as a truthy/falsy 64-bit word — later condition
// evaluation only ever tests these for zero, so the exact nonzero pattern
// doesn't need normalizing to 1.
func (c *Compiler) compileCMP(instr isa.Decoded) {
	ops := instr.Common
	swz := c.prog.Swizzle(ops.OperandDescriptorID)

	c.swizzleLoad(xmmSrc1, ops.Src1, swz.Selector[0], swz.Negate[0], ops.AddressRegisterIndex, true)
	c.swizzleLoad(xmmSrc2, ops.Src2, swz.Selector[1], swz.Negate[1], ops.AddressRegisterIndex, false)

	c.asm.MovapsRegReg(xmmScratch, xmmSrc1)
	c.asm.Cmpss(xmmScratch, xmmSrc2, cmpPredicate(ops.CompareOpX))
	c.asm.MovdXmmToReg(Cond0, xmmScratch)

	c.asm.MovapsRegReg(xmmScratch, xmmSrc1)
	c.asm.Shufps(xmmScratch, xmmScratch, 0xE1) // bring y into lane 0
	c.asm.MovapsRegReg(xmmScratch2, xmmSrc2)
	c.asm.Shufps(xmmScratch2, xmmScratch2, 0xE1)
	c.asm.Cmpss(xmmScratch, xmmScratch2, cmpPredicate(ops.CompareOpY))
	c.asm.MovdXmmToReg(Cond1, xmmScratch)
}
