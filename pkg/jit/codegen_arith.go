//go:build linux && amd64

package jit

import "github.com/mattcackles/citra-1/pkg/isa"

// compileArith emits ADD/MUL/MAX/MIN: load both sources, apply the SSE op,
// store through the destination mask.
func (c *Compiler) compileArith(instr isa.Decoded) {
	ops := instr.Common
	swz := c.prog.Swizzle(ops.OperandDescriptorID)

	c.swizzleLoad(xmmSrc1, ops.Src1, swz.Selector[0], swz.Negate[0], ops.AddressRegisterIndex, true)
	c.swizzleLoad(xmmSrc2, ops.Src2, swz.Selector[1], swz.Negate[1], ops.AddressRegisterIndex, false)

	switch instr.Opcode.EffectiveOpcode() {
	case isa.OpADD:
		c.asm.Addps(xmmSrc1, xmmSrc2)
	case isa.OpMUL:
		c.asm.Mulps(xmmSrc1, xmmSrc2)
	case isa.OpMAX:
		c.asm.Maxps(xmmSrc1, xmmSrc2)
	case isa.OpMIN:
		c.asm.Minps(xmmSrc1, xmmSrc2)
	}

	c.destStore(ops.Dest, xmmSrc1, swz)
}
