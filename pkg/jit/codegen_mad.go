//go:build linux && amd64

package jit

import "github.com/mattcackles/citra-1/pkg/isa"

// compileMAD emits MAD/MADI: dst = src1*src2 + src3. VFMADD213PS computes it
// directly on FMA3 (src1 = src2*src1 + src3, which is the same product
// commuted); the fallback does a separate MULPS/ADDPS.
func (c *Compiler) compileMAD(instr isa.Decoded) {
	ops := instr.MAD
	swz := c.prog.Swizzle(ops.OperandDescriptorID)

	c.swizzleLoad(xmmSrc1, ops.Src1, swz.Selector[0], swz.Negate[0], 0, false)
	c.swizzleLoad(xmmSrc2, ops.Src2, swz.Selector[1], swz.Negate[1], 0, false)
	c.swizzleLoad(xmmSrc3, ops.Src3, swz.Selector[2], swz.Negate[2], 0, false)

	if c.features.FMA3 {
		c.asm.Vfmadd213ps(xmmSrc1, xmmSrc2, xmmSrc3)
	} else {
		c.asm.Mulps(xmmSrc1, xmmSrc2)
		c.asm.Addps(xmmSrc1, xmmSrc3)
	}

	c.destStore(ops.Dest, xmmSrc1, swz)
}
