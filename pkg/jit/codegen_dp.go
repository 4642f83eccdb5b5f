//go:build linux && amd64

package jit

import "github.com/mattcackles/citra-1/pkg/isa"

// compileDP3 emits DP3: a three-component dot product broadcast into all
// four destination lanes. DPPS(0x7F) on SSE4.1 computes it directly (source
// mask = xyz, broadcast mask = xyzw); the SSE2 fallback folds x+y+z by hand
// since there's no single instruction that ignores the w lane pre-SSE4.1.
func (c *Compiler) compileDP3(instr isa.Decoded) {
	ops := instr.Common
	swz := c.prog.Swizzle(ops.OperandDescriptorID)

	c.swizzleLoad(xmmSrc1, ops.Src1, swz.Selector[0], swz.Negate[0], ops.AddressRegisterIndex, true)
	c.swizzleLoad(xmmSrc2, ops.Src2, swz.Selector[1], swz.Negate[1], ops.AddressRegisterIndex, false)

	if c.features.SSE41 {
		c.asm.Dpps(xmmSrc1, xmmSrc2, 0x7F)
	} else {
		c.asm.Mulps(xmmSrc1, xmmSrc2) // [x,y,z,w]
		c.asm.MovapsRegReg(xmmScratch2, xmmSrc1)
		c.asm.MovapsRegReg(xmmScratch, xmmSrc1)
		c.asm.Shufps(xmmScratch, xmmScratch, 0x01) // lane0 = y
		c.asm.Addps(xmmSrc1, xmmScratch)           // lane0 = x+y
		c.asm.MovapsRegReg(xmmScratch, xmmScratch2)
		c.asm.Shufps(xmmScratch, xmmScratch, 0xAA) // lane0 = z (from original product)
		c.asm.Addps(xmmSrc1, xmmScratch)           // lane0 = x+y+z
		c.asm.Shufps(xmmSrc1, xmmSrc1, 0x00)       // broadcast to all lanes
	}

	c.destStore(ops.Dest, xmmSrc1, swz)
}

// compileDP4 emits DP4: the full four-component dot product, DPPS(0xFF) on
// SSE4.1, otherwise folded by two pair-swap-and-add steps that leave every
// lane holding the total.
func (c *Compiler) compileDP4(instr isa.Decoded) {
	ops := instr.Common
	swz := c.prog.Swizzle(ops.OperandDescriptorID)

	c.swizzleLoad(xmmSrc1, ops.Src1, swz.Selector[0], swz.Negate[0], ops.AddressRegisterIndex, true)
	c.swizzleLoad(xmmSrc2, ops.Src2, swz.Selector[1], swz.Negate[1], ops.AddressRegisterIndex, false)

	if c.features.SSE41 {
		c.asm.Dpps(xmmSrc1, xmmSrc2, 0xFF)
	} else {
		c.asm.Mulps(xmmSrc1, xmmSrc2)              // [x,y,z,w]
		c.asm.MovapsRegReg(xmmScratch, xmmSrc1)
		c.asm.Shufps(xmmScratch, xmmScratch, 0xB1) // [y,x,w,z]
		c.asm.Addps(xmmSrc1, xmmScratch)           // [x+y,x+y,z+w,z+w]
		c.asm.MovapsRegReg(xmmScratch, xmmSrc1)
		c.asm.Shufps(xmmScratch, xmmScratch, 0x4E) // swap low/high halves
		c.asm.Addps(xmmSrc1, xmmScratch)           // every lane = x+y+z+w
	}

	c.destStore(ops.Dest, xmmSrc1, swz)
}
