//go:build linux && amd64

package jit

import "github.com/mattcackles/citra-1/pkg/isa"

// compileSLTI emits SLTI: a scalar "set less than", evaluated on lane 0 only
// and then broadcast through the destination mask the same as every other
// common-family op. SrcInversed only changes which source field is the wide
// one, so src2 rather than src1 is the address-offset-eligible operand; the
// comparison itself is src1 < src2.
func (c *Compiler) compileSLTI(instr isa.Decoded) {
	ops := instr.Common
	swz := c.prog.Swizzle(ops.OperandDescriptorID)

	c.swizzleLoad(xmmSrc1, ops.Src1, swz.Selector[0], swz.Negate[0], ops.AddressRegisterIndex, false)
	c.swizzleLoad(xmmSrc2, ops.Src2, swz.Selector[1], swz.Negate[1], ops.AddressRegisterIndex, true)

	c.asm.Cmpss(xmmSrc1, xmmSrc2, 0x01) // CMPLTSS: lane0 = (src1 < src2) ? all-ones : 0
	c.asm.Andps(xmmSrc1, xmmOne)        // lane0 = 1.0 or 0.0
	c.asm.Shufps(xmmSrc1, xmmSrc1, 0x00)

	c.destStore(ops.Dest, xmmSrc1, swz)
}

// compileRCP emits RCP: reciprocal of src1's lane 0, broadcast to all four
// lanes.
func (c *Compiler) compileRCP(instr isa.Decoded) {
	c.compileUnaryBroadcast(instr, func() {
		c.asm.Rcpps(xmmSrc1, xmmSrc1)
	})
}

// compileRSQ emits RSQ: reciprocal square root of src1's lane 0, broadcast
// to all four lanes.
func (c *Compiler) compileRSQ(instr isa.Decoded) {
	c.compileUnaryBroadcast(instr, func() {
		c.asm.Rsqrtps(xmmSrc1, xmmSrc1)
	})
}

// compileFLR emits FLR: componentwise floor. ROUNDPS(mode=1, round-down)
// on SSE4.1; the fallback rounds to the nearest integer via CVTPS2DQ/
// CVTDQ2PS and corrects values that rounded up by subtracting 1.0 where the
// rounded value exceeds the original.
func (c *Compiler) compileFLR(instr isa.Decoded) {
	ops := instr.Common
	swz := c.prog.Swizzle(ops.OperandDescriptorID)

	c.swizzleLoad(xmmSrc1, ops.Src1, swz.Selector[0], swz.Negate[0], ops.AddressRegisterIndex, true)

	if c.features.SSE41 {
		c.asm.Roundps(xmmSrc1, xmmSrc1, 0x01)
	} else {
		c.asm.MovapsRegReg(xmmScratch2, xmmSrc1)
		c.asm.Cvtps2dq(xmmSrc1, xmmSrc1)
		c.asm.Cvtdq2ps(xmmSrc1, xmmSrc1)
		// The rounded value is one too high for any non-integer that
		// rounded up; CMPLTPS + AND + SUB corrects those lanes.
		c.asm.Cmpps(xmmScratch2, xmmSrc1, 0x01) // mask = (original < rounded)
		c.asm.Andps(xmmScratch2, xmmOne)
		c.asm.Subps(xmmSrc1, xmmScratch2)
	}

	c.destStore(ops.Dest, xmmSrc1, swz)
}

func (c *Compiler) compileUnaryBroadcast(instr isa.Decoded, op func()) {
	ops := instr.Common
	swz := c.prog.Swizzle(ops.OperandDescriptorID)

	c.swizzleLoad(xmmSrc1, ops.Src1, swz.Selector[0], swz.Negate[0], ops.AddressRegisterIndex, true)
	op()
	c.asm.Shufps(xmmSrc1, xmmSrc1, 0x00)

	c.destStore(ops.Dest, xmmSrc1, swz)
}
