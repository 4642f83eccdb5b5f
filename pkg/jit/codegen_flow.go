//go:build linux && amd64

package jit

import (
	"fmt"

	"github.com/mattcackles/citra-1/pkg/isa"
	"github.com/mattcackles/citra-1/pkg/shaderctx"
)

// checkForwardTarget rejects a flow-control target that is not strictly
// forward of the instruction issuing it. This compiler patches every
// branch but LOOP's own backward one by resolving a pending fixup the
// first time compileBlock walks forward onto its target offset; a target
// at or before instrOffset would never be reached that way and would leave
// the fixup unpatched.
func checkForwardTarget(instrOffset, destOffset int) error {
	if destOffset <= instrOffset {
		return &Unsupported{Reason: fmt.Sprintf(
			"flow-control target %d is not forward of issuing instruction %d", destOffset, instrOffset)}
	}
	return nil
}

// evaluateCondition computes flow.Op(cc.x == flow.RefX, cc.y == flow.RefY)
// and leaves ZF set from a final TestRegReg, so the caller follows
// immediately with emitJzForward/emitJnzForward. Cond0/Cond1 hold CMP's
// truthy/falsy words, not normalized booleans, hence the TestRegReg+Setne
// pair to pin each down to 0/1 first. Setne only writes the low byte, so
// each result is zero-extended before the 64-bit Xor/Or/And/Test ops that
// follow — otherwise the stale high bits of scratchGPR/scratchGPR2 make
// the final TestRegReg see a nonzero value regardless of the real flag.
func (c *Compiler) evaluateCondition(flow isa.FlowOperands) {
	c.asm.TestRegReg(Cond0, Cond0)
	c.asm.Setne(scratchGPR)
	c.asm.MovzxRegReg8(scratchGPR, scratchGPR)
	if !flow.RefX {
		c.asm.XorRegImm32(scratchGPR, 1)
	}

	c.asm.TestRegReg(Cond1, Cond1)
	c.asm.Setne(scratchGPR2)
	c.asm.MovzxRegReg8(scratchGPR2, scratchGPR2)
	if !flow.RefY {
		c.asm.XorRegImm32(scratchGPR2, 1)
	}

	switch flow.Op {
	case isa.FlowOr:
		c.asm.OrRegReg(scratchGPR, scratchGPR2)
	case isa.FlowAnd:
		c.asm.AndRegReg(scratchGPR, scratchGPR2)
	case isa.FlowJustX:
		// scratchGPR already holds boolX.
	case isa.FlowJustY:
		c.asm.MovRegReg(scratchGPR, scratchGPR2)
	}
	c.asm.TestRegReg(scratchGPR, scratchGPR)
}

// evaluateBoolUniform tests uniform boolean id against zero, leaving ZF set
// the same way evaluateCondition does.
func (c *Compiler) evaluateBoolUniform(id int) {
	c.asm.CmpMem8Imm8(Uniforms, int32(shaderctx.BoolUniformOffset(id)), 0)
}

// compileCALL inlines the target subroutine's instructions at the call site.
func (c *Compiler) compileCALL(instr isa.Decoded, instrOffset int) error {
	flow := instr.Flow
	if err := checkForwardTarget(instrOffset, flow.DestOffset); err != nil {
		return err
	}
	start := flow.DestOffset
	stop := flow.DestOffset + flow.NumInstructions - 1
	return c.compileBlock(&start, stop)
}

// compileCALLC inlines the target subroutine only if the CC-derived
// condition holds.
func (c *Compiler) compileCALLC(instr isa.Decoded, instrOffset int) error {
	flow := instr.Flow
	if err := checkForwardTarget(instrOffset, flow.DestOffset); err != nil {
		return err
	}
	c.evaluateCondition(flow)
	skip := c.emitJzForward()

	start := flow.DestOffset
	stop := flow.DestOffset + flow.NumInstructions - 1
	if err := c.compileBlock(&start, stop); err != nil {
		return err
	}
	c.patch(skip)
	return nil
}

// compileCALLU inlines the target subroutine only if the given uniform
// boolean is set.
func (c *Compiler) compileCALLU(instr isa.Decoded, instrOffset int) error {
	flow := instr.Flow
	if err := checkForwardTarget(instrOffset, flow.DestOffset); err != nil {
		return err
	}
	c.evaluateBoolUniform(flow.BoolUniformID)
	skip := c.emitJzForward()

	start := flow.DestOffset
	stop := flow.DestOffset + flow.NumInstructions - 1
	if err := c.compileBlock(&start, stop); err != nil {
		return err
	}
	c.patch(skip)
	return nil
}

// compileIFC emits IFC's forward branch around the then-block, which the
// enclosing compileBlock walks through as ordinary instructions; when
// there's an else-block (NumInstructions > 0), an injection scheduled for
// the else-block's first offset emits the then-block's "skip the else" jump
// right where it belongs in the instruction stream — between the then-
// block's last instruction and the else-block's first.
func (c *Compiler) compileIFC(instr isa.Decoded, instrOffset int) error {
	flow := instr.Flow
	if err := checkForwardTarget(instrOffset, flow.DestOffset); err != nil {
		return err
	}
	c.evaluateCondition(flow)
	toElse := c.emitJzForward()
	c.pendingPatches[flow.DestOffset] = append(c.pendingPatches[flow.DestOffset], toElse)

	if flow.NumInstructions > 0 {
		endIf := flow.DestOffset + flow.NumInstructions
		c.injections[flow.DestOffset] = append(c.injections[flow.DestOffset], func() {
			toEndIf := c.emitJmpForward()
			c.pendingPatches[endIf] = append(c.pendingPatches[endIf], toEndIf)
		})
	}
	return nil
}

// compileIFU is IFC's uniform-boolean-conditioned counterpart.
func (c *Compiler) compileIFU(instr isa.Decoded, instrOffset int) error {
	flow := instr.Flow
	if err := checkForwardTarget(instrOffset, flow.DestOffset); err != nil {
		return err
	}
	c.evaluateBoolUniform(flow.BoolUniformID)
	toElse := c.emitJzForward()
	c.pendingPatches[flow.DestOffset] = append(c.pendingPatches[flow.DestOffset], toElse)

	if flow.NumInstructions > 0 {
		endIf := flow.DestOffset + flow.NumInstructions
		c.injections[flow.DestOffset] = append(c.injections[flow.DestOffset], func() {
			toEndIf := c.emitJmpForward()
			c.pendingPatches[endIf] = append(c.pendingPatches[endIf], toEndIf)
		})
	}
	return nil
}

// compileLOOP sets up the loop registers from the integer uniform's three
// packed bytes and schedules the single backward branch this compiler ever
// emits for the offset right past the body, which compileBlock reaches
// naturally since the body is just the next ordinary instructions in program
// order.
func (c *Compiler) compileLOOP(instr isa.Decoded, instrOffset int) error {
	if c.looping {
		return &Unsupported{Reason: "nested LOOP"}
	}
	flow := instr.Flow
	if err := checkForwardTarget(instrOffset, flow.DestOffset); err != nil {
		return err
	}
	disp := int32(shaderctx.IntUniformOffset(flow.IntUniformID))

	c.asm.MovRegMem32(scratchGPR, Uniforms, disp)
	c.asm.MovzxRegReg8(LoopCount, scratchGPR)
	c.asm.AddRegImm32(LoopCount, 1) // PICA LOOP runs (count+1) iterations

	c.asm.MovRegReg(scratchGPR2, scratchGPR)
	c.asm.ShrRegImm8(scratchGPR2, 8)
	c.asm.MovzxRegReg8(LoopCountReg, scratchGPR2)

	c.asm.MovRegReg(scratchGPR2, scratchGPR)
	c.asm.ShrRegImm8(scratchGPR2, 16)
	c.asm.MovzxRegReg8(LoopInc, scratchGPR2)

	c.looping = true
	loopTop := c.asm.Offset()
	bodyEnd := flow.DestOffset

	c.injections[bodyEnd] = append(c.injections[bodyEnd], func() {
		c.asm.AddRegReg(LoopCountReg, LoopInc)
		c.asm.SubRegImm32(LoopCount, 1)
		c.emitJnzBackward(loopTop)
		c.looping = false
	})
	return nil
}

// compileJMPC emits a forward branch to flow.DestOffset, taken when the CC-
// derived condition holds.
func (c *Compiler) compileJMPC(instr isa.Decoded, instrOffset int) error {
	flow := instr.Flow
	if err := checkForwardTarget(instrOffset, flow.DestOffset); err != nil {
		return err
	}
	c.evaluateCondition(flow)
	b := c.emitJnzForward()
	c.pendingPatches[flow.DestOffset] = append(c.pendingPatches[flow.DestOffset], b)
	return nil
}

// compileJMPU is JMPC's uniform-boolean-conditioned counterpart.
func (c *Compiler) compileJMPU(instr isa.Decoded, instrOffset int) error {
	flow := instr.Flow
	if err := checkForwardTarget(instrOffset, flow.DestOffset); err != nil {
		return err
	}
	c.evaluateBoolUniform(flow.BoolUniformID)
	b := c.emitJnzForward()
	c.pendingPatches[flow.DestOffset] = append(c.pendingPatches[flow.DestOffset], b)
	return nil
}
