//go:build linux && amd64

// Package jit compiles a decoded PICA200 vertex shader program into a single
// x86-64 function. It never re-enters mid-function the way a basic-block JIT
// would: CALL inlines its target at compile time, IF/LOOP/JMP are
// structured, and there are no dynamic jump targets, so one Compile call
// always emits exactly one function.
package jit

import (
	"encoding/binary"
	"fmt"

	"github.com/mattcackles/citra-1/pkg/codebuf"
	"github.com/mattcackles/citra-1/pkg/isa"
	"github.com/mattcackles/citra-1/pkg/shaderctx"
	"github.com/mattcackles/citra-1/pkg/x86asm"
)

// Register convention. Registers = incoming UnitState pointer, Uniforms =
// incoming UniformBlock pointer — both System V ABI argument registers, so
// neither needs a load from a captured global.
const (
	Registers = x86asm.RDI
	Uniforms  = x86asm.RSI

	AddrReg0     = x86asm.R10
	AddrReg1     = x86asm.R11
	LoopCountReg = x86asm.R12
	LoopCount    = x86asm.R13
	LoopInc      = x86asm.R14
	Cond0        = x86asm.RBX
	Cond1        = x86asm.RBP

	scratchGPR  = x86asm.RAX
	scratchGPR2 = x86asm.R9
)

const (
	xmmScratch  = x86asm.XMM0
	xmmSrc1     = x86asm.XMM1
	xmmSrc2     = x86asm.XMM2
	xmmSrc3     = x86asm.XMM3
	xmmScratch2 = x86asm.XMM4
	xmmOne      = x86asm.XMM14
	xmmNegBit   = x86asm.XMM15
)

// calleeSaved lists the general-purpose registers Compile's generated
// function must preserve across the call, in push order.
var calleeSaved = []x86asm.Reg{x86asm.RBX, x86asm.RBP, x86asm.R12, x86asm.R13, x86asm.R14}

// CompiledShader is the result of compiling one vertex shader program.
type CompiledShader struct {
	EntryPoint uintptr
	CodeSize   int
}

// Unsupported reports a program shape this compiler refuses to compile
// rather than miscompile: a nested LOOP (the hardware has only one loop
// counter, so LOOP bodies cannot nest) or a flow-control target that is
// not strictly forward of the instruction issuing it (this compiler emits
// exactly one backward branch, LOOP's own, and resolves every other branch
// by patching a pending fixup the first time compilation reaches its
// target offset — a target at or before the issuing instruction would
// never be reached forward and would leave that fixup unpatched).
type Unsupported struct {
	Reason string
}

func (e *Unsupported) Error() string {
	return fmt.Sprintf("jit: unsupported: %s", e.Reason)
}

// FixupBranch is a token returned by a forward-branch emission; Patch
// fills in its displacement once the branch target's address is known.
type FixupBranch struct {
	offset int
}

// Compiler turns a decoded program into one compiled function. A fresh
// Compiler is used per shader; Runtime owns the underlying code buffer
// and CPU-feature detection shared across compiles.
type Compiler struct {
	buf      *codebuf.Buffer
	features x86asm.Features
	asm      *x86asm.Assembler
	prog     *shaderctx.ProgramState
	looping  bool

	// pendingPatches holds forward branches keyed by the PICA instruction
	// offset they target; resolved the moment compileNext reaches that offset,
	// since every PICA-level forward branch (IF's else-jump and end-of-if
	// jump, JMPC/JMPU) only ever targets a point later in the program.
	pendingPatches map[int][]FixupBranch

	// injections holds code to emit right before compileNext compiles the
	// instruction at a given offset — used for IF's "skip the else block"
	// jump and LOOP's "branch back to the top" sequence, both of which must
	// be emitted between the then-block/body and what follows it rather
	// than at the point the IF/LOOP instruction itself was decoded.
	injections map[int][]func()
}

// NewCompiler targets buf for code storage and features for dispatching
// between SSE4.1/FMA3 fast paths and their SSE2 fallbacks.
func NewCompiler(buf *codebuf.Buffer, features x86asm.Features) *Compiler {
	return &Compiler{buf: buf, features: features}
}

// estimateSize is a generous per-instruction byte budget with a floor for
// very short programs, sized to avoid a mid-compile buffer reallocation.
func estimateSize(numInstructions int) int {
	size := 256 * numInstructions
	if size < 1024 {
		size = 1024
	}
	return size
}

// Compile emits one function implementing prog, entered with Registers
// pointing at the invocation's UnitState and Uniforms at the shared
// UniformBlock.
func (c *Compiler) Compile(prog *shaderctx.ProgramState) (*CompiledShader, error) {
	size := estimateSize(len(prog.Instructions))
	addr, mem, err := c.buf.Allocate(size)
	if err != nil {
		return nil, fmt.Errorf("jit: allocate code: %w", err)
	}

	c.asm = x86asm.NewAssembler(mem)
	c.prog = prog
	c.looping = false
	c.pendingPatches = make(map[int][]FixupBranch)
	c.injections = make(map[int][]func())

	c.emitPrologue()
	offset := prog.MainOffset
	last := len(prog.Instructions) - 1
	if err := c.compileBlock(&offset, last); err != nil {
		return nil, err
	}
	c.flushPending(offset)
	if last < 0 || prog.Instructions[last].Opcode.EffectiveOpcode() != isa.OpEND {
		// Fall-through past the last instruction without an explicit END
		// still needs a well-formed return; compileNext's OpEND case already
		// emitted one if the program ends on END.
		c.emitEpilogue()
	}

	return &CompiledShader{EntryPoint: addr, CodeSize: c.asm.Offset()}, nil
}

func (c *Compiler) emitPrologue() {
	for _, r := range calleeSaved {
		c.asm.Push(r)
	}

	// AddrReg0/AddrReg1/LoopCountReg cache UnitState's address registers and
	// loop counter as sign-extended element offsets (not byte offsets — the
	// x86-level ×16 byte stride is applied only at the point an indexed load
	// actually uses one, in addressIndexReg) so the values this function reads
	// and writes back agree with the interpreter's plain element-index
	// arithmetic.
	c.asm.MovRegMem32(AddrReg0, Registers, int32(shaderctx.AddressRegisterOffset(0)))
	c.asm.MovsxdRegReg(AddrReg0, AddrReg0)
	c.asm.MovRegMem32(AddrReg1, Registers, int32(shaderctx.AddressRegisterOffset(1)))
	c.asm.MovsxdRegReg(AddrReg1, AddrReg1)
	c.asm.MovRegMem32(LoopCountReg, Registers, int32(shaderctx.LoopCounterOffset()))
	c.asm.MovsxdRegReg(LoopCountReg, LoopCountReg)

	c.loadBroadcastConstant(xmmOne, 0x3F800000)    // 1.0f in every lane
	c.loadBroadcastConstant(xmmNegBit, 0x80000000) // sign bit in every lane
}

// loadBroadcastConstant seeds dst's low lane from an integer bit pattern
// and spreads it across all four lanes with an identity-source SHUFPS,
// avoiding the need for a data-in-code constant pool.
func (c *Compiler) loadBroadcastConstant(dst x86asm.XMM, bits uint32) {
	c.asm.MovRegImm32SignExt(scratchGPR, int32(bits))
	c.asm.MovdRegToXmm(dst, scratchGPR)
	c.asm.Shufps(dst, dst, 0x00)
}

func (c *Compiler) emitEpilogue() {
	// Write the cached address registers and loop counter back before
	// returning, so UnitState reflects the same values the interpreter would
	// have left there.
	c.asm.MovMemReg32(Registers, int32(shaderctx.AddressRegisterOffset(0)), AddrReg0)
	c.asm.MovMemReg32(Registers, int32(shaderctx.AddressRegisterOffset(1)), AddrReg1)
	c.asm.MovMemReg32(Registers, int32(shaderctx.LoopCounterOffset()), LoopCountReg)

	for i := len(calleeSaved) - 1; i >= 0; i-- {
		c.asm.Pop(calleeSaved[i])
	}
	c.asm.Ret()
}

// compileBlock compiles instructions forward from *offset through stop
// inclusive, the shared primitive CALL/IF/LOOP/JMP bodies all use.
func (c *Compiler) compileBlock(offset *int, stop int) error {
	for *offset <= stop {
		if err := c.compileNext(offset); err != nil {
			return err
		}
	}
	return nil
}

// flushPending runs any injection and patches any forward branch scheduled
// for offset — the counterpart compileNext needs at the top of the program
// body, and Compile needs once more after the body's last instruction, for
// a block whose branch target is the first offset past the end.
func (c *Compiler) flushPending(offset int) {
	for _, fn := range c.injections[offset] {
		fn()
	}
	delete(c.injections, offset)
	for _, b := range c.pendingPatches[offset] {
		c.patch(b)
	}
	delete(c.pendingPatches, offset)
}

// compileNext decodes and emits the single instruction at *offset,
// advancing it past that instruction. Any injection or pending patch
// scheduled for *offset runs first, in that order: an injection (e.g.
// LOOP's branch-back, IF's skip-else jump) establishes the code a pending
// patch at this same offset needs to land just after.
func (c *Compiler) compileNext(offset *int) error {
	c.flushPending(*offset)

	instrOffset := *offset
	instr := c.prog.Instructions[*offset]
	*offset++

	switch instr.Opcode.EffectiveOpcode() {
	case isa.OpADD, isa.OpMUL, isa.OpMAX, isa.OpMIN:
		c.compileArith(instr)
	case isa.OpDP3:
		c.compileDP3(instr)
	case isa.OpDP4:
		c.compileDP4(instr)
	case isa.OpFLR:
		c.compileFLR(instr)
	case isa.OpRCP:
		c.compileRCP(instr)
	case isa.OpRSQ:
		c.compileRSQ(instr)
	case isa.OpMOV:
		c.compileMOV(instr)
	case isa.OpMOVA:
		c.compileMOVA(instr)
	case isa.OpSLTI:
		c.compileSLTI(instr)
	case isa.OpCMP:
		c.compileCMP(instr)
	case isa.OpMAD:
		c.compileMAD(instr)
	case isa.OpNOP:
		// emits nothing
	case isa.OpEND:
		c.emitEpilogue()
	case isa.OpCALL:
		return c.compileCALL(instr, instrOffset)
	case isa.OpCALLC:
		return c.compileCALLC(instr, instrOffset)
	case isa.OpCALLU:
		return c.compileCALLU(instr, instrOffset)
	case isa.OpIFC:
		return c.compileIFC(instr, instrOffset)
	case isa.OpIFU:
		return c.compileIFU(instr, instrOffset)
	case isa.OpLOOP:
		return c.compileLOOP(instr, instrOffset)
	case isa.OpJMPC:
		return c.compileJMPC(instr, instrOffset)
	case isa.OpJMPU:
		return c.compileJMPU(instr, instrOffset)
	default:
		return fmt.Errorf("jit: %w", &isa.UnhandledOpcode{Op: instr.Opcode})
	}
	return nil
}

func (c *Compiler) emitJmpForward() FixupBranch {
	c.asm.JmpRel32(0)
	return FixupBranch{offset: c.asm.Offset() - 4}
}

func (c *Compiler) emitJzForward() FixupBranch {
	c.asm.JzNear(0)
	return FixupBranch{offset: c.asm.Offset() - 4}
}

func (c *Compiler) emitJnzForward() FixupBranch {
	c.asm.JnzNear(0)
	return FixupBranch{offset: c.asm.Offset() - 4}
}

// patch fills in a forward branch's displacement now that its target —
// the current write position — is known.
func (c *Compiler) patch(b FixupBranch) {
	target := c.asm.Offset()
	rel := int32(target - (b.offset + 4))
	binary.LittleEndian.PutUint32(c.asm.Bytes()[b.offset:], uint32(rel))
}

// emitJnzBackward emits a jump to a target offset already behind the current
// write position — the single backward branch this compiler ever emits, used
// only to close LOOP's x86-level loop.
func (c *Compiler) emitJnzBackward(target int) {
	rel := int32(target - (c.asm.Offset() + 6))
	c.asm.JnzNear(rel)
}
