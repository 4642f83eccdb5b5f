// Package interp is a pure-Go reference implementation of the PICA200
// vertex-shader opcode semantics, used as the JIT's fallback backend and as
// the oracle its output must agree with bit-for-bit (RCP and RSQ excepted:
// the JIT's hardware approximations agree only within an epsilon).
package interp

import (
	"fmt"
	"math"

	"github.com/mattcackles/citra-1/pkg/isa"
	"github.com/mattcackles/citra-1/pkg/shaderctx"
)

// Run executes prog against state, starting at prog.MainOffset, until it
// hits END or falls off the end of the instruction stream. It mutates state
// and returns an error only for an opcode Decode already rejected upstream —
// reaching one here means the caller skipped validation, not a runtime
// condition.
func Run(prog *shaderctx.ProgramState, state *shaderctx.UnitState, uniforms *shaderctx.UniformBlock) error {
	state.Reset()
	i := &interpreter{prog: prog, state: state, uniforms: uniforms}
	return i.run(prog.MainOffset, len(prog.Instructions)-1)
}

type interpreter struct {
	prog     *shaderctx.ProgramState
	state    *shaderctx.UnitState
	uniforms *shaderctx.UniformBlock
}

func (i *interpreter) run(offset, stop int) error {
	for offset <= stop {
		next, err := i.step(offset)
		if err != nil {
			return err
		}
		offset = next
	}
	return nil
}

// step executes the instruction at offset and returns where execution
// continues: offset+1 for straight-line code, or a jump target for
// control flow.
func (i *interpreter) step(offset int) (int, error) {
	instr := i.prog.Instructions[offset]
	i.state.DebugMaxOffset = max32(i.state.DebugMaxOffset, uint32(offset))

	switch instr.Opcode.EffectiveOpcode() {
	case isa.OpADD, isa.OpMUL, isa.OpMAX, isa.OpMIN:
		i.arith(instr)
	case isa.OpDP3:
		i.dot(instr, 3)
	case isa.OpDP4:
		i.dot(instr, 4)
	case isa.OpFLR:
		i.unary(instr, func(v shaderctx.Vec4) shaderctx.Vec4 {
			return shaderctx.Vec4{float32(math.Floor(float64(v[0]))), float32(math.Floor(float64(v[1]))), float32(math.Floor(float64(v[2]))), float32(math.Floor(float64(v[3])))}
		})
	case isa.OpRCP:
		i.unaryBroadcast(instr, func(x float32) float32 { return 1 / x })
	case isa.OpRSQ:
		i.unaryBroadcast(instr, func(x float32) float32 { return float32(1 / math.Sqrt(float64(x))) })
	case isa.OpMOV:
		i.mov(instr)
	case isa.OpMOVA:
		i.mova(instr)
	case isa.OpSLTI:
		i.slti(instr)
	case isa.OpCMP:
		i.cmp(instr)
	case isa.OpMAD:
		i.mad(instr)
	case isa.OpNOP:
	case isa.OpEND:
		return math.MaxInt32, nil
	case isa.OpCALL:
		if err := i.run(instr.Flow.DestOffset, instr.Flow.DestOffset+instr.Flow.NumInstructions-1); err != nil {
			return 0, err
		}
	case isa.OpCALLC:
		if i.evalCondition(instr.Flow) {
			if err := i.run(instr.Flow.DestOffset, instr.Flow.DestOffset+instr.Flow.NumInstructions-1); err != nil {
				return 0, err
			}
		}
	case isa.OpCALLU:
		if i.uniforms.B[instr.Flow.BoolUniformID] {
			if err := i.run(instr.Flow.DestOffset, instr.Flow.DestOffset+instr.Flow.NumInstructions-1); err != nil {
				return 0, err
			}
		}
	case isa.OpIFC:
		return i.runIf(offset, instr.Flow, i.evalCondition(instr.Flow))
	case isa.OpIFU:
		return i.runIf(offset, instr.Flow, i.uniforms.B[instr.Flow.BoolUniformID])
	case isa.OpLOOP:
		return i.runLoop(offset, instr.Flow)
	case isa.OpJMPC:
		if i.evalCondition(instr.Flow) {
			return instr.Flow.DestOffset, nil
		}
	case isa.OpJMPU:
		if i.uniforms.B[instr.Flow.BoolUniformID] {
			return instr.Flow.DestOffset, nil
		}
	default:
		return 0, fmt.Errorf("interp: %w", &isa.UnhandledOpcode{Op: instr.Opcode})
	}
	return offset + 1, nil
}

// runIf executes the then-block starting right after offset when cond is
// true, otherwise the else-block starting at flow.DestOffset, and returns
// the offset just past whichever block ran.
func (i *interpreter) runIf(offset int, flow isa.FlowOperands, cond bool) (int, error) {
	endIf := flow.DestOffset + flow.NumInstructions
	if cond {
		if err := i.run(offset+1, flow.DestOffset-1); err != nil {
			return 0, err
		}
	} else if flow.NumInstructions > 0 {
		if err := i.run(flow.DestOffset, endIf-1); err != nil {
			return 0, err
		}
	}
	if flow.NumInstructions > 0 {
		return endIf, nil
	}
	return flow.DestOffset, nil
}

// runLoop executes the body starting right after offset (count+1) times,
// updating LOOPCOUNT_REG by the uniform's increment each pass.
func (i *interpreter) runLoop(offset int, flow isa.FlowOperands) (int, error) {
	values := i.uniforms.I[flow.IntUniformID]
	count := int(values[0]) + 1
	i.state.LoopCounter = int32(values[1])
	increment := int32(values[2])

	bodyStart := offset + 1
	bodyEnd := flow.DestOffset - 1

	for n := 0; n < count; n++ {
		if err := i.run(bodyStart, bodyEnd); err != nil {
			return 0, err
		}
		i.state.LoopCounter += increment
	}
	return flow.DestOffset, nil
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
