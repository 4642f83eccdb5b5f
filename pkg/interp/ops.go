package interp

import (
	"math"

	"github.com/mattcackles/citra-1/pkg/isa"
	"github.com/mattcackles/citra-1/pkg/shaderctx"
)

// addressOffset resolves operand-descriptor field address_register_index
// (1/2/3) to the element offset it contributes, mirroring the JIT's
// addressIndexReg but in the interpreter's plain-element-index world.
func (i *interpreter) addressOffset(index int) int {
	switch index {
	case 1:
		return int(i.state.AddressRegisters[0])
	case 2:
		return int(i.state.AddressRegisters[1])
	case 3:
		return int(i.state.LoopCounter)
	default:
		return 0
	}
}

// readSource resolves a decoded source operand, its swizzle selector and
// negate bit, and (for the offset-eligible slot) the address-register
// index, into the Vec4 the instruction actually computes with.
func (i *interpreter) readSource(reg isa.SourceRegister, selector uint8, negate bool, addressIndex int, offsetEligible bool) shaderctx.Vec4 {
	idx := reg.Index
	if offsetEligible && addressIndex != 0 {
		idx += i.addressOffset(addressIndex)
	}

	var v shaderctx.Vec4
	switch reg.Type {
	case isa.Input:
		v = i.state.Input[idx]
	case isa.Temporary:
		v = i.state.Temporary[idx]
	case isa.FloatUniform:
		v = i.uniforms.F[idx]
	}

	out := shaderctx.Vec4{
		v[isa.LaneSelect(selector, 0)],
		v[isa.LaneSelect(selector, 1)],
		v[isa.LaneSelect(selector, 2)],
		v[isa.LaneSelect(selector, 3)],
	}
	if negate {
		out[0], out[1], out[2], out[3] = -out[0], -out[1], -out[2], -out[3]
	}
	return out
}

// writeDest stores v into dest, honoring the swizzle's write mask.
func (i *interpreter) writeDest(dest isa.DestRegister, v shaderctx.Vec4, mask isa.Swizzle) {
	var target *shaderctx.Vec4
	if dest.Type == isa.Output {
		target = &i.state.Output[dest.Index]
	} else {
		target = &i.state.Temporary[dest.Index]
	}
	for lane := 0; lane < 4; lane++ {
		if mask.DestComponentEnabled(lane) {
			target[lane] = v[lane]
		}
	}
}

func (i *interpreter) arith(instr isa.Decoded) {
	ops := instr.Common
	swz := i.prog.Swizzle(ops.OperandDescriptorID)
	a := i.readSource(ops.Src1, swz.Selector[0], swz.Negate[0], ops.AddressRegisterIndex, true)
	b := i.readSource(ops.Src2, swz.Selector[1], swz.Negate[1], ops.AddressRegisterIndex, false)

	var out shaderctx.Vec4
	for lane := 0; lane < 4; lane++ {
		switch instr.Opcode.EffectiveOpcode() {
		case isa.OpADD:
			out[lane] = a[lane] + b[lane]
		case isa.OpMUL:
			out[lane] = a[lane] * b[lane]
		case isa.OpMAX:
			out[lane] = max32f(a[lane], b[lane])
		case isa.OpMIN:
			out[lane] = min32f(a[lane], b[lane])
		}
	}
	i.writeDest(ops.Dest, out, swz)
}

func (i *interpreter) dot(instr isa.Decoded, components int) {
	ops := instr.Common
	swz := i.prog.Swizzle(ops.OperandDescriptorID)
	a := i.readSource(ops.Src1, swz.Selector[0], swz.Negate[0], ops.AddressRegisterIndex, true)
	b := i.readSource(ops.Src2, swz.Selector[1], swz.Negate[1], ops.AddressRegisterIndex, false)

	var sum float32
	for lane := 0; lane < components; lane++ {
		sum += a[lane] * b[lane]
	}
	i.writeDest(ops.Dest, shaderctx.Vec4{sum, sum, sum, sum}, swz)
}

func (i *interpreter) unary(instr isa.Decoded, f func(shaderctx.Vec4) shaderctx.Vec4) {
	ops := instr.Common
	swz := i.prog.Swizzle(ops.OperandDescriptorID)
	a := i.readSource(ops.Src1, swz.Selector[0], swz.Negate[0], ops.AddressRegisterIndex, true)
	i.writeDest(ops.Dest, f(a), swz)
}

func (i *interpreter) unaryBroadcast(instr isa.Decoded, f func(float32) float32) {
	i.unary(instr, func(v shaderctx.Vec4) shaderctx.Vec4 {
		r := f(v[0])
		return shaderctx.Vec4{r, r, r, r}
	})
}

func (i *interpreter) mov(instr isa.Decoded) {
	ops := instr.Common
	swz := i.prog.Swizzle(ops.OperandDescriptorID)
	a := i.readSource(ops.Src1, swz.Selector[0], swz.Negate[0], ops.AddressRegisterIndex, true)
	i.writeDest(ops.Dest, a, swz)
}

func (i *interpreter) mova(instr isa.Decoded) {
	ops := instr.Common
	swz := i.prog.Swizzle(ops.OperandDescriptorID)
	a := i.readSource(ops.Src1, swz.Selector[0], swz.Negate[0], ops.AddressRegisterIndex, true)

	if swz.DestComponentEnabled(0) {
		i.state.AddressRegisters[0] = int32(math.Trunc(float64(a[0])))
	}
	if swz.DestComponentEnabled(1) {
		i.state.AddressRegisters[1] = int32(math.Trunc(float64(a[1])))
	}
}

// slti implements SLTI: a scalar "set less than", broadcast to every enabled
// lane: src1.x < src2.x. SrcInversed only changes which source field is the
// wide one, so src2 rather than src1 is the address-offset-eligible operand.
func (i *interpreter) slti(instr isa.Decoded) {
	ops := instr.Common
	swz := i.prog.Swizzle(ops.OperandDescriptorID)
	a := i.readSource(ops.Src1, swz.Selector[0], swz.Negate[0], ops.AddressRegisterIndex, false)
	b := i.readSource(ops.Src2, swz.Selector[1], swz.Negate[1], ops.AddressRegisterIndex, true)

	var r float32
	if a[0] < b[0] {
		r = 1
	}
	i.writeDest(ops.Dest, shaderctx.Vec4{r, r, r, r}, swz)
}

func (i *interpreter) mad(instr isa.Decoded) {
	ops := instr.MAD
	swz := i.prog.Swizzle(ops.OperandDescriptorID)
	a := i.readSource(ops.Src1, swz.Selector[0], swz.Negate[0], 0, false)
	b := i.readSource(ops.Src2, swz.Selector[1], swz.Negate[1], 0, false)
	c := i.readSource(ops.Src3, swz.Selector[2], swz.Negate[2], 0, false)

	var out shaderctx.Vec4
	for lane := 0; lane < 4; lane++ {
		out[lane] = a[lane]*b[lane] + c[lane]
	}
	i.writeDest(ops.Dest, out, swz)
}

// cmp implements CMP: compares src1.x/src2.x with CompareOpX and
// src1.y/src2.y with CompareOpY, storing the two results into the condition-
// code flags.
func (i *interpreter) cmp(instr isa.Decoded) {
	ops := instr.Common
	swz := i.prog.Swizzle(ops.OperandDescriptorID)
	a := i.readSource(ops.Src1, swz.Selector[0], swz.Negate[0], ops.AddressRegisterIndex, true)
	b := i.readSource(ops.Src2, swz.Selector[1], swz.Negate[1], ops.AddressRegisterIndex, false)

	i.state.ConditionCode[0] = compare(ops.CompareOpX, a[0], b[0])
	i.state.ConditionCode[1] = compare(ops.CompareOpY, a[1], b[1])
}

func compare(op isa.CompareOp, x, y float32) bool {
	switch op {
	case isa.CmpEQ:
		return x == y
	case isa.CmpNE:
		return x != y
	case isa.CmpLT:
		return x < y
	case isa.CmpLE:
		return x <= y
	case isa.CmpGE:
		return x >= y
	case isa.CmpGT:
		return x > y
	default:
		return false
	}
}

// evalCondition applies flow.Op to the two condition-code flags against
// their reference values.
func (i *interpreter) evalCondition(flow isa.FlowOperands) bool {
	x := i.state.ConditionCode[0] == flow.RefX
	y := i.state.ConditionCode[1] == flow.RefY

	switch flow.Op {
	case isa.FlowOr:
		return x || y
	case isa.FlowAnd:
		return x && y
	case isa.FlowJustX:
		return x
	case isa.FlowJustY:
		return y
	default:
		return false
	}
}

func max32f(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func min32f(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
