// Package shaderctx defines the execution context, register files, and
// vertex/uniform data types shared by the interpreter and JIT backends.
package shaderctx

import (
	"unsafe"

	"github.com/mattcackles/citra-1/pkg/isa"
)

// Vec4 is a four-component float vector, the PICA200 shader register unit.
type Vec4 [4]float32

// UnitState is the per-invocation execution context: input/output/temporary
// register files, the two condition-code flags, the address registers (two
// signed offsets plus the loop counter), the program counter, and debug
// counters the interpreter maintains. Field order is part of the JIT/runtime
// contract: codegen addresses registers by offset (InputOffset,
// OutputOffset, TemporaryOffset), so reordering fields changes generated
// code, not just Go source. New fields go at the end.
type UnitState struct {
	Input     [16]Vec4
	Output    [16]Vec4
	Temporary [16]Vec4

	ConditionCode    [2]bool
	AddressRegisters [2]int32 // ADDROFFS_REG_0, ADDROFFS_REG_1
	LoopCounter      int32    // LOOPCOUNT_REG

	ProgramCounter uint32

	// Maintained by the interpreter only; the JIT inlines CALL targets at
	// compile time and has no per-instruction dispatch loop to instrument.
	DebugMaxOffset   uint32
	DebugMaxOpdescID uint32
}

var zeroState UnitState

// InputOffset returns the byte offset of input register index within
// UnitState.
func InputOffset(index int) uintptr {
	return uintptr(index)*unsafe.Sizeof(Vec4{}) + unsafe.Offsetof(zeroState.Input)
}

// OutputOffset returns the byte offset of output register index.
func OutputOffset(index int) uintptr {
	return uintptr(index)*unsafe.Sizeof(Vec4{}) + unsafe.Offsetof(zeroState.Output)
}

// TemporaryOffset returns the byte offset of temporary register index.
func TemporaryOffset(index int) uintptr {
	return uintptr(index)*unsafe.Sizeof(Vec4{}) + unsafe.Offsetof(zeroState.Temporary)
}

// AddressRegisterOffset returns the byte offset of ADDROFFS_REG_0 (index
// 0) or ADDROFFS_REG_1 (index 1).
func AddressRegisterOffset(index int) uintptr {
	return uintptr(index)*unsafe.Sizeof(int32(0)) + unsafe.Offsetof(zeroState.AddressRegisters)
}

// LoopCounterOffset returns the byte offset of LOOPCOUNT_REG.
func LoopCounterOffset() uintptr {
	return unsafe.Offsetof(zeroState.LoopCounter)
}

// SourceOffset resolves a decoded source operand to its UnitState byte
// offset. Float-uniform operands have no UnitState offset — the caller
// must route those through the separate uniform-block pointer — and this
// panics if asked to, since reaching here with one is a decoder bug, not
// a runtime condition.
func SourceOffset(reg isa.SourceRegister) uintptr {
	switch reg.Type {
	case isa.Input:
		return InputOffset(reg.Index)
	case isa.Temporary:
		return TemporaryOffset(reg.Index)
	default:
		panic("shaderctx: float uniform operand has no UnitState offset")
	}
}

// DestOffset resolves a decoded destination operand to its UnitState byte
// offset.
func DestOffset(reg isa.DestRegister) uintptr {
	if reg.Type == isa.Output {
		return OutputOffset(reg.Index)
	}
	return TemporaryOffset(reg.Index)
}

// Reset clears the per-invocation state that Runner.Run must zero before
// dispatching into a shader: the condition codes and debug counters.
// Register contents and the program counter are overwritten by the caller,
// not cleared here.
func (u *UnitState) Reset() {
	u.ConditionCode[0] = false
	u.ConditionCode[1] = false
	u.DebugMaxOffset = 0
	u.DebugMaxOpdescID = 0
}
