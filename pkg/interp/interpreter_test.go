package interp

import (
	"errors"
	"math"
	"testing"

	"github.com/mattcackles/citra-1/pkg/isa"
	"github.com/mattcackles/citra-1/pkg/shaderctx"
)

// identitySwizzle packs a full write mask with the identity selector on
// all three source slots and no negation, the operand descriptor almost
// every test below reuses.
const identitySwizzle = uint32(0xF) | uint32(isa.IdentitySelector)<<4 | uint32(isa.IdentitySelector)<<12 | uint32(isa.IdentitySelector)<<20

func decodeOrFatal(t *testing.T, raw isa.RawInstruction) isa.Decoded {
	t.Helper()
	d, err := isa.Decode(raw)
	if err != nil {
		t.Fatalf("Decode(%+v): %v", raw, err)
	}
	return d
}

func newProgram(instrs []isa.Decoded, swizzle map[int]uint32) *shaderctx.ProgramState {
	prog := &shaderctx.ProgramState{Instructions: instrs}
	prog.SwizzleData[0] = identitySwizzle
	for id, word := range swizzle {
		prog.SwizzleData[id] = word
	}
	for i := range prog.InputRegisterMap {
		prog.InputRegisterMap[i] = uint8(i)
	}
	return prog
}

// TestRunADD runs ADD temp0, input0, input1; END with input registers
// preloaded, checking the straight-line arithmetic path.
func TestRunADD(t *testing.T) {
	instrs := []isa.Decoded{
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpADD, Dest: 0x10, Src1: 0x00, Src2: 0x01, OperandDescriptorID: 0}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpEND}),
	}
	prog := newProgram(instrs, nil)

	var state shaderctx.UnitState
	state.Input[0] = shaderctx.Vec4{1, 2, 3, 4}
	state.Input[1] = shaderctx.Vec4{10, 20, 30, 40}

	if err := Run(prog, &state, &prog.Uniforms); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := shaderctx.Vec4{11, 22, 33, 44}
	if state.Temporary[0] != want {
		t.Errorf("Temporary[0] = %v, want %v", state.Temporary[0], want)
	}
}

// TestRunMOVMasked checks that MOV only stores the write mask's enabled
// lanes, leaving the rest of the destination untouched.
func TestRunMOVMasked(t *testing.T) {
	maskXZ := uint32(0b0101) | uint32(isa.IdentitySelector)<<4
	instrs := []isa.Decoded{
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpMOV, Dest: 0x10, Src1: 0x00, OperandDescriptorID: 1}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpEND}),
	}
	prog := newProgram(instrs, map[int]uint32{1: maskXZ})

	var state shaderctx.UnitState
	state.Input[0] = shaderctx.Vec4{5, 6, 7, 8}
	state.Temporary[0] = shaderctx.Vec4{100, 200, 300, 400}

	if err := Run(prog, &state, &prog.Uniforms); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := shaderctx.Vec4{5, 200, 7, 400}
	if state.Temporary[0] != want {
		t.Errorf("Temporary[0] = %v, want %v", state.Temporary[0], want)
	}
}

// TestRunNegate checks that src1's negate bit flips all four lanes of that
// operand before the ADD uses it.
func TestRunNegate(t *testing.T) {
	negX := uint32(0xF) | uint32(isa.IdentitySelector)<<4 | uint32(isa.IdentitySelector)<<12 | 1<<28
	instrs := []isa.Decoded{
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpADD, Dest: 0x10, Src1: 0x00, Src2: 0x01, OperandDescriptorID: 1}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpEND}),
	}
	prog := newProgram(instrs, map[int]uint32{1: negX})

	var state shaderctx.UnitState
	state.Input[0] = shaderctx.Vec4{1, 1, 1, 1}
	state.Input[1] = shaderctx.Vec4{10, 10, 10, 10}

	if err := Run(prog, &state, &prog.Uniforms); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := shaderctx.Vec4{9, 9, 9, 9}
	if state.Temporary[0] != want {
		t.Errorf("Temporary[0] = %v, want %v", state.Temporary[0], want)
	}
}

func TestRunDP3AndDP4(t *testing.T) {
	instrs := []isa.Decoded{
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpDP3, Dest: 0x10, Src1: 0x00, Src2: 0x01, OperandDescriptorID: 0}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpDP4, Dest: 0x11, Src1: 0x00, Src2: 0x01, OperandDescriptorID: 0}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpEND}),
	}
	prog := newProgram(instrs, nil)

	var state shaderctx.UnitState
	state.Input[0] = shaderctx.Vec4{1, 2, 3, 4}
	state.Input[1] = shaderctx.Vec4{5, 6, 7, 8}

	if err := Run(prog, &state, &prog.Uniforms); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := float32(1*5 + 2*6 + 3*7); state.Temporary[0][0] != want {
		t.Errorf("DP3 = %v, want %v (broadcast across all lanes)", state.Temporary[0], want)
	}
	for lane, v := range state.Temporary[0] {
		if v != state.Temporary[0][0] {
			t.Errorf("DP3 lane %d = %v, not broadcast", lane, v)
		}
	}
	if want := float32(1*5 + 2*6 + 3*7 + 4*8); state.Temporary[1][0] != want {
		t.Errorf("DP4 = %v, want %v", state.Temporary[1], want)
	}
}

func TestRunMOVAThenIndexedRead(t *testing.T) {
	instrs := []isa.Decoded{
		// MOVA: address registers <- input0 truncated toward zero
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpMOVA, Src1: 0x00, OperandDescriptorID: 0}),
		// MOV temp0, input[2 + a0.x] with address_register_index 1
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpMOV, Dest: 0x10, Src1: 0x02, AddressRegisterIndex: 1, OperandDescriptorID: 0}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpEND}),
	}
	prog := newProgram(instrs, nil)

	var state shaderctx.UnitState
	state.Input[0] = shaderctx.Vec4{2, 0, 0, 0}
	state.Input[4] = shaderctx.Vec4{9, 9, 9, 9} // index 2 + a0.x(2) = 4

	if err := Run(prog, &state, &prog.Uniforms); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.AddressRegisters[0] != 2 {
		t.Errorf("AddressRegisters[0] = %d, want 2", state.AddressRegisters[0])
	}
	want := shaderctx.Vec4{9, 9, 9, 9}
	if state.Temporary[0] != want {
		t.Errorf("Temporary[0] = %v, want %v", state.Temporary[0], want)
	}
}

func TestRunSLTI(t *testing.T) {
	instrs := []isa.Decoded{
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpSLTI, Dest: 0x10, Src1: 0x00, Src2: 0x01, OperandDescriptorID: 0}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpEND}),
	}
	prog := newProgram(instrs, nil)

	var state shaderctx.UnitState
	state.Input[0] = shaderctx.Vec4{5, 5, 5, 5}
	state.Input[1] = shaderctx.Vec4{10, 10, 10, 10}

	if err := Run(prog, &state, &prog.Uniforms); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Temporary[0][0] != 1 {
		t.Errorf("SLTI(5<10) = %v, want all-lanes 1", state.Temporary[0])
	}
}

func TestRunCMPAndIFC(t *testing.T) {
	instrs := []isa.Decoded{
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpCMP, Src1: 0x00, Src2: 0x01, CompareOpX: isa.CmpLT, CompareOpY: isa.CmpLT}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpIFC, DestOffset: 4, NumInstructions: 2, Op: isa.FlowAnd, RefX: true, RefY: true}),
		// then-block: temp0 = input0 (taken when 1<2)
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpMOV, Dest: 0x10, Src1: 0x00, OperandDescriptorID: 0}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpEND}),
		// else-block: temp0 = input1
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpMOV, Dest: 0x10, Src1: 0x01, OperandDescriptorID: 0}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpEND}),
	}
	prog := newProgram(instrs, nil)

	var state shaderctx.UnitState
	state.Input[0] = shaderctx.Vec4{1, 1, 1, 1}
	state.Input[1] = shaderctx.Vec4{2, 2, 2, 2}

	if err := Run(prog, &state, &prog.Uniforms); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := shaderctx.Vec4{1, 1, 1, 1}
	if state.Temporary[0] != want {
		t.Errorf("Temporary[0] = %v, want %v (then-block taken)", state.Temporary[0], want)
	}
}

func TestRunLOOP(t *testing.T) {
	instrs := []isa.Decoded{
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpLOOP, DestOffset: 2, IntUniformID: 0}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpADD, Dest: 0x10, Src1: 0x10, Src2: 0x00, OperandDescriptorID: 0}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpEND}),
	}
	prog := newProgram(instrs, nil)
	prog.Uniforms.I[0] = shaderctx.IntVec4{2, 0, 1, 0} // 3 iterations

	var state shaderctx.UnitState
	state.Input[0] = shaderctx.Vec4{1, 1, 1, 1}

	if err := Run(prog, &state, &prog.Uniforms); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := shaderctx.Vec4{3, 3, 3, 3}
	if state.Temporary[0] != want {
		t.Errorf("Temporary[0] = %v, want %v after 3 iterations", state.Temporary[0], want)
	}
	if state.LoopCounter != 3 {
		t.Errorf("LoopCounter = %d, want 3", state.LoopCounter)
	}
}

func TestRunCALL(t *testing.T) {
	instrs := []isa.Decoded{
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpCALL, DestOffset: 2, NumInstructions: 1}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpEND}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpMOV, Dest: 0x10, Src1: 0x00, OperandDescriptorID: 0}),
	}
	prog := newProgram(instrs, nil)

	var state shaderctx.UnitState
	state.Input[0] = shaderctx.Vec4{7, 7, 7, 7}

	if err := Run(prog, &state, &prog.Uniforms); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := shaderctx.Vec4{7, 7, 7, 7}
	if state.Temporary[0] != want {
		t.Errorf("Temporary[0] = %v, want %v", state.Temporary[0], want)
	}
}

func TestRunRCPAndRSQ(t *testing.T) {
	instrs := []isa.Decoded{
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpRCP, Dest: 0x10, Src1: 0x00, OperandDescriptorID: 0}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpRSQ, Dest: 0x11, Src1: 0x01, OperandDescriptorID: 0}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpEND}),
	}
	prog := newProgram(instrs, nil)

	var state shaderctx.UnitState
	state.Input[0] = shaderctx.Vec4{4, 0, 0, 0}
	state.Input[1] = shaderctx.Vec4{4, 0, 0, 0}

	if err := Run(prog, &state, &prog.Uniforms); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := state.Temporary[0][0], float32(0.25); got != want {
		t.Errorf("RCP(4) = %v, want %v", got, want)
	}
	if got, want := state.Temporary[1][0], float32(0.5); math.Abs(float64(got-want)) > 1e-6 {
		t.Errorf("RSQ(4) = %v, want %v", got, want)
	}
}

func TestUnhandledOpcode(t *testing.T) {
	prog := newProgram([]isa.Decoded{{Opcode: isa.OpEX2}}, nil)
	var state shaderctx.UnitState
	err := Run(prog, &state, &prog.Uniforms)
	var unhandled *isa.UnhandledOpcode
	if err == nil {
		t.Fatal("expected UnhandledOpcode error")
	}
	if !errors.As(err, &unhandled) {
		t.Errorf("err = %v, want wrapping *isa.UnhandledOpcode", err)
	}
}
