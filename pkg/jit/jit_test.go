//go:build linux && amd64

package jit

import (
	"math"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"

	"github.com/mattcackles/citra-1/pkg/codebuf"
	"github.com/mattcackles/citra-1/pkg/interp"
	"github.com/mattcackles/citra-1/pkg/isa"
	"github.com/mattcackles/citra-1/pkg/jit/asm"
	"github.com/mattcackles/citra-1/pkg/shaderctx"
	"github.com/mattcackles/citra-1/pkg/x86asm"
)

const identitySwizzle = uint32(0xF) | uint32(isa.IdentitySelector)<<4 | uint32(isa.IdentitySelector)<<12 | uint32(isa.IdentitySelector)<<20

func decodeOrFatal(t *testing.T, raw isa.RawInstruction) isa.Decoded {
	t.Helper()
	d, err := isa.Decode(raw)
	if err != nil {
		t.Fatalf("Decode(%+v): %v", raw, err)
	}
	return d
}

func newProgram(instrs []isa.Decoded) *shaderctx.ProgramState {
	prog := &shaderctx.ProgramState{Instructions: instrs}
	prog.SwizzleData[0] = identitySwizzle
	for i := range prog.InputRegisterMap {
		prog.InputRegisterMap[i] = uint8(i)
	}
	return prog
}

// compileAndRun allocates a fresh code buffer, compiles prog, and invokes
// the result against state.
func compileAndRun(t *testing.T, prog *shaderctx.ProgramState, state *shaderctx.UnitState) {
	t.Helper()
	buf, err := codebuf.New(64 * 1024)
	if err != nil {
		t.Fatalf("codebuf.New: %v", err)
	}
	defer buf.Free()

	shader, err := NewCompiler(buf, x86asm.DetectFeatures()).Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	asm.CallCompiled(shader.EntryPoint, unsafe.Pointer(state), unsafe.Pointer(&prog.Uniforms))
}

func TestJITAddAgreesWithInterpreter(t *testing.T) {
	instrs := []isa.Decoded{
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpADD, Dest: 0x10, Src1: 0x00, Src2: 0x01}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpEND}),
	}

	jitProg := newProgram(instrs)
	var jitState shaderctx.UnitState
	jitState.Input[0] = shaderctx.Vec4{1, 2, 3, 4}
	jitState.Input[1] = shaderctx.Vec4{10, 20, 30, 40}
	compileAndRun(t, jitProg, &jitState)

	interpProg := newProgram(instrs)
	var interpState shaderctx.UnitState
	interpState.Input[0] = shaderctx.Vec4{1, 2, 3, 4}
	interpState.Input[1] = shaderctx.Vec4{10, 20, 30, 40}
	if err := interp.Run(interpProg, &interpState, &interpProg.Uniforms); err != nil {
		t.Fatalf("interp.Run: %v", err)
	}

	if diff := cmp.Diff(interpState.Temporary, jitState.Temporary); diff != "" {
		t.Errorf("JIT and interpreter disagree on ADD (-interp +jit):\n%s", diff)
	}
}

func TestJITDP4AgreesWithInterpreter(t *testing.T) {
	instrs := []isa.Decoded{
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpDP4, Dest: 0x10, Src1: 0x00, Src2: 0x01}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpEND}),
	}

	mk := func() (*shaderctx.ProgramState, *shaderctx.UnitState) {
		prog := newProgram(instrs)
		var state shaderctx.UnitState
		state.Input[0] = shaderctx.Vec4{1, 2, 3, 4}
		state.Input[1] = shaderctx.Vec4{5, 6, 7, 8}
		return prog, &state
	}

	jitProg, jitState := mk()
	compileAndRun(t, jitProg, jitState)

	interpProg, interpState := mk()
	if err := interp.Run(interpProg, interpState, &interpProg.Uniforms); err != nil {
		t.Fatalf("interp.Run: %v", err)
	}

	if diff := cmp.Diff(interpState.Temporary, jitState.Temporary); diff != "" {
		t.Errorf("JIT and interpreter disagree on DP4 (-interp +jit):\n%s", diff)
	}
}

// TestJITMOVAAddressRegisterRoundTrip checks that an address register the
// JIT sets via MOVA both indexes a later load correctly and survives the
// epilogue's write-back into UnitState.
func TestJITMOVAAddressRegisterRoundTrip(t *testing.T) {
	instrs := []isa.Decoded{
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpMOVA, Src1: 0x00}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpMOV, Dest: 0x10, Src1: 0x02, AddressRegisterIndex: 1}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpEND}),
	}
	prog := newProgram(instrs)

	var state shaderctx.UnitState
	state.Input[0] = shaderctx.Vec4{2, 0, 0, 0}
	state.Input[4] = shaderctx.Vec4{9, 9, 9, 9} // index 2 + a0.x(2) = 4

	compileAndRun(t, prog, &state)

	if state.AddressRegisters[0] != 2 {
		t.Errorf("AddressRegisters[0] = %d, want 2", state.AddressRegisters[0])
	}
	want := shaderctx.Vec4{9, 9, 9, 9}
	if state.Temporary[0] != want {
		t.Errorf("Temporary[0] = %v, want %v", state.Temporary[0], want)
	}
}

// TestJITRCPRSQApproximateEqual checks RCP/RSQ separately from the
// bit-exact equivalence tests above: the JIT emits RCPPS/RSQRTPS, SSE's
// low-precision hardware approximations, while the interpreter computes
// 1/x and 1/sqrt(x) exactly via math — they agree to roughly 12 bits of
// mantissa, not bit-for-bit, so this test tolerates an absolute epsilon
// instead of using cmp.Diff.
func TestJITRCPRSQApproximateEqual(t *testing.T) {
	instrs := []isa.Decoded{
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpRCP, Dest: 0x10, Src1: 0x00}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpRSQ, Dest: 0x11, Src1: 0x01}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpEND}),
	}

	mk := func() (*shaderctx.ProgramState, *shaderctx.UnitState) {
		prog := newProgram(instrs)
		var state shaderctx.UnitState
		state.Input[0] = shaderctx.Vec4{4, 0, 0, 0}
		state.Input[1] = shaderctx.Vec4{16, 0, 0, 0}
		return prog, &state
	}

	jitProg, jitState := mk()
	compileAndRun(t, jitProg, jitState)

	interpProg, interpState := mk()
	if err := interp.Run(interpProg, interpState, &interpProg.Uniforms); err != nil {
		t.Fatalf("interp.Run: %v", err)
	}

	const epsilon = 1e-3 // SSE RCPPS/RSQRTPS are ~12-bit approximations
	if !approxEqual(jitState.Temporary[0][0], interpState.Temporary[0][0], epsilon) {
		t.Errorf("RCP: jit = %v, interp = %v, diff exceeds epsilon %v", jitState.Temporary[0][0], interpState.Temporary[0][0], epsilon)
	}
	if !approxEqual(jitState.Temporary[1][0], interpState.Temporary[1][0], epsilon) {
		t.Errorf("RSQ: jit = %v, interp = %v, diff exceeds epsilon %v", jitState.Temporary[1][0], interpState.Temporary[1][0], epsilon)
	}
}

func approxEqual(a, b, epsilon float32) bool {
	return math.Abs(float64(a-b)) <= float64(epsilon)
}

func TestJITLoopAgreesWithInterpreter(t *testing.T) {
	instrs := []isa.Decoded{
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpLOOP, DestOffset: 2, IntUniformID: 0}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpADD, Dest: 0x10, Src1: 0x10, Src2: 0x00}),
		decodeOrFatal(t, isa.RawInstruction{Opcode: isa.OpEND}),
	}

	mk := func() (*shaderctx.ProgramState, *shaderctx.UnitState) {
		prog := newProgram(instrs)
		prog.Uniforms.I[0] = shaderctx.IntVec4{2, 0, 1, 0}
		var state shaderctx.UnitState
		state.Input[0] = shaderctx.Vec4{1, 1, 1, 1}
		return prog, &state
	}

	jitProg, jitState := mk()
	compileAndRun(t, jitProg, jitState)

	interpProg, interpState := mk()
	if err := interp.Run(interpProg, interpState, &interpProg.Uniforms); err != nil {
		t.Fatalf("interp.Run: %v", err)
	}

	if diff := cmp.Diff(interpState.Temporary, jitState.Temporary); diff != "" {
		t.Errorf("JIT and interpreter disagree on LOOP (-interp +jit):\n%s", diff)
	}
	if jitState.LoopCounter != interpState.LoopCounter {
		t.Errorf("LoopCounter: jit = %d, interp = %d", jitState.LoopCounter, interpState.LoopCounter)
	}
}
