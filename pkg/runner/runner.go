// Package runner implements the shader core's three pipeline entry points —
// Setup, Run, Shutdown — dispatching each vertex to the JIT where the
// platform supports it and to the interpreter otherwise.
package runner

import (
	"github.com/mattcackles/citra-1/pkg/interp"
	"github.com/mattcackles/citra-1/pkg/metrics"
	"github.com/mattcackles/citra-1/pkg/shaderctx"
)

// backend compiles (or declines to compile) a program for the current
// platform. Implemented once per build: runner_jit.go's jitBackend on
// linux/amd64, runner_stub.go's interpBackend everywhere else.
type backend interface {
	compile(prog *shaderctx.ProgramState) invokeFunc
	shutdown() error
}

// invokeFunc runs a compiled shader's body against state and uniforms. A
// nil invokeFunc, returned by compile whenever native code isn't
// available, means Run should fall back to the interpreter.
type invokeFunc func(state *shaderctx.UnitState, uniforms *shaderctx.UniformBlock)

// Runner holds the current draw's compiled-or-interpreter shader between
// Setup and Run calls.
type Runner struct {
	backend backend

	prog   *shaderctx.ProgramState
	invoke invokeFunc
}

// New constructs a Runner. codeBufferSize sizes the JIT's code buffer (0
// selects a default) and is ignored on platforms where the JIT is
// compiled out. m may be nil.
func New(codeBufferSize int, m *metrics.Metrics) (*Runner, error) {
	b, err := newBackend(codeBufferSize, m)
	if err != nil {
		return nil, err
	}
	return &Runner{backend: b}, nil
}

// Setup prepares prog for the Run calls that follow: on a capable platform
// this fingerprints prog, looks it up in the compiled-shader cache, and
// compiles it on a miss; a compile failure downgrades this shader to the
// interpreter rather than failing the draw.
func (r *Runner) Setup(prog *shaderctx.ProgramState) {
	r.prog = prog
	r.invoke = r.backend.compile(prog)
}

// Run executes the shader Setup last prepared against one input vertex: copy
// the first numAttributes attribute vectors into the input register file per
// InputRegisterMap, dispatch to the compiled function or the interpreter,
// then extract the colour-clamped output vertex.
func (r *Runner) Run(input shaderctx.InputVertex, numAttributes int) (shaderctx.OutputVertex, error) {
	var state shaderctx.UnitState
	state.Reset()

	if numAttributes > len(input.Attr) {
		numAttributes = len(input.Attr)
	}
	for attr := 0; attr < numAttributes; attr++ {
		state.Input[r.prog.InputRegisterMap[attr]] = input.Attr[attr]
	}

	if r.invoke != nil {
		r.invoke(&state, &r.prog.Uniforms)
	} else if err := interp.Run(r.prog, &state, &r.prog.Uniforms); err != nil {
		return shaderctx.OutputVertex{}, err
	}

	return extractOutput(r.prog, &state), nil
}

// Shutdown releases the cache and, through it, the code region beneath it:
// the cache must be torn down before the code buffer it hands shaders out
// of is freed.
func (r *Runner) Shutdown() error {
	return r.backend.shutdown()
}

// extractOutput maps state's output registers into an OutputVertex per
// prog.OutputAttributes, zeroing any lane with no semantic mapped and
// applying the hardware's saturate-and-abs colour clamp.
func extractOutput(prog *shaderctx.ProgramState, state *shaderctx.UnitState) shaderctx.OutputVertex {
	var out shaderctx.OutputVertex
	for slot, attr := range prog.OutputAttributes {
		reg := state.Output[slot]
		setLane(&out, attr.MapX, reg[0])
		setLane(&out, attr.MapY, reg[1])
		setLane(&out, attr.MapZ, reg[2])
		setLane(&out, attr.MapW, reg[3])
	}

	c := out.Color()
	out.SetColor(saturateAbs(c[0]), saturateAbs(c[1]), saturateAbs(c[2]), saturateAbs(c[3]))
	return out
}

// setLane leaves an INVALID-mapped lane at its zero value, matching the
// explicit zeroing the hardware does to keep denormals out of later
// interpolation — out starts zeroed each Run, so there is nothing further to
// clear.
func setLane(out *shaderctx.OutputVertex, sem shaderctx.Semantic, v float32) {
	if sem == shaderctx.SemanticInvalid {
		return
	}
	out.Set(sem, v)
}

// saturateAbs reproduces the hardware's pre-interpolation colour clamp:
// min(|c|, 1.0).
func saturateAbs(c float32) float32 {
	if c < 0 {
		c = -c
	}
	if c > 1 {
		c = 1
	}
	return c
}
