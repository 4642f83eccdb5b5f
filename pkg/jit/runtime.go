//go:build linux && amd64

package jit

import (
	"unsafe"

	"github.com/mattcackles/citra-1/pkg/codebuf"
	"github.com/mattcackles/citra-1/pkg/jit/asm"
	"github.com/mattcackles/citra-1/pkg/shaderctx"
	"github.com/mattcackles/citra-1/pkg/x86asm"
)

// Runtime owns the code buffer and CPU-feature detection shared across every
// shader this process compiles, so features are queried once instead of per-
// shader.
type Runtime struct {
	buf      *codebuf.Buffer
	features x86asm.Features
}

// NewRuntime allocates a code buffer of the given size (0 selects
// codebuf.DefaultSize) and detects the host CPU's SSE4.1/FMA3 support.
func NewRuntime(codeBufferSize int) (*Runtime, error) {
	buf, err := codebuf.New(codeBufferSize)
	if err != nil {
		return nil, err
	}
	return &Runtime{buf: buf, features: x86asm.DetectFeatures()}, nil
}

// Buffer exposes the underlying code buffer, for a Cache to wrap.
func (r *Runtime) Buffer() *codebuf.Buffer { return r.buf }

// Features reports the CPU features this runtime detected.
func (r *Runtime) Features() x86asm.Features { return r.features }

// Compile compiles prog against this runtime's code buffer and features.
func (r *Runtime) Compile(prog *shaderctx.ProgramState) (*CompiledShader, error) {
	return NewCompiler(r.buf, r.features).Compile(prog)
}

// Invoke runs a compiled shader against state and uniforms via the System V
// trampoline.
func Invoke(shader *CompiledShader, state *shaderctx.UnitState, uniforms *shaderctx.UniformBlock) {
	asm.CallCompiled(shader.EntryPoint, unsafe.Pointer(state), unsafe.Pointer(uniforms))
}

// Shutdown releases the runtime's code buffer.
func (r *Runtime) Shutdown() error {
	return r.buf.Free()
}
