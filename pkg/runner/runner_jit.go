//go:build linux && amd64

package runner

import (
	"encoding/binary"
	"fmt"
	"log"
	"strings"

	"github.com/mattcackles/citra-1/pkg/cache"
	"github.com/mattcackles/citra-1/pkg/jit"
	"github.com/mattcackles/citra-1/pkg/metrics"
	"github.com/mattcackles/citra-1/pkg/shaderctx"
)

// jitBackend compiles shaders through the JIT, caching by content
// fingerprint, and falls back to the interpreter for any program the
// compiler rejects.
type jitBackend struct {
	runtime *jit.Runtime
	cache   *cache.Cache
	metrics *metrics.Metrics
}

func newBackend(codeBufferSize int, m *metrics.Metrics) (backend, error) {
	rt, err := jit.NewRuntime(codeBufferSize)
	if err != nil {
		return nil, err
	}
	return &jitBackend{
		runtime: rt,
		cache:   cache.New(rt.Buffer(), m),
		metrics: m,
	}, nil
}

func (b *jitBackend) compile(prog *shaderctx.ProgramState) invokeFunc {
	shader, err := b.cache.Compile(fingerprint(prog), prog, b.runtime.Features())
	if err != nil {
		log.Printf("pica shader: jit compile failed, falling back to interpreter: %v", err)
		if b.metrics != nil {
			b.metrics.InterpreterCalls.Inc()
		}
		return nil
	}

	return func(state *shaderctx.UnitState, uniforms *shaderctx.UniformBlock) {
		jit.Invoke(shader, state, uniforms)
	}
}

func (b *jitBackend) shutdown() error {
	return b.cache.Shutdown()
}

// fingerprint hashes prog's decoded instruction stream and raw swizzle table
// into the content fingerprint cache.Compile keys on. isa.Decoded mixes
// plain int/bool fields encoding/binary can't lay out directly, so the
// instruction stream is hashed via a deterministic %+v encoding rather than
// a raw byte reinterpretation.
func fingerprint(prog *shaderctx.ProgramState) cache.Fingerprint {
	var programText strings.Builder
	for _, instr := range prog.Instructions {
		fmt.Fprintf(&programText, "%+v", instr)
	}

	swizzleBytes := make([]byte, len(prog.SwizzleData)*4)
	for i, word := range prog.SwizzleData {
		binary.LittleEndian.PutUint32(swizzleBytes[i*4:], word)
	}

	return cache.Fingerprint64([]byte(programText.String()), swizzleBytes, prog.MainOffset)
}
