//go:build !linux || !amd64

package runner

import (
	"github.com/mattcackles/citra-1/pkg/metrics"
	"github.com/mattcackles/citra-1/pkg/shaderctx"
)

// interpBackend is the runner's backend on platforms the JIT doesn't
// support: compile always declines, so Run always falls through to the
// interpreter.
type interpBackend struct {
	metrics *metrics.Metrics
}

func newBackend(codeBufferSize int, m *metrics.Metrics) (backend, error) {
	return &interpBackend{metrics: m}, nil
}

func (b *interpBackend) compile(prog *shaderctx.ProgramState) invokeFunc {
	if b.metrics != nil {
		b.metrics.InterpreterCalls.Inc()
	}
	return nil
}

func (b *interpBackend) shutdown() error { return nil }
