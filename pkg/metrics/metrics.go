// Package metrics exposes Prometheus counters and gauges for the shader
// compiler and cache, registered against a caller-supplied registry so a
// process embedding this module can serve them alongside its own.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every counter/gauge the JIT and cache update. It has no
// methods of its own; every user checks for a nil *Metrics before touching
// a field, so callers that don't want metrics can pass nil and skip
// registration entirely.
type Metrics struct {
	CompiledShaders  prometheus.Counter
	CompileFailures  prometheus.Counter
	CompiledBytes    prometheus.Counter
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheFlushes     prometheus.Counter
	CodeBufferBytes  prometheus.Gauge
	InterpreterCalls prometheus.Counter
}

// New constructs a Metrics and registers it against reg. reg may be
// prometheus.NewRegistry() for isolated tests or prometheus.DefaultRegisterer
// for a process-wide registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CompiledShaders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pica_jit",
			Name:      "compiled_shaders_total",
			Help:      "Vertex shader programs successfully compiled to machine code.",
		}),
		CompileFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pica_jit",
			Name:      "compile_failures_total",
			Help:      "Compile attempts that failed, usually on an unhandled opcode.",
		}),
		CompiledBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pica_jit",
			Name:      "compiled_bytes_total",
			Help:      "Machine code bytes emitted into the code buffer.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pica_jit",
			Name:      "cache_hits_total",
			Help:      "Compiled-shader cache lookups that found an existing entry.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pica_jit",
			Name:      "cache_misses_total",
			Help:      "Compiled-shader cache lookups that required a fresh compile.",
		}),
		CacheFlushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pica_jit",
			Name:      "cache_flushes_total",
			Help:      "Full cache evictions, each a code-buffer reset.",
		}),
		CodeBufferBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pica_jit",
			Name:      "code_buffer_used_bytes",
			Help:      "Bytes currently allocated out of the code buffer's fixed capacity.",
		}),
		InterpreterCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pica_jit",
			Name:      "interpreter_calls_total",
			Help:      "Shader setups routed to the reference interpreter instead of JIT code.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.CompiledShaders, m.CompileFailures, m.CompiledBytes,
			m.CacheHits, m.CacheMisses, m.CacheFlushes,
			m.CodeBufferBytes, m.InterpreterCalls,
		)
	}
	return m
}
