//go:build linux && amd64

// Package cache maps decoded shader programs to their compiled machine code,
// keyed by a content fingerprint, and evicts by flushing the whole code
// buffer at once rather than tracking per-entry lifetimes.
package cache

import (
	"encoding/binary"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/mattcackles/citra-1/pkg/codebuf"
	"github.com/mattcackles/citra-1/pkg/jit"
	"github.com/mattcackles/citra-1/pkg/metrics"
	"github.com/mattcackles/citra-1/pkg/shaderctx"
	"github.com/mattcackles/citra-1/pkg/x86asm"
)

// Fingerprint identifies a compiled program by its instruction stream,
// swizzle table, and entry offset. It is the XOR of three independent
// hashes (each the first 8 bytes of a BLAKE2b-512 digest) rather than a
// hash of the concatenation.
type Fingerprint uint64

// Fingerprint64 hashes the raw inputs a caller already has — the
// program's encoded instruction bytes, its swizzle table bytes, and the
// entry offset within the program — rather than re-deriving them from a
// decoded ProgramState. It recomputes all three hashes on every call.
func Fingerprint64(programBytes, swizzleBytes []byte, entryOffset int) Fingerprint {
	programHash := hash64(programBytes)
	swizzleHash := hash64(swizzleBytes)

	var offsetBuf [8]byte
	binary.LittleEndian.PutUint64(offsetBuf[:], uint64(entryOffset))
	offsetHash := hash64(offsetBuf[:])

	return Fingerprint(programHash ^ swizzleHash ^ offsetHash)
}

func hash64(data []byte) uint64 {
	sum := blake2b.Sum512(data)
	return binary.LittleEndian.Uint64(sum[:8])
}

// Cache maps fingerprints to compiled shaders backed by a single code
// buffer. It never evicts individual entries: Clear drops every entry and
// resets the buffer together, since a compiled shader's EntryPoint is
// meaningless once the bytes behind it have been overwritten.
type Cache struct {
	mu      sync.RWMutex
	entries map[Fingerprint]*jit.CompiledShader
	buf     *codebuf.Buffer
	metrics *metrics.Metrics
}

// New wraps buf with a lookup cache. metrics may be nil.
func New(buf *codebuf.Buffer, m *metrics.Metrics) *Cache {
	return &Cache{
		entries: make(map[Fingerprint]*jit.CompiledShader),
		buf:     buf,
		metrics: m,
	}
}

// Get returns the compiled shader for fp, if any.
func (c *Cache) Get(fp Fingerprint) (*jit.CompiledShader, bool) {
	c.mu.RLock()
	shader, ok := c.entries[fp]
	c.mu.RUnlock()

	if c.metrics != nil {
		if ok {
			c.metrics.CacheHits.Inc()
		} else {
			c.metrics.CacheMisses.Inc()
		}
	}
	return shader, ok
}

// Compile returns the cached shader for fp if there is one; otherwise it
// compiles prog and, on success, inserts the result under fp.
func (c *Cache) Compile(fp Fingerprint, prog *shaderctx.ProgramState, features x86asm.Features) (*jit.CompiledShader, error) {
	if shader, ok := c.Get(fp); ok {
		return shader, nil
	}

	compiler := jit.NewCompiler(c.buf, features)
	shader, err := compiler.Compile(prog)
	if err != nil {
		if c.metrics != nil {
			c.metrics.CompileFailures.Inc()
		}
		return nil, err
	}

	c.mu.Lock()
	c.entries[fp] = shader
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.CompiledShaders.Inc()
		c.metrics.CompiledBytes.Add(float64(shader.CodeSize))
		c.metrics.CodeBufferBytes.Set(float64(c.buf.Used()))
	}
	return shader, nil
}

// Clear evicts every cached shader and resets the underlying code buffer.
// This is the cache's only eviction path — there is no per-entry or LRU
// eviction, since a partially-freed code buffer has no way to reclaim the
// hole left behind.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[Fingerprint]*jit.CompiledShader)
	c.mu.Unlock()

	c.buf.Clear()
	if c.metrics != nil {
		c.metrics.CacheFlushes.Inc()
		c.metrics.CodeBufferBytes.Set(0)
	}
}

// Shutdown releases the underlying code buffer's mmap region. The Cache
// must not be used afterward.
func (c *Cache) Shutdown() error {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
	return c.buf.Free()
}

// Len reports the number of cached entries, for tests and diagnostics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
