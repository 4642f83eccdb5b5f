//go:build linux && amd64

// Package codebuf manages the fixed-capacity page of executable memory the
// JIT compiler emits machine code into.
package codebuf

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultSize is the default code-buffer capacity: enough for a generous
// number of compiled shaders before a full flush is needed.
const DefaultSize = 4 * 1024 * 1024

// Buffer is mmap'd memory with execute permission that the compiler appends
// machine code into. It never shrinks or frees individual allocations — the
// cache that owns it evicts by clearing the whole buffer at once.
type Buffer struct {
	mem  []byte
	used int
	mu   sync.Mutex
}

// New allocates a Buffer of the given size via an anonymous RWX mmap
// region. size <= 0 selects DefaultSize.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		size = DefaultSize
	}

	mem, err := unix.Mmap(
		-1, 0,
		size,
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS,
	)
	if err != nil {
		return nil, fmt.Errorf("codebuf: mmap executable memory: %w", err)
	}

	return &Buffer{mem: mem}, nil
}

// Allocate reserves size bytes and returns their address plus a slice the
// caller writes machine code into.
func (b *Buffer) Allocate(size int) (uintptr, []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.used+size > len(b.mem) {
		return 0, nil, fmt.Errorf("codebuf: out of space: need %d, have %d", size, len(b.mem)-b.used)
	}

	slice := b.mem[b.used : b.used+size]
	addr := b.baseAddress() + uintptr(b.used)
	b.used += size

	return addr, slice, nil
}

func (b *Buffer) baseAddress() uintptr {
	if len(b.mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b.mem[0]))
}

// Clear resets the cursor, reusing the mapping for the next generation of
// compiled shaders, without releasing the mmap region itself.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.used = 0
}

// Free releases the mmap region. The Buffer must not be used afterward.
func (b *Buffer) Free() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mem == nil {
		return nil
	}
	err := unix.Munmap(b.mem)
	b.mem = nil
	b.used = 0
	return err
}

// Used reports how many bytes of the buffer are currently allocated.
func (b *Buffer) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// Capacity reports the buffer's total size.
func (b *Buffer) Capacity() int {
	return len(b.mem)
}

// Bytes returns a copy of size bytes starting at addr, or nil if the
// range falls outside the buffer.
func (b *Buffer) Bytes(addr uintptr, size int) []byte {
	offset := int(addr - b.baseAddress())
	if offset < 0 || offset+size > len(b.mem) {
		return nil
	}
	out := make([]byte, size)
	copy(out, b.mem[offset:offset+size])
	return out
}
