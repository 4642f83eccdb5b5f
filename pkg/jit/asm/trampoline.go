//go:build linux && amd64

// Package asm declares the entry point into JIT-compiled shader code. The
// call itself is hand-written Go assembly (trampoline_amd64.s) since there
// is no other way to jump to a runtime-generated address with the System V
// AMD64 ABI's calling convention from pure Go.
package asm

import "unsafe"

// CallCompiled invokes a CompiledShader's entry point with state and
// uniforms as its two pointer arguments, matching the register convention
// pkg/jit's Compiler emits against (Registers=RDI, Uniforms=RSI).
func CallCompiled(entry uintptr, state, uniforms unsafe.Pointer)
