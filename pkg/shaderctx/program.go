package shaderctx

import "github.com/mattcackles/citra-1/pkg/isa"

// ProgramState is the minimal view this module needs of the surrounding PICA
// register file: a decoded instruction stream, the raw swizzle-descriptor
// table, the uniform block, the shader's entry offset, and the
// attribute/output wiring the runner needs to marshal vertices in and out.
// Instructions are decoded once, by whatever hands a ProgramState to
// Runner.Setup, rather than re-parsed from raw words on every compile or
// interpret pass.
type ProgramState struct {
	Instructions []isa.Decoded
	SwizzleData  [128]uint32
	Uniforms     UniformBlock

	MainOffset int

	// InputRegisterMap[n] is the input register that vertex attribute n is
	// copied into at the start of Run.
	InputRegisterMap [16]uint8

	// OutputAttributes[i] names the semantics that output register i's
	// four lanes feed; only output registers with a corresponding entry
	// here are extracted into the result vertex.
	OutputAttributes [7]VSOutputAttribute
}

// Swizzle decodes the operand-descriptor entry id from the raw swizzle
// table.
func (p *ProgramState) Swizzle(id int) isa.Swizzle {
	return isa.DecodeSwizzle(p.SwizzleData[id])
}
