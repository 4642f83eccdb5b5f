package shaderctx

import (
	"testing"

	"github.com/mattcackles/citra-1/pkg/isa"
)

func TestRegisterOffsetsAreDistinctAndOrdered(t *testing.T) {
	if InputOffset(0) != 0 {
		t.Errorf("InputOffset(0) = %d, want 0", InputOffset(0))
	}
	if OutputOffset(0) <= InputOffset(15) {
		t.Error("output registers must follow input registers")
	}
	if TemporaryOffset(0) <= OutputOffset(15) {
		t.Error("temporary registers must follow output registers")
	}
	for i := 0; i < 15; i++ {
		if InputOffset(i+1)-InputOffset(i) != uintptr(len(Vec4{}))*4 {
			t.Errorf("input register stride wrong at %d", i)
		}
	}
}

func TestSourceOffsetDelegatesByRegion(t *testing.T) {
	if SourceOffset(isa.SourceRegister{Type: isa.Input, Index: 3}) != InputOffset(3) {
		t.Error("input source operand mismatch")
	}
	if SourceOffset(isa.SourceRegister{Type: isa.Temporary, Index: 2}) != TemporaryOffset(2) {
		t.Error("temporary source operand mismatch")
	}
}

func TestSourceOffsetPanicsOnFloatUniform(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for float-uniform operand")
		}
	}()
	SourceOffset(isa.SourceRegister{Type: isa.FloatUniform, Index: 0})
}

func TestDestOffsetDelegatesByRegion(t *testing.T) {
	if DestOffset(isa.DestRegister{Type: isa.Output, Index: 1}) != OutputOffset(1) {
		t.Error("output dest operand mismatch")
	}
	if DestOffset(isa.DestRegister{Type: isa.Temporary, Index: 4}) != TemporaryOffset(4) {
		t.Error("temporary dest operand mismatch")
	}
}

func TestUnitStateReset(t *testing.T) {
	var u UnitState
	u.ConditionCode[0] = true
	u.ConditionCode[1] = true
	u.DebugMaxOffset = 5
	u.DebugMaxOpdescID = 7
	u.Temporary[0] = Vec4{1, 2, 3, 4}

	u.Reset()

	if u.ConditionCode[0] || u.ConditionCode[1] {
		t.Error("Reset should clear condition codes")
	}
	if u.DebugMaxOffset != 0 || u.DebugMaxOpdescID != 0 {
		t.Error("Reset should clear debug counters")
	}
	if u.Temporary[0] != (Vec4{1, 2, 3, 4}) {
		t.Error("Reset must not touch register contents")
	}
}

func TestOutputVertexExtraction(t *testing.T) {
	var v OutputVertex
	v.Set(SemanticPositionX, 1)
	v.Set(SemanticPositionY, 2)
	v.Set(SemanticPositionZ, 3)
	v.Set(SemanticPositionW, 4)
	v.SetColor(0.5, -0.25, 2.0, 1.0)

	if v.Position() != (Vec4{1, 2, 3, 4}) {
		t.Errorf("Position = %v", v.Position())
	}
	if v.Color() != (Vec4{0.5, -0.25, 2.0, 1.0}) {
		t.Errorf("Color = %v", v.Color())
	}
}

func TestOutputVertexZeroingUnmappedSemantic(t *testing.T) {
	var v OutputVertex
	v.Set(SemanticTexCoord0U, 9)
	v.Zero(SemanticTexCoord0U)
	if v.At(SemanticTexCoord0U) != 0 {
		t.Error("Zero should clear the lane")
	}
}

func TestProgramStateSwizzle(t *testing.T) {
	p := &ProgramState{}
	p.SwizzleData[0] = 0xF // full write mask, all-zero selectors
	s := p.Swizzle(0)
	if !s.FullMask() {
		t.Error("expected full write mask")
	}
}
