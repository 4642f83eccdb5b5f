package isa

import "testing"

func TestDecodeCommonFamily(t *testing.T) {
	raw := RawInstruction{
		Opcode:               OpADD,
		Dest:                 0x03,
		Src1:                 0x05,
		Src2:                 0x22, // float uniform 2
		AddressRegisterIndex: 1,
		OperandDescriptorID:  7,
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := CommonOperands{
		Dest:                 DestRegister{Type: Output, Index: 3},
		Src1:                 SourceRegister{Type: Input, Index: 5},
		Src2:                 SourceRegister{Type: FloatUniform, Index: 2},
		AddressRegisterIndex: 1,
		OperandDescriptorID:  7,
	}
	if got.Common != want {
		t.Errorf("Common = %+v, want %+v", got.Common, want)
	}
}

func TestDecodeMADFamilyIgnoresAddressing(t *testing.T) {
	raw := RawInstruction{
		Opcode:              OpMAD,
		Dest:                0x11, // temporary 1
		Src1:                0x00,
		Src2:                0x20,
		Src3:                 0x21,
		AddressRegisterIndex: 2,
		OperandDescriptorID:  3,
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.MAD.Dest != (DestRegister{Type: Temporary, Index: 1}) {
		t.Errorf("Dest = %+v", got.MAD.Dest)
	}
	if got.MAD.Src2.Type != FloatUniform || got.MAD.Src2.Index != 0 {
		t.Errorf("Src2 = %+v", got.MAD.Src2)
	}
}

func TestDecodeFlowControlFamily(t *testing.T) {
	raw := RawInstruction{
		Opcode:          OpIFC,
		DestOffset:      10,
		NumInstructions: 4,
		RefX:            true,
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Flow.DestOffset != 10 || got.Flow.NumInstructions != 4 || !got.Flow.RefX {
		t.Errorf("Flow = %+v", got.Flow)
	}
}

func TestDecodeUnhandledOpcode(t *testing.T) {
	for _, op := range []Opcode{OpEX2, OpLG2, OpLGE, OpSLT, OpDPH, OpSGEI, OpSETE, OpBREAK, OpEMIT} {
		_, err := Decode(RawInstruction{Opcode: op})
		var unhandled *UnhandledOpcode
		if err == nil {
			t.Errorf("opcode %d: expected UnhandledOpcode, got nil", op)
			continue
		}
		if !asUnhandled(err, &unhandled) {
			t.Errorf("opcode %d: err = %v, want *UnhandledOpcode", op, err)
		}
	}
}

func asUnhandled(err error, target **UnhandledOpcode) bool {
	u, ok := err.(*UnhandledOpcode)
	if ok {
		*target = u
	}
	return ok
}

func TestSrcInversed(t *testing.T) {
	if !OpSLTI.SrcInversed() {
		t.Error("SLTI should be src-inversed")
	}
	if !OpMADI.SrcInversed() {
		t.Error("MADI should be src-inversed")
	}
	if OpADD.SrcInversed() {
		t.Error("ADD should not be src-inversed")
	}
}

func TestEffectiveOpcode(t *testing.T) {
	if OpMADI.EffectiveOpcode() != OpMAD {
		t.Error("MADI should normalise to MAD")
	}
	if OpADD.EffectiveOpcode() != OpADD {
		t.Error("ADD should normalise to itself")
	}
}

func TestSwizzleIdentity(t *testing.T) {
	word := uint32(IdentitySelector)<<4 | uint32(IdentitySelector)<<12 | uint32(IdentitySelector)<<20
	s := DecodeSwizzle(word)
	for i, sel := range s.Selector {
		if !IsIdentity(sel) {
			t.Errorf("selector %d = %#x, want identity", i, sel)
		}
		if ShuffleImm(sel) != 0b11100100 {
			t.Errorf("ShuffleImm(%#x) = %#b, want 0b11100100", sel, ShuffleImm(sel))
		}
	}
}

func TestSwizzleDestMask(t *testing.T) {
	s := DecodeSwizzle(0xF)
	if !s.FullMask() {
		t.Error("mask 0xF should be full")
	}
	for i := 0; i < 4; i++ {
		if !s.DestComponentEnabled(i) {
			t.Errorf("lane %d should be enabled", i)
		}
	}
}

func TestBlendImm(t *testing.T) {
	// A hardware-order write-mask with only bit0 set (lane w) should produce
	// a BLENDPS immediate selecting only lane 3 (bit3).
	if got := BlendImm(0x1); got != 0x8 {
		t.Errorf("BlendImm(0x1) = %#x, want 0x8", got)
	}
	if got := BlendImm(0xF); got != 0xF {
		t.Errorf("BlendImm(0xF) = %#x, want 0xF", got)
	}
}
