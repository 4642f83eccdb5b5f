package isa

import "fmt"

// UnhandledOpcode reports that a decoded instruction carries one of the
// opcode tags with no template. Neither backend skips such an instruction:
// the interpreter and the JIT compiler both return this error, wrapped, and
// stop at it.
type UnhandledOpcode struct {
	Op Opcode
}

func (e *UnhandledOpcode) Error() string {
	return fmt.Sprintf("isa: unhandled opcode %d", e.Op)
}

// RawInstruction is the field-separated form of an instruction word as
// handed over by the PICA register-file parsing layer: that layer owns
// unpacking the hardware's bit-packed word and is out of scope here, so
// Decode works from its already-split integer fields rather than a raw
// uint32.
type RawInstruction struct {
	Opcode Opcode

	// Common / MAD register fields. Raw indices are region-tagged by
	// DecodeSourceRegister/DecodeDestRegister.
	Dest                 int
	Src1                 int
	Src2                 int
	Src3                 int
	AddressRegisterIndex int // 0 = none, 1/2/3 = ADDROFFS_REG_0/1/LOOPCOUNT_REG
	OperandDescriptorID  int

	// CMP's two comparison-predicate selectors.
	CompareOpX CompareOp
	CompareOpY CompareOp

	// Flow-control fields.
	DestOffset      int
	NumInstructions int
	BoolUniformID   int
	IntUniformID    int
	Op              FlowControlOp // IFC/JMPC's Or/And/JustX/JustY selector
	RefX            bool
	RefY            bool
}

// CommonOperands holds the decoded fields of the ADD/DP3/DP4/MUL/FLR/MAX/
// MIN/RCP/RSQ/MOVA/MOV/SLTI templates. Single-source templates simply leave
// Src2 unread by their codegen.
type CommonOperands struct {
	Dest                 DestRegister
	Src1                 SourceRegister
	Src2                 SourceRegister
	AddressRegisterIndex int
	OperandDescriptorID  int

	// CompareOpX/Y are only meaningful for CMP, which packs its two comparison
	// selectors into the fields the hardware's instruction word otherwise uses
	// for a destination index.
	CompareOpX CompareOp
	CompareOpY CompareOp
}

// MADOperands holds the three-source fields of MAD/MADI. MAD never indexes
// through the address registers — there is no AddressRegisterIndex field
// here, unlike CommonOperands.
type MADOperands struct {
	Dest                DestRegister
	Src1                SourceRegister
	Src2                SourceRegister
	Src3                SourceRegister
	OperandDescriptorID int
}

// FlowOperands holds the fields of CALL/CALLC/CALLU/IFU/IFC/LOOP/JMPC/JMPU.
type FlowOperands struct {
	DestOffset      int
	NumInstructions int
	BoolUniformID   int
	IntUniformID    int
	Op              FlowControlOp
	RefX            bool
	RefY            bool
}

// Decoded is a fully decoded instruction: an opcode tag plus the operand
// record for whichever family it belongs to.
type Decoded struct {
	Opcode Opcode
	Common CommonOperands
	MAD    MADOperands
	Flow   FlowOperands
}

// Decode classifies a RawInstruction's opcode and resolves its register
// operands into region-tagged form. It returns *UnhandledOpcode for any
// opcode tag in the unimplemented set, together with a zero Decoded; it
// does not log.
func Decode(raw RawInstruction) (Decoded, error) {
	if raw.Opcode.unimplemented() {
		return Decoded{}, &UnhandledOpcode{Op: raw.Opcode}
	}

	d := Decoded{Opcode: raw.Opcode}

	switch raw.Opcode.Family() {
	case FamilyMAD:
		d.MAD = MADOperands{
			Dest:                DecodeDestRegister(raw.Dest),
			Src1:                DecodeSourceRegister(raw.Src1),
			Src2:                DecodeSourceRegister(raw.Src2),
			Src3:                DecodeSourceRegister(raw.Src3),
			OperandDescriptorID: raw.OperandDescriptorID,
		}
	case FamilyFlowControl:
		d.Flow = FlowOperands{
			DestOffset:      raw.DestOffset,
			NumInstructions: raw.NumInstructions,
			BoolUniformID:   raw.BoolUniformID,
			IntUniformID:    raw.IntUniformID,
			Op:              raw.Op,
			RefX:            raw.RefX,
			RefY:            raw.RefY,
		}
	default:
		d.Common = CommonOperands{
			Dest:                 DecodeDestRegister(raw.Dest),
			Src1:                 DecodeSourceRegister(raw.Src1),
			Src2:                 DecodeSourceRegister(raw.Src2),
			AddressRegisterIndex: raw.AddressRegisterIndex,
			OperandDescriptorID:  raw.OperandDescriptorID,
			CompareOpX:           raw.CompareOpX,
			CompareOpY:           raw.CompareOpY,
		}
	}

	return d, nil
}
