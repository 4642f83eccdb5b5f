package isa

// IdentitySelector is the raw 8-bit selector value ("11 10 01 00" read low-
// group-first) that leaves a source register unswizzled.
const IdentitySelector = 0x1B

// Swizzle is a decoded operand-descriptor entry: a destination write-mask
// plus a selector and negate bit for each of the three source slots.
type Swizzle struct {
	DestMask uint8 // bit0=x, bit1=y, bit2=z, bit3=w
	Selector [3]uint8
	Negate   [3]bool
}

// DecodeSwizzle unpacks a 32-bit swizzle descriptor word. Bit layout (this
// module's own encoding; the field ordering within each selector byte — MSB
// selects lane x, LSB selects lane w — matches the hardware convention that
// requires reversal before use as a SHUFPS immediate, see ShuffleImm below):
// bits [0:4) dest write-mask, bits [4:12) src1 selector, bits [12:20) src2
// selector, bits [20:28) src3 selector, bit 28 negate_src1, bit 29
// negate_src2, bit 30 negate_src3.
func DecodeSwizzle(word uint32) Swizzle {
	return Swizzle{
		DestMask: uint8(word & 0xF),
		Selector: [3]uint8{
			uint8((word >> 4) & 0xFF),
			uint8((word >> 12) & 0xFF),
			uint8((word >> 20) & 0xFF),
		},
		Negate: [3]bool{
			word&(1<<28) != 0,
			word&(1<<29) != 0,
			word&(1<<30) != 0,
		},
	}
}

// DestComponentEnabled reports whether write-mask lane i (0=x..3=w) is set.
func (s Swizzle) DestComponentEnabled(i int) bool {
	return s.DestMask&(1<<uint(i)) != 0
}

// FullMask reports whether all four destination lanes are enabled — the
// unmasked-store fast path.
func (s Swizzle) FullMask() bool {
	return s.DestMask == 0xF
}

// LaneSelect extracts the 2-bit component index that selector byte sel
// assigns to output lane (0=x..3=w), using the hardware's MSB-first field
// order (lane x in bits[7:6], lane w in bits[1:0]).
func LaneSelect(sel uint8, lane int) uint8 {
	shift := uint(6 - 2*lane)
	return (sel >> shift) & 0x3
}

// ShuffleImm reverses the four 2-bit fields of a raw selector byte so it can
// be used directly as an x86 SHUFPS immediate, whose lane 0 (x) lives in
// bits[1:0] — the opposite order from the hardware's selector encoding.
func ShuffleImm(sel uint8) uint8 {
	x := LaneSelect(sel, 0)
	y := LaneSelect(sel, 1)
	z := LaneSelect(sel, 2)
	w := LaneSelect(sel, 3)
	return x | y<<2 | z<<4 | w<<6
}

// IsIdentity reports whether selector sel is the identity swizzle.
func IsIdentity(sel uint8) bool {
	return sel == IdentitySelector
}

// BlendImm derives the SSE4.1 BLENDPS immediate for write-mask m, per the
// hardware's own lane-bit order.
func BlendImm(m uint8) uint8 {
	return ((m & 1) << 3) | ((m & 8) >> 3) | ((m & 2) << 1) | ((m & 4) >> 1)
}
