package x86asm

import "github.com/klauspost/cpuid/v2"

// Features reports which codegen fast paths the host CPU supports. It is
// queried once per Runtime and cached rather than re-checked per shader.
type Features struct {
	SSE41 bool
	FMA3  bool
}

// DetectFeatures inspects the running CPU via cpuid.
func DetectFeatures() Features {
	return Features{
		SSE41: cpuid.CPU.Supports(cpuid.SSE4),
		FMA3:  cpuid.CPU.Supports(cpuid.FMA3),
	}
}
