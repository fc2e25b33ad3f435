package amd

import "fmt"

// Hardware answers capability questions whose answers come from hardware
// tables rather than from the shader.
type Hardware interface {
	// PsIterMask returns the per-invocation coverage submask for a pixel
	// shaded by iterSamples invocations. Shifted left by each invocation's
	// sample ID, the iterSamples masks partition the pixel's samples.
	PsIterMask(iterSamples uint32) uint32

	// SpiShaderZFormat selects the MRTZ export format for the combination
	// of values the shader writes.
	SpiShaderZFormat(writesZ, writesStencil, writesSampleMask, writesMRT0Alpha bool) SPIFormat
}

// DefaultHardware implements Hardware with the documented tables of the
// GCN and RDNA pixel pipeline.
var DefaultHardware Hardware = tables{}

type tables struct{}

// PsIterMask uses the fixed-function sample interleave: with N invocations
// per pixel, invocation i owns samples i, i+N, i+2N, ...
func (tables) PsIterMask(iterSamples uint32) uint32 {
	switch iterSamples {
	case 1:
		return 0xffff
	case 2:
		return 0x5555
	case 4:
		return 0x1111
	case 8:
		return 0x0101
	case 16:
		return 0x0001
	}
	panic(fmt.Sprintf("invalid pixel shader iteration count %d", iterSamples))
}

func (tables) SpiShaderZFormat(writesZ, writesStencil, writesSampleMask, writesMRT0Alpha bool) SPIFormat {
	switch {
	case writesZ || writesMRT0Alpha:
		// Z needs 32 bits.
		if writesSampleMask || writesMRT0Alpha {
			return SPIShader32ABGR
		}
		if writesStencil {
			return SPIShader32GR
		}
		return SPIShader32R
	case writesStencil || writesSampleMask:
		// Stencil and sample mask fit in 16 bits.
		return SPIShaderUint16ABGR
	}
	return SPIShaderZero
}
