package lowerps

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/radeon/amd"
	"github.com/gogpu/radeon/ir"
)

// Clamp limits for integer render targets with fewer than 16 bits per
// channel, indexed by [is10bit][isAlpha].
var (
	uintMax = [2][2]uint64{{255, 255}, {1023, 3}}
	sintMax = [2][2]int32{{127, 127}, {511, 1}}
	sintMin = [2][2]int32{{-128, -128}, {-512, -2}}
)

// emitClampAndAlphaTest applies the fixed-function color adjustments to the
// gathered colors.
func (s *state) emitClampAndAlphaTest() {
	b := s.b
	for slot := 0; slot < ir.MaxDrawBuffers; slot++ {
		if s.colorsWritten&(1<<slot) == 0 {
			continue
		}
		color := &s.color[slot]

		if s.opts.ClampColor {
			for i, c := range color {
				if c.Valid() {
					color[i] = b.ALU(ir.OpFSat, c)
				}
			}
		}

		if s.opts.AlphaToOne {
			color[3] = b.ImmFloatN(1, s.colorType[slot].Bits())
		}

		if slot == 0 {
			s.emitAlphaTest(color[3])
		}
	}
}

func (s *state) emitAlphaTest(alpha ir.ValueHandle) {
	b := s.b
	switch s.opts.AlphaFunc {
	case amd.CompareAlways:
	case amd.CompareNever:
		b.Discard()
	default:
		if !alpha.Valid() {
			return
		}
		a := b.ConvertToBitSize(alpha, ir.ScalarFloat, 32)
		ref := b.LoadSystemValue(ir.SysAlphaReference)
		pass := s.compare(s.opts.AlphaFunc, a, ref)
		b.DiscardIf(b.ALU(ir.OpINot, pass))
	}
}

// compare emits x <fn> y.
func (s *state) compare(fn amd.CompareFunc, x, y ir.ValueHandle) ir.ValueHandle {
	b := s.b
	switch fn {
	case amd.CompareNever:
		return b.ImmBool(false)
	case amd.CompareAlways:
		return b.ImmBool(true)
	case amd.CompareEqual:
		return b.ALU(ir.OpFEq, x, y)
	case amd.CompareNotEqual:
		return b.ALU(ir.OpFNeu, x, y)
	case amd.CompareLess:
		return b.ALU(ir.OpFLt, x, y)
	case amd.CompareGreaterEqual:
		return b.ALU(ir.OpFGe, x, y)
	case amd.CompareGreater:
		return b.ALU(ir.OpFLt, y, x)
	case amd.CompareLessEqual:
		return b.ALU(ir.OpFGe, y, x)
	}
	panic(fmt.Sprintf("invalid compare function %v", fn))
}

// colorExportTarget returns the export target of the next color export.
// Only exported targets consume an index, so the exports are compacted.
func (s *state) colorExportTarget() uint8 {
	target := amd.ExpTargetMRT0 + s.compactedMRTIndex
	if s.opts.DualSrcBlendSwizzle && s.compactedMRTIndex < 2 {
		target += amd.ExpTargetDualSrcOffset
	}
	s.compactedMRTIndex++
	return target
}

// completeDualSrcBlend makes sure both dual-source colors exist: when the
// shader writes only one of them, it is exported with the format of the
// written one.
func (s *state) completeDualSrcBlend() {
	f := s.spiShaderColFormat
	switch s.colorsWritten {
	case 0x1:
		s.colorsWritten |= 0x2
		s.colorType[1] = s.colorType[0]
		s.spiShaderColFormat = f.With(1, f.Get(0))
	case 0x2:
		s.colorsWritten |= 0x1
		s.colorType[0] = s.colorType[1]
		s.spiShaderColFormat = f.With(0, f.Get(1))
	case 0x3:
	default:
		panic(fmt.Sprintf("dual-source blending needs color 0 and/or 1 only, written mask is %#x", s.colorsWritten))
	}
}

// emitColorExport exports color output to render target mrt. It returns
// false when nothing was exported.
//
//nolint:gocyclo,cyclop,funlen // one case per hardware format
func (s *state) emitColorExport(output, mrt int) bool {
	format := s.spiShaderColFormat.Get(mrt)
	if format == amd.SPIShaderZero {
		return false
	}
	target := s.colorExportTarget()
	if s.colorsWritten&(1<<output) == 0 {
		return false
	}

	o := s.opts
	b := s.b
	isInt8 := o.ColorIsInt8&(1<<mrt) != 0
	isInt10 := o.ColorIsInt10&(1<<mrt) != 0
	nanFixup := o.EnableMRTOutputNaNFixup&(1<<mrt) != 0

	typ := s.colorType[output]
	size := typ.Bits()
	data := s.color[output]

	if nanFixup && typ == ir.TypeFloat32 {
		for i, c := range data {
			if !c.Valid() {
				continue
			}
			data[i] = b.Bcsel(b.FIsNaN(c), b.ImmFloat(0), c)
		}
	}

	undef := b.Undef(1, 32)
	outputs := [4]ir.ValueHandle{undef, undef, undef, undef}
	var writeMask uint8
	var flags ir.ExportFlags

	widen := func(dst, src int) {
		if data[src].Valid() {
			outputs[dst] = b.ConvertToBitSize(data[src], typ.Kind, 32)
			writeMask |= 1 << dst
		}
	}

	switch format {
	case amd.SPIShader32R:
		widen(0, 0)
	case amd.SPIShader32GR:
		widen(0, 0)
		widen(1, 1)
	case amd.SPIShader32AR:
		widen(0, 0)
		// GFX10+ moved the alpha channel next to red.
		if o.GfxLevel >= amd.GFX10 {
			widen(1, 3)
		} else {
			widen(3, 3)
		}
	case amd.SPIShader32ABGR:
		for i := range data {
			widen(i, i)
		}
	default:
		packOp := ir.OpPack32_2x16
		switch format {
		case amd.SPIShaderFP16ABGR:
			if size == 32 {
				packOp = ir.OpPackHalf2x16RTZSplit
			}
		case amd.SPIShaderUint16ABGR:
			if size == 32 {
				packOp = ir.OpPackUint2x16
				if isInt8 || isInt10 {
					for i, c := range data {
						if c.Valid() {
							limit := uintMax[b2i(isInt10)][b2i(i == 3)]
							data[i] = b.ALU(ir.OpUMin, c, b.Imm(limit, 32))
						}
					}
				}
			}
		case amd.SPIShaderSint16ABGR:
			if size == 32 {
				packOp = ir.OpPackSint2x16
				if isInt8 || isInt10 {
					for i, c := range data {
						if c.Valid() {
							bits, alpha := b2i(isInt10), b2i(i == 3)
							c = b.ALU(ir.OpIMin, c, b.ImmInt(sintMax[bits][alpha]))
							data[i] = b.ALU(ir.OpIMax, c, b.ImmInt(sintMin[bits][alpha]))
						}
					}
				}
			}
		case amd.SPIShaderUnorm16:
			packOp = ir.OpPackUnorm2x16
		case amd.SPIShaderSnorm16:
			packOp = ir.OpPackSnorm2x16
		default:
			panic(fmt.Sprintf("unsupported color export format %v for render target %d", format, mrt))
		}

		for i := 0; i < 2; i++ {
			lo, hi := data[2*i], data[2*i+1]
			if !lo.Valid() && !hi.Valid() {
				continue
			}
			if !lo.Valid() {
				lo = b.Undef(1, size)
			}
			if !hi.Valid() {
				hi = b.Undef(1, size)
			}

			if packOp.NumInputs() == 2 {
				outputs[i] = b.ALU(packOp, lo, hi)
			} else {
				outputs[i] = b.ALU(packOp, b.Vec(lo, hi))
			}

			if o.GfxLevel >= amd.GFX11 {
				writeMask |= 1 << i
			} else {
				writeMask |= 0x3 << (2 * i)
			}
		}

		if o.GfxLevel < amd.GFX11 {
			flags |= ir.ExportCompressed
		}
	}

	arg := b.Vec(outputs[:]...)
	s.exp = append(s.exp, b.Export(arg, target, writeMask, flags))
	Logger().Debug("lowerps: color export",
		slog.Int("output", output),
		slog.Int("target", int(target)),
		slog.String("format", format.String()),
		slog.Int("write_mask", int(writeMask)))
	return true
}

func b2i(v bool) int {
	if v {
		return 1
	}
	return 0
}
