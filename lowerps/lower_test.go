package lowerps

import (
	"testing"

	"github.com/gogpu/radeon/amd"
	"github.com/gogpu/radeon/ir"
)

// newShader creates an empty fragment shader and a builder at the end of its
// entry function.
func newShader(t *testing.T) (*ir.Shader, *ir.Builder) {
	t.Helper()
	fn := ir.NewFunction("main")
	shader := &ir.Shader{
		Name:      t.Name(),
		Stage:     ir.StageFragment,
		Functions: []*ir.Function{fn},
	}
	return shader, ir.NewBuilder(fn)
}

func storeColor(b *ir.Builder, slot ir.FragResult, dual uint8, typ ir.ScalarType, mask uint8) {
	v := b.Undef(4, typ.Bits())
	b.StoreOutput(v, mask, 0, ir.IOSemantics{Location: slot, DualSourceIndex: dual}, typ)
}

func storeScalar(b *ir.Builder, slot ir.FragResult) {
	v := b.Undef(1, 32)
	b.StoreOutput(v, 0x1, 0, ir.IOSemantics{Location: slot}, ir.TypeUint32)
}

// lower runs the pass and fails the test if the result does not validate.
func lower(t *testing.T, shader *ir.Shader, opts Options) bool {
	t.Helper()
	progress := Lower(shader, &opts)
	errs, err := ir.Validate(shader)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, e := range errs {
		t.Errorf("validation error: %v", e)
	}
	return progress
}

func instructionsOf[K ir.InstructionKind](fn *ir.Function) []K {
	var out []K
	fn.Body.ForEach(func(inst *ir.Instruction) {
		if k, ok := inst.Kind.(K); ok {
			out = append(out, k)
		}
	})
	return out
}

func countALU(fn *ir.Function, op ir.ALUOp) int {
	n := 0
	for _, alu := range instructionsOf[*ir.InstALU](fn) {
		if alu.Op == op {
			n++
		}
	}
	return n
}

func countInstructions(fn *ir.Function) int {
	n := 0
	fn.Body.ForEach(func(*ir.Instruction) { n++ })
	return n
}

const final = ir.ExportDone | ir.ExportValidMask

func TestLowerSingleColor(t *testing.T) {
	shader, b := newShader(t)
	storeColor(b, ir.FragResultData0, 0, ir.TypeFloat32, 0xf)

	if !lower(t, shader, DefaultOptions()) {
		t.Fatal("Lower reported no progress")
	}

	fn := shader.EntryFunction()
	if stores := instructionsOf[*ir.InstStoreOutput](fn); len(stores) != 0 {
		t.Errorf("%d output stores remain, want 0", len(stores))
	}
	exports := instructionsOf[*ir.InstExport](fn)
	if len(exports) != 1 {
		t.Fatalf("got %d exports, want 1", len(exports))
	}
	e := exports[0]
	if e.Target != amd.ExpTargetMRT0 || e.WriteMask != 0xf || e.Flags != final {
		t.Errorf("export = target %d mask %#x flags %#x, want target 0 mask 0xf flags %#x",
			e.Target, e.WriteMask, e.Flags, final)
	}
	last := fn.Body.Instructions[fn.Body.Len()-1]
	if _, ok := last.Kind.(*ir.InstExport); !ok {
		t.Errorf("last instruction is %T, want the export", last.Kind)
	}
}

func TestLowerColorFormats(t *testing.T) {
	tests := []struct {
		name      string
		gfx       amd.GfxLevel
		format    amd.SPIFormat
		typ       ir.ScalarType
		mask      uint8
		wantMask  uint8
		wantFlags ir.ExportFlags
		wantOp    ir.ALUOp
	}{
		{"32_abgr", amd.GFX10_3, amd.SPIShader32ABGR, ir.TypeFloat32, 0xf, 0xf, 0, ir.OpVec},
		{"32_r", amd.GFX10_3, amd.SPIShader32R, ir.TypeFloat32, 0xf, 0x1, 0, ir.OpVec},
		{"32_gr", amd.GFX10_3, amd.SPIShader32GR, ir.TypeFloat32, 0xf, 0x3, 0, ir.OpVec},
		{"32_ar gfx9", amd.GFX9, amd.SPIShader32AR, ir.TypeFloat32, 0xf, 0x9, 0, ir.OpVec},
		{"32_ar gfx10.3", amd.GFX10_3, amd.SPIShader32AR, ir.TypeFloat32, 0xf, 0x3, 0, ir.OpVec},
		{"32_abgr f16 widened", amd.GFX10_3, amd.SPIShader32ABGR, ir.TypeFloat16, 0xf, 0xf, 0, ir.OpF2F32},
		{"fp16 f32", amd.GFX10_3, amd.SPIShaderFP16ABGR, ir.TypeFloat32, 0xf, 0xf, ir.ExportCompressed, ir.OpPackHalf2x16RTZSplit},
		{"fp16 f32 gfx11", amd.GFX11, amd.SPIShaderFP16ABGR, ir.TypeFloat32, 0xf, 0x3, 0, ir.OpPackHalf2x16RTZSplit},
		{"fp16 f16", amd.GFX10_3, amd.SPIShaderFP16ABGR, ir.TypeFloat16, 0xf, 0xf, ir.ExportCompressed, ir.OpPack32_2x16},
		{"fp16 red only", amd.GFX10_3, amd.SPIShaderFP16ABGR, ir.TypeFloat32, 0x1, 0x3, ir.ExportCompressed, ir.OpPackHalf2x16RTZSplit},
		{"fp16 alpha only gfx11", amd.GFX11, amd.SPIShaderFP16ABGR, ir.TypeFloat32, 0x8, 0x2, 0, ir.OpPackHalf2x16RTZSplit},
		{"unorm16", amd.GFX10_3, amd.SPIShaderUnorm16, ir.TypeFloat32, 0xf, 0xf, ir.ExportCompressed, ir.OpPackUnorm2x16},
		{"snorm16", amd.GFX10_3, amd.SPIShaderSnorm16, ir.TypeFloat32, 0xf, 0xf, ir.ExportCompressed, ir.OpPackSnorm2x16},
		{"uint16", amd.GFX10_3, amd.SPIShaderUint16ABGR, ir.TypeUint32, 0xf, 0xf, ir.ExportCompressed, ir.OpPackUint2x16},
		{"sint16", amd.GFX10_3, amd.SPIShaderSint16ABGR, ir.TypeSint32, 0xf, 0xf, ir.ExportCompressed, ir.OpPackSint2x16},
		{"uint16 u16", amd.GFX10_3, amd.SPIShaderUint16ABGR, ir.TypeUint16, 0xf, 0xf, ir.ExportCompressed, ir.OpPack32_2x16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shader, b := newShader(t)
			storeColor(b, ir.FragResultData0, 0, tt.typ, tt.mask)

			opts := DefaultOptions()
			opts.GfxLevel = tt.gfx
			opts.SpiShaderColFormat = amd.PackColorFormats(tt.format)
			lower(t, shader, opts)

			fn := shader.EntryFunction()
			exports := instructionsOf[*ir.InstExport](fn)
			if len(exports) != 1 {
				t.Fatalf("got %d exports, want 1", len(exports))
			}
			e := exports[0]
			if e.WriteMask != tt.wantMask {
				t.Errorf("write mask = %#x, want %#x", e.WriteMask, tt.wantMask)
			}
			if e.Flags != tt.wantFlags|final {
				t.Errorf("flags = %#x, want %#x", e.Flags, tt.wantFlags|final)
			}
			if countALU(fn, tt.wantOp) == 0 {
				t.Errorf("no %v emitted", tt.wantOp)
			}
		})
	}
}

func TestLowerUnsupportedColorFormatPanics(t *testing.T) {
	shader, b := newShader(t)
	storeColor(b, ir.FragResultData0, 0, ir.TypeFloat32, 0xf)

	opts := DefaultOptions()
	opts.SpiShaderColFormat = amd.PackColorFormats(amd.SPIFormat(12))

	defer func() {
		if recover() == nil {
			t.Error("expected panic for an unknown export format")
		}
	}()
	Lower(shader, &opts)
}

func TestLowerIntegerClamp(t *testing.T) {
	tests := []struct {
		name   string
		format amd.SPIFormat
		typ    ir.ScalarType
		int8   bool
		int10  bool
		wantOp map[ir.ALUOp]int
		consts []uint64
	}{
		{
			name: "uint int8", format: amd.SPIShaderUint16ABGR, typ: ir.TypeUint32, int8: true,
			wantOp: map[ir.ALUOp]int{ir.OpUMin: 4},
			consts: []uint64{255},
		},
		{
			name: "uint int10", format: amd.SPIShaderUint16ABGR, typ: ir.TypeUint32, int10: true,
			wantOp: map[ir.ALUOp]int{ir.OpUMin: 4},
			consts: []uint64{1023, 3},
		},
		{
			name: "sint int8", format: amd.SPIShaderSint16ABGR, typ: ir.TypeSint32, int8: true,
			wantOp: map[ir.ALUOp]int{ir.OpIMin: 4, ir.OpIMax: 4},
			consts: []uint64{127, uint64(uint32(0xffffff80))},
		},
		{
			name: "sint int10", format: amd.SPIShaderSint16ABGR, typ: ir.TypeSint32, int10: true,
			wantOp: map[ir.ALUOp]int{ir.OpIMin: 4, ir.OpIMax: 4},
			consts: []uint64{511, 1, uint64(uint32(0xfffffe00)), uint64(uint32(0xfffffffe))},
		},
		{
			name: "uint16 no clamp", format: amd.SPIShaderUint16ABGR, typ: ir.TypeUint32,
			wantOp: map[ir.ALUOp]int{ir.OpUMin: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shader, b := newShader(t)
			storeColor(b, ir.FragResultData0, 0, tt.typ, 0xf)

			opts := DefaultOptions()
			opts.SpiShaderColFormat = amd.PackColorFormats(tt.format)
			if tt.int8 {
				opts.ColorIsInt8 = 0x1
			}
			if tt.int10 {
				opts.ColorIsInt10 = 0x1
			}
			lower(t, shader, opts)

			fn := shader.EntryFunction()
			for op, want := range tt.wantOp {
				if got := countALU(fn, op); got != want {
					t.Errorf("%v count = %d, want %d", op, got, want)
				}
			}
			consts := map[uint64]bool{}
			for _, c := range instructionsOf[*ir.InstConst](fn) {
				consts[c.Bits] = true
			}
			for _, c := range tt.consts {
				if !consts[c] {
					t.Errorf("constant %#x not emitted", c)
				}
			}
		})
	}
}

func TestLowerNaNFixup(t *testing.T) {
	tests := []struct {
		name    string
		typ     ir.ScalarType
		enabled uint8
		want    int
	}{
		{"f32 enabled", ir.TypeFloat32, 0x1, 4},
		{"f32 other target", ir.TypeFloat32, 0x2, 0},
		{"f16 enabled", ir.TypeFloat16, 0x1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shader, b := newShader(t)
			storeColor(b, ir.FragResultData0, 0, tt.typ, 0xf)

			opts := DefaultOptions()
			opts.EnableMRTOutputNaNFixup = tt.enabled
			lower(t, shader, opts)

			fn := shader.EntryFunction()
			if got := countALU(fn, ir.OpFNeu); got != tt.want {
				t.Errorf("NaN tests = %d, want %d", got, tt.want)
			}
			if got := countALU(fn, ir.OpBcsel); got != tt.want {
				t.Errorf("selects = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLowerNullExport(t *testing.T) {
	tests := []struct {
		name        string
		gfx         amd.GfxLevel
		discard     bool
		pops        bool
		want        bool
		wantTarget  uint8
		wantBarrier bool
	}{
		{"gfx9", amd.GFX9, false, false, true, amd.ExpTargetNull, false},
		{"gfx10.3", amd.GFX10_3, false, false, false, 0, false},
		{"gfx10.3 discard", amd.GFX10_3, true, false, true, amd.ExpTargetNull, false},
		{"gfx10.3 pops", amd.GFX10_3, false, true, true, amd.ExpTargetNull, false},
		{"gfx11 discard", amd.GFX11, true, false, true, amd.ExpTargetMRT0, false},
		{"gfx11 pops", amd.GFX11, false, true, true, amd.ExpTargetMRT0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shader, _ := newShader(t)
			shader.Info.PixelInterlockOrdered = tt.pops

			opts := DefaultOptions()
			opts.GfxLevel = tt.gfx
			opts.UsesDiscard = tt.discard
			progress := lower(t, shader, opts)

			fn := shader.EntryFunction()
			exports := instructionsOf[*ir.InstExport](fn)
			if !tt.want {
				if len(exports) != 0 || progress {
					t.Fatalf("got %d exports and progress %v, want none", len(exports), progress)
				}
				return
			}
			if len(exports) != 1 {
				t.Fatalf("got %d exports, want 1", len(exports))
			}
			e := exports[0]
			if e.Target != tt.wantTarget || e.WriteMask != 0 || e.Flags != final {
				t.Errorf("null export = target %d mask %#x flags %#x", e.Target, e.WriteMask, e.Flags)
			}
			if got := len(instructionsOf[*ir.InstBarrier](fn)) == 1; got != tt.wantBarrier {
				t.Errorf("barrier emitted = %v, want %v", got, tt.wantBarrier)
			}
		})
	}
}

func TestLowerPOPSReleaseBeforeFinalExport(t *testing.T) {
	shader, b := newShader(t)
	shader.Info.SampleInterlockOrdered = true
	storeColor(b, ir.FragResultData0, 0, ir.TypeFloat32, 0xf)
	storeColor(b, ir.FragResultData1, 0, ir.TypeFloat32, 0xf)

	opts := DefaultOptions()
	opts.GfxLevel = amd.GFX11
	lower(t, shader, opts)

	body := shader.EntryFunction().Body.Instructions
	n := len(body)
	barrier, ok := body[n-2].Kind.(*ir.InstBarrier)
	if !ok {
		t.Fatalf("instruction before the final export is %T, want a barrier", body[n-2].Kind)
	}
	if barrier.Scope != ir.ScopeQueueFamily || barrier.Semantics != ir.SemanticsRelease ||
		barrier.Modes != ir.ModeImage|ir.ModeUBO|ir.ModeSSBO|ir.ModeGlobal {
		t.Errorf("barrier = %+v", barrier)
	}
	if e := body[n-1].Kind.(*ir.InstExport); e.Flags != final || e.Target != 1 {
		t.Errorf("final export = %+v", e)
	}
}

func TestLowerMRTZ(t *testing.T) {
	tests := []struct {
		name      string
		gfx       amd.GfxLevel
		family    amd.Family
		slots     []ir.FragResult
		kill      bool
		wantMask  uint8
		wantFlags ir.ExportFlags
	}{
		{"depth", amd.GFX10_3, amd.ChipNavi21, []ir.FragResult{ir.FragResultDepth}, false, 0x1, 0},
		{"depth stencil", amd.GFX10_3, amd.ChipNavi21, []ir.FragResult{ir.FragResultDepth, ir.FragResultStencil}, false, 0x3, 0},
		{"depth samplemask", amd.GFX10_3, amd.ChipNavi21, []ir.FragResult{ir.FragResultDepth, ir.FragResultSampleMask}, false, 0x5, 0},
		{"stencil", amd.GFX10_3, amd.ChipNavi21, []ir.FragResult{ir.FragResultStencil}, false, 0x3, ir.ExportCompressed},
		{"stencil samplemask", amd.GFX10_3, amd.ChipNavi21, []ir.FragResult{ir.FragResultStencil, ir.FragResultSampleMask}, false, 0xf, ir.ExportCompressed},
		{"stencil samplemask gfx11", amd.GFX11, amd.ChipNavi31, []ir.FragResult{ir.FragResultStencil, ir.FragResultSampleMask}, false, 0x3, 0},
		{"samplemask tahiti", amd.GFX6, amd.ChipTahiti, []ir.FragResult{ir.FragResultSampleMask}, false, 0xd, ir.ExportCompressed},
		{"samplemask oland", amd.GFX6, amd.ChipOland, []ir.FragResult{ir.FragResultSampleMask}, false, 0xc, ir.ExportCompressed},
		{"depth killed samplemask", amd.GFX10_3, amd.ChipNavi21, []ir.FragResult{ir.FragResultDepth, ir.FragResultSampleMask}, true, 0x1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shader, b := newShader(t)
			for _, slot := range tt.slots {
				storeScalar(b, slot)
			}

			opts := DefaultOptions()
			opts.GfxLevel = tt.gfx
			opts.Family = tt.family
			opts.KillSampleMask = tt.kill
			lower(t, shader, opts)

			exports := instructionsOf[*ir.InstExport](shader.EntryFunction())
			if len(exports) != 1 {
				t.Fatalf("got %d exports, want 1", len(exports))
			}
			e := exports[0]
			if e.Target != amd.ExpTargetMRTZ {
				t.Errorf("target = %d, want MRTZ", e.Target)
			}
			if e.WriteMask != tt.wantMask {
				t.Errorf("write mask = %#x, want %#x", e.WriteMask, tt.wantMask)
			}
			if e.Flags != tt.wantFlags|final {
				t.Errorf("flags = %#x, want %#x", e.Flags, tt.wantFlags|final)
			}
		})
	}
}

func TestLowerKilledSampleMaskOnly(t *testing.T) {
	shader, b := newShader(t)
	storeScalar(b, ir.FragResultSampleMask)

	opts := DefaultOptions()
	opts.KillSampleMask = true
	lower(t, shader, opts)

	fn := shader.EntryFunction()
	if n := len(instructionsOf[*ir.InstExport](fn)); n != 0 {
		t.Errorf("got %d exports, want 0", n)
	}
	if n := len(instructionsOf[*ir.InstStoreOutput](fn)); n != 0 {
		t.Errorf("got %d stores, want 0", n)
	}
}

func TestLowerAlphaToCoverageViaMRTZ(t *testing.T) {
	shader, b := newShader(t)
	storeColor(b, ir.FragResultData0, 0, ir.TypeFloat32, 0xf)

	opts := DefaultOptions()
	opts.AlphaToCoverageViaMRTZ = true
	lower(t, shader, opts)

	exports := instructionsOf[*ir.InstExport](shader.EntryFunction())
	if len(exports) != 2 {
		t.Fatalf("got %d exports, want 2", len(exports))
	}
	if e := exports[0]; e.Target != amd.ExpTargetMRTZ || e.WriteMask != 0x8 || e.Flags != 0 {
		t.Errorf("MRTZ export = %+v, want alpha only", e)
	}
	if e := exports[1]; e.Target != amd.ExpTargetMRT0 || e.Flags != final {
		t.Errorf("color export = %+v", e)
	}
}

func TestLowerAlphaTest(t *testing.T) {
	tests := []struct {
		fn          amd.CompareFunc
		mask        uint8
		discard     int
		discardIf   int
		op          ir.ALUOp
		refArgIndex int
	}{
		{amd.CompareAlways, 0xf, 0, 0, 0, 0},
		{amd.CompareNever, 0xf, 1, 0, 0, 0},
		{amd.CompareLess, 0xf, 0, 1, ir.OpFLt, 1},
		{amd.CompareGreater, 0xf, 0, 1, ir.OpFLt, 0},
		{amd.CompareLessEqual, 0xf, 0, 1, ir.OpFGe, 0},
		{amd.CompareGreaterEqual, 0xf, 0, 1, ir.OpFGe, 1},
		{amd.CompareEqual, 0xf, 0, 1, ir.OpFEq, 1},
		{amd.CompareNotEqual, 0xf, 0, 1, ir.OpFNeu, 1},
		{amd.CompareLess, 0x7, 0, 0, 0, 0},
		{amd.CompareNever, 0x7, 1, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.fn.String(), func(t *testing.T) {
			shader, b := newShader(t)
			storeColor(b, ir.FragResultData0, 0, ir.TypeFloat32, tt.mask)

			opts := DefaultOptions()
			opts.AlphaFunc = tt.fn
			lower(t, shader, opts)

			fn := shader.EntryFunction()
			if n := len(instructionsOf[*ir.InstDiscard](fn)); n != tt.discard {
				t.Errorf("discards = %d, want %d", n, tt.discard)
			}
			if n := len(instructionsOf[*ir.InstDiscardIf](fn)); n != tt.discardIf {
				t.Errorf("conditional discards = %d, want %d", n, tt.discardIf)
			}
			if tt.discardIf == 0 {
				return
			}

			ref := ir.NoValue
			fn.Body.ForEach(func(inst *ir.Instruction) {
				if sv, ok := inst.Kind.(*ir.InstLoadSystemValue); ok && sv.Value == ir.SysAlphaReference {
					ref = inst.Def
				}
			})
			if !ref.Valid() {
				t.Fatal("alpha reference not loaded")
			}
			found := false
			for _, alu := range instructionsOf[*ir.InstALU](fn) {
				if alu.Op == tt.op && alu.Args[tt.refArgIndex] == ref {
					found = true
				}
			}
			if !found {
				t.Errorf("no %v with the reference as argument %d", tt.op, tt.refArgIndex)
			}
			if countALU(fn, ir.OpINot) != 1 {
				t.Error("comparison result is not inverted")
			}
		})
	}
}

func TestLowerAlphaTestOnlyColor0(t *testing.T) {
	shader, b := newShader(t)
	storeColor(b, ir.FragResultData1, 0, ir.TypeFloat32, 0xf)

	opts := DefaultOptions()
	opts.AlphaFunc = amd.CompareNever
	lower(t, shader, opts)

	if n := len(instructionsOf[*ir.InstDiscard](shader.EntryFunction())); n != 0 {
		t.Errorf("discards = %d, want 0", n)
	}
}

func TestLowerClampAndAlphaToOne(t *testing.T) {
	shader, b := newShader(t)
	storeColor(b, ir.FragResultData0, 0, ir.TypeFloat16, 0xf)

	opts := DefaultOptions()
	opts.ClampColor = true
	opts.AlphaToOne = true
	opts.SpiShaderColFormat = amd.PackColorFormats(amd.SPIShaderFP16ABGR)
	lower(t, shader, opts)

	fn := shader.EntryFunction()
	if got := countALU(fn, ir.OpFSat); got != 4 {
		t.Errorf("saturates = %d, want 4", got)
	}
	found := false
	fn.Body.ForEach(func(inst *ir.Instruction) {
		if c, ok := inst.Kind.(*ir.InstConst); ok && c.Bits == 0x3c00 && fn.Values[inst.Def].BitSize == 16 {
			found = true
		}
	})
	if !found {
		t.Error("half-precision 1.0 alpha not emitted")
	}
}

func TestLowerExportCompaction(t *testing.T) {
	tests := []struct {
		name       string
		formats    amd.ColorFormats
		slot       ir.FragResult
		wantTarget uint8
	}{
		{"skipped zero format", amd.PackColorFormats(amd.SPIShaderZero, amd.SPIShader32ABGR), ir.FragResultData1, 0},
		{"unwritten target", amd.PackColorFormats(amd.SPIShader32ABGR, amd.SPIShader32ABGR), ir.FragResultData1, 1},
		{"color slot", amd.PackColorFormats(amd.SPIShader32ABGR), ir.FragResultColor, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shader, b := newShader(t)
			storeColor(b, tt.slot, 0, ir.TypeFloat32, 0xf)

			opts := DefaultOptions()
			opts.SpiShaderColFormat = tt.formats
			lower(t, shader, opts)

			exports := instructionsOf[*ir.InstExport](shader.EntryFunction())
			if len(exports) != 1 {
				t.Fatalf("got %d exports, want 1", len(exports))
			}
			if exports[0].Target != tt.wantTarget {
				t.Errorf("target = %d, want %d", exports[0].Target, tt.wantTarget)
			}
		})
	}
}

func TestLowerBroadcast(t *testing.T) {
	shader, b := newShader(t)
	storeColor(b, ir.FragResultData0, 0, ir.TypeFloat32, 0xf)

	opts := DefaultOptions()
	opts.BroadcastLastCbuf = 3
	lower(t, shader, opts)

	exports := instructionsOf[*ir.InstExport](shader.EntryFunction())
	if len(exports) != 4 {
		t.Fatalf("got %d exports, want 4", len(exports))
	}
	for i, e := range exports {
		if e.Target != uint8(i) {
			t.Errorf("export %d target = %d", i, e.Target)
		}
		wantFlags := ir.ExportFlags(0)
		if i == 3 {
			wantFlags = final
		}
		if e.Flags != wantFlags {
			t.Errorf("export %d flags = %#x, want %#x", i, e.Flags, wantFlags)
		}
		if e.WriteMask != 0xf {
			t.Errorf("export %d write mask = %#x, want 0xf", i, e.WriteMask)
		}
	}
}

func TestLowerBroadcastWithoutColor0Panics(t *testing.T) {
	shader, b := newShader(t)
	storeColor(b, ir.FragResultData1, 0, ir.TypeFloat32, 0xf)

	opts := DefaultOptions()
	opts.BroadcastLastCbuf = 3
	defer func() {
		if recover() == nil {
			t.Error("expected panic for a broadcast without color 0")
		}
	}()
	Lower(shader, &opts)
}

func TestLowerKeepsEpilogStores(t *testing.T) {
	t.Run("no color export", func(t *testing.T) {
		shader, b := newShader(t)
		storeColor(b, ir.FragResultData0, 0, ir.TypeFloat32, 0xf)
		storeColor(b, ir.FragResultColor, 0, ir.TypeFloat32, 0xf)
		storeScalar(b, ir.FragResultDepth)

		opts := DefaultOptions()
		opts.NoColorExport = true
		lower(t, shader, opts)

		fn := shader.EntryFunction()
		stores := instructionsOf[*ir.InstStoreOutput](fn)
		if len(stores) != 2 {
			t.Fatalf("got %d stores, want the 2 color stores", len(stores))
		}
		for _, s := range stores {
			if !s.Semantics.Location.IsColor() {
				t.Errorf("kept store to %d", s.Semantics.Location)
			}
		}
		exports := instructionsOf[*ir.InstExport](fn)
		if len(exports) != 1 || exports[0].Target != amd.ExpTargetMRTZ || exports[0].Flags != 0 {
			t.Errorf("exports = %+v, want a single non-final MRTZ export", exports)
		}
	})

	t.Run("no depth export", func(t *testing.T) {
		shader, b := newShader(t)
		storeColor(b, ir.FragResultData0, 0, ir.TypeFloat32, 0xf)
		storeScalar(b, ir.FragResultDepth)

		opts := DefaultOptions()
		opts.NoDepthExport = true
		lower(t, shader, opts)

		fn := shader.EntryFunction()
		stores := instructionsOf[*ir.InstStoreOutput](fn)
		if len(stores) != 1 || stores[0].Semantics.Location != ir.FragResultDepth {
			t.Fatalf("stores = %+v, want only the depth store", stores)
		}
		exports := instructionsOf[*ir.InstExport](fn)
		if len(exports) != 1 || exports[0].Target != amd.ExpTargetMRT0 {
			t.Errorf("exports = %+v, want only the color export", exports)
		}
	})
}

func TestLowerDualSourceSwizzle(t *testing.T) {
	t.Run("aco", func(t *testing.T) {
		shader, b := newShader(t)
		storeColor(b, ir.FragResultData0, 0, ir.TypeFloat32, 0xf)
		storeColor(b, ir.FragResultData0, 1, ir.TypeFloat32, 0xf)

		opts := DefaultOptions()
		opts.DualSrcBlendSwizzle = true
		opts.UseACO = true
		lower(t, shader, opts)

		fn := shader.EntryFunction()
		if n := len(instructionsOf[*ir.InstExport](fn)); n != 0 {
			t.Errorf("got %d exports, want 0", n)
		}
		pseudo := instructionsOf[*ir.InstExportDualSrcBlend](fn)
		if len(pseudo) != 1 || pseudo[0].WriteMask != 0xf {
			t.Fatalf("dual-source exports = %+v", pseudo)
		}
	})

	t.Run("lane shuffle", func(t *testing.T) {
		shader, b := newShader(t)
		storeColor(b, ir.FragResultData0, 0, ir.TypeFloat32, 0xf)
		storeColor(b, ir.FragResultData0, 1, ir.TypeFloat32, 0x3)

		opts := DefaultOptions()
		opts.DualSrcBlendSwizzle = true
		opts.UseACO = false
		lower(t, shader, opts)

		fn := shader.EntryFunction()
		exports := instructionsOf[*ir.InstExport](fn)
		if len(exports) != 2 {
			t.Fatalf("got %d exports, want 2", len(exports))
		}
		if exports[0].Target != 21 || exports[1].Target != 22 {
			t.Errorf("targets = %d, %d, want 21, 22", exports[0].Target, exports[1].Target)
		}
		for i, e := range exports {
			if e.WriteMask != 0x3 {
				t.Errorf("export %d write mask = %#x, want the common mask 0x3", i, e.WriteMask)
			}
		}
		if exports[0].Flags != 0 || exports[1].Flags != final {
			t.Errorf("flags = %#x, %#x", exports[0].Flags, exports[1].Flags)
		}
		swizzles := instructionsOf[*ir.InstQuadSwizzle](fn)
		if len(swizzles) != 4 {
			t.Fatalf("got %d quad swizzles, want 4", len(swizzles))
		}
		for _, sw := range swizzles {
			if sw.Mask != 0b10110001 || !sw.FetchInactive {
				t.Errorf("swizzle = %+v", sw)
			}
		}
	})

	t.Run("single color completed", func(t *testing.T) {
		shader, b := newShader(t)
		storeColor(b, ir.FragResultData0, 0, ir.TypeFloat32, 0xf)

		opts := DefaultOptions()
		opts.DualSrcBlendSwizzle = true
		opts.UseACO = false
		opts.SpiShaderColFormat = amd.PackColorFormats(amd.SPIShader32ABGR)
		lower(t, shader, opts)

		exports := instructionsOf[*ir.InstExport](shader.EntryFunction())
		if len(exports) != 2 {
			t.Fatalf("got %d exports, want 2", len(exports))
		}
		if exports[1].Target != 22 {
			t.Errorf("second export target = %d, want 22", exports[1].Target)
		}
	})
}

func TestLowerDualSourceWithoutSwizzle(t *testing.T) {
	shader, b := newShader(t)
	storeColor(b, ir.FragResultData0, 0, ir.TypeFloat32, 0xf)
	storeColor(b, ir.FragResultData0, 1, ir.TypeFloat32, 0xf)

	lower(t, shader, DefaultOptions())

	exports := instructionsOf[*ir.InstExport](shader.EntryFunction())
	if len(exports) != 2 || exports[0].Target != 0 || exports[1].Target != 1 {
		t.Fatalf("exports = %+v, want targets 0 and 1", exports)
	}
}

func TestLowerDualSourceInvalidColorsPanics(t *testing.T) {
	shader, b := newShader(t)
	storeColor(b, ir.FragResultData0, 1, ir.TypeFloat32, 0xf)
	storeColor(b, ir.FragResultData2, 0, ir.TypeFloat32, 0xf)

	opts := DefaultOptions()
	defer func() {
		if recover() == nil {
			t.Error("expected panic for dual-source blending with color 2")
		}
	}()
	Lower(shader, &opts)
}

func TestLowerDepthComponentPanics(t *testing.T) {
	shader, b := newShader(t)
	v := b.Undef(1, 32)
	b.StoreOutput(v, 0x1, 1, ir.IOSemantics{Location: ir.FragResultDepth}, ir.TypeFloat32)

	opts := DefaultOptions()
	defer func() {
		if recover() == nil {
			t.Error("expected panic for a depth store to component 1")
		}
	}()
	Lower(shader, &opts)
}

func TestLowerSampleMaskIn(t *testing.T) {
	tests := []struct {
		iter     uint32
		rewrite  bool
		wantMask uint64
	}{
		{1, false, 0},
		{2, true, 0x5555},
		{4, true, 0x1111},
		{8, true, 0x0101},
		{16, true, 0x0001},
	}
	for _, tt := range tests {
		shader, b := newShader(t)
		mask := b.LoadSystemValue(ir.SysSampleMaskIn)
		b.StoreOutput(mask, 0x1, 0, ir.IOSemantics{Location: ir.FragResultSampleMask}, ir.TypeUint32)

		opts := DefaultOptions()
		opts.PsIterSamples = tt.iter
		lower(t, shader, opts)

		fn := shader.EntryFunction()
		loaded := map[ir.SystemValue]bool{}
		for _, sv := range instructionsOf[*ir.InstLoadSystemValue](fn) {
			loaded[sv.Value] = true
		}
		if loaded[ir.SysSampleMaskIn] == tt.rewrite {
			t.Errorf("iter %d: sample_mask_in still loaded = %v", tt.iter, loaded[ir.SysSampleMaskIn])
		}
		if !tt.rewrite {
			continue
		}
		if !loaded[ir.SysSampleCoverage] || !loaded[ir.SysSampleID] {
			t.Errorf("iter %d: coverage or sample id not loaded", tt.iter)
		}
		found := false
		for _, c := range instructionsOf[*ir.InstConst](fn) {
			if c.Bits == tt.wantMask {
				found = true
			}
		}
		if !found {
			t.Errorf("iter %d: mask %#x not emitted", tt.iter, tt.wantMask)
		}
		exports := instructionsOf[*ir.InstExport](fn)
		if len(exports) != 1 || exports[0].Target != amd.ExpTargetMRTZ {
			t.Errorf("iter %d: exports = %+v", tt.iter, exports)
		}
	}
}

// stubHardware overrides the iteration mask table.
type stubHardware struct {
	amd.Hardware
	mask uint32
}

func (h stubHardware) PsIterMask(uint32) uint32 { return h.mask }

func TestLowerInjectedHardware(t *testing.T) {
	shader, b := newShader(t)
	mask := b.LoadSystemValue(ir.SysSampleMaskIn)
	b.StoreOutput(mask, 0x1, 0, ir.IOSemantics{Location: ir.FragResultSampleMask}, ir.TypeUint32)

	opts := DefaultOptions()
	opts.PsIterSamples = 2
	opts.Hardware = stubHardware{Hardware: amd.DefaultHardware, mask: 0xabcd}
	lower(t, shader, opts)

	found := false
	for _, c := range instructionsOf[*ir.InstConst](shader.EntryFunction()) {
		found = found || c.Bits == 0xabcd
	}
	if !found {
		t.Error("injected iteration mask not used")
	}
}

func TestLowerInterpolation(t *testing.T) {
	type load struct {
		sampling ir.InterpolationSampling
		interp   ir.InterpMode
	}
	tests := []struct {
		name       string
		opts       func(*Options)
		load       load
		want       load
		wantSelect bool
	}{
		{
			name: "force persp sample",
			opts: func(o *Options) { o.ForcePerspSampleInterp = true },
			load: load{ir.SamplingCenter, ir.InterpSmooth},
			want: load{ir.SamplingSample, ir.InterpSmooth},
		},
		{
			name: "force persp sample centroid",
			opts: func(o *Options) { o.ForcePerspSampleInterp = true },
			load: load{ir.SamplingCentroid, ir.InterpNone},
			want: load{ir.SamplingSample, ir.InterpSmooth},
		},
		{
			name: "force linear center",
			opts: func(o *Options) { o.ForceLinearCenterInterp = true },
			load: load{ir.SamplingSample, ir.InterpNoPerspective},
			want: load{ir.SamplingCenter, ir.InterpNoPerspective},
		},
		{
			name: "force persp does not touch linear",
			opts: func(o *Options) { o.ForcePerspSampleInterp = true },
			load: load{ir.SamplingCenter, ir.InterpNoPerspective},
			want: load{ir.SamplingCenter, ir.InterpNoPerspective},
		},
		{
			name: "flat untouched",
			opts: func(o *Options) { o.ForcePerspCenterInterp = true },
			load: load{ir.SamplingSample, ir.InterpFlat},
			want: load{ir.SamplingSample, ir.InterpFlat},
		},
		{
			name:       "bc optimize",
			opts:       func(o *Options) { o.BCOptimizeForPersp = true },
			load:       load{ir.SamplingCentroid, ir.InterpSmooth},
			wantSelect: true,
		},
		{
			name: "bc optimize overridden by forced sample",
			opts: func(o *Options) {
				o.BCOptimizeForPersp = true
				o.ForcePerspSampleInterp = true
			},
			load: load{ir.SamplingCentroid, ir.InterpSmooth},
			want: load{ir.SamplingSample, ir.InterpSmooth},
		},
		{
			name: "linear bc optimize overridden by forced sample",
			opts: func(o *Options) {
				o.BCOptimizeForLinear = true
				o.ForceLinearSampleInterp = true
			},
			load: load{ir.SamplingCentroid, ir.InterpNoPerspective},
			want: load{ir.SamplingSample, ir.InterpNoPerspective},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shader, b := newShader(t)
			bary := b.LoadBarycentric(tt.load.sampling, tt.load.interp)
			color := b.Insert(&ir.InstLoadInput{Barycentric: bary}, nil).Def
			b.StoreOutput(color, 0xf, 0, ir.IOSemantics{Location: ir.FragResultData0}, ir.TypeFloat32)

			opts := DefaultOptions()
			tt.opts(&opts)
			lower(t, shader, opts)

			fn := shader.EntryFunction()
			if len(fn.LocalVars) != 0 || len(instructionsOf[*ir.InstLoadVar](fn)) != 0 {
				t.Errorf("temporaries not promoted: %d variables", len(fn.LocalVars))
			}

			input := instructionsOf[*ir.InstLoadInput](fn)[0]
			var src *ir.Instruction
			fn.Body.ForEach(func(inst *ir.Instruction) {
				if inst.Def == input.Barycentric {
					src = inst
				}
			})
			if src == nil {
				t.Fatal("barycentric source not found")
			}

			if tt.wantSelect {
				alu, ok := src.Kind.(*ir.InstALU)
				if !ok || alu.Op != ir.OpBcsel {
					t.Fatalf("barycentric comes from %T, want bcsel", src.Kind)
				}
				return
			}
			got, ok := src.Kind.(*ir.InstLoadBarycentric)
			if !ok {
				t.Fatalf("barycentric comes from %T", src.Kind)
			}
			if got.Sampling != tt.want.sampling || got.Interp != tt.want.interp {
				t.Errorf("barycentric = %v/%v, want %v/%v", got.Sampling, got.Interp, tt.want.sampling, tt.want.interp)
			}
		})
	}
}

func TestInitInterpParamsOrder(t *testing.T) {
	shader, _ := newShader(t)
	fn := shader.EntryFunction()
	opts := DefaultOptions()
	opts.BCOptimizeForPersp = true
	opts.ForcePerspSampleInterp = true

	s := newState(shader, fn, &opts)
	s.createInterpParams()
	s.initInterpParams()

	defs := make(map[ir.ValueHandle]ir.InstructionKind)
	var stores []*ir.InstStoreVar
	centroid := s.interp[interpPersp][ir.SamplingCentroid]
	fn.Body.ForEach(func(inst *ir.Instruction) {
		if inst.Def.Valid() {
			defs[inst.Def] = inst.Kind
		}
		if k, ok := inst.Kind.(*ir.InstStoreVar); ok && k.Var == centroid {
			stores = append(stores, k)
		}
	})

	if len(stores) != 2 {
		t.Fatalf("got %d stores to the centroid temporary, want 2", len(stores))
	}
	if alu, ok := defs[stores[0].Value].(*ir.InstALU); !ok || alu.Op != ir.OpBcsel {
		t.Errorf("first store writes %T, want the bcsel", defs[stores[0].Value])
	}
	bary, ok := defs[stores[1].Value].(*ir.InstLoadBarycentric)
	if !ok || bary.Sampling != ir.SamplingSample || bary.Interp != ir.InterpSmooth {
		t.Errorf("last store writes %T %+v, want a smooth sample barycentric", defs[stores[1].Value], bary)
	}
}

// storeInIf emits an if with an empty else and moves the builder into the
// then block.
func storeInIf(b *ir.Builder) *ir.Instruction {
	inst := b.Insert(&ir.InstIf{Condition: b.ImmBool(true), Then: &ir.Block{}, Else: &ir.Block{}}, nil)
	b.Cursor = ir.BlockEnd(inst.Kind.(*ir.InstIf).Then)
	return inst
}

func TestLowerColorStoredInBranch(t *testing.T) {
	shader, b := newShader(t)
	storeInIf(b)
	storeColor(b, ir.FragResultData0, 0, ir.TypeFloat32, 0xf)

	lower(t, shader, DefaultOptions())

	fn := shader.EntryFunction()
	if len(fn.LocalVars) != 4 || fn.LocalVars[0].Name != "color0_x" || fn.LocalVars[3].Name != "color0_w" {
		t.Errorf("variables = %+v, want color0_x through color0_w", fn.LocalVars)
	}
	exports := instructionsOf[*ir.InstExport](fn)
	if len(exports) != 1 {
		t.Fatalf("got %d exports, want 1", len(exports))
	}
	if e := exports[0]; e.Target != amd.ExpTargetMRT0 || e.WriteMask != 0xf || e.Flags != final {
		t.Errorf("export = target %d mask %#x flags %#x", e.Target, e.WriteMask, e.Flags)
	}

	// The export reads the variables after the branch.
	loads := 0
	for _, inst := range fn.Body.Instructions {
		if _, ok := inst.Kind.(*ir.InstLoadVar); ok {
			loads++
		}
	}
	if loads != 4 {
		t.Errorf("%d top-level loads, want 4", loads)
	}
}

func TestLowerDepthRewrittenInLoop(t *testing.T) {
	shader, b := newShader(t)
	fn := shader.EntryFunction()
	first := b.Undef(1, 32)
	b.StoreOutput(first, 0x1, 0, ir.IOSemantics{Location: ir.FragResultDepth}, ir.TypeFloat32)
	loop := b.Insert(&ir.InstLoop{Body: &ir.Block{}}, nil)
	b.Cursor = ir.BlockEnd(loop.Kind.(*ir.InstLoop).Body)
	storeScalar(b, ir.FragResultDepth)
	b.Insert(&ir.InstBreak{}, nil)

	lower(t, shader, DefaultOptions())

	if len(fn.LocalVars) != 1 || fn.LocalVars[0].Name != "depth" {
		t.Fatalf("variables = %+v, want depth", fn.LocalVars)
	}

	// The value stored before the loop is carried into the variable ahead
	// of it.
	carried := -1
	for i, inst := range fn.Body.Instructions {
		if k, ok := inst.Kind.(*ir.InstStoreVar); ok && k.Value == first {
			carried = i
		}
	}
	if carried < 0 || carried > fn.Body.Index(loop) {
		t.Errorf("store of the first depth at %d, loop at %d", carried, fn.Body.Index(loop))
	}
	if n := len(instructionsOf[*ir.InstStoreVar](fn)); n != 2 {
		t.Errorf("%d variable stores, want 2", n)
	}

	exports := instructionsOf[*ir.InstExport](fn)
	if len(exports) != 1 || exports[0].Target != amd.ExpTargetMRTZ || exports[0].WriteMask != 0x1 {
		t.Fatalf("exports = %+v, want one MRTZ export of depth", exports)
	}
}

func TestLowerColorStoredAfterBranch(t *testing.T) {
	shader, b := newShader(t)
	fn := shader.EntryFunction()
	ifInst := storeInIf(b)
	storeScalar(b, ir.FragResultStencil)
	b.Cursor = ir.After(ifInst)
	last := b.Undef(1, 32)
	b.StoreOutput(last, 0x1, 0, ir.IOSemantics{Location: ir.FragResultStencil}, ir.TypeUint32)

	lower(t, shader, DefaultOptions())

	// The top-level store after the branch also goes through the variable,
	// and the first store initialises it at the function start.
	stores := instructionsOf[*ir.InstStoreVar](fn)
	if len(stores) != 3 {
		t.Fatalf("%d variable stores, want 3", len(stores))
	}
	if stores[len(stores)-1].Value != last {
		t.Error("last variable store does not write the final stencil")
	}
	if _, ok := fn.Body.Instructions[0].Kind.(*ir.InstUndef); !ok {
		t.Errorf("function starts with %T, want the undef initialiser", fn.Body.Instructions[0].Kind)
	}
	if n := len(instructionsOf[*ir.InstExport](fn)); n != 1 {
		t.Errorf("got %d exports, want 1", n)
	}
}

func TestLowerIdempotent(t *testing.T) {
	shader, b := newShader(t)
	storeColor(b, ir.FragResultData0, 0, ir.TypeFloat32, 0xf)
	storeScalar(b, ir.FragResultDepth)

	opts := DefaultOptions()
	opts.PsIterSamples = 4
	lower(t, shader, opts)

	fn := shader.EntryFunction()
	before := countInstructions(fn)
	if lower(t, shader, opts) {
		t.Error("second Lower reported progress")
	}
	if after := countInstructions(fn); after != before {
		t.Errorf("instruction count changed from %d to %d", before, after)
	}
}

func TestLowerNonFragment(t *testing.T) {
	shader, b := newShader(t)
	shader.Stage = ir.StageVertex
	storeColor(b, ir.FragResultData0, 0, ir.TypeFloat32, 0xf)

	opts := DefaultOptions()
	if Lower(shader, &opts) {
		t.Error("Lower changed a vertex shader")
	}
}

func BenchmarkLower(b *testing.B) {
	opts := DefaultOptions()
	opts.SpiShaderColFormat = amd.PackColorFormats(
		amd.SPIShaderFP16ABGR, amd.SPIShader32ABGR, amd.SPIShaderUnorm16, amd.SPIShaderUint16ABGR)
	opts.ForcePerspSampleInterp = true
	opts.ClampColor = true

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		fn := ir.NewFunction("main")
		shader := &ir.Shader{Stage: ir.StageFragment, Functions: []*ir.Function{fn}}
		bld := ir.NewBuilder(fn)
		bary := bld.LoadBarycentric(ir.SamplingCenter, ir.InterpSmooth)
		color := bld.Insert(&ir.InstLoadInput{Barycentric: bary}, nil).Def
		for slot := ir.FragResultData0; slot <= ir.FragResultData3; slot++ {
			bld.StoreOutput(color, 0xf, 0, ir.IOSemantics{Location: slot}, ir.TypeFloat32)
		}
		Lower(shader, &opts)
	}
}
