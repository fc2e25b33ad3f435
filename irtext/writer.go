package irtext

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/gogpu/radeon/ir"
)

// Config controls text output.
type Config struct {
	// Color highlights the output with ANSI escape sequences.
	Color bool

	// Indent is the per-level indentation; empty selects two spaces.
	Indent string
}

var (
	styleKeyword  = ansi.Style{}.Bold().ForegroundColor(ansi.Magenta)
	styleMnemonic = ansi.Style{}.Bold()
	styleValue    = ansi.Style{}.ForegroundColor(ansi.Cyan)
	styleShape    = ansi.Style{}.Faint()
	styleAttr     = ansi.Style{}.ForegroundColor(ansi.Blue)
	styleNumber   = ansi.Style{}.ForegroundColor(ansi.Yellow)
	styleString   = ansi.Style{}.ForegroundColor(ansi.Green)
)

// Print returns the textual form of shader without highlighting.
func Print(shader *ir.Shader) string {
	var sb strings.Builder
	newWriter(&sb, Config{}).shader(shader)
	return sb.String()
}

// Write writes the textual form of shader to w.
func Write(w io.Writer, shader *ir.Shader, cfg Config) error {
	var sb strings.Builder
	newWriter(&sb, cfg).shader(shader)
	_, err := io.WriteString(w, sb.String())
	return err
}

type writer struct {
	out    *strings.Builder
	cfg    Config
	depth  int
	fn     *ir.Function
	names  map[ir.ValueHandle]int
	vars   []string
	nextID int
}

func newWriter(out *strings.Builder, cfg Config) *writer {
	if cfg.Indent == "" {
		cfg.Indent = "  "
	}
	return &writer{out: out, cfg: cfg}
}

func (w *writer) styled(s ansi.Style, text string) string {
	if !w.cfg.Color {
		return text
	}
	return s.Styled(text)
}

func (w *writer) line(parts ...string) {
	w.out.WriteString(strings.Repeat(w.cfg.Indent, w.depth))
	w.out.WriteString(strings.Join(parts, " "))
	w.out.WriteByte('\n')
}

func (w *writer) shader(s *ir.Shader) {
	w.line(w.styled(styleKeyword, "shader"), w.styled(styleString, fmt.Sprintf("%q", s.Name)), name(stageNames, s.Stage))

	info := s.Info
	for i, set := range infoFlags(&info) {
		if *set {
			w.line(w.styled(styleKeyword, "info"), infoNames[i])
		}
	}

	for i, fn := range s.Functions {
		w.out.WriteByte('\n')
		w.function(fn, ir.FunctionHandle(i) == s.EntryPoint, i)
	}
}

func (w *writer) function(fn *ir.Function, entry bool, index int) {
	w.fn = fn
	w.names = make(map[ir.ValueHandle]int, len(fn.Values))
	w.nextID = 0
	fn.Body.ForEach(func(inst *ir.Instruction) {
		if inst.Def.Valid() {
			w.value(inst.Def)
		}
	})

	fnName := fn.Name
	if fnName == "" {
		fnName = fmt.Sprintf("fn%d", index)
	}
	header := []string{w.styled(styleKeyword, "fn"), fnName}
	if entry {
		header = append(header, w.styled(styleKeyword, "entry"))
	}
	w.line(append(header, "{")...)
	w.depth++

	w.vars = make([]string, len(fn.LocalVars))
	for i, lv := range fn.LocalVars {
		w.vars[i] = lv.Name
		if lv.Name == "" {
			w.vars[i] = fmt.Sprintf("var%d", i)
		}
		w.line(w.styled(styleKeyword, "var"), w.vars[i], w.styled(styleShape, shapeString(lv.Components, lv.BitSize)))
	}

	w.block(fn.Body)
	w.depth--
	w.line("}")
}

func (w *writer) block(b *ir.Block) {
	for _, inst := range b.Instructions {
		w.instruction(inst)
	}
}

// value returns the printed name of h, numbering values in order of first
// appearance.
func (w *writer) value(h ir.ValueHandle) string {
	id, ok := w.names[h]
	if !ok {
		id = w.nextID
		w.nextID++
		w.names[h] = id
	}
	return w.styled(styleValue, fmt.Sprintf("%%%d", id))
}

func (w *writer) variable(v ir.VariableHandle) string {
	if int(v) < len(w.vars) {
		return w.vars[v]
	}
	return fmt.Sprintf("var%d", v)
}

func (w *writer) attr(key, value string) string {
	return w.styled(styleAttr, key) + "=" + value
}

func (w *writer) number(v uint64) string {
	if v < 10 {
		return w.styled(styleNumber, fmt.Sprintf("%d", v))
	}
	return w.styled(styleNumber, fmt.Sprintf("%#x", v))
}

func (w *writer) mask(m uint8) string {
	return w.styled(styleNumber, fmt.Sprintf("%#x", m))
}

func shapeString(components, bitSize uint8) string {
	return fmt.Sprintf("%dx%d", components, bitSize)
}

//nolint:gocyclo,cyclop,funlen // one case per instruction kind
func (w *writer) instruction(inst *ir.Instruction) {
	var parts []string
	if inst.Def.Valid() {
		shape := "?"
		if int(inst.Def) < len(w.fn.Values) {
			v := w.fn.Values[inst.Def]
			shape = shapeString(v.Components, v.BitSize)
		}
		parts = append(parts, w.value(inst.Def)+":"+w.styled(styleShape, shape), "=")
	}
	op := func(mnemonic string) {
		parts = append(parts, w.styled(styleMnemonic, mnemonic))
	}

	switch k := inst.Kind.(type) {
	case *ir.InstConst:
		op("const")
		parts = append(parts, w.number(k.Bits))

	case *ir.InstUndef:
		op("undef")

	case *ir.InstALU:
		op(k.Op.String())
		for _, a := range k.Args {
			parts = append(parts, w.value(a))
		}

	case *ir.InstChannel:
		op("channel")
		parts = append(parts, w.value(k.Vector), w.number(uint64(k.Index)))

	case *ir.InstLoadVar:
		op("load_var")
		parts = append(parts, w.variable(k.Var))

	case *ir.InstLoadBarycentric:
		op("load_barycentric")
		parts = append(parts, name(samplingNames, k.Sampling), name(interpNames, k.Interp))

	case *ir.InstLoadInput:
		op("load_input")
		parts = append(parts, w.value(k.Barycentric),
			w.attr("location", w.number(uint64(k.Location))),
			w.attr("component", w.number(uint64(k.Component))))

	case *ir.InstLoadSystemValue:
		op("load_system_value")
		parts = append(parts, name(systemValueNames, k.Value))

	case *ir.InstQuadSwizzle:
		op("quad_swizzle")
		parts = append(parts, w.value(k.Src), w.attr("mask", w.mask(k.Mask)))
		if k.FetchInactive {
			parts = append(parts, w.styled(styleAttr, "fetch_inactive"))
		}

	case *ir.InstStoreVar:
		op("store_var")
		parts = append(parts, w.variable(k.Var), w.value(k.Value), w.attr("mask", w.mask(k.WriteMask)))

	case *ir.InstStoreOutput:
		op("store_output")
		parts = append(parts, w.value(k.Value), w.attr("slot", name(slotNames, k.Semantics.Location)))
		if k.Semantics.DualSourceIndex != 0 {
			parts = append(parts, w.attr("dual", w.number(uint64(k.Semantics.DualSourceIndex))))
		}
		if k.Component != 0 {
			parts = append(parts, w.attr("component", w.number(uint64(k.Component))))
		}
		parts = append(parts, w.attr("mask", w.mask(k.WriteMask)), w.attr("type", scalarTypeString(k.SrcType)))

	case *ir.InstExport:
		op("export")
		parts = append(parts, w.value(k.Arg),
			w.attr("target", w.number(uint64(k.Target))),
			w.attr("mask", w.mask(k.WriteMask)))
		if k.Flags != 0 {
			parts = append(parts, w.attr("flags", flagString(exportFlagNames, uint32(k.Flags))))
		}

	case *ir.InstExportDualSrcBlend:
		op("export_dual_src_blend")
		parts = append(parts, w.value(k.Arg0), w.value(k.Arg1), w.attr("mask", w.mask(k.WriteMask)))

	case *ir.InstDiscard:
		op("discard")

	case *ir.InstDiscardIf:
		op("discard_if")
		parts = append(parts, w.value(k.Condition))

	case *ir.InstBarrier:
		op("barrier")
		parts = append(parts,
			w.attr("scope", name(scopeNames, k.Scope)),
			w.attr("semantics", flagString(semanticsNames, uint32(k.Semantics))),
			w.attr("modes", flagString(modeNames, uint32(k.Modes))))

	case *ir.InstIf:
		w.line(w.styled(styleKeyword, "if"), w.value(k.Condition), "{")
		w.nested(k.Then)
		if k.Else != nil && k.Else.Len() > 0 {
			w.line("}", w.styled(styleKeyword, "else"), "{")
			w.nested(k.Else)
		}
		w.line("}")
		return

	case *ir.InstLoop:
		w.line(w.styled(styleKeyword, "loop"), "{")
		w.nested(k.Body)
		w.line("}")
		return

	case *ir.InstBreak:
		op("break")

	case *ir.InstContinue:
		op("continue")

	default:
		op(fmt.Sprintf("unknown(%T)", k))
	}

	w.line(parts...)
}

func (w *writer) nested(b *ir.Block) {
	if b == nil {
		return
	}
	w.depth++
	w.block(b)
	w.depth--
}
