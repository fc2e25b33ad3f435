package irtext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/radeon/ir"
)

// Parse reads a shader from its textual form. Syntax errors are returned as
// an ErrorList; the shader is not validated.
func Parse(source string) (*ir.Shader, error) {
	tokens, err := NewLexer(source).Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens, source).Parse()
}

// Parser builds IR from tokens.
type Parser struct {
	tokens  []Token
	current int
	source  string
	errors  ErrorList

	shader   *ir.Shader
	sawEntry bool

	// Per-function state.
	fn     *ir.Function
	b      *ir.Builder
	values map[string]ir.ValueHandle
	vars   map[string]ir.VariableHandle
}

// NewParser creates a new parser for the given tokens. source is only used
// for error context.
func NewParser(tokens []Token, source string) *Parser {
	return &Parser{
		tokens: tokens,
		source: source,
	}
}

// Parse parses the tokens and returns the shader.
func (p *Parser) Parse() (*ir.Shader, error) {
	p.skipNewlines()
	if err := p.header(); err != nil {
		return nil, ErrorList{err}
	}

	for {
		p.skipNewlines()
		if p.isAtEnd() {
			break
		}
		if err := p.declaration(); err != nil {
			p.errors = append(p.errors, err)
			p.synchronize()
		}
	}

	if len(p.shader.Functions) == 0 {
		p.errors = append(p.errors, p.errorAt(p.peek(), "shader has no functions"))
	}
	if len(p.errors) > 0 {
		return nil, p.errors
	}
	return p.shader, nil
}

// header parses: shader "name" stage
func (p *Parser) header() *Error {
	if err := p.expectIdent("shader"); err != nil {
		return err
	}
	nameTok, err := p.expect(TokenString)
	if err != nil {
		return err
	}
	stageTok, err := p.expect(TokenIdent)
	if err != nil {
		return err
	}
	stage, ok := lookup(stageNames, stageTok.Lexeme)
	if !ok {
		return p.errorAt(stageTok, "unknown shader stage %q", stageTok.Lexeme)
	}
	p.shader = &ir.Shader{Name: nameTok.Lexeme, Stage: ir.ShaderStage(stage)}
	return p.endOfLine()
}

func (p *Parser) declaration() *Error {
	tok := p.peek()
	if tok.Kind == TokenIdent {
		switch tok.Lexeme {
		case "info":
			return p.info()
		case "fn":
			return p.function()
		}
	}
	return p.errorAt(tok, "unexpected %s, expected info or fn", tok.describe())
}

// info parses: info mode...
func (p *Parser) info() *Error {
	p.advance()
	flags := infoFlags(&p.shader.Info)
	for p.check(TokenIdent) {
		tok := p.advance()
		i, ok := lookup(infoNames, tok.Lexeme)
		if !ok {
			return p.errorAt(tok, "unknown execution mode %q", tok.Lexeme)
		}
		*flags[i] = true
	}
	return p.endOfLine()
}

// function parses: fn name [entry] { body }
func (p *Parser) function() *Error {
	p.advance()
	nameTok, err := p.expect(TokenIdent)
	if err != nil {
		return err
	}

	entry := false
	if p.checkIdent("entry") {
		entryTok := p.advance()
		if p.sawEntry {
			return p.errorAt(entryTok, "second entry function %s", nameTok.Lexeme)
		}
		entry = true
	}
	if _, err := p.expect(TokenLeftBrace); err != nil {
		return err
	}

	fn := ir.NewFunction(nameTok.Lexeme)
	if entry {
		p.sawEntry = true
		p.shader.EntryPoint = ir.FunctionHandle(len(p.shader.Functions))
	}
	p.shader.Functions = append(p.shader.Functions, fn)

	p.fn = fn
	p.b = ir.NewBuilder(fn)
	p.values = make(map[string]ir.ValueHandle)
	p.vars = make(map[string]ir.VariableHandle)

	if err := p.block(fn.Body); err != nil {
		return err
	}
	return p.endOfLine()
}

// block parses statements up to and including the closing brace. Errors in
// single statements are recorded and parsing resumes on the next line.
func (p *Parser) block(blk *ir.Block) *Error {
	for {
		p.skipNewlines()
		if p.check(TokenRightBrace) {
			p.advance()
			return nil
		}
		if p.isAtEnd() {
			return p.errorAt(p.peek(), "unterminated block")
		}
		p.b.Cursor = ir.BlockEnd(blk)
		if err := p.statement(); err != nil {
			p.errors = append(p.errors, err)
			p.skipLine()
		}
	}
}

func (p *Parser) statement() *Error {
	tok := p.peek()
	switch tok.Kind {
	case TokenValue:
		return p.definition()
	case TokenIdent:
	default:
		return p.errorAt(tok, "unexpected %s, expected instruction", tok.describe())
	}

	switch tok.Lexeme {
	case "var":
		return p.varDecl()
	case "if":
		return p.ifStatement()
	case "loop":
		return p.loopStatement()
	}

	p.advance()
	kind, err := p.effect(tok)
	if err != nil {
		return err
	}
	p.b.Insert(kind, nil)
	return p.endOfLine()
}

// varDecl parses: var name shape
func (p *Parser) varDecl() *Error {
	p.advance()
	nameTok, err := p.expect(TokenIdent)
	if err != nil {
		return err
	}
	if _, dup := p.vars[nameTok.Lexeme]; dup {
		return p.errorAt(nameTok, "variable %s redeclared", nameTok.Lexeme)
	}
	shape, err := p.shape()
	if err != nil {
		return err
	}
	p.vars[nameTok.Lexeme] = p.fn.AddLocalVar(nameTok.Lexeme, shape.Components, shape.BitSize)
	return p.endOfLine()
}

// definition parses: %N:shape = mnemonic operands attributes
func (p *Parser) definition() *Error {
	valTok := p.advance()
	if _, dup := p.values[valTok.Lexeme]; dup {
		return p.errorAt(valTok, "value %s redefined", valTok.Lexeme)
	}
	if _, err := p.expect(TokenColon); err != nil {
		return err
	}
	shape, err := p.shape()
	if err != nil {
		return err
	}
	if _, err := p.expect(TokenEqual); err != nil {
		return err
	}
	op, err := p.expect(TokenIdent)
	if err != nil {
		return err
	}

	kind, err := p.valueInstruction(op, shape)
	if err != nil {
		return err
	}
	inst := p.b.Insert(kind, &shape)
	p.values[valTok.Lexeme] = inst.Def
	return p.endOfLine()
}

//nolint:gocyclo,cyclop // one case per value-producing instruction
func (p *Parser) valueInstruction(op Token, shape ir.Value) (ir.InstructionKind, *Error) {
	switch op.Lexeme {
	case "const":
		tok, err := p.expect(TokenInt)
		if err != nil {
			return nil, err
		}
		v, err := p.integer(tok)
		if err != nil {
			return nil, err
		}
		if shape.BitSize < 64 {
			v &= 1<<shape.BitSize - 1
		}
		return &ir.InstConst{Bits: v}, nil

	case "undef":
		return &ir.InstUndef{}, nil

	case "channel":
		vec, err := p.operand()
		if err != nil {
			return nil, err
		}
		tok, err := p.expect(TokenInt)
		if err != nil {
			return nil, err
		}
		idx, err := p.integer(tok)
		if err != nil {
			return nil, err
		}
		return &ir.InstChannel{Vector: vec, Index: uint8(idx)}, nil

	case "load_var":
		v, err := p.variable()
		if err != nil {
			return nil, err
		}
		return &ir.InstLoadVar{Var: v}, nil

	case "load_barycentric":
		sampling, err := p.enum(samplingNames, "sampling")
		if err != nil {
			return nil, err
		}
		interp, err := p.enum(interpNames, "interpolation")
		if err != nil {
			return nil, err
		}
		return &ir.InstLoadBarycentric{
			Sampling: ir.InterpolationSampling(sampling),
			Interp:   ir.InterpMode(interp),
		}, nil

	case "load_input":
		bary, err := p.operand()
		if err != nil {
			return nil, err
		}
		as, err := p.attributes()
		if err != nil {
			return nil, err
		}
		location := as.integer("location", 0)
		component := as.integer("component", 0)
		if err := as.finish(); err != nil {
			return nil, err
		}
		return &ir.InstLoadInput{Barycentric: bary, Location: uint32(location), Component: uint8(component)}, nil

	case "load_system_value":
		sv, err := p.enum(systemValueNames, "system value")
		if err != nil {
			return nil, err
		}
		return &ir.InstLoadSystemValue{Value: ir.SystemValue(sv)}, nil

	case "quad_swizzle":
		src, err := p.operand()
		if err != nil {
			return nil, err
		}
		as, err := p.attributes()
		if err != nil {
			return nil, err
		}
		mask := as.required().integer("mask", 0)
		fetchInactive := as.flag("fetch_inactive")
		if err := as.finish(); err != nil {
			return nil, err
		}
		return &ir.InstQuadSwizzle{Src: src, Mask: uint8(mask), FetchInactive: fetchInactive}, nil
	}

	aluOp, ok := ir.LookupALUOp(op.Lexeme)
	if !ok {
		return nil, p.errorAt(op, "unknown instruction %q", op.Lexeme)
	}
	var args []ir.ValueHandle
	for p.check(TokenValue) {
		a, err := p.operand()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return &ir.InstALU{Op: aluOp, Args: args}, nil
}

// effect parses the operands of an instruction that defines no value.
//
//nolint:gocyclo,cyclop // one case per instruction
func (p *Parser) effect(op Token) (ir.InstructionKind, *Error) {
	switch op.Lexeme {
	case "store_var":
		v, err := p.variable()
		if err != nil {
			return nil, err
		}
		val, err := p.operand()
		if err != nil {
			return nil, err
		}
		as, err := p.attributes()
		if err != nil {
			return nil, err
		}
		mask := as.required().integer("mask", 0)
		if err := as.finish(); err != nil {
			return nil, err
		}
		return &ir.InstStoreVar{Var: v, Value: val, WriteMask: uint8(mask)}, nil

	case "store_output":
		val, err := p.operand()
		if err != nil {
			return nil, err
		}
		as, err := p.attributes()
		if err != nil {
			return nil, err
		}
		slot := as.required().enum("slot", slotNames)
		dual := as.integer("dual", 0)
		component := as.integer("component", 0)
		mask := as.required().integer("mask", 0)
		typ := as.required().scalarType("type")
		if err := as.finish(); err != nil {
			return nil, err
		}
		return &ir.InstStoreOutput{
			Value:     val,
			WriteMask: uint8(mask),
			Component: uint8(component),
			Semantics: ir.IOSemantics{Location: ir.FragResult(slot), DualSourceIndex: uint8(dual)},
			SrcType:   typ,
		}, nil

	case "export":
		arg, err := p.operand()
		if err != nil {
			return nil, err
		}
		as, err := p.attributes()
		if err != nil {
			return nil, err
		}
		target := as.required().integer("target", 0)
		mask := as.required().integer("mask", 0)
		flags := as.flags("flags", exportFlagNames)
		if err := as.finish(); err != nil {
			return nil, err
		}
		return &ir.InstExport{Arg: arg, Target: uint8(target), WriteMask: uint8(mask), Flags: ir.ExportFlags(flags)}, nil

	case "export_dual_src_blend":
		arg0, err := p.operand()
		if err != nil {
			return nil, err
		}
		arg1, err := p.operand()
		if err != nil {
			return nil, err
		}
		as, err := p.attributes()
		if err != nil {
			return nil, err
		}
		mask := as.required().integer("mask", 0)
		if err := as.finish(); err != nil {
			return nil, err
		}
		return &ir.InstExportDualSrcBlend{Arg0: arg0, Arg1: arg1, WriteMask: uint8(mask)}, nil

	case "discard":
		return &ir.InstDiscard{}, nil

	case "discard_if":
		cond, err := p.operand()
		if err != nil {
			return nil, err
		}
		return &ir.InstDiscardIf{Condition: cond}, nil

	case "barrier":
		as, err := p.attributes()
		if err != nil {
			return nil, err
		}
		scope := as.required().enum("scope", scopeNames)
		semantics := as.flags("semantics", semanticsNames)
		modes := as.flags("modes", modeNames)
		if err := as.finish(); err != nil {
			return nil, err
		}
		return &ir.InstBarrier{
			Scope:     ir.MemoryScope(scope),
			Semantics: ir.MemorySemantics(semantics),
			Modes:     ir.MemoryModes(modes),
		}, nil

	case "break":
		return &ir.InstBreak{}, nil

	case "continue":
		return &ir.InstContinue{}, nil
	}
	return nil, p.errorAt(op, "unknown instruction %q", op.Lexeme)
}

// ifStatement parses: if %c { ... } [else { ... }]
func (p *Parser) ifStatement() *Error {
	p.advance()
	cond, err := p.operand()
	if err != nil {
		return err
	}
	if _, err := p.expect(TokenLeftBrace); err != nil {
		return err
	}

	k := &ir.InstIf{Condition: cond, Then: &ir.Block{}, Else: &ir.Block{}}
	p.b.Insert(k, nil)

	if err := p.block(k.Then); err != nil {
		return err
	}
	if p.checkIdent("else") {
		p.advance()
		if _, err := p.expect(TokenLeftBrace); err != nil {
			return err
		}
		if err := p.block(k.Else); err != nil {
			return err
		}
	}
	return p.endOfLine()
}

// loopStatement parses: loop { ... }
func (p *Parser) loopStatement() *Error {
	p.advance()
	if _, err := p.expect(TokenLeftBrace); err != nil {
		return err
	}
	k := &ir.InstLoop{Body: &ir.Block{}}
	p.b.Insert(k, nil)
	if err := p.block(k.Body); err != nil {
		return err
	}
	return p.endOfLine()
}

func (p *Parser) operand() (ir.ValueHandle, *Error) {
	tok, err := p.expect(TokenValue)
	if err != nil {
		return ir.NoValue, err
	}
	h, ok := p.values[tok.Lexeme]
	if !ok {
		return ir.NoValue, p.errorAt(tok, "undefined value %s", tok.Lexeme)
	}
	return h, nil
}

func (p *Parser) variable() (ir.VariableHandle, *Error) {
	tok, err := p.expect(TokenIdent)
	if err != nil {
		return 0, err
	}
	v, ok := p.vars[tok.Lexeme]
	if !ok {
		return 0, p.errorAt(tok, "undeclared variable %s", tok.Lexeme)
	}
	return v, nil
}

func (p *Parser) enum(names []string, what string) (int, *Error) {
	tok, err := p.expect(TokenIdent)
	if err != nil {
		return 0, err
	}
	i, ok := lookup(names, tok.Lexeme)
	if !ok {
		return 0, p.errorAt(tok, "unknown %s %q", what, tok.Lexeme)
	}
	return i, nil
}

// shape parses a components x bit size pair such as 4x32.
func (p *Parser) shape() (ir.Value, *Error) {
	tok, err := p.expect(TokenShape)
	if err != nil {
		return ir.Value{}, err
	}
	c, b, _ := strings.Cut(tok.Lexeme, "x")
	components, err1 := strconv.ParseUint(c, 10, 8)
	bitSize, err2 := strconv.ParseUint(b, 10, 8)
	if err1 != nil || err2 != nil || components == 0 || components > 4 {
		return ir.Value{}, p.errorAt(tok, "invalid shape %s", tok.Lexeme)
	}
	switch bitSize {
	case 1, 8, 16, 32, 64:
	default:
		return ir.Value{}, p.errorAt(tok, "invalid bit size %d", bitSize)
	}
	return ir.Value{Components: uint8(components), BitSize: uint8(bitSize)}, nil
}

func (p *Parser) integer(tok Token) (uint64, *Error) {
	if strings.HasPrefix(tok.Lexeme, "-") {
		v, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			return 0, p.errorAt(tok, "invalid integer %s", tok.Lexeme)
		}
		return uint64(v), nil
	}
	v, err := strconv.ParseUint(tok.Lexeme, 0, 64)
	if err != nil {
		return 0, p.errorAt(tok, "invalid integer %s", tok.Lexeme)
	}
	return v, nil
}

// endOfLine accepts the end of a statement: a newline, a closing brace of
// the enclosing block, or the end of input.
func (p *Parser) endOfLine() *Error {
	switch p.peek().Kind {
	case TokenNewline:
		p.advance()
		return nil
	case TokenRightBrace, TokenEOF:
		return nil
	}
	return p.errorAt(p.peek(), "unexpected %s at end of line", p.peek().describe())
}

func (p *Parser) skipNewlines() {
	for p.check(TokenNewline) {
		p.advance()
	}
}

func (p *Parser) skipLine() {
	for !p.isAtEnd() && !p.check(TokenNewline) {
		p.advance()
	}
	p.skipNewlines()
}

// synchronize skips to the next top-level declaration.
func (p *Parser) synchronize() {
	for !p.isAtEnd() {
		p.skipLine()
		if p.checkIdent("fn") || p.checkIdent("info") {
			return
		}
	}
}

func (p *Parser) advance() Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) peek() Token {
	return p.tokens[p.current]
}

func (p *Parser) previous() Token {
	return p.tokens[p.current-1]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Kind == TokenEOF
}

func (p *Parser) check(kind TokenKind) bool {
	return p.peek().Kind == kind
}

func (p *Parser) checkIdent(lexeme string) bool {
	tok := p.peek()
	return tok.Kind == TokenIdent && tok.Lexeme == lexeme
}

func (p *Parser) expect(kind TokenKind) (Token, *Error) {
	if p.check(kind) {
		return p.advance(), nil
	}
	return Token{}, p.errorAt(p.peek(), "expected %s, got %s", kind, p.peek().describe())
}

func (p *Parser) expectIdent(lexeme string) *Error {
	if p.checkIdent(lexeme) {
		p.advance()
		return nil
	}
	return p.errorAt(p.peek(), "expected %q, got %s", lexeme, p.peek().describe())
}

func (p *Parser) errorAt(tok Token, format string, args ...any) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Line:    tok.Line,
		Column:  tok.Column,
		Source:  p.source,
	}
}
