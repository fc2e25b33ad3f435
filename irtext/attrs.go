package irtext

import "github.com/gogpu/radeon/ir"

type attr struct {
	key   Token
	parts []Token // nil for a bare flag
}

// attrSet holds the key=value attributes of one instruction. Accessors
// record the first error; finish reports it along with unused keys.
type attrSet struct {
	p      *Parser
	anchor Token
	order  []*attr
	byKey  map[string]*attr
	used   map[string]bool
	must   bool
	err    *Error
}

func (p *Parser) attributes() (*attrSet, *Error) {
	as := &attrSet{
		p:      p,
		anchor: p.previous(),
		byKey:  make(map[string]*attr),
		used:   make(map[string]bool),
	}
	for p.check(TokenIdent) {
		key := p.advance()
		if _, dup := as.byKey[key.Lexeme]; dup {
			return nil, p.errorAt(key, "duplicate attribute %s", key.Lexeme)
		}
		a := &attr{key: key}
		if p.check(TokenEqual) {
			p.advance()
			for {
				if !p.check(TokenIdent) && !p.check(TokenInt) {
					return nil, p.errorAt(p.peek(), "expected value of %s, got %s", key.Lexeme, p.peek().describe())
				}
				a.parts = append(a.parts, p.advance())
				if !p.check(TokenPipe) {
					break
				}
				p.advance()
			}
		}
		as.order = append(as.order, a)
		as.byKey[key.Lexeme] = a
	}
	return as, nil
}

// required makes the next accessor report a missing key.
func (as *attrSet) required() *attrSet {
	as.must = true
	return as
}

func (as *attrSet) fail(tok Token, format string, args ...any) {
	if as.err == nil {
		as.err = as.p.errorAt(tok, format, args...)
	}
}

func (as *attrSet) get(key string) *attr {
	must := as.must
	as.must = false
	a, ok := as.byKey[key]
	if !ok {
		if must {
			as.fail(as.anchor, "missing attribute %s", key)
		}
		return nil
	}
	as.used[key] = true
	if a.parts == nil {
		as.fail(a.key, "attribute %s needs a value", key)
		return nil
	}
	return a
}

func (as *attrSet) integer(key string, def uint64) uint64 {
	a := as.get(key)
	if a == nil {
		return def
	}
	if len(a.parts) != 1 || a.parts[0].Kind != TokenInt {
		as.fail(a.key, "attribute %s must be an integer", key)
		return def
	}
	v, err := as.p.integer(a.parts[0])
	if err != nil {
		as.fail(a.parts[0], "%s", err.Message)
		return def
	}
	return v
}

func (as *attrSet) enum(key string, names []string) int {
	a := as.get(key)
	if a == nil {
		return 0
	}
	tok := a.parts[0]
	i, ok := lookup(names, tok.Lexeme)
	if len(a.parts) != 1 || !ok {
		as.fail(tok, "invalid %s %q", key, tok.Lexeme)
	}
	return i
}

// flags accepts name|name..., "none" or a raw integer.
func (as *attrSet) flags(key string, names []string) uint32 {
	a := as.get(key)
	if a == nil {
		return 0
	}
	var bits uint32
	for _, tok := range a.parts {
		if tok.Kind == TokenInt {
			v, err := as.p.integer(tok)
			if err != nil {
				as.fail(tok, "%s", err.Message)
			}
			bits |= uint32(v)
			continue
		}
		if tok.Lexeme == "none" {
			continue
		}
		i, ok := lookup(names, tok.Lexeme)
		if !ok {
			as.fail(tok, "unknown %s flag %q", key, tok.Lexeme)
			continue
		}
		bits |= 1 << i
	}
	return bits
}

func (as *attrSet) scalarType(key string) ir.ScalarType {
	a := as.get(key)
	if a == nil {
		return ir.ScalarType{}
	}
	t, ok := parseScalarType(a.parts[0].Lexeme)
	if len(a.parts) != 1 || !ok {
		as.fail(a.parts[0], "invalid type %q", a.parts[0].Lexeme)
	}
	return t
}

// flag reports whether the bare key is present.
func (as *attrSet) flag(key string) bool {
	a, ok := as.byKey[key]
	if !ok {
		return false
	}
	as.used[key] = true
	if a.parts != nil {
		as.fail(a.key, "attribute %s takes no value", key)
	}
	return true
}

func (as *attrSet) finish() *Error {
	if as.err != nil {
		return as.err
	}
	for _, a := range as.order {
		if !as.used[a.key.Lexeme] {
			return as.p.errorAt(a.key, "unknown attribute %s", a.key.Lexeme)
		}
	}
	return nil
}
