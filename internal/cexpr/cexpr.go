// Package cexpr evaluates the bodies of object-like C macros.
//
// Only constant expressions are supported: integer, character and string
// literals, parentheses, simple casts to integer types, the unary operators
// + - ~ !, the binary arithmetic, shift, relational, bitwise and logical
// operators, the conditional operator, and references to macros evaluated
// earlier.
package cexpr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// TokenKind classifies a preprocessing token.
type TokenKind int

const (
	Punct TokenKind = iota
	Keyword
	Ident
	Literal
	Comment
)

// Token is one preprocessing token of a macro body.
type Token struct {
	Kind TokenKind
	Text string
}

// Value is the result of an evaluation.
type Value struct {
	Int      int64
	Unsigned bool
	Str      string
	IsString bool
}

// IntValue returns a signed integer value.
func IntValue(v int64) Value { return Value{Int: v} }

// StringValue returns a string value.
func StringValue(s string) Value { return Value{Str: s, IsString: true} }

// Lookup resolves an identifier to a previously evaluated value.
type Lookup func(name string) (Value, bool)

// ErrNotConstant is returned for bodies that are not constant expressions.
var ErrNotConstant = errors.New("not a constant expression")

// Eval evaluates tokens. Comment tokens are ignored.
func Eval(tokens []Token, lookup Lookup) (Value, error) {
	p := &parser{lookup: lookup}
	for _, t := range tokens {
		if t.Kind != Comment {
			p.toks = append(p.toks, t)
		}
	}
	if len(p.toks) == 0 {
		return Value{}, fmt.Errorf("empty body: %w", ErrNotConstant)
	}

	v, err := p.expr(0)
	if err != nil {
		return Value{}, err
	}
	if p.pos != len(p.toks) {
		return Value{}, fmt.Errorf("unexpected %q: %w", p.toks[p.pos].Text, ErrNotConstant)
	}
	return v, nil
}

type parser struct {
	toks   []Token
	pos    int
	lookup Lookup
}

func (p *parser) peek() (Token, bool) {
	if p.pos >= len(p.toks) {
		return Token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) isPunct(text string) bool {
	t, ok := p.peek()
	return ok && t.Kind == Punct && t.Text == text
}

// binary operator precedence, higher binds tighter
var precedence = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, ">": 7, "<=": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

func (p *parser) expr(minPrec int) (Value, error) {
	lhs, err := p.unary()
	if err != nil {
		return Value{}, err
	}

	for {
		t, ok := p.peek()
		if !ok || t.Kind != Punct {
			break
		}
		if t.Text == "?" && minPrec == 0 {
			p.pos++
			return p.conditional(lhs)
		}
		prec, isBinary := precedence[t.Text]
		if !isBinary || prec <= minPrec {
			break
		}
		p.pos++
		rhs, err := p.expr(prec)
		if err != nil {
			return Value{}, err
		}
		lhs, err = binary(t.Text, lhs, rhs)
		if err != nil {
			return Value{}, err
		}
	}
	return lhs, nil
}

func (p *parser) conditional(cond Value) (Value, error) {
	if cond.IsString {
		return Value{}, fmt.Errorf("string condition: %w", ErrNotConstant)
	}
	then, err := p.expr(0)
	if err != nil {
		return Value{}, err
	}
	if !p.isPunct(":") {
		return Value{}, fmt.Errorf("missing ':' in conditional: %w", ErrNotConstant)
	}
	p.pos++
	otherwise, err := p.expr(0)
	if err != nil {
		return Value{}, err
	}
	if cond.Int != 0 {
		return then, nil
	}
	return otherwise, nil
}

func (p *parser) unary() (Value, error) {
	t, ok := p.peek()
	if !ok {
		return Value{}, fmt.Errorf("unexpected end: %w", ErrNotConstant)
	}

	switch t.Kind {
	case Punct:
		switch t.Text {
		case "(":
			if unsigned, n, ok := p.cast(); ok {
				p.pos += n
				v, err := p.unary()
				if err != nil {
					return Value{}, err
				}
				if v.IsString {
					return Value{}, fmt.Errorf("cast of string: %w", ErrNotConstant)
				}
				v.Unsigned = unsigned
				return v, nil
			}
			p.pos++
			v, err := p.expr(0)
			if err != nil {
				return Value{}, err
			}
			if !p.isPunct(")") {
				return Value{}, fmt.Errorf("missing ')': %w", ErrNotConstant)
			}
			p.pos++
			return v, nil
		case "-", "+", "~", "!":
			p.pos++
			v, err := p.unary()
			if err != nil {
				return Value{}, err
			}
			if v.IsString {
				return Value{}, fmt.Errorf("operator %s on string: %w", t.Text, ErrNotConstant)
			}
			switch t.Text {
			case "-":
				v.Int = -v.Int
			case "~":
				v.Int = ^v.Int
			case "!":
				v = IntValue(boolInt(v.Int == 0))
			}
			return v, nil
		}
	case Literal:
		p.pos++
		v, err := literal(t.Text)
		if err != nil {
			return Value{}, err
		}
		// adjacent string literals concatenate
		for v.IsString {
			next, ok := p.peek()
			if !ok || next.Kind != Literal || !isStringLiteral(next.Text) {
				break
			}
			p.pos++
			more, err := literal(next.Text)
			if err != nil {
				return Value{}, err
			}
			v.Str += more.Str
		}
		return v, nil
	case Ident:
		p.pos++
		if p.lookup != nil {
			if v, ok := p.lookup(t.Text); ok {
				return v, nil
			}
		}
		return Value{}, fmt.Errorf("unknown identifier %q: %w", t.Text, ErrNotConstant)
	}
	return Value{}, fmt.Errorf("unexpected %q: %w", t.Text, ErrNotConstant)
}

var castWords = map[string]bool{
	"char": true, "short": true, "int": true, "long": true,
	"signed": true, "unsigned": true, "const": true,
	"size_t": true, "ssize_t": true, "ptrdiff_t": true,
	"intptr_t": true, "uintptr_t": true,
	"int8_t": true, "int16_t": true, "int32_t": true, "int64_t": true,
	"uint8_t": true, "uint16_t": true, "uint32_t": true, "uint64_t": true,
}

// cast recognizes "( integer-type-words )" at the current position and returns
// whether the target type is unsigned and how many tokens it spans.
func (p *parser) cast() (unsigned bool, n int, ok bool) {
	i := p.pos + 1
	for i < len(p.toks) && (p.toks[i].Kind == Keyword || p.toks[i].Kind == Ident) && castWords[p.toks[i].Text] {
		w := p.toks[i].Text
		if w == "unsigned" || w == "size_t" || w == "uintptr_t" || strings.HasPrefix(w, "uint") {
			unsigned = true
		}
		i++
	}
	if i == p.pos+1 || i >= len(p.toks) || p.toks[i].Kind != Punct || p.toks[i].Text != ")" {
		return false, 0, false
	}
	return unsigned, i - p.pos + 1, true
}

func binary(op string, a, b Value) (Value, error) {
	if a.IsString || b.IsString {
		return Value{}, fmt.Errorf("operator %s on string: %w", op, ErrNotConstant)
	}
	unsigned := a.Unsigned || b.Unsigned
	x, y := a.Int, b.Int
	r := Value{Unsigned: unsigned}

	switch op {
	case "+":
		r.Int = x + y
	case "-":
		r.Int = x - y
	case "*":
		r.Int = x * y
	case "/", "%":
		if y == 0 {
			return Value{}, fmt.Errorf("division by zero: %w", ErrNotConstant)
		}
		if unsigned {
			if op == "/" {
				r.Int = int64(uint64(x) / uint64(y))
			} else {
				r.Int = int64(uint64(x) % uint64(y))
			}
		} else if op == "/" {
			r.Int = x / y
		} else {
			r.Int = x % y
		}
	case "<<":
		if y < 0 || y > 63 {
			return Value{}, fmt.Errorf("shift count %d: %w", y, ErrNotConstant)
		}
		r.Int = x << uint(y)
	case ">>":
		if y < 0 || y > 63 {
			return Value{}, fmt.Errorf("shift count %d: %w", y, ErrNotConstant)
		}
		if unsigned {
			r.Int = int64(uint64(x) >> uint(y))
		} else {
			r.Int = x >> uint(y)
		}
	case "&":
		r.Int = x & y
	case "|":
		r.Int = x | y
	case "^":
		r.Int = x ^ y
	case "&&":
		r = IntValue(boolInt(x != 0 && y != 0))
	case "||":
		r = IntValue(boolInt(x != 0 || y != 0))
	case "==":
		r = IntValue(boolInt(x == y))
	case "!=":
		r = IntValue(boolInt(x != y))
	case "<", ">", "<=", ">=":
		r = IntValue(boolInt(compare(op, x, y, unsigned)))
	default:
		return Value{}, fmt.Errorf("operator %s: %w", op, ErrNotConstant)
	}
	return r, nil
}

func compare(op string, x, y int64, unsigned bool) bool {
	c := 0
	if unsigned {
		ux, uy := uint64(x), uint64(y)
		if ux < uy {
			c = -1
		} else if ux > uy {
			c = 1
		}
	} else if x < y {
		c = -1
	} else if x > y {
		c = 1
	}
	switch op {
	case "<":
		return c < 0
	case ">":
		return c > 0
	case "<=":
		return c <= 0
	}
	return c >= 0
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func isStringLiteral(s string) bool {
	return strings.HasSuffix(s, `"`)
}

func literal(text string) (Value, error) {
	switch {
	case isStringLiteral(text):
		body := text[strings.Index(text, `"`):]
		s, err := unquote(body[1 : len(body)-1])
		if err != nil {
			return Value{}, err
		}
		return StringValue(s), nil
	case strings.HasSuffix(text, "'"):
		body := text[strings.Index(text, "'"):]
		if len(body) < 3 {
			return Value{}, fmt.Errorf("character literal %s: %w", text, ErrNotConstant)
		}
		s, err := unquote(body[1 : len(body)-1])
		if err != nil {
			return Value{}, err
		}
		if len(s) != 1 {
			return Value{}, fmt.Errorf("multi-character literal %s: %w", text, ErrNotConstant)
		}
		return IntValue(int64(s[0])), nil
	}
	v, unsigned, err := ParseInt(text)
	if err != nil {
		return Value{}, err
	}
	return Value{Int: v, Unsigned: unsigned}, nil
}

// unquote decodes the C escape sequences of a literal body.
func unquote(body string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("trailing backslash: %w", ErrNotConstant)
		}
		switch e := body[i]; e {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'a':
			sb.WriteByte('\a')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case '\\', '\'', '"', '?':
			sb.WriteByte(e)
		case 'x':
			j := i + 1
			for j < len(body) && isHex(body[j]) {
				j++
			}
			if j == i+1 {
				return "", fmt.Errorf("empty hex escape: %w", ErrNotConstant)
			}
			n, err := strconv.ParseUint(body[i+1:j], 16, 8)
			if err != nil {
				return "", fmt.Errorf("hex escape: %w", ErrNotConstant)
			}
			sb.WriteByte(byte(n))
			i = j - 1
		default:
			if e < '0' || e > '7' {
				return "", fmt.Errorf("escape \\%c: %w", e, ErrNotConstant)
			}
			j := i
			for j < len(body) && j < i+3 && body[j] >= '0' && body[j] <= '7' {
				j++
			}
			n, err := strconv.ParseUint(body[i:j], 8, 8)
			if err != nil {
				return "", fmt.Errorf("octal escape: %w", ErrNotConstant)
			}
			sb.WriteByte(byte(n))
			i = j - 1
		}
	}
	return sb.String(), nil
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

// ParseInt parses a C integer literal with optional u/l suffixes. The value is
// returned as its 64-bit two's complement bit pattern.
func ParseInt(text string) (v int64, unsigned bool, err error) {
	s := text
	end := len(s)
	for end > 0 && strings.ContainsRune("uUlL", rune(s[end-1])) {
		if s[end-1] == 'u' || s[end-1] == 'U' {
			unsigned = true
		}
		end--
	}
	digits := s[:end]

	base := 10
	switch {
	case strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X"):
		base, digits = 16, digits[2:]
	case strings.HasPrefix(digits, "0b") || strings.HasPrefix(digits, "0B"):
		base, digits = 2, digits[2:]
	case len(digits) > 1 && digits[0] == '0':
		base, digits = 8, digits[1:]
	}
	if digits == "" {
		return 0, false, fmt.Errorf("integer literal %q: %w", text, ErrNotConstant)
	}

	u, perr := strconv.ParseUint(digits, base, 64)
	if perr != nil {
		return 0, false, fmt.Errorf("integer literal %q: %w", text, ErrNotConstant)
	}
	return int64(u), unsigned, nil
}
