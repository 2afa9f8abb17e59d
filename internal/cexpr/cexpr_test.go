package cexpr

import (
	"errors"
	"strings"
	"testing"
)

// lex splits a body on spaces; tests write tokens space-separated.
func lex(body string) []Token {
	var toks []Token
	for _, f := range strings.Fields(body) {
		kind := Punct
		switch c := f[0]; {
		case c >= '0' && c <= '9', c == '"', c == '\'':
			kind = Literal
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
			kind = Ident
			if castWords[f] && !strings.HasSuffix(f, "_t") {
				kind = Keyword
			}
		}
		toks = append(toks, Token{Kind: kind, Text: f})
	}
	return toks
}

func TestEvalIntegers(t *testing.T) {
	env := map[string]Value{
		"MBEDTLS_SSL_IN_CONTENT_LEN": IntValue(16384),
		"BIG":                        {Int: 1, Unsigned: true},
	}
	lookup := func(name string) (Value, bool) {
		v, ok := env[name]
		return v, ok
	}

	tests := []struct {
		body string
		want int64
	}{
		{"42", 42},
		{"- 0x7080", -0x7080},
		{"0x80000000", 0x80000000},
		{"0xFFFFFFFFFFFFFFFFULL", -1},
		{"017", 15},
		{"0b101", 5},
		{"10UL", 10},
		{"( 1 << 3 ) | 1", 9},
		{"1 + 2 * 3", 7},
		{"( 1 + 2 ) * 3", 9},
		{"~ 0", -1},
		{"! 5", 0},
		{"MBEDTLS_SSL_IN_CONTENT_LEN + 2048", 18432},
		{"'A'", 65},
		{"'\\n'", 10},
		{"( ( int ) 0x100 )", 256},
		{"( uint32_t ) 16 >> 2", 4},
		{"1 ? 2 : 3", 2},
		{"0 ? 2 : 3", 3},
		{"3 > 2 && 2 >= 2", 1},
		{"7 % 4 == 3", 1},
		{"BIG - 2 < 5", 0},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			got, err := Eval(lex(tt.body), lookup)
			if err != nil {
				t.Fatalf("Eval() error = %v", err)
			}
			if got.IsString || got.Int != tt.want {
				t.Fatalf("Eval() = %+v, want %d", got, tt.want)
			}
		})
	}
}

func TestEvalStrings(t *testing.T) {
	got, err := Eval([]Token{
		{Kind: Literal, Text: `"mbed TLS "`},
		{Kind: Literal, Text: `"3.6.0\x21"`},
	}, nil)
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if !got.IsString || got.Str != "mbed TLS 3.6.0!" {
		t.Fatalf("Eval() = %+v", got)
	}
}

func TestEvalRejectsNonConstants(t *testing.T) {
	for _, body := range []string{
		"",
		"UNKNOWN",
		"1 +",
		"( 1",
		"1 / 0",
		"1 2",
		"1 << 64",
		"1.5",
		`- "x"`,
		"0 ? 1",
	} {
		t.Run(body, func(t *testing.T) {
			_, err := Eval(lex(body), nil)
			if !errors.Is(err, ErrNotConstant) {
				t.Fatalf("Eval(%q) error = %v, want ErrNotConstant", body, err)
			}
		})
	}
}

func TestEvalSkipsComments(t *testing.T) {
	got, err := Eval([]Token{
		{Kind: Literal, Text: "7"},
		{Kind: Comment, Text: "/* seven */"},
	}, nil)
	if err != nil || got.Int != 7 {
		t.Fatalf("Eval() = %+v, %v", got, err)
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in       string
		want     int64
		unsigned bool
	}{
		{"0", 0, false},
		{"0x10u", 16, true},
		{"123LL", 123, false},
		{"0XffU", 255, true},
	}
	for _, tt := range tests {
		v, u, err := ParseInt(tt.in)
		if err != nil {
			t.Fatalf("ParseInt(%q) error = %v", tt.in, err)
		}
		if v != tt.want || u != tt.unsigned {
			t.Fatalf("ParseInt(%q) = %d, %v; want %d, %v", tt.in, v, u, tt.want, tt.unsigned)
		}
	}
}
