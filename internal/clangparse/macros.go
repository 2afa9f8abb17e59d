package clangparse

import (
	"github.com/go-clang/clang-v13/clang"

	"mbedtlsbindgen/internal/cexpr"
	"mbedtlsbindgen/internal/ir"
)

var tokenKinds = map[clang.TokenKind]cexpr.TokenKind{
	clang.Token_Punctuation: cexpr.Punct,
	clang.Token_Keyword:     cexpr.Keyword,
	clang.Token_Identifier:  cexpr.Ident,
	clang.Token_Literal:     cexpr.Literal,
	clang.Token_Comment:     cexpr.Comment,
}

// macro records object-like macros whose body is a constant expression.
// Macros defined on the command line have no file and are skipped.
func (p *parser) macro(c clang.Cursor) {
	if c.IsMacroFunctionLike() || c.IsMacroBuiltin() {
		return
	}
	if file, _, _, _ := c.Location().FileLocation(); file.Name() == "" {
		return
	}

	name := c.Spelling()
	toks := p.tu.Tokenize(c.Extent())
	if len(toks) < 2 {
		return
	}
	body := make([]cexpr.Token, 0, len(toks)-1)
	for _, tok := range toks[1:] {
		body = append(body, cexpr.Token{Kind: tokenKinds[tok.Kind()], Text: p.tu.TokenSpelling(tok)})
	}

	v, err := cexpr.Eval(body, p.lookupMacro)
	if err != nil {
		p.log.Debug("skip macro", "name", name, "error", err)
		return
	}
	p.macros[name] = v

	k := &ir.Const{Name: name, Int: v.Int}
	if v.IsString {
		k = &ir.Const{Name: name, Str: v.Str, IsString: true}
	}
	p.decls.Set("const:"+name, k)
}

func (p *parser) lookupMacro(name string) (cexpr.Value, bool) {
	v, ok := p.macros[name]
	return v, ok
}
