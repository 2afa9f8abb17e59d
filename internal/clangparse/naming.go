package clangparse

import (
	"strings"

	"github.com/divan/num2words"
)

var wordSeparators = strings.NewReplacer("-", "_", " ", "_")

// anonName names the n-th anonymous record or enum nested in parent, for
// example "mbedtls_pk_context_anon_union_one".
func anonName(parent, kind string, n int) string {
	return parent + "_anon_" + kind + "_" + wordSeparators.Replace(num2words.Convert(n))
}

// isAnonymous reports whether a cursor spelling belongs to an unnamed
// declaration. libclang spells those as empty or as
// "struct (unnamed at file:line:col)"; identifiers never contain parentheses.
func isAnonymous(spelling string) bool {
	if spelling == "" {
		return true
	}
	open := strings.IndexByte(spelling, '(')
	if open < 0 || !strings.HasSuffix(spelling, ")") {
		return false
	}
	inner := spelling[open+1 : len(spelling)-1]
	return (strings.HasPrefix(inner, "unnamed ") || strings.HasPrefix(inner, "anonymous ")) &&
		strings.Contains(inner, " at ")
}
