package clangparse

import "testing"

func TestAnonName(t *testing.T) {
	tests := []struct {
		parent, kind string
		n            int
		want         string
	}{
		{"mbedtls_pk_context", "union", 1, "mbedtls_pk_context_anon_union_one"},
		{"mbedtls_ssl_context", "struct", 21, "mbedtls_ssl_context_anon_struct_twenty_one"},
		{"mbedtls_x", "enum", 3, "mbedtls_x_anon_enum_three"},
	}
	for _, tt := range tests {
		if got := anonName(tt.parent, tt.kind, tt.n); got != tt.want {
			t.Errorf("anonName(%q, %q, %d) = %q, want %q", tt.parent, tt.kind, tt.n, got, tt.want)
		}
	}
}

func TestIsAnonymous(t *testing.T) {
	for spelling, want := range map[string]bool{
		"":                               true,
		"struct (unnamed at x.h:3:9)":    true,
		"union (anonymous at x.h:7:5)":   true,
		"enum (unnamed enum at x.h:1:1)": true,
		"mbedtls_mpi":                    false,
		"mbedtls_unnamed_ctx":            false,
		"mbedtls_anonymous_at_rest":      false,
		"struct mbedtls_unnamed_ctx":     false,
		"mbedtls_at":                     false,
	} {
		if got := isAnonymous(spelling); got != want {
			t.Errorf("isAnonymous(%q) = %v, want %v", spelling, got, want)
		}
	}
}

func TestHasTarget(t *testing.T) {
	if hasTarget([]string{"-Iinc"}) {
		t.Fatal("hasTarget() = true without a target flag")
	}
	if !hasTarget([]string{"-Iinc", "--target=thumbv7em-none-eabihf"}) {
		t.Fatal("hasTarget() = false with a target flag")
	}
}
