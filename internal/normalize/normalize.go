// Package normalize holds the naming and trait policy applied to every
// declaration during extraction.
package normalize

import (
	"math"
	"strings"
)

// IntKind is the Go integer type an integer macro is emitted with.
type IntKind int

const (
	// Int is a 32-bit signed integer.
	Int IntKind = iota
	// LongLong is a 64-bit signed integer.
	LongLong
)

// GoType returns the Go spelling of k.
func (k IntKind) GoType() string {
	if k == LongLong {
		return "int64"
	}
	return "int32"
}

func (k IntKind) String() string { return k.GoType() }

// Trait is a capability the generator may derive for a record.
type Trait int

const (
	Copy Trait = iota
	Debug
	Default
)

func (t Trait) String() string {
	switch t {
	case Copy:
		return "Copy"
	case Debug:
		return "Debug"
	case Default:
		return "Default"
	}
	return "Trait(?)"
}

// Implements says how a type provides a trait.
type Implements int

const (
	No Implements = iota
	Yes
	// Manually means the capability exists but is hand-written, so records
	// containing the type get an explicit implementation instead of a derived one.
	Manually
)

func (i Implements) String() string {
	switch i {
	case No:
		return "No"
	case Yes:
		return "Yes"
	case Manually:
		return "Manually"
	}
	return "Implements(?)"
}

// Policy is consulted by the extractor for every declaration.
type Policy interface {
	// ItemName returns the emitted name of a function, type or variable.
	ItemName(original string) string
	// EnumVariantName returns the emitted name of an enum constant.
	EnumVariantName(enum, variant string) string
	// IntMacro picks the integer kind of an integer-valued macro.
	IntMacro(name string, value int64) IntKind
	// ImplementsTrait reports how an excluded type provides trait.
	ImplementsTrait(name string, trait Trait) Implements
}

// PrefixPolicy strips a library prefix and classifies macros by width.
type PrefixPolicy struct {
	Lower     string
	Upper     string
	Overrides map[Trait]Implements
}

// Mbedtls returns the policy used for mbed TLS headers.
func Mbedtls() PrefixPolicy {
	return NewPrefixPolicy("mbedtls")
}

// NewPrefixPolicy builds a policy for library names like "mbedtls". Excluded
// types are reported as implementing Default manually and everything else
// automatically.
func NewPrefixPolicy(library string) PrefixPolicy {
	return PrefixPolicy{
		Lower:     strings.ToLower(library) + "_",
		Upper:     strings.ToUpper(library) + "_",
		Overrides: map[Trait]Implements{Default: Manually},
	}
}

// ItemName strips every leading lowercase prefix, then every leading uppercase
// prefix, until neither matches. A name consisting only of prefixes is kept.
func (p PrefixPolicy) ItemName(original string) string {
	name := original
	for {
		stripped := trimAll(trimAll(name, p.Lower), p.Upper)
		if stripped == name {
			break
		}
		name = stripped
	}
	if name == "" {
		return original
	}
	return name
}

func trimAll(s, prefix string) string {
	if prefix == "" {
		return s
	}
	for strings.HasPrefix(s, prefix) {
		s = s[len(prefix):]
	}
	return s
}

func (p PrefixPolicy) EnumVariantName(_ string, variant string) string {
	return p.ItemName(variant)
}

func (p PrefixPolicy) IntMacro(_ string, value int64) IntKind {
	return ClassifyInt(value)
}

func (p PrefixPolicy) ImplementsTrait(_ string, trait Trait) Implements {
	if impl, ok := p.Overrides[trait]; ok {
		return impl
	}
	return Yes
}

// ClassifyInt returns Int when value fits a 32-bit signed integer.
func ClassifyInt(value int64) IntKind {
	if value < math.MinInt32 || value > math.MaxInt32 {
		return LongLong
	}
	return Int
}
