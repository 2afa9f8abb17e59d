package extract

import (
	"regexp"

	"mbedtlsbindgen/internal/normalize"
)

// Options select and shape the declarations kept from a parse.
type Options struct {
	AllowFunctions *regexp.Regexp
	AllowTypes     *regexp.Regexp
	AllowVars      *regexp.Regexp
	DenyTypes      []*regexp.Regexp

	// Recursive pulls in every type an allowed declaration refers to.
	Recursive bool
	// PrependEnumName joins the enum name and the variant name.
	PrependEnumName bool

	// Derive lists the traits records may receive.
	Derive []normalize.Trait

	// LinkPrefix is recorded on the output file for the symbol table.
	LinkPrefix string
}

// MbedtlsOptions returns the selection used for mbed TLS.
func MbedtlsOptions() Options {
	allow := regexp.MustCompile(`^(?i)mbedtls_.*`)
	return Options{
		AllowFunctions: allow,
		AllowTypes:     allow,
		AllowVars:      allow,
		DenyTypes:      []*regexp.Regexp{regexp.MustCompile(`^mbedtls_time_t$`)},
		Derive:         []normalize.Trait{normalize.Copy, normalize.Default},
		LinkPrefix:     "mbedtls_",
	}
}

func (o Options) denied(name string) bool {
	for _, re := range o.DenyTypes {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func matches(re *regexp.Regexp, name string) bool {
	return re != nil && re.MatchString(name)
}
