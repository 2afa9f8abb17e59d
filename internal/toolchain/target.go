package toolchain

// TargetEnv is the variable that forces the parse target.
const TargetEnv = "MBEDTLS_BINDGEN_TARGET"

// SubstituteTarget is a triple the parser's bundled toolchain database knows,
// used for custom targets it cannot resolve standard headers for.
const SubstituteTarget = "arm64-apple-ios13.1-macabi"

// TargetOverride reports the triple forced by TargetEnv. Whenever the variable
// is set the result is SubstituteTarget; its value is never used as a triple.
func TargetOverride(lookup func(string) (string, bool)) (string, bool) {
	if _, ok := lookup(TargetEnv); !ok {
		return "", false
	}
	return SubstituteTarget, true
}

// TargetFlag returns the parser argument selecting triple.
func TargetFlag(triple string) string {
	return "--target=" + triple
}
