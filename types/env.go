package types

import (
	"os"
	"regexp"
)

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvString substitutes ${VAR} references with values from the
// process environment. References to unset variables are left verbatim
// so stored configs stay inspectable.
func ExpandEnvString(s string) string {
	return envRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := ref[2 : len(ref)-1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return ref
	})
}
