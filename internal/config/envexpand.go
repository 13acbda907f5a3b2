package config

import (
	"os"
	"regexp"
)

// envRef matches ${NAME} and ${NAME:-fallback} inside a config file.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes environment references in raw YAML before it is
// decoded, so a deployment can write `url: ${MASTERLIST_URL}` or
// `parameter: ${CSCA_PARAM:-/csca/sha256}` in one shared file. An unset or
// empty variable takes its fallback, or nothing. MLSYNC_ overrides are
// applied later by LoadFromEnv and win over anything expanded here.
func ExpandEnv(raw string) string {
	return envRef.ReplaceAllStringFunc(raw, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v := os.Getenv(m[1]); v != "" {
			return v
		}
		return m[2]
	})
}
