package camara

import (
	"regexp"

	"github.com/google/uuid"
)

// CorrelatorHeader is the tracing header carried end-to-end.
const CorrelatorHeader = "x-correlator"

// Correlator values are token-safe strings up to 256 characters.
var correlatorRe = regexp.MustCompile(`^[a-zA-Z0-9\-_:;.\/<>{}]{0,256}$`)

// ValidCorrelator reports whether the supplied value matches the allowed
// pattern. The empty string is valid but treated as absent.
func ValidCorrelator(v string) bool {
	return correlatorRe.MatchString(v)
}

// EnsureCorrelator returns the supplied correlator unchanged when present
// and pattern-safe, otherwise mints a fresh one. The result is never
// regenerated downstream and is echoed on every response, errors included.
func EnsureCorrelator(v string) string {
	if v != "" && ValidCorrelator(v) {
		return v
	}
	return uuid.New().String()
}
