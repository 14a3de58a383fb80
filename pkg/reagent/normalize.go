package reagent

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Canonical mouse IgG isotypes recognised by secondary matching.
const (
	SubtypeIgG1  = "igg1"
	SubtypeIgG2a = "igg2a"
	SubtypeIgG2b = "igg2b"
)

func trim(s string) string { return strings.TrimSpace(s) }

// fold lower-cases with a fresh Caser per call; Casers carry state and must
// not be shared between goroutines.
func fold(s string) string {
	return cases.Lower(language.Und).String(trim(s))
}

func unspecifiedSubtype(token string) bool {
	switch token {
	case "", "na", "n/a":
		return true
	}
	return false
}

// NormalizeHost trims and lower-cases a host species.
func NormalizeHost(host string) string { return fold(host) }

// NormalizeFluorophore trims and upper-cases a channel identifier.
func NormalizeFluorophore(channel string) string {
	return cases.Upper(language.Und).String(trim(channel))
}

// NormalizeMouseSubtype maps catalog spellings of a mouse isotype ("#1",
// "IgG 2a", ...) to a canonical subtype, or "" when unrecognised.
func NormalizeMouseSubtype(value string) string {
	token := strings.ReplaceAll(fold(value), " ", "")
	switch token {
	case "#1", SubtypeIgG1:
		return SubtypeIgG1
	case "#2a", SubtypeIgG2a:
		return SubtypeIgG2a
	case "#2b", SubtypeIgG2b:
		return SubtypeIgG2b
	}
	return ""
}

// InferMouseSubtype extracts the isotype a secondary is specific for from its
// product name, checking igg1, igg2a and igg2b in that order.
func InferMouseSubtype(name string) string {
	low := strings.ReplaceAll(fold(name), " ", "")
	for _, subtype := range []string{SubtypeIgG1, SubtypeIgG2a, SubtypeIgG2b} {
		if strings.Contains(low, subtype) {
			return subtype
		}
	}
	return ""
}
