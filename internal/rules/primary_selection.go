// Package rules implements the antibody compatibility engine: legality checks
// for primary and secondary selections and the greedy auto-fill heuristics
// built on top of them. Every function is pure over its inputs; none retains
// state between calls, so the package is safe for concurrent use as long as
// callers do not mutate catalogs while validating.
package rules

import (
	"fmt"

	"slideapp/pkg/reagent"
)

// Rule identifiers reported in reagent.Violation.Rule.
const (
	RuleSerumHostConflict     = "serum_host_conflict"
	RuleDuplicateHost         = "duplicate_host"
	RuleMouseLimit            = "mouse_limit"
	RuleMouseNotMonoclonal    = "mouse_not_monoclonal"
	RuleDuplicateMouseSubtype = "duplicate_mouse_subtype"
	RuleMousePairMismatch     = "mouse_pair_mismatch"
)

// maxMousePrimaries bounds mouse primaries on one slide; two are allowed only
// as monoclonals of distinct IgG subtypes.
const maxMousePrimaries = 2

// IsValidPrimarySelection reports whether selected may be combined on one
// slide blocked with serum raised in serumHost.
func IsValidPrimarySelection(selected []reagent.PrimaryAntibody, serumHost string) bool {
	return !EvaluatePrimarySelection(selected, serumHost).HasBlocking()
}

// EvaluatePrimarySelection applies the primary selection rules in order and
// returns the first blocking violation, if any. Records missing a name or
// host are ignored.
func EvaluatePrimarySelection(selected []reagent.PrimaryAntibody, serumHost string) reagent.Result {
	serum := reagent.NormalizeHost(serumHost)
	hosts := make(map[string]struct{}, len(selected))
	subtypes := make(map[string]struct{}, maxMousePrimaries)
	mice := make([]reagent.PrimaryAntibody, 0, maxMousePrimaries)

	for _, ab := range selected {
		if !ab.Valid() {
			continue
		}
		host := ab.Host()
		if host == serum {
			return block(RuleSerumHostConflict, ab.Name,
				fmt.Sprintf("%s is raised in %s, the blocking serum host", ab.Name, host))
		}
		if host != reagent.MouseHost {
			if _, dup := hosts[host]; dup {
				return block(RuleDuplicateHost, ab.Name,
					fmt.Sprintf("duplicate host animal %s is blocked (%s)", host, ab.Name))
			}
			hosts[host] = struct{}{}
			continue
		}

		mice = append(mice, ab)
		if len(mice) > maxMousePrimaries {
			return block(RuleMouseLimit, ab.Name,
				fmt.Sprintf("at most %d mouse primaries per slide (%s)", maxMousePrimaries, ab.Name))
		}
		// Covers both the monoclonal requirement and the unspecified-subtype
		// rule: a subtype of "", "na" or "n/a" is exactly a non-monoclonal one.
		if len(mice) > 1 && !ab.IsMonoclonal() {
			return block(RuleMouseNotMonoclonal, ab.Name,
				fmt.Sprintf("second mouse primary %s must declare an IgG subtype", ab.Name))
		}
		subtype := ab.SubtypeToken()
		if _, dup := subtypes[subtype]; dup {
			return block(RuleDuplicateMouseSubtype, ab.Name,
				fmt.Sprintf("mouse IgG subtype %q already used (%s)", subtype, ab.Name))
		}
		subtypes[subtype] = struct{}{}
	}

	if len(mice) == maxMousePrimaries {
		first, second := mice[0], mice[1]
		if !first.IsMonoclonal() || !second.IsMonoclonal() || first.SubtypeToken() == second.SubtypeToken() {
			return block(RuleMousePairMismatch, second.Name,
				fmt.Sprintf("mouse primaries %s and %s must be monoclonal with distinct IgG subtypes", first.Name, second.Name))
		}
	}
	return reagent.Result{}
}

func block(rule, subject, message string) reagent.Result {
	return reagent.Result{Violations: []reagent.Violation{{
		Rule:     rule,
		Severity: reagent.SeverityBlock,
		Message:  message,
		Subject:  subject,
	}}}
}
