package rules

import (
	"fmt"
	"sort"

	"slideapp/pkg/reagent"
)

// Secondary rule identifiers.
const (
	RuleMalformedRecord       = "malformed_record"
	RuleSecondaryHostConflict = "secondary_host_conflict"
	RuleMouseTargetMissing    = "mouse_target_missing"
	RuleMouseSubtypeRequired  = "mouse_subtype_required"
	RuleTargetMissing         = "target_missing"
	RuleDuplicateTarget       = "duplicate_target"
	RuleDuplicateChannel      = "duplicate_channel"
)

// Requirements summarises what a primary set demands from its secondaries.
type Requirements struct {
	// Hosts holds every primary host; secondaries may not be raised in them.
	Hosts map[string]struct{}
	// MouseSubtypes holds the canonical isotypes declared by mouse primaries.
	MouseSubtypes map[string]struct{}
	// NonMouseTargets holds the non-mouse hosts secondaries may bind.
	NonMouseTargets map[string]struct{}
	// HasMouse is set when any primary is raised in mouse.
	HasMouse bool
}

// DeriveRequirements collects host and isotype facts from primaries.
func DeriveRequirements(primaries []reagent.PrimaryAntibody) Requirements {
	req := Requirements{
		Hosts:           make(map[string]struct{}),
		MouseSubtypes:   make(map[string]struct{}),
		NonMouseTargets: make(map[string]struct{}),
	}
	for _, p := range primaries {
		if !p.Valid() {
			continue
		}
		host := p.Host()
		req.Hosts[host] = struct{}{}
		if host != reagent.MouseHost {
			req.NonMouseTargets[host] = struct{}{}
			continue
		}
		req.HasMouse = true
		if subtype := reagent.NormalizeMouseSubtype(p.IgGSubtype); subtype != "" {
			req.MouseSubtypes[subtype] = struct{}{}
		}
	}
	return req
}

// Targets lists the primaries to cover in suggestion order: non-mouse hosts
// sorted, then one mouse target per declared isotype (sorted) or a single
// mouse-any target when no isotype is known.
func (r Requirements) Targets() []reagent.Target {
	targets := make([]reagent.Target, 0, len(r.NonMouseTargets)+len(r.MouseSubtypes)+1)
	for _, host := range sortedKeys(r.NonMouseTargets) {
		targets = append(targets, reagent.BareTarget(host))
	}
	if !r.HasMouse {
		return targets
	}
	if len(r.MouseSubtypes) == 0 {
		return append(targets, reagent.MouseTarget(""))
	}
	for _, subtype := range sortedKeys(r.MouseSubtypes) {
		targets = append(targets, reagent.MouseTarget(subtype))
	}
	return targets
}

// SecondaryIsCompatible reports whether candidate can join alreadySelected on
// a slide carrying primaries.
func SecondaryIsCompatible(candidate reagent.SecondaryAntibody, alreadySelected []reagent.SecondaryAntibody, primaries []reagent.PrimaryAntibody) bool {
	return !EvaluateSecondary(candidate, alreadySelected, primaries).HasBlocking()
}

// EvaluateSecondary is SecondaryIsCompatible with the reason attached.
func EvaluateSecondary(candidate reagent.SecondaryAntibody, alreadySelected []reagent.SecondaryAntibody, primaries []reagent.PrimaryAntibody) reagent.Result {
	return evaluateSecondary(DeriveRequirements(primaries), candidate, alreadySelected)
}

func evaluateSecondary(req Requirements, sec reagent.SecondaryAntibody, selected []reagent.SecondaryAntibody) reagent.Result {
	if !sec.Valid() {
		return block(RuleMalformedRecord, sec.Name, "secondary record is missing name, host, target or fluorophore")
	}
	if _, clash := req.Hosts[sec.RaisedIn]; clash {
		return block(RuleSecondaryHostConflict, sec.Name,
			fmt.Sprintf("%s is raised in %s, which is also a primary host", sec.Name, sec.RaisedIn))
	}

	if sec.Anti == reagent.MouseHost {
		if !req.HasMouse {
			return block(RuleMouseTargetMissing, sec.Name,
				fmt.Sprintf("%s targets mouse but no mouse primary is present", sec.Name))
		}
		if len(req.MouseSubtypes) > 0 {
			if _, ok := req.MouseSubtypes[sec.MouseSubtype]; !ok || sec.MouseSubtype == "" {
				return block(RuleMouseSubtypeRequired, sec.Name,
					fmt.Sprintf("%s must be specific for one of the mouse isotypes %v", sec.Name, sortedKeys(req.MouseSubtypes)))
			}
		}
	} else if _, ok := req.NonMouseTargets[sec.Anti]; !ok {
		return block(RuleTargetMissing, sec.Name,
			fmt.Sprintf("%s targets %s but no %s primary is present", sec.Name, sec.Anti, sec.Anti))
	}

	target := sec.Target()
	for _, other := range selected {
		if other.Target() == target {
			return block(RuleDuplicateTarget, sec.Name,
				fmt.Sprintf("target %s is already detected by %s", target, other.Name))
		}
	}
	for _, other := range selected {
		if other.Fluorophore == sec.Fluorophore {
			return block(RuleDuplicateChannel, sec.Name,
				fmt.Sprintf("channel %s is already used by %s", sec.Fluorophore, other.Name))
		}
	}
	return reagent.Result{}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
