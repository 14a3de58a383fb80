package rules

import "slideapp/pkg/reagent"

// DefaultWidth is the number of primaries proposed for a starter slide.
const DefaultWidth = 3

// FindValidDefaultSet greedily picks up to width primaries from catalog that
// form a valid selection for serumHost and returns their names.
//
// Candidates are visited in catalog order and kept only if the whole tentative
// selection still validates. The result depends on catalog order and is not
// guaranteed to be the largest valid set.
func FindValidDefaultSet(catalog []reagent.PrimaryAntibody, serumHost string, width int) []string {
	if width <= 0 {
		return []string{}
	}
	serum := reagent.NormalizeHost(serumHost)
	chosen := make([]reagent.PrimaryAntibody, 0, width)
	for _, ab := range catalog {
		if !ab.Valid() || ab.Host() == serum {
			continue
		}
		candidate := append(chosen[:len(chosen):len(chosen)], ab)
		if IsValidPrimarySelection(candidate, serumHost) {
			chosen = candidate
		}
		if len(chosen) == width {
			break
		}
	}

	names := make([]string, 0, len(chosen))
	for _, ab := range chosen {
		names = append(names, ab.Name)
	}
	return names
}
