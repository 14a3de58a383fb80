package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slideapp/pkg/reagent"
)

func defaultCatalog() []reagent.PrimaryAntibody {
	return []reagent.PrimaryAntibody{
		primary("Sox10", "goat", ""),
		primary("Iba1", "rabbit", ""),
		primary("Olig2", "rabbit", ""),
		primary("NeuN", "mouse", "igg1"),
		primary("CC1", "mouse", "igg1"),
		primary("Calbindin", "mouse", "igg2a"),
		primary("GFP", "chicken", ""),
	}
}

func TestFindValidDefaultSetGreedyOrder(t *testing.T) {
	got := FindValidDefaultSet(defaultCatalog(), "Goat", DefaultWidth)
	assert.Equal(t, []string{"Iba1", "NeuN", "Calbindin"}, got)
}

func TestFindValidDefaultSetProperties(t *testing.T) {
	catalog := defaultCatalog()
	byName := make(map[string]reagent.PrimaryAntibody, len(catalog))
	for _, ab := range catalog {
		byName[ab.Name] = ab
	}

	for _, serum := range []string{"goat", "rabbit", "mouse", "donkey"} {
		for width := 1; width <= 6; width++ {
			names := FindValidDefaultSet(catalog, serum, width)
			require.LessOrEqual(t, len(names), width, "serum=%s width=%d", serum, width)

			var prefix []reagent.PrimaryAntibody
			for _, name := range names {
				ab := byName[name]
				assert.NotEqual(t, serum, ab.Host(), "serum host %s leaked into %v", serum, names)
				prefix = append(prefix, ab)
				assert.True(t, IsValidPrimarySelection(prefix, serum), "prefix %v invalid for %s", names, serum)
			}
		}
	}
}

func TestFindValidDefaultSetWidthBound(t *testing.T) {
	got := FindValidDefaultSet(defaultCatalog(), "donkey", 2)
	assert.Equal(t, []string{"Sox10", "Iba1"}, got)
}

func TestFindValidDefaultSetEmpty(t *testing.T) {
	onlySerum := []reagent.PrimaryAntibody{primary("Sox10", "goat", ""), primary("Other", "GOAT", "")}
	got := FindValidDefaultSet(onlySerum, "goat", DefaultWidth)
	require.NotNil(t, got)
	assert.Empty(t, got)

	assert.Empty(t, FindValidDefaultSet(nil, "goat", DefaultWidth))
	assert.Empty(t, FindValidDefaultSet(defaultCatalog(), "goat", 0))
	assert.Empty(t, FindValidDefaultSet(defaultCatalog(), "goat", -1))
}

func TestFindValidDefaultSetSkipsMalformed(t *testing.T) {
	catalog := []reagent.PrimaryAntibody{{Name: "", Animal: "rabbit"}, primary("Iba1", "rabbit", "")}
	assert.Equal(t, []string{"Iba1"}, FindValidDefaultSet(catalog, "goat", DefaultWidth))
}
