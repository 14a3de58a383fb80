package mastermix

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignPrimaryMixes(t *testing.T) {
	rows := [][]string{
		{"NeuN", "Iba1", None},
		{"Iba1", "NeuN", ""},
		{None, None, None},
		{"GFAP"},
		{" NeuN ", "Iba1"},
	}
	ids := AssignPrimaryMixes(rows)
	assert.Equal(t, []string{"MM1", "MM1", "", "MM2", "MM1"}, ids)

	mixes := CollectPrimaryMixes(rows, ids)
	require.Len(t, mixes, 2)
	assert.Equal(t, PrimaryMix{ID: "MM1", SlideCount: 3, Antibodies: []string{"Iba1", "NeuN"}}, mixes[0])
	assert.Equal(t, PrimaryMix{ID: "MM2", SlideCount: 1, Antibodies: []string{"GFAP"}}, mixes[1])
}

func TestCollectPrimaryMixesNumericOrder(t *testing.T) {
	rows := make([][]string, 0, 11)
	for i := 0; i < 11; i++ {
		rows = append(rows, []string{string(rune('A' + i))})
	}
	mixes := CollectPrimaryMixes(rows, AssignPrimaryMixes(rows))
	require.Len(t, mixes, 11)
	assert.Equal(t, "MM2", mixes[1].ID)
	assert.Equal(t, "MM10", mixes[9].ID)
	assert.Equal(t, "MM11", mixes[10].ID)
}

func TestGroupSecondaryMixes(t *testing.T) {
	channels := []string{"A488", "Cy3", "A647"}
	rows := []map[string]string{
		{"A488": "Goat anti-Rabbit 488", "Cy3": "Donkey anti-Goat Cy3"},
		{"A488": "Donkey anti-Mouse 488", "Cy3": "Donkey anti-Goat Cy3", "A647": None},
		{"A488": "Goat anti-Rabbit 488", "Cy3": "Donkey anti-Goat Cy3", "A647": ""},
	}
	mixes, ids := GroupSecondaryMixes(rows, channels)
	require.Len(t, mixes, 2)
	assert.Equal(t, []string{"SMM2", "SMM1", "SMM2"}, ids)

	assert.Equal(t, SecondaryMix{
		ID:         "SMM1",
		SlideCount: 1,
		ChannelSecondary: map[string]string{
			"A488": "Donkey anti-Mouse 488",
			"Cy3":  "Donkey anti-Goat Cy3",
		},
	}, mixes[0])
	assert.Equal(t, 2, mixes[1].SlideCount)
}

func TestFractionToDecimal(t *testing.T) {
	cases := map[string]float64{
		"1/250":    0.004,
		" 1 / 500": 0.002,
		"0.01":     0.01,
		"":         0,
		"1/0":      0,
		"abc":      0,
		"x/2":      0,
	}
	for in, want := range cases {
		assert.InDelta(t, want, FractionToDecimal(in), 1e-12, in)
	}
}

func TestDecimalToFraction(t *testing.T) {
	assert.Equal(t, "1/250", DecimalToFraction(0.004))
	assert.Equal(t, "1/400", DecimalToFraction(0.0025))
	assert.Equal(t, "1/1", DecimalToFraction(1))
	assert.Equal(t, "3/10", DecimalToFraction(0.3))
	assert.Equal(t, "2/3", DecimalToFraction(2.0/3.0))
	assert.Equal(t, "3/10000", DecimalToFraction(0.0003))
	assert.Equal(t, "N/A", DecimalToFraction(0))
	assert.Equal(t, "N/A", DecimalToFraction(-0.5))
}

func TestBuildPrimaryProtocol(t *testing.T) {
	p := BuildPrimaryProtocol(PrimaryInput{
		TotalSlides: 4,
		VolumeUL:    200,
		Method:      "overnight at 4C",
		Mixes: []PrimaryMix{
			{ID: "MM1", SlideCount: 2, Antibodies: []string{"Iba1", "NeuN"}},
			{ID: "MM2", SlideCount: 2, Antibodies: []string{"Unknown"}},
		},
		Concentrations: map[string]float64{"Iba1": 0.004, "NeuN": 0.002},
	})

	assert.InDelta(t, 2000, p.BlockUL, 1e-9)
	assert.InDelta(t, 800, p.SolutionUL, 1e-9)
	assert.InDelta(t, 2800, p.BasePBTNUL, 1e-9)
	assert.InDelta(t, 3360, p.SafePBTNUL, 1e-9)

	require.Len(t, p.Mixes, 2)
	mm1 := p.Mixes[0]
	assert.InDelta(t, 400, mm1.TotalUL, 1e-9)
	assert.InDelta(t, 1.6, mm1.Antibodies[0].VolumeUL, 1e-9)
	assert.InDelta(t, 1.76, mm1.Antibodies[0].SafeVolumeUL, 1e-9)
	assert.Equal(t, "1/250", mm1.Antibodies[0].Fraction)
	assert.InDelta(t, 397.6, mm1.PBTNUL, 1e-9)
	assert.InDelta(t, 437.36, mm1.SafePBTNUL, 1e-9)

	mm2 := p.Mixes[1]
	assert.Equal(t, "N/A", mm2.Antibodies[0].Fraction)
	assert.InDelta(t, 400, mm2.PBTNUL, 1e-9)

	text := p.Text()
	assert.True(t, strings.HasPrefix(text, "IHC Protocol\n"))
	assert.Contains(t, text, "- Block volume: 2000.0 uL (4 slides x 500 uL)")
	assert.Contains(t, text, "- Prepare with safety factor x1.2: 3360.0 uL")
	assert.Contains(t, text, "MM1 (2 slides, base total 400.0 uL)")
	assert.Contains(t, text, "- Iba1: conc=0.004000 (1/250), antibody=1.600 uL, with x1.1 -> 1.760 uL")
	assert.True(t, strings.HasSuffix(text, "selected method: overnight at 4C."))
}

func TestPrimaryProtocolNeverNegative(t *testing.T) {
	p := BuildPrimaryProtocol(PrimaryInput{
		TotalSlides:    1,
		VolumeUL:       100,
		Mixes:          []PrimaryMix{{ID: "MM1", SlideCount: 1, Antibodies: []string{"A"}}},
		Concentrations: map[string]float64{"A": 2},
	})
	assert.Zero(t, p.Mixes[0].PBTNUL)
}

func TestBuildSecondaryProtocol(t *testing.T) {
	channels := []string{"A488", "Cy3", "A647"}
	p := BuildSecondaryProtocol(SecondaryInput{
		TotalSlides: 3,
		VolumeUL:    250,
		Method:      "1 hr RT",
		Channels:    channels,
		Mixes: []SecondaryMix{{
			ID:         "SMM1",
			SlideCount: 3,
			ChannelSecondary: map[string]string{
				"Cy3":  "Donkey anti-Goat Cy3",
				"A488": "Goat anti-Rabbit 488",
			},
		}},
		Dilutions: map[string]string{
			"Goat anti-Rabbit 488": "1/500",
			"Donkey anti-Goat Cy3": "1/250",
		},
	})

	assert.InDelta(t, 1500, p.BlockUL, 1e-9)
	assert.InDelta(t, 1800, p.SafeBlockUL, 1e-9)
	require.Len(t, p.Mixes, 1)
	mix := p.Mixes[0]
	assert.InDelta(t, 900, mix.TotalUL, 1e-9)
	require.Len(t, mix.Channels, 2)
	assert.Equal(t, "A488", mix.Channels[0].Channel, "channels follow the configured order")
	assert.InDelta(t, 1.8, mix.Channels[0].VolumeUL, 1e-9)
	assert.InDelta(t, 3.6, mix.Channels[1].VolumeUL, 1e-9)
	assert.InDelta(t, 894.6, mix.PBTUL, 1e-9)

	text := p.Text()
	assert.Contains(t, text, "- Total mix volume: 3 x 250.0 uL x 1.2 = 900.0 uL")
	assert.Contains(t, text, "- A488 (Goat anti-Rabbit 488): 0.002000 (1/500) -> 1.800 uL")
	assert.Contains(t, text, "- Add PBT first: 894.600 uL")
	assert.Contains(t, text, "- Then add secondaries in order: A488, Cy3, A647.")
	assert.True(t, strings.HasSuffix(text, "preset method: 1 hr RT."))
}
