package plan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slideapp/internal/mastermix"
)

const sample = `
username: alice
serum: donkey
channels: [A488, Cy3]
primaries: [Iba1, NeuN]
primary:
  volume_ul: 200
  method: 4C overnight
  dilutions:
    Iba1: 1/500
    NeuN: "0.002"
secondary:
  volume_ul: 250
  method: RT 2h
slides:
  - id: G1-S1
    primaries: [NeuN, Iba1]
    secondaries: {A488: DaRb-488, Cy3: DaMs-Cy3}
    storage_location: Freezer A
  - id: G1-S2
    primaries: [Iba1, NeuN, None]
    secondaries: {A488: DaRb-488, Cy3: DaMs-Cy3}
  - id: G1-S3
    primaries: [GFAP]
    planned_use: backup
`

func TestDecodeSample(t *testing.T) {
	p, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, "donkey", p.Serum)
	assert.Equal(t, []string{"A488", "Cy3"}, p.Channels)
	require.Len(t, p.Slides, 3)

	conc := p.Concentrations()
	assert.InDelta(t, 0.002, conc["Iba1"], 1e-12)
	assert.InDelta(t, 0.002, conc["NeuN"], 1e-12)
}

func TestBookUsesMixAssignments(t *testing.T) {
	p, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)

	primaryIDs := mastermix.AssignPrimaryMixes(p.PrimaryRows())
	_, secondaryIDs := mastermix.GroupSecondaryMixes(p.SecondaryRows(), p.Channels)
	book := p.Book(primaryIDs, secondaryIDs, p.Channels)
	require.Len(t, book, 3)

	assert.Equal(t, "Iba1, NeuN", book[0].PrimarySet)
	assert.Equal(t, "MM1", book[0].PrimaryMix)
	assert.Equal(t, "MM1", book[1].PrimaryMix)
	assert.Equal(t, "MM2", book[2].PrimaryMix)
	assert.Equal(t, "A488: DaRb-488; Cy3: DaMs-Cy3", book[0].SecondarySet)
	assert.Equal(t, book[0].SecondaryMix, book[1].SecondaryMix)
	assert.Equal(t, "", book[2].SecondarySet)
	assert.Equal(t, "Freezer A", book[0].StorageLocation)
	assert.Equal(t, "backup", book[2].PlannedUse)
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":   "serum: goat\ncolour: red\n",
		"missing id":    "slides:\n  - primaries: [Iba1]\n",
		"duplicate id":  "slides:\n  - id: a\n  - id: a\n",
		"negative vol":  "primary:\n  volume_ul: -1\n",
		"negative wide": "width: -2\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
	_, err := Decode(strings.NewReader("width: -2\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDecodeEmpty(t *testing.T) {
	p, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, p.Slides)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRowsAreCopies(t *testing.T) {
	p, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	rows := p.PrimaryRows()
	rows[0][0] = "changed"
	sec := p.SecondaryRows()
	sec[0]["A488"] = "changed"
	assert.Equal(t, "NeuN", p.Slides[0].Primaries[0])
	assert.Equal(t, "DaRb-488", p.Slides[0].Secondaries["A488"])
}
