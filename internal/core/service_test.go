package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slideapp/internal/catalog"
	blobmemory "slideapp/internal/infra/blob/memory"
	"slideapp/internal/infra/persistence/memory"
	"slideapp/internal/plan"
	"slideapp/internal/slidebook"
	"slideapp/pkg/reagent"
)

func ptr(v float64) *float64 { return &v }

func testCatalog() *catalog.Catalog {
	return catalog.New(
		[]reagent.PrimaryAntibody{
			{Name: "Iba1", Animal: "Rabbit", Concentration: ptr(0.002)},
			{Name: "NeuN", Animal: "mouse", IgGSubtype: "IgG1", Concentration: ptr(0.001)},
			{Name: "GFAP", Animal: "chicken"},
			{Name: "Olig2", Animal: "goat"},
		},
		[]reagent.SecondaryAntibody{
			reagent.NewSecondary("Donkey anti-Rabbit A488", "1/500", "donkey", "rabbit", "A488"),
			reagent.NewSecondary("Goat anti-Mouse IgG1 Cy3", "1/250", "goat", "mouse", "Cy3"),
			reagent.NewSecondary("Donkey anti-Chicken A647", "1/500", "donkey", "chicken", "A647"),
		},
	)
}

func newTestService(opts ...Option) *Service {
	base := []Option{WithDefaults(Defaults{
		Channels:          []string{"A488", "Cy3", "A647"},
		Width:             3,
		PrimaryVolumeUL:   200,
		SecondaryVolumeUL: 200,
		Workers:           2,
	})}
	return NewService(testCatalog(), append(base, opts...)...)
}

func TestValidatePrimaries(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	res, err := svc.ValidatePrimaries(ctx, "donkey", []string{"Iba1", "NeuN", "None", ""})
	require.NoError(t, err)
	assert.False(t, res.HasBlocking())

	res, err = svc.ValidatePrimaries(ctx, "rabbit", []string{"Iba1"})
	require.NoError(t, err)
	require.True(t, res.HasBlocking())
	assert.Equal(t, "serum_host_conflict", res.Violations[0].Rule)

	_, err = svc.ValidatePrimaries(ctx, "donkey", []string{"Missing"})
	var nf ErrNotFound
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Missing", nf.Name)
}

func TestValidatePrimariesWarnsOnMissingConcentration(t *testing.T) {
	svc := newTestService()
	res, err := svc.ValidatePrimaries(context.Background(), "donkey", []string{"Iba1", "GFAP"})
	require.NoError(t, err)
	assert.False(t, res.HasBlocking())
	require.Len(t, res.Violations, 1)
	assert.Equal(t, RuleMissingConcentration, res.Violations[0].Rule)
	assert.Equal(t, reagent.SeverityWarn, res.Violations[0].Severity)
	assert.Equal(t, "GFAP", res.Violations[0].Subject)

	res, err = svc.ValidatePrimaries(context.Background(), "goat", []string{"GFAP", "Olig2"})
	require.NoError(t, err)
	require.True(t, res.HasBlocking())
	assert.Equal(t, "serum_host_conflict", res.Violations[0].Rule)
	assert.Equal(t, RuleMissingConcentration, res.Violations[len(res.Violations)-1].Rule)
}

func TestDefaultPrimaries(t *testing.T) {
	svc := newTestService()
	names, err := svc.DefaultPrimaries(context.Background(), "goat", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Iba1", "NeuN", "GFAP"}, names)

	names, err = svc.DefaultPrimaries(context.Background(), "goat", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Iba1", "NeuN"}, names)
}

func TestCheckSecondary(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	primaries := []string{"Iba1", "NeuN"}

	res, err := svc.CheckSecondary(ctx, "Donkey anti-Rabbit A488", nil, primaries)
	require.NoError(t, err)
	assert.False(t, res.HasBlocking())

	res, err = svc.CheckSecondary(ctx, "Donkey anti-Chicken A647", nil, primaries)
	require.NoError(t, err)
	assert.True(t, res.HasBlocking())

	_, err = svc.CheckSecondary(ctx, "Unknown", nil, primaries)
	assert.Error(t, err)
}

func TestSuggestSecondariesUsesDefaultChannels(t *testing.T) {
	svc := newTestService()
	got, err := svc.SuggestSecondaries(context.Background(), nil, []string{"Iba1", "NeuN", "GFAP"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Donkey anti-Rabbit A488", got[0].Name())
	assert.Equal(t, "Goat anti-Mouse IgG1 Cy3", got[1].Name())
	assert.Equal(t, "Donkey anti-Chicken A647", got[2].Name())
}

func TestValidateRows(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	got, err := svc.ValidateRows(ctx, "rabbit", [][]string{{"NeuN", "GFAP"}, {"Iba1"}, {}})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Valid)
	assert.False(t, got[1].Valid)
	assert.True(t, got[2].Valid)

	_, err = svc.ValidateRows(ctx, "rabbit", [][]string{{"Iba1"}, {"Nope"}})
	assert.ErrorContains(t, err, "row 2")
}

func twoSlidePlan() *plan.Plan {
	return &plan.Plan{
		Username: "alice",
		Primary: plan.Incubation{
			Method:    "4C overnight",
			Dilutions: map[string]string{"Iba1": "1/500"},
		},
		Slides: []plan.Slide{
			{ID: "S1", Primaries: []string{"Iba1", "NeuN"}, Secondaries: map[string]string{"A488": "Donkey anti-Rabbit A488", "Cy3": "Goat anti-Mouse IgG1 Cy3"}, StorageLocation: "Box 7"},
			{ID: "S2", Primaries: []string{"NeuN", "Iba1"}, Secondaries: map[string]string{"A488": "Donkey anti-Rabbit A488", "Cy3": "Goat anti-Mouse IgG1 Cy3"}},
		},
	}
}

func TestPrimaryProtocolFallsBackToCatalog(t *testing.T) {
	svc := newTestService()
	proto, err := svc.PrimaryProtocol(context.Background(), twoSlidePlan())
	require.NoError(t, err)
	assert.InDelta(t, 1000, proto.BlockUL, 1e-9)
	require.Len(t, proto.Mixes, 1)
	mix := proto.Mixes[0]
	assert.Equal(t, "MM1", mix.ID)
	assert.InDelta(t, 400, mix.TotalUL, 1e-9)
	require.Len(t, mix.Antibodies, 2)
	assert.InDelta(t, 0.8, mix.Antibodies[0].VolumeUL, 1e-9)
	assert.InDelta(t, 0.4, mix.Antibodies[1].VolumeUL, 1e-9)
	assert.InDelta(t, 398.8, mix.PBTNUL, 1e-9)
}

func TestSecondaryProtocolUsesCatalogDilutions(t *testing.T) {
	svc := newTestService()
	proto, err := svc.SecondaryProtocol(context.Background(), twoSlidePlan())
	require.NoError(t, err)
	assert.Equal(t, []string{"A488", "Cy3", "A647"}, proto.Channels)
	require.Len(t, proto.Mixes, 1)
	assert.Equal(t, 2, proto.Mixes[0].SlideCount)

	p := twoSlidePlan()
	p.Slides[0].Secondaries["A647"] = "Nope"
	_, err = svc.SecondaryProtocol(context.Background(), p)
	assert.Error(t, err)
}

func TestSaveAndListRuns(t *testing.T) {
	store := memory.New()
	rec := slidebook.NewRecorder(store, blobmemory.New(),
		slidebook.WithClock(func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }))
	svc := newTestService(WithRecorder(rec))
	ctx := context.Background()

	run, err := svc.SaveRun(ctx, "", twoSlidePlan())
	require.NoError(t, err)
	assert.Equal(t, "alice", run.Username)
	require.Len(t, run.Payload.Slides, 2)
	assert.Equal(t, "MM1", run.Payload.Slides[0].PrimaryMix)
	assert.Equal(t, "SMM1", run.Payload.Slides[1].SecondaryMix)
	assert.Equal(t, "Iba1, NeuN", run.Payload.Slides[1].PrimarySet)

	runs, err := svc.ListRuns(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	locs, err := svc.Locations(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"Box 7"}, locs)
}

func TestRunOperationsNeedRecorder(t *testing.T) {
	svc := newTestService()
	_, err := svc.SaveRun(context.Background(), "alice", twoSlidePlan())
	assert.ErrorIs(t, err, ErrNoRecorder)
	_, err = svc.ListRuns(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrNoRecorder)
}

func TestNilCatalogIsEmpty(t *testing.T) {
	svc := NewService(nil)
	names, err := svc.DefaultPrimaries(context.Background(), "goat", 3)
	require.NoError(t, err)
	assert.Empty(t, names)
}
