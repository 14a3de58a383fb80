// Package storetest holds the behavioural checks every slidebook.Store
// backend must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slideapp/internal/slidebook"
)

// Run exercises a fresh store returned by open.
func Run(t *testing.T, open func(t *testing.T) slidebook.Store) {
	t.Helper()
	base := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	t.Run("runs newest first per user", func(t *testing.T) {
		st := open(t)
		ctx := context.Background()
		older := run("a1", "alice", base, "S1")
		newer := run("a2", "alice", base.Add(time.Hour), "S2")
		other := run("b1", "bob", base.Add(2*time.Hour), "S3")
		for _, r := range []slidebook.Run{older, newer, other} {
			require.NoError(t, st.SaveRun(ctx, r))
		}

		runs, err := st.ListRuns(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "a2", runs[0].ID)
		assert.Equal(t, "a1", runs[1].ID)
		assert.True(t, runs[0].CreatedAt.Equal(newer.CreatedAt))
		assert.Equal(t, newer.Payload, runs[0].Payload)
		assert.Equal(t, "exports/a2.json", runs[0].ExportKey)

		none, err := st.ListRuns(ctx, "carol")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("duplicate run rejected", func(t *testing.T) {
		st := open(t)
		ctx := context.Background()
		r := run("dup", "alice", base, "S1")
		require.NoError(t, st.SaveRun(ctx, r))
		assert.ErrorIs(t, st.SaveRun(ctx, r), slidebook.ErrDuplicateRun)
	})

	t.Run("invalid run rejected", func(t *testing.T) {
		st := open(t)
		assert.ErrorIs(t, st.SaveRun(context.Background(), run("x", "", base, "S1")), slidebook.ErrEmptyUsername)
	})

	t.Run("locations most recent first", func(t *testing.T) {
		st := open(t)
		ctx := context.Background()
		require.NoError(t, st.RememberLocation(ctx, "alice", "Freezer A", base))
		require.NoError(t, st.RememberLocation(ctx, "alice", "Box 7", base.Add(time.Minute)))
		require.NoError(t, st.RememberLocation(ctx, "alice", "Freezer A", base.Add(2*time.Minute)))
		require.NoError(t, st.RememberLocation(ctx, "alice", "", base.Add(3*time.Minute)))
		require.NoError(t, st.RememberLocation(ctx, "bob", "Shelf", base))

		locs, err := st.Locations(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"Freezer A", "Box 7"}, locs)
	})
}

func run(id, user string, at time.Time, slide string) slidebook.Run {
	return slidebook.Run{
		ID:        id,
		Username:  user,
		CreatedAt: at,
		ExportKey: "exports/" + id + ".json",
		Payload: slidebook.Payload{
			Username: user,
			Stage:    slidebook.StageFinal,
			Slides: []slidebook.Row{{
				SlideID:         slide,
				PrimarySet:      "Iba1, NeuN",
				PrimaryMix:      "MM1",
				SecondarySet:    "A488: Goat anti-Rabbit 488",
				SecondaryMix:    "SMM1",
				StorageLocation: "Freezer A",
				PlannedUse:      "confocal",
			}},
		},
	}
}
