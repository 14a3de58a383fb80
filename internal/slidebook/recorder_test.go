package slidebook_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"slideapp/internal/blob"
	blobfs "slideapp/internal/infra/blob/fs"
	blobmemory "slideapp/internal/infra/blob/memory"
	s3store "slideapp/internal/infra/blob/s3"
	"slideapp/internal/infra/persistence/memory"
	"slideapp/internal/slidebook"
)

var fixedNow = time.Date(2026, 10, 18, 15, 4, 5, 0, time.UTC)

func newRecorder(blobs blob.Store) (*slidebook.Recorder, *memory.Store) {
	store := memory.New()
	rec := slidebook.NewRecorder(store, blobs,
		slidebook.WithClock(func() time.Time { return fixedNow }),
		slidebook.WithIDGenerator(func() string { return "9f86d081884c7d659a2feaa0c55ad015" }),
	)
	return rec, store
}

func samplePayload() slidebook.Payload {
	return slidebook.Payload{Slides: []slidebook.Row{
		{SlideID: "G1-S1", PrimarySet: "Iba1, NeuN", PrimaryMix: "MM1", SecondaryMix: "SMM1", StorageLocation: " Freezer A "},
		{SlideID: "G1-S2", PrimarySet: "Iba1, NeuN", PrimaryMix: "MM1", SecondaryMix: "SMM1"},
	}}
}

func TestSaveWritesExportAndRun(t *testing.T) {
	blobs := blobmemory.New()
	rec, store := newRecorder(blobs)
	ctx := context.Background()

	run, err := rec.Save(ctx, " alice ", samplePayload())
	require.NoError(t, err)
	assert.Equal(t, "alice", run.Username)
	assert.Equal(t, slidebook.StageFinal, run.Payload.Stage)
	assert.Equal(t, "alice", run.Payload.Username)
	assert.Equal(t, "2026-10-18_alice_9f86d081.json", run.ExportKey)

	_, rc, err := blobs.Get(ctx, run.ExportKey)
	require.NoError(t, err)
	raw, err := io.ReadAll(rc)
	require.NoError(t, err)
	var exported map[string]any
	require.NoError(t, json.Unmarshal(raw, &exported))
	assert.Equal(t, "final_slide_book", exported["stage"])
	assert.Contains(t, string(raw), "\n  \"slides\": [")

	runs, err := rec.ListRuns(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	locs, err := store.Locations(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"Freezer A"}, locs)
}

func TestSaveToS3(t *testing.T) {
	blobs := s3store.NewMock()
	rec, _ := newRecorder(blobs)
	run, err := rec.Save(context.Background(), "bob", samplePayload())
	require.NoError(t, err)
	infos, err := blobs.List(context.Background(), "2026-10-18_bob_")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, run.ExportKey, infos[0].Key)
}

func TestSaveWithoutBlobStore(t *testing.T) {
	rec, _ := newRecorder(nil)
	run, err := rec.Save(context.Background(), "carol", slidebook.Payload{})
	require.NoError(t, err)
	assert.Empty(t, run.ExportKey)
}

func TestSaveRejectsEmptyUser(t *testing.T) {
	rec, _ := newRecorder(blobmemory.New())
	_, err := rec.Save(context.Background(), "  ", samplePayload())
	assert.ErrorIs(t, err, slidebook.ErrEmptyUsername)
}

func TestSaveSurfacesExportCollision(t *testing.T) {
	blobs := blobmemory.New()
	rec, _ := newRecorder(blobs)
	ctx := context.Background()
	_, err := rec.Save(ctx, "alice", samplePayload())
	require.NoError(t, err)
	_, err = rec.Save(ctx, "alice", samplePayload())
	require.Error(t, err)
	assert.True(t, errors.Is(err, blob.ErrExists))
}

func TestEncodePayloadKeySorted(t *testing.T) {
	raw, err := slidebook.EncodePayload(slidebook.Payload{Username: "alice", Stage: slidebook.StageFinal})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"slides\": [],\n  \"stage\": \"final_slide_book\",\n  \"username\": \"alice\"\n}", string(raw))
}

func TestExportKeySanitisesUser(t *testing.T) {
	key := slidebook.ExportKey(slidebook.Run{ID: "abcdef0123", Username: "lab/alice", CreatedAt: fixedNow})
	assert.Equal(t, "2026-10-18_lab_alice_abcdef01.json", key)
}

func TestExportKeyCollapsesDotRuns(t *testing.T) {
	key := slidebook.ExportKey(slidebook.Run{ID: "abcdef0123", Username: "j..smith", CreatedAt: fixedNow})
	assert.Equal(t, "2026-10-18_j_smith_abcdef01.json", key)
	assert.NotContains(t, key, "..")

	blobs, err := blobfs.New(t.TempDir())
	require.NoError(t, err)
	rec, _ := newRecorder(blobs)
	run, err := rec.Save(context.Background(), "j..smith", samplePayload())
	require.NoError(t, err)
	_, rc, err := blobs.Get(context.Background(), run.ExportKey)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
}

type failingRunStore struct {
	*memory.Store
}

func (failingRunStore) SaveRun(context.Context, slidebook.Run) error {
	return errors.New("disk full")
}

func TestSaveWarnsAboutOrphanedExport(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	blobs := blobmemory.New()
	rec := slidebook.NewRecorder(failingRunStore{memory.New()}, blobs,
		slidebook.WithClock(func() time.Time { return fixedNow }),
		slidebook.WithIDGenerator(func() string { return "9f86d081884c7d659a2feaa0c55ad015" }),
		slidebook.WithLogger(zap.New(core)),
	)
	_, err := rec.Save(context.Background(), "alice", samplePayload())
	require.ErrorContains(t, err, "disk full")

	entries := logs.FilterMessage("export left without a saved run").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "2026-10-18_alice_9f86d081.json", entries[0].ContextMap()["export"])

	_, rc, err := blobs.Get(context.Background(), "2026-10-18_alice_9f86d081.json")
	require.NoError(t, err)
	require.NoError(t, rc.Close())
}

func TestWithLoggerNilKeepsRecorderUsable(t *testing.T) {
	rec := slidebook.NewRecorder(memory.New(), nil, slidebook.WithLogger(nil))
	_, err := rec.Save(context.Background(), "dana", slidebook.Payload{})
	require.NoError(t, err)
}
