package slidebook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"slideapp/internal/blob"
	"slideapp/internal/logging"
)

// Recorder saves finished slide books to a Store and writes a JSON export
// of each one to a blob store.
type Recorder struct {
	store  Store
	blobs  blob.Store
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// Option customises a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger used for save events.
func WithLogger(l *zap.Logger) Option {
	return func(r *Recorder) { r.logger = logging.OrNop(l) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(r *Recorder) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// NewRecorder builds a Recorder. blobs may be nil to skip exports.
func NewRecorder(store Store, blobs blob.Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:  store,
		blobs:  blobs,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ExportKey names the JSON export of a run: <date>_<user>_<id8>.json.
func ExportKey(run Run) string {
	user := strings.Map(func(c rune) rune {
		if c == '/' || c == '\\' {
			return '_'
		}
		return c
	}, run.Username)
	user = strings.ReplaceAll(user, "..", "_")
	return fmt.Sprintf("%s_%s_%s.json", run.CreatedAt.UTC().Format("2006-01-02"), user, run.ShortID())
}

// EncodePayload renders a payload as indented JSON.
func EncodePayload(p Payload) ([]byte, error) {
	if p.Slides == nil {
		p.Slides = []Row{}
	}
	return json.MarshalIndent(p, "", "  ")
}

// Save stamps the payload with the user and final stage, exports it and
// persists the run. Every non-empty storage location is remembered.
func (r *Recorder) Save(ctx context.Context, username string, payload Payload) (Run, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Run{}, ErrEmptyUsername
	}
	payload.Username = username
	if payload.Stage == "" {
		payload.Stage = StageFinal
	}
	for i := range payload.Slides {
		payload.Slides[i].StorageLocation = strings.TrimSpace(payload.Slides[i].StorageLocation)
	}
	run := Run{
		ID:        r.newID(),
		Username:  username,
		CreatedAt: r.now(),
		Payload:   payload,
	}

	if r.blobs != nil {
		raw, err := EncodePayload(payload)
		if err != nil {
			return Run{}, fmt.Errorf("encode payload: %w", err)
		}
		key := ExportKey(run)
		if _, err := r.blobs.Put(ctx, key, bytes.NewReader(raw), blob.PutOptions{
			ContentType: "application/json",
			Metadata:    map[string]string{"run-id": run.ID, "username": username},
		}); err != nil {
			return Run{}, fmt.Errorf("export run %s: %w", run.ID, err)
		}
		run.ExportKey = key
	}

	if err := r.store.SaveRun(ctx, run); err != nil {
		if run.ExportKey != "" {
			r.logger.Warn("export left without a saved run",
				zap.String("run_id", run.ID),
				zap.String("export", run.ExportKey),
				zap.Error(err),
			)
		}
		return Run{}, fmt.Errorf("save run %s: %w", run.ID, err)
	}
	for _, slide := range payload.Slides {
		if slide.StorageLocation == "" {
			continue
		}
		if err := r.store.RememberLocation(ctx, username, slide.StorageLocation, r.now()); err != nil {
			return run, fmt.Errorf("remember location %q: %w", slide.StorageLocation, err)
		}
	}
	r.logger.Info("slide book saved",
		zap.String("run_id", run.ID),
		zap.String("username", username),
		zap.Int("slides", len(payload.Slides)),
		zap.String("export", run.ExportKey),
	)
	return run, nil
}

// ListRuns returns the user's runs, newest first.
func (r *Recorder) ListRuns(ctx context.Context, username string) ([]Run, error) {
	return r.store.ListRuns(ctx, strings.TrimSpace(username))
}

// Locations returns the user's remembered storage locations.
func (r *Recorder) Locations(ctx context.Context, username string) ([]string, error) {
	return r.store.Locations(ctx, strings.TrimSpace(username))
}
