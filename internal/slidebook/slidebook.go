// Package slidebook records finished slide books: the per-slide antibody
// sets, master mixes and storage locations of one experiment run.
package slidebook

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StageFinal tags payloads produced from the final slide book.
const StageFinal = "final_slide_book"

// Row is one slide of the final book. Fields are declared in JSON key order
// so exports come out key-sorted.
type Row struct {
	PlannedUse      string `json:"planned_use" yaml:"planned_use"`
	PrimaryMix      string `json:"primary_mm" yaml:"primary_mm"`
	PrimarySet      string `json:"primary_set" yaml:"primary_set"`
	SecondaryMix    string `json:"secondary_mm" yaml:"secondary_mm"`
	SecondarySet    string `json:"secondary_set" yaml:"secondary_set"`
	SlideID         string `json:"slide_id" yaml:"slide_id"`
	StorageLocation string `json:"storage_location" yaml:"storage_location"`
}

// Payload is the document persisted for a run.
type Payload struct {
	Slides   []Row  `json:"slides" yaml:"slides"`
	Stage    string `json:"stage" yaml:"stage"`
	Username string `json:"username" yaml:"username"`
}

// Run is a persisted payload.
type Run struct {
	ID        string    `json:"run_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	Payload   Payload   `json:"payload"`
	// ExportKey is the blob key of the JSON export, when one was written.
	ExportKey string `json:"export_key,omitempty"`
}

// ShortID is the eight character prefix used in export names.
func (r Run) ShortID() string {
	if len(r.ID) <= 8 {
		return r.ID
	}
	return r.ID[:8]
}

// Store persists runs and the storage locations a user has typed before.
type Store interface {
	SaveRun(ctx context.Context, run Run) error
	// ListRuns returns the user's runs, newest first.
	ListRuns(ctx context.Context, username string) ([]Run, error)
	// RememberLocation records a location as most recently used.
	RememberLocation(ctx context.Context, username, location string, at time.Time) error
	// Locations returns the user's locations, most recently used first.
	Locations(ctx context.Context, username string) ([]string, error)
	Close() error
}

var (
	// ErrDuplicateRun is returned when a run ID is saved twice.
	ErrDuplicateRun = errors.New("slidebook: run already exists")
	// ErrEmptyUsername is returned for runs without an owner.
	ErrEmptyUsername = errors.New("slidebook: username required")
)

// Validate checks the fields every store relies on.
func (r Run) Validate() error {
	if r.ID == "" {
		return errors.New("slidebook: run id required")
	}
	if r.Username == "" {
		return ErrEmptyUsername
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("slidebook: run %s has no creation time", r.ID)
	}
	return nil
}
