// Package plan reads experiment plans: the serum, the antibody selections and
// the per-slide layout a run is built from.
package plan

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"slideapp/internal/mastermix"
	"slideapp/internal/slidebook"
)

// Incubation holds the bench settings of one incubation step.
type Incubation struct {
	VolumeUL float64 `yaml:"volume_ul"`
	Method   string  `yaml:"method"`
	// Dilutions maps antibody name to a dilution such as "1/500".
	Dilutions map[string]string `yaml:"dilutions"`
}

// Slide is one planned slide.
type Slide struct {
	ID              string            `yaml:"id"`
	Primaries       []string          `yaml:"primaries"`
	Secondaries     map[string]string `yaml:"secondaries"`
	StorageLocation string            `yaml:"storage_location"`
	PlannedUse      string            `yaml:"planned_use"`
}

// Plan is the document read from a plan file.
type Plan struct {
	Username    string   `yaml:"username"`
	Serum       string   `yaml:"serum"`
	Width       int      `yaml:"width"`
	Channels    []string `yaml:"channels"`
	Primaries   []string `yaml:"primaries"`
	Secondaries []string `yaml:"secondaries"`
	// Candidate is the secondary checked by check-secondary.
	Candidate string `yaml:"candidate"`

	Primary   Incubation `yaml:"primary"`
	Secondary Incubation `yaml:"secondary"`
	Slides    []Slide    `yaml:"slides"`
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("plan: invalid")

// Decode parses a plan, rejecting unknown keys.
func Decode(r io.Reader) (*Plan, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var p Plan
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return &p, nil
		}
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Load reads a plan file.
func Load(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plan: %w", err)
	}
	defer func() { _ = f.Close() }()
	p, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Validate checks slide IDs and volumes.
func (p *Plan) Validate() error {
	if p.Width < 0 {
		return fmt.Errorf("%w: width %d", ErrInvalid, p.Width)
	}
	if p.Primary.VolumeUL < 0 || p.Secondary.VolumeUL < 0 {
		return fmt.Errorf("%w: negative volume", ErrInvalid)
	}
	seen := make(map[string]struct{}, len(p.Slides))
	for i, s := range p.Slides {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return fmt.Errorf("%w: slide %d has no id", ErrInvalid, i+1)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate slide %q", ErrInvalid, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// PrimaryRows returns each slide's primary names.
func (p *Plan) PrimaryRows() [][]string {
	rows := make([][]string, len(p.Slides))
	for i, s := range p.Slides {
		rows[i] = append([]string(nil), s.Primaries...)
	}
	return rows
}

// SecondaryRows returns each slide's channel to secondary mapping.
func (p *Plan) SecondaryRows() []map[string]string {
	rows := make([]map[string]string, len(p.Slides))
	for i, s := range p.Slides {
		row := make(map[string]string, len(s.Secondaries))
		for ch, name := range s.Secondaries {
			row[ch] = name
		}
		rows[i] = row
	}
	return rows
}

// Concentrations converts the primary dilutions to decimals.
func (p *Plan) Concentrations() map[string]float64 {
	out := make(map[string]float64, len(p.Primary.Dilutions))
	for name, d := range p.Primary.Dilutions {
		out[name] = mastermix.FractionToDecimal(d)
	}
	return out
}

// Book builds the final slide book rows from per-slide mix IDs as returned
// by mastermix.AssignPrimaryMixes and GroupSecondaryMixes.
func (p *Plan) Book(primaryMixes, secondaryMixes []string, channels []string) []slidebook.Row {
	rows := make([]slidebook.Row, len(p.Slides))
	for i, s := range p.Slides {
		rows[i] = slidebook.Row{
			SlideID:         strings.TrimSpace(s.ID),
			PrimarySet:      primarySet(s.Primaries),
			SecondarySet:    secondarySet(s.Secondaries, channels),
			StorageLocation: strings.TrimSpace(s.StorageLocation),
			PlannedUse:      strings.TrimSpace(s.PlannedUse),
		}
		if i < len(primaryMixes) {
			rows[i].PrimaryMix = primaryMixes[i]
		}
		if i < len(secondaryMixes) {
			rows[i].SecondaryMix = secondaryMixes[i]
		}
	}
	return rows
}

func primarySet(names []string) string {
	set := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || n == mastermix.None {
			continue
		}
		set = append(set, n)
	}
	sort.Strings(set)
	return strings.Join(set, ", ")
}

func secondarySet(byChannel map[string]string, channels []string) string {
	parts := make([]string, 0, len(channels))
	for _, ch := range channels {
		name := strings.TrimSpace(byChannel[ch])
		if name == "" || name == mastermix.None {
			continue
		}
		parts = append(parts, ch+": "+name)
	}
	return strings.Join(parts, "; ")
}
