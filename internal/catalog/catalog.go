package catalog

import (
	"fmt"

	"slideapp/pkg/reagent"
)

// ErrNotFound is returned when a name does not resolve to a catalog record.
type ErrNotFound struct {
	Kind string
	Name string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q not found in catalog", e.Kind, e.Name)
}

// Catalog holds the primary and secondary records of one session. It is
// built once and read concurrently afterwards.
//
// Duplicate names are kept in the ordered lists; name lookups resolve to the
// last record seen with that name.
type Catalog struct {
	primaries   []reagent.PrimaryAntibody
	secondaries []reagent.SecondaryAntibody
	primaryIdx  map[string]int
	secondIdx   map[string]int
}

// New indexes the given records. The slices are copied.
func New(primaries []reagent.PrimaryAntibody, secondaries []reagent.SecondaryAntibody) *Catalog {
	c := &Catalog{
		primaries:   append([]reagent.PrimaryAntibody(nil), primaries...),
		secondaries: append([]reagent.SecondaryAntibody(nil), secondaries...),
		primaryIdx:  make(map[string]int, len(primaries)),
		secondIdx:   make(map[string]int, len(secondaries)),
	}
	for i, p := range c.primaries {
		c.primaryIdx[p.Name] = i
	}
	for i, s := range c.secondaries {
		c.secondIdx[s.Name] = i
	}
	return c
}

// Load reads both catalogs from disk. An empty path yields an empty list.
func Load(primaryPath, secondaryPath string) (*Catalog, error) {
	var (
		primaries   []reagent.PrimaryAntibody
		secondaries []reagent.SecondaryAntibody
		err         error
	)
	if primaryPath != "" {
		if primaries, _, err = LoadPrimariesFile(primaryPath); err != nil {
			return nil, err
		}
	}
	if secondaryPath != "" {
		if secondaries, _, err = LoadSecondariesFile(secondaryPath); err != nil {
			return nil, err
		}
	}
	return New(primaries, secondaries), nil
}

// PrimaryList returns a copy of the primaries in catalog order.
func (c *Catalog) PrimaryList() []reagent.PrimaryAntibody {
	return append([]reagent.PrimaryAntibody(nil), c.primaries...)
}

// SecondaryList returns a copy of the secondaries in catalog order.
func (c *Catalog) SecondaryList() []reagent.SecondaryAntibody {
	return append([]reagent.SecondaryAntibody(nil), c.secondaries...)
}

// PrimaryByName looks up a primary by display name.
func (c *Catalog) PrimaryByName(name string) (reagent.PrimaryAntibody, bool) {
	i, ok := c.primaryIdx[name]
	if !ok {
		return reagent.PrimaryAntibody{}, false
	}
	return c.primaries[i], true
}

// SecondaryByName looks up a secondary by display name.
func (c *Catalog) SecondaryByName(name string) (reagent.SecondaryAntibody, bool) {
	i, ok := c.secondIdx[name]
	if !ok {
		return reagent.SecondaryAntibody{}, false
	}
	return c.secondaries[i], true
}

// Primaries resolves names in order. Unknown names yield ErrNotFound.
func (c *Catalog) Primaries(names ...string) ([]reagent.PrimaryAntibody, error) {
	out := make([]reagent.PrimaryAntibody, 0, len(names))
	for _, name := range names {
		p, ok := c.PrimaryByName(name)
		if !ok {
			return nil, ErrNotFound{Kind: "primary", Name: name}
		}
		out = append(out, p)
	}
	return out, nil
}

// Secondaries resolves names in order. Unknown names yield ErrNotFound.
func (c *Catalog) Secondaries(names ...string) ([]reagent.SecondaryAntibody, error) {
	out := make([]reagent.SecondaryAntibody, 0, len(names))
	for _, name := range names {
		s, ok := c.SecondaryByName(name)
		if !ok {
			return nil, ErrNotFound{Kind: "secondary", Name: name}
		}
		out = append(out, s)
	}
	return out, nil
}
