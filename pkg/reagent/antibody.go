// Package reagent defines the immutable antibody records, target keys and
// rule outcome types shared by the slideapp compatibility engine and its
// collaborators (catalog loaders, the service facade and the CLI).
package reagent

// MouseHost is the host species that receives isotype-specific handling.
const MouseHost = "mouse"

// PrimaryAntibody is a catalog record for a primary antibody. Values are
// treated as read-only reference data once loaded.
type PrimaryAntibody struct {
	// Name is the unique display key of the antibody.
	Name string `json:"name" yaml:"name"`
	// Concentration is the optional working dilution expressed as a decimal.
	Concentration *float64 `json:"concentration,omitempty" yaml:"concentration,omitempty"`
	// Animal is the host species the antibody was raised in.
	Animal        string `json:"animal" yaml:"animal"`
	CatalogNumber string `json:"catalog_number,omitempty" yaml:"catalog_number,omitempty"`
	// IgGSubtype is the mouse isotype; empty, "na" and "n/a" mean unspecified.
	IgGSubtype string `json:"igg_subtype,omitempty" yaml:"igg_subtype,omitempty"`
}

// Host returns the normalised host species.
func (p PrimaryAntibody) Host() string { return NormalizeHost(p.Animal) }

// IsMouse reports whether the antibody was raised in mouse.
func (p PrimaryAntibody) IsMouse() bool { return p.Host() == MouseHost }

// SubtypeToken returns the trimmed lower-case IgG subtype as written in the catalog.
func (p PrimaryAntibody) SubtypeToken() string { return fold(p.IgGSubtype) }

// IsMonoclonal reports whether a concrete IgG subtype is recorded.
func (p PrimaryAntibody) IsMonoclonal() bool { return !unspecifiedSubtype(p.SubtypeToken()) }

// Valid reports whether the record carries the fields the engine relies on.
func (p PrimaryAntibody) Valid() bool { return trim(p.Name) != "" && p.Host() != "" }

// SecondaryAntibody is a catalog record for a fluorophore-conjugated secondary.
type SecondaryAntibody struct {
	Name string `json:"name" yaml:"name"`
	// ConcentrationText is free-form, usually a fraction such as "1/250".
	ConcentrationText string `json:"concentration,omitempty" yaml:"concentration,omitempty"`
	// RaisedIn is the host species that produced the secondary.
	RaisedIn string `json:"raised_in" yaml:"raised_in"`
	// Anti is the host species the secondary binds.
	Anti string `json:"anti" yaml:"anti"`
	// Fluorophore is the upper-case detection channel, e.g. A488, CY3, A647.
	Fluorophore string `json:"fluorophore" yaml:"fluorophore"`
	// MouseSubtype is igg1, igg2a, igg2b or empty; only set when Anti is mouse.
	MouseSubtype string `json:"mouse_subtype,omitempty" yaml:"mouse_subtype,omitempty"`
}

// Valid reports whether the record carries the fields the engine relies on.
func (s SecondaryAntibody) Valid() bool {
	return trim(s.Name) != "" && s.RaisedIn != "" && s.Anti != "" && s.Fluorophore != ""
}

// Target returns the primary the secondary detects.
func (s SecondaryAntibody) Target() Target {
	if s.Anti == MouseHost {
		return MouseTarget(s.MouseSubtype)
	}
	return BareTarget(s.Anti)
}

// NewSecondary builds a SecondaryAntibody with normalised host, target and
// channel fields. The mouse subtype is inferred from the name when the
// secondary targets mouse.
func NewSecondary(name, concentration, raisedIn, anti, fluorophore string) SecondaryAntibody {
	sec := SecondaryAntibody{
		Name:              trim(name),
		ConcentrationText: trim(concentration),
		RaisedIn:          NormalizeHost(raisedIn),
		Anti:              NormalizeHost(anti),
		Fluorophore:       NormalizeFluorophore(fluorophore),
	}
	if sec.Anti == MouseHost {
		sec.MouseSubtype = InferMouseSubtype(sec.Name)
	}
	return sec
}
