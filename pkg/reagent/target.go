package reagent

// TargetKind distinguishes bare host targets from mouse isotype targets.
type TargetKind uint8

const (
	// TargetBare identifies a non-mouse primary by host species.
	TargetBare TargetKind = iota + 1
	// TargetMouse identifies a mouse primary, optionally narrowed to an isotype.
	TargetMouse
)

// Target is the primary antibody a secondary detects. It is a tagged value
// so a host literally named "mouse:igg1" can never collide with the mouse
// IgG1 target. Targets are comparable and safe to use as map keys.
type Target struct {
	kind    TargetKind
	host    string
	subtype string
}

// BareTarget returns the target for a non-mouse host.
func BareTarget(host string) Target {
	return Target{kind: TargetBare, host: host}
}

// MouseTarget returns the mouse target for subtype; "" means any isotype.
func MouseTarget(subtype string) Target {
	return Target{kind: TargetMouse, host: MouseHost, subtype: subtype}
}

// Kind reports the target variant.
func (t Target) Kind() TargetKind { return t.kind }

// Host returns the species the target refers to.
func (t Target) Host() string { return t.host }

// Subtype returns the mouse isotype, or "" for bare targets and mouse-any.
func (t Target) Subtype() string { return t.subtype }

// IsMouse reports whether t is a mouse target.
func (t Target) IsMouse() bool { return t.kind == TargetMouse }

// String renders the target for display: the host, or mouse:<subtype|any>.
func (t Target) String() string {
	switch t.kind {
	case TargetMouse:
		if t.subtype == "" {
			return MouseHost + ":any"
		}
		return MouseHost + ":" + t.subtype
	case TargetBare:
		return t.host
	}
	return ""
}
