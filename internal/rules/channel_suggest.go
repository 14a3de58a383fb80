package rules

import "slideapp/pkg/reagent"

// NoSecondary marks a channel left without a secondary.
const NoSecondary = "None"

// ChannelAssignment is the suggestion for one fluorescence channel.
type ChannelAssignment struct {
	Channel string
	// Target is the primary the chosen secondary covers; zero when unassigned.
	Target reagent.Target
	// Secondary is nil when no catalog entry fits the channel.
	Secondary *reagent.SecondaryAntibody
}

// Name returns the chosen secondary name or NoSecondary.
func (a ChannelAssignment) Name() string {
	if a.Secondary == nil {
		return NoSecondary
	}
	return a.Secondary.Name
}

// SuggestSecondaryByChannel maps every channel to a secondary name, or to
// NoSecondary when nothing in catalog can cover a remaining target on that
// channel. See PlanSecondaryChannels for the search order.
func SuggestSecondaryByChannel(channels []string, catalog []reagent.SecondaryAntibody, primaries []reagent.PrimaryAntibody) map[string]string {
	out := make(map[string]string, len(channels))
	for _, a := range PlanSecondaryChannels(channels, catalog, primaries) {
		out[a.Channel] = a.Name()
	}
	return out
}

// PlanSecondaryChannels assigns at most one secondary per channel, in the
// caller's channel order.
//
// For each channel the first target not yet covered is tried against the
// catalog in order; the first secondary on that channel that binds the target
// (and its isotype, for isotype-specific mouse targets) and passes
// SecondaryIsCompatible against earlier picks wins. The search is greedy and
// never backtracks, so an early channel can starve a later one even when a
// complete assignment exists.
func PlanSecondaryChannels(channels []string, catalog []reagent.SecondaryAntibody, primaries []reagent.PrimaryAntibody) []ChannelAssignment {
	req := DeriveRequirements(primaries)
	targets := req.Targets()

	selected := make([]reagent.SecondaryAntibody, 0, len(channels))
	covered := make(map[reagent.Target]struct{}, len(targets))
	usedNames := make(map[string]struct{}, len(channels))
	out := make([]ChannelAssignment, 0, len(channels))

	for _, channel := range channels {
		assignment := ChannelAssignment{Channel: channel}
		fluorophore := reagent.NormalizeFluorophore(channel)

	search:
		for _, target := range targets {
			if _, done := covered[target]; done {
				continue
			}
			for _, sec := range catalog {
				if sec.Fluorophore != fluorophore || sec.Anti != target.Host() {
					continue
				}
				if target.IsMouse() && target.Subtype() != "" && sec.MouseSubtype != target.Subtype() {
					continue
				}
				if _, used := usedNames[sec.Name]; used {
					continue
				}
				if evaluateSecondary(req, sec, selected).HasBlocking() {
					continue
				}
				chosen := sec
				selected = append(selected, chosen)
				covered[chosen.Target()] = struct{}{}
				usedNames[chosen.Name] = struct{}{}
				assignment.Target = target
				assignment.Secondary = &chosen
				break search
			}
		}
		out = append(out, assignment)
	}
	return out
}
