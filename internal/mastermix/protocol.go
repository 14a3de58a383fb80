package mastermix

import (
	"fmt"
	"math"
	"strings"
)

// Bench constants shared by both protocols.
const (
	BlockVolumeUL    = 500.0
	PBTNSafetyFactor = 1.2
	AntibodySafety   = 1.1
	SecondaryOverage = 1.2
)

// PrimaryInput describes a primary incubation.
type PrimaryInput struct {
	TotalSlides int
	VolumeUL    float64
	Method      string
	Mixes       []PrimaryMix
	// Concentrations maps antibody name to its decimal dilution. Missing
	// antibodies are treated as 0.
	Concentrations map[string]float64
}

// AntibodyVolume is the pipetting volume of one antibody in a mix.
type AntibodyVolume struct {
	Name          string  `json:"name"`
	Concentration float64 `json:"concentration"`
	Fraction      string  `json:"fraction"`
	VolumeUL      float64 `json:"volume_ul"`
	SafeVolumeUL  float64 `json:"safe_volume_ul"`
}

// PrimaryMixVolumes holds the computed volumes of one primary mix.
type PrimaryMixVolumes struct {
	ID         string           `json:"id"`
	SlideCount int              `json:"slide_count"`
	TotalUL    float64          `json:"total_ul"`
	Antibodies []AntibodyVolume `json:"antibodies"`
	PBTNUL     float64          `json:"pbtn_ul"`
	SafePBTNUL float64          `json:"safe_pbtn_ul"`
}

// PrimaryProtocol is the computed primary incubation protocol.
type PrimaryProtocol struct {
	TotalSlides int                 `json:"total_slides"`
	VolumeUL    float64             `json:"volume_ul"`
	Method      string              `json:"method"`
	BlockUL     float64             `json:"block_ul"`
	SolutionUL  float64             `json:"solution_ul"`
	BasePBTNUL  float64             `json:"base_pbtn_ul"`
	SafePBTNUL  float64             `json:"safe_pbtn_ul"`
	Mixes       []PrimaryMixVolumes `json:"mixes"`
}

// BuildPrimaryProtocol computes block, PBT-N and per-mix antibody volumes.
func BuildPrimaryProtocol(in PrimaryInput) PrimaryProtocol {
	slides := float64(in.TotalSlides)
	p := PrimaryProtocol{
		TotalSlides: in.TotalSlides,
		VolumeUL:    in.VolumeUL,
		Method:      in.Method,
		BlockUL:     slides * BlockVolumeUL,
		SolutionUL:  slides * in.VolumeUL,
	}
	p.BasePBTNUL = p.BlockUL + p.SolutionUL
	p.SafePBTNUL = p.BasePBTNUL * PBTNSafetyFactor

	for _, mix := range in.Mixes {
		mv := PrimaryMixVolumes{
			ID:         mix.ID,
			SlideCount: mix.SlideCount,
			TotalUL:    float64(mix.SlideCount) * in.VolumeUL,
		}
		var sum float64
		for _, name := range mix.Antibodies {
			conc := in.Concentrations[name]
			vol := mv.TotalUL * conc
			sum += vol
			mv.Antibodies = append(mv.Antibodies, AntibodyVolume{
				Name:          name,
				Concentration: conc,
				Fraction:      DecimalToFraction(conc),
				VolumeUL:      vol,
				SafeVolumeUL:  vol * AntibodySafety,
			})
		}
		mv.PBTNUL = math.Max(mv.TotalUL-sum, 0)
		mv.SafePBTNUL = mv.PBTNUL * AntibodySafety
		p.Mixes = append(p.Mixes, mv)
	}
	return p
}

// Text renders the protocol as bench instructions.
func (p PrimaryProtocol) Text() string {
	var b strings.Builder
	line := func(format string, args ...any) { fmt.Fprintf(&b, format+"\n", args...) }

	line("IHC Protocol")
	line("")
	line("1) Prepare PBT-N")
	line("- Block volume: %.1f uL (%d slides x %.0f uL)", p.BlockUL, p.TotalSlides, BlockVolumeUL)
	line("- Primary solution volume: %.1f uL (%d slides x %.1f uL)", p.SolutionUL, p.TotalSlides, p.VolumeUL)
	line("- Base PBT-N needed: %.1f uL", p.BasePBTNUL)
	line("- Prepare with safety factor x%.1f: %.1f uL", PBTNSafetyFactor, p.SafePBTNUL)
	line("")
	line("2) Block slides")
	line("- Incubate slides at RT for 1 hour.")
	line("")
	line("3) Prepare master mixes")
	line("- For each mix: antibody volume = concentration(decimal) x total mix volume.")
	line("- Then apply safety factor x%.1f to each antibody volume and to PBT-N volume.", AntibodySafety)
	line("")
	for _, mix := range p.Mixes {
		line("%s (%d slides, base total %.1f uL)", mix.ID, mix.SlideCount, mix.TotalUL)
		for _, ab := range mix.Antibodies {
			line("- %s: conc=%.6f (%s), antibody=%.3f uL, with x%.1f -> %.3f uL",
				ab.Name, ab.Concentration, ab.Fraction, ab.VolumeUL, AntibodySafety, ab.SafeVolumeUL)
		}
		line("- PBT-N: %.3f uL, with x%.1f -> %.3f uL", mix.PBTNUL, AntibodySafety, mix.SafePBTNUL)
		line("")
	}
	line("4) Add master mixes to slides")
	fmt.Fprintf(&b, "- Add master mix to slides and incubate using the selected method: %s.", p.Method)
	return b.String()
}

// SecondaryInput describes a secondary incubation.
type SecondaryInput struct {
	TotalSlides int
	VolumeUL    float64
	Method      string
	// Channels fixes the order in which secondaries are listed and added.
	Channels []string
	Mixes    []SecondaryMix
	// Dilutions maps secondary name to its dilution text, e.g. "1/500".
	Dilutions map[string]string
}

// ChannelVolume is the pipetting volume of one secondary in a mix.
type ChannelVolume struct {
	Channel       string  `json:"channel"`
	Secondary     string  `json:"secondary"`
	Concentration float64 `json:"concentration"`
	Fraction      string  `json:"fraction"`
	VolumeUL      float64 `json:"volume_ul"`
}

// SecondaryMixVolumes holds the computed volumes of one secondary mix.
type SecondaryMixVolumes struct {
	ID         string          `json:"id"`
	SlideCount int             `json:"slide_count"`
	TotalUL    float64         `json:"total_ul"`
	Channels   []ChannelVolume `json:"channels"`
	PBTUL      float64         `json:"pbt_ul"`
}

// SecondaryProtocol is the computed secondary incubation protocol.
type SecondaryProtocol struct {
	TotalSlides int                   `json:"total_slides"`
	VolumeUL    float64               `json:"volume_ul"`
	Method      string                `json:"method"`
	Channels    []string              `json:"channels"`
	BlockUL     float64               `json:"block_ul"`
	SafeBlockUL float64               `json:"safe_block_ul"`
	Mixes       []SecondaryMixVolumes `json:"mixes"`
}

// BuildSecondaryProtocol computes block and per-mix secondary volumes.
func BuildSecondaryProtocol(in SecondaryInput) SecondaryProtocol {
	p := SecondaryProtocol{
		TotalSlides: in.TotalSlides,
		VolumeUL:    in.VolumeUL,
		Method:      in.Method,
		Channels:    append([]string(nil), in.Channels...),
		BlockUL:     float64(in.TotalSlides) * BlockVolumeUL,
	}
	p.SafeBlockUL = p.BlockUL * PBTNSafetyFactor

	for _, mix := range in.Mixes {
		mv := SecondaryMixVolumes{
			ID:         mix.ID,
			SlideCount: mix.SlideCount,
			TotalUL:    float64(mix.SlideCount) * in.VolumeUL * SecondaryOverage,
		}
		var sum float64
		for _, channel := range in.Channels {
			name := mix.ChannelSecondary[channel]
			if empty(name) {
				continue
			}
			conc := FractionToDecimal(in.Dilutions[name])
			vol := mv.TotalUL * conc
			sum += vol
			mv.Channels = append(mv.Channels, ChannelVolume{
				Channel:       channel,
				Secondary:     name,
				Concentration: conc,
				Fraction:      DecimalToFraction(conc),
				VolumeUL:      vol,
			})
		}
		mv.PBTUL = math.Max(mv.TotalUL-sum, 0)
		p.Mixes = append(p.Mixes, mv)
	}
	return p
}

// Text renders the protocol as bench instructions.
func (p SecondaryProtocol) Text() string {
	var b strings.Builder
	line := func(format string, args ...any) { fmt.Fprintf(&b, format+"\n", args...) }

	line("Secondary IHC Protocol")
	line("")
	line("1) Block all slides in PBT-N")
	line("- Base PBT-N block volume: %d slides x %.0f uL = %.1f uL", p.TotalSlides, BlockVolumeUL, p.BlockUL)
	line("- Prepare with safety factor x%.1f: %.1f uL", PBTNSafetyFactor, p.SafeBlockUL)
	line("- Incubate for 30 min to 1 hr.")
	line("")
	line("2) Prepare secondary master mixes")
	for _, mix := range p.Mixes {
		line("%s (%d slides)", mix.ID, mix.SlideCount)
		line("- Total mix volume: %d x %.1f uL x %.1f = %.1f uL", mix.SlideCount, p.VolumeUL, SecondaryOverage, mix.TotalUL)
		for _, cv := range mix.Channels {
			line("- %s (%s): %.6f (%s) -> %.3f uL", cv.Channel, cv.Secondary, cv.Concentration, cv.Fraction, cv.VolumeUL)
		}
		line("- Add PBT first: %.3f uL", mix.PBTUL)
		line("- Then add secondaries in order: %s.", strings.Join(p.Channels, ", "))
		line("")
	}
	line("3) Add secondary mixes to slides")
	fmt.Fprintf(&b, "- Incubate using preset method: %s.", p.Method)
	return b.String()
}
