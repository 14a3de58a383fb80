package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"slideapp/internal/plan"
	"slideapp/internal/rules"
	"slideapp/internal/slidebook"
	"slideapp/pkg/reagent"
)

var errInvalid = errors.New("selection is not valid")

func resultText(w io.Writer, label string, res reagent.Result) {
	if !res.HasBlocking() {
		fmt.Fprintf(w, "%svalid\n", label)
		return
	}
	fmt.Fprintf(w, "%sinvalid: %s\n", label, strings.Join(res.Messages(), "; "))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func newValidateCmd(a *app) *cobra.Command {
	var serum, planPath string
	cmd := &cobra.Command{
		Use:   "validate [primary...]",
		Short: "Check a primary selection, or every slide of a plan, against the serum host",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadPlan(planPath)
			if err != nil {
				return err
			}
			serum = firstNonEmpty(serum, p.Serum)
			if serum == "" {
				return errors.New("serum host required (--serum or plan serum)")
			}
			ctx, out := cmd.Context(), cmd.OutOrStdout()

			if len(args) == 0 && len(p.Slides) > 0 {
				rows, err := a.svc.ValidateRows(ctx, serum, p.PrimaryRows())
				if err != nil {
					return err
				}
				invalid := false
				for _, r := range rows {
					invalid = invalid || !r.Valid
				}
				if err := a.emit(out, rows, func(w io.Writer) {
					for _, r := range rows {
						resultText(w, p.Slides[r.Index].ID+"\t", r.Result)
					}
				}); err != nil {
					return err
				}
				if invalid {
					return errInvalid
				}
				return nil
			}

			names := args
			if len(names) == 0 {
				names = p.Primaries
			}
			res, err := a.svc.ValidatePrimaries(ctx, serum, names)
			if err != nil {
				return err
			}
			if err := a.emit(out, res, func(w io.Writer) { resultText(w, "", res) }); err != nil {
				return err
			}
			if res.HasBlocking() {
				return errInvalid
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serum, "serum", "", "serum (blocking) host, e.g. donkey")
	cmd.Flags().StringVar(&planPath, "plan", "", "plan YAML file")
	return cmd
}

func newDefaultsCmd(a *app) *cobra.Command {
	var serum, planPath string
	var width int
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Propose a starter set of primaries compatible with the serum host",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.loadPlan(planPath)
			if err != nil {
				return err
			}
			serum = firstNonEmpty(serum, p.Serum)
			if serum == "" {
				return errors.New("serum host required (--serum or plan serum)")
			}
			if width == 0 {
				width = p.Width
			}
			names, err := a.svc.DefaultPrimaries(cmd.Context(), serum, width)
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), names, func(w io.Writer) {
				for _, n := range names {
					fmt.Fprintln(w, n)
				}
			})
		},
	}
	cmd.Flags().StringVar(&serum, "serum", "", "serum (blocking) host")
	cmd.Flags().StringVar(&planPath, "plan", "", "plan YAML file")
	cmd.Flags().IntVar(&width, "width", 0, "number of primaries (default from config)")
	return cmd
}

func newCheckSecondaryCmd(a *app) *cobra.Command {
	var planPath string
	var primaries, selected []string
	cmd := &cobra.Command{
		Use:   "check-secondary <secondary>",
		Short: "Check whether a secondary can join the current selection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadPlan(planPath)
			if err != nil {
				return err
			}
			candidate := p.Candidate
			if len(args) == 1 {
				candidate = args[0]
			}
			if strings.TrimSpace(candidate) == "" {
				return errors.New("secondary name required")
			}
			if len(primaries) == 0 {
				primaries = p.Primaries
			}
			if len(selected) == 0 {
				selected = p.Secondaries
			}
			res, err := a.svc.CheckSecondary(cmd.Context(), candidate, selected, primaries)
			if err != nil {
				return err
			}
			if err := a.emit(cmd.OutOrStdout(), res, func(w io.Writer) { resultText(w, candidate+": ", res) }); err != nil {
				return err
			}
			if res.HasBlocking() {
				return errInvalid
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&planPath, "plan", "", "plan YAML file")
	cmd.Flags().StringSliceVar(&primaries, "primary", nil, "selected primaries")
	cmd.Flags().StringSliceVar(&selected, "selected", nil, "secondaries already chosen")
	return cmd
}

type suggestion struct {
	Channel   string `json:"channel"`
	Secondary string `json:"secondary"`
	Target    string `json:"target,omitempty"`
}

func suggestions(assignments []rules.ChannelAssignment) []suggestion {
	out := make([]suggestion, len(assignments))
	for i, s := range assignments {
		out[i] = suggestion{Channel: s.Channel, Secondary: s.Name()}
		if s.Secondary != nil {
			out[i].Target = s.Target.String()
		}
	}
	return out
}

func newSuggestCmd(a *app) *cobra.Command {
	var planPath string
	var primaries []string
	cmd := &cobra.Command{
		Use:   "suggest [channel...]",
		Short: "Suggest one secondary per channel for the selected primaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadPlan(planPath)
			if err != nil {
				return err
			}
			channels := args
			if len(channels) == 0 {
				channels = p.Channels
			}
			if len(primaries) == 0 {
				primaries = p.Primaries
			}
			assignments, err := a.svc.SuggestSecondaries(cmd.Context(), channels, primaries)
			if err != nil {
				return err
			}
			out := suggestions(assignments)
			return a.emit(cmd.OutOrStdout(), out, func(w io.Writer) {
				for _, s := range out {
					fmt.Fprintf(w, "%s\t%s\n", s.Channel, s.Secondary)
				}
			})
		},
	}
	cmd.Flags().StringVar(&planPath, "plan", "", "plan YAML file")
	cmd.Flags().StringSliceVar(&primaries, "primary", nil, "selected primaries")
	return cmd
}

func newProtocolCmd(a *app) *cobra.Command {
	var planPath string
	cmd := &cobra.Command{
		Use:   "protocol",
		Short: "Print bench protocols for a plan",
	}
	cmd.PersistentFlags().StringVar(&planPath, "plan", "", "plan YAML file (required)")

	load := func() (*plan.Plan, error) {
		if planPath == "" {
			return nil, errors.New("--plan is required")
		}
		return a.loadPlan(planPath)
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "primary",
		Short: "Blocking, PBT-N and primary master mix volumes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := load()
			if err != nil {
				return err
			}
			proto, err := a.svc.PrimaryProtocol(cmd.Context(), p)
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), proto, func(w io.Writer) { fmt.Fprint(w, proto.Text()) })
		},
	}, &cobra.Command{
		Use:   "secondary",
		Short: "Secondary master mix volumes per channel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := load()
			if err != nil {
				return err
			}
			proto, err := a.svc.SecondaryProtocol(cmd.Context(), p)
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), proto, func(w io.Writer) { fmt.Fprint(w, proto.Text()) })
		},
	})
	return cmd
}

func newRunsCmd(a *app) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Record and list finished slide books",
	}
	cmd.PersistentFlags().StringVar(&user, "user", "", "owner of the runs")

	var planPath string
	save := &cobra.Command{
		Use:   "save",
		Short: "Record the plan's slide book and write its JSON export",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if planPath == "" {
				return errors.New("--plan is required")
			}
			p, err := a.loadPlan(planPath)
			if err != nil {
				return err
			}
			run, err := a.svc.SaveRun(cmd.Context(), user, p)
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), run, func(w io.Writer) {
				fmt.Fprintf(w, "saved run %s (%d slides)", run.ID, len(run.Payload.Slides))
				if run.ExportKey != "" {
					fmt.Fprintf(w, " export %s", run.ExportKey)
				}
				fmt.Fprintln(w)
			})
		},
	}
	save.Flags().StringVar(&planPath, "plan", "", "plan YAML file (required)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List a user's runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runs, err := a.svc.ListRuns(cmd.Context(), user)
			if err != nil {
				return err
			}
			if runs == nil {
				runs = []slidebook.Run{}
			}
			return a.emit(cmd.OutOrStdout(), runs, func(w io.Writer) {
				for _, r := range runs {
					fmt.Fprintf(w, "%s\t%s\t%d slides\n", r.CreatedAt.Format(time.RFC3339), r.ID, len(r.Payload.Slides))
				}
			})
		},
	}

	locations := &cobra.Command{
		Use:   "locations",
		Short: "List a user's storage locations, most recently used first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			locs, err := a.svc.Locations(cmd.Context(), user)
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), locs, func(w io.Writer) {
				for _, l := range locs {
					fmt.Fprintln(w, l)
				}
			})
		},
	}
	cmd.AddCommand(save, list, locations)
	return cmd
}
