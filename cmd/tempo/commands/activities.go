package commands

import (
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/tempo/pulse"
	"github.com/teranos/tempo/sym"
)

func newActivitiesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "activities",
		Short: sym.Pulse + " List registered activities and their next run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			plans := a.scheduler.Plans()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), plansView(plans))
			}

			loc := a.scheduler.Location()
			data := pterm.TableData{{"TYPE", "SCHEDULE", "NEXT", "FIELDS"}}
			for _, p := range plans {
				schedule, next := "ad-hoc", "-"
				if p.Recurrence != "" {
					schedule = p.Recurrence
				}
				switch {
				case p.Err != nil:
					next = "error: " + p.Err.Error()
				case !p.Next.IsZero():
					next = p.Next.In(loc).Format("2006-01-02 15:04 MST")
				}
				data = append(data, []string{p.Type, schedule, next, strings.Join(p.Fields, ", ")})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

type planView struct {
	Type       string     `json:"type"`
	Recurrence string     `json:"recurrence,omitempty"`
	Fields     []string   `json:"fields"`
	Next       *time.Time `json:"next,omitempty"`
	Error      string     `json:"error,omitempty"`
}

func plansView(plans []pulse.Plan) []planView {
	out := make([]planView, 0, len(plans))
	for _, p := range plans {
		v := planView{Type: p.Type, Recurrence: p.Recurrence, Fields: p.Fields}
		if v.Fields == nil {
			v.Fields = []string{}
		}
		if p.Err != nil {
			v.Error = p.Err.Error()
		} else if !p.Next.IsZero() {
			next := p.Next
			v.Next = &next
		}
		out = append(out, v)
	}
	return out
}
