package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/pulse/jobs"
	"github.com/teranos/tempo/pulse/params"
	"github.com/teranos/tempo/sym"
)

// DateLayout is the format of --date
const DateLayout = "2006-01-02"

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: sym.Pulse + " Inspect and queue jobs",
		Long: sym.Pulse + ` jobs - inspect and queue jobs

Examples:
  tempo jobs ls                          # Everything planned today
  tempo jobs ls --date 2026-10-15 --status fail
  tempo jobs show 42                     # One row with its output
  tempo jobs status 42
  tempo jobs redo 42                     # Run a failed job again
  tempo jobs submit export customer=acme limit=5 --at 2026-10-16T18:00:00Z`,
	}
	cmd.AddCommand(newJobsLsCmd(), newJobsShowCmd(), newJobsStatusCmd(), newJobsRedoCmd(), newJobsSubmitCmd())
	return cmd
}

func newJobsLsCmd() *cobra.Command {
	var date, status string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List the jobs planned on one day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			loc := a.scheduler.Location()
			day := time.Now().In(loc)
			if date != "" {
				day, err = time.ParseInLocation(DateLayout, date, loc)
				if err != nil {
					return errors.NewInvalidRequestError("--date %q: expected YYYY-MM-DD", date)
				}
			}
			var st jobs.Status
			if status != "" {
				if st, err = jobs.ParseStatus(status); err != nil {
					return err
				}
			}

			rows, err := a.store.StateForDay(cmd.Context(), day, st)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			if len(rows) == 0 {
				pterm.Info.Printfln("No jobs planned on %s", day.Format(DateLayout))
				return nil
			}
			return renderJobs(rows, loc)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day to list, YYYY-MM-DD in the scheduler timezone (default today)")
	cmd.Flags().StringVar(&status, "status", "", "Only this status: todo, working, finish, fail")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newJobsShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job with its output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			job, err := a.store.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), job)
			}
			printJob(cmd.OutOrStdout(), job, a.scheduler.Location())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newJobsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Print the status of one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			status, found, err := a.store.StatusOf(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !found {
				return errors.NewNotFoundError("job %d", id)
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func newJobsRedoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redo <id>",
		Short: "Reset a finished, failed or stuck job to todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.Redo(cmd.Context(), id); err != nil {
				return err
			}
			pterm.Success.Printfln("job %d reset to todo, it runs on the next pass", id)
			return nil
		},
	}
}

func newJobsSubmitCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "submit <type> [key=value ...]",
		Short: "Queue an ad-hoc job",
		Long: `Queue an ad-hoc job of a registered activity type.

Values are read as JSON when they parse (5, 2.5, true, ["a","b"],
{"k":1}) and as plain strings otherwise.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			var id int64
			if at == "" {
				id, err = a.scheduler.ScheduleNow(cmd.Context(), args[0], p)
			} else {
				plan, perr := time.Parse(time.RFC3339, at)
				if perr != nil {
					return errors.NewInvalidRequestError("--at %q: expected RFC 3339", at)
				}
				id, err = a.scheduler.ScheduleAt(cmd.Context(), args[0], plan, p)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Plan time, RFC 3339 (default now)")
	return cmd
}

func parseJobID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewInvalidRequestError("invalid job id %q", s)
	}
	return id, nil
}

// parseAssignments turns key=value arguments into job parameters.
func parseAssignments(args []string) (params.Params, error) {
	p := make(params.Params, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, errors.NewInvalidRequestError("parameter %q: expected key=value", arg)
		}
		v, err := params.FromAny(jsonOrString(raw))
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "parameter %s", key), errors.ErrInvalidRequest)
		}
		p[key] = v
	}
	return p, nil
}

func jsonOrString(raw string) interface{} {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var x interface{}
	if err := dec.Decode(&x); err != nil || dec.More() || x == nil {
		return raw
	}
	return x
}

func statusGlyph(s jobs.Status) string {
	switch s {
	case jobs.StatusTodo:
		return sym.Todo
	case jobs.StatusWorking:
		return sym.Working
	case jobs.StatusDone:
		return sym.Done
	case jobs.StatusFail:
		return sym.Fail
	}
	return "?"
}

func renderJobs(rows []jobs.Job, loc *time.Location) error {
	data := pterm.TableData{{"ID", "TYPE", "STATUS", "PLAN", "DURATION", "PARAMS"}}
	for _, j := range rows {
		data = append(data, []string{
			strconv.FormatInt(j.ID, 10),
			j.Type,
			statusGlyph(j.Status) + " " + string(j.Status),
			j.Plan.In(loc).Format("2006-01-02 15:04"),
			formatDuration(j.Duration),
			formatParams(j),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func printJob(w io.Writer, j *jobs.Job, loc *time.Location) {
	fmt.Fprintf(w, "Job %d  %s %s\n", j.ID, statusGlyph(j.Status), j.Status)
	fmt.Fprintf(w, "  Type:      %s\n", j.Type)
	fmt.Fprintf(w, "  Plan:      %s\n", j.Plan.In(loc).Format(time.RFC3339))
	if j.Start != nil {
		fmt.Fprintf(w, "  Started:   %s\n", j.Start.In(loc).Format(time.RFC3339))
	}
	if j.Finish != nil {
		fmt.Fprintf(w, "  Finished:  %s\n", j.Finish.In(loc).Format(time.RFC3339))
	}
	if j.Duration != nil {
		fmt.Fprintf(w, "  Duration:  %s\n", formatDuration(j.Duration))
	}
	fmt.Fprintf(w, "  Params:    %s\n", formatParams(*j))
	if j.Result != "" {
		fmt.Fprintf(w, "\n%s\n", strings.TrimRight(j.Result, "\n"))
	}
}

func formatDuration(d *int64) string {
	if d == nil {
		return "-"
	}
	return (time.Duration(*d) * time.Second).String()
}

func formatParams(j jobs.Job) string {
	if j.Recurring() {
		return "(recurring)"
	}
	p, err := params.Decode(j.Params)
	if err != nil {
		return j.Params
	}
	return p.String()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
