package deskctl

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dalemusser/paydesk/internal/app/system/console"
	"github.com/dalemusser/paydesk/internal/app/system/grid"
	"github.com/dalemusser/paydesk/internal/app/system/paging"
	"github.com/spf13/cobra"
)

func newScreensCmd(app *appEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "screens",
		Short: "List the configured screens and their actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SCREEN\tTITLE\tKEY\tACTIONS")
			for _, s := range app.cat.Screens() {
				verbs := make([]string, 0, len(s.Actions))
				for _, a := range s.Actions {
					v := a.Verb
					if a.Batchable {
						v += "*"
					}
					verbs = append(verbs, v)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.Title, strings.Join(s.KeyFields, "+"), strings.Join(verbs, " "))
			}
			fmt.Fprintln(tw, "\n* batchable")
			return tw.Flush()
		},
	}
}

func addViewFlags(cmd *cobra.Command, f *viewFlags, withPaging bool) {
	fl := cmd.Flags()
	fl.StringArrayVarP(&f.filters, "filter", "f", nil, "column=text filter (repeatable)")
	fl.StringArrayVarP(&f.params, "param", "p", nil, "extra list parameter name=value sent to the backend (repeatable)")
	fl.StringVar(&f.sort, "sort", "", "sort column")
	fl.BoolVar(&f.desc, "desc", false, "sort descending")
	if withPaging {
		fl.IntVar(&f.page, "page", 1, "page number")
		fl.IntVar(&f.perPage, "per-page", 0, fmt.Sprintf("rows per page, one of %v (default: the screen's)", paging.PerPageOptions))
	}
}

func newListCmd(app *appEnv) *cobra.Command {
	var vf viewFlags
	cmd := &cobra.Command{
		Use:   "list SCREEN",
		Short: "Fetch a screen and print one page of it",
		Example: `  deskctl list deposits --filter status=0 --sort amount --desc
  deskctl list withdrawals -p from=2026-03-01 -p to=2026-03-31 --page 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parsePairs(vf.params)
			if err != nil {
				return fmt.Errorf("--param: %w", err)
			}
			c, err := app.openConsole(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			if err := vf.apply(c); err != nil {
				return err
			}
			return printView(cmd.OutOrStdout(), c.View())
		},
	}
	addViewFlags(cmd, &vf, true)
	return cmd
}

// printView writes the visible page as an aligned table with a status line.
func printView(w io.Writer, snap console.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	cols := snap.Screen.Columns
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = strings.ToUpper(c.Name)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range snap.View.Rows {
		fmt.Fprintln(tw, strings.Join(grid.Cells(cols, r), "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, statusLine(snap))
	return err
}

// statusLine summarizes paging, filters and sort, e.g.
// "rows 1-25 of 40 (filtered from 120) | page 1/2 | sort amount desc".
func statusLine(snap console.Snapshot) string {
	v := snap.View
	var b strings.Builder
	if v.Filtered == 0 {
		b.WriteString("no rows")
	} else {
		fmt.Fprintf(&b, "rows %d-%d of %d", v.Range.Start, v.Range.End, v.Filtered)
	}
	if v.Filtered != v.Total {
		fmt.Fprintf(&b, " (filtered from %d)", v.Total)
	}
	fmt.Fprintf(&b, " | page %d/%d", v.Page, max(v.TotalPages, 1))
	if snap.Sort.Active() {
		fmt.Fprintf(&b, " | sort %s %s", snap.Sort.Column, snap.Sort.Dir)
	}
	if snap.Notice != nil && snap.Notice.Message != "" {
		fmt.Fprintf(&b, " | %s", snap.Notice.Message)
	}
	return b.String()
}

func newExportCmd(app *appEnv) *cobra.Command {
	var (
		vf     viewFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "export SCREEN",
		Short: "Write every filtered and sorted row of a screen as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parsePairs(vf.params)
			if err != nil {
				return fmt.Errorf("--param: %w", err)
			}
			c, err := app.openConsole(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			if err := vf.apply(c); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" {
				if output == "auto" {
					output = fmt.Sprintf("%s-%s.csv", args[0], time.Now().Format("20060102-150405"))
				}
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := c.Export(w); err != nil {
				return fmt.Errorf("export: %w", err)
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", c.View().View.Filtered, output)
			}
			return nil
		},
	}
	addViewFlags(cmd, &vf, false)
	cmd.Flags().StringVarP(&output, "output", "o", "", `output file ("auto" names it after the screen and time; default stdout)`)
	return cmd
}
