package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/fdcscrape/scraper/internal/usecase"
	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// printReport renders a run report as go-pretty tables or as JSON
func printReport(w io.Writer, report *usecase.Report, output string) error {
	if output == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Run " + report.RunID)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Queries", report.Queries},
		{"Missing", report.Missing},
		{"Matches", report.Matches},
		{"URLs", report.URLs},
		{"Foods", report.Foods},
		{"Records", report.Records},
		{"Failures", len(report.Failures)},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(report.Tables) > 0 {
		names := make([]string, 0, len(report.Tables))
		for name := range report.Tables {
			names = append(names, name)
		}
		sort.Strings(names)

		tt := table.NewWriter()
		tt.SetOutputMirror(w)
		tt.AppendHeader(table.Row{"Table", "Records"})
		for _, name := range names {
			tt.AppendRow(table.Row{name, report.Tables[name]})
		}
		tt.SetStyle(table.StyleRounded)
		tt.Render()
	}

	if len(report.Failures) > 0 {
		ft := table.NewWriter()
		ft.SetOutputMirror(w)
		ft.AppendHeader(table.Row{"Item", "Stage", "Error"})
		for _, f := range report.Failures {
			ft.AppendRow(table.Row{f.Item, f.Stage, f.Err})
		}
		ft.SetStyle(table.StyleRounded)
		ft.Render()
	}
	return nil
}

func validateOutput(output string) error {
	if output != outputTable && output != outputJSON {
		return fmt.Errorf("output must be '%s' or '%s', got: %s", outputTable, outputJSON, output)
	}
	return nil
}
