package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/fork-purger/pkg/purge"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func printHeading(w io.Writer, mode purge.Mode) {
	heading := "These forks will be deleted:"
	if mode == purge.ModeDelete {
		heading = "Deleting forked repos:"
	}
	fmt.Fprintln(w, heading)
	fmt.Fprintln(w, strings.Repeat("=", len(heading)+1))
	fmt.Fprintln(w)
}

// renderSummary renders the counters of one run as a two-column table.
func renderSummary(result purge.Result, mode purge.Mode, runErr error) string {
	status := "ok"
	if runErr != nil {
		status = "failed"
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("Summary")
	tw.AppendHeader(table.Row{"Field", "Value"})
	tw.AppendRows([]table.Row{
		{"Run ID", result.RunID},
		{"Mode", string(mode)},
		{"Status", status},
		{"Pages", strconv.Itoa(result.Pages)},
		{"Enqueued", strconv.Itoa(result.Enqueued)},
		{"Processed", strconv.Itoa(result.Processed)},
		{"Failed", strconv.Itoa(result.Failed)},
		{"Discarded", strconv.Itoa(result.Discarded)},
		{"Duration", result.Duration.Round(time.Millisecond).String()},
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
