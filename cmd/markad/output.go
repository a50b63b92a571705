package main

import (
	"encoding/json"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"markad/internal/marks"
	"markad/internal/media/frame"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func formatFrame(pos int, fps float64) string {
	return marks.FormatPosition(frame.ConstantRate{FPS: fps}.TimeOffset(pos), fps)
}

// renderMarks tabulates a mark sequence.
func renderMarks(ms []*marks.Mark, fps float64) string {
	if len(ms) == 0 {
		return "No marks"
	}
	rows := make([][]string, 0, len(ms))
	for _, m := range ms {
		moved := ""
		if m.History != nil {
			moved = m.History.OldType.Class.String() + "@" + strconv.Itoa(m.History.OldPosition)
		}
		rows = append(rows, []string{
			formatFrame(m.Position, fps),
			strconv.Itoa(m.Position),
			m.Type.Kind.String(),
			m.Type.Class.String(),
			moved,
			m.Comment,
		})
	}
	return renderTable(
		[]string{"Time", "Frame", "Kind", "Class", "Moved From", "Comment"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
