package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/tinyrange/execmem/internal/runner"
)

const minValueWidth = 8

var tableHeader = []string{"NAME", "TYPE", "VALUE", "EXPECT", "STATUS", "PER CALL"}

// writeTable prints one row per result. When width is positive the VALUE
// column is truncated so rows fit on the terminal.
func writeTable(w io.Writer, results []runner.Result, width int) {
	rows := [][]string{tableHeader}
	for _, r := range results {
		expect, status := "-", "ok"
		if r.HasExpect {
			expect = r.Expect
			if !r.Passed() {
				status = "FAIL"
			}
		}
		rows = append(rows, []string{
			r.Name,
			string(r.Returns),
			r.Value,
			expect,
			status,
			r.PerCall().String(),
		})
	}

	widths := make([]int, len(tableHeader))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], ansi.StringWidth(cell))
		}
	}

	if width > 0 {
		total := 2 * (len(widths) - 1)
		for _, cw := range widths {
			total += cw
		}
		if over := total - width; over > 0 {
			widths[2] = max(minValueWidth, widths[2]-over)
		}
	}

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			if ansi.StringWidth(cell) > widths[i] {
				cell = ansi.Truncate(cell, widths[i], "…")
			}
			if i < len(row)-1 {
				cell += strings.Repeat(" ", widths[i]-ansi.StringWidth(cell))
			}
			cells[i] = cell
		}
		fmt.Fprintln(w, strings.Join(cells, "  "))
	}
}
