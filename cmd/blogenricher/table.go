package main

import (
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"BlogEnricher/internal/domain"
)

var tableHeader = []string{"ID", "STATUS", "CITATIONS", "CREATED", "TITLE"}

// renderTable writes articles as an aligned text table. Column widths use
// display width so CJK titles and emoji line up; titles wider than
// titleWidth are truncated with an ellipsis.
func renderTable(w io.Writer, articles []domain.Article, titleWidth int) error {
	if titleWidth < 4 {
		titleWidth = 4
	}

	rows := make([][]string, 0, len(articles)+1)
	rows = append(rows, tableHeader)
	for _, a := range articles {
		created := ""
		if !a.CreatedAt.IsZero() {
			created = a.CreatedAt.UTC().Format("2006-01-02")
		}
		rows = append(rows, []string{
			a.ID,
			string(a.Status()),
			strconv.Itoa(citationCount(a.Citations)),
			created,
			runewidth.Truncate(a.Title, titleWidth, "…"),
		})
	}

	widths := make([]int, len(tableHeader))
	for _, row := range rows {
		for i, cell := range row {
			if cw := runewidth.StringWidth(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	var sb strings.Builder
	for _, row := range rows {
		for i, cell := range row {
			if i == len(row)-1 {
				sb.WriteString(cell)
				break
			}
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
			sb.WriteString("  ")
		}
		sb.WriteString("\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// citationCount ignores the no-references sentinel.
func citationCount(citations []string) int {
	if len(citations) == 1 && citations[0] == domain.NoReferencesCitation {
		return 0
	}
	return len(citations)
}
