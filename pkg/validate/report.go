package validate

import (
	"fmt"
	"strings"

	"github.com/risingwavelabs/connector-harness/pkg/schema"
)

// RenderTable formats rows as an aligned text table headed by the schema
// column names. Used in validation failure output so both sides of a
// mismatch are readable at a glance.
func RenderTable(s *schema.TableSchema, rows []Row) string {
	numCols := len(s.Columns)

	// Calculate column widths.
	widths := make([]int, numCols)
	for i, c := range s.Columns {
		widths[i] = len(c.Name)
	}
	cells := make([][]string, len(rows))
	for ri, row := range rows {
		cells[ri] = make([]string, numCols)
		for ci := 0; ci < numCols; ci++ {
			var v string
			if ci < len(row) {
				v = formatCell(row[ci])
			} else {
				v = "?"
			}
			cells[ri][ci] = v
			if len(v) > widths[ci] {
				widths[ci] = len(v)
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("| ")
	for i, c := range s.Columns {
		if i > 0 {
			sb.WriteString(" | ")
		}
		sb.WriteString(padRight(c.Name, widths[i]))
	}
	sb.WriteString(" |\n")

	sb.WriteString("|-")
	for i, w := range widths {
		if i > 0 {
			sb.WriteString("-|-")
		}
		sb.WriteString(strings.Repeat("-", w))
	}
	sb.WriteString("-|\n")

	for _, row := range cells {
		sb.WriteString("| ")
		for i, v := range row {
			if i > 0 {
				sb.WriteString(" | ")
			}
			sb.WriteString(padRight(v, widths[i]))
		}
		sb.WriteString(" |\n")
	}
	return sb.String()
}

func formatCell(v interface{}) string {
	if v == nil {
		return "NULL"
	}
	switch x := v.(type) {
	case float64:
		return fmt.Sprintf("%.4f", x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", x)
	}
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
