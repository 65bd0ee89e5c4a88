package library

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// PrintPreview writes the first limit rows of every table to w, fitting each
// row into roughly width columns.
func PrintPreview(w io.Writer, db *Database, limit, width int) error {
	fmt.Fprintf(w, "\nVerifying database content (showing first %d rows per table):\n", limit)
	for _, table := range []string{TableBook, TableUser, TableBorrow, TableFine, TableBookStatus} {
		cols, rows, err := db.Preview(table, limit)
		if err != nil {
			return fmt.Errorf("preview %s: %w", table, err)
		}
		fmt.Fprintf(w, "%s table:\n", table)

		cell := max(width/max(len(cols), 1)-2, 6)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, joinCells(cols, cell))
		for _, row := range rows {
			fmt.Fprintln(tw, joinCells(row, cell))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func joinCells(cells []string, maxLen int) string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = truncateString(strings.ReplaceAll(c, "\n", " "), maxLen)
	}
	return strings.Join(out, "\t")
}

// truncateString cuts s to maxLen runes, marking the cut with "...".
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
