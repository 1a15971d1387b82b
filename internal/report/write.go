package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
)

// WriteText renders r as an aligned table followed by the holiday list and the
// warnings. Holiday weeks are marked with '*' in the header.
func WriteText(w io.Writer, r Report) error {
	ls := labelsFor(r.Lang)

	if _, err := fmt.Fprintf(w, "%s\n\n", r.Title); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	head := append([]string(nil), r.Columns...)
	for _, wk := range r.Weeks {
		label := wk.Label
		if wk.HasHoliday {
			label += "*"
		}
		head = append(head, label)
	}
	fmt.Fprintln(tw, strings.Join(head, "\t")+"\t")

	for _, row := range r.Rows {
		if !row.Scheduled {
			continue
		}
		cols := []string{
			row.ID,
			row.Phase,
			row.Name,
			strconv.FormatFloat(row.DurationWeeks, 'f', -1, 64),
			row.Start,
			row.End,
		}
		for _, c := range row.Cells {
			cols = append(cols, c.String())
		}
		fmt.Fprintln(tw, strings.Join(cols, "\t")+"\t")
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%s:\n", ls.holidays)
	if len(r.Holidays) == 0 {
		fmt.Fprintf(w, "  %s\n", ls.noHolidays)
	}
	for _, h := range r.Holidays {
		fmt.Fprintf(w, "  %s  %s\n", h.Date.Format(dateLayout), h.Name)
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(w, "\n%s:\n", ls.warnings)
		for _, msg := range r.Warnings {
			if _, err := fmt.Fprintf(w, "  - %s\n", msg); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}
