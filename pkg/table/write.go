package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Params control CSV and text output.
type Params struct {
	Rows        int  // max. number of rows to write; 0 = unlimited
	NoHeader    bool // omit the header line
	MaxColWidth int  // WriteText only; 0 = unlimited, otherwise >= 4
}

// WriteCSV writes the table to w in CSV format. Null cells are empty.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if !p.NoHeader && t.NumCols() > 0 {
		if err := cw.Write(t.Names()); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for i := 0; i < t.NumRows(); i++ {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := cw.Write(t.CSV(i)); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}
	return nil
}

// WriteText writes the table as right-aligned columns separated by " | ".
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return fmt.Errorf("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	if t.NumCols() == 0 {
		return nil
	}

	n := t.NumRows()
	if p.Rows > 0 && p.Rows < n {
		n = p.Rows
	}

	widths := make([]int, t.NumCols())
	update := func(row []string) {
		for i, s := range row {
			l := len([]rune(s))
			if p.MaxColWidth > 0 && l > p.MaxColWidth {
				l = p.MaxColWidth
			}
			if l > widths[i] {
				widths[i] = l
			}
		}
	}
	if !p.NoHeader {
		update(t.Names())
	}
	for i := 0; i < n; i++ {
		update(t.CSV(i))
	}

	write := func(row []string) error {
		out := make([]string, len(row))
		for i, s := range row {
			if r := []rune(s); len(r) > widths[i] {
				s = string(r[:widths[i]-2]) + ".."
			}
			out[i] = fmt.Sprintf("%[2]*[1]s", s, widths[i])
		}
		_, err := fmt.Fprintf(w, "%s\n", strings.Join(out, " | "))
		return err
	}

	if !p.NoHeader {
		if err := write(t.Names()); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		dashes := make([]string, len(widths))
		for i, wd := range widths {
			dashes[i] = strings.Repeat("-", wd)
		}
		if err := write(dashes); err != nil {
			return fmt.Errorf("write header separator: %w", err)
		}
	}
	for i := 0; i < n; i++ {
		if err := write(t.CSV(i)); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	return nil
}
