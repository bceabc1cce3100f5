// Package format renders tables for the terminal and for Markdown documents.
package format

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode controls the table flavour.
type Mode int

const (
	ASCII    Mode = iota // box-drawn terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

// ParseMode accepts "text", "ascii" and "markdown".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "text", "ascii":
		return ASCII, nil
	case "markdown", "md":
		return Markdown, nil
	default:
		return ASCII, fmt.Errorf("unknown table mode %q", s)
	}
}

// Align is the horizontal alignment of a column.
type Align int

const (
	AlignDefault Align = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// Column configures one 1-based column.
type Column struct {
	Number   int
	Align    Align
	MaxWidth int // 0 means unlimited
}

// Table accumulates rows and renders them in the Mode it was created with.
type Table struct {
	w    table.Writer
	mode Mode
}

// NewTable returns an empty table.
func NewTable(m Mode) *Table {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return &Table{w: w, mode: m}
}

// Title sets a caption rendered above ASCII tables. Markdown tables ignore it.
func (t *Table) Title(s string) *Table {
	if t.mode == ASCII {
		t.w.SetTitle(s)
	}
	return t
}

// Header sets the column headers.
func (t *Table) Header(cols ...string) *Table {
	t.w.AppendHeader(toRow(cols...))
	return t
}

// Row appends a data row.
func (t *Table) Row(vals ...any) *Table {
	t.w.AppendRow(table.Row(vals))
	return t
}

// Footer appends a footer row such as totals.
func (t *Table) Footer(vals ...any) *Table {
	t.w.AppendFooter(table.Row(vals))
	return t
}

// Columns applies per-column alignment and width limits.
func (t *Table) Columns(cols ...Column) *Table {
	cfgs := make([]table.ColumnConfig, 0, len(cols))
	for _, c := range cols {
		cfgs = append(cfgs, table.ColumnConfig{
			Number:   c.Number,
			Align:    c.Align.text(),
			WidthMax: c.MaxWidth,
		})
	}
	t.w.SetColumnConfigs(cfgs)
	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int { return t.w.Length() }

func (t *Table) String() string {
	if t.mode == Markdown {
		return t.w.RenderMarkdown()
	}
	return t.w.Render()
}

func toRow(cols ...string) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	return row
}

func (a Align) text() text.Align {
	switch a {
	case AlignLeft:
		return text.AlignLeft
	case AlignCenter:
		return text.AlignCenter
	case AlignRight:
		return text.AlignRight
	default:
		return text.AlignDefault
	}
}
