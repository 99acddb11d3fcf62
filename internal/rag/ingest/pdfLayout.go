package ingest

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dslipak/pdf"
)

// textLine is one visual line of a page, split into cells on wide horizontal gaps.
type textLine struct {
	y     float64
	cells []string
}

func (l textLine) isRow() bool {
	return len(l.cells) >= 2
}

// layoutLines groups positioned glyph runs by baseline, top of the page first.
func layoutLines(texts []pdf.Text) []textLine {
	runs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if t.S != "" {
			runs = append(runs, t)
		}
	}
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].Y != runs[j].Y {
			return runs[i].Y > runs[j].Y
		}
		return runs[i].X < runs[j].X
	})

	var lines []textLine
	var current []pdf.Text
	flush := func() {
		if len(current) == 0 {
			return
		}
		sort.SliceStable(current, func(i, j int) bool { return current[i].X < current[j].X })
		if cells := splitCells(current); len(cells) > 0 {
			lines = append(lines, textLine{y: current[0].Y, cells: cells})
		}
		current = nil
	}
	for _, r := range runs {
		if len(current) > 0 && math.Abs(r.Y-current[0].Y) > lineTolerance(r, current[0]) {
			flush()
		}
		current = append(current, r)
	}
	flush()
	return lines
}

func lineTolerance(a, b pdf.Text) float64 {
	return math.Max(math.Max(a.FontSize, b.FontSize)*0.5, 1)
}

func splitCells(runs []pdf.Text) []string {
	var cells []string
	var cell strings.Builder
	push := func() {
		if s := strings.Join(strings.Fields(cell.String()), " "); s != "" {
			cells = append(cells, s)
		}
		cell.Reset()
	}

	for i, r := range runs {
		if i > 0 {
			prev := runs[i-1]
			gap := r.X - (prev.X + prev.W)
			size := math.Max(r.FontSize, 1)
			switch {
			case gap > size*2:
				push()
			case gap > size*0.15:
				cell.WriteByte(' ')
			}
		}
		cell.WriteString(r.S)
	}
	push()
	return cells
}

// renderLines emits prose lines as text and runs of two or more multi-cell
// lines as marked tables, keeping the order the lines have on the page.
func renderLines(lines []textLine, pageNum int) []pageBlock {
	var blocks []pageBlock
	var prose []string
	tables := 0
	flushProse := func() {
		if len(prose) > 0 {
			blocks = append(blocks, pageBlock{text: strings.Join(prose, "\n")})
			prose = nil
		}
	}

	for i := 0; i < len(lines); {
		j := i
		for j < len(lines) && lines[j].isRow() {
			j++
		}
		if j-i >= 2 {
			flushProse()
			tables++
			var table strings.Builder
			fmt.Fprintf(&table, "[TABLE %d FROM PAGE %d]\n", tables, pageNum)
			for _, row := range lines[i:j] {
				table.WriteString(strings.Join(row.cells, " | "))
				table.WriteByte('\n')
			}
			table.WriteString("[END TABLE]")
			blocks = append(blocks, pageBlock{text: table.String(), table: true})
			i = j
			continue
		}
		if j == i {
			j = i + 1
		}
		for _, l := range lines[i:j] {
			prose = append(prose, strings.Join(l.cells, " "))
		}
		i = j
	}
	flushProse()
	return blocks
}
