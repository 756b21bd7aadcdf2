package export

import (
	"fmt"
	"io"

	docx "github.com/fumiama/go-docx"
)

// A4 landscape, in twips.
const (
	docxPageWidth  = 16838
	docxPageHeight = 11906
)

// WriteDOCX renders report as a Word document: a heading, the metadata
// paragraphs and one table whose column widths are percentages summing to 100.
func WriteDOCX(w io.Writer, report Report) error {
	doc := docx.New().WithDefaultTheme()

	doc.AddParagraph().AddText(report.Meta.Title).Bold().Size("32")
	for _, line := range metaLines(report.Meta) {
		doc.AddParagraph().AddText(line)
	}

	if len(report.Columns) > 0 {
		pcts := percentages(report.Columns)
		table := doc.AddTable(len(report.Rows)+1, len(report.Columns), 0, &docx.APITableBorderColors{
			Top: "999999", Left: "999999", Bottom: "999999", Right: "999999", InsideH: "999999", InsideV: "999999",
		})
		// 5000 is 100% in fiftieths of a percent.
		table.TableProperties.Width = &docx.WTableWidth{W: 5000, Type: "pct"}
		for _, pct := range pcts {
			table.TableGrid.GridCols = append(table.TableGrid.GridCols, &docx.WGridCol{W: int64(pct) * docxPageWidth / 100})
		}
		for i, col := range report.Columns {
			fillCell(table.TableRows[0].TableCells[i], col.Label, pcts[i], true)
		}
		for r, row := range report.Rows {
			cells := table.TableRows[r+1].TableCells
			for i := range report.Columns {
				value := ""
				if i < len(row) {
					value = row[i]
				}
				fillCell(cells[i], value, pcts[i], false)
			}
		}
	}

	doc.Document.Body.Items = append(doc.Document.Body.Items, &docx.SectPr{
		PgSz: &docx.PgSz{W: docxPageWidth, H: docxPageHeight},
	})
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("docx: %w", err)
	}
	return nil
}

func fillCell(cell *docx.WTableCell, text string, pct int, bold bool) {
	cell.TableCellProperties.TableCellWidth = &docx.WTableCellWidth{W: int64(pct) * 50, Type: "pct"}
	run := cell.AddParagraph().AddText(text)
	if bold {
		run.Bold()
	}
}
