package export

import (
	"io"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin    = 10.0
	pdfRowHeight = 7.0
	pdfFontSize  = 9.0
)

// WritePDF renders report as a landscape A4 document with a manually laid
// out table.
func WritePDF(w io.Writer, report Report) error {
	doc, err := layoutPDF(report)
	if err != nil {
		return err
	}
	return doc.Output(w)
}

func layoutPDF(report Report) (*fpdf.Fpdf, error) {
	doc := fpdf.New("L", "mm", "A4", "")
	doc.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	doc.SetAutoPageBreak(false, 0)
	if !report.Meta.GeneratedAt.IsZero() {
		doc.SetCreationDate(report.Meta.GeneratedAt)
	}
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetTitle(report.Meta.Title, true)

	pageW, pageH := doc.GetPageSize()
	usable := pageW - 2*pdfMargin
	bottom := pageH - pdfMargin

	doc.AddPage()
	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(usable, 10, tr(report.Meta.Title), "", 1, "C", false, 0, "")
	doc.Ln(2)
	doc.SetFont("Helvetica", "", 10)
	for _, line := range metaLines(report.Meta) {
		doc.CellFormat(usable, 6, tr(line), "", 1, "L", false, 0, "")
	}
	doc.Ln(4)

	xs, widths := columnGeometry(report.Columns, pdfMargin, usable)
	drawHeader := func(y float64) {
		doc.SetFont("Helvetica", "B", pdfFontSize)
		doc.SetFillColor(232, 238, 247)
		for i, col := range report.Columns {
			doc.SetXY(xs[i], y)
			doc.CellFormat(widths[i], pdfRowHeight, fitText(doc, tr(col.Label), widths[i]), "1", 0, "L", true, 0, "")
		}
		doc.SetFont("Helvetica", "", pdfFontSize)
	}

	y := doc.GetY()
	drawHeader(y)
	y += pdfRowHeight
	for _, row := range report.Rows {
		if y+pdfRowHeight > bottom {
			doc.AddPage()
			y = pdfMargin
			drawHeader(y)
			y += pdfRowHeight
		}
		for i := range report.Columns {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			doc.SetXY(xs[i], y)
			doc.CellFormat(widths[i], pdfRowHeight, fitText(doc, tr(value), widths[i]), "1", 0, "L", false, 0, "")
		}
		y += pdfRowHeight
	}

	if doc.Err() {
		return nil, doc.Error()
	}
	return doc, nil
}

// columnGeometry assigns fixed x positions proportional to column widths.
func columnGeometry(cols []Column, left, usable float64) ([]float64, []float64) {
	xs := make([]float64, len(cols))
	widths := make([]float64, len(cols))
	var total float64
	for _, c := range cols {
		total += c.Format.Width()
	}
	x := left
	for i, c := range cols {
		xs[i] = x
		widths[i] = usable * c.Format.Width() / total
		x += widths[i]
	}
	return xs, widths
}

// fitText truncates text so it fits within width, leaving cell padding.
func fitText(doc *fpdf.Fpdf, text string, width float64) string {
	limit := width - 2*doc.GetCellMargin()
	if doc.GetStringWidth(text) <= limit {
		return text
	}
	const ellipsis = "..."
	for len(text) > 0 && doc.GetStringWidth(text+ellipsis) > limit {
		text = text[:len(text)-1]
	}
	return text + ellipsis
}
