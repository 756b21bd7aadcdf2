package export

import (
	"io"
	"strconv"
	"strings"
)

// Format is a document format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatCSV  Format = "csv"
)

// Formats lists the formats offered in the export menu.
var Formats = []Format{FormatXLSX, FormatPDF, FormatDOCX, FormatCSV}

// ParseFormat validates a user supplied format name.
func ParseFormat(raw string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(raw)))
	switch f {
	case FormatXLSX, FormatPDF, FormatDOCX, FormatCSV:
		return f, nil
	default:
		return "", ErrUnknownFormat
	}
}

// Export renders report in format onto w.
func Export(w io.Writer, format Format, report Report) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, report)
	case FormatPDF:
		return WritePDF(w, report)
	case FormatDOCX:
		return WriteDOCX(w, report)
	case FormatCSV:
		return WriteCSV(w, report)
	default:
		return ErrUnknownFormat
	}
}

// Filename returns "<name>.<ext>" with characters unsafe in a
// Content-Disposition header replaced.
func Filename(name string, format Format) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "export"
	}
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', ':', '*', '?', '<', '>', '|', '\n', '\r':
			return '-'
		case ' ':
			return '_'
		}
		return r
	}, name)
	return clean + "." + string(format)
}

// ContentType returns the MIME type of format.
func ContentType(format Format) string {
	switch format {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// percentages spreads 100 across columns proportionally to their widths,
// assigning rounding remainders to the largest fractional parts so the sum
// is exactly 100.
func percentages(cols []Column) []int {
	out := make([]int, len(cols))
	if len(cols) == 0 {
		return out
	}
	var total float64
	for _, c := range cols {
		total += c.Format.Width()
	}
	type rest struct {
		idx  int
		frac float64
	}
	rests := make([]rest, len(cols))
	assigned := 0
	for i, c := range cols {
		exact := c.Format.Width() / total * 100
		out[i] = int(exact)
		assigned += out[i]
		rests[i] = rest{idx: i, frac: exact - float64(out[i])}
	}
	for remaining := 100 - assigned; remaining > 0; remaining-- {
		best := -1
		for i, r := range rests {
			if r.frac < 0 {
				continue
			}
			if best < 0 || r.frac > rests[best].frac {
				best = i
			}
		}
		if best < 0 {
			break
		}
		out[rests[best].idx]++
		rests[best].frac = -1
	}
	return out
}

func metaLines(meta Meta) []string {
	lines := []string{
		"Église : " + meta.ChurchName,
		"Date : " + meta.GeneratedAt.Format(DisplayDate+" 15:04"),
		"Total : " + strconv.Itoa(meta.TotalCount),
	}
	if meta.Reference != "" {
		lines = append(lines, "Référence : "+meta.Reference)
	}
	return lines
}
