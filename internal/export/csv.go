package export

import (
	"encoding/csv"
	"io"
)

// WriteCSV serialises report as CSV: a header row of labels followed by one
// record per row.
func WriteCSV(w io.Writer, report Report) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := make([]string, len(report.Columns))
	for i, col := range report.Columns {
		header[i] = col.Label
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range report.Rows {
		record := make([]string, len(report.Columns))
		copy(record, row)
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
