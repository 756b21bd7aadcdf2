package stats

import (
	"strconv"

	"github.com/ecclesia/ecclesia/internal/export"
)

// Rows flattens the snapshot into label/value lines for export.
func Rows(s Snapshot, n *export.Normalizer) []Row {
	if n == nil {
		n = export.NewNormalizer(export.DefaultCurrency)
	}
	count := strconv.Itoa
	rows := []Row{
		{Label: "Membres", Value: count(s.Members)},
		{Label: "Comités", Value: count(s.Committees)},
		{Label: "Ministères", Value: count(s.Ministries)},
		{Label: "Pasteurs", Value: count(s.Pastors)},
		{Label: "Sanctions actives", Value: count(s.ActiveSanctions)},
	}
	for _, b := range s.BySex {
		rows = append(rows, Row{Label: "Membres - " + b.Label, Value: count(b.Count)})
	}
	for _, b := range s.ByAge {
		rows = append(rows, Row{Label: "Âge - " + b.Label, Value: count(b.Count)})
	}
	for _, b := range s.Transfers {
		rows = append(rows, Row{Label: "Transferts - " + b.Label, Value: count(b.Count)})
	}
	for _, t := range s.Finance {
		rows = append(rows,
			Row{Label: t.Label + " - enregistrements", Value: count(t.Count)},
			Row{Label: t.Label + " - total", Value: n.Amount(FormatAmount(t.Amount))},
		)
	}
	return rows
}

// FormatAmount renders an amount with two decimals.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
