package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ecclesia/ecclesia/internal/listing"
)

// DefaultCurrency suffixes amounts when no currency is configured.
const DefaultCurrency = "HTG"

// DisplayDate is the day/month/year layout used in every document.
const DisplayDate = "02/01/2006"

// Normalizer formats entities into rows according to the schema table.
type Normalizer struct {
	Currency string
}

// NewNormalizer builds a normalizer suffixing amounts with currency.
func NewNormalizer(currency string) *Normalizer {
	currency = strings.TrimSpace(currency)
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Normalizer{Currency: currency}
}

// Normalize extracts the fields of kind from entity. The entity is read
// through its JSON form so field paths follow the API's key names.
func (n *Normalizer) Normalize(kind Kind, entity any) (Row, error) {
	fields, ok := schemas[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	doc, err := toDocument(entity)
	if err != nil {
		return nil, fmt.Errorf("export: normalise %s: %w", kind, err)
	}
	row := make(Row, len(fields))
	for i, f := range fields {
		parts := make([]string, 0, len(f.Paths))
		for _, path := range f.Paths {
			if v := n.format(lookup(doc, path), f.Format); v != "" {
				parts = append(parts, v)
			}
		}
		row[i] = strings.Join(parts, " ")
	}
	return row, nil
}

// Build normalises entities into a report. Columns come from the schema so
// an empty collection still yields a header.
func Build[T any](n *Normalizer, kind Kind, name string, entities []T, meta Meta) (Report, error) {
	cols, err := Columns(kind)
	if err != nil {
		return Report{}, err
	}
	rows := make([]Row, 0, len(entities))
	for _, entity := range entities {
		row, err := n.Normalize(kind, entity)
		if err != nil {
			return Report{}, err
		}
		rows = append(rows, row)
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}
	meta.TotalCount = len(rows)
	return Report{Name: name, Meta: meta, Columns: cols, Rows: rows}, nil
}

func toDocument(entity any) (map[string]any, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func lookup(doc map[string]any, path string) any {
	var cur any = doc
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[key]
	}
	return cur
}

// Amount renders a raw amount with the configured currency.
func (n *Normalizer) Amount(raw string) string {
	return n.format(raw, Amount)
}

func (n *Normalizer) format(value any, format FieldFormat) string {
	text := scalar(value)
	if text == "" {
		return ""
	}
	switch format {
	case Date:
		if t, ok := listing.ParseDate(text); ok {
			return t.Format(DisplayDate)
		}
		return text
	case Amount:
		return text + " " + n.Currency
	default:
		return text
	}
}

// scalar renders JSON scalars as text. Null, objects and arrays are empty.
func scalar(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "Oui"
		}
		return "Non"
	default:
		return ""
	}
}
