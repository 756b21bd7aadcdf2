// Package export turns fetched entities into report rows and renders them
// as xlsx, pdf, docx or csv documents.
package export

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind identifies an exportable entity collection.
type Kind string

// Exportable kinds.
const (
	KindMember     Kind = "member"
	KindCommittee  Kind = "committee"
	KindMinistry   Kind = "ministry"
	KindPastor     Kind = "pastor"
	KindSanction   Kind = "sanction"
	KindTithe      Kind = "tithe"
	KindOffering   Kind = "offering"
	KindDonation   Kind = "donation"
	KindMoisson    Kind = "moisson"
	KindTransfer   Kind = "transfer"
	KindStatistics Kind = "statistics"
)

// FieldFormat drives value formatting and column width.
type FieldFormat int

const (
	Text FieldFormat = iota
	Name
	Date
	Amount
	Count
	Status
)

// Width is the relative column width of a field format, in spreadsheet
// character units.
func (f FieldFormat) Width() float64 {
	switch f {
	case Count:
		return 10
	case Date:
		return 14
	case Amount:
		return 16
	case Status:
		return 14
	case Name:
		return 28
	default:
		return 22
	}
}

var (
	// ErrUnknownKind is returned for a kind without a schema.
	ErrUnknownKind = errors.New("export: unknown entity kind")
	// ErrUnknownFormat is returned for an unsupported document format.
	ErrUnknownFormat = errors.New("export: unknown format")
)

// Column is one report column.
type Column struct {
	Label  string
	Format FieldFormat
}

// Row holds one formatted value per column. Values are never nil-ish
// placeholders: missing data is the empty string.
type Row []string

// Meta describes the document header.
type Meta struct {
	Title       string
	ChurchName  string
	GeneratedAt time.Time
	TotalCount  int
	// Reference correlates a downloaded file with the request log line.
	Reference string
}

// ReferenceHeader carries Meta.Reference on export responses.
const ReferenceHeader = "X-Export-Reference"

// NewReference returns a fresh export reference.
func NewReference() string {
	return uuid.NewString()
}

// Report is the format-independent document every renderer consumes.
type Report struct {
	Name    string
	Meta    Meta
	Columns []Column
	Rows    []Row
}
