package export

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type memberDoc struct {
	ID          string  `json:"id"`
	Firstname   string  `json:"firstname"`
	Lastname    string  `json:"lastname"`
	Email       string  `json:"email"`
	MobilePhone string  `json:"mobilePhone"`
	Sex         string  `json:"sex"`
	City        *string `json:"city"`
	Country     string  `json:"country,omitempty"`
	Role        string  `json:"role"`
}

type offeringDoc struct {
	Date        string      `json:"date"`
	Type        string      `json:"type"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	Status      string      `json:"status"`
}

type titheDoc struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
	Member *struct {
		Firstname string `json:"firstname"`
		Lastname  string `json:"lastname"`
	} `json:"member"`
	Status string `json:"status"`
}

var generated = time.Date(2026, 3, 14, 10, 5, 0, 0, time.UTC)

func sampleMembers() []memberDoc {
	return []memberDoc{
		{ID: "1", Firstname: "Jean", Lastname: "Dupont", Email: "jean@x.com", MobilePhone: "+509 3456", Sex: "homme", Role: "membre"},
		{ID: "2", Firstname: "Marie", Lastname: "Joseph", Email: "marie@x.com", Sex: "femme", Country: "Haïti", Role: "secretaire"},
	}
}

func TestNormalizeMissingFieldsAreEmpty(t *testing.T) {
	n := NewNormalizer("")
	row, err := n.Normalize(KindMember, sampleMembers()[0])
	require.NoError(t, err)
	require.Len(t, row, 10)

	assert.Equal(t, "Jean", row[0])
	assert.Equal(t, "", row[5], "null city renders empty")
	assert.Equal(t, "", row[6], "absent country renders empty")
	for _, v := range row {
		assert.NotContains(t, v, "undefined")
		assert.NotContains(t, v, "null")
		assert.NotContains(t, v, "<nil>")
	}
}

func TestNormalizeFormatsDatesAndAmounts(t *testing.T) {
	n := NewNormalizer("HTG")
	row, err := n.Normalize(KindOffering, offeringDoc{Date: "2025-12-24T18:00:00Z", Type: "culte", Amount: json.Number("1500.50"), Status: "service"})
	require.NoError(t, err)
	assert.Equal(t, "24/12/2025", row[0])
	assert.Equal(t, "1500.50 HTG", row[2], "source precision is kept")
	assert.Equal(t, "", row[3])

	tithe := titheDoc{Date: "2025-01-05", Amount: 250, Status: "completed"}
	tithe.Member = &struct {
		Firstname string `json:"firstname"`
		Lastname  string `json:"lastname"`
	}{Firstname: "Paul", Lastname: "Étienne"}
	row, err = n.Normalize(KindTithe, tithe)
	require.NoError(t, err)
	assert.Equal(t, []string{"05/01/2025", "Paul Étienne", "250 HTG", "", "completed"}, []string(row))

	row, err = n.Normalize(KindTithe, titheDoc{Amount: 10})
	require.NoError(t, err)
	assert.Equal(t, "", row[1], "missing nested member renders empty")
}

func TestNormalizeUnknownKind(t *testing.T) {
	_, err := NewNormalizer("HTG").Normalize(Kind("budget"), map[string]any{})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestEverySchemaHasColumns(t *testing.T) {
	for kind := range schemas {
		cols, err := Columns(kind)
		require.NoError(t, err)
		assert.NotEmpty(t, cols, kind)
		assert.Equal(t, 100, sum(percentages(cols)), kind)
	}
}

func TestBuildEmptyCollectionKeepsHeader(t *testing.T) {
	report, err := Build(NewNormalizer("HTG"), KindSanction, "sanctions", []map[string]any{}, Meta{Title: "Sanctions"})
	require.NoError(t, err)
	assert.Len(t, report.Columns, 5)
	assert.Empty(t, report.Rows)
	assert.Equal(t, 0, report.Meta.TotalCount)
	assert.False(t, report.Meta.GeneratedAt.IsZero())
}

func memberReport(t *testing.T, copies int) Report {
	t.Helper()
	var members []memberDoc
	for i := 0; i < copies; i++ {
		members = append(members, sampleMembers()...)
	}
	report, err := Build(NewNormalizer("HTG"), KindMember, "membres", members, Meta{Title: "Liste des membres", ChurchName: "Église de Port-au-Prince", GeneratedAt: generated})
	require.NoError(t, err)
	return report
}

func TestWriteXLSX(t *testing.T) {
	report := memberReport(t, 1)
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatXLSX, report))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	require.Equal(t, []string{"Liste des membres"}, f.GetSheetList())
	rows, err := f.GetRows("Liste des membres")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Prénom", "Nom", "Email", "Téléphone", "Genre", "Ville", "Pays", "Profession", "État Civil", "Rôle"}, rows[0])
	assert.Equal(t, "Jean", rows[1][0])
	assert.Equal(t, "", rows[1][5])

	nameWidth, err := f.GetColWidth("Liste des membres", "A")
	require.NoError(t, err)
	emailWidth, err := f.GetColWidth("Liste des membres", "C")
	require.NoError(t, err)
	assert.Greater(t, nameWidth, emailWidth)
}

func TestWritePDFPaginatesWithHeaders(t *testing.T) {
	short := memberReport(t, 1)
	doc, err := layoutPDF(short)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.PageCount())

	long := memberReport(t, 60)
	doc, err = layoutPDF(long)
	require.NoError(t, err)
	assert.Greater(t, doc.PageCount(), 1)

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatPDF, long))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestReferenceIsCarriedInDocuments(t *testing.T) {
	report := memberReport(t, 1)
	assert.Len(t, metaLines(report.Meta), 3)

	report.Meta.Reference = "2f1c8e0a-ref"
	assert.Equal(t, "Référence : 2f1c8e0a-ref", metaLines(report.Meta)[3])

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatXLSX, report))
	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	props, err := f.GetDocProps()
	require.NoError(t, err)
	assert.Equal(t, "2f1c8e0a-ref", props.Identifier)

	buf.Reset()
	require.NoError(t, Export(&buf, FormatDOCX, report))
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var found bool
	for _, file := range zr.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		found = strings.Contains(string(data), "Référence : 2f1c8e0a-ref")
	}
	assert.True(t, found)
}

var tcWidth = regexp.MustCompile(`<w:tcW w:w="(\d+)" w:type="pct"(?:/>|></w:tcW>)`)

func TestWriteDOCX(t *testing.T) {
	report := memberReport(t, 1)
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatDOCX, report))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var document string
	for _, file := range zr.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		document = string(data)
	}
	require.NotEmpty(t, document)
	assert.Contains(t, document, "Liste des membres")
	assert.Contains(t, document, "Église : Église de Port-au-Prince")
	assert.Contains(t, document, "Total : 2")
	assert.Equal(t, 1, strings.Count(document, "<w:tbl>"))
	assert.Equal(t, 3, strings.Count(document, "<w:tr>"))

	matches := tcWidth.FindAllStringSubmatch(document, len(report.Columns))
	require.Len(t, matches, len(report.Columns))
	total := 0
	for _, m := range matches {
		v, err := strconv.Atoi(m[1])
		require.NoError(t, err)
		total += v
	}
	assert.Equal(t, 5000, total, "header widths cover 100%")
}

func TestWriteCSV(t *testing.T) {
	report := memberReport(t, 1)
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatCSV, report))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Prénom", records[0][0])
	assert.Equal(t, "Haïti", records[2][6])
}

func TestFormatsShareInput(t *testing.T) {
	report := memberReport(t, 2)
	for _, format := range Formats {
		var buf bytes.Buffer
		require.NoError(t, Export(&buf, format, report), format)
		assert.NotZero(t, buf.Len(), format)
	}
	assert.ErrorIs(t, Export(io.Discard, Format("odt"), report), ErrUnknownFormat)
}

func TestParseFormatAndFilename(t *testing.T) {
	f, err := ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)
	_, err = ParseFormat("odt")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	assert.Equal(t, "membres.pdf", Filename("membres", FormatPDF))
	assert.Equal(t, "rapport_2025-01.docx", Filename("rapport 2025/01", FormatDOCX))
	assert.Equal(t, "export.csv", Filename("", FormatCSV))
	assert.Equal(t, "application/pdf", ContentType(FormatPDF))
}

func TestPercentagesSumToHundred(t *testing.T) {
	cols := []Column{{Format: Count}, {Format: Count}, {Format: Count}}
	assert.Equal(t, []int{34, 33, 33}, percentages(cols))
	assert.Equal(t, 100, sum(percentages([]Column{{Format: Name}, {Format: Date}, {Format: Amount}, {Format: Text}})))
	assert.Empty(t, percentages(nil))
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
