package screen

import (
	"net/url"

	"github.com/go-playground/form/v4"

	"github.com/ecclesia/ecclesia/internal/export"
	"github.com/ecclesia/ecclesia/internal/listing"
)

// TabLink renders one tab of the tab bar.
type TabLink struct {
	Label  string
	URL    string
	Active bool
}

// Cell is one rendered table cell.
type Cell struct {
	Text   string
	Image  string
	Avatar bool
}

// ActionLink is a rendered row action.
type ActionLink struct {
	Label    string
	URL      string
	Download bool
	Danger   bool
}

// RowView is one rendered table row.
type RowView struct {
	ID      string
	Cells   []Cell
	Actions []ActionLink
}

// PagerView carries the pagination footer.
type PagerView struct {
	Total      int
	Start      int
	End        int
	Page       int
	TotalPages int
	Controls   listing.Controls
	BaseURL    string
}

// FieldView is one rendered input.
type FieldView struct {
	Field
	Value string
	Error string
}

// ModalView is the open modal, if any.
type ModalView struct {
	Title       string
	Action      string
	CancelURL   string
	Submit      string
	Confirm     string
	Danger      bool
	Multipart   bool
	ClearAction string
	Fields      []FieldView
	ServerError string
	State       string
	// Submission is the one-time key posted back with the form.
	Submission string
}

// ListView is the page model of the list template.
type ListView struct {
	Name         string
	Title        string
	BasePath     string
	Tabs         []TabLink
	State        listing.ViewState
	SearchFields []Option
	Orders       []Option
	Filters      []FieldView
	ActiveCount  int
	Columns      []string
	Rows         []RowView
	Pager        PagerView
	Formats      []export.Format
	CanWrite     bool
	Singular     string
	Modal        *ModalView
	Error        string
	RetryURL     string
}

var encoder = form.NewEncoder()

// FormValues flattens a form struct into its posted representation.
func FormValues(values any) url.Values {
	encoded, err := encoder.Encode(values)
	if err != nil || encoded == nil {
		return url.Values{}
	}
	return encoded
}

// NewModal renders fields against values and errors.
func NewModal(title, action, cancel string, fields []Field, values url.Values, errs map[string]string) *ModalView {
	m := &ModalView{
		Title:     title,
		Action:    action,
		CancelURL: cancel,
		Submit:    "Enregistrer",
	}
	for _, f := range fields {
		if f.Type == InputFile {
			m.Multipart = true
		}
		m.Fields = append(m.Fields, FieldView{
			Field: f,
			Value: values.Get(f.Name),
			Error: errs[f.Name],
		})
	}
	return m
}

func filterViews(fields []Field, state listing.FilterState) ([]FieldView, int) {
	views := make([]FieldView, 0, len(fields))
	active := 0
	for _, f := range fields {
		if state.Active(f.Name) {
			active++
		}
		views = append(views, FieldView{Field: f, Value: state.Value(f.Name)})
	}
	return views, active
}
