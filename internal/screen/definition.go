// Package screen serves the generic CRUD list screen shared by every entity
// section: fetch, search and filter, paginate, export and modal forms.
package screen

import (
	"context"
	"net/url"
	"time"

	"github.com/ecclesia/ecclesia/internal/apiclient"
	"github.com/ecclesia/ecclesia/internal/export"
	"github.com/ecclesia/ecclesia/internal/listing"
	"github.com/ecclesia/ecclesia/internal/rbac"
	"github.com/ecclesia/ecclesia/internal/shared"
)

// Source is the remote collection behind a tab. *apiclient.Resource
// satisfies it.
type Source[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, payload any) (T, error)
	Update(ctx context.Context, id string, payload any) error
	Delete(ctx context.Context, id string) error
}

// MultipartSource accepts file uploads alongside the form fields.
type MultipartSource[T any] interface {
	Source[T]
	CreateMultipart(ctx context.Context, fields url.Values, file *apiclient.Upload) (T, error)
	UpdateMultipart(ctx context.Context, id string, fields url.Values, file *apiclient.Upload) error
}

// Option is a value/label pair for selects.
type Option struct {
	Value string
	Label string
}

// Input types understood by the form and filter partials.
const (
	InputText     = "text"
	InputEmail    = "email"
	InputTel      = "tel"
	InputDate     = "date"
	InputTime     = "time"
	InputNumber   = "number"
	InputSelect   = "select"
	InputTextarea = "textarea"
	InputFile     = "file"
)

// Field describes one form or filter input.
type Field struct {
	Name     string
	Label    string
	Type     string
	Options  []Option
	Required bool
	Step     string
}

// Column is one list table column.
type Column[T any] struct {
	Label string
	Value func(item T) string
	// Image renders the value as a thumbnail URL.
	Image bool
}

// RowAction is an extra per-row action, addressed as <base>/<id>/<Path>.
type RowAction struct {
	Label string
	Path  string
	// Download marks plain links that stream a file instead of opening a modal.
	Download bool
	// Policy restricts the action; the zero policy admits any signed-in user.
	Policy rbac.Policy
}

// Tab binds one remote collection to the screen.
type Tab[T any] struct {
	Key        string
	Label      string
	Source     Source[T]
	Kind       export.Kind
	ExportName string
	// Filters overrides Definition.Filters for this tab.
	Filters []Field
	// FormFields overrides Definition.FormFields for this tab.
	FormFields []Field
}

// Scope carries the request context a payload builder may need.
type Scope struct {
	Tab       string
	Principal *shared.Principal
}

// Selection is the entity a modal acts on. It is set by a row action and
// cleared when the modal closes.
type Selection struct {
	Action string
	ID     string
}

// Actions recorded in Selection.
const (
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

// Definition configures a Handler.
type Definition[T any, F any] struct {
	Name     string
	Title    string
	BasePath string
	Singular string
	// Feminine agrees flash messages and titles with Singular.
	Feminine bool
	Tabs     []Tab[T]
	Spec     listing.Spec[T]

	SearchFields []Option
	Filters      []Field
	Orders       []Option
	Columns      []Column[T]
	FormFields   []Field
	Actions      []RowAction

	ID    func(item T) string
	Label func(item T) string

	NewForm func(scope Scope) F
	ToForm  func(item T) F
	// Prepare completes decoded values with request context before
	// validation; fields tagged form:"-" are filled here.
	Prepare func(scope Scope, form F) F
	// Payload builds the JSON body sent upstream; nil sends the form itself.
	Payload func(scope Scope, form F) any
	// Upload names the multipart file field; the tab source must then be a
	// MultipartSource.
	Upload string

	Writers rbac.Policy
	Now     func() time.Time
}

func (d Definition[T, F]) tab(key string) Tab[T] {
	for _, tab := range d.Tabs {
		if tab.Key == key {
			return tab
		}
	}
	return d.Tabs[0]
}

func (d Definition[T, F]) hasTab(key string) bool {
	for _, tab := range d.Tabs {
		if tab.Key == key {
			return true
		}
	}
	return false
}

func (d Definition[T, F]) filtersFor(tab Tab[T]) []Field {
	if tab.Filters != nil {
		return tab.Filters
	}
	return d.Filters
}

// agree appends the feminine ending to a past participle or adjective.
func (d Definition[T, F]) agree(word string) string {
	if !d.Feminine {
		return word
	}
	if word == "Nouveau" {
		return "Nouvelle"
	}
	return word + "e"
}

func (d Definition[T, F]) formFieldsFor(tab Tab[T]) []Field {
	if tab.FormFields != nil {
		return tab.FormFields
	}
	return d.FormFields
}

func (d Definition[T, F]) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// AnyOption is the pass-through choice heading every filter select.
var AnyOption = Option{Value: listing.All, Label: "Tous"}

// OrderOptions offers the chronological orderings.
var OrderOptions = []Option{
	{Value: "", Label: "Ordre par défaut"},
	{Value: listing.OrderRecent, Label: "Plus récents"},
	{Value: listing.OrderOldest, Label: "Plus anciens"},
}

// Options uses each value as its own label.
func Options(values ...string) []Option {
	opts := make([]Option, 0, len(values))
	for _, v := range values {
		opts = append(opts, Option{Value: v, Label: v})
	}
	return opts
}

// SelectFilter is a filter select headed by AnyOption.
func SelectFilter(name, label string, opts ...Option) Field {
	return Field{Name: name, Label: label, Type: InputSelect, Options: append([]Option{AnyOption}, opts...)}
}

// DateInput converts an API timestamp to the value of a date input.
func DateInput(raw string) string {
	t, ok := listing.ParseDate(raw)
	if !ok {
		return ""
	}
	return t.Format(listing.DateLayout)
}

// DisplayDate renders an API timestamp for table cells.
func DisplayDate(raw string) string {
	t, ok := listing.ParseDate(raw)
	if !ok {
		return raw
	}
	return t.Format("02/01/2006")
}
