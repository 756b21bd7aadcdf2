// Package pastors serves the pastor list screen.
package pastors

import (
	"strings"

	"github.com/ecclesia/ecclesia/internal/apiclient"
	"github.com/ecclesia/ecclesia/internal/export"
	"github.com/ecclesia/ecclesia/internal/listing"
	"github.com/ecclesia/ecclesia/internal/rbac"
	"github.com/ecclesia/ecclesia/internal/screen"
)

// Titles lists the pastoral titles.
var Titles = []string{"Pasteur", "Pasteur principal", "Pasteur assistant", "Évangéliste", "Diacre"}

// Pasteur mirrors the API pasteur resource.
type Pasteur struct {
	ID             apiclient.ID      `json:"id"`
	Firstname      string            `json:"firstname"`
	Lastname       string            `json:"lastname"`
	Email          string            `json:"email"`
	Phone          string            `json:"phone"`
	Title          string            `json:"title"`
	OrdinationDate string            `json:"ordinationDate"`
	Church         *apiclient.Church `json:"church,omitempty"`
	CreatedAt      string            `json:"createdAt"`
}

// FullName joins first and last names.
func (p Pasteur) FullName() string {
	return strings.TrimSpace(p.Firstname + " " + p.Lastname)
}

// Form is the create/edit payload.
type Form struct {
	Firstname      string `form:"firstname" json:"firstname" label:"Prénom" validate:"required"`
	Lastname       string `form:"lastname" json:"lastname" label:"Nom" validate:"required"`
	Email          string `form:"email" json:"email" label:"Email" validate:"omitempty,email"`
	Phone          string `form:"phone" json:"phone" label:"Téléphone"`
	Title          string `form:"title" json:"title" label:"Titre"`
	OrdinationDate string `form:"ordinationDate" json:"ordinationDate,omitempty" label:"Date d'ordination" validate:"omitempty,datetime=2006-01-02"`
	ChurchID       string `form:"-" json:"churchId,omitempty"`
}

var spec = listing.Spec[Pasteur]{
	SearchFields: map[string]listing.Accessor[Pasteur]{
		"name":  listing.Text(Pasteur.FullName),
		"email": listing.Text(func(p Pasteur) string { return p.Email }),
		"phone": listing.Text(func(p Pasteur) string { return p.Phone }),
	},
	Dimensions: []listing.Dimension[Pasteur]{
		listing.Equals("title", listing.Text(func(p Pasteur) string { return p.Title })),
	},
	Timestamp: listing.Date(func(p Pasteur) string { return p.CreatedAt }),
}

// NewDefinition describes the pastor screen over source.
func NewDefinition(source screen.Source[Pasteur]) screen.Definition[Pasteur, Form] {
	return screen.Definition[Pasteur, Form]{
		Name:     "pastors",
		Title:    "Pasteurs",
		BasePath: "/pastors",
		Singular: "Pasteur",
		Tabs: []screen.Tab[Pasteur]{{
			Key: "all", Label: "Tous", Source: source, Kind: export.KindPastor, ExportName: "pasteurs",
		}},
		Spec: spec,
		SearchFields: []screen.Option{
			{Value: "name", Label: "Nom"},
			{Value: "email", Label: "Email"},
			{Value: "phone", Label: "Téléphone"},
		},
		Filters: []screen.Field{screen.SelectFilter("title", "Titre", screen.Options(Titles...)...)},
		Orders:  screen.OrderOptions,
		Columns: []screen.Column[Pasteur]{
			{Label: "Nom", Value: Pasteur.FullName},
			{Label: "Titre", Value: func(p Pasteur) string { return p.Title }},
			{Label: "Email", Value: func(p Pasteur) string { return p.Email }},
			{Label: "Téléphone", Value: func(p Pasteur) string { return p.Phone }},
			{Label: "Ordination", Value: func(p Pasteur) string { return screen.DisplayDate(p.OrdinationDate) }},
		},
		FormFields: []screen.Field{
			{Name: "firstname", Label: "Prénom", Type: screen.InputText, Required: true},
			{Name: "lastname", Label: "Nom", Type: screen.InputText, Required: true},
			{Name: "email", Label: "Email", Type: screen.InputEmail},
			{Name: "phone", Label: "Téléphone", Type: screen.InputTel},
			{Name: "title", Label: "Titre", Type: screen.InputSelect, Options: screen.Options(Titles...)},
			{Name: "ordinationDate", Label: "Date d'ordination", Type: screen.InputDate},
		},
		ID:      func(p Pasteur) string { return p.ID.String() },
		Label:   Pasteur.FullName,
		NewForm: func(screen.Scope) Form { return Form{Title: Titles[0]} },
		ToForm: func(p Pasteur) Form {
			return Form{
				Firstname:      p.Firstname,
				Lastname:       p.Lastname,
				Email:          p.Email,
				Phone:          p.Phone,
				Title:          p.Title,
				OrdinationDate: screen.DateInput(p.OrdinationDate),
			}
		},
		Payload: func(scope screen.Scope, f Form) any {
			if scope.Principal != nil {
				f.ChurchID = scope.Principal.ChurchID
			}
			return f
		},
		Writers: rbac.DirectoryWriters,
	}
}

// NewHandler wires the pastor screen to the API.
func NewHandler(client *apiclient.Client, deps screen.Deps) *screen.Handler[Pasteur, Form] {
	return screen.NewHandler(NewDefinition(apiclient.NewResource[Pasteur](client, "pasteurs")), deps)
}
