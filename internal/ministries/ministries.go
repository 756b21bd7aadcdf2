// Package ministries serves the ministry list screen.
package ministries

import (
	"strconv"

	"github.com/ecclesia/ecclesia/internal/apiclient"
	"github.com/ecclesia/ecclesia/internal/export"
	"github.com/ecclesia/ecclesia/internal/listing"
	"github.com/ecclesia/ecclesia/internal/rbac"
	"github.com/ecclesia/ecclesia/internal/screen"
)

// Ministry mirrors the API ministry resource.
type Ministry struct {
	ID           apiclient.ID `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Leader       string       `json:"leader"`
	MembersCount int          `json:"membersCount"`
	CreatedAt    string       `json:"createdAt"`
}

// Form is the create/edit payload.
type Form struct {
	Name        string `form:"name" json:"name" label:"Nom" validate:"required,max=120"`
	Description string `form:"description" json:"description" label:"Description" validate:"max=500"`
	Leader      string `form:"leader" json:"leader" label:"Responsable"`
	ChurchID    string `form:"-" json:"churchId,omitempty"`
}

var spec = listing.Spec[Ministry]{
	SearchFields: map[string]listing.Accessor[Ministry]{
		"name":   listing.Text(func(m Ministry) string { return m.Name }),
		"leader": listing.Text(func(m Ministry) string { return m.Leader }),
	},
	Timestamp: listing.Date(func(m Ministry) string { return m.CreatedAt }),
}

// NewDefinition describes the ministry screen over source.
func NewDefinition(source screen.Source[Ministry]) screen.Definition[Ministry, Form] {
	return screen.Definition[Ministry, Form]{
		Name:     "ministries",
		Title:    "Ministères",
		BasePath: "/ministries",
		Singular: "Ministère",
		Tabs: []screen.Tab[Ministry]{{
			Key: "all", Label: "Tous", Source: source, Kind: export.KindMinistry, ExportName: "ministeres",
		}},
		Spec:         spec,
		SearchFields: []screen.Option{{Value: "name", Label: "Nom"}, {Value: "leader", Label: "Responsable"}},
		Orders:       screen.OrderOptions,
		Columns: []screen.Column[Ministry]{
			{Label: "Nom", Value: func(m Ministry) string { return m.Name }},
			{Label: "Responsable", Value: func(m Ministry) string { return m.Leader }},
			{Label: "Membres", Value: func(m Ministry) string { return strconv.Itoa(m.MembersCount) }},
			{Label: "Créé le", Value: func(m Ministry) string { return screen.DisplayDate(m.CreatedAt) }},
		},
		FormFields: []screen.Field{
			{Name: "name", Label: "Nom", Type: screen.InputText, Required: true},
			{Name: "leader", Label: "Responsable", Type: screen.InputText},
			{Name: "description", Label: "Description", Type: screen.InputTextarea},
		},
		ID:      func(m Ministry) string { return m.ID.String() },
		Label:   func(m Ministry) string { return m.Name },
		NewForm: func(screen.Scope) Form { return Form{} },
		ToForm: func(m Ministry) Form {
			return Form{Name: m.Name, Description: m.Description, Leader: m.Leader}
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

// NewHandler wires the ministry screen to the API.
func NewHandler(client *apiclient.Client, deps screen.Deps) *screen.Handler[Ministry, Form] {
	return screen.NewHandler(NewDefinition(apiclient.NewResource[Ministry](client, "ministries")), deps)
}
