// Package committees serves the committee list screen.
package committees

import (
	"strconv"

	"github.com/ecclesia/ecclesia/internal/apiclient"
	"github.com/ecclesia/ecclesia/internal/export"
	"github.com/ecclesia/ecclesia/internal/listing"
	"github.com/ecclesia/ecclesia/internal/rbac"
	"github.com/ecclesia/ecclesia/internal/screen"
)

// Days lists the meeting days offered in forms and filters.
var Days = []string{"Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi", "Dimanche"}

// Committee mirrors the API committee resource.
type Committee struct {
	ID           apiclient.ID `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	MeetingDay   string       `json:"meetingDay"`
	MeetingTime  string       `json:"meetingTime"`
	Leader       string       `json:"leader"`
	MembersCount int          `json:"membersCount"`
	CreatedAt    string       `json:"createdAt"`
}

// Form is the create/edit payload.
type Form struct {
	Name        string `form:"name" json:"name" label:"Nom" validate:"required,max=120"`
	Description string `form:"description" json:"description" label:"Description" validate:"max=500"`
	MeetingDay  string `form:"meetingDay" json:"meetingDay" label:"Jour de réunion" validate:"omitempty,oneof=Lundi Mardi Mercredi Jeudi Vendredi Samedi Dimanche"`
	MeetingTime string `form:"meetingTime" json:"meetingTime" label:"Heure" validate:"omitempty,datetime=15:04"`
	Leader      string `form:"leader" json:"leader" label:"Responsable"`
	ChurchID    string `form:"-" json:"churchId,omitempty"`
}

var spec = listing.Spec[Committee]{
	SearchFields: map[string]listing.Accessor[Committee]{
		"name":   listing.Text(func(c Committee) string { return c.Name }),
		"leader": listing.Text(func(c Committee) string { return c.Leader }),
	},
	Dimensions: []listing.Dimension[Committee]{
		listing.Equals("meetingDay", listing.Text(func(c Committee) string { return c.MeetingDay })),
	},
	Timestamp: listing.Date(func(c Committee) string { return c.CreatedAt }),
}

// NewDefinition describes the committee screen over source.
func NewDefinition(source screen.Source[Committee]) screen.Definition[Committee, Form] {
	return screen.Definition[Committee, Form]{
		Name:     "committees",
		Title:    "Comités",
		BasePath: "/committees",
		Singular: "Comité",
		Tabs: []screen.Tab[Committee]{{
			Key: "all", Label: "Tous", Source: source, Kind: export.KindCommittee, ExportName: "comites",
		}},
		Spec:         spec,
		SearchFields: []screen.Option{{Value: "name", Label: "Nom"}, {Value: "leader", Label: "Responsable"}},
		Filters: []screen.Field{
			screen.SelectFilter("meetingDay", "Jour de réunion", screen.Options(Days...)...),
		},
		Orders: screen.OrderOptions,
		Columns: []screen.Column[Committee]{
			{Label: "Nom", Value: func(c Committee) string { return c.Name }},
			{Label: "Jour", Value: func(c Committee) string { return c.MeetingDay }},
			{Label: "Heure", Value: func(c Committee) string { return c.MeetingTime }},
			{Label: "Responsable", Value: func(c Committee) string { return c.Leader }},
			{Label: "Membres", Value: func(c Committee) string { return strconv.Itoa(c.MembersCount) }},
		},
		FormFields: []screen.Field{
			{Name: "name", Label: "Nom", Type: screen.InputText, Required: true},
			{Name: "leader", Label: "Responsable", Type: screen.InputText},
			{Name: "meetingDay", Label: "Jour de réunion", Type: screen.InputSelect, Options: append([]screen.Option{{Value: "", Label: "—"}}, screen.Options(Days...)...)},
			{Name: "meetingTime", Label: "Heure", Type: screen.InputTime},
			{Name: "description", Label: "Description", Type: screen.InputTextarea},
		},
		ID:      func(c Committee) string { return c.ID.String() },
		Label:   func(c Committee) string { return c.Name },
		NewForm: func(screen.Scope) Form { return Form{} },
		ToForm: func(c Committee) Form {
			return Form{
				Name:        c.Name,
				Description: c.Description,
				MeetingDay:  c.MeetingDay,
				MeetingTime: c.MeetingTime,
				Leader:      c.Leader,
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

// NewHandler wires the committee screen to the API.
func NewHandler(client *apiclient.Client, deps screen.Deps) *screen.Handler[Committee, Form] {
	return screen.NewHandler(NewDefinition(apiclient.NewResource[Committee](client, "committees")), deps)
}
