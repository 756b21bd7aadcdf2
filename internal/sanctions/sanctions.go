// Package sanctions serves the disciplinary sanction screen.
package sanctions

import (
	"github.com/ecclesia/ecclesia/internal/apiclient"
	"github.com/ecclesia/ecclesia/internal/export"
	"github.com/ecclesia/ecclesia/internal/listing"
	"github.com/ecclesia/ecclesia/internal/rbac"
	"github.com/ecclesia/ecclesia/internal/screen"
)

// Sanction statuses.
const (
	StatusActive = "active"
	StatusLifted = "levee"
)

var statuses = []screen.Option{
	{Value: StatusActive, Label: "Active"},
	{Value: StatusLifted, Label: "Levée"},
}

// Sanction mirrors the API sanction resource.
type Sanction struct {
	ID        apiclient.ID         `json:"id"`
	MemberID  apiclient.ID         `json:"memberId"`
	Member    *apiclient.MemberRef `json:"member,omitempty"`
	Reason    string               `json:"reason"`
	StartDate string               `json:"startDate"`
	EndDate   string               `json:"endDate"`
	Status    string               `json:"status"`
	CreatedAt string               `json:"createdAt"`
}

// MemberName is the sanctioned member's display name.
func (s Sanction) MemberName() string {
	return s.Member.FullName()
}

// Form is the create/edit payload.
type Form struct {
	MemberID  string `form:"memberId" json:"memberId" label:"Membre" validate:"required,numeric"`
	Reason    string `form:"reason" json:"reason" label:"Motif" validate:"required,max=500"`
	StartDate string `form:"startDate" json:"startDate" label:"Date de début" validate:"required,datetime=2006-01-02"`
	EndDate   string `form:"endDate" json:"endDate,omitempty" label:"Date de fin" validate:"omitempty,datetime=2006-01-02"`
	Status    string `form:"status" json:"status" label:"Statut" validate:"required,oneof=active levee"`
}

// Check enforces the chronological order of the sanction period.
func (f Form) Check() map[string]string {
	if f.StartDate == "" || f.EndDate == "" {
		return nil
	}
	start, okStart := listing.ParseDate(f.StartDate)
	end, okEnd := listing.ParseDate(f.EndDate)
	if okStart && okEnd && end.Before(start) {
		return map[string]string{"endDate": "La date de fin doit être postérieure à la date de début"}
	}
	return nil
}

var spec = listing.Spec[Sanction]{
	SearchFields: map[string]listing.Accessor[Sanction]{
		"member": listing.Text(Sanction.MemberName),
		"reason": listing.Text(func(s Sanction) string { return s.Reason }),
	},
	Dimensions: []listing.Dimension[Sanction]{
		listing.Equals("status", listing.Text(func(s Sanction) string { return s.Status })),
		listing.DateRange("from", "to", listing.Date(func(s Sanction) string { return s.StartDate })),
	},
	Timestamp: listing.Date(func(s Sanction) string { return s.StartDate }),
}

// NewDefinition describes the sanction screen over source.
func NewDefinition(source screen.Source[Sanction]) screen.Definition[Sanction, Form] {
	return screen.Definition[Sanction, Form]{
		Name:     "sanctions",
		Title:    "Sanctions",
		BasePath: "/sanctions",
		Singular: "Sanction",
		Feminine: true,
		Tabs: []screen.Tab[Sanction]{{
			Key: "all", Label: "Toutes", Source: source, Kind: export.KindSanction, ExportName: "sanctions",
		}},
		Spec:         spec,
		SearchFields: []screen.Option{{Value: "member", Label: "Membre"}, {Value: "reason", Label: "Motif"}},
		Filters: []screen.Field{
			screen.SelectFilter("status", "Statut", statuses...),
			{Name: "from", Label: "Début à partir du", Type: screen.InputDate},
			{Name: "to", Label: "Début jusqu'au", Type: screen.InputDate},
		},
		Orders: screen.OrderOptions,
		Columns: []screen.Column[Sanction]{
			{Label: "Membre", Value: Sanction.MemberName},
			{Label: "Motif", Value: func(s Sanction) string { return s.Reason }},
			{Label: "Début", Value: func(s Sanction) string { return screen.DisplayDate(s.StartDate) }},
			{Label: "Fin", Value: func(s Sanction) string { return screen.DisplayDate(s.EndDate) }},
			{Label: "Statut", Value: statusLabel},
		},
		FormFields: []screen.Field{
			{Name: "memberId", Label: "N° de membre", Type: screen.InputNumber, Required: true},
			{Name: "reason", Label: "Motif", Type: screen.InputTextarea, Required: true},
			{Name: "startDate", Label: "Date de début", Type: screen.InputDate, Required: true},
			{Name: "endDate", Label: "Date de fin", Type: screen.InputDate},
			{Name: "status", Label: "Statut", Type: screen.InputSelect, Options: statuses, Required: true},
		},
		ID: func(s Sanction) string { return s.ID.String() },
		Label: func(s Sanction) string {
			if name := s.MemberName(); name != "" {
				return name
			}
			return "Sanction " + s.ID.String()
		},
		NewForm: func(screen.Scope) Form { return Form{Status: StatusActive} },
		ToForm: func(s Sanction) Form {
			memberID := s.MemberID.String()
			if memberID == "" && s.Member != nil {
				memberID = s.Member.ID.String()
			}
			return Form{
				MemberID:  memberID,
				Reason:    s.Reason,
				StartDate: screen.DateInput(s.StartDate),
				EndDate:   screen.DateInput(s.EndDate),
				Status:    s.Status,
			}
		},
		Writers: rbac.DirectoryWriters,
	}
}

func statusLabel(s Sanction) string {
	for _, opt := range statuses {
		if opt.Value == s.Status {
			return opt.Label
		}
	}
	return s.Status
}

// NewHandler wires the sanction screen to the API.
func NewHandler(client *apiclient.Client, deps screen.Deps) *screen.Handler[Sanction, Form] {
	return screen.NewHandler(NewDefinition(apiclient.NewResource[Sanction](client, "sanctions")), deps)
}
