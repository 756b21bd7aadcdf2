// Package transfers serves the inter-church transfer screen.
package transfers

import (
	"github.com/ecclesia/ecclesia/internal/apiclient"
	"github.com/ecclesia/ecclesia/internal/export"
	"github.com/ecclesia/ecclesia/internal/listing"
	"github.com/ecclesia/ecclesia/internal/rbac"
	"github.com/ecclesia/ecclesia/internal/screen"
)

// Transfer statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Statuses lists the transfer statuses with their labels.
var Statuses = []screen.Option{
	{Value: StatusPending, Label: "En attente"},
	{Value: StatusApproved, Label: "Approuvé"},
	{Value: StatusRejected, Label: "Rejeté"},
}

// Transfer mirrors the API transfer resource.
type Transfer struct {
	ID         apiclient.ID         `json:"id"`
	MemberID   apiclient.ID         `json:"memberId"`
	Member     *apiclient.MemberRef `json:"member,omitempty"`
	FromChurch *apiclient.Church    `json:"fromChurch,omitempty"`
	ToChurch   *apiclient.Church    `json:"toChurch,omitempty"`
	ToChurchID apiclient.ID         `json:"toChurchId"`
	Date       string               `json:"date"`
	Status     string               `json:"status"`
	Reason     string               `json:"reason"`
	CreatedAt  string               `json:"createdAt"`
}

// MemberName is the transferred member's display name.
func (t Transfer) MemberName() string {
	return t.Member.FullName()
}

// From is the origin church name.
func (t Transfer) From() string {
	if t.FromChurch == nil {
		return ""
	}
	return t.FromChurch.Name
}

// To is the destination church name.
func (t Transfer) To() string {
	if t.ToChurch == nil {
		return ""
	}
	return t.ToChurch.Name
}

// Form is the create/edit payload. FromChurchID is always the signed-in
// user's church.
type Form struct {
	MemberID     string `form:"memberId" json:"memberId" label:"Membre" validate:"required,numeric"`
	ToChurchID   string `form:"toChurchId" json:"toChurchId" label:"Église de destination" validate:"required,numeric"`
	Date         string `form:"date" json:"date" label:"Date" validate:"required,datetime=2006-01-02"`
	Status       string `form:"status" json:"status" label:"Statut" validate:"required,oneof=pending approved rejected"`
	Reason       string `form:"reason" json:"reason" label:"Motif" validate:"max=500"`
	FromChurchID string `form:"-" json:"fromChurchId,omitempty"`
}

// Check rejects transfers to the member's own church.
func (f Form) Check() map[string]string {
	if f.FromChurchID != "" && f.FromChurchID == f.ToChurchID {
		return map[string]string{"toChurchId": "L'église de destination doit être différente de l'église d'origine"}
	}
	return nil
}

// NewForm seeds a pending transfer for memberID, dated on day.
func NewForm(memberID, day string) Form {
	return Form{MemberID: memberID, Date: day, Status: StatusPending}
}

// WithOrigin sets the origin church from the principal.
func (f Form) WithOrigin(scope screen.Scope) Form {
	if scope.Principal != nil {
		f.FromChurchID = scope.Principal.ChurchID
	}
	return f
}

// Fields are the transfer form inputs, also used by the member screen.
var Fields = []screen.Field{
	{Name: "memberId", Label: "N° de membre", Type: screen.InputNumber, Required: true},
	{Name: "toChurchId", Label: "N° de l'église de destination", Type: screen.InputNumber, Required: true},
	{Name: "date", Label: "Date", Type: screen.InputDate, Required: true},
	{Name: "status", Label: "Statut", Type: screen.InputSelect, Options: Statuses, Required: true},
	{Name: "reason", Label: "Motif", Type: screen.InputTextarea},
}

var spec = listing.Spec[Transfer]{
	SearchFields: map[string]listing.Accessor[Transfer]{
		"member": listing.Text(Transfer.MemberName),
		"church": func(t Transfer) (string, bool) {
			joined := t.From() + " " + t.To()
			return joined, t.From() != "" || t.To() != ""
		},
	},
	Dimensions: []listing.Dimension[Transfer]{
		listing.Equals("status", listing.Text(func(t Transfer) string { return t.Status })),
		listing.DateRange("from", "to", listing.Date(func(t Transfer) string { return t.Date })),
	},
	Timestamp: listing.Date(func(t Transfer) string { return t.Date }),
}

// NewDefinition describes the transfer screen over source.
func NewDefinition(source screen.Source[Transfer]) screen.Definition[Transfer, Form] {
	return screen.Definition[Transfer, Form]{
		Name:     "transfers",
		Title:    "Transferts",
		BasePath: "/transfers",
		Singular: "Transfert",
		Tabs: []screen.Tab[Transfer]{{
			Key: "all", Label: "Tous", Source: source, Kind: export.KindTransfer, ExportName: "transferts",
		}},
		Spec:         spec,
		SearchFields: []screen.Option{{Value: "member", Label: "Membre"}, {Value: "church", Label: "Église"}},
		Filters: []screen.Field{
			screen.SelectFilter("status", "Statut", Statuses...),
			{Name: "from", Label: "Du", Type: screen.InputDate},
			{Name: "to", Label: "Au", Type: screen.InputDate},
		},
		Orders: screen.OrderOptions,
		Columns: []screen.Column[Transfer]{
			{Label: "Membre", Value: Transfer.MemberName},
			{Label: "Depuis", Value: Transfer.From},
			{Label: "Vers", Value: Transfer.To},
			{Label: "Date", Value: func(t Transfer) string { return screen.DisplayDate(t.Date) }},
			{Label: "Statut", Value: StatusLabel},
		},
		FormFields: Fields,
		ID:         func(t Transfer) string { return t.ID.String() },
		Label: func(t Transfer) string {
			if name := t.MemberName(); name != "" {
				return name
			}
			return "Transfert " + t.ID.String()
		},
		NewForm: func(screen.Scope) Form {
			return NewForm("", listing.Today())
		},
		ToForm: func(t Transfer) Form {
			memberID := t.MemberID.String()
			if memberID == "" && t.Member != nil {
				memberID = t.Member.ID.String()
			}
			toID := t.ToChurchID.String()
			if toID == "" && t.ToChurch != nil {
				toID = t.ToChurch.ID.String()
			}
			return Form{
				MemberID:   memberID,
				ToChurchID: toID,
				Date:       screen.DateInput(t.Date),
				Status:     t.Status,
				Reason:     t.Reason,
			}
		},
		Prepare: func(scope screen.Scope, f Form) Form {
			return f.WithOrigin(scope)
		},
		Writers: rbac.DirectoryWriters,
	}
}

// StatusLabel renders the transfer status in French.
func StatusLabel(t Transfer) string {
	for _, opt := range Statuses {
		if opt.Value == t.Status {
			return opt.Label
		}
	}
	return t.Status
}

// NewResource is the API transfer collection.
func NewResource(client *apiclient.Client) *apiclient.Resource[Transfer] {
	return apiclient.NewResource[Transfer](client, "transfers")
}

// NewHandler wires the transfer screen to the API.
func NewHandler(client *apiclient.Client, deps screen.Deps) *screen.Handler[Transfer, Form] {
	return screen.NewHandler(NewDefinition(NewResource(client)), deps)
}
