// Package finance serves the contribution screen: offerings, tithes,
// donations and harvest (moisson) collections, one tab each.
package finance

import (
	"encoding/json"
	"strings"

	"github.com/ecclesia/ecclesia/internal/apiclient"
	"github.com/ecclesia/ecclesia/internal/export"
	"github.com/ecclesia/ecclesia/internal/listing"
	"github.com/ecclesia/ecclesia/internal/rbac"
	"github.com/ecclesia/ecclesia/internal/screen"
)

// Tab keys.
const (
	TabOfferings = "offrandes"
	TabTithes    = "dimes"
	TabDonations = "dons"
	TabMoissons  = "moissons"
)

// Status vocabularies as served by the API. Tithes and donations are
// settled or not; offerings and moissons record their collection context.
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusService   = "service"
	StatusMoisson   = "moisson"
)

var (
	settlementStatuses = []screen.Option{
		{Value: StatusCompleted, Label: "Complété"},
		{Value: StatusPending, Label: "En attente"},
	}
	collectionStatuses = []screen.Option{
		{Value: StatusService, Label: "Culte"},
		{Value: StatusMoisson, Label: "Moisson"},
	}
	offeringTypes = screen.Options("Dominicale", "Action de grâce", "Spéciale", "Missionnaire")
)

// Record mirrors a finance resource of any kind.
type Record struct {
	ID          apiclient.ID         `json:"id"`
	Type        string               `json:"type,omitempty"`
	Amount      json.Number          `json:"amount"`
	Date        string               `json:"date"`
	MemberID    apiclient.ID         `json:"memberId,omitempty"`
	Member      *apiclient.MemberRef `json:"member,omitempty"`
	Description string               `json:"description"`
	Status      string               `json:"status"`
	CreatedAt   string               `json:"createdAt"`
}

// MemberName is the contributor's display name, empty for collections.
func (r Record) MemberName() string {
	return r.Member.FullName()
}

// Value parses the amount.
func (r Record) Value() (float64, bool) {
	v, err := r.Amount.Float64()
	return v, err == nil && r.Amount != ""
}

// Form is the create/edit payload shared by every tab.
type Form struct {
	Date        string      `form:"date" json:"date" label:"Date" validate:"required,datetime=2006-01-02"`
	Amount      json.Number `form:"amount" json:"amount" label:"Montant" validate:"required,numeric"`
	Type        string      `form:"type" json:"type,omitempty" label:"Type"`
	MemberID    string      `form:"memberId" json:"memberId,omitempty" label:"Membre" validate:"omitempty,numeric"`
	Description string      `form:"description" json:"description" label:"Description" validate:"max=500"`
	Status      string      `form:"status" json:"status" label:"Statut" validate:"required,oneof=completed pending service moisson"`
}

// Check rejects zero and negative amounts.
func (f Form) Check() map[string]string {
	if v, err := f.Amount.Float64(); err == nil && v <= 0 {
		return map[string]string{"amount": "Le montant doit être supérieur à zéro"}
	}
	return nil
}

// Sources binds each tab to its API collection.
type Sources struct {
	Offerings screen.Source[Record]
	Tithes    screen.Source[Record]
	Donations screen.Source[Record]
	Moissons  screen.Source[Record]
}

var spec = listing.Spec[Record]{
	SearchFields: map[string]listing.Accessor[Record]{
		"member":      listing.Text(Record.MemberName),
		"description": listing.Text(func(r Record) string { return r.Description }),
		"type":        listing.Text(func(r Record) string { return r.Type }),
	},
	Dimensions: []listing.Dimension[Record]{
		listing.Equals("status", listing.Text(func(r Record) string { return r.Status })),
		listing.Equals("type", listing.Text(func(r Record) string { return r.Type })),
		listing.DateRange("from", "to", listing.Date(func(r Record) string { return r.Date })),
		listing.AmountRange("min", "max", Record.Value),
	},
	Timestamp: listing.Date(func(r Record) string { return r.Date }),
}

func rangeFilters() []screen.Field {
	return []screen.Field{
		{Name: "from", Label: "Du", Type: screen.InputDate},
		{Name: "to", Label: "Au", Type: screen.InputDate},
		{Name: "min", Label: "Montant minimum", Type: screen.InputNumber, Step: "0.01"},
		{Name: "max", Label: "Montant maximum", Type: screen.InputNumber, Step: "0.01"},
	}
}

func filters(statuses []screen.Option, extra ...screen.Field) []screen.Field {
	out := append([]screen.Field{screen.SelectFilter("status", "Statut", statuses...)}, extra...)
	return append(out, rangeFilters()...)
}

func formFields(statuses []screen.Option, extra ...screen.Field) []screen.Field {
	out := []screen.Field{
		{Name: "date", Label: "Date", Type: screen.InputDate, Required: true},
		{Name: "amount", Label: "Montant", Type: screen.InputNumber, Step: "0.01", Required: true},
	}
	out = append(out, extra...)
	return append(out,
		screen.Field{Name: "status", Label: "Statut", Type: screen.InputSelect, Options: statuses, Required: true},
		screen.Field{Name: "description", Label: "Description", Type: screen.InputTextarea},
	)
}

// NewDefinition describes the finance screen. Amounts are displayed with
// the normalizer's currency.
func NewDefinition(src Sources, n *export.Normalizer) screen.Definition[Record, Form] {
	memberField := screen.Field{Name: "memberId", Label: "N° de membre", Type: screen.InputNumber}
	typeField := screen.Field{Name: "type", Label: "Type", Type: screen.InputSelect, Options: offeringTypes}
	return screen.Definition[Record, Form]{
		Name:     "finance",
		Title:    "Finances",
		BasePath: "/finance",
		Singular: "Enregistrement",
		Tabs: []screen.Tab[Record]{
			{
				Key: TabOfferings, Label: "Offrandes", Source: src.Offerings, Kind: export.KindOffering, ExportName: "offrandes",
				Filters:    filters(collectionStatuses, screen.SelectFilter("type", "Type", offeringTypes...)),
				FormFields: formFields(collectionStatuses, typeField),
			},
			{
				Key: TabTithes, Label: "Dîmes", Source: src.Tithes, Kind: export.KindTithe, ExportName: "dimes",
				Filters:    filters(settlementStatuses),
				FormFields: formFields(settlementStatuses, memberField),
			},
			{
				Key: TabDonations, Label: "Dons", Source: src.Donations, Kind: export.KindDonation, ExportName: "dons",
				Filters:    filters(settlementStatuses),
				FormFields: formFields(settlementStatuses, memberField),
			},
			{
				Key: TabMoissons, Label: "Moissons", Source: src.Moissons, Kind: export.KindMoisson, ExportName: "moissons",
				Filters:    filters(collectionStatuses),
				FormFields: formFields(collectionStatuses),
			},
		},
		Spec: spec,
		SearchFields: []screen.Option{
			{Value: "member", Label: "Membre"},
			{Value: "description", Label: "Description"},
			{Value: "type", Label: "Type"},
		},
		Orders: screen.OrderOptions,
		Columns: []screen.Column[Record]{
			{Label: "Date", Value: func(r Record) string { return screen.DisplayDate(r.Date) }},
			{Label: "Membre / Type", Value: func(r Record) string {
				if name := r.MemberName(); name != "" {
					return name
				}
				return r.Type
			}},
			{Label: "Montant", Value: func(r Record) string { return n.Amount(r.Amount.String()) }},
			{Label: "Description", Value: func(r Record) string { return r.Description }},
			{Label: "Statut", Value: statusLabel},
		},
		ID: func(r Record) string { return r.ID.String() },
		Label: func(r Record) string {
			return strings.TrimSpace(screen.DisplayDate(r.Date) + " " + n.Amount(r.Amount.String()))
		},
		NewForm: func(scope screen.Scope) Form {
			switch scope.Tab {
			case TabTithes, TabDonations:
				return Form{Status: StatusCompleted}
			case TabMoissons:
				return Form{Status: StatusMoisson}
			default:
				return Form{Status: StatusService, Type: offeringTypes[0].Value}
			}
		},
		ToForm: func(r Record) Form {
			memberID := r.MemberID.String()
			if memberID == "" && r.Member != nil {
				memberID = r.Member.ID.String()
			}
			return Form{
				Date:        screen.DateInput(r.Date),
				Amount:      r.Amount,
				Type:        r.Type,
				MemberID:    memberID,
				Description: r.Description,
				Status:      r.Status,
			}
		},
		Payload: func(scope screen.Scope, f Form) any {
			switch scope.Tab {
			case TabTithes, TabDonations:
				f.Type = ""
			case TabMoissons:
				f.Type, f.MemberID = "", ""
			default:
				f.MemberID = ""
			}
			return f
		},
		Writers: rbac.FinanceWriters,
	}
}

func statusLabel(r Record) string {
	for _, opt := range append(settlementStatuses, collectionStatuses...) {
		if opt.Value == r.Status {
			return opt.Label
		}
	}
	return r.Status
}

// NewHandler wires the finance screen to the API collections. Amounts are
// displayed in the currency of deps.Normalizer.
func NewHandler(client *apiclient.Client, deps screen.Deps) *screen.Handler[Record, Form] {
	n := deps.Normalizer
	if n == nil {
		n = export.NewNormalizer(export.DefaultCurrency)
	}
	return screen.NewHandler(NewDefinition(Sources{
		Offerings: apiclient.NewResource[Record](client, "offerings"),
		Tithes:    apiclient.NewResource[Record](client, "tithes"),
		Donations: apiclient.NewResource[Record](client, "donations"),
		Moissons:  apiclient.NewResource[Record](client, "moissons"),
	}, n), deps)
}
