// Package members serves the member directory: the list screen plus badge
// printing, role changes and transfer requests.
package members

import (
	"strings"
	"time"

	"github.com/ecclesia/ecclesia/internal/apiclient"
	"github.com/ecclesia/ecclesia/internal/export"
	"github.com/ecclesia/ecclesia/internal/listing"
	"github.com/ecclesia/ecclesia/internal/rbac"
	"github.com/ecclesia/ecclesia/internal/screen"
	"github.com/ecclesia/ecclesia/internal/shared"
)

var (
	sexes = []screen.Option{{Value: shared.SexMale, Label: "Masculin"}, {Value: shared.SexFemale, Label: "Féminin"}}

	civilStatuses = []screen.Option{
		{Value: "celibataire", Label: "Célibataire"},
		{Value: "marie", Label: "Marié(e)"},
		{Value: "divorce", Label: "Divorcé(e)"},
		{Value: "veuf", Label: "Veuf/Veuve"},
	}

	ageCategories = []screen.Option{
		{Value: listing.AgeChild, Label: "Enfant (0-12)"},
		{Value: listing.AgeAdolescent, Label: "Adolescent (13-17)"},
		{Value: listing.AgeYoung, Label: "Jeune (18-35)"},
		{Value: listing.AgeAdult, Label: "Adulte (36+)"},
	}

	// Roles are the assignable roles, in display order.
	Roles = []screen.Option{
		{Value: shared.RoleMember, Label: "Membre"},
		{Value: shared.RoleSecretary, Label: "Secrétaire"},
		{Value: shared.RoleTreasurer, Label: "Trésorier"},
		{Value: shared.RolePastor, Label: "Pasteur"},
		{Value: shared.RoleAdmin, Label: "Administrateur"},
	}
)

// RoleManagers may change a member's role.
var RoleManagers = rbac.Policy{Name: "members.role", Roles: []string{shared.RoleAdmin, shared.RolePastor}}

// Member mirrors the API member resource.
type Member struct {
	ID          apiclient.ID      `json:"id"`
	Firstname   string            `json:"firstname"`
	Lastname    string            `json:"lastname"`
	Email       string            `json:"email"`
	MobilePhone string            `json:"mobilePhone"`
	Sex         string            `json:"sex"`
	BirthDate   string            `json:"birthDate"`
	City        string            `json:"city"`
	Country     string            `json:"country"`
	Profession  string            `json:"profession"`
	EtatCivil   string            `json:"etatCivil"`
	Role        string            `json:"role"`
	Photo       string            `json:"photo"`
	CreatedAt   string            `json:"createdAt"`
	Church      *apiclient.Church `json:"church,omitempty"`
}

// FullName joins first and last names.
func (m Member) FullName() string {
	return strings.TrimSpace(m.Firstname + " " + m.Lastname)
}

// Form is the create/edit payload, posted upstream as multipart with the
// optional photo.
type Form struct {
	Firstname   string `form:"firstname" json:"firstname" label:"Prénom" validate:"required,max=80"`
	Lastname    string `form:"lastname" json:"lastname" label:"Nom" validate:"required,max=80"`
	Email       string `form:"email" json:"email" label:"Email" validate:"omitempty,email"`
	MobilePhone string `form:"mobilePhone" json:"mobilePhone" label:"Téléphone" validate:"omitempty,max=20"`
	Sex         string `form:"sex" json:"sex" label:"Sexe" validate:"omitempty,oneof=homme femme"`
	BirthDate   string `form:"birthDate" json:"birthDate" label:"Date de naissance" validate:"omitempty,datetime=2006-01-02"`
	City        string `form:"city" json:"city" label:"Ville"`
	Country     string `form:"country" json:"country" label:"Pays"`
	Profession  string `form:"profession" json:"profession" label:"Profession"`
	EtatCivil   string `form:"etatCivil" json:"etatCivil" label:"État civil" validate:"omitempty,oneof=celibataire marie divorce veuf"`
}

// Check rejects birth dates in the future.
func (f Form) Check() map[string]string {
	if born, ok := listing.ParseDate(f.BirthDate); ok && born.After(time.Now()) {
		return map[string]string{"birthDate": "La date de naissance ne peut pas être dans le futur"}
	}
	return nil
}

func optionLabel(opts []screen.Option, value string) string {
	for _, opt := range opts {
		if opt.Value == value {
			return opt.Label
		}
	}
	return value
}

func sexLabel(m Member) string {
	if label := optionLabel(sexes, shared.NormalizeSex(m.Sex)); label != shared.NormalizeSex(m.Sex) {
		return label
	}
	return m.Sex
}

func roleLabel(m Member) string {
	if label := optionLabel(Roles, shared.NormalizeRole(m.Role)); label != shared.NormalizeRole(m.Role) {
		return label
	}
	return m.Role
}

var spec = listing.Spec[Member]{
	SearchFields: map[string]listing.Accessor[Member]{
		"name":  listing.Text(Member.FullName),
		"email": listing.Text(func(m Member) string { return m.Email }),
		"phone": listing.Text(func(m Member) string { return m.MobilePhone }),
	},
	Dimensions: []listing.Dimension[Member]{
		listing.AgeCategory("age", listing.Date(func(m Member) string { return m.BirthDate })),
		listing.Equals("sex", listing.Text(func(m Member) string { return shared.NormalizeSex(m.Sex) })),
		listing.Equals("etatCivil", listing.Text(func(m Member) string { return m.EtatCivil })),
		listing.Equals("role", listing.Text(func(m Member) string { return shared.NormalizeRole(m.Role) })),
	},
	Timestamp: listing.Date(func(m Member) string { return m.CreatedAt }),
}

// NewDefinition describes the member screen. Photos are resolved against
// assetOrigin.
func NewDefinition(source screen.MultipartSource[Member], assetOrigin string) screen.Definition[Member, Form] {
	return screen.Definition[Member, Form]{
		Name:     "members",
		Title:    "Membres",
		BasePath: "/members",
		Singular: "Membre",
		Tabs: []screen.Tab[Member]{{
			Key: "all", Label: "Tous", Source: source, Kind: export.KindMember, ExportName: "membres",
		}},
		Spec: spec,
		SearchFields: []screen.Option{
			{Value: "name", Label: "Nom"},
			{Value: "email", Label: "Email"},
			{Value: "phone", Label: "Téléphone"},
		},
		Filters: []screen.Field{
			screen.SelectFilter("age", "Catégorie d'âge", ageCategories...),
			screen.SelectFilter("sex", "Sexe", sexes...),
			screen.SelectFilter("etatCivil", "État civil", civilStatuses...),
			screen.SelectFilter("role", "Rôle", Roles...),
		},
		Orders: screen.OrderOptions,
		Columns: []screen.Column[Member]{
			{Label: "", Value: func(m Member) string { return apiclient.AssetURL(assetOrigin, m.Photo) }, Image: true},
			{Label: "Nom", Value: Member.FullName},
			{Label: "Email", Value: func(m Member) string { return m.Email }},
			{Label: "Téléphone", Value: func(m Member) string { return m.MobilePhone }},
			{Label: "Sexe", Value: sexLabel},
			{Label: "Rôle", Value: roleLabel},
		},
		FormFields: []screen.Field{
			{Name: "firstname", Label: "Prénom", Type: screen.InputText, Required: true},
			{Name: "lastname", Label: "Nom", Type: screen.InputText, Required: true},
			{Name: "email", Label: "Email", Type: screen.InputEmail},
			{Name: "mobilePhone", Label: "Téléphone", Type: screen.InputTel},
			{Name: "sex", Label: "Sexe", Type: screen.InputSelect, Options: append([]screen.Option{{Value: "", Label: "—"}}, sexes...)},
			{Name: "birthDate", Label: "Date de naissance", Type: screen.InputDate},
			{Name: "etatCivil", Label: "État civil", Type: screen.InputSelect, Options: append([]screen.Option{{Value: "", Label: "—"}}, civilStatuses...)},
			{Name: "city", Label: "Ville", Type: screen.InputText},
			{Name: "country", Label: "Pays", Type: screen.InputText},
			{Name: "profession", Label: "Profession", Type: screen.InputText},
			{Name: "photo", Label: "Photo", Type: screen.InputFile},
		},
		Actions: []screen.RowAction{
			{Label: "Badge", Path: "badge", Download: true},
			{Label: "Rôle", Path: "role", Policy: RoleManagers},
			{Label: "Transférer", Path: "transfer", Policy: rbac.DirectoryWriters},
		},
		ID:      func(m Member) string { return m.ID.String() },
		Label:   Member.FullName,
		NewForm: func(screen.Scope) Form { return Form{} },
		ToForm: func(m Member) Form {
			return Form{
				Firstname:   m.Firstname,
				Lastname:    m.Lastname,
				Email:       m.Email,
				MobilePhone: m.MobilePhone,
				Sex:         shared.NormalizeSex(m.Sex),
				BirthDate:   screen.DateInput(m.BirthDate),
				City:        m.City,
				Country:     m.Country,
				Profession:  m.Profession,
				EtatCivil:   m.EtatCivil,
			}
		},
		Prepare: func(_ screen.Scope, f Form) Form {
			f.Sex = shared.NormalizeSex(f.Sex)
			return f
		},
		Payload: func(scope screen.Scope, f Form) any {
			fields := screen.FormValues(f)
			if scope.Principal != nil && scope.Principal.ChurchID != "" {
				fields.Set("churchId", scope.Principal.ChurchID)
			}
			return fields
		},
		Upload:  "photo",
		Writers: rbac.DirectoryWriters,
	}
}
