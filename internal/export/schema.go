package export

// FieldSpec maps a column label onto one or more dot paths of the entity's
// JSON form. Several paths are joined with a space (first and last names).
type FieldSpec struct {
	Label  string
	Paths  []string
	Format FieldFormat
}

func field(label string, format FieldFormat, paths ...string) FieldSpec {
	return FieldSpec{Label: label, Paths: paths, Format: format}
}

var financeFields = []FieldSpec{
	field("Date", Date, "date"),
	field("Membre", Name, "member.firstname", "member.lastname"),
	field("Montant", Amount, "amount"),
	field("Description", Text, "description"),
	field("Statut", Status, "status"),
}

var schemas = map[Kind][]FieldSpec{
	KindMember: {
		field("Prénom", Name, "firstname"),
		field("Nom", Name, "lastname"),
		field("Email", Text, "email"),
		field("Téléphone", Text, "mobilePhone"),
		field("Genre", Status, "sex"),
		field("Ville", Text, "city"),
		field("Pays", Text, "country"),
		field("Profession", Text, "profession"),
		field("État Civil", Status, "etatCivil"),
		field("Rôle", Status, "role"),
	},
	KindCommittee: {
		field("Nom", Name, "name"),
		field("Description", Text, "description"),
		field("Jour de réunion", Status, "meetingDay"),
		field("Heure", Status, "meetingTime"),
		field("Responsable", Name, "leader"),
		field("Membres", Count, "membersCount"),
		field("Créé le", Date, "createdAt"),
	},
	KindMinistry: {
		field("Nom", Name, "name"),
		field("Description", Text, "description"),
		field("Responsable", Name, "leader"),
		field("Membres", Count, "membersCount"),
		field("Créé le", Date, "createdAt"),
	},
	KindPastor: {
		field("Prénom", Name, "firstname"),
		field("Nom", Name, "lastname"),
		field("Email", Text, "email"),
		field("Téléphone", Text, "phone"),
		field("Titre", Status, "title"),
		field("Ordination", Date, "ordinationDate"),
		field("Église", Name, "church.name"),
	},
	KindSanction: {
		field("Membre", Name, "member.firstname", "member.lastname"),
		field("Motif", Text, "reason"),
		field("Début", Date, "startDate"),
		field("Fin", Date, "endDate"),
		field("Statut", Status, "status"),
	},
	KindTithe:    financeFields,
	KindDonation: financeFields,
	KindOffering: {
		field("Date", Date, "date"),
		field("Type", Status, "type"),
		field("Montant", Amount, "amount"),
		field("Description", Text, "description"),
		field("Statut", Status, "status"),
	},
	KindMoisson: {
		field("Date", Date, "date"),
		field("Montant", Amount, "amount"),
		field("Description", Text, "description"),
		field("Statut", Status, "status"),
	},
	KindTransfer: {
		field("Membre", Name, "member.firstname", "member.lastname"),
		field("Église d'origine", Name, "fromChurch.name"),
		field("Église de destination", Name, "toChurch.name"),
		field("Date", Date, "date"),
		field("Statut", Status, "status"),
		field("Motif", Text, "reason"),
	},
	KindStatistics: {
		field("Indicateur", Name, "label"),
		field("Valeur", Text, "value"),
	},
}

// Schema returns the ordered field list of kind.
func Schema(kind Kind) ([]FieldSpec, bool) {
	fields, ok := schemas[kind]
	return fields, ok
}

// Columns returns the report columns of kind.
func Columns(kind Kind) ([]Column, error) {
	fields, ok := schemas[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	cols := make([]Column, len(fields))
	for i, f := range fields {
		cols[i] = Column{Label: f.Label, Format: f.Format}
	}
	return cols, nil
}
