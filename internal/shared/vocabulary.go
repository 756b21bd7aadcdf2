package shared

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Sex values as stored by the API.
const (
	SexMale   = "homme"
	SexFemale = "femme"
)

var ligatures = strings.NewReplacer("œ", "oe", "Œ", "OE", "æ", "ae", "Æ", "AE", "ß", "ss")

// Fold strips diacritics and expands common ligatures.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, ligatures.Replace(s))
	if err != nil {
		return s
	}
	return out
}

func vocabularyKey(raw string) string {
	return Fold(strings.ToLower(strings.TrimSpace(raw)))
}

var sexAliases = map[string]string{
	"m": SexMale, "h": SexMale, "homme": SexMale, "masculin": SexMale, "male": SexMale,
	"f": SexFemale, "femme": SexFemale, "feminin": SexFemale, "female": SexFemale,
}

// NormalizeSex maps the spellings seen upstream onto SexMale or SexFemale.
// Unknown values come back lower-cased.
func NormalizeSex(raw string) string {
	key := vocabularyKey(raw)
	if sex, ok := sexAliases[key]; ok {
		return sex
	}
	return key
}

var roleAliases = map[string]string{
	"admin": RoleAdmin, "administrateur": RoleAdmin, "administratrice": RoleAdmin,
	"pasteur": RolePastor, "pastor": RolePastor,
	"secretaire": RoleSecretary, "secretary": RoleSecretary,
	"tresorier": RoleTreasurer, "tresoriere": RoleTreasurer, "treasurer": RoleTreasurer,
	"membre": RoleMember, "member": RoleMember,
}

// NormalizeRole maps labels such as "Membre" or "Trésorier" onto role keys.
// Unknown values come back lower-cased.
func NormalizeRole(raw string) string {
	key := vocabularyKey(raw)
	if role, ok := roleAliases[key]; ok {
		return role
	}
	return key
}
