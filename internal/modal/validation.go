package modal

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/locales/fr"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	fr_translations "github.com/go-playground/validator/v10/translations/fr"
)

// maxUploadMemory bounds the in-memory part of multipart forms.
const maxUploadMemory = 8 << 20

// Checker is implemented by forms carrying cross-field rules. It returns
// messages keyed by form field name.
type Checker interface {
	Check() map[string]string
}

// Validator validates form structs and renders French messages. Field names
// in messages come from the `label` tag; errors are keyed by the `form` tag.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewValidator builds a validator with French translations.
func NewValidator() *Validator {
	validate := validator.New()
	locale := fr.New()
	uni := ut.New(locale, locale)
	translator, _ := uni.GetTranslator("fr")
	_ = fr_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if label := fld.Tag.Get("label"); label != "" {
			return label
		}
		return formKey(fld)
	})

	custom := map[string]string{
		"required": "{0} est obligatoire",
		"datetime": "{0} doit être une date valide",
		"email":    "{0} doit être une adresse email valide",
	}
	for tag, text := range custom {
		registerTranslation(validate, translator, tag, text)
	}
	return &Validator{validate: validate, translator: translator}
}

func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Validate returns field messages for values; an empty map means valid.
func (v *Validator) Validate(values any) map[string]string {
	out := map[string]string{}
	if err := v.validate.Struct(values); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			out["general"] = err.Error()
			return out
		}
		typ := reflect.TypeOf(values)
		for typ.Kind() == reflect.Pointer {
			typ = typ.Elem()
		}
		for _, fe := range fieldErrs {
			key := fe.StructField()
			if sf, ok := typ.FieldByName(fe.StructField()); ok {
				key = formKey(sf)
			}
			if _, seen := out[key]; !seen {
				out[key] = fe.Translate(v.translator)
			}
		}
	}
	if checker, ok := values.(Checker); ok {
		for key, msg := range checker.Check() {
			if _, seen := out[key]; !seen {
				out[key] = msg
			}
		}
	}
	return out
}

func formKey(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

var decoder = form.NewDecoder()

// Decode parses the posted form into a fresh F.
func Decode[F any](r *http.Request) (F, error) {
	var values F
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		err = r.ParseMultipartForm(maxUploadMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return values, err
	}
	if err := decoder.Decode(&values, r.PostForm); err != nil {
		return values, err
	}
	return values, nil
}
