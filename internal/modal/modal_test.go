package modal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sanctionForm struct {
	Member    string `form:"member" label:"Membre" validate:"required"`
	Email     string `form:"email" label:"Email" validate:"omitempty,email"`
	StartDate string `form:"start_date" label:"Date de début" validate:"required,datetime=2006-01-02"`
	EndDate   string `form:"end_date" label:"Date de fin" validate:"omitempty,datetime=2006-01-02"`
}

func (f sanctionForm) Check() map[string]string {
	if f.EndDate != "" && f.StartDate != "" && f.EndDate < f.StartDate {
		return map[string]string{"end_date": "La date de fin doit suivre la date de début"}
	}
	return nil
}

func validForm() sanctionForm {
	return sanctionForm{Member: "42", StartDate: "2025-01-01", EndDate: "2025-02-01"}
}

func TestValidatorMessagesInFrench(t *testing.T) {
	v := NewValidator()
	errs := v.Validate(sanctionForm{Email: "pas-un-email", StartDate: "01/02/2025"})
	require.Contains(t, errs, "member")
	assert.Equal(t, "Membre est obligatoire", errs["member"])
	assert.Equal(t, "Email doit être une adresse email valide", errs["email"])
	assert.Equal(t, "Date de début doit être une date valide", errs["start_date"])

	assert.Empty(t, v.Validate(validForm()))
}

func TestValidatorRunsCrossFieldChecks(t *testing.T) {
	form := validForm()
	form.EndDate = "2024-12-31"
	errs := NewValidator().Validate(form)
	assert.Equal(t, map[string]string{"end_date": "La date de fin doit suivre la date de début"}, errs)
}

func TestShellLifecycle(t *testing.T) {
	shell := NewShell[sanctionForm](nil)
	assert.Equal(t, Closed, shell.State())

	shell.Open(sanctionForm{StartDate: "2025-01-01"})
	assert.Equal(t, Pristine, shell.State())

	shell.Edit(validForm())
	assert.Equal(t, Dirty, shell.State())
	assert.True(t, shell.State().IsOpen())
}

func TestShellServerErrorKeepsValues(t *testing.T) {
	shell := NewShell[sanctionForm](nil)
	closed := 0
	shell.OnClose(func() { closed++ })
	shell.Open(sanctionForm{})
	shell.Edit(validForm())

	boom := errors.New("membre déjà sanctionné")
	err := shell.Submit(context.Background(), func(context.Context, sanctionForm) error { return boom })
	require.ErrorIs(t, err, boom)

	assert.Equal(t, Dirty, shell.State())
	assert.Equal(t, validForm(), shell.Values())
	assert.Equal(t, boom, shell.ServerError())
	assert.Zero(t, closed)
}

func TestShellSuccessResetsAndCloses(t *testing.T) {
	shell := NewShell[sanctionForm](nil)
	closed := 0
	shell.OnClose(func() { closed++ })
	defaults := sanctionForm{StartDate: "2025-01-01"}
	shell.Open(defaults)
	shell.Edit(validForm())

	var submitted sanctionForm
	err := shell.Submit(context.Background(), func(_ context.Context, f sanctionForm) error {
		submitted = f
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, validForm(), submitted)
	assert.Equal(t, Closed, shell.State())
	assert.Equal(t, defaults, shell.Values())
	assert.Equal(t, 1, closed)
}

func TestShellInvalidNeverCallsSubmit(t *testing.T) {
	shell := NewShell[sanctionForm](nil)
	shell.Open(sanctionForm{})
	called := false
	err := shell.Submit(context.Background(), func(context.Context, sanctionForm) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrInvalid)
	assert.False(t, called)
	assert.Equal(t, Dirty, shell.State())
	assert.Contains(t, shell.Errors(), "member")
}

func TestShellRejectsReentrantSubmit(t *testing.T) {
	shell := NewShell[sanctionForm](nil)
	shell.Open(validForm())
	var inner error
	err := shell.Submit(context.Background(), func(ctx context.Context, f sanctionForm) error {
		assert.Equal(t, Submitting, shell.State())
		inner = shell.Submit(ctx, func(context.Context, sanctionForm) error { return nil })
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrSubmitting)
}

func TestShellCancelDiscards(t *testing.T) {
	shell := NewShell[sanctionForm](nil)
	closed := 0
	shell.OnClose(func() { closed++ })
	shell.Open(validForm())
	shell.Edit(sanctionForm{Member: "x"})
	shell.Cancel()
	assert.Equal(t, Closed, shell.State())
	assert.Equal(t, sanctionForm{}, shell.Values())
	assert.Equal(t, 1, closed)

	shell.Cancel()
	assert.Equal(t, 1, closed, "cancelling a closed dialog is a no-op")

	err := shell.Submit(context.Background(), func(context.Context, sanctionForm) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDecodePostedForm(t *testing.T) {
	body := url.Values{"member": {"7"}, "start_date": {"2025-03-01"}, "ignored": {"x"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := Decode[sanctionForm](req)
	require.NoError(t, err)
	assert.Equal(t, sanctionForm{Member: "7", StartDate: "2025-03-01"}, form)
}
