package auth

import (
	"context"

	"github.com/ecclesia/ecclesia/internal/apiclient"
)

// Authenticator exchanges credentials for an API token and resolves the
// user's church. Implemented by *apiclient.Client.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (apiclient.LoginResult, error)
	Church(ctx context.Context, id string) (apiclient.Church, error)
}

// Credentials is the posted login form.
type Credentials struct {
	Email    string `form:"email" label:"Email" validate:"required,email"`
	Password string `form:"password" label:"Mot de passe" validate:"required"`
	Next     string `form:"next"`
}
