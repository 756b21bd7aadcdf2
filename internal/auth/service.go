package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ecclesia/ecclesia/internal/apiclient"
	"github.com/ecclesia/ecclesia/internal/platform/httpx"
	"github.com/ecclesia/ecclesia/internal/shared"
)

// Service authenticates users against the church API.
type Service struct {
	api Authenticator
}

// NewService builds a Service.
func NewService(api Authenticator) *Service {
	return &Service{api: api}
}

// Authenticate verifies credentials and returns the session principal.
// Rejected credentials yield shared.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*shared.Principal, error) {
	res, err := s.api.Login(ctx, strings.TrimSpace(email), password)
	switch {
	case err == nil:
	case errors.Is(err, httpx.ErrUnauthorized), errors.Is(err, httpx.ErrValidation), errors.Is(err, httpx.ErrNotFound):
		return nil, shared.ErrInvalidCredentials
	default:
		return nil, fmt.Errorf("auth: login: %w", err)
	}
	if res.Token == "" {
		return nil, shared.ErrInvalidCredentials
	}
	user := res.User
	role := shared.NormalizeRole(user.Role)
	if role == "" {
		role = shared.RoleMember
	}
	principal := &shared.Principal{
		UserID:     user.ID.String(),
		Email:      user.Email,
		Name:       strings.TrimSpace(user.Firstname + " " + user.Lastname),
		Role:       role,
		ChurchID:   user.Church.ID.String(),
		ChurchName: user.Church.Name,
		Token:      res.Token,
	}
	if principal.ChurchName == "" && principal.ChurchID != "" {
		// A failed lookup leaves the name empty.
		if church, err := s.api.Church(apiclient.WithToken(ctx, res.Token), principal.ChurchID); err == nil {
			principal.ChurchName = church.Name
		}
	}
	return principal, nil
}
