package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/ecclesia/ecclesia/internal/modal"
	"github.com/ecclesia/ecclesia/internal/rbac"
	"github.com/ecclesia/ecclesia/internal/shared"
	"github.com/ecclesia/ecclesia/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *modal.Validator
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      modal.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.With(httprate.LimitByIP(10, time.Minute)).Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginPageData struct {
	Email  string
	Errors map[string]string
	Next   string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if shared.PrincipalFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	data := loginPageData{Next: safeNext(r.URL.Query().Get("next"))}
	h.render(w, r, http.StatusOK, data)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, err := modal.Decode[Credentials](r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	data := loginPageData{Email: creds.Email, Next: safeNext(creds.Next)}
	if errs := h.validator.Validate(creds); len(errs) > 0 {
		data.Errors = errs
		h.render(w, r, http.StatusUnprocessableEntity, data)
		return
	}

	principal, err := h.service.Authenticate(r.Context(), creds.Email, creds.Password)
	if err != nil {
		status := http.StatusUnauthorized
		msg := "Email ou mot de passe incorrect"
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Error("login", slog.Any("error", err))
			status = http.StatusBadGateway
			msg = "Le serveur est indisponible, veuillez réessayer"
		}
		data.Errors = map[string]string{"general": msg}
		h.render(w, r, status, data)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
		h.logger.Warn("renew session", slog.Any("error", err))
	}
	sess.SetPrincipal(principal)
	if _, err := h.csrfManager.Rotate(sess); err != nil {
		h.logger.Warn("rotate csrf", slog.Any("error", err))
	}
	sess.AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: "Bienvenue " + principal.Name})
	h.logger.Info("login", slog.String("user_id", principal.UserID), slog.String("role", principal.Role))

	target := data.Next
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, rbac.LoginPath, http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	viewData := view.NewTemplateData(r, h.csrfManager, "Connexion", data)
	if err := h.templates.RenderStatus(w, status, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// safeNext keeps only local absolute paths so login cannot redirect off-site.
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	if strings.HasPrefix(next, rbac.LoginPath) {
		return ""
	}
	return next
}
