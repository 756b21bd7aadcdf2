package members

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ecclesia/ecclesia/internal/apiclient"
	"github.com/ecclesia/ecclesia/internal/badge"
	"github.com/ecclesia/ecclesia/internal/listing"
	"github.com/ecclesia/ecclesia/internal/modal"
	"github.com/ecclesia/ecclesia/internal/platform/httpx"
	"github.com/ecclesia/ecclesia/internal/rbac"
	"github.com/ecclesia/ecclesia/internal/screen"
	"github.com/ecclesia/ecclesia/internal/shared"
	"github.com/ecclesia/ecclesia/internal/transfers"
)

// Badges renders member cards. Implemented by badge.Rasterizer.
type Badges interface {
	Rasterize(ctx context.Context, card badge.Card) ([]byte, error)
	PDF(ctx context.Context, card badge.Card) ([]byte, error)
}

// Options configures the member screen beyond the shared screen deps.
type Options struct {
	AssetOrigin string
	Badges      Badges
}

// RoleForm is the role change payload.
type RoleForm struct {
	Role string `form:"role" json:"role" label:"Rôle" validate:"required,oneof=admin pasteur secretaire tresorier membre"`
}

var roleFields = []screen.Field{{Name: "role", Label: "Rôle", Type: screen.InputSelect, Options: Roles, Required: true}}

// Handler serves the member screen and its per-member actions.
type Handler struct {
	*screen.Handler[Member, Form]
	members   screen.Source[Member]
	transfers screen.Source[transfers.Transfer]
	opts      Options
	rbac      rbac.Middleware
}

// NewHandler wires the member screen to the API.
func NewHandler(client *apiclient.Client, deps screen.Deps, opts Options) *Handler {
	members := apiclient.NewResource[Member](client, "members")
	return &Handler{
		Handler:   screen.NewHandler(NewDefinition(members, opts.AssetOrigin), deps),
		members:   members,
		transfers: transfers.NewResource(client),
		opts:      opts,
		rbac:      deps.RBAC,
	}
}

// MountRoutes registers the list screen and the member actions.
func (h *Handler) MountRoutes(r chi.Router) {
	h.Handler.MountRoutes(r)
	r.Get("/{id}/badge", h.badge)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePolicy(RoleManagers))
		r.Get("/{id}/role", h.showRole)
		r.Post("/{id}/role", h.changeRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePolicy(rbac.DirectoryWriters))
		r.Get("/{id}/transfer", h.showTransfer)
		r.Post("/{id}/transfer", h.requestTransfer)
	})
}

func (h *Handler) badge(w http.ResponseWriter, r *http.Request) {
	if h.opts.Badges == nil {
		h.Done(w, r, shared.FlashError, "La génération de badges n'est pas configurée")
		return
	}
	m, err := h.Find(r, chi.URLParam(r, "id"))
	if err != nil {
		h.Fail(w, r, "fetch member", err, "Impossible de charger le membre")
		return
	}
	card := h.card(r, m)

	if r.URL.Query().Get("format") == "pdf" {
		data, err := h.opts.Badges.PDF(r.Context(), card)
		if err != nil {
			h.Fail(w, r, "print badge", err, "La génération du badge a échoué")
			return
		}
		name := strings.TrimSuffix(card.Filename(), ".png") + ".pdf"
		if err := httpx.Attachment(w, "application/pdf", name, data); err != nil {
			h.Logger().Warn("write badge", slog.Any("error", err))
		}
		return
	}

	data, err := h.opts.Badges.Rasterize(r.Context(), card)
	if err != nil {
		msg := "La génération du badge a échoué"
		if errors.Is(err, badge.ErrBlankCanvas) {
			msg = "Le badge généré est vide, veuillez réessayer"
		}
		h.Fail(w, r, "rasterize badge", err, msg)
		return
	}
	if err := httpx.Attachment(w, "image/png", card.Filename(), data); err != nil {
		h.Logger().Warn("write badge", slog.Any("error", err))
	}
}

func (h *Handler) card(r *http.Request, m Member) badge.Card {
	church := ""
	if m.Church != nil {
		church = m.Church.Name
	}
	if church == "" {
		if p := shared.PrincipalFromContext(r.Context()); p != nil {
			church = p.ChurchName
		}
	}
	return badge.Card{
		MemberID:   m.ID.String(),
		FirstName:  m.Firstname,
		LastName:   m.Lastname,
		Role:       roleLabel(m),
		Phone:      m.MobilePhone,
		ChurchName: church,
		PhotoURL:   apiclient.AssetURL(h.opts.AssetOrigin, m.Photo),
		IssuedAt:   time.Now(),
	}
}

func (h *Handler) showRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, err := h.Find(r, id)
	if err != nil {
		h.Fail(w, r, "fetch member", err, "Impossible de charger le membre")
		return
	}
	d := screen.OpenDialog(h.Validator(), screen.Selection{Action: "role", ID: id}, RoleForm{Role: shared.NormalizeRole(m.Role)})
	h.RenderModal(w, r, http.StatusOK, h.roleModal(d, h.Label(m), nil))
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	values, err := modal.Decode[RoleForm](r)
	if err != nil {
		h.Done(w, r, shared.FlashError, "Formulaire invalide")
		return
	}
	release, ok := h.Claim(w, r, "role")
	if !ok {
		return
	}
	values.Role = shared.NormalizeRole(values.Role)
	d := screen.OpenDialog(h.Validator(), screen.Selection{Action: "role", ID: id}, RoleForm{})
	d.Shell.Edit(values)
	err = d.Shell.Submit(r.Context(), func(ctx context.Context, f RoleForm) error {
		return h.members.Update(ctx, id, f)
	})
	if err != nil {
		release()
	}
	switch {
	case err == nil:
		h.Done(w, r, shared.FlashSuccess, "Rôle mis à jour")
	case errors.Is(err, modal.ErrInvalid):
		h.RenderModal(w, r, http.StatusUnprocessableEntity, h.roleModal(d, id, nil))
	default:
		if errors.Is(err, httpx.ErrUnauthorized) {
			h.Fail(w, r, "change role", err, "")
			return
		}
		h.Logger().Error("change role", slog.String("id", id), slog.Any("error", err))
		h.RenderModal(w, r, httpx.StatusOf(err), h.roleModal(d, id, err))
	}
}

func (h *Handler) roleModal(d *screen.Dialog[RoleForm], label string, serverErr error) *screen.ModalView {
	m := screen.NewModal("Changer le rôle de "+label, h.ItemURL(d.Selection.ID, "role"), h.ListURL(),
		roleFields, screen.FormValues(d.Shell.Values()), d.Shell.Errors())
	m.State = d.Shell.State().String()
	if serverErr != nil {
		m.ServerError = screen.FailureMessage(serverErr)
	}
	return m
}

func (h *Handler) showTransfer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, err := h.Find(r, id)
	if err != nil {
		h.Fail(w, r, "fetch member", err, "Impossible de charger le membre")
		return
	}
	d := screen.OpenDialog(h.Validator(), screen.Selection{Action: "transfer", ID: id}, transfers.NewForm(id, listing.Today()))
	h.RenderModal(w, r, http.StatusOK, h.transferModal(d, h.Label(m), nil))
}

func (h *Handler) requestTransfer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	values, err := modal.Decode[transfers.Form](r)
	if err != nil {
		h.Done(w, r, shared.FlashError, "Formulaire invalide")
		return
	}
	release, ok := h.Claim(w, r, "transfer")
	if !ok {
		return
	}
	values.MemberID = id
	values = values.WithOrigin(screen.Scope{Principal: shared.PrincipalFromContext(r.Context())})

	d := screen.OpenDialog(h.Validator(), screen.Selection{Action: "transfer", ID: id}, transfers.NewForm(id, ""))
	d.Shell.Edit(values)
	err = d.Shell.Submit(r.Context(), func(ctx context.Context, f transfers.Form) error {
		_, err := h.transfers.Create(ctx, f)
		return err
	})
	if err != nil {
		release()
	}
	switch {
	case err == nil:
		h.Done(w, r, shared.FlashSuccess, "Demande de transfert enregistrée")
	case errors.Is(err, modal.ErrInvalid):
		h.RenderModal(w, r, http.StatusUnprocessableEntity, h.transferModal(d, id, nil))
	default:
		if errors.Is(err, httpx.ErrUnauthorized) {
			h.Fail(w, r, "request transfer", err, "")
			return
		}
		h.Logger().Error("request transfer", slog.String("id", id), slog.Any("error", err))
		h.RenderModal(w, r, httpx.StatusOf(err), h.transferModal(d, id, err))
	}
}

func (h *Handler) transferModal(d *screen.Dialog[transfers.Form], label string, serverErr error) *screen.ModalView {
	fields := make([]screen.Field, 0, len(transfers.Fields))
	for _, f := range transfers.Fields {
		if f.Name != "memberId" {
			fields = append(fields, f)
		}
	}
	m := screen.NewModal("Transférer "+label, h.ItemURL(d.Selection.ID, "transfer"), h.ListURL(),
		fields, screen.FormValues(d.Shell.Values()), d.Shell.Errors())
	m.Submit = "Transférer"
	m.State = d.Shell.State().String()
	if serverErr != nil {
		m.ServerError = screen.FailureMessage(serverErr)
	}
	return m
}
