package stats

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/ecclesia/ecclesia/internal/export"
	"github.com/ecclesia/ecclesia/internal/platform/httpx"
	"github.com/ecclesia/ecclesia/internal/screen"
	"github.com/ecclesia/ecclesia/internal/shared"
	"github.com/ecclesia/ecclesia/internal/view"
)

// Handler serves the dashboard home page and the statistics export.
type Handler struct {
	service    *Service
	logger     *slog.Logger
	templates  *view.Engine
	csrf       *shared.CSRFManager
	normalizer *export.Normalizer
	exports    screen.ExportObserver
}

// NewHandler builds the home handler from the shared screen deps.
func NewHandler(service *Service, deps screen.Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	n := deps.Normalizer
	if n == nil {
		n = export.NewNormalizer(export.DefaultCurrency)
	}
	return &Handler{
		service:    service,
		logger:     logger.With(slog.String("screen", "home")),
		templates:  deps.Templates,
		csrf:       deps.CSRF,
		normalizer: n,
		exports:    deps.Exports,
	}
}

// MountRoutes registers the home routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.home)
	r.With(httprate.LimitByIP(20, time.Minute)).Get("/stats/export", h.export)
}

type homeData struct {
	Snapshot Snapshot
	Totals   []totalView
	Formats  []export.Format
	Error    string
	Cached   bool
}

type totalView struct {
	Label  string
	Count  int
	Amount string
}

func scope(r *http.Request) string {
	if p := shared.PrincipalFromContext(r.Context()); p != nil {
		return "church:" + p.ChurchID
	}
	return "anonymous"
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	data := homeData{Formats: export.Formats}
	snap, cached, err := h.service.Snapshot(r.Context(), scope(r))
	if err != nil {
		if h.expired(w, r, err) {
			return
		}
		h.logger.Error("load statistics", slog.Any("error", err))
		status = http.StatusBadGateway
		data.Error = screen.FailureMessage(err)
	} else {
		data.Snapshot = snap
		data.Cached = cached
		for _, t := range snap.Finance {
			data.Totals = append(data.Totals, totalView{Label: t.Label, Count: t.Count, Amount: h.normalizer.Amount(FormatAmount(t.Amount))})
		}
	}
	viewData := view.NewTemplateData(r, h.csrf, "Tableau de bord", data)
	if err := h.templates.RenderStatus(w, status, "pages/home.html", viewData); err != nil {
		h.logger.Error("render home", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.flashHome(w, r, "Format d'export inconnu")
		return
	}
	snap, _, err := h.service.Snapshot(r.Context(), scope(r))
	if err == nil {
		var data []byte
		ref := export.NewReference()
		data, err = h.render(r, format, snap, ref)
		if err == nil {
			h.observe(format, nil)
			w.Header().Set(export.ReferenceHeader, ref)
			if err := httpx.Attachment(w, export.ContentType(format), export.Filename("statistiques", format), data); err != nil {
				h.logger.Warn("write export", slog.Any("error", err))
			}
			return
		}
	}
	h.observe(format, err)
	if h.expired(w, r, err) {
		return
	}
	h.logger.Error("export statistics", slog.Any("error", err))
	h.flashHome(w, r, "L'export a échoué")
}

func (h *Handler) render(r *http.Request, format export.Format, snap Snapshot, ref string) ([]byte, error) {
	meta := export.Meta{Title: "Statistiques", GeneratedAt: snap.GeneratedAt, Reference: ref}
	if p := shared.PrincipalFromContext(r.Context()); p != nil {
		meta.ChurchName = p.ChurchName
	}
	report, err := export.Build(h.normalizer, export.KindStatistics, "statistiques", Rows(snap, h.normalizer), meta)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := export.Export(&buf, format, report); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *Handler) observe(format export.Format, err error) {
	if h.exports != nil {
		h.exports.ObserveExport(string(format), err)
	}
}

func (h *Handler) flashHome(w http.ResponseWriter, r *http.Request, msg string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: shared.FlashError, Message: msg})
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) expired(w http.ResponseWriter, r *http.Request, err error) bool {
	return screen.EndExpiredSession(w, r, err)
}
