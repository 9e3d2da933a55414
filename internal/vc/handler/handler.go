package handler

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"scorevc/internal/vc"
	"scorevc/internal/vc/models"
	"scorevc/pkg/domain"
	dErrors "scorevc/pkg/domain-errors"
	"scorevc/pkg/platform/httputil"
	adminmw "scorevc/pkg/platform/middleware/admin"
	authmw "scorevc/pkg/platform/middleware/auth"
	"scorevc/pkg/requestcontext"
)

// Service defines the issuance operations exposed over HTTP.
type Service interface {
	Prepare(ctx context.Context, caller domain.Principal, req models.PrepareRequest) (models.PreparedCredential, error)
	GetCredential(ctx context.Context, caller domain.Principal, req models.GetCredentialRequest) (models.IssuedCredential, error)
	ConsentMessage(req models.ConsentMessageRequest) (vc.ConsentInfo, error)
	DerivationOrigin(req models.DerivationOriginRequest) (models.DerivationOrigin, error)
	CertifiedRoot() models.CertifiedRoot
	Asset(path string) ([]byte, bool)
	ReplaceAssets(ctx context.Context, files map[string][]byte) (models.CertifiedRoot, error)
}

// Handler wires the issuance, certified-state and asset endpoints.
type Handler struct {
	service    Service
	adminToken string
	logger     *slog.Logger
	limit      func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithRateLimit wraps prepare and fetch. Public and admin routes are not limited.
func WithRateLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.limit = mw
	}
}

// New creates the handler. An empty adminToken disables PUT /admin/assets.
func New(service Service, adminToken string, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, adminToken: adminToken, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the endpoints. Prepare and fetch require a signed-in
// caller; the rest are public except the admin asset upload.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(h.logger))
		if h.limit != nil {
			r.Use(h.limit)
		}
		r.Post("/vc/prepare", h.HandlePrepare)
		r.Post("/vc/credential", h.HandleGetCredential)
	})
	r.Post("/vc/consent-message", h.HandleConsentMessage)
	r.Post("/vc/derivation-origin", h.HandleDerivationOrigin)
	r.Get("/certified/root", h.HandleCertifiedRoot)
	r.Get("/assets/*", h.HandleAsset)

	r.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(h.adminToken, h.logger))
		r.Put("/admin/assets", h.HandleReplaceAssets)
	})
}

// HandlePrepare handles POST /vc/prepare.
func (h *Handler) HandlePrepare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	req, ok := httputil.DecodeAndPrepare[PrepareRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	result, err := h.service.Prepare(ctx, caller, req.PrepareRequest)
	if err != nil {
		h.logger.WarnContext(ctx, "prepare rejected",
			"request_id", requestID,
			"principal", caller.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleGetCredential handles POST /vc/credential.
func (h *Handler) HandleGetCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	req, ok := httputil.DecodeAndPrepare[GetCredentialRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	result, err := h.service.GetCredential(ctx, caller, req.GetCredentialRequest)
	if err != nil {
		h.logger.WarnContext(ctx, "credential fetch rejected",
			"request_id", requestID,
			"principal", caller.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleConsentMessage handles POST /vc/consent-message.
func (h *Handler) HandleConsentMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ConsentMessageRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	info, err := h.service.ConsentMessage(req.ConsentMessageRequest)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

// HandleDerivationOrigin handles POST /vc/derivation-origin.
func (h *Handler) HandleDerivationOrigin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[DerivationOriginRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	origin, err := h.service.DerivationOrigin(req.DerivationOriginRequest)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, origin)
}

// HandleCertifiedRoot handles GET /certified/root.
func (h *Handler) HandleCertifiedRoot(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.CertifiedRoot())
}

// HandleAsset handles GET /assets/*. The certified root rides along in a
// header so clients can match the body against the certificate.
func (h *Handler) HandleAsset(w http.ResponseWriter, r *http.Request) {
	p := "/" + chi.URLParam(r, "*")
	body, ok := h.service.Asset(p)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "asset not found"))
		return
	}
	contentType := mime.TypeByExtension(path.Ext(p))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Certified-Root", h.service.CertifiedRoot().RootHash)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// HandleReplaceAssets handles PUT /admin/assets.
func (h *Handler) HandleReplaceAssets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ReplaceAssetsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	root, err := h.service.ReplaceAssets(ctx, req.Assets)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, root)
}
