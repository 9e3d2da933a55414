package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scorevc/internal/linkage/models"
	"scorevc/pkg/domain"
	"scorevc/pkg/platform/httputil"
	authmw "scorevc/pkg/platform/middleware/auth"
	"scorevc/pkg/requestcontext"
)

// Service defines the linkage operations exposed over HTTP.
type Service interface {
	Link(ctx context.Context, caller domain.Principal, signature, address string) (models.ScoreResult, error)
	Refresh(ctx context.Context, caller domain.Principal, signature, address string) (models.ScoreResult, error)
	LookupScore(ctx context.Context, caller domain.Principal) (float64, error)
	LookupScoreByAddress(ctx context.Context, caller domain.Principal, address string) (float64, error)
	LinkMessage(caller domain.Principal, address string) (string, error)
}

// Handler wires the /score endpoints to the linkage service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the score endpoints. All of them require a signed-in caller.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(h.logger))
		r.Post("/score/link", h.HandleLink)
		r.Post("/score/refresh", h.HandleRefresh)
		r.Get("/score", h.HandleLookupScore)
		r.Get("/score/address/{address}", h.HandleLookupScoreByAddress)
		r.Get("/score/link-message", h.HandleLinkMessage)
	})
}

// HandleLink handles POST /score/link.
func (h *Handler) HandleLink(w http.ResponseWriter, r *http.Request) {
	h.handleLink(w, r, h.service.Link, "link")
}

// HandleRefresh handles POST /score/refresh.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.handleLink(w, r, h.service.Refresh, "refresh")
}

type linkFunc func(ctx context.Context, caller domain.Principal, signature, address string) (models.ScoreResult, error)

func (h *Handler) handleLink(w http.ResponseWriter, r *http.Request, op linkFunc, name string) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	req, ok := httputil.DecodeAndPrepare[LinkRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := op(ctx, caller, req.Signature, req.Address)
	if err != nil {
		h.logger.WarnContext(ctx, "score "+name+" rejected",
			"request_id", requestID,
			"principal", caller.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromResult(result))
}

// HandleLookupScore handles GET /score.
func (h *Handler) HandleLookupScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	score, err := h.service.LookupScore(ctx, requestcontext.Caller(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ScoreResponse{Score: score})
}

// HandleLookupScoreByAddress handles GET /score/address/{address}.
func (h *Handler) HandleLookupScoreByAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	score, err := h.service.LookupScoreByAddress(ctx, requestcontext.Caller(ctx), chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ScoreResponse{Score: score})
}

// HandleLinkMessage handles GET /score/link-message?address=.
func (h *Handler) HandleLinkMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	msg, err := h.service.LinkMessage(requestcontext.Caller(ctx), r.URL.Query().Get("address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, LinkMessageResponse{Message: msg})
}
