package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jurisdesk/jurisdesk/internal/authz"
	"github.com/jurisdesk/jurisdesk/internal/platform/httpx"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	mw      authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAll("usuarios:listar"))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAll("usuarios:visualizar"))
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAll("usuarios:criar"))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAll("usuarios:editar"))
		r.Put("/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAll("usuarios:ativar_desativar"))
		r.Get("/{id}/desativacao", h.previewDeactivation)
		r.Post("/{id}/desativar", h.deactivate)
		r.Post("/{id}/reativar", h.reactivate)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	params := ListParams{Search: r.URL.Query().Get("busca")}
	if v := r.URL.Query().Get("ativo"); v != "" {
		active := v == "true" || v == "1"
		params.Active = &active
	}
	if v := r.URL.Query().Get("cargoId"); v != "" {
		params.CargoID, _ = strconv.ParseInt(v, 10, 64)
	}
	params.Page, _ = strconv.Atoi(r.URL.Query().Get("pagina"))
	params.Limit, _ = strconv.Atoi(r.URL.Query().Get("limite"))

	result, err := h.service.List(r.Context(), params)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var params CreateParams
	if err := httpx.DecodeJSON(r, &params); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "corpo da requisição inválido")
		return
	}
	user, err := h.service.Create(r.Context(), params, authz.UserIDFromContext(r.Context()))
	if err != nil {
		h.logger.Error("create user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var params UpdateParams
	if err := httpx.DecodeJSON(r, &params); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "corpo da requisição inválido")
		return
	}
	user, err := h.service.Update(r.Context(), id, params, authz.UserIDFromContext(r.Context()))
	if err != nil {
		h.logger.Error("update user", slog.Int64("user_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) previewDeactivation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	counts, err := h.service.PreviewDeactivation(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"contagens": counts, "total": counts.Total()})
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	counts, err := h.service.Deactivate(r.Context(), id, authz.UserIDFromContext(r.Context()))
	if err != nil {
		h.logger.Error("deactivate user", slog.Int64("user_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"contagens": counts, "total": counts.Total()})
}

func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Reactivate(r.Context(), id, authz.UserIDFromContext(r.Context())); err != nil {
		h.logger.Error("reactivate user", slog.Int64("user_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ativo": true})
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id inválido")
		return 0, false
	}
	return id, true
}
