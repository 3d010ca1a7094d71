package authz

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jurisdesk/jurisdesk/internal/platform/httpx"
)

// Handler exposes the permission catalog and per-user grant management.
type Handler struct {
	logger    *slog.Logger
	catalog   *Catalog
	store     *Store
	presenter *Presenter
	mw        Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, catalog *Catalog, store *Store, mw Middleware) *Handler {
	return &Handler{
		logger:    logger,
		catalog:   catalog,
		store:     store,
		presenter: NewPresenter(catalog),
		mw:        mw,
	}
}

// MountRoutes registers permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAll("usuarios:gerenciar_permissoes"))
		r.Get("/recursos", h.listResources)
		r.Get("/usuarios/{id}", h.getUserPermissions)
		r.Put("/usuarios/{id}", h.replaceUserPermissions)
	})
}

type resourceEntry struct {
	Recurso   string   `json:"recurso"`
	Operacoes []string `json:"operacoes"`
}

func (h *Handler) listResources(w http.ResponseWriter, r *http.Request) {
	resources := h.catalog.Resources()
	entries := make([]resourceEntry, 0, len(resources))
	for _, resource := range resources {
		entries = append(entries, resourceEntry{Recurso: resource, Operacoes: h.catalog.Operations(resource)})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"recursos": entries,
		"total":    h.catalog.Len(),
	})
}

func (h *Handler) getUserPermissions(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id inválido")
		return
	}

	grants, err := h.store.ListGrants(r.Context(), userID)
	if err != nil {
		h.logger.Error("list grants", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	superAdmin, err := h.store.IsSuperAdmin(r.Context(), userID)
	if err != nil {
		h.logger.Error("resolve super admin", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	matrix := h.presenter.ToMatrix(grants)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"permissoes": h.presenter.ToGrants(userID, matrix),
		"matriz":     matrix,
		"superAdmin": superAdmin,
		"ativas":     h.presenter.CountActive(matrix),
		"total":      h.catalog.Len(),
	})
}

type replacePermissionsRequest struct {
	Permissoes []Grant `json:"permissoes"`
}

func (h *Handler) replaceUserPermissions(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id inválido")
		return
	}

	var req replacePermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "corpo da requisição inválido")
		return
	}
	for i := range req.Permissoes {
		req.Permissoes[i].UserID = userID
	}

	actingID := UserIDFromContext(r.Context())
	if err := h.store.ReplaceGrants(r.Context(), userID, req.Permissoes, actingID); err != nil {
		h.logger.Error("replace grants", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	grants, err := h.store.ListGrants(r.Context(), userID)
	if err != nil {
		h.logger.Error("reload grants", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	matrix := h.presenter.ToMatrix(grants)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"matriz": matrix,
		"ativas": h.presenter.CountActive(matrix),
		"total":  h.catalog.Len(),
	})
}
