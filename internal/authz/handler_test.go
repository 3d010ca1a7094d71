package authz

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/jurisdesk/jurisdesk/internal/shared"
)

func newPermissionsAPI(t *testing.T, store *Store) chi.Router {
	t.Helper()
	resolver := &stubResolver{users: map[string]UserRef{"admin": {ID: 1, SuperAdmin: true}}}
	gate := NewGate(DefaultCatalog(), resolver, store, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, DefaultCatalog(), store, Middleware{Gate: gate})
	r := chi.NewRouter()
	r.Route("/api/permissoes", h.MountRoutes)
	return r
}

func adminRequest(t *testing.T, router chi.Router, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sessionWithPrincipal("admin")))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestGetPermissionsForMissingUserIsNotFound(t *testing.T) {
	router := newPermissionsAPI(t, NewStore(newFakeDB(), nil, DefaultCatalog(), nil, nil))

	res := adminRequest(t, router, http.MethodGet, "/api/permissoes/usuarios/999")
	require.Equal(t, http.StatusNotFound, res.Code)
	require.Contains(t, res.Body.String(), "não encontrado")
}

func TestGetPermissionsReturnsMatrix(t *testing.T) {
	db := newFakeDB()
	db.superAdmins[42] = false
	db.grants[42] = []Grant{{UserID: 42, Resource: "contratos", Operation: "listar", Allowed: true}}
	router := newPermissionsAPI(t, NewStore(db, nil, DefaultCatalog(), nil, nil))

	res := adminRequest(t, router, http.MethodGet, "/api/permissoes/usuarios/42")
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		Ativas     int  `json:"ativas"`
		SuperAdmin bool `json:"superAdmin"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Equal(t, 1, body.Ativas)
	require.False(t, body.SuperAdmin)
}
