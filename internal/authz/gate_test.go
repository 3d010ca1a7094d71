package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jurisdesk/jurisdesk/internal/shared"
)

type stubResolver struct {
	users map[string]UserRef
}

func (r *stubResolver) FindActiveByAuthID(_ context.Context, authID string) (UserRef, error) {
	u, ok := r.users[authID]
	if !ok {
		return UserRef{}, shared.ErrUserNotFound
	}
	return u, nil
}

type stubGrants struct {
	granted map[string]GrantState
	lookups []string
}

func (g *stubGrants) GrantState(_ context.Context, userID int64, resource, operation string) (GrantState, error) {
	key := resource + ":" + operation
	g.lookups = append(g.lookups, key)
	return g.granted[key], nil
}

func sessionWithPrincipal(id string) *shared.Session {
	sess := &shared.Session{}
	sess.SetPrincipal(id)
	return sess
}

func newTestGate(resolver *stubResolver, grants *stubGrants) *Gate {
	return NewGate(testCatalog(), resolver, grants, nil)
}

func TestAuthorizeUnauthenticated(t *testing.T) {
	gate := newTestGate(&stubResolver{}, &stubGrants{})

	_, err := gate.Authorize(context.Background(), nil, MustCapability("contratos:listar"))
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	_, err = gate.Authorize(context.Background(), &shared.Session{}, MustCapability("contratos:listar"))
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestAuthorizeDeactivatedUser(t *testing.T) {
	gate := newTestGate(&stubResolver{users: map[string]UserRef{}}, &stubGrants{})

	_, err := gate.Authorize(context.Background(), sessionWithPrincipal("gone"), MustCapability("contratos:listar"))
	require.ErrorIs(t, err, shared.ErrUserNotFound)
	// never leaks which capability was checked
	require.NotErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestAuthorizeSuperAdminBypass(t *testing.T) {
	resolver := &stubResolver{users: map[string]UserRef{"root": {ID: 1, SuperAdmin: true}}}
	grants := &stubGrants{}
	gate := newTestGate(resolver, grants)

	id, err := gate.Authorize(context.Background(), sessionWithPrincipal("root"),
		MustCapability("contratos:deletar"), MustCapability("clientes:listar"))
	require.NoError(t, err)
	require.EqualValues(t, 1, id)
	require.Empty(t, grants.lookups)
}

func TestAuthorizeGrantedAndDenied(t *testing.T) {
	resolver := &stubResolver{users: map[string]UserRef{"p42": {ID: 42}}}
	grants := &stubGrants{granted: map[string]GrantState{
		"contratos:listar": Granted,
		"contratos:editar": Granted,
	}}
	gate := newTestGate(resolver, grants)

	id, err := gate.Authorize(context.Background(), sessionWithPrincipal("p42"), MustCapability("contratos:listar"))
	require.NoError(t, err)
	require.EqualValues(t, 42, id)

	_, err = gate.Authorize(context.Background(), sessionWithPrincipal("p42"), MustCapability("contratos:deletar"))
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	var perm *PermissionError
	require.ErrorAs(t, err, &perm)
	require.Equal(t, "contratos", perm.Resource)
	require.Equal(t, "deletar", perm.Operation)
}

func TestAuthorizeFailsFastOnFirstMissing(t *testing.T) {
	resolver := &stubResolver{users: map[string]UserRef{"p42": {ID: 42}}}
	grants := &stubGrants{granted: map[string]GrantState{
		"contratos:listar": Granted,
	}}
	gate := newTestGate(resolver, grants)

	_, err := gate.Authorize(context.Background(), sessionWithPrincipal("p42"),
		MustCapability("contratos:listar"),
		MustCapability("contratos:editar"),
		MustCapability("contratos:deletar"))
	var perm *PermissionError
	require.ErrorAs(t, err, &perm)
	require.Equal(t, "editar", perm.Operation)
	// deletar is never looked up once editar misses
	require.Equal(t, []string{"contratos:listar", "contratos:editar"}, grants.lookups)
}

func TestAuthorizeExplicitDenyEqualsNoRecord(t *testing.T) {
	resolver := &stubResolver{users: map[string]UserRef{"p42": {ID: 42}}}
	grants := &stubGrants{granted: map[string]GrantState{
		"contratos:listar": Denied,
	}}
	gate := newTestGate(resolver, grants)

	_, err := gate.Authorize(context.Background(), sessionWithPrincipal("p42"), MustCapability("contratos:listar"))
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestAuthorizeUnknownCapabilityIsValidationError(t *testing.T) {
	resolver := &stubResolver{users: map[string]UserRef{"p42": {ID: 42}}}
	gate := newTestGate(resolver, &stubGrants{})

	_, err := gate.Authorize(context.Background(), sessionWithPrincipal("p42"), Capability{Resource: "contratos", Operation: "exportar"})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.NotErrorIs(t, err, shared.ErrPermissionDenied)
}
