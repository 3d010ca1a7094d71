package authz

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jurisdesk/jurisdesk/internal/shared"
)

// fakeDB is an in-memory db.Querier over the usuarios and permissoes
// tables, just enough SQL dispatch for the store's queries.
type fakeDB struct {
	superAdmins map[int64]bool
	grants      map[int64][]Grant
}

func newFakeDB() *fakeDB {
	return &fakeDB{superAdmins: map[int64]bool{}, grants: map[int64][]Grant{}}
}

func (f *fakeDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	userID := args[0].(int64)
	return &grantRows{grants: append([]Grant(nil), f.grants[userID]...), idx: -1}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if !strings.Contains(sql, "is_super_admin FROM usuarios WHERE id") {
		return errRow{errors.New("unexpected query: " + sql)}
	}
	admin, ok := f.superAdmins[args[0].(int64)]
	if !ok {
		return errRow{pgx.ErrNoRows}
	}
	return scanRow{func(dest ...any) error {
		*dest[0].(*bool) = admin
		return nil
	}}
}

func (f *fakeDB) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) BeginTx(_ context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	return &fakeTx{db: f}, nil
}

type fakeTx struct {
	db *fakeDB
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *fakeTx) Commit(context.Context) error          { return nil }
func (t *fakeTx) Rollback(context.Context) error        { return nil }
func (t *fakeTx) Conn() *pgx.Conn                       { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects        { return pgx.LargeObjects{} }

func (t *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}

func (t *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }

func (t *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not implemented")
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.HasPrefix(sql, "DELETE FROM permissoes"):
		delete(t.db.grants, args[0].(int64))
	case strings.HasPrefix(sql, "INSERT INTO permissoes"):
		userID := args[0].(int64)
		if _, ok := t.db.superAdmins[userID]; !ok {
			return pgconn.CommandTag{}, &pgconn.PgError{Code: pgFKViolation}
		}
		t.db.grants[userID] = append(t.db.grants[userID], Grant{
			UserID:    userID,
			Resource:  args[1].(string),
			Operation: args[2].(string),
			Allowed:   true,
		})
	}
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.db.Query(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.db.QueryRow(ctx, sql, args...)
}

type grantRows struct {
	grants []Grant
	idx    int
}

func (r *grantRows) Close()                                       {}
func (r *grantRows) Err() error                                   { return nil }
func (r *grantRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *grantRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *grantRows) Values() ([]any, error)                       { return nil, nil }
func (r *grantRows) RawValues() [][]byte                          { return nil }
func (r *grantRows) Conn() *pgx.Conn                              { return nil }

func (r *grantRows) Next() bool {
	r.idx++
	return r.idx < len(r.grants)
}

func (r *grantRows) Scan(dest ...any) error {
	g := r.grants[r.idx]
	*dest[0].(*int64) = g.UserID
	*dest[1].(*string) = g.Resource
	*dest[2].(*string) = g.Operation
	*dest[3].(*bool) = g.Allowed
	return nil
}

type errRow struct {
	err error
}

func (r errRow) Scan(...any) error { return r.err }

type scanRow struct {
	scan func(dest ...any) error
}

func (r scanRow) Scan(dest ...any) error { return r.scan(dest...) }

func newCachedStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(nil, client, DefaultCatalog(), nil, nil), mr
}

func primeCache(t *testing.T, mr *miniredis.Miniredis, userID string, perms cachedPerms) {
	t.Helper()
	data, err := json.Marshal(perms)
	require.NoError(t, err)
	require.NoError(t, mr.Set(permsCachePrefix+userID, string(data)))
}

func boolPtr(v bool) *bool { return &v }

func TestReplaceGrantsRejectsUnknownPairBeforeWrite(t *testing.T) {
	// nil pool: a write attempt would panic, so reaching the error proves
	// validation runs first
	store := NewStore(nil, nil, DefaultCatalog(), nil, nil)

	err := store.ReplaceGrants(context.Background(), 42, []Grant{
		{UserID: 42, Resource: "contratos", Operation: "listar", Allowed: true},
		{UserID: 42, Resource: "contratos", Operation: "exportar", Allowed: true},
	}, 1)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestReplaceGrantsThenListReturnsExactlyNewSet(t *testing.T) {
	db := newFakeDB()
	db.superAdmins[42] = false
	db.grants[42] = []Grant{{UserID: 42, Resource: "contratos", Operation: "deletar", Allowed: true}}
	store := NewStore(db, nil, DefaultCatalog(), nil, nil)

	err := store.ReplaceGrants(context.Background(), 42, []Grant{
		{UserID: 42, Resource: "contratos", Operation: "listar", Allowed: true},
		{UserID: 42, Resource: "contratos", Operation: "editar", Allowed: true},
		{UserID: 42, Resource: "clientes", Operation: "listar", Allowed: false},
	}, 1)
	require.NoError(t, err)

	got, err := store.ListGrants(context.Background(), 42)
	require.NoError(t, err)
	// only the allowed=true subset survives, the prior deletar grant is gone
	require.ElementsMatch(t, []Grant{
		{UserID: 42, Resource: "contratos", Operation: "listar", Allowed: true},
		{UserID: 42, Resource: "contratos", Operation: "editar", Allowed: true},
	}, got)
}

func TestReplaceGrantsForMissingUserIsNotFound(t *testing.T) {
	store := NewStore(newFakeDB(), nil, DefaultCatalog(), nil, nil)

	err := store.ReplaceGrants(context.Background(), 999, []Grant{
		{UserID: 999, Resource: "contratos", Operation: "listar", Allowed: true},
	}, 1)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGrantLookupForMissingUserIsNotFound(t *testing.T) {
	// the id names the inspected target user, not the calling principal,
	// so the error must map to 404 rather than an authorization failure
	store := NewStore(newFakeDB(), nil, DefaultCatalog(), nil, nil)

	_, err := store.IsSuperAdmin(context.Background(), 999)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.NotErrorIs(t, err, shared.ErrUserNotFound)

	_, err = store.GrantState(context.Background(), 999, "contratos", "listar")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGrantStateTriState(t *testing.T) {
	store, mr := newCachedStore(t)
	primeCache(t, mr, "42", cachedPerms{Grants: map[string]*bool{
		"contratos:listar": boolPtr(true),
		"contratos:editar": boolPtr(false),
	}})

	ctx := context.Background()

	state, err := store.GrantState(ctx, 42, "contratos", "listar")
	require.NoError(t, err)
	require.Equal(t, Granted, state)
	require.True(t, state.Allowed())

	state, err = store.GrantState(ctx, 42, "contratos", "editar")
	require.NoError(t, err)
	require.Equal(t, Denied, state)
	require.False(t, state.Allowed())

	state, err = store.GrantState(ctx, 42, "contratos", "deletar")
	require.NoError(t, err)
	require.Equal(t, NoRecord, state)
	require.False(t, state.Allowed())
}

func TestIsSuperAdminFromCache(t *testing.T) {
	store, mr := newCachedStore(t)
	primeCache(t, mr, "7", cachedPerms{SuperAdmin: true})

	ok, err := store.IsSuperAdmin(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestInvalidateUserDropsCachedSnapshot(t *testing.T) {
	store, mr := newCachedStore(t)
	primeCache(t, mr, "42", cachedPerms{Grants: map[string]*bool{"contratos:listar": boolPtr(true)}})

	store.InvalidateUser(context.Background(), 42)
	require.False(t, mr.Exists(permsCachePrefix+"42"))
}
