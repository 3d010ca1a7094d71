package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jurisdesk/jurisdesk/internal/shared"
)

type memoryRepo struct {
	users       map[int64]User
	counts      DeactivationCounts
	nextID      int64
	cascadeRuns int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[int64]User)}
}

func (r *memoryRepo) add(u User) User {
	r.nextID++
	u.ID = r.nextID
	r.users[u.ID] = u
	return u
}

func (r *memoryRepo) FindByID(_ context.Context, id int64) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (r *memoryRepo) List(_ context.Context, params ListParams) (ListResult, error) {
	out := ListResult{Page: params.Page, Limit: params.Limit}
	for _, u := range r.users {
		out.Users = append(out.Users, u)
		out.Total++
	}
	return out, nil
}

func (r *memoryRepo) Create(_ context.Context, u User) (User, error) {
	return r.add(u), nil
}

func (r *memoryRepo) Update(_ context.Context, u User) (User, error) {
	if _, ok := r.users[u.ID]; !ok {
		return User{}, shared.ErrNotFound
	}
	r.users[u.ID] = u
	return u, nil
}

func (r *memoryRepo) CountAssignments(_ context.Context, id int64) (DeactivationCounts, error) {
	if _, ok := r.users[id]; !ok {
		return DeactivationCounts{}, shared.ErrNotFound
	}
	return r.counts, nil
}

func (r *memoryRepo) DeactivateCascade(_ context.Context, id int64) (DeactivationCounts, bool, error) {
	u, ok := r.users[id]
	if !ok {
		return DeactivationCounts{}, false, shared.ErrNotFound
	}
	if !u.Active {
		return DeactivationCounts{}, false, nil
	}
	r.cascadeRuns++
	u.Active = false
	r.users[id] = u
	counts := r.counts
	r.counts = DeactivationCounts{}
	return counts, true, nil
}

func (r *memoryRepo) Reactivate(_ context.Context, id int64) error {
	u, ok := r.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Active = true
	r.users[id] = u
	return nil
}

type stubInvalidator struct {
	calls []int64
}

func (s *stubInvalidator) InvalidateUser(_ context.Context, id int64) {
	s.calls = append(s.calls, id)
}

type stubRevoker struct {
	calls []string
}

func (s *stubRevoker) EnqueueSessionRevoke(_ context.Context, authID string) error {
	s.calls = append(s.calls, authID)
	return nil
}

type stubAudit struct {
	logs []shared.AuditLog
}

func (s *stubAudit) Record(_ context.Context, log shared.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func TestCreateValidatesCPF(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateParams{
		FullName:       "Ana Paula Souza",
		DisplayName:    "Ana",
		CPF:            "123",
		CorporateEmail: "ana@jurisdesk.local",
	}, 1)
	require.ErrorIs(t, err, shared.ErrValidation)

	created, err := svc.Create(context.Background(), CreateParams{
		FullName:       "Ana Paula Souza",
		DisplayName:    "Ana",
		CPF:            "529.982.247-25",
		CorporateEmail: "ANA@jurisdesk.local",
	}, 1)
	require.NoError(t, err)
	require.Equal(t, "52998224725", created.CPF)
	require.Equal(t, "ana@jurisdesk.local", created.CorporateEmail)
	require.True(t, created.Active)
}

func TestDeactivateCascades(t *testing.T) {
	repo := newMemoryRepo()
	repo.counts = DeactivationCounts{Processos: 3, Audiencias: 1}
	user := repo.add(User{FullName: "Maria Costa", AuthUserID: "auth-maria", Active: true})

	perms := &stubInvalidator{}
	revoker := &stubRevoker{}
	audit := &stubAudit{}
	svc := NewService(repo, perms, revoker, audit, nil)

	counts, err := svc.Deactivate(context.Background(), user.ID, 99)
	require.NoError(t, err)
	require.EqualValues(t, 3, counts.Processos)
	require.EqualValues(t, 1, counts.Audiencias)
	require.EqualValues(t, 4, counts.Total())

	require.False(t, repo.users[user.ID].Active)
	require.Equal(t, []int64{user.ID}, perms.calls)
	require.Equal(t, []string{"auth-maria"}, revoker.calls)

	require.Len(t, audit.logs, 1)
	require.Equal(t, shared.AuditUserDeactivated, audit.logs[0].Action)
	require.EqualValues(t, 99, audit.logs[0].ActorID)
	require.EqualValues(t, int64(3), audit.logs[0].Meta["processos"])
}

func TestDeactivateAlreadyInactiveIsNoop(t *testing.T) {
	repo := newMemoryRepo()
	repo.counts = DeactivationCounts{Contratos: 5}
	user := repo.add(User{FullName: "Maria Costa", AuthUserID: "auth-maria", Active: false})

	perms := &stubInvalidator{}
	revoker := &stubRevoker{}
	audit := &stubAudit{}
	svc := NewService(repo, perms, revoker, audit, nil)

	counts, err := svc.Deactivate(context.Background(), user.ID, 99)
	require.NoError(t, err)
	require.EqualValues(t, 0, counts.Total())
	require.Zero(t, repo.cascadeRuns)
	require.Empty(t, perms.calls)
	require.Empty(t, revoker.calls)
	require.Empty(t, audit.logs)
}

func TestDeactivateUnknownUser(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil, nil)

	_, err := svc.Deactivate(context.Background(), 123, 1)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReactivateDoesNotRestoreAssignments(t *testing.T) {
	repo := newMemoryRepo()
	repo.counts = DeactivationCounts{Processos: 2}
	user := repo.add(User{FullName: "Maria Costa", Active: true})

	audit := &stubAudit{}
	svc := NewService(repo, nil, nil, audit, nil)

	_, err := svc.Deactivate(context.Background(), user.ID, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Reactivate(context.Background(), user.ID, 1))
	require.True(t, repo.users[user.ID].Active)

	// a second deactivation finds nothing left to unassign
	counts, err := svc.Deactivate(context.Background(), user.ID, 1)
	require.NoError(t, err)
	require.EqualValues(t, 0, counts.Total())

	require.Equal(t, shared.AuditUserReactivated, audit.logs[1].Action)
}

func TestPreviewDeactivation(t *testing.T) {
	repo := newMemoryRepo()
	repo.counts = DeactivationCounts{Pendentes: 7, ExpedientesManuais: 2}
	user := repo.add(User{FullName: "Maria Costa", Active: true})

	svc := NewService(repo, nil, nil, nil, nil)

	counts, err := svc.PreviewDeactivation(context.Background(), user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 9, counts.Total())
	// preview never flips the flag
	require.True(t, repo.users[user.ID].Active)

	_, err = svc.PreviewDeactivation(context.Background(), 999)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateOverlaysFields(t *testing.T) {
	repo := newMemoryRepo()
	user := repo.add(User{FullName: "Maria Costa", DisplayName: "Maria", CPF: "52998224725", CorporateEmail: "maria@jurisdesk.local", Active: true})

	perms := &stubInvalidator{}
	svc := NewService(repo, perms, nil, nil, nil)

	name := "Maria Fernanda Costa"
	uf := "sp"
	updated, err := svc.Update(context.Background(), user.ID, UpdateParams{FullName: &name, OABState: &uf}, 1)
	require.NoError(t, err)
	require.Equal(t, "Maria Fernanda Costa", updated.FullName)
	require.Equal(t, "SP", updated.OABState)
	require.Equal(t, "maria@jurisdesk.local", updated.CorporateEmail)
	require.Equal(t, []int64{user.ID}, perms.calls)

	bad := "12"
	_, err = svc.Update(context.Background(), user.ID, UpdateParams{CPF: &bad}, 1)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestFoldSearch(t *testing.T) {
	require.Equal(t, "joao", foldSearch("João"))
	require.Equal(t, "audiencia", foldSearch("audiência"))
	require.Equal(t, "", foldSearch("   "))
}
