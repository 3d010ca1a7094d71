package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jurisdesk/jurisdesk/internal/auth"
	"github.com/jurisdesk/jurisdesk/internal/shared"
	_ "github.com/jurisdesk/jurisdesk/testing"
)

type stubRepo struct {
	cred     *auth.Credential
	sessions map[string]string
}

func (s *stubRepo) FindByEmail(_ context.Context, email string) (*auth.Credential, error) {
	if s.cred == nil || s.cred.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.cred, nil
}

func (s *stubRepo) CreateSession(_ context.Context, id, authUserID string, _ time.Time, _, _ string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]string)
	}
	s.sessions[id] = authUserID
	return nil
}

func (s *stubRepo) DeleteSession(_ context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func activeCredential(t *testing.T, email, password string) *auth.Credential {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return &auth.Credential{
		AuthUserID:   "auth-1",
		Email:        email,
		PasswordHash: string(hash),
		Active:       true,
	}
}

func TestAuthenticate(t *testing.T) {
	repo := &stubRepo{cred: activeCredential(t, "maria@jurisdesk.local", "segredo123")}
	svc := auth.NewService(repo)
	ctx := context.Background()

	cred, err := svc.Authenticate(ctx, "  MARIA@jurisdesk.local ", "segredo123")
	require.NoError(t, err)
	require.Equal(t, "auth-1", cred.AuthUserID)

	_, err = svc.Authenticate(ctx, "maria@jurisdesk.local", "errada12345")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "ninguem@jurisdesk.local", "segredo123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateInactiveUser(t *testing.T) {
	cred := activeCredential(t, "maria@jurisdesk.local", "segredo123")
	cred.Active = false
	svc := auth.NewService(&stubRepo{cred: cred})

	// an inactive account fails identically to a wrong password
	_, err := svc.Authenticate(context.Background(), "maria@jurisdesk.local", "segredo123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestSessionLifecycle(t *testing.T) {
	repo := &stubRepo{}
	svc := auth.NewService(repo)
	ctx := context.Background()

	require.NoError(t, svc.RegisterSession(ctx, "sess-1", "auth-1", time.Now().Add(time.Hour), "127.0.0.1", "go-test"))
	require.Equal(t, "auth-1", repo.sessions["sess-1"])

	require.NoError(t, svc.RemoveSession(ctx, "sess-1"))
	require.Empty(t, repo.sessions)
}
