package authz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jurisdesk/jurisdesk/internal/shared"
)

// PrincipalResolver maps the opaque auth principal carried by a session to
// an active internal user.
type PrincipalResolver interface {
	FindActiveByAuthID(ctx context.Context, authID string) (UserRef, error)
}

// GrantReader resolves single-capability grant lookups.
type GrantReader interface {
	GrantState(ctx context.Context, userID int64, resource, operation string) (GrantState, error)
}

// Gate is the single choke point every privileged operation passes through
// before doing work. It is read-only with respect to the permission
// subsystem: the same session and stored grants always yield the same
// decision.
type Gate struct {
	catalog *Catalog
	users   PrincipalResolver
	grants  GrantReader
	logger  *slog.Logger
}

// NewGate constructs a Gate.
func NewGate(catalog *Catalog, users PrincipalResolver, grants GrantReader, logger *slog.Logger) *Gate {
	return &Gate{catalog: catalog, users: users, grants: grants, logger: logger}
}

// Authorize resolves the calling principal and checks every required
// capability. On success it returns the numeric user id for the business
// operation to stamp created_by or scope queries with.
//
// Failure order matters: a missing/anonymous session is ErrUnauthenticated;
// a session whose principal matches no active user is ErrUserNotFound, never
// PermissionDenied, so a deactivated account cannot learn which capability
// it lost; a super admin short-circuits all grant lookups; otherwise the
// first missing capability fails fast as *PermissionError.
func (g *Gate) Authorize(ctx context.Context, sess *shared.Session, caps ...Capability) (int64, error) {
	if sess == nil || sess.Principal() == "" {
		return 0, shared.ErrUnauthenticated
	}

	user, err := g.users.FindActiveByAuthID(ctx, sess.Principal())
	if err != nil {
		return 0, err
	}

	if user.SuperAdmin {
		return user.ID, nil
	}

	for _, cap := range caps {
		if !g.catalog.Contains(cap) {
			// Unknown pairs are a programming error at the call site,
			// not a runtime denial.
			return 0, fmt.Errorf("authz: capability %s not in catalog: %w", cap, shared.ErrValidation)
		}
		state, err := g.grants.GrantState(ctx, user.ID, cap.Resource, cap.Operation)
		if err != nil {
			return 0, err
		}
		if !state.Allowed() {
			if g.logger != nil {
				g.logger.Warn("authorization denied",
					slog.Int64("user_id", user.ID),
					slog.String("capability", cap.String()),
					slog.String("grant_state", state.String()))
			}
			return 0, &PermissionError{Resource: cap.Resource, Operation: cap.Operation}
		}
	}

	return user.ID, nil
}
