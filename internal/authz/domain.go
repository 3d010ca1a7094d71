package authz

import (
	"fmt"

	"github.com/jurisdesk/jurisdesk/internal/shared"
)

// Grant is one user's stored permission state for one catalog entry.
// Absence of a row means denied; only allowed=true rows are persisted by
// ReplaceGrants, but explicit false rows remain readable for audit.
type Grant struct {
	UserID    int64  `json:"usuarioId"`
	Resource  string `json:"recurso"`
	Operation string `json:"operacao"`
	Allowed   bool   `json:"permitido"`
}

// Capability returns the grant's catalog entry.
func (g Grant) Capability() Capability {
	return Capability{Resource: g.Resource, Operation: g.Operation}
}

// GrantState is the tri-state result of a single grant lookup. Denied and
// NoRecord both collapse to "not allowed" at the authorization boundary,
// but stay distinguishable so audit trails can tell "never granted" from
// "explicitly revoked".
type GrantState int

const (
	// NoRecord means no grant row exists for the capability.
	NoRecord GrantState = iota
	// Denied means a row exists with allowed=false.
	Denied
	// Granted means a row exists with allowed=true.
	Granted
)

func (s GrantState) String() string {
	switch s {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "no_record"
	}
}

// Allowed collapses the tri-state to the boolean the gate needs.
func (s GrantState) Allowed() bool {
	return s == Granted
}

// PermissionError names the first capability a caller was missing. It
// matches shared.ErrPermissionDenied under errors.Is so transport layers
// can map it without leaking the capability to the response body.
type PermissionError struct {
	Resource  string
	Operation string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("authz: permission denied for %s:%s", e.Resource, e.Operation)
}

// Is reports equivalence with the shared sentinel.
func (e *PermissionError) Is(target error) bool {
	return target == shared.ErrPermissionDenied
}

// UserRef identifies a resolved, active user as seen by the gate.
type UserRef struct {
	ID         int64
	SuperAdmin bool
}
