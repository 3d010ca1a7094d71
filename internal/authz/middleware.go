package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jurisdesk/jurisdesk/internal/platform/httpx"
	"github.com/jurisdesk/jurisdesk/internal/shared"
)

type userIDContextKey struct{}

// ContextWithUserID stores the authorized user id in context.
func ContextWithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, id)
}

// UserIDFromContext returns the user id placed by the middleware, or 0.
func UserIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDContextKey{}).(int64)
	return id
}

// DecisionRecorder counts gate outcomes for observability. Optional.
type DecisionRecorder interface {
	AuthzDecision(outcome string)
}

// Middleware wires the authorization gate into chi routes.
type Middleware struct {
	Gate    *Gate
	Logger  *slog.Logger
	Metrics DecisionRecorder
}

// RequireAll authorizes the request against every listed capability before
// the handler runs. Capability strings are route constants; a malformed one
// panics at mount time.
func (m Middleware) RequireAll(caps ...string) func(http.Handler) http.Handler {
	parsed := make([]Capability, len(caps))
	for i, c := range caps {
		parsed[i] = MustCapability(c)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			userID, err := m.Gate.Authorize(r.Context(), sess, parsed...)
			if err != nil {
				m.deny(w, r, err)
				return
			}
			m.record("allowed")
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// RequireAny authorizes the request when at least one listed capability is
// held. Used where older permission names coexist with newer ones.
func (m Middleware) RequireAny(caps ...string) func(http.Handler) http.Handler {
	parsed := make([]Capability, len(caps))
	for i, c := range caps {
		parsed[i] = MustCapability(c)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			var userID int64
			var err error
			if len(parsed) == 0 {
				// No capability listed still means a valid session and an
				// active user; otherwise an empty list would let anyone in.
				userID, err = m.Gate.Authorize(r.Context(), sess)
			}
			for _, cap := range parsed {
				userID, err = m.Gate.Authorize(r.Context(), sess, cap)
				if err == nil {
					break
				}
				if !errors.Is(err, shared.ErrPermissionDenied) {
					break
				}
			}
			if err != nil {
				m.deny(w, r, err)
				return
			}
			m.record("allowed")
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, shared.ErrUnauthenticated) {
		m.record("unauthenticated")
	} else {
		m.record("denied")
	}
	var permErr *PermissionError
	if errors.As(err, &permErr) && m.Logger != nil {
		// The response stays generic; the capability only goes to the log.
		m.Logger.Warn("request denied",
			slog.String("path", r.URL.Path),
			slog.String("resource", permErr.Resource),
			slog.String("operation", permErr.Operation))
	}
	httpx.RespondError(w, err)
}

func (m Middleware) record(outcome string) {
	if m.Metrics != nil {
		m.Metrics.AuthzDecision(outcome)
	}
}
