package httpx

import (
	"errors"
	"net/http"

	"github.com/jurisdesk/jurisdesk/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Authorization failures return a deliberately generic body: which
// capability was missing is server-side knowledge only.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated), errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrPermissionDenied), errors.Is(err, shared.ErrUserNotFound):
		Problem(w, http.StatusForbidden, "Forbidden", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
