package shared

import "errors"

var (
	// ErrUnauthenticated indicates a missing or invalid session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUserNotFound indicates the principal resolved but no active user row matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrPermissionDenied indicates the user lacks a required capability.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrValidation indicates malformed input rejected before persistence.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrStore indicates an underlying persistence failure.
	ErrStore = errors.New("store failure")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage maps internal errors to messages safe to show end users.
// Authorization failures stay generic; the precise capability is only
// logged server-side.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "Sessão expirada. Faça login novamente."
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrUserNotFound):
		return "Você não tem autorização para esta operação."
	case errors.Is(err, ErrValidation):
		return "Dados inválidos."
	case errors.Is(err, ErrNotFound):
		return "Registro não encontrado."
	case errors.Is(err, ErrInvalidCredentials):
		return "E-mail ou senha incorretos."
	default:
		return "Ocorreu um erro inesperado. Tente novamente."
	}
}
