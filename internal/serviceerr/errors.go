// Package serviceerr defines the error taxonomy shared by every operation of
// the tracker connection flow. Each error carries a stable code which is the
// only detail ever returned to a caller; descriptions are for server-side logs.
package serviceerr

import "net/http"

type Code string

const (
	// RFC6749 token errors surfaced by the provider's token endpoint.
	CodeInvalidRequest Code = "invalid_request"
	CodeInvalidGrant   Code = "invalid_grant"

	// Service codes.
	CodeUnknown             Code = "unknown"
	CodeUnauthenticated     Code = "unauthenticated"
	CodeInvalidState        Code = "invalid_state"
	CodeConfiguration       Code = "configuration_error"
	CodeTokenExchangeFailed Code = "token_exchange_failed"
	CodeStorage             Code = "storage_error"
	CodeNotConnected        Code = "not_connected"
	CodeNotFound            Code = "not_found"
	CodeConflict            Code = "conflict"
)

type Error struct {
	Err         Code
	Description string
}

var (
	ErrUnknown         = &Error{Err: CodeUnknown, Description: "unknown error"}
	ErrInvalidRequest  = &Error{Err: CodeInvalidRequest}
	ErrUnauthenticated = &Error{Err: CodeUnauthenticated, Description: "missing or invalid identity assertion"}
	// ErrInvalidState deliberately does not distinguish "never issued" from
	// "already consumed" or "expired" to avoid an oracle for attackers.
	ErrInvalidState        = &Error{Err: CodeInvalidState, Description: "state not found or expired"}
	ErrConfiguration       = &Error{Err: CodeConfiguration, Description: "server misconfiguration"}
	ErrTokenExchangeFailed = &Error{Err: CodeTokenExchangeFailed, Description: "provider rejected the authorization code"}
	ErrStorage             = &Error{Err: CodeStorage, Description: "durable store failure"}
	ErrNotConnected        = &Error{Err: CodeNotConnected, Description: "no tracker connection for this user"}
	ErrNotFound            = &Error{Err: CodeNotFound, Description: "not found"}
	ErrConflict            = &Error{Err: CodeConflict, Description: "already exists"}
)

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Err)
	}

	return string(e.Err) + ": " + e.Description
}

// Is matches errors by code so wrapped variants carrying extra description
// still compare equal to the predefined sentinels via errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)

	return ok && t.Err == e.Err
}

// WithDescription returns a copy of the error with a more specific
// description. The code, and therefore errors.Is identity, is preserved.
func (e *Error) WithDescription(description string) *Error {
	return &Error{Err: e.Err, Description: description}
}

func (e *Error) HTTPStatus() int {
	switch e.Err {
	case CodeInvalidRequest, CodeInvalidGrant, CodeInvalidState:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeNotConnected, CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTokenExchangeFailed:
		return http.StatusBadGateway
	case CodeConfiguration, CodeStorage, CodeUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
