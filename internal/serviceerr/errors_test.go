package serviceerr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/healthfolio/tracker-manager/internal/serviceerr"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name        string
		err         *serviceerr.Error
		expectedMsg string
	}{
		{
			name:        "Error with description",
			err:         &serviceerr.Error{Err: serviceerr.CodeNotFound, Description: "credential not found"},
			expectedMsg: "not_found: credential not found",
		},
		{
			name:        "Error without description",
			err:         &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: ""},
			expectedMsg: "invalid_request",
		},
		{
			name:        "Predefined error - ErrUnknown",
			err:         serviceerr.ErrUnknown,
			expectedMsg: "unknown: unknown error",
		},
		{
			name:        "Predefined error - ErrInvalidState",
			err:         serviceerr.ErrInvalidState,
			expectedMsg: "invalid_state: state not found or expired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Helper()
			assert.Equal(t, tt.expectedMsg, tt.err.Error())
		})
	}
}

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		name               string
		code               serviceerr.Code
		expectedHTTPStatus int
	}{
		{
			name:               "CodeInvalidRequest returns BadRequest",
			code:               serviceerr.CodeInvalidRequest,
			expectedHTTPStatus: http.StatusBadRequest,
		},
		{
			name:               "CodeInvalidGrant returns BadRequest",
			code:               serviceerr.CodeInvalidGrant,
			expectedHTTPStatus: http.StatusBadRequest,
		},
		{
			name:               "CodeInvalidState returns BadRequest",
			code:               serviceerr.CodeInvalidState,
			expectedHTTPStatus: http.StatusBadRequest,
		},
		{
			name:               "CodeUnauthenticated returns Unauthorized",
			code:               serviceerr.CodeUnauthenticated,
			expectedHTTPStatus: http.StatusUnauthorized,
		},
		{
			name:               "CodeNotConnected returns NotFound",
			code:               serviceerr.CodeNotConnected,
			expectedHTTPStatus: http.StatusNotFound,
		},
		{
			name:               "CodeNotFound returns NotFound",
			code:               serviceerr.CodeNotFound,
			expectedHTTPStatus: http.StatusNotFound,
		},
		{
			name:               "CodeConflict returns Conflict",
			code:               serviceerr.CodeConflict,
			expectedHTTPStatus: http.StatusConflict,
		},
		{
			name:               "CodeTokenExchangeFailed returns BadGateway",
			code:               serviceerr.CodeTokenExchangeFailed,
			expectedHTTPStatus: http.StatusBadGateway,
		},
		{
			name:               "CodeConfiguration returns InternalServerError",
			code:               serviceerr.CodeConfiguration,
			expectedHTTPStatus: http.StatusInternalServerError,
		},
		{
			name:               "CodeStorage returns InternalServerError",
			code:               serviceerr.CodeStorage,
			expectedHTTPStatus: http.StatusInternalServerError,
		},
		{
			name:               "Unknown code returns InternalServerError",
			code:               serviceerr.Code("unknown_code"),
			expectedHTTPStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Helper()
			err := serviceerr.Error{Err: tt.code}
			assert.Equal(t, tt.expectedHTTPStatus, err.HTTPStatus())
		})
	}
}

func TestError_Is(t *testing.T) {
	wrapped := fmt.Errorf("handling callback: %w", serviceerr.ErrInvalidState)
	assert.ErrorIs(t, wrapped, serviceerr.ErrInvalidState)

	described := serviceerr.ErrTokenExchangeFailed.WithDescription("upstream said no")
	assert.ErrorIs(t, described, serviceerr.ErrTokenExchangeFailed)
	assert.Equal(t, "token_exchange_failed: upstream said no", described.Error())

	assert.False(t, errors.Is(serviceerr.ErrStorage, serviceerr.ErrNotFound))
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         *serviceerr.Error
		expectedErr serviceerr.Code
		hasDesc     bool
	}{
		{name: "ErrUnknown", err: serviceerr.ErrUnknown, expectedErr: serviceerr.CodeUnknown, hasDesc: true},
		{name: "ErrInvalidRequest", err: serviceerr.ErrInvalidRequest, expectedErr: serviceerr.CodeInvalidRequest, hasDesc: false},
		{name: "ErrUnauthenticated", err: serviceerr.ErrUnauthenticated, expectedErr: serviceerr.CodeUnauthenticated, hasDesc: true},
		{name: "ErrInvalidState", err: serviceerr.ErrInvalidState, expectedErr: serviceerr.CodeInvalidState, hasDesc: true},
		{name: "ErrConfiguration", err: serviceerr.ErrConfiguration, expectedErr: serviceerr.CodeConfiguration, hasDesc: true},
		{name: "ErrTokenExchangeFailed", err: serviceerr.ErrTokenExchangeFailed, expectedErr: serviceerr.CodeTokenExchangeFailed, hasDesc: true},
		{name: "ErrStorage", err: serviceerr.ErrStorage, expectedErr: serviceerr.CodeStorage, hasDesc: true},
		{name: "ErrNotConnected", err: serviceerr.ErrNotConnected, expectedErr: serviceerr.CodeNotConnected, hasDesc: true},
		{name: "ErrNotFound", err: serviceerr.ErrNotFound, expectedErr: serviceerr.CodeNotFound, hasDesc: true},
		{name: "ErrConflict", err: serviceerr.ErrConflict, expectedErr: serviceerr.CodeConflict, hasDesc: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Helper()
			assert.NotNil(t, tt.err)
			assert.Equal(t, tt.expectedErr, tt.err.Err)
			if tt.hasDesc {
				assert.NotEmpty(t, tt.err.Description)
			} else {
				assert.Empty(t, tt.err.Description)
			}
			assert.NotEmpty(t, tt.err.Error())
			assert.NotZero(t, tt.err.HTTPStatus())
		})
	}
}
