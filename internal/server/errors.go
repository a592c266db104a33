package server

import (
	stderrors "errors"
	"net/http"

	"github.com/just-being-aryan/task-manager-app/internal/domain/errors"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// resolveError maps a failure to its status code and the message safe to
// show the client. Anything unrecognised becomes a generic 500.
func resolveError(err error) (int, string) {
	switch {
	case stderrors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case stderrors.Is(err, errors.ErrBadRequest):
		return http.StatusBadRequest, errors.ErrBadRequest.Error()
	case stderrors.Is(err, errors.ErrInvalidGzipRequest):
		return http.StatusBadRequest, errors.ErrInvalidGzipRequest.Error()
	case stderrors.Is(err, errors.ErrDuplicateEmail):
		return http.StatusConflict, errors.ErrDuplicateEmail.Error()
	case stderrors.Is(err, errors.ErrInvalidCredentials):
		return http.StatusUnauthorized, errors.ErrInvalidCredentials.Error()
	case stderrors.Is(err, errors.ErrUnauthenticated):
		return http.StatusUnauthorized, errors.ErrUnauthenticated.Error()
	case stderrors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, errors.ErrNotFound.Error()
	case stderrors.Is(err, errors.ErrRouteNotFound):
		return http.StatusNotFound, errors.ErrRouteNotFound.Error()
	case stderrors.Is(err, errors.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, errors.ErrMethodNotAllowed.Error()
	}
	return http.StatusInternalServerError, errors.ErrInternalServer.Error()
}
