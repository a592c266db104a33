package errors

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateEmail     = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrNotFound           = errors.New("task not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrInternalServer     = errors.New("internal server error")
	ErrBadRequest         = errors.New("malformed request body")
	ErrRouteNotFound      = errors.New("route not found")
	ErrMethodNotAllowed   = errors.New("method not allowed")

	ErrInvalidEmail    = errors.New("email must be a valid address")
	ErrInvalidPassword = errors.New("password must be at least 6 characters")
	ErrInvalidName     = errors.New("name must be at most 100 characters")
	ErrInvalidTitle    = errors.New("title is required")
	ErrInvalidDueDate  = errors.New("due_date must be a YYYY-MM-DD date")
	ErrInvalidPriority = errors.New("priority must be one of Low, Medium, High")

	ErrInvalidGzipRequest    = errors.New("invalid gzip request body")
	ErrGzipCompressionFailed = errors.New("gzip compression failed")

	ErrConfigFileReadFailed = errors.New("failed to read config file")
	ErrConfigParseFailed    = errors.New("failed to parse config file")
	ErrConfigInvalidFormat  = errors.New("invalid config value")
	ErrMissingJWTSecret     = errors.New("JWT_SECRET must be set in production")
)
