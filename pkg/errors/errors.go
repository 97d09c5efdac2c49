// Package errors defines the sentinel errors shared by the indexing and
// query paths, plus AppError for attaching a message and HTTP status.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrQueryParse    = errors.New("query parse error")
	ErrIndexBuild    = errors.New("index build error")
	ErrIO            = errors.New("index io error")
	ErrConfig        = errors.New("config error")
	ErrInvalidInput  = errors.New("invalid input")
	ErrIndexNotReady = errors.New("index not ready")
	ErrInternal      = errors.New("internal error")
	ErrTimeout       = errors.New("operation timed out")
)

// Process exit codes reported by the CLI.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitIO          = 3
	ExitIndexBuild  = 4
	ExitInterrupted = 130
)

// AppError attaches a user-facing message and an HTTP status to a sentinel.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrQueryParse), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrConfig):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrIndexNotReady), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode maps err to a process exit code: bad queries, input and config
// are usage errors, index file problems and build failures have their own
// codes, and an interrupted run exits like a shell killed by SIGINT.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, ErrQueryParse), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrConfig):
		return ExitUsage
	case errors.Is(err, ErrIO):
		return ExitIO
	case errors.Is(err, ErrIndexBuild):
		return ExitIndexBuild
	default:
		return ExitFailure
	}
}
