package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/bank-support/internal/domain/knowledge"
	"github.com/yanqian/bank-support/internal/domain/support"
	apperrors "github.com/yanqian/bank-support/pkg/errors"
)

// HTTPError is what the error middleware serializes as
// {"error":{"code","message"}}.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewHTTPError is a helper to build an HTTPError instance.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

// statusFor maps domain error codes onto HTTP statuses.
func statusFor(err error) int {
	switch apperrors.CodeOf(err) {
	case knowledge.CodeInvalidQuery, support.CodeInvalidInput:
		return http.StatusBadRequest
	case knowledge.CodeEmptyStore, knowledge.CodeEmbedding, knowledge.CodeTimeout:
		return http.StatusServiceUnavailable
	case support.CodeOperatorBusy:
		return http.StatusConflict
	case support.CodeFeatureDisabled:
		return http.StatusNotFound
	case support.CodeLLM:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// transient reports whether a retry of the same request may succeed. An
// empty store stays empty until someone rebuilds it.
func transient(code string) bool {
	return code != knowledge.CodeEmptyStore
}

func domainError(err error) *HTTPError {
	code := apperrors.CodeOf(err)
	if code == "" {
		code = "internal_error"
	}
	return NewHTTPError(statusFor(err), code, errMessage(err), err)
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	if apperrors.CodeOf(err) != "" {
		return domainError(err)
	}
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "something went wrong",
		Err:     err,
	}
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}
