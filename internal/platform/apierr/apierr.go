// Package apierr is the error model shared by every API package.
package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	mysql "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

type Code string

const (
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeConflict         Code = "CONFLICT"
	CodeInternal         Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *APIError      { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrUnauthorized(msg string) *APIError { return &APIError{Code: CodeUnauthenticated, Message: msg} }
func ErrForbidden(msg string) *APIError    { return &APIError{Code: CodePermissionDenied, Message: msg} }
func ErrNotFound(msg string) *APIError     { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError     { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError     { return &APIError{Code: CodeInternal, Message: msg} }

func Invalidf(format string, args ...any) *APIError { return ErrInvalid(fmt.Sprintf(format, args...)) }
func Conflictf(format string, args ...any) *APIError {
	return ErrConflict(fmt.Sprintf(format, args...))
}

// HTTPStatus maps an error to the response status. Anything that is not an
// *APIError is a 500.
func HTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeUnauthenticated:
			return http.StatusUnauthorized
		case CodePermissionDenied:
			return http.StatusForbidden
		case CodeNotFound:
			return http.StatusNotFound
		case CodeConflict:
			return http.StatusConflict
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var api *APIError
	return errors.As(err, &api) && api.Code == code
}

type errDTO struct {
	Error *APIError `json:"error"`
}

// Body builds the JSON error envelope. Raw errors are hidden behind a generic
// message so driver text never reaches clients.
func Body(err error) errDTO {
	var api *APIError
	if errors.As(err, &api) {
		return errDTO{Error: api}
	}
	return errDTO{Error: ErrInternal("internal server error")}
}

// Write aborts the request with the mapped status and envelope. 500s are logged
// with the underlying error.
func Write(c *gin.Context, log *zap.Logger, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, Body(err))
}

// BadRequest is the shortcut used by handlers when binding fails.
func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Body(ErrInvalid(msg)))
}

// FromMySQL converts well known driver errors into API errors and returns
// anything else untouched.
func FromMySQL(err error, duplicateMsg, fkMsg string) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1062: // duplicate key
			return ErrConflict(duplicateMsg)
		case 1451, 1452: // foreign key constraint fails
			return ErrInvalid(fkMsg)
		}
	}
	return err
}

func IsDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return false
}
