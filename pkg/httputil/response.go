package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/pharmacy-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ListResponse carries list results for ownership-filtered collections.
type ListResponse struct {
	Items           interface{} `json:"items"`
	Count           int         `json:"count"`
	Total           int64       `json:"total,omitempty"`
	DoctorNotLinked bool        `json:"doctor_not_linked,omitempty"`
	Notice          string      `json:"notice,omitempty"`
}

func Success(data interface{}) *Response {
	return &Response{Status: "success", Data: data}
}

func Failure(message string) *Response {
	return &Response{Status: "error", Message: message}
}

// RespondWithSuccess sends a 200 response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Success(data))
}

// RespondWithCreated sends a 201 response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Success(data))
}

// RespondWithError translates err into a status code and error body.
func RespondWithError(c *gin.Context, err error) {
	status, body := ErrorBody(err)
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.GetString("request_id")).
			Msg("Request failed")
	}
	c.AbortWithStatusJSON(status, &Response{
		Status:  "error",
		Message: body.Message,
		Error:   body,
	})
}

// ErrorBody maps an error onto the wire representation.
func ErrorBody(err error) (int, *Error) {
	var (
		validationErr *errors.ValidationError
		notFoundErr   *errors.NotFoundError
		deniedErr     *errors.AccessDeniedError
		notLinkedErr  *errors.AccountNotLinkedError
		duplicateErr  *errors.DuplicateError
		appErr        *errors.AppError
	)

	switch {
	case stderrors.As(err, &validationErr):
		return http.StatusBadRequest, &Error{Code: http.StatusBadRequest, Kind: "validation", Field: validationErr.Field, Message: validationErr.Message}
	case stderrors.As(err, &notFoundErr):
		return http.StatusNotFound, &Error{Code: http.StatusNotFound, Kind: "not_found", Message: notFoundErr.Error()}
	case stderrors.As(err, &deniedErr):
		return http.StatusForbidden, &Error{Code: http.StatusForbidden, Kind: "access_denied", Message: deniedErr.Reason}
	case stderrors.As(err, &notLinkedErr):
		return http.StatusForbidden, &Error{Code: http.StatusForbidden, Kind: "account_not_linked", Message: notLinkedErr.Message}
	case stderrors.As(err, &duplicateErr):
		return http.StatusConflict, &Error{Code: http.StatusConflict, Kind: "duplicate", Field: duplicateErr.Field, Message: duplicateErr.Error()}
	case stderrors.As(err, &appErr):
		status := appErr.StatusCode()
		message := appErr.Message
		if status >= http.StatusInternalServerError {
			message = "Internal server error"
		}
		return status, &Error{Code: status, Kind: kindOf(appErr.Code), Message: message}
	default:
		return http.StatusInternalServerError, &Error{Code: http.StatusInternalServerError, Kind: "internal", Message: "Internal server error"}
	}
}

func kindOf(code errors.ErrorCode) string {
	switch code {
	case errors.ErrNotFound:
		return "not_found"
	case errors.ErrBadRequest:
		return "bad_request"
	case errors.ErrUnauthorized:
		return "unauthorized"
	case errors.ErrForbidden:
		return "forbidden"
	case errors.ErrConflict:
		return "conflict"
	default:
		return "internal"
	}
}
