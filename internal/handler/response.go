package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// FieldError is one failed binding rule, keyed by JSON field name.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ErrorFrom maps err to a status code and envelope. Internal errors are
// reported without their cause.
func ErrorFrom(err error) (int, *Response) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
		}
		resp := NewErrorResponse("invalid request")
		resp.Data = fields
		return apperrors.HTTPStatus(apperrors.ErrValidation), resp
	}

	code := apperrors.CodeOf(err)
	if code == apperrors.ErrInternal {
		return apperrors.HTTPStatus(code), NewErrorResponse("internal server error")
	}
	resp := NewErrorResponse(err.Error())
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Message = appErr.Error()
	}
	resp.Data = map[string]string{"code": code.String()}
	return apperrors.HTTPStatus(code), resp
}

// BindError classifies a ShouldBind failure: rule violations keep their
// field detail, anything else is a malformed body.
func BindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return err
	}
	return apperrors.BadRequest("invalid request body", err)
}
