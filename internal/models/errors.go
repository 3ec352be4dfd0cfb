package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError. Clients switch on these, not on messages.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeNotMember        = "NOT_MEMBER"
	CodeAlreadyMember    = "ALREADY_MEMBER"
	CodeAlreadyVoted     = "ALREADY_VOTED"
	CodeAlreadyBanned    = "ALREADY_BANNED"
	CodeSelfAction       = "SELF_ACTION"
	CodeForbidden        = "FORBIDDEN"
	CodeBanned           = "BANNED"
	CodeConflict         = "CONFLICT"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeInternal         = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewNotMemberError() *AppError {
	return &AppError{
		Code:    CodeNotMember,
		Message: "You are not a member of this channel",
	}
}

func NewAlreadyMemberError() *AppError {
	return &AppError{
		Code:    CodeAlreadyMember,
		Message: "Already a member of this channel",
	}
}

func NewAlreadyVotedError(target string) *AppError {
	return &AppError{
		Code:    CodeAlreadyVoted,
		Message: fmt.Sprintf("You already voted to kick %s", target),
	}
}

func NewAlreadyBannedError(target string) *AppError {
	return &AppError{
		Code:    CodeAlreadyBanned,
		Message: fmt.Sprintf("%s is already banned from this channel", target),
	}
}

func NewSelfActionError(action string) *AppError {
	return &AppError{
		Code:    CodeSelfAction,
		Message: fmt.Sprintf("You cannot %s yourself", action),
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

func NewBannedError() *AppError {
	return &AppError{
		Code:    CodeBanned,
		Message: "You are banned from this channel",
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewStoreUnavailableError(err error) *AppError {
	return &AppError{
		Code:    CodeStoreUnavailable,
		Message: "Storage backend unavailable",
		Err:     err,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// StatusForError maps an error to the HTTP status the handlers respond with.
func StatusForError(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeNotMember, CodeForbidden, CodeBanned, CodeSelfAction:
		return fiber.StatusForbidden
	case CodeAlreadyMember, CodeAlreadyVoted, CodeAlreadyBanned, CodeConflict:
		return fiber.StatusConflict
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeStoreUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
