package app

import (
	"errors"
	"fmt"
	"net/http"

	"dialoguegen/api/internal/store"
	"dialoguegen/api/internal/validation"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var rejected *validation.RejectedError
	if errors.As(err, &rejected) {
		return http.StatusUnprocessableEntity, rejected.Code, rejected.Message, rejected.Report
	}
	switch {
	case errors.Is(err, store.ErrInvalidID):
		return http.StatusBadRequest, "INVALID_DOCUMENT_ID", "Invalid document id", nil
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, store.ErrRevisionConflict):
		return http.StatusConflict, "REVISION_CONFLICT", "Document was modified by another writer", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
