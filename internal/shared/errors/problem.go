// Package errors renders API failures as RFC 7807 problem documents.
package errors

import (
	"fmt"
	"net/http"
)

// ProblemDetail is the body of an application/problem+json response.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	// Extensions carries machine-readable members such as a conflict reason or field errors.
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (p ProblemDetail) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("%s: %s", p.Title, p.Detail)
	}
	return p.Title
}

func (p ProblemDetail) WithDetail(detail string) ProblemDetail {
	p.Detail = detail
	return p
}

func (p ProblemDetail) WithInstance(instance string) ProblemDetail {
	p.Instance = instance
	return p
}

// WithExtension copies the extension map before adding to it, so templates stay untouched.
func (p ProblemDetail) WithExtension(key string, value any) ProblemDetail {
	extensions := make(map[string]any, len(p.Extensions)+1)
	for k, v := range p.Extensions {
		extensions[k] = v
	}
	extensions[key] = value
	p.Extensions = extensions
	return p
}

// Problem type references, relative unless the responder has a base URI.
const (
	TypeValidation  = "/problems/validation-error"
	TypeNotFound    = "/problems/not-found"
	TypeConflict    = "/problems/conflict"
	TypeInternal    = "/problems/internal-error"
	TypeBadRequest  = "/problems/bad-request"
	TypeUnavailable = "/problems/upstream-unavailable"
	TypeRateLimited = "/problems/rate-limited"
)

var (
	ErrNotFound = ProblemDetail{Type: TypeNotFound, Title: "Resource Not Found", Status: http.StatusNotFound}

	ErrValidation = ProblemDetail{Type: TypeValidation, Title: "Validation Error", Status: http.StatusBadRequest}

	ErrBadRequest = ProblemDetail{Type: TypeBadRequest, Title: "Bad Request", Status: http.StatusBadRequest}

	ErrConflict = ProblemDetail{Type: TypeConflict, Title: "Conflict", Status: http.StatusConflict}

	ErrInternal = ProblemDetail{Type: TypeInternal, Title: "Internal Server Error", Status: http.StatusInternalServerError}

	// ErrUnavailable is returned when a collaborator could not answer in time.
	ErrUnavailable = ProblemDetail{Type: TypeUnavailable, Title: "Upstream Unavailable", Status: http.StatusServiceUnavailable}

	ErrRateLimited = ProblemDetail{Type: TypeRateLimited, Title: "Too Many Requests", Status: http.StatusTooManyRequests}
)

// NewValidationProblem lists the offending request fields under "fields".
func NewValidationProblem(fieldErrors map[string]string) ProblemDetail {
	return ErrValidation.
		WithDetail("request has invalid fields").
		WithExtension("fields", fieldErrors)
}

// NewNotFoundProblem names the missing resource and the identifier it was looked up by.
func NewNotFoundProblem(resourceType string, identifier any) ProblemDetail {
	return ErrNotFound.
		WithDetail(fmt.Sprintf("%s %v not found", resourceType, identifier)).
		WithExtension("resourceType", resourceType).
		WithExtension("identifier", identifier)
}

// NewConflictProblem creates a conflict error carrying a machine-readable reason.
func NewConflictProblem(reason, detail string) ProblemDetail {
	return ErrConflict.WithDetail(detail).WithExtension("reason", reason)
}
