package engine

import (
	"errors"
	"fmt"
	"sort"

	"modeladmin/internal/metadata"
)

var ErrRelationTargetNotFound = errors.New("relation target not found")

type AppError struct {
	Code    string        `json:"code"`
	Status  int           `json:"-"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func NotFoundError(entity, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("%s with id %s not found", entity, id),
	}
}

func UnknownEntityError(name string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_ENTITY",
		Status:  404,
		Message: fmt.Sprintf("Unknown entity: %s", name),
	}
}

func ValidationError(details []ErrorDetail) *AppError {
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Status:  422,
		Message: "Validation failed",
		Details: details,
	}
}

func ConflictError(msg string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Status:  409,
		Message: msg,
	}
}

func UnauthorizedError(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Status: 401, Message: msg}
}

func ForbiddenError(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Status: 403, Message: msg}
}

// RelationState tracks one relation bucket through an upsert.
type RelationState int

const (
	Unapplied RelationState = iota
	Applying
	Applied
	Failed
)

func (s RelationState) String() string {
	switch s {
	case Applying:
		return "applying"
	case Applied:
		return "applied"
	case Failed:
		return "failed"
	}
	return "unapplied"
}

// RelationError reports an upsert whose scalar record was saved but whose
// relation writes stopped part way. Relations listed in Applied stay
// committed.
type RelationError struct {
	Relation    string
	Cardinality metadata.Cardinality
	ID          any
	OwnerID     any
	Applied     []string
	States      map[string]RelationState
	Err         error
}

func (e *RelationError) Error() string {
	if e.ID != nil {
		return fmt.Sprintf("relation %s (%s) id %v: %v", e.Relation, e.Cardinality, e.ID, e.Err)
	}
	return fmt.Sprintf("relation %s (%s): %v", e.Relation, e.Cardinality, e.Err)
}

func (e *RelationError) Unwrap() error { return e.Err }

// PartialUpsertError describes a RelationError for API clients.
func PartialUpsertError(entity string, relErr *RelationError) *AppError {
	details := make([]ErrorDetail, 0, len(relErr.Applied)+1)
	for _, name := range relErr.Applied {
		details = append(details, ErrorDetail{
			Field:   name,
			Rule:    Applied.String(),
			Message: fmt.Sprintf("%s was saved", name),
		})
	}
	details = append(details, ErrorDetail{
		Field:   relErr.Relation,
		Rule:    Failed.String(),
		Message: relErr.Error(),
	})
	for _, name := range sortedStates(relErr.States) {
		if relErr.States[name] != Unapplied {
			continue
		}
		details = append(details, ErrorDetail{
			Field:   name,
			Rule:    Unapplied.String(),
			Message: fmt.Sprintf("%s was not attempted", name),
		})
	}
	return &AppError{
		Code:    "PARTIAL_UPSERT",
		Status:  409,
		Message: fmt.Sprintf("%s %v was saved but relation %s failed", entity, relErr.OwnerID, relErr.Relation),
		Details: details,
	}
}

func sortedStates(states map[string]RelationState) []string {
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
