package query

import "fmt"

// AppError is the JSON error envelope returned by every endpoint.
type AppError struct {
	Code    string      `json:"code"`
	Status  int         `json:"-"`
	Message string      `json:"message"`
	Details []NodeError `json:"details,omitempty"`
}

// NodeError pins a validation message to the tree node that caused it.
type NodeError struct {
	NodeID  string `json:"node_id,omitempty"`
	Field   string `json:"field,omitempty"`
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

func UnauthorizedError(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Status: 401, Message: msg}
}

func ForbiddenError(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Status: 403, Message: msg}
}

func NotFoundError(kind, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("%s with id %s not found", kind, id),
	}
}

// ValidationFailedError reports rejected mutations. Validation failures are
// 400s: the request was well-formed JSON but describes an illegal tree.
func ValidationFailedError(details []NodeError) *AppError {
	msg := "Validation failed"
	if len(details) == 1 {
		msg = details[0].Message
	}
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Status:  400,
		Message: msg,
		Details: details,
	}
}

// PersistenceInconsistencyError is surfaced when the recreate phase of a
// tree replacement failed after the delete phase succeeded. The stored tree
// may now be empty or partial.
func PersistenceInconsistencyError(queryID string) *AppError {
	return &AppError{
		Code:    "PERSISTENCE_INCONSISTENCY",
		Status:  500,
		Message: fmt.Sprintf("saving the tree for query %s failed mid-rebuild; the stored query tree may be empty or partial", queryID),
	}
}
