package common

import (
	"github.com/google/uuid"
)

// NewDocumentID generates a unique document ID with the "doc_" prefix
func NewDocumentID() string {
	return "doc_" + uuid.New().String()
}

// NewExecutionID generates a unique job execution ID with the "exec_" prefix
func NewExecutionID() string {
	return "exec_" + uuid.New().String()
}

// NewCorrelationID generates a correlation identifier for threading one
// logical request through log and metric emissions.
func NewCorrelationID() string {
	return "req_" + uuid.New().String()
}
