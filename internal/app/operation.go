package app

import "strings"

// Operation statuses written to the history table.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation tracks one CLI command for the history log.
// It lives in memory with ID=0 until a command that changes the index
// persists it; read-only commands never show up in the history.
type Operation struct {
	ID         int64
	Name       string
	Parameters string
	Status     string
}

// NewOperation creates an in-memory operation that will report success
// unless a failure is recorded.
func NewOperation(name string) *Operation {
	return &Operation{Name: name, Status: StatusSuccess}
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Describe records the command's arguments, space separated.
func (op *Operation) Describe(params ...string) {
	op.Parameters = strings.Join(params, " ")
}

// Record marks the operation failed when err is non-nil and returns err.
func (op *Operation) Record(err error) error {
	if err != nil {
		op.Status = StatusError
	}
	return err
}
