package publish

import "fmt"

// Error represents a failure talking to a board or deploy service.
type Error struct {
	Service string // "board" or "deploy"
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s service: %s: %v", e.Service, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s service: %s", e.Service, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
