package model

import "fmt"

// ParseError reports that a model response could not be decoded into
// the expected structure. Raw keeps the full response so callers can
// persist it for inspection.
type ParseError struct {
	Workflow string
	Raw      string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse model response: %v", e.Workflow, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
