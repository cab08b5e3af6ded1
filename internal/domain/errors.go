package domain

import "errors"

// Workflow error taxonomy. Call sites wrap these with fmt.Errorf and %w;
// the HTTP layer maps them to status codes with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrDecode       = errors.New("audio decode failed")
	ErrAnalysis     = errors.New("analysis failed")
	ErrRender       = errors.New("document render failed")
)
