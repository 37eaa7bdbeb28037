package model

import "fmt"

// ValidationError reports a missing or invalid verification input.
// It is raised before any external call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("missing required field: %s", e.Field)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// OCRError reports a failed OCR call. Message is the service's own message when it sent one.
type OCRError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *OCRError) Error() string {
	return stageMessage(e.Message, "OCR extraction failed", e.Err)
}

func (e *OCRError) Unwrap() error { return e.Err }

// ExtractionError reports a failed field extraction call or an unusable response
type ExtractionError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *ExtractionError) Error() string {
	return stageMessage(e.Message, "field extraction failed", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// VisualComparisonError reports a failed visual similarity call
type VisualComparisonError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *VisualComparisonError) Error() string {
	return stageMessage(e.Message, "visual comparison failed", e.Err)
}

func (e *VisualComparisonError) Unwrap() error { return e.Err }

// stageMessage prefers the upstream message verbatim and falls back to a generic one
func stageMessage(message, generic string, err error) string {
	if message == "" {
		message = generic
	}
	if err != nil {
		return message + ": " + err.Error()
	}
	return message
}
