package ml

import "errors"

var (
	// ErrMalformedInput marks uploads that cannot be read as a table or miss required columns.
	ErrMalformedInput = errors.New("malformed input")
	// ErrInferenceFailure marks a predictor rejecting or mishandling rows.
	ErrInferenceFailure = errors.New("inference failure")
	ErrUnknownTask      = errors.New("unknown task")
)

// ErrorKind names the error class for API responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedInput):
		return "malformed_input"
	case errors.Is(err, ErrInferenceFailure):
		return "inference_failure"
	case errors.Is(err, ErrUnknownTask):
		return "unknown_task"
	default:
		return "internal"
	}
}
