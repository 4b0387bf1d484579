package detector

import "github.com/pkg/errors"

// ConfigurationError means the model, its tensors, or the input frame do not
// line up with what the pipeline expects. Retrying the same call cannot
// succeed.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string { return "detector configuration: " + e.Err.Error() }

func (e *ConfigurationError) Unwrap() error { return e.Err }

// InferenceError means the backend failed while executing the model. The
// setup may still be sound; a later call can succeed.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string { return "inference: " + e.Err.Error() }

func (e *InferenceError) Unwrap() error { return e.Err }

// IsConfiguration reports whether err is, or wraps, a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsInference reports whether err is, or wraps, an InferenceError.
func IsInference(err error) bool {
	var target *InferenceError
	return errors.As(err, &target)
}
