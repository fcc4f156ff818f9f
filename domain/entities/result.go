package entities

// ResultStatus represents the outcome of an example run.
type ResultStatus string

const (
	// ResultStatusSuccess indicates the example completed and its checks held.
	ResultStatusSuccess ResultStatus = "success"

	// ResultStatusFailure indicates the example completed but observed an
	// unexpected value.
	ResultStatusFailure ResultStatus = "failure"

	// ResultStatusError indicates a boundary operation failed.
	ResultStatusError ResultStatus = "error"
)

// Result is the outcome of running one example.
type Result struct {
	// Data holds values the example observed across the boundary.
	Data map[string]any `json:"data,omitempty"`

	// Metadata contains execution metadata.
	Metadata *RunMetadata `json:"metadata,omitempty"`

	// Error contains structured error information if Status is Error.
	Error *ErrorDetail `json:"error,omitempty"`

	// Example is the name of the example that produced the result.
	Example string `json:"example"`

	// Status indicates whether the example succeeded, failed, or errored.
	Status ResultStatus `json:"status"`

	// Message provides a human-readable description of the result.
	Message string `json:"message,omitempty"`
}

// ResultSuccess creates a successful Result with the given message and data.
func ResultSuccess(message string, data map[string]any) Result {
	return Result{
		Status:  ResultStatusSuccess,
		Message: message,
		Data:    data,
	}
}

// ResultFailure creates a failure Result with the given message and data.
func ResultFailure(message string, data map[string]any) Result {
	return Result{
		Status:  ResultStatusFailure,
		Message: message,
		Data:    data,
	}
}

// ResultError creates an error Result with the given error details.
func ResultError(err *ErrorDetail) Result {
	return Result{
		Status:  ResultStatusError,
		Message: err.Message,
		Error:   err,
	}
}

// WithMetadata returns a copy of the Result with the given metadata attached.
func (r Result) WithMetadata(m *RunMetadata) Result {
	r.Metadata = m
	return r
}

// WithExample returns a copy of the Result attributed to the named example.
func (r Result) WithExample(name string) Result {
	r.Example = name
	return r
}

// IsSuccess returns true if the result indicates success.
func (r Result) IsSuccess() bool {
	return r.Status == ResultStatusSuccess
}

// IsFailure returns true if the result indicates failure.
func (r Result) IsFailure() bool {
	return r.Status == ResultStatusFailure
}

// IsError returns true if the result indicates an error.
func (r Result) IsError() bool {
	return r.Status == ResultStatusError
}
