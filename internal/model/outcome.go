package model

// ErrorCategory is one of the seven taxonomy buckets a task failure is
// classified into. The message/suggestions/retriable table for each lives
// in internal/errors, which imports this package.
type ErrorCategory string

const (
	ErrFileQuality     ErrorCategory = "FILE_QUALITY"
	ErrNoSpeech        ErrorCategory = "NO_SPEECH"
	ErrFormatIssue     ErrorCategory = "FORMAT_ISSUE"
	ErrNetworkError    ErrorCategory = "NETWORK_ERROR"
	ErrPermissionError ErrorCategory = "PERMISSION_ERROR"
	ErrProcessingError ErrorCategory = "PROCESSING_ERROR"
	ErrUnknown         ErrorCategory = "UNKNOWN"
)

// Outcome is the result-sum-type the core uses at task boundaries instead
// of letting exceptions cross them. Construct with Ok() or Err().
type Outcome struct {
	ok  bool
	err *CategorizedError
}

// CategorizedError carries the §7 error taxonomy alongside a message.
type CategorizedError struct {
	Category  ErrorCategory
	Message   string
	Retriable bool
}

func (e *CategorizedError) Error() string { return e.Message }

// Ok returns a successful Outcome.
func Ok() Outcome { return Outcome{ok: true} }

// Err returns a failed Outcome carrying a categorized error.
func Err(cat ErrorCategory, message string, retriable bool) Outcome {
	return Outcome{ok: false, err: &CategorizedError{Category: cat, Message: message, Retriable: retriable}}
}

// IsOk reports whether the task-internal step succeeded.
func (o Outcome) IsOk() bool { return o.ok }

// Error returns the categorized error, or nil if the outcome was Ok.
func (o Outcome) Error() *CategorizedError { return o.err }
