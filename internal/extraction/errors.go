package extraction

import (
	"errors"
	"fmt"
)

// DocumentErrorCode represents specific document decoding failures.
type DocumentErrorCode string

const (
	ErrInvalidDocument     DocumentErrorCode = "INVALID_DOCUMENT"
	ErrUnsupportedFormat   DocumentErrorCode = "UNSUPPORTED_FORMAT"
	ErrDocumentTooLarge    DocumentErrorCode = "DOCUMENT_TOO_LARGE"
	ErrEmptyDocument       DocumentErrorCode = "EMPTY_DOCUMENT"
	ErrRecognizerFailed    DocumentErrorCode = "RECOGNIZER_FAILED"
	ErrRecognizerTransient DocumentErrorCode = "RECOGNIZER_UNAVAILABLE"
)

// DocumentError is a structured error for uploads that cannot be turned into text.
// Extraction itself never fails; only decoding does.
type DocumentError struct {
	Code      DocumentErrorCode
	Message   string
	Filename  string
	Retryable bool
	Cause     error
}

func (e *DocumentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether this error is retryable.
func (e *DocumentError) IsRetryable() bool {
	return e.Retryable
}

// AsDocumentError unwraps err into a *DocumentError if it is one.
func AsDocumentError(err error) (*DocumentError, bool) {
	var docErr *DocumentError
	if errors.As(err, &docErr) {
		return docErr, true
	}
	return nil, false
}
