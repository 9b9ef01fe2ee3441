package domain

import (
	"errors"
	"fmt"
)

// Sentinel causes carried by the typed errors below.
var (
	// ErrIndexNotFound indicates no persisted index exists at the configured location.
	ErrIndexNotFound = errors.New("index not found")

	// ErrSourceNotFound indicates the document to index does not exist.
	ErrSourceNotFound = errors.New("source document not found")

	// ErrMissingCredentials indicates the language model API key is not set.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrEmbedderMismatch indicates the query embedder differs from the one
	// the index was built with.
	ErrEmbedderMismatch = errors.New("embedder does not match index")

	// ErrDimensionMismatch indicates a query vector of the wrong length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// ConfigurationError is fatal: the pipeline cannot be assembled.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// RetrievalError reports an embedding or index lookup failure.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed: %v", e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// GenerationError reports a language model invocation failure. It is never
// produced for the empty-context case.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// NewConfigurationError wraps err as a ConfigurationError for op.
func NewConfigurationError(op string, err error) error {
	return &ConfigurationError{Op: op, Err: err}
}

// IsConfiguration reports whether err is (or wraps) a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsRetrieval reports whether err is (or wraps) a RetrievalError.
func IsRetrieval(err error) bool {
	var re *RetrievalError
	return errors.As(err, &re)
}

// IsGeneration reports whether err is (or wraps) a GenerationError.
func IsGeneration(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
