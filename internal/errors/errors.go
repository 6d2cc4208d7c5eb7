// Package errors defines the sentinel errors shared across logiri.
//
// Callers check categories with errors.Is. This package must not import any
// other internal package.
package errors

import "errors"

var (
	// ErrNotFound indicates the referenced task (or other record) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates a caller supplied a value outside its domain,
	// such as non-positive hours or an unknown status.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMissingCredentials indicates a data source or assistant was invoked
	// without the credentials it needs. Raised before any network call.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrUpstream indicates a provider answered with a non-2xx status or an
	// embedded error payload.
	ErrUpstream = errors.New("upstream error")

	// ErrParse indicates a provider or assistant payload could not be decoded.
	ErrParse = errors.New("parse error")

	// ErrAssistant indicates the LLM call failed.
	ErrAssistant = errors.New("assistant call failed")

	// ErrIngestLocked indicates another ingestion run holds the source lock.
	ErrIngestLocked = errors.New("ingestion already running for source")

	// ErrUnknownSource indicates a source name outside ga4, gsc, ads, semrush.
	ErrUnknownSource = errors.New("unknown source")

	// ErrConfigNil indicates a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalid indicates a configuration value failed validation.
	ErrConfigInvalid = errors.New("invalid configuration")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
