package services

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	// ErrMalformedMetadata marks a missing front matter block or a required
	// field that is absent or of the wrong type.
	ErrMalformedMetadata = errors.New("malformed metadata")
	// ErrUnterminatedCodeFragment marks a fenced code block with no closing fence.
	ErrUnterminatedCodeFragment = errors.New("unterminated code fragment")
	// ErrUnresolvedFootnoteReference marks a [^label] with no definition.
	ErrUnresolvedFootnoteReference = errors.New("unresolved footnote reference")
	// ErrUnsupportedFormat is returned for unknown render or front matter formats.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// MalformedMetadataError carries the per-field problems found in a front
// matter block. Fields is empty when the block itself is missing or cannot
// be decoded.
type MalformedMetadataError struct {
	Fields validation.Errors
	Err    error
}

func (e *MalformedMetadataError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("malformed metadata: %s", e.Fields.Error())
	}
	if e.Err != nil {
		return fmt.Sprintf("malformed metadata: %v", e.Err)
	}
	return "malformed metadata"
}

func (e *MalformedMetadataError) Unwrap() error { return ErrMalformedMetadata }

type UnterminatedCodeFragmentError struct {
	Line  int    // line of the opening fence
	Fence string // the opening fence marker
}

func (e *UnterminatedCodeFragmentError) Error() string {
	return fmt.Sprintf("unterminated code fragment: fence %q opened on line %d is never closed", e.Fence, e.Line)
}

func (e *UnterminatedCodeFragmentError) Unwrap() error { return ErrUnterminatedCodeFragment }

type UnresolvedFootnoteReferenceError struct {
	Label string
	Line  int
}

func (e *UnresolvedFootnoteReferenceError) Error() string {
	return fmt.Sprintf("unresolved footnote reference [^%s] on line %d", e.Label, e.Line)
}

func (e *UnresolvedFootnoteReferenceError) Unwrap() error { return ErrUnresolvedFootnoteReference }

// ErrorKind names the failure class of err for API responses and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedMetadata):
		return "malformed_metadata"
	case errors.Is(err, ErrUnterminatedCodeFragment):
		return "unterminated_code_fragment"
	case errors.Is(err, ErrUnresolvedFootnoteReference):
		return "unresolved_footnote_reference"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	default:
		return "internal"
	}
}
