package photokit

import (
	"fmt"
)

// Kind classifies a photokit failure.
type Kind int

// Error kinds
const (
	KindFileNotFound Kind = iota + 1
	KindInvalidSource
	KindInvalidData
	KindDecodeFailure
	KindMetadataExtractionFailure
	KindFileAccessFailure
	KindUnsupportedFormat
	KindSaveFailure
	KindBackupFailure
)

func (k Kind) String() string {
	switch k {
	case KindFileNotFound:
		return "file not found"
	case KindInvalidSource:
		return "invalid image source"
	case KindInvalidData:
		return "invalid image data"
	case KindDecodeFailure:
		return "image decoding failed"
	case KindMetadataExtractionFailure:
		return "metadata extraction failed"
	case KindFileAccessFailure:
		return "file access failed"
	case KindUnsupportedFormat:
		return "unsupported format"
	case KindSaveFailure:
		return "image save failed"
	case KindBackupFailure:
		return "metadata backup failed"
	default:
		return "unknown error"
	}
}

// Error is returned by every Kit operation.
type Error struct {
	Kind   Kind
	Path   string
	Detail string // extension for UnsupportedFormat, message for access/save failures
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	switch {
	case e.Kind == KindFileNotFound && e.Path != "":
		msg += ": " + e.Path
	case e.Detail != "":
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrDecodeFailure)
// works regardless of path or detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Path == "" && t.Detail == "" && t.Err == nil
}

// Sentinels for errors.Is
var (
	ErrFileNotFound              = &Error{Kind: KindFileNotFound}
	ErrInvalidSource             = &Error{Kind: KindInvalidSource}
	ErrInvalidData               = &Error{Kind: KindInvalidData}
	ErrDecodeFailure             = &Error{Kind: KindDecodeFailure}
	ErrMetadataExtractionFailure = &Error{Kind: KindMetadataExtractionFailure}
	ErrFileAccessFailure         = &Error{Kind: KindFileAccessFailure}
	ErrUnsupportedFormat         = &Error{Kind: KindUnsupportedFormat}
	ErrSaveFailure               = &Error{Kind: KindSaveFailure}
	ErrBackupFailure             = &Error{Kind: KindBackupFailure}
)

func newError(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// UnsupportedFormatError names the rejected extension, without the dot.
func UnsupportedFormatError(path, ext string) *Error {
	return &Error{Kind: KindUnsupportedFormat, Path: path, Detail: ext}
}

func fileAccessError(path, detail string, err error) *Error {
	return &Error{Kind: KindFileAccessFailure, Path: path, Detail: detail, Err: err}
}

func saveError(path, detail string, err error) *Error {
	return &Error{Kind: KindSaveFailure, Path: path, Detail: detail, Err: err}
}
