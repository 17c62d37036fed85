package readpos

import "errors"

// Sentinel errors returned by the readpos package.
var (
	// ErrStructureUnavailable indicates the book archive is missing,
	// corrupt, DRM-protected, or its package descriptor cannot be resolved.
	ErrStructureUnavailable = errors.New("readpos: book structure unavailable")

	// ErrSpanNotFound indicates the span identifier was not found in any
	// content file of the archive.
	ErrSpanNotFound = errors.New("readpos: span identifier not found")

	// ErrTextNotMatched indicates the extracted text sample was not found
	// in the target rendition by exact or fuzzy search.
	ErrTextNotMatched = errors.New("readpos: text not matched in target")

	// ErrFormatUnparseable indicates a position string does not match any
	// known grammar. This is a recoverable condition, not a crash.
	ErrFormatUnparseable = errors.New("readpos: position format unparseable")

	// ErrFileNotFound indicates the requested file does not exist in the
	// archive or in the remote store.
	ErrFileNotFound = errors.New("readpos: file not found")
)
