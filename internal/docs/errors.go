package docs

import "errors"

var (
	// ErrWrongKind is returned when an operation targets a document of the
	// wrong kind, e.g. saving an edit to a risk analysis.
	ErrWrongKind = errors.New("operation not valid for this document kind")

	// ErrNotReady is returned when an operation requires a completed
	// generation and the document is still pending, processing, or failed.
	ErrNotReady = errors.New("document generation has not completed")

	// ErrNoSourceChat is returned when a cross-generation needs the original
	// chat transcript and the source document does not carry one.
	ErrNoSourceChat = errors.New("source document has no chat content")

	// ErrVersionRange is returned when a restore targets an index outside
	// the stored version history.
	ErrVersionRange = errors.New("version index out of range")

	// ErrEmptyContent is returned when a save or generation input is blank.
	ErrEmptyContent = errors.New("content is empty")
)
