package omr

import "errors"

// Error taxonomy for the bubble pipeline. Callers classify failures
// with errors.Is; detailed context is attached by wrapping with
// fmt.Errorf("%w: ...").
var (
	// ErrInvalidParameter reports layout or key inputs outside the
	// accepted bounds. The triggering call is rejected before any
	// state change.
	ErrInvalidParameter = errors.New("omr: invalid parameter")

	// ErrInvalidState reports an operation attempted from the wrong
	// lifecycle status. The entity is left unchanged.
	ErrInvalidState = errors.New("omr: invalid state")

	// ErrAlignment reports that a scanned page's fiducial markers
	// could not be resolved. The page is skipped; the job continues.
	ErrAlignment = errors.New("omr: alignment failed")

	// ErrDecodeAmbiguity reports an indeterminate response field,
	// such as a student-ID column with zero or multiple filled rows.
	// Recorded per response, never fatal.
	ErrDecodeAmbiguity = errors.New("omr: ambiguous decode")

	// ErrConfiguration reports an answer key referencing a question
	// absent from the layout. Rejected at key-set time.
	ErrConfiguration = errors.New("omr: configuration error")

	// ErrNotFound reports an unknown test or job identifier.
	ErrNotFound = errors.New("omr: not found")
)
