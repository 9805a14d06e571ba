// Package omr implements optical mark recognition for printable
// bubble answer sheets.
//
// # Overview
//
// omr covers the full round trip of a bubble test: generating a
// geometrically precise sheet layout from a question count and paper
// size, rendering the layout to a printable document, locating and
// reading filled bubbles on scanned pages, and scoring the extracted
// responses against an answer key with partial credit for
// multi-select questions.
//
// The root package holds the shared domain model: layout geometry,
// answer keys, responses, grades, scoring, and the two lifecycle
// state machines that gate pipeline stages. Rendering lives in
// render/, the scan pipeline in scan/, persistence in store/, and the
// operation surface in exam/ and grading/.
//
// # Quick Start
//
//	layout, err := omr.GenerateLayout(omr.LayoutParams{
//	    QuestionCount: 20,
//	    PageSize:      omr.PageA4,
//	    IDLength:      6,
//	    IDOrientation: omr.IDVertical,
//	})
//
// The layout drives both the renderer and the detector; its JSON form
// is the binding contract that keeps printed sheets and scanned pages
// in the same coordinate space.
//
// # Coordinate System
//
// All layout coordinates are in PostScript points (1/72 inch):
//   - Origin (0,0) at top-left
//   - X increases right
//   - Y increases down
//
// # Logging
//
// The library is silent by default. Call SetLogger to receive
// structured logs from the scan pipeline and the managers.
package omr

// Version information
const (
	// Version is the current version of the library
	Version = "0.3.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 3

	// VersionPatch is the patch version
	VersionPatch = 0
)
