// Package render turns a bubble-sheet layout into printable and
// scannable artifacts.
//
// DrawSheet walks an omr.Layout and issues drawing primitives against
// a Painter. Two painters are provided:
//
//   - PDFPainter writes a vector PDF, the sheet teachers print.
//   - RasterPainter draws onto an in-memory grayscale page, the form
//     the detector consumes. It accepts an affine pre-transform so
//     tests can produce scaled, shifted, or rotated pages.
//
// Placement comes from the layout alone. The renderer never
// recomputes bubble geometry; the coordinates the detector later
// probes are exactly the coordinates drawn here.
//
// # Text
//
// The raster painter shapes text with go-text/typesetting (HarfBuzz)
// using the embedded Go Regular face, splitting bidirectional input
// into runs first, and fills the resulting glyph outlines with the
// same scanline filler used for bubbles. The PDF painter uses the PDF
// core Helvetica font.
package render
