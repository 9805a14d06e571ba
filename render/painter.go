package render

// Align selects how a text string is anchored to its x coordinate.
type Align uint8

// Text anchoring modes.
const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Painter is the drawing surface DrawSheet targets. Coordinates are
// layout points with the origin at the page's top-left corner; text
// y coordinates are baselines. Each backend applies its own device
// mapping and text metrics.
type Painter interface {
	// FillRect fills the axis-aligned rectangle with ink.
	FillRect(x, y, w, h float64)

	// StrokeRect outlines the rectangle with the given line width.
	StrokeRect(x, y, w, h, width float64)

	// FillCircle fills the disc centered at (cx, cy).
	FillCircle(cx, cy, r float64)

	// StrokeCircle outlines the circle with the given line width.
	StrokeCircle(cx, cy, r, width float64)

	// Text draws s at the given font size with its baseline at y,
	// anchored to x per align.
	Text(x, y, size float64, s string, align Align)
}
