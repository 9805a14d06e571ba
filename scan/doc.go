// Package scan extracts bubble responses from scanned sheet images.
//
// The detector runs four stages per page, each independently
// failable:
//
//  1. Fiducial location: Otsu binarization, then a connected-component
//     search in each corner window for the printed marker squares.
//  2. Rectification: a perspective (or least-squares affine) transform
//     from layout coordinates to this page's pixels, built from the
//     located markers.
//  3. Sampling: a fill ratio per bubble, judged against the page's own
//     ink threshold so exposure differences between scanners wash out.
//  4. Decode: classified bubbles become a StudentResponse; an ID
//     column without exactly one filled row decodes to '?'.
//
// Alignment failures mark the page ERROR and the batch continues; a
// crumpled page never invalidates the upload. Pipeline fans pages out
// over a worker pool and merges results in page order.
package scan
