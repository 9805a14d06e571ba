// Package exam manages bubble tests through their lifecycle: create,
// generate the printable sheet, attach the answer key.
//
// The manager binds the layout generator and sheet renderer to the
// record repository. Every mutation re-checks lifecycle legality
// against the stored status and writes through a compare-and-set, so
// two callers racing on the same test cannot both win.
package exam
