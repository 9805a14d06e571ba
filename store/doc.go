// Package store persists tests, sheets, answer keys, grading jobs and
// their artifacts.
//
// The Store interface is the repository contract the managers program
// against; SQLStore is the shipped SQLite implementation. Status
// changes are compare-and-set against the status the caller observed,
// so concurrent callers acting on the same entity serialize: the loser
// gets ErrInvalidState and no write. Composite writes (sheet plus
// status, scan results plus counters plus status) are single
// transactions; a failed call leaves the entity exactly as it was.
package store
