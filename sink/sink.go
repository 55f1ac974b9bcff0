// Package sink abstracts the terminal writer of a collection run: a
// compressed archive or a directory tree. Both variants own the index
// table stream for the run and share the lifecycle init -> accept -> close.
package sink

import (
	"getthis/index"
	"getthis/stream"
)

// OnDone is invoked once an accepted entry has been durably written (or has
// failed). The collector only records the outcome here; index rows are
// emitted after Flush, in registry order (see Sink.Flush).
type OnDone func(err error)

// Sink is the terminal writer contract.
type Sink interface {
	// Init prepares the target. Failure aborts the run.
	Init() error

	// Table returns the index writer for this run. Valid after Init.
	Table() index.Writer

	// Accept hands a named stream over for persistence. archiveName is the
	// in-container path (backslash-separated); sourceName is the matched
	// file's full path, used for diagnostics.
	Accept(archiveName, sourceName string, src stream.ByteStream, onDone OnDone) error

	// Flush seals every accepted entry, firing its onDone. Index rows are
	// emitted between Flush and Close so they land before the index itself
	// is persisted.
	Flush() error

	// Close persists the index and any transcript and seals the target.
	Close() error
}
