// Package stream models the byte-stream capability interface the collection
// pipeline is composed from. Variants (file, memory, temporary, strings
// extractor, hash taps, discard) are independent implementations composed by
// wrapping.
package stream

import (
	"io"
)

const copyBufferSize = 128 * 1024

// ByteStream is the capability interface every pipeline layer implements.
// Size reports the stream length in bytes as known at open time; wrapping
// layers propagate the size of the layer below.
type ByteStream interface {
	io.Reader
	io.Seeker
	io.Closer

	// CopyTo drains the stream into dst and reports the bytes written.
	CopyTo(dst io.Writer) (int64, error)

	Size() int64
}

// copyTo is the shared CopyTo implementation for streams whose Read carries
// all the per-layer behavior.
func copyTo(src io.Reader, dst io.Writer) (int64, error) {
	buf := make([]byte, copyBufferSize)
	return io.CopyBuffer(dst, struct{ io.Reader }{src}, buf)
}
