package stream

import (
	"bytes"
	"io"
)

// MemoryStream serves a byte slice as a ByteStream.
type MemoryStream struct {
	r    *bytes.Reader
	size int64
}

func NewMemoryStream(data []byte) *MemoryStream {
	return &MemoryStream{r: bytes.NewReader(data), size: int64(len(data))}
}

func (s *MemoryStream) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func (s *MemoryStream) Seek(offset int64, whence int) (int64, error) {
	return s.r.Seek(offset, whence)
}

func (s *MemoryStream) CopyTo(dst io.Writer) (int64, error) {
	return copyTo(s.r, dst)
}

func (s *MemoryStream) Size() int64 { return s.size }

func (s *MemoryStream) Close() error { return nil }
