package stream

import "io"

// DiscardStream swallows every byte written to it and counts them. It is the
// drain target used when an off-limits sample must still flow through its
// hash taps.
type DiscardStream struct {
	written int64
}

func NewDiscardStream() *DiscardStream { return &DiscardStream{} }

func (s *DiscardStream) Write(p []byte) (int, error) {
	s.written += int64(len(p))
	return len(p), nil
}

func (s *DiscardStream) Read(p []byte) (int, error) { return 0, io.EOF }

func (s *DiscardStream) Seek(offset int64, whence int) (int64, error) { return 0, nil }

func (s *DiscardStream) CopyTo(dst io.Writer) (int64, error) { return 0, nil }

// Size reports the number of bytes swallowed so far.
func (s *DiscardStream) Size() int64 { return s.written }

func (s *DiscardStream) Close() error { return nil }
