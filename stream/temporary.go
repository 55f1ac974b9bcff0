package stream

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// SpillThreshold is the in-memory ceiling for a TemporaryStream; buffers
// growing past it move to a temp file.
const SpillThreshold = 5 * 1024 * 1024

// TemporaryStream is a write-then-read scratch stream. Content accumulates
// in memory and spills to a temporary file once it outgrows SpillThreshold.
// Rewind switches the stream to the read side; Close discards the backing
// file.
type TemporaryStream struct {
	pattern string
	buf     bytes.Buffer
	file    *os.File
	size    int64
	reading bool
}

func NewTemporaryStream(pattern string) *TemporaryStream {
	if pattern == "" {
		pattern = "getthis-tmp-*"
	}
	return &TemporaryStream{pattern: pattern}
}

func (s *TemporaryStream) Write(p []byte) (int, error) {
	if s.reading {
		return 0, fmt.Errorf("temporary stream: write after rewind")
	}
	if s.file == nil && s.size+int64(len(p)) > SpillThreshold {
		if err := s.spill(); err != nil {
			return 0, err
		}
	}
	var n int
	var err error
	if s.file != nil {
		n, err = s.file.Write(p)
	} else {
		n, err = s.buf.Write(p)
	}
	s.size += int64(n)
	return n, err
}

func (s *TemporaryStream) spill() error {
	f, err := os.CreateTemp("", s.pattern)
	if err != nil {
		return fmt.Errorf("temporary stream: %w", err)
	}
	if _, err := f.Write(s.buf.Bytes()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("temporary stream: %w", err)
	}
	s.buf.Reset()
	s.file = f
	return nil
}

// Rewind positions the stream at offset zero for reading back.
func (s *TemporaryStream) Rewind() error {
	s.reading = true
	if s.file != nil {
		_, err := s.file.Seek(0, io.SeekStart)
		return err
	}
	return nil
}

func (s *TemporaryStream) Read(p []byte) (int, error) {
	if !s.reading {
		if err := s.Rewind(); err != nil {
			return 0, err
		}
	}
	if s.file != nil {
		return s.file.Read(p)
	}
	return s.buf.Read(p)
}

func (s *TemporaryStream) Seek(offset int64, whence int) (int64, error) {
	if offset == 0 && whence == io.SeekStart {
		if s.file != nil {
			s.reading = true
			return s.file.Seek(0, io.SeekStart)
		}
		// The in-memory buffer only rewinds before the first read drains it.
		if !s.reading {
			s.reading = true
		}
		return 0, nil
	}
	if s.file != nil {
		return s.file.Seek(offset, whence)
	}
	return 0, fmt.Errorf("temporary stream: unsupported seek in memory")
}

func (s *TemporaryStream) CopyTo(dst io.Writer) (int64, error) {
	return copyTo(s, dst)
}

func (s *TemporaryStream) Size() int64 { return s.size }

// Spilled reports whether content has moved to a backing file.
func (s *TemporaryStream) Spilled() bool { return s.file != nil }

func (s *TemporaryStream) Close() error {
	if s.file == nil {
		s.buf.Reset()
		return nil
	}
	name := s.file.Name()
	err := s.file.Close()
	if rmErr := os.Remove(name); err == nil {
		err = rmErr
	}
	s.file = nil
	return err
}
