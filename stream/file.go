package stream

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/exp/mmap"
)

// MmapMinSize is the file size at which OpenFile prefers a memory-mapped
// reader over buffered reads.
const MmapMinSize = 128 * 1024

var openMmapReader = mmap.Open

// FileStream reads a regular file. Files at or above MmapMinSize are served
// from a memory mapping when the platform allows it; smaller files and mmap
// failures fall back to the plain file handle.
type FileStream struct {
	path string
	f    *os.File
	m    *mmap.ReaderAt
	pos  int64
	size int64
}

func OpenFile(path string) (*FileStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	s := &FileStream{path: path, f: f, size: info.Size()}
	if info.Size() >= MmapMinSize {
		if m, err := openMmapReader(path); err == nil {
			s.m = m
			f.Close()
			s.f = nil
		}
	}
	return s, nil
}

func (s *FileStream) Read(p []byte) (int, error) {
	if s.m != nil {
		if s.pos >= s.size {
			return 0, io.EOF
		}
		n, err := s.m.ReadAt(p, s.pos)
		s.pos += int64(n)
		if err == io.EOF && n > 0 {
			err = nil
		}
		return n, err
	}
	return s.f.Read(p)
}

func (s *FileStream) Seek(offset int64, whence int) (int64, error) {
	if s.m != nil {
		var base int64
		switch whence {
		case io.SeekStart:
			base = 0
		case io.SeekCurrent:
			base = s.pos
		case io.SeekEnd:
			base = s.size
		default:
			return 0, fmt.Errorf("seek %s: invalid whence %d", s.path, whence)
		}
		pos := base + offset
		if pos < 0 {
			return 0, fmt.Errorf("seek %s: negative position", s.path)
		}
		s.pos = pos
		return pos, nil
	}
	return s.f.Seek(offset, whence)
}

func (s *FileStream) CopyTo(dst io.Writer) (int64, error) {
	return copyTo(s, dst)
}

func (s *FileStream) Size() int64 { return s.size }

func (s *FileStream) Close() error {
	if s.m != nil {
		m := s.m
		s.m = nil
		return m.Close()
	}
	if s.f != nil {
		f := s.f
		s.f = nil
		return f.Close()
	}
	return nil
}
