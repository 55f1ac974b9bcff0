package stream

import (
	"bytes"
	"fmt"
	"io"
)

// StringsStream extracts printable character runs from the stream below it,
// the way a strings(1) pass would: ASCII runs and UTF-16LE runs of at least
// minChars characters are emitted one per line. When maxChars is positive,
// longer runs are cut into pieces of maxChars characters and a remaining
// piece shorter than minChars is dropped. Size reports the
// underlying source size, not the extracted size, so budget decisions are
// made against the bytes actually on disk.
type StringsStream struct {
	src      ByteStream
	minChars int
	maxChars int

	in       []byte
	out      bytes.Buffer
	asciiRun []byte
	wideRun  []byte
	widePrev int16
	eof      bool
	started  bool
}

func NewStringsStream(src ByteStream, minChars, maxChars int) (*StringsStream, error) {
	if src == nil {
		return nil, fmt.Errorf("strings stream: nil source")
	}
	if minChars <= 0 {
		minChars = 3
	}
	if maxChars > 0 && maxChars < minChars {
		maxChars = minChars
	}
	return &StringsStream{
		src:      src,
		minChars: minChars,
		maxChars: maxChars,
		in:       make([]byte, 64*1024),
		widePrev: -1,
	}, nil
}

func printable(b byte) bool {
	return (b >= 0x20 && b <= 0x7E) || b == '\t'
}

func (s *StringsStream) flushASCII() {
	if len(s.asciiRun) >= s.minChars {
		s.out.Write(s.asciiRun)
		s.out.WriteByte('\n')
	}
	s.asciiRun = s.asciiRun[:0]
}

func (s *StringsStream) flushWide() {
	if len(s.wideRun) >= s.minChars {
		s.out.Write(s.wideRun)
		s.out.WriteByte('\n')
	}
	s.wideRun = s.wideRun[:0]
}

func (s *StringsStream) scan(chunk []byte) {
	for _, b := range chunk {
		// ASCII run
		if printable(b) {
			s.asciiRun = append(s.asciiRun, b)
			if s.maxChars > 0 && len(s.asciiRun) >= s.maxChars {
				s.flushASCII()
			}
		} else {
			s.flushASCII()
		}

		// UTF-16LE run: printable code unit followed by a zero byte
		if s.widePrev >= 0 {
			if b == 0 {
				s.wideRun = append(s.wideRun, byte(s.widePrev))
				s.widePrev = -1
				if s.maxChars > 0 && len(s.wideRun) >= s.maxChars {
					s.flushWide()
				}
				continue
			}
			s.flushWide()
		}
		if printable(b) {
			s.widePrev = int16(b)
		} else {
			// A zero here is a wide terminator: a code unit's low byte
			// was consumed with the previous zero, so this one ends the
			// run.
			s.widePrev = -1
			s.flushWide()
		}
	}
}

func (s *StringsStream) fill() error {
	for s.out.Len() == 0 && !s.eof {
		n, err := s.src.Read(s.in)
		if n > 0 {
			s.scan(s.in[:n])
		}
		if err != nil {
			if err != io.EOF {
				return err
			}
			s.eof = true
			s.flushASCII()
			s.widePrev = -1
			s.flushWide()
		}
	}
	return nil
}

func (s *StringsStream) Read(p []byte) (int, error) {
	s.started = true
	if err := s.fill(); err != nil {
		return 0, err
	}
	if s.out.Len() == 0 {
		return 0, io.EOF
	}
	return s.out.Read(p)
}

func (s *StringsStream) Seek(offset int64, whence int) (int64, error) {
	if offset == 0 && whence == io.SeekStart && !s.started {
		return 0, nil
	}
	return 0, fmt.Errorf("strings stream: seek not supported")
}

func (s *StringsStream) CopyTo(dst io.Writer) (int64, error) {
	return copyTo(s, dst)
}

func (s *StringsStream) Size() int64 { return s.src.Size() }

func (s *StringsStream) Close() error { return s.src.Close() }
