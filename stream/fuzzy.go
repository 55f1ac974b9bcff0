package stream

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/glaslos/ssdeep"
	"github.com/glaslos/tlsh"

	"getthis/logger"
)

// fuzzyMaxBufferDefault bounds how much of a sample a fuzzy tap will retain;
// both SSDeep and TLSH need the whole input, so oversized samples simply go
// unhashed.
const fuzzyMaxBufferDefault = 20 * 1024 * 1024

// FuzzyHashStream is a read-through tap that retains the bytes flowing past
// it (up to a ceiling) and computes SSDeep and/or TLSH digests when asked.
type FuzzyHashStream struct {
	src       ByteStream
	wantSSDep bool
	wantTLSH  bool
	maxBuffer int64
	buf       bytes.Buffer
	overflow  bool
}

func NewFuzzyHashStream(src ByteStream, algorithms []string, maxBuffer int64) (*FuzzyHashStream, error) {
	if src == nil {
		return nil, fmt.Errorf("fuzzy hash stream: nil source")
	}
	if maxBuffer <= 0 {
		maxBuffer = fuzzyMaxBufferDefault
	}
	s := &FuzzyHashStream{src: src, maxBuffer: maxBuffer}
	for _, algo := range algorithms {
		switch strings.ToLower(strings.TrimSpace(algo)) {
		case "ssdeep":
			s.wantSSDep = true
		case "tlsh":
			s.wantTLSH = true
		case "":
		default:
			return nil, fmt.Errorf("fuzzy hash stream: unsupported algorithm %q", algo)
		}
	}
	if !s.wantSSDep && !s.wantTLSH {
		return nil, fmt.Errorf("fuzzy hash stream: no algorithms configured")
	}
	return s, nil
}

func (s *FuzzyHashStream) Read(p []byte) (int, error) {
	n, err := s.src.Read(p)
	if n > 0 && !s.overflow {
		if int64(s.buf.Len())+int64(n) > s.maxBuffer {
			s.overflow = true
			s.buf.Reset()
		} else {
			s.buf.Write(p[:n])
		}
	}
	return n, err
}

func (s *FuzzyHashStream) Seek(offset int64, whence int) (int64, error) {
	return 0, fmt.Errorf("fuzzy hash stream: seek not supported")
}

func (s *FuzzyHashStream) CopyTo(dst io.Writer) (int64, error) {
	return copyTo(s, dst)
}

func (s *FuzzyHashStream) Size() int64 { return s.src.Size() }

func (s *FuzzyHashStream) Close() error { return s.src.Close() }

// SSDeep computes the ssdeep digest of the observed bytes, or "" when the
// algorithm is not configured, the buffer overflowed, or the input is too
// small for the algorithm.
func (s *FuzzyHashStream) SSDeep() string {
	if !s.wantSSDep || s.overflow {
		return ""
	}
	digest, err := ssdeep.FuzzyBytes(s.buf.Bytes())
	if err != nil {
		logger.Debugf("ssdeep digest unavailable: %v", err)
		return ""
	}
	return digest
}

// TLSH computes the TLSH digest of the observed bytes, or "" when
// unavailable.
func (s *FuzzyHashStream) TLSH() string {
	if !s.wantTLSH || s.overflow {
		return ""
	}
	digest, err := tlsh.HashReader(bytes.NewReader(s.buf.Bytes()))
	if err != nil {
		logger.Debugf("tlsh digest unavailable: %v", err)
		return ""
	}
	return digest.String()
}
