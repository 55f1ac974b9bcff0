package stream

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"strings"
)

// CryptoHashStream is a read-through tap that updates every configured
// digest as bytes flow past it. Digests are harvested once the stream has
// been fully consumed.
type CryptoHashStream struct {
	src      ByteStream
	hashers  map[string]hash.Hash
	observed int64
}

// NewCryptoHashStream wraps src with the requested algorithms. Supported
// names are md5, sha1 and sha256; unknown names are rejected so a
// misconfiguration surfaces before any bytes move.
func NewCryptoHashStream(src ByteStream, algorithms []string) (*CryptoHashStream, error) {
	if src == nil {
		return nil, fmt.Errorf("crypto hash stream: nil source")
	}
	hashers := make(map[string]hash.Hash, len(algorithms))
	for _, algo := range algorithms {
		switch strings.ToLower(strings.TrimSpace(algo)) {
		case "md5":
			hashers["md5"] = md5.New()
		case "sha1":
			hashers["sha1"] = sha1.New()
		case "sha256":
			hashers["sha256"] = sha256.New()
		case "":
		default:
			return nil, fmt.Errorf("crypto hash stream: unsupported algorithm %q", algo)
		}
	}
	if len(hashers) == 0 {
		return nil, fmt.Errorf("crypto hash stream: no algorithms configured")
	}
	return &CryptoHashStream{src: src, hashers: hashers}, nil
}

func (s *CryptoHashStream) Read(p []byte) (int, error) {
	n, err := s.src.Read(p)
	if n > 0 {
		chunk := p[:n]
		for _, h := range s.hashers {
			h.Write(chunk)
		}
		s.observed += int64(n)
	}
	return n, err
}

func (s *CryptoHashStream) Seek(offset int64, whence int) (int64, error) {
	return 0, fmt.Errorf("crypto hash stream: seek not supported")
}

func (s *CryptoHashStream) CopyTo(dst io.Writer) (int64, error) {
	return copyTo(s, dst)
}

func (s *CryptoHashStream) Size() int64 { return s.src.Size() }

func (s *CryptoHashStream) Close() error { return s.src.Close() }

// Observed reports the number of bytes the tap has seen.
func (s *CryptoHashStream) Observed() int64 { return s.observed }

func (s *CryptoHashStream) sum(name string) []byte {
	h, ok := s.hashers[name]
	if !ok {
		return nil
	}
	return h.Sum(nil)
}

func (s *CryptoHashStream) MD5() []byte    { return s.sum("md5") }
func (s *CryptoHashStream) SHA1() []byte   { return s.sum("sha1") }
func (s *CryptoHashStream) SHA256() []byte { return s.sum("sha256") }
