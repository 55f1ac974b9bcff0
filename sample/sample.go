// Package sample defines the unit of collection work: a unique
// (file, attribute) pair, its content directive, and the registry that
// guarantees each is archived exactly once.
package sample

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"getthis/limits"
	"getthis/scanner"
	"getthis/stream"
)

// ContentType selects what bytes of an attribute are collected.
type ContentType int

const (
	ContentData ContentType = iota
	ContentStrings
	ContentRaw
)

func (t ContentType) String() string {
	switch t {
	case ContentData:
		return "data"
	case ContentStrings:
		return "strings"
	case ContentRaw:
		return "raw"
	}
	return ""
}

// ParseContentType reads a content directive such as "data", "strings" or
// "strings,4,256" (min and max characters for extraction).
func ParseContentType(s string) (ContentSpec, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), ",")
	var spec ContentSpec
	switch parts[0] {
	case "", "data":
		spec.Type = ContentData
	case "strings":
		spec.Type = ContentStrings
	case "raw":
		spec.Type = ContentRaw
	default:
		return ContentSpec{}, fmt.Errorf("unknown content type %q", parts[0])
	}
	if spec.Type == ContentStrings && len(parts) > 1 {
		if len(parts) != 3 {
			return ContentSpec{}, fmt.Errorf("content %q: want strings,<min>,<max>", s)
		}
		if _, err := fmt.Sscanf(parts[1]+" "+parts[2], "%d %d", &spec.MinChars, &spec.MaxChars); err != nil {
			return ContentSpec{}, fmt.Errorf("content %q: %w", s, err)
		}
		if spec.MinChars < 0 || spec.MaxChars < 0 {
			return ContentSpec{}, fmt.Errorf("content %q: negative bounds", s)
		}
	}
	return spec, nil
}

// ContentSpec is a content type plus the string-extraction bounds; zero
// bounds inherit the scan-wide defaults.
type ContentSpec struct {
	Type     ContentType
	MinChars int
	MaxChars int
}

// Spec binds a set of scanner terms to a content directive, an in-archive
// subfolder and per-spec limits.
type Spec struct {
	Name            string
	Terms           []*scanner.Term
	Content         ContentSpec
	PerSampleLimits limits.Limits
}

// HasTerm reports whether the spec owns the given term.
func (s *Spec) HasTerm(t *scanner.Term) bool {
	for _, own := range s.Terms {
		if own == t {
			return true
		}
	}
	return false
}

// Identity is the dedup key: two samples with equal identity are the same
// sample regardless of payload.
type Identity struct {
	FRN            uint64
	VolumeSerial   uint64
	SnapshotID     uuid.UUID
	InstanceID     uint32
	AttributeIndex int
}

// less orders identities for deterministic registry iteration.
func (a Identity) less(b Identity) bool {
	if a.FRN != b.FRN {
		return a.FRN < b.FRN
	}
	if a.VolumeSerial != b.VolumeSerial {
		return a.VolumeSerial < b.VolumeSerial
	}
	if c := strings.Compare(a.SnapshotID.String(), b.SnapshotID.String()); c != 0 {
		return c < 0
	}
	if a.InstanceID != b.InstanceID {
		return a.InstanceID < b.InstanceID
	}
	return a.AttributeIndex < b.AttributeIndex
}

// Ref is one unit of collection work. The identity is immutable; the
// payload is mutated by the collector and stream assembly until the sample
// is sealed.
type Ref struct {
	Identity

	Matches        []*scanner.Match
	Content        ContentSpec
	SampleName     string
	SampleSize     int64
	CollectionDate time.Time
	OffLimits      bool
	LimitStatus    limits.Status

	CopyStream      stream.ByteStream
	HashStream      *stream.CryptoHashStream
	FuzzyHashStream *stream.FuzzyHashStream

	MD5    []byte
	SHA1   []byte
	SHA256 []byte
	SSDeep string
	TLSH   string
}

// Primary returns the match that first produced this sample.
func (r *Ref) Primary() *scanner.Match {
	if len(r.Matches) == 0 {
		return nil
	}
	return r.Matches[0]
}

// Attribute returns the matching attribute this sample collects.
func (r *Ref) Attribute() *scanner.MatchingAttribute {
	m := r.Primary()
	if m == nil || r.AttributeIndex >= len(m.Attributes) {
		return nil
	}
	return &m.Attributes[r.AttributeIndex]
}
