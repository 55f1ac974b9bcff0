// Package scanner defines the match contract the collector consumes, and a
// filesystem-backed scanner implementation of it.
package scanner

import (
	"time"

	"github.com/google/uuid"

	"getthis/stream"
)

// AttrKind tags the kind of attribute a matching stream belongs to. Values
// follow the on-disk NTFS attribute type codes so the index can render the
// conventional symbolic names.
type AttrKind uint32

const (
	AttrStandardInformation AttrKind = 0x10
	AttrAttributeList       AttrKind = 0x20
	AttrFileName            AttrKind = 0x30
	AttrObjectID            AttrKind = 0x40
	AttrSecurityDescriptor  AttrKind = 0x50
	AttrVolumeName          AttrKind = 0x60
	AttrVolumeInformation   AttrKind = 0x70
	AttrData                AttrKind = 0x80
	AttrIndexRoot           AttrKind = 0x90
	AttrIndexAllocation     AttrKind = 0xA0
	AttrBitmap              AttrKind = 0xB0
	AttrReparsePoint        AttrKind = 0xC0
	AttrEAInformation       AttrKind = 0xD0
	AttrEA                  AttrKind = 0xE0
	AttrLoggedUtilityStream AttrKind = 0x100
)

// FileReference locates a file record's parent directory: a 16-bit sequence
// number plus the high and low parts of the 48-bit segment number.
type FileReference struct {
	SequenceNumber uint16
	SegmentHigh    uint16
	SegmentLow     uint32
}

// Uint64 packs the reference into the 64-bit layout used by the index.
func (r FileReference) Uint64() uint64 {
	return uint64(r.SequenceNumber)<<48 | uint64(r.SegmentHigh)<<32 | uint64(r.SegmentLow)
}

// Timestamps carries the four wall times a file record tracks.
type Timestamps struct {
	Creation     time.Time
	Modification time.Time
	Access       time.Time
	Change       time.Time
}

// MatchingName is one path alias under which the matched file is known.
type MatchingName struct {
	FullPath        string
	FileName        string
	ParentDirectory FileReference
	Times           Timestamps
}

// MatchingAttribute is one named byte stream on the matched file. Streams
// arrive opened; the collector owns consuming and closing them.
type MatchingAttribute struct {
	Kind       AttrKind
	Name       string
	InstanceID uint32
	DataStream stream.ByteStream
	RawStream  stream.ByteStream
	YaraRules  []string
}

// Term is one match specification a scanner evaluates. The collector maps a
// match back to its sample spec through the originating term pointer.
type Term struct {
	Spec        string
	Description string
}

// Match links a file and its matching attributes to the term that found it.
type Match struct {
	Term         *Term
	FRN          uint64
	VolumeSerial uint64
	SnapshotID   uuid.UUID
	StandardInfo Timestamps
	Names        []MatchingName
	Attributes   []MatchingAttribute
}

// OnMatch is invoked synchronously per match. Returning true requests the
// scanner stop producing further matches.
type OnMatch func(m *Match) (stop bool)

// Scanner produces matches for a set of locations.
type Scanner interface {
	Find(locations []string, onMatch OnMatch, recurse bool) error
}
