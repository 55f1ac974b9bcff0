package sample

import (
	"fmt"
	"strings"
	"unicode"

	"getthis/scanner"
)

// FileName formats the deterministic in-archive name for a sample:
// the parent-directory reference in zero-padded uppercase hex, the file
// name, the data-stream name when present, the disambiguation index when
// non-zero, and the content tag. A double underscore after the hex groups
// marks an absent data-stream name. Whitespace, ':' and '#' are replaced
// with '_' so the result is safe for any container.
func FileName(content ContentSpec, name scanner.MatchingName, dataName string, idx uint32) string {
	var b strings.Builder

	ref := name.ParentDirectory
	fmt.Fprintf(&b, "%04X%04X%08X", ref.SequenceNumber, ref.SegmentHigh, ref.SegmentLow)

	if dataName == "" {
		b.WriteString("__")
	} else {
		b.WriteString("_")
	}
	b.WriteString(name.FileName)
	if dataName != "" {
		b.WriteString("_")
		b.WriteString(dataName)
	}
	if idx != 0 {
		fmt.Fprintf(&b, "_%d", idx)
	}
	b.WriteString("_")
	b.WriteString(content.Type.String())

	return sanitizeName(b.String())
}

// Prefixed prepends the spec subfolder, when set, with the container's
// backslash separator. Sinks targeting a native filesystem normalize the
// separator at their boundary.
func Prefixed(folder, name string) string {
	if folder == "" {
		return name
	}
	return folder + `\` + name
}

func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == ':' || r == '#' {
			return '_'
		}
		return r
	}, s)
}
