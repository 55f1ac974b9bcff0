package scanner

import (
	"os"

	"github.com/djherbis/times"
)

// fileTimes harvests the four wall times for a file record. Filesystems
// that carry no native timestamp metadata fall back to the modification
// time for every slot.
func fileTimes(info os.FileInfo) Timestamps {
	mod := info.ModTime()
	ts := Timestamps{
		Creation:     mod,
		Modification: mod,
		Access:       mod,
		Change:       mod,
	}
	if info.Sys() == nil {
		return ts
	}
	spec := times.Get(info)
	ts.Access = spec.AccessTime()
	if spec.HasChangeTime() {
		ts.Change = spec.ChangeTime()
	}
	if spec.HasBirthTime() {
		ts.Creation = spec.BirthTime()
	}
	return ts
}
