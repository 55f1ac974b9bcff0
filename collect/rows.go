package collect

import (
	"strings"

	"getthis/index"
	"getthis/logger"
	"getthis/sample"
)

// writeIndexRows emits one metadata row per (match, name) pair of the
// sample, in the fixed schema order. Off-limits samples keep the sample
// name cell empty; digest cells are empty whenever hashing did not run.
func (c *Collector) writeIndexRows(ref *sample.Ref) {
	out := c.sink.Table()
	attr := ref.Attribute()

	for _, m := range ref.Matches {
		for _, name := range m.Names {
			out.WriteString(c.opts.ComputerName)
			out.WriteInteger(m.VolumeSerial)
			out.WriteInteger(name.ParentDirectory.Uint64())
			out.WriteInteger(m.FRN)
			out.WriteString(name.FullPath)

			if ref.OffLimits {
				out.WriteNothing()
			} else {
				out.WriteString(ref.SampleName)
			}

			out.WriteFileSize(ref.SampleSize)
			out.WriteBytes(ref.MD5)
			out.WriteBytes(ref.SHA1)
			out.WriteString(m.Term.Description)

			switch ref.Content.Type {
			case sample.ContentData:
				out.WriteString("data")
			case sample.ContentStrings:
				out.WriteString("strings")
			default:
				out.WriteNothing()
			}

			out.WriteFileTime(ref.CollectionDate)

			out.WriteFileTime(m.StandardInfo.Creation)
			out.WriteFileTime(m.StandardInfo.Modification)
			out.WriteFileTime(m.StandardInfo.Access)
			out.WriteFileTime(m.StandardInfo.Change)

			out.WriteFileTime(name.Times.Creation)
			out.WriteFileTime(name.Times.Modification)
			out.WriteFileTime(name.Times.Access)
			out.WriteFileTime(name.Times.Change)

			if attr != nil {
				out.WriteExactFlags(uint32(attr.Kind), index.AttrTypeDefs)
				out.WriteString(attr.Name)
			} else {
				out.WriteNothing()
				out.WriteNothing()
			}

			out.WriteInteger(uint64(ref.InstanceID))
			out.WriteGUID(ref.SnapshotID)

			out.WriteBytes(ref.SHA256)
			out.WriteString(ref.SSDeep)
			out.WriteString(ref.TLSH)

			if attr != nil && len(attr.YaraRules) > 0 {
				out.WriteString(strings.Join(attr.YaraRules, "; "))
			} else {
				out.WriteNothing()
			}

			if err := out.WriteEndOfLine(); err != nil {
				logger.Errorf("Failed to add sample %s metadata to csv: %v", name.FullPath, err)
				c.failed = true
			}
		}
	}
}
