package collect

import (
	"errors"
	"fmt"

	"getthis/logger"
	"getthis/sample"
	"getthis/stream"
)

var errEmptySampleName = errors.New("empty sample name")

// configureStreams builds the layered read pipeline for one sample: content
// source, then the crypto hash tap, then the fuzzy hash tap. The top of the
// stack becomes the sample's copy stream and its size is recorded at
// assembly time. Partially built layers are released on failure.
func (c *Collector) configureStreams(ref *sample.Ref) error {
	if ref.SampleName == "" {
		return errEmptySampleName
	}
	attr := ref.Attribute()
	if attr == nil {
		return fmt.Errorf("sample %s: no matching attribute", ref.SampleName)
	}

	var src stream.ByteStream
	switch ref.Content.Type {
	case sample.ContentRaw:
		if attr.RawStream == nil {
			return fmt.Errorf("sample %s: no raw stream", ref.SampleName)
		}
		src = attr.RawStream
	case sample.ContentStrings:
		minChars, maxChars := ref.Content.MinChars, ref.Content.MaxChars
		if minChars == 0 && maxChars == 0 {
			minChars = c.opts.ContentDefaults.MinChars
			maxChars = c.opts.ContentDefaults.MaxChars
		}
		extractor, err := stream.NewStringsStream(attr.DataStream, minChars, maxChars)
		if err != nil {
			return fmt.Errorf("sample %s: %w", ref.SampleName, err)
		}
		src = extractor
	default:
		src = attr.DataStream
	}

	top := src
	if len(c.opts.HashAlgorithms) > 0 {
		tap, err := stream.NewCryptoHashStream(top, c.opts.HashAlgorithms)
		if err != nil {
			top.Close()
			return fmt.Errorf("sample %s: %w", ref.SampleName, err)
		}
		ref.HashStream = tap
		top = tap
	}
	if len(c.opts.FuzzyAlgorithms) > 0 {
		tap, err := stream.NewFuzzyHashStream(top, c.opts.FuzzyAlgorithms, c.opts.FuzzyMaxBytes)
		if err != nil {
			top.Close()
			ref.HashStream = nil
			return fmt.Errorf("sample %s: %w", ref.SampleName, err)
		}
		ref.FuzzyHashStream = tap
		top = tap
	}

	ref.CopyStream = top
	ref.SampleSize = top.Size()
	return nil
}

// finalizeHashes harvests the digests accumulated by the sample's taps.
// Off-limits samples in report-all mode have not flowed anywhere yet, so
// they are drained into a discard stream first; this is the single place
// that consumes bytes we are not keeping.
func (c *Collector) finalizeHashes(ref *sample.Ref) {
	if ref.HashStream == nil && ref.FuzzyHashStream == nil {
		return
	}

	if ref.OffLimits {
		if !c.opts.ReportAll || ref.HashStream == nil || ref.CopyStream == nil {
			// Bytes were never read; there is nothing to report.
			return
		}
		discard := stream.NewDiscardStream()
		if _, err := ref.CopyStream.CopyTo(discard); err != nil {
			logger.Errorf("Failed while computing hash of %s: %v", ref.SampleName, err)
		}
	}

	if ref.HashStream != nil {
		ref.MD5 = ref.HashStream.MD5()
		ref.SHA1 = ref.HashStream.SHA1()
		ref.SHA256 = ref.HashStream.SHA256()
	}

	if ref.FuzzyHashStream != nil {
		ref.SSDeep = ref.FuzzyHashStream.SSDeep()
		ref.TLSH = ref.FuzzyHashStream.TLSH()
	}
}
