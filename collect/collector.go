// Package collect drives a collection run: it feeds scanner matches through
// limit arbitration, deduplication and stream assembly, then copies every
// admitted sample into the sink and emits the index.
package collect

import (
	"fmt"
	"sync/atomic"
	"time"

	"getthis/limits"
	"getthis/logger"
	"getthis/sample"
	"getthis/scanner"
	"getthis/sink"
)

// Options carries the scan-wide knobs the collector needs beyond limits and
// specs.
type Options struct {
	// HashAlgorithms selects the crypto hash taps (md5, sha1, sha256).
	HashAlgorithms []string
	// FuzzyAlgorithms selects the fuzzy hash taps (ssdeep, tlsh).
	FuzzyAlgorithms []string
	// FuzzyMaxBytes bounds the fuzzy taps' retained bytes; zero uses the
	// stream package default.
	FuzzyMaxBytes int64
	// ReportAll drains off-limits samples through their hash taps so the
	// index still carries their digests.
	ReportAll bool
	// ContentDefaults supplies the string-extraction bounds specs inherit
	// when theirs are zero.
	ContentDefaults sample.ContentSpec
	// ComputerName labels every index row.
	ComputerName string
	// Recurse is passed through to the scanner.
	Recurse bool
	// Progress, when set, is invoked after each sample is dispatched during
	// the post-scan copy.
	Progress func(ref *sample.Ref)
}

// Collector orchestrates one scan. It is single-threaded cooperative: the
// scanner invokes the match callback synchronously and the registry needs
// no locking.
type Collector struct {
	opts   Options
	global *limits.Limits
	specs  []*sample.Spec
	scan   scanner.Scanner
	sink   sink.Sink

	registry       *sample.Registry
	collectionDate time.Time
	stopRequested  atomic.Bool
	failed         bool
}

func New(global *limits.Limits, specs []*sample.Spec, scan scanner.Scanner, snk sink.Sink, opts Options) *Collector {
	return &Collector{
		opts:     opts,
		global:   global,
		specs:    specs,
		scan:     scan,
		sink:     snk,
		registry: sample.NewRegistry(),
	}
}

// Registry exposes the populated sample set after a run.
func (c *Collector) Registry() *sample.Registry { return c.registry }

// CollectionDate is the scan timestamp, identical across every index row.
func (c *Collector) CollectionDate() time.Time { return c.collectionDate }

// Stop requests the scan halt; the match callback honors it by returning
// early without mutating state.
func (c *Collector) Stop() { c.stopRequested.Store(true) }

// Run executes the scan: initialize the sink, drive the scanner, copy every
// registered sample and close the sink. Per-match and per-sample failures
// are logged and skipped; only sink initialization failure aborts.
func (c *Collector) Run(locations []string) (err error) {
	c.collectionDate = time.Now()

	if initErr := c.sink.Init(); initErr != nil {
		return fmt.Errorf("collect: %w", initErr)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Collection aborted: %v", r)
			err = fmt.Errorf("collect: collection aborted: %v", r)
		}
		if closeErr := c.sink.Close(); closeErr != nil {
			logger.Errorf("Failed to close output: %v", closeErr)
			if err == nil {
				err = fmt.Errorf("collect: %w", closeErr)
			}
		}
		if err == nil && c.failed {
			err = fmt.Errorf("collect: one or more samples failed")
		}
	}()

	if findErr := c.scan.Find(locations, c.onMatch, c.opts.Recurse); findErr != nil {
		logger.Errorf("Failed while parsing locations: %v", findErr)
		c.failed = true
	}

	c.writeSamples()
	return nil
}

// onMatch is the scanner callback, executed one match at a time.
func (c *Collector) onMatch(m *scanner.Match) bool {
	if c.stopRequested.Load() {
		return true
	}

	if len(m.Attributes) == 0 {
		logger.Warnf("%q matched %q but no data related attribute was associated",
			primaryPath(m), m.Term.Description)
		return false
	}

	spec := c.specForTerm(m.Term)
	if spec == nil {
		logger.Errorf("Could not find sample spec for match %s", m.Term.Description)
		return false
	}

	for i := range m.Attributes {
		c.addSampleForAttribute(spec, m, i)
	}
	return false
}

func (c *Collector) specForTerm(t *scanner.Term) *sample.Spec {
	for _, spec := range c.specs {
		if spec.HasTerm(t) {
			return spec
		}
	}
	return nil
}

func (c *Collector) addSampleForAttribute(spec *sample.Spec, m *scanner.Match, attrIndex int) {
	attr := &m.Attributes[attrIndex]
	name := m.Names[0]

	var dataSize uint64
	verdict := limits.FailedToComputeLimits
	if attr.DataStream != nil && attr.DataStream.Size() >= 0 {
		dataSize = uint64(attr.DataStream.Size())
		verdict = limits.Verdict(c.global, &spec.PerSampleLimits, dataSize)
	}

	ref := &sample.Ref{
		Identity: sample.Identity{
			FRN:            m.FRN,
			VolumeSerial:   m.VolumeSerial,
			SnapshotID:     m.SnapshotID,
			InstanceID:     attr.InstanceID,
			AttributeIndex: attrIndex,
		},
		Matches:     []*scanner.Match{m},
		OffLimits:   !verdict.Within(),
		LimitStatus: verdict,
	}

	if _, inserted := c.registry.InsertOrFind(ref); !inserted {
		logger.Infof("\t%s is already collected", name.FullPath)
		closeAttributeStreams(attr)
		return
	}

	ref.Content = spec.Content
	ref.CollectionDate = c.collectionDate
	ref.SampleName = c.registry.AllocateName(func(idx uint32) string {
		return sample.Prefixed(spec.Name, sample.FileName(spec.Content, name, attr.Name, idx))
	})

	if err := c.configureStreams(ref); err != nil {
		logger.Errorf("Failed to configure sample reference for %s: %v", ref.SampleName, err)
	}

	if verdict.Within() {
		logger.Infof("\t%s matched (%d bytes)", name.FullPath, dataSize)
		spec.PerSampleLimits.AccumulatedBytesTotal += dataSize
		spec.PerSampleLimits.AccumulatedSampleCount++
		c.global.AccumulatedBytesTotal += dataSize
		c.global.AccumulatedSampleCount++
		return
	}
	c.reportOffLimits(spec, name.FullPath, verdict)
}

// reportOffLimits logs which ceiling was hit with its configured value and
// sets the sticky reached flag on the offending budget. The flags are
// diagnostic only; they never gate admission.
func (c *Collector) reportOffLimits(spec *sample.Spec, path string, verdict limits.Status) {
	local := &spec.PerSampleLimits
	switch verdict {
	case limits.GlobalSampleCountLimitReached:
		logger.Infof("\t%s : Global sample count reached (%d)", path, c.global.MaxSampleCount)
		c.global.MaxSampleCountReached = true
	case limits.GlobalMaxBytesPerSample:
		logger.Infof("\t%s : Exceeds global per sample size limit (%d)", path, c.global.MaxBytesPerSample)
		c.global.MaxBytesPerSampleReached = true
	case limits.GlobalMaxBytesTotal:
		logger.Infof("\t%s : Global total sample size limit reached (%d)", path, c.global.MaxBytesTotal)
		c.global.MaxBytesTotalReached = true
	case limits.LocalSampleCountLimitReached:
		logger.Infof("\t%s : sample count reached (%d)", path, local.MaxSampleCount)
		local.MaxSampleCountReached = true
	case limits.LocalMaxBytesPerSample:
		logger.Infof("\t%s : Exceeds per sample size limit (%d)", path, local.MaxBytesPerSample)
		local.MaxBytesPerSampleReached = true
	case limits.LocalMaxBytesTotal:
		logger.Infof("\t%s : total sample size limit reached (%d)", path, local.MaxBytesTotal)
		local.MaxBytesTotalReached = true
	case limits.FailedToComputeLimits:
		logger.Warnf("\t%s : failed to compute limits", path)
	}
}

// writeSamples dispatches every registered sample to the sink in registry
// iteration order, seals the queued payloads, then emits all index rows in
// one registry-order pass. Emitting rows after the flush keeps the index in
// registry order for both sink variants: the archive sink does not fire
// onDone until its queue is compressed, so writing rows from the callbacks
// would order them by sink timing instead. Failures log and advance to the
// next sample.
func (c *Collector) writeSamples() {
	logger.Info("Adding matching samples to output:")

	samples := c.registry.Samples()
	archived := make(map[*sample.Ref]bool, len(samples))

	for _, ref := range samples {
		if ref.OffLimits {
			c.finalizeHashes(ref)
			if ref.CopyStream != nil {
				ref.CopyStream.Close()
			}
			c.progress(ref)
			continue
		}
		if ref.CopyStream == nil {
			logger.Errorf("Sample %s has no pipeline; skipping", ref.SampleName)
			c.failed = true
			continue
		}
		ref := ref
		err := c.sink.Accept(ref.SampleName, primaryPath(ref.Primary()), ref.CopyStream, func(archiveErr error) {
			if archiveErr != nil {
				logger.Errorf("Failed to write sample %s: %v", ref.SampleName, archiveErr)
				c.failed = true
				return
			}
			c.finalizeHashes(ref)
			archived[ref] = true
			c.progress(ref)
		})
		if err != nil {
			logger.Errorf("Failed to add sample %s: %v", ref.SampleName, err)
			c.failed = true
		}
	}

	if err := c.sink.Flush(); err != nil {
		logger.Errorf("Failed to flush output: %v", err)
		c.failed = true
	}

	// Off-limits samples are always indexed; admitted samples only once
	// their payload is durably written.
	for _, ref := range samples {
		if ref.OffLimits || archived[ref] {
			c.writeIndexRows(ref)
		}
	}
}

func (c *Collector) progress(ref *sample.Ref) {
	if c.opts.Progress != nil {
		c.opts.Progress(ref)
	}
}

func closeAttributeStreams(attr *scanner.MatchingAttribute) {
	if attr.DataStream != nil {
		attr.DataStream.Close()
	}
	if attr.RawStream != nil {
		attr.RawStream.Close()
	}
}

func primaryPath(m *scanner.Match) string {
	if m == nil || len(m.Names) == 0 {
		return ""
	}
	return m.Names[0].FullPath
}
