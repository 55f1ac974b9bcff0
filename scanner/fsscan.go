package scanner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/cloudflare/ahocorasick"
	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"getthis/logger"
	"getthis/stream"
)

// maxContentScanBytes bounds how much of a file a content: term will read.
const maxContentScanBytes = 10 * 1024 * 1024

// FSScanner walks a filesystem tree and produces a Match for the first term
// each file satisfies. It implements the Scanner contract over an afero.Fs
// so both live filesystems and in-memory fixtures can be scanned.
type FSScanner struct {
	fs         afero.Fs
	terms      []compiledTerm
	contentIdx []int
	contentAC  *ahocorasick.Matcher
	limiter    *rate.Limiter
	snapshotID uuid.UUID
	excludes   []string
}

// NewFSScanner compiles terms into a scanner. opensPerSecond throttles
// file opens; zero or negative disables the throttle.
func NewFSScanner(fsys afero.Fs, terms []*Term, opensPerSecond int) (*FSScanner, error) {
	s := &FSScanner{fs: fsys}
	if opensPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opensPerSecond), opensPerSecond)
	} else {
		s.limiter = rate.NewLimiter(rate.Inf, 1)
	}

	var contentPatterns []string
	for _, t := range terms {
		ct, err := compileTerm(t)
		if err != nil {
			return nil, err
		}
		if ct.kind == termContent {
			s.contentIdx = append(s.contentIdx, len(s.terms))
			contentPatterns = append(contentPatterns, ct.pattern)
		}
		s.terms = append(s.terms, ct)
	}
	if len(contentPatterns) > 0 {
		s.contentAC = ahocorasick.NewStringMatcher(contentPatterns)
	}
	return s, nil
}

// SetSnapshotID marks every produced match as originating from the given
// volume snapshot.
func (s *FSScanner) SetSnapshotID(id uuid.UUID) { s.snapshotID = id }

// SetExcludes installs file-name globs that suppress matching entirely.
func (s *FSScanner) SetExcludes(globs []string) { s.excludes = globs }

// Find walks each location and invokes onMatch synchronously for every
// matching file. The callback returning true stops the walk.
func (s *FSScanner) Find(locations []string, onMatch OnMatch, recurse bool) error {
	if onMatch == nil {
		return fmt.Errorf("fsscan: nil match callback")
	}
	for _, loc := range locations {
		stopped, err := s.walk(loc, onMatch, recurse)
		if err != nil {
			return fmt.Errorf("fsscan %s: %w", loc, err)
		}
		if stopped {
			return nil
		}
	}
	return nil
}

// walk is an iterative stack-based traversal; it keeps memory flat on deep
// trees and gives the stop signal a checkpoint between every entry.
func (s *FSScanner) walk(root string, onMatch OnMatch, recurse bool) (bool, error) {
	rootInfo, err := s.fs.Stat(root)
	if err != nil {
		return false, err
	}
	if !rootInfo.IsDir() {
		return s.visit(root, rootInfo, onMatch)
	}

	stack := []string{root}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := afero.ReadDir(s.fs, current)
		if err != nil {
			logger.Warnf("Failed to read directory %s: %v", current, err)
			continue
		}
		for _, entry := range entries {
			path := filepath.Join(current, entry.Name())
			if entry.IsDir() {
				if recurse {
					stack = append(stack, path)
				}
				continue
			}
			if !entry.Mode().IsRegular() {
				continue
			}
			stopped, err := s.visit(path, entry, onMatch)
			if err != nil {
				logger.Warnf("Failed to scan %s: %v", path, err)
				continue
			}
			if stopped {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *FSScanner) visit(path string, info os.FileInfo, onMatch OnMatch) (bool, error) {
	if s.excluded(path) {
		return false, nil
	}
	term, ok, err := s.evaluate(path, info)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	m, err := s.buildMatch(path, info, term)
	if err != nil {
		return false, err
	}
	return onMatch(m), nil
}

func (s *FSScanner) excluded(path string) bool {
	base := filepath.Base(path)
	for _, glob := range s.excludes {
		if matched, _ := filepath.Match(glob, base); matched {
			return true
		}
	}
	return false
}

// evaluate returns the first term the file satisfies, in term order.
func (s *FSScanner) evaluate(path string, info os.FileInfo) (*Term, bool, error) {
	var contentHits map[int]bool
	contentScanned := false

	for i, ct := range s.terms {
		switch ct.kind {
		case termName:
			if matched, _ := filepath.Match(ct.pattern, filepath.Base(path)); matched {
				return ct.term, true, nil
			}
		case termSizeAbove:
			if info.Size() > ct.size {
				return ct.term, true, nil
			}
		case termSizeBelow:
			if info.Size() < ct.size {
				return ct.term, true, nil
			}
		case termFileKind:
			hit, err := s.matchKind(path, ct.pattern)
			if err != nil {
				return nil, false, err
			}
			if hit {
				return ct.term, true, nil
			}
		case termContent:
			if !contentScanned {
				hits, err := s.scanContent(path, info)
				if err != nil {
					return nil, false, err
				}
				contentHits = hits
				contentScanned = true
			}
			if contentHits[i] {
				return ct.term, true, nil
			}
		}
	}
	return nil, false, nil
}

func (s *FSScanner) matchKind(path, class string) (bool, error) {
	if err := s.throttle(); err != nil {
		return false, err
	}
	f, err := s.fs.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, 261)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	kind, err := filetype.Match(head[:n])
	if err != nil {
		return false, err
	}
	if kind == filetype.Unknown {
		return false, nil
	}
	return class == kind.Extension ||
		class == strings.ToLower(kind.MIME.Type) ||
		class == strings.ToLower(kind.MIME.Value), nil
}

// scanContent runs the single Aho-Corasick pass over the file and reports
// which content terms hit, keyed by compiled-term index.
func (s *FSScanner) scanContent(path string, info os.FileInfo) (map[int]bool, error) {
	if s.contentAC == nil {
		return nil, nil
	}
	if info.Size() > maxContentScanBytes {
		return nil, nil
	}
	if err := s.throttle(); err != nil {
		return nil, err
	}
	content, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, err
	}
	hits := make(map[int]bool)
	for _, patternIdx := range s.contentAC.Match(content) {
		hits[s.contentIdx[patternIdx]] = true
	}
	return hits, nil
}

func (s *FSScanner) throttle() error {
	return s.limiter.Wait(context.Background())
}

func (s *FSScanner) buildMatch(path string, info os.FileInfo, term *Term) (*Match, error) {
	frn, serial, native := fileIdentity(path, info)
	if !native {
		frn = xxhash.Sum64String(path)
		serial = xxhash.Sum64String(rootOf(path))
	}

	parentRef := s.parentReference(path)
	ts := fileTimes(info)

	dataStream, err := s.openStream(path, info)
	if err != nil {
		return nil, err
	}
	rawStream, err := s.openStream(path, info)
	if err != nil {
		dataStream.Close()
		return nil, err
	}

	return &Match{
		Term:         term,
		FRN:          frn,
		VolumeSerial: serial,
		SnapshotID:   s.snapshotID,
		StandardInfo: ts,
		Names: []MatchingName{{
			FullPath:        path,
			FileName:        filepath.Base(path),
			ParentDirectory: parentRef,
			Times:           ts,
		}},
		Attributes: []MatchingAttribute{{
			Kind:       AttrData,
			InstanceID: 0,
			DataStream: dataStream,
			RawStream:  rawStream,
		}},
	}, nil
}

func (s *FSScanner) parentReference(path string) FileReference {
	parent := filepath.Dir(path)
	var ref uint64
	if info, err := s.fs.Stat(parent); err == nil {
		if frn, _, ok := fileIdentity(parent, info); ok {
			ref = frn
		}
	}
	if ref == 0 {
		ref = xxhash.Sum64String(parent)
	}
	return FileReference{
		SequenceNumber: uint16(ref >> 48),
		SegmentHigh:    uint16(ref >> 32),
		SegmentLow:     uint32(ref),
	}
}

// openStream opens one attribute stream. Files on the real filesystem go
// through stream.OpenFile, which memory-maps large inputs; other
// filesystems (in-memory fixtures) read through their afero handle.
func (s *FSScanner) openStream(path string, info os.FileInfo) (stream.ByteStream, error) {
	if err := s.throttle(); err != nil {
		return nil, err
	}
	if _, ok := s.fs.(*afero.OsFs); ok {
		return stream.OpenFile(path)
	}
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, err
	}
	return &fileHandleStream{f: f, size: info.Size()}, nil
}

func rootOf(path string) string {
	if vol := filepath.VolumeName(path); vol != "" {
		return vol
	}
	return string(filepath.Separator)
}

// fileHandleStream adapts an afero file handle to the ByteStream contract.
type fileHandleStream struct {
	f    afero.File
	size int64
}

func (s *fileHandleStream) Read(p []byte) (int, error) { return s.f.Read(p) }

func (s *fileHandleStream) Seek(offset int64, whence int) (int64, error) {
	return s.f.Seek(offset, whence)
}

func (s *fileHandleStream) CopyTo(dst io.Writer) (int64, error) {
	return io.Copy(dst, s.f)
}

func (s *fileHandleStream) Size() int64 { return s.size }

func (s *fileHandleStream) Close() error { return s.f.Close() }
