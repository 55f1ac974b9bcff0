package sink

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"

	"getthis/index"
	"getthis/logger"
	"getthis/stream"
)

// DirectorySink writes each accepted stream to a file under the target
// directory and the index alongside as GetThis.csv. Container names use
// backslash separators; they are normalized to the filesystem here, at the
// sink boundary.
type DirectorySink struct {
	fs  afero.Fs
	dir string

	table     *index.CSVWriter
	indexFile afero.File
}

func NewDirectorySink(fsys afero.Fs, dir string) *DirectorySink {
	return &DirectorySink{fs: fsys, dir: dir}
}

func (s *DirectorySink) Init() error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("directory sink: %w", err)
	}
	f, err := s.fs.Create(path.Join(s.dir, indexEntryName))
	if err != nil {
		return fmt.Errorf("directory sink: %w", err)
	}
	s.indexFile = f
	s.table = index.NewCSVWriter(f)
	if err := s.table.SetSchema(index.Schema); err != nil {
		f.Close()
		return fmt.Errorf("directory sink: %w", err)
	}
	return nil
}

func (s *DirectorySink) Table() index.Writer { return s.table }

// Accept writes the stream synchronously, creating parents as needed, then
// fires onDone.
func (s *DirectorySink) Accept(archiveName, sourceName string, src stream.ByteStream, onDone OnDone) error {
	if s.table == nil {
		return fmt.Errorf("directory sink: not initialized")
	}
	err := s.writeSample(archiveName, src)
	if onDone != nil {
		onDone(err)
	}
	if err != nil {
		return fmt.Errorf("directory sink: %s: %w", archiveName, err)
	}
	logger.Infof("\t%s copied (%d bytes)", archiveName, src.Size())
	return nil
}

func (s *DirectorySink) writeSample(archiveName string, src stream.ByteStream) error {
	defer src.Close()

	target := path.Join(s.dir, normalizeName(archiveName))
	if err := s.fs.MkdirAll(path.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := s.fs.Create(target)
	if err != nil {
		return err
	}
	if _, err := src.CopyTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Flush is a no-op: Accept writes and fires onDone synchronously.
func (s *DirectorySink) Flush() error { return nil }

func (s *DirectorySink) Close() error {
	if s.table == nil {
		return fmt.Errorf("directory sink: not initialized")
	}
	err := s.table.Flush()
	if closeErr := s.indexFile.Close(); err == nil {
		err = closeErr
	}
	s.table = nil
	if err != nil {
		return fmt.Errorf("directory sink: %w", err)
	}
	return nil
}

func normalizeName(name string) string {
	return strings.ReplaceAll(name, `\`, "/")
}
