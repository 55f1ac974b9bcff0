package sink

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"time"

	"filippo.io/age"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"lukechampine.com/blake3"

	"getthis/index"
	"getthis/logger"
	"getthis/stream"
)

const (
	indexEntryName = "GetThis.csv"
	logEntryName   = "GetThis.log"
)

// ArchiveFormat selects the container encoding.
type ArchiveFormat string

const (
	FormatTarZstd ArchiveFormat = "tar.zst"
	FormatTarGzip ArchiveFormat = "tar.gz"
)

// ParseArchiveFormat maps a config value or file extension to a format.
func ParseArchiveFormat(s string) (ArchiveFormat, error) {
	switch s {
	case "", "tar.zst", "tzst", "zst", "zstd":
		return FormatTarZstd, nil
	case "tar.gz", "tgz", "gz", "gzip":
		return FormatTarGzip, nil
	}
	return "", fmt.Errorf("unsupported archive format %q", s)
}

type archiveEntry struct {
	name   string
	source string
	src    stream.ByteStream
	onDone OnDone
}

// ArchiveSink compresses accepted streams into a single container. Entries
// queue up and are compressed in accept order when the queue is flushed; the
// index table and the log transcript ride in spill-to-disk temporary
// streams and are appended at close.
type ArchiveSink struct {
	path     string
	format   ArchiveFormat
	level    int
	password string

	file *os.File
	enc  io.WriteCloser
	comp io.WriteCloser
	tw   *tar.Writer

	table       *index.CSVWriter
	tableStream *stream.TemporaryStream
	logStream   *stream.TemporaryStream

	queue      []archiveEntry
	onArchived func(name string)
	stamp      time.Time
}

// NewArchiveSink prepares an archive sink; a level of zero or below selects
// the format's default. gzip takes levels 1..9; zstd takes reference zstd
// levels, which are folded onto the encoder's four speed presets.
func NewArchiveSink(path string, format ArchiveFormat, level int, password string) *ArchiveSink {
	return &ArchiveSink{
		path:     path,
		format:   format,
		level:    level,
		password: password,
		stamp:    time.Now(),
	}
}

// SetCallback installs a per-entry notification fired after each entry is
// sealed into the container.
func (s *ArchiveSink) SetCallback(fn func(name string)) { s.onArchived = fn }

func (s *ArchiveSink) Init() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("archive sink: %w", err)
	}
	s.file = f

	var dst io.Writer = f
	if s.password != "" {
		recipient, err := age.NewScryptRecipient(s.password)
		if err != nil {
			f.Close()
			return fmt.Errorf("archive sink: password: %w", err)
		}
		enc, err := age.Encrypt(f, recipient)
		if err != nil {
			f.Close()
			return fmt.Errorf("archive sink: encryption: %w", err)
		}
		s.enc = enc
		dst = enc
	}

	switch s.format {
	case FormatTarGzip:
		level := s.level
		if level <= 0 {
			level = gzip.DefaultCompression
		}
		zw, err := gzip.NewWriterLevel(dst, level)
		if err != nil {
			s.abortInit()
			return fmt.Errorf("archive sink: %w", err)
		}
		s.comp = zw
	default:
		level := zstd.SpeedDefault
		if s.level > 0 {
			level = zstd.EncoderLevelFromZstd(s.level)
		}
		zw, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(level))
		if err != nil {
			s.abortInit()
			return fmt.Errorf("archive sink: %w", err)
		}
		s.comp = zw
	}
	s.tw = tar.NewWriter(s.comp)

	s.tableStream = stream.NewTemporaryStream("getthis-csv-*")
	s.table = index.NewCSVWriter(s.tableStream)
	if err := s.table.SetSchema(index.Schema); err != nil {
		s.abortInit()
		return fmt.Errorf("archive sink: %w", err)
	}

	s.logStream = stream.NewTemporaryStream("getthis-log-*")
	logger.AttachTranscript(s.logStream)

	return nil
}

func (s *ArchiveSink) abortInit() {
	if s.comp != nil {
		s.comp.Close()
	}
	if s.enc != nil {
		s.enc.Close()
	}
	if s.file != nil {
		s.file.Close()
		os.Remove(s.path)
	}
}

func (s *ArchiveSink) Table() index.Writer { return s.table }

// Accept queues a named stream for compression. The stream is consumed when
// the queue is flushed.
func (s *ArchiveSink) Accept(archiveName, sourceName string, src stream.ByteStream, onDone OnDone) error {
	if s.tw == nil {
		return fmt.Errorf("archive sink: not initialized")
	}
	s.queue = append(s.queue, archiveEntry{
		name:   archiveName,
		source: sourceName,
		src:    src,
		onDone: onDone,
	})
	return nil
}

// Flush compresses every queued entry, in accept order. Each entry's
// onDone fires after the entry is sealed and before the next entry starts.
func (s *ArchiveSink) Flush() error {
	queue := s.queue
	s.queue = nil
	var firstErr error
	for _, entry := range queue {
		err := s.writeEntry(entry)
		if entry.onDone != nil {
			entry.onDone(err)
		}
		if err != nil {
			logger.Errorf("Failed to add %s to archive: %v", entry.name, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if s.onArchived != nil {
			s.onArchived(entry.name)
		}
	}
	return firstErr
}

// writeEntry spools the source through a temporary stream first: pipeline
// tops such as the strings extractor report the source size, and tar needs
// the exact payload length up front.
func (s *ArchiveSink) writeEntry(entry archiveEntry) error {
	defer entry.src.Close()

	spool := stream.NewTemporaryStream("getthis-entry-*")
	defer spool.Close()
	if _, err := entry.src.CopyTo(spool); err != nil {
		return fmt.Errorf("read %s: %w", entry.source, err)
	}
	if err := spool.Rewind(); err != nil {
		return err
	}
	return s.addRaw(entry.name, spool)
}

func (s *ArchiveSink) addRaw(name string, src *stream.TemporaryStream) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    src.Size(),
		ModTime: s.stamp,
	}
	if err := s.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("entry %s: %w", name, err)
	}
	if _, err := src.CopyTo(s.tw); err != nil {
		return fmt.Errorf("entry %s: %w", name, err)
	}
	return nil
}

// Close flushes any entries still queued, appends the index and the log
// transcript, finalizes the container and logs its integrity digest.
func (s *ArchiveSink) Close() error {
	if s.tw == nil {
		return fmt.Errorf("archive sink: not initialized")
	}

	flushErr := s.Flush()

	if err := s.table.Flush(); err != nil && flushErr == nil {
		flushErr = err
	}
	if s.tableStream.Size() > 0 {
		if err := s.tableStream.Rewind(); err == nil {
			if err := s.addRaw(indexEntryName, s.tableStream); err != nil {
				logger.Errorf("Failed to add %s: %v", indexEntryName, err)
				if flushErr == nil {
					flushErr = err
				}
			}
		}
	}

	logger.DetachTranscript()
	if s.logStream.Size() > 0 {
		if err := s.logStream.Rewind(); err == nil {
			if err := s.addRaw(logEntryName, s.logStream); err != nil {
				logger.Errorf("Failed to add %s: %v", logEntryName, err)
				if flushErr == nil {
					flushErr = err
				}
			}
		}
	}

	s.tableStream.Close()
	s.logStream.Close()

	if err := s.tw.Close(); err != nil && flushErr == nil {
		flushErr = err
	}
	if err := s.comp.Close(); err != nil && flushErr == nil {
		flushErr = err
	}
	if s.enc != nil {
		if err := s.enc.Close(); err != nil && flushErr == nil {
			flushErr = err
		}
	}
	if err := s.file.Close(); err != nil && flushErr == nil {
		flushErr = err
	}
	s.tw = nil

	if digest, err := containerDigest(s.path); err == nil {
		logger.Infof("Archive %s sealed (blake3 %s)", s.path, digest)
	}
	if flushErr != nil {
		return fmt.Errorf("archive sink: %w", flushErr)
	}
	return nil
}

func containerDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
