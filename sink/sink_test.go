package sink

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"

	"getthis/index"
	"getthis/logger"
	"getthis/stream"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	os.Exit(m.Run())
}

func writeRow(t *testing.T, w index.Writer) {
	t.Helper()
	for range index.Schema {
		w.WriteNothing()
	}
	if err := w.WriteEndOfLine(); err != nil {
		t.Fatalf("row: %v", err)
	}
}

func readTarZstd(t *testing.T, path string) map[string][]byte {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer zr.Close()
	return readTar(t, zr)
}

func readTar(t *testing.T, r io.Reader) map[string][]byte {
	t.Helper()
	entries := make(map[string][]byte)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar: %v", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("tar entry %s: %v", hdr.Name, err)
		}
		entries[hdr.Name] = data
	}
	return entries
}

func TestArchiveSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.tar.zst")
	s := NewArchiveSink(path, FormatTarZstd, 0, "")
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	var doneOrder []string
	accept := func(name, payload string) {
		err := s.Accept(name, "/src/"+name, stream.NewMemoryStream([]byte(payload)), func(err error) {
			if err != nil {
				t.Errorf("onDone(%s): %v", name, err)
			}
			doneOrder = append(doneOrder, name)
			writeRow(t, s.Table())
		})
		if err != nil {
			t.Fatalf("accept %s: %v", name, err)
		}
	}
	accept("one_data", "payload one")
	accept(`folder\two_data`, "payload two")

	logger.Errorf("transcript line for the archive")
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if len(doneOrder) != 2 || doneOrder[0] != "one_data" || doneOrder[1] != `folder\two_data` {
		t.Errorf("onDone order = %v", doneOrder)
	}

	entries := readTarZstd(t, path)
	if string(entries["one_data"]) != "payload one" {
		t.Errorf("one_data payload = %q", entries["one_data"])
	}
	if string(entries[`folder\two_data`]) != "payload two" {
		t.Errorf("two_data payload = %q", entries[`folder\two_data`])
	}
	csvData, ok := entries[indexEntryName]
	if !ok {
		t.Fatal("GetThis.csv missing from archive")
	}
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	if len(lines) != 3 { // header + 2 rows
		t.Errorf("csv has %d lines", len(lines))
	}
	if _, ok := entries[logEntryName]; !ok {
		t.Error("GetThis.log missing from archive")
	}
}

func TestArchiveSinkGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.tar.gz")
	s := NewArchiveSink(path, FormatTarGzip, 6, "")
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := s.Accept("a_data", "/src/a", stream.NewMemoryStream([]byte("abc")), nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	entries := readTar(t, zr)
	if string(entries["a_data"]) != "abc" {
		t.Errorf("payload = %q", entries["a_data"])
	}
}

func TestArchiveSinkPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.tar.zst")
	s := NewArchiveSink(path, FormatTarZstd, 0, "hunter2")
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := s.Accept("secret_data", "/src/secret", stream.NewMemoryStream([]byte("classified")), nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	identity, err := age.NewScryptIdentity("hunter2")
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	dec, err := age.Decrypt(f, identity)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	zr, err := zstd.NewReader(dec)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer zr.Close()
	entries := readTar(t, zr)
	if string(entries["secret_data"]) != "classified" {
		t.Errorf("payload = %q", entries["secret_data"])
	}
}

func TestArchiveSinkWrongPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.tar.zst")
	s := NewArchiveSink(path, FormatTarZstd, 0, "correct")
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, _ := os.Open(path)
	defer f.Close()
	identity, _ := age.NewScryptIdentity("wrong")
	if _, err := age.Decrypt(f, identity); err == nil {
		t.Error("wrong password decrypted the archive")
	}
}

func TestDirectorySink(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewDirectorySink(fs, "/out")
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	var doneFired bool
	err := s.Accept(`spec\abc_data`, "/src/abc", stream.NewMemoryStream([]byte("hello")), func(err error) {
		if err != nil {
			t.Errorf("onDone: %v", err)
		}
		doneFired = true
		writeRow(t, s.Table())
	})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !doneFired {
		t.Error("onDone not fired for synchronous write")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := afero.ReadFile(fs, "/out/spec/abc_data")
	if err != nil {
		t.Fatalf("sample file: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("payload = %q", data)
	}
	csvData, err := afero.ReadFile(fs, "/out/GetThis.csv")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	if len(lines) != 2 {
		t.Errorf("csv lines = %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "ComputerName,") {
		t.Errorf("header = %q", lines[0])
	}
}

func TestDirectorySinkDigestsMatchPayload(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewDirectorySink(fs, "/out")
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	payload := bytes.Repeat([]byte("forensic"), 512)
	tap, err := stream.NewCryptoHashStream(stream.NewMemoryStream(payload), []string{"sha256"})
	if err != nil {
		t.Fatalf("tap: %v", err)
	}
	if err := s.Accept("sample_data", "/src/sample", tap, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	written, _ := afero.ReadFile(fs, "/out/sample_data")
	if !bytes.Equal(written, payload) {
		t.Fatal("payload mismatch")
	}
	if tap.Observed() != int64(len(payload)) {
		t.Errorf("tap observed %d of %d bytes", tap.Observed(), len(payload))
	}
}
