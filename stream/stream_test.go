package stream

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"testing"
)

func TestMemoryStream(t *testing.T) {
	data := []byte("hello world")
	s := NewMemoryStream(data)
	if s.Size() != int64(len(data)) {
		t.Fatalf("size = %d, want %d", s.Size(), len(data))
	}
	var out bytes.Buffer
	n, err := s.CopyTo(&out)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if n != int64(len(data)) || out.String() != "hello world" {
		t.Errorf("copied %d bytes %q", n, out.String())
	}
}

func TestFileStream(t *testing.T) {
	path := writeTemp(t, bytes.Repeat([]byte("abc"), 1000))
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if s.Size() != 3000 {
		t.Errorf("size = %d, want 3000", s.Size())
	}
	var out bytes.Buffer
	if _, err := s.CopyTo(&out); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if out.Len() != 3000 {
		t.Errorf("copied %d bytes", out.Len())
	}
}

func TestFileStreamMmapPath(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, MmapMinSize+16)
	path := writeTemp(t, data)
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	got, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("mmap read mismatch: %d bytes", len(got))
	}
	if pos, err := s.Seek(0, io.SeekStart); err != nil || pos != 0 {
		t.Fatalf("rewind: pos=%d err=%v", pos, err)
	}
	again, err := io.ReadAll(s)
	if err != nil || !bytes.Equal(again, data) {
		t.Errorf("reread after rewind failed: %v", err)
	}
}

func TestTemporaryStreamInMemory(t *testing.T) {
	s := NewTemporaryStream("")
	defer s.Close()
	payload := []byte("small payload")
	if _, err := s.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if s.Spilled() {
		t.Error("small payload should stay in memory")
	}
	if err := s.Rewind(); err != nil {
		t.Fatalf("rewind: %v", err)
	}
	got, _ := io.ReadAll(s)
	if !bytes.Equal(got, payload) {
		t.Errorf("read back %q", got)
	}
}

func TestTemporaryStreamSpill(t *testing.T) {
	s := NewTemporaryStream("spill-test-*")
	defer s.Close()
	chunk := bytes.Repeat([]byte{0x42}, 1024*1024)
	for i := 0; i < 6; i++ {
		if _, err := s.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if !s.Spilled() {
		t.Fatal("6 MiB should spill past the 5 MiB threshold")
	}
	if s.Size() != 6*1024*1024 {
		t.Errorf("size = %d", s.Size())
	}
	if err := s.Rewind(); err != nil {
		t.Fatalf("rewind: %v", err)
	}
	n, err := io.Copy(io.Discard, s)
	if err != nil || n != 6*1024*1024 {
		t.Errorf("read back %d bytes, err %v", n, err)
	}
	name := s.file.Name()
	s.Close()
	if _, err := os.Stat(name); !os.IsNotExist(err) {
		t.Errorf("backing file %s not removed", name)
	}
}

func TestCryptoHashStream(t *testing.T) {
	payload := []byte("hello world")
	tap, err := NewCryptoHashStream(NewMemoryStream(payload), []string{"md5", "sha1", "sha256"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var out bytes.Buffer
	if _, err := tap.CopyTo(&out); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if !bytes.Equal(out.Bytes(), payload) {
		t.Error("tap altered payload")
	}
	if tap.Observed() != int64(len(payload)) {
		t.Errorf("observed %d bytes", tap.Observed())
	}
	if got := hex.EncodeToString(tap.MD5()); got != "5eb63bbbe01eeed093cb22bb8f5acdc3" {
		t.Errorf("md5 = %s", got)
	}
	if got := hex.EncodeToString(tap.SHA1()); got != "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed" {
		t.Errorf("sha1 = %s", got)
	}
	if got := hex.EncodeToString(tap.SHA256()); got != "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9" {
		t.Errorf("sha256 = %s", got)
	}
}

func TestCryptoHashStreamRejectsUnknown(t *testing.T) {
	if _, err := NewCryptoHashStream(NewMemoryStream(nil), []string{"blake2"}); err == nil {
		t.Error("expected error for unknown algorithm")
	}
	if _, err := NewCryptoHashStream(NewMemoryStream(nil), nil); err == nil {
		t.Error("expected error for empty algorithm list")
	}
}

func TestFuzzyHashStream(t *testing.T) {
	payload := make([]byte, 8192)
	for i := range payload {
		payload[i] = byte(i*7 + i/13)
	}
	tap, err := NewFuzzyHashStream(NewMemoryStream(payload), []string{"ssdeep", "tlsh"}, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := tap.CopyTo(io.Discard); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if tap.SSDeep() == "" {
		t.Error("ssdeep digest empty")
	}
	if tap.TLSH() == "" {
		t.Error("tlsh digest empty")
	}
}

func TestFuzzyHashStreamOverflow(t *testing.T) {
	payload := bytes.Repeat([]byte{0x11}, 2048)
	tap, err := NewFuzzyHashStream(NewMemoryStream(payload), []string{"ssdeep"}, 1024)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := tap.CopyTo(io.Discard); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if tap.SSDeep() != "" {
		t.Error("overflowed tap should report no digest")
	}
}

func TestStringsStreamASCII(t *testing.T) {
	src := NewMemoryStream([]byte("\x00\x01notes\x02x\x03readme\xff"))
	s, err := NewStringsStream(src, 3, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := splitLines(string(out))
	want := []string{"notes", "readme"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestStringsStreamUTF16(t *testing.T) {
	// "secret" in UTF-16LE surrounded by noise
	var buf bytes.Buffer
	buf.Write([]byte{0xDE, 0xAD})
	for _, r := range "secret" {
		buf.WriteByte(byte(r))
		buf.WriteByte(0)
	}
	buf.Write([]byte{0xBE, 0xEF})
	s, err := NewStringsStream(NewMemoryStream(buf.Bytes()), 4, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, _ := io.ReadAll(s)
	if !strings.Contains(string(out), "secret") {
		t.Errorf("output %q missing wide string", out)
	}
}

func TestStringsStreamMinMax(t *testing.T) {
	src := NewMemoryStream([]byte("ab\x00abcdefgh\x00"))
	s, err := NewStringsStream(src, 3, 4)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, _ := io.ReadAll(s)
	lines := splitLines(string(out))
	// "ab" is below min; "abcdefgh" is split at the 4-char ceiling.
	want := []string{"abcd", "efgh"}
	if len(lines) != 2 || lines[0] != want[0] || lines[1] != want[1] {
		t.Errorf("lines = %q, want %q", lines, want)
	}
}

func TestStringsStreamSizeIsSourceSize(t *testing.T) {
	src := NewMemoryStream(make([]byte, 1000))
	s, err := NewStringsStream(src, 3, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Size() != 1000 {
		t.Errorf("size = %d, want source size 1000", s.Size())
	}
}

func TestLayeredPipeline(t *testing.T) {
	// data -> crypto tap -> fuzzy tap, the assembler's stacking order
	payload := make([]byte, 8192)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	crypto, err := NewCryptoHashStream(NewMemoryStream(payload), []string{"md5", "sha256"})
	if err != nil {
		t.Fatalf("crypto: %v", err)
	}
	fuzzy, err := NewFuzzyHashStream(crypto, []string{"tlsh"}, 0)
	if err != nil {
		t.Fatalf("fuzzy: %v", err)
	}
	var out bytes.Buffer
	if _, err := fuzzy.CopyTo(&out); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if !bytes.Equal(out.Bytes(), payload) {
		t.Error("pipeline altered payload")
	}
	wantMD5 := md5.Sum(payload)
	if !bytes.Equal(crypto.MD5(), wantMD5[:]) {
		t.Error("md5 mismatch through layered pipeline")
	}
	wantSHA := sha256.Sum256(payload)
	if !bytes.Equal(crypto.SHA256(), wantSHA[:]) {
		t.Error("sha256 mismatch through layered pipeline")
	}
	if fuzzy.Size() != int64(len(payload)) {
		t.Errorf("size not propagated: %d", fuzzy.Size())
	}
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "stream-test-*")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()
	return f.Name()
}

func splitLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
