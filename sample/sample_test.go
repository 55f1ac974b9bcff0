package sample

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"getthis/scanner"
)

func TestParseContentType(t *testing.T) {
	tests := []struct {
		in      string
		want    ContentSpec
		wantErr bool
	}{
		{in: "data", want: ContentSpec{Type: ContentData}},
		{in: "DATA", want: ContentSpec{Type: ContentData}},
		{in: "raw", want: ContentSpec{Type: ContentRaw}},
		{in: "strings", want: ContentSpec{Type: ContentStrings}},
		{in: "strings,4,256", want: ContentSpec{Type: ContentStrings, MinChars: 4, MaxChars: 256}},
		{in: "strings,4", wantErr: true},
		{in: "blobs", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseContentType(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("want error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRegistryDedup(t *testing.T) {
	r := NewRegistry()
	id := Identity{FRN: 42, VolumeSerial: 7, InstanceID: 1, AttributeIndex: 0}

	first := &Ref{Identity: id, SampleName: "first"}
	got, inserted := r.InsertOrFind(first)
	if !inserted || got != first {
		t.Fatal("first insert should succeed")
	}

	second := &Ref{Identity: id, SampleName: "second"}
	got, inserted = r.InsertOrFind(second)
	if inserted {
		t.Error("duplicate identity inserted")
	}
	if got != first {
		t.Error("duplicate should return the existing sample")
	}
	if r.Len() != 1 {
		t.Errorf("registry size = %d, want 1", r.Len())
	}
}

func TestRegistryDistinctIdentities(t *testing.T) {
	r := NewRegistry()
	base := Identity{FRN: 42, VolumeSerial: 7}

	variants := []Identity{
		base,
		{FRN: 43, VolumeSerial: 7},
		{FRN: 42, VolumeSerial: 8},
		{FRN: 42, VolumeSerial: 7, SnapshotID: uuid.MustParse("11111111-2222-3333-4444-555555555555")},
		{FRN: 42, VolumeSerial: 7, InstanceID: 1},
		{FRN: 42, VolumeSerial: 7, AttributeIndex: 1},
	}
	for i, id := range variants {
		if _, inserted := r.InsertOrFind(&Ref{Identity: id}); !inserted {
			t.Errorf("variant %d considered duplicate", i)
		}
	}
	if r.Len() != len(variants) {
		t.Errorf("registry size = %d, want %d", r.Len(), len(variants))
	}
}

func TestRegistryIterationOrder(t *testing.T) {
	r := NewRegistry()
	for _, frn := range []uint64{5, 1, 9, 3} {
		r.InsertOrFind(&Ref{Identity: Identity{FRN: frn}})
	}
	var got []uint64
	for _, ref := range r.Samples() {
		got = append(got, ref.FRN)
	}
	want := []uint64{1, 3, 5, 9}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("iteration order = %v, want %v", got, want)
		}
	}
}

func TestAllocateName(t *testing.T) {
	r := NewRegistry()
	format := func(idx uint32) string {
		if idx == 0 {
			return "sample_data"
		}
		return fmt.Sprintf("sample_%d_data", idx)
	}
	if got := r.AllocateName(format); got != "sample_data" {
		t.Errorf("first allocation = %q", got)
	}
	if got := r.AllocateName(format); got != "sample_1_data" {
		t.Errorf("second allocation = %q", got)
	}
	if got := r.AllocateName(format); got != "sample_2_data" {
		t.Errorf("third allocation = %q", got)
	}
	if !r.HasName("sample_1_data") {
		t.Error("allocated name not reserved")
	}
}

func TestFileNameFormatting(t *testing.T) {
	name := scanner.MatchingName{
		FileName: "kernel32.dll",
		ParentDirectory: scanner.FileReference{
			SequenceNumber: 0x1,
			SegmentHigh:    0x0,
			SegmentLow:     0x2A,
		},
	}

	tests := []struct {
		name     string
		content  ContentSpec
		dataName string
		idx      uint32
		want     string
	}{
		{
			name:    "no data name no idx",
			content: ContentSpec{Type: ContentData},
			want:    "000100000000002A__kernel32.dll_data",
		},
		{
			name:     "data name no idx",
			content:  ContentSpec{Type: ContentData},
			dataName: "Zone.Identifier",
			want:     "000100000000002A_kernel32.dll_Zone.Identifier_data",
		},
		{
			name:    "no data name with idx",
			content: ContentSpec{Type: ContentStrings},
			idx:     3,
			want:    "000100000000002A__kernel32.dll_3_strings",
		},
		{
			name:     "data name with idx",
			content:  ContentSpec{Type: ContentRaw},
			dataName: "stream",
			idx:      1,
			want:     "000100000000002A_kernel32.dll_stream_1_raw",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FileName(tt.content, name, tt.dataName, tt.idx)
			if got != tt.want {
				t.Errorf("FileName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileNameSanitizes(t *testing.T) {
	name := scanner.MatchingName{FileName: "bad name:with#marks"}
	got := FileName(ContentSpec{Type: ContentData}, name, "", 0)
	for _, c := range []string{" ", ":", "#"} {
		if strings.Contains(got, c) {
			t.Errorf("name %q contains %q", got, c)
		}
	}
}

func TestPrefixed(t *testing.T) {
	if got := Prefixed("", "abc_data"); got != "abc_data" {
		t.Errorf("empty folder: %q", got)
	}
	if got := Prefixed("memdumps", "abc_data"); got != `memdumps\abc_data` {
		t.Errorf("folder prefix: %q", got)
	}
}
