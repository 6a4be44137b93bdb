package micrite_api

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
)

var (
	goodSeq   = strings.Repeat("ACGT", 15)
	shortSeq  = strings.Repeat("ACGT", 10)
	quietTest = NewLogger(true)
)

type testRead struct {
	name  string
	ref   *sam.Reference
	pos   int
	seq   string
	qual  byte
	flags sam.Flags
	mapq  byte
	as    any
}

func newTestRecord(t *testing.T, read testRead) *sam.Record {
	t.Helper()

	var cigar []sam.CigarOp
	if read.ref != nil && read.flags&sam.Unmapped == 0 {
		cigar = []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, len(read.seq))}
	}
	pos := read.pos
	if read.ref == nil {
		pos = -1
	}

	var aux []sam.Aux
	if read.as != nil {
		a, err := sam.NewAux(sam.NewTag("AS"), read.as)
		if err != nil {
			t.Fatalf("failed to create AS tag: %v", err)
		}
		aux = append(aux, a)
	}

	record, err := sam.NewRecord(read.name, read.ref, nil, pos, -1, 0, read.mapq, cigar, []byte(read.seq), bytes.Repeat([]byte{read.qual}, len(read.seq)), aux)
	if err != nil {
		t.Fatalf("failed to create record %s: %v", read.name, err)
	}
	record.Flags = read.flags
	return record
}

// Create a header with one reference per name
func newTestHeader(t *testing.T, names ...string) *sam.Header {
	t.Helper()
	refs := make([]*sam.Reference, 0, len(names))
	for _, name := range names {
		ref, err := sam.NewReference(name, "", "", 10000, nil, nil)
		if err != nil {
			t.Fatalf("failed to create reference %s: %v", name, err)
		}
		refs = append(refs, ref)
	}
	header, err := sam.NewHeader(nil, refs)
	if err != nil {
		t.Fatalf("failed to create header: %v", err)
	}
	return header
}

// Write a coordinate sorted BAM with three references (chr1, chrEBV, chr2)
//
//	chr1:   m1, m2 (good mapped reads)
//	chrEBV: e1 (good alignment), e2 (mapq 10), e3 (placed but unmapped)
//	chr2:   no reads
//	*:      u1 (good), u2 (too short)
func writeTestBam(t *testing.T, dir string, indexed bool) string {
	t.Helper()

	header := newTestHeader(t, "chr1", "chrEBV", "chr2")
	header.SortOrder = sam.Coordinate
	chr1, ebv := header.Refs()[0], header.Refs()[1]

	reads := []testRead{
		{name: "m1", ref: chr1, pos: 100, seq: goodSeq, qual: 30, mapq: 60, as: int32(150)},
		{name: "m2", ref: chr1, pos: 200, seq: goodSeq, qual: 30, mapq: 60, as: int32(150)},
		{name: "e1", ref: ebv, pos: 10, seq: goodSeq, qual: 30, mapq: 60, as: int32(150)},
		{name: "e2", ref: ebv, pos: 20, seq: goodSeq, qual: 30, mapq: 10, as: int32(150)},
		{name: "e3", ref: ebv, pos: 30, seq: goodSeq, qual: 30, flags: sam.Unmapped},
		{name: "u1", seq: goodSeq, qual: 30, flags: sam.Unmapped},
		{name: "u2", seq: shortSeq, qual: 30, flags: sam.Unmapped},
	}

	return writeBam(t, filepath.Join(dir, "sample.bam"), header, reads, indexed)
}

// Write reads to a BAM file, optionally followed by a BAI index
func writeBam(t *testing.T, path string, header *sam.Header, reads []testRead, indexed bool) string {
	t.Helper()
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create BAM: %v", err)
	}
	writer, err := bam.NewWriter(file, header, 1)
	if err != nil {
		t.Fatalf("failed to create BAM writer: %v", err)
	}
	for _, read := range reads {
		if err := writer.Write(newTestRecord(t, read)); err != nil {
			t.Fatalf("failed to write record %s: %v", read.name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close BAM writer: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("failed to close BAM: %v", err)
	}

	if indexed {
		if _, err := BuildIndex(path); err != nil {
			t.Fatalf("failed to index BAM: %v", err)
		}
	}
	return path
}

// Write an executable shell script called name to dir
func writeScript(t *testing.T, dir string, name string, script string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(content)
}
