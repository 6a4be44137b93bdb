package micrite_api

import (
	"bytes"
	"strings"
	"testing"

	"github.com/biogo/hts/sam"
)

// A record passing every check with the production defaults
func goodRecord() *AlignmentRecord {
	return &AlignmentRecord{
		Name:           "read",
		Sequence:       strings.Repeat("A", 50),
		Qual:           bytes.Repeat([]byte{30}, 50),
		MapQ:           60,
		AlignmentScore: 150,
	}
}

var defaults = DefaultConfig().Quality

func TestIsGoodQualitySequence(t *testing.T) {
	tests := []struct {
		name   string
		modify func(r *AlignmentRecord)
		want   bool
	}{
		{"good read", func(r *AlignmentRecord) {}, true},
		{"length equal to minimum", func(r *AlignmentRecord) {}, true},
		{"too short", func(r *AlignmentRecord) {
			r.Sequence = r.Sequence[:49]
			r.Qual = r.Qual[:49]
		}, false},
		{"duplicate", func(r *AlignmentRecord) { r.Flags = sam.Duplicate }, false},
		{"qc failed", func(r *AlignmentRecord) { r.Flags = sam.QCFail }, false},
		{"secondary is fine for sequences", func(r *AlignmentRecord) { r.Flags = sam.Secondary }, true},
		{"unmapped is fine for sequences", func(r *AlignmentRecord) { r.Flags = sam.Unmapped }, true},
		{"N count equal to maximum", func(r *AlignmentRecord) { r.Sequence = "NN" + r.Sequence[2:] }, true},
		{"N count above maximum", func(r *AlignmentRecord) { r.Sequence = "NNN" + r.Sequence[3:] }, false},
		{"mean phred equal to minimum", func(r *AlignmentRecord) { r.Qual = bytes.Repeat([]byte{17}, 50) }, true},
		{"mean phred below minimum", func(r *AlignmentRecord) { r.Qual = bytes.Repeat([]byte{16}, 50) }, false},
		{"mean phred of mixed qualities", func(r *AlignmentRecord) {
			r.Qual = append(bytes.Repeat([]byte{14}, 25), bytes.Repeat([]byte{20}, 25)...)
		}, true},
		{"empty qualities average to zero", func(r *AlignmentRecord) { r.Qual = nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := goodRecord()
			tt.modify(record)
			if got := IsGoodQualitySequence(record, 50, 17.0, 2); got != tt.want {
				t.Fatalf("IsGoodQualitySequence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShortReadsAlwaysFail(t *testing.T) {
	for length := 0; length < 50; length++ {
		record := &AlignmentRecord{
			Sequence:       strings.Repeat("A", length),
			Qual:           bytes.Repeat([]byte{60}, length),
			MapQ:           60,
			AlignmentScore: 1000,
		}
		if IsGoodQualitySequence(record, 50, 0, 100) {
			t.Fatalf("read of length %d passed a minimum length of 50", length)
		}
		if IsGoodQualityAlignment(record, 50, 0, 100, 0, 0) {
			t.Fatalf("alignment of length %d passed a minimum length of 50", length)
		}
	}
}

func TestIsGoodQualityAlignment(t *testing.T) {
	tests := []struct {
		name   string
		modify func(r *AlignmentRecord)
		want   bool
	}{
		{"good alignment", func(r *AlignmentRecord) {}, true},
		{"bad sequence", func(r *AlignmentRecord) { r.Flags = sam.Duplicate }, false},
		{"secondary", func(r *AlignmentRecord) { r.Flags = sam.Secondary }, false},
		{"qc failed", func(r *AlignmentRecord) { r.Flags = sam.QCFail }, false},
		{"unmapped", func(r *AlignmentRecord) { r.Flags = sam.Unmapped }, false},
		{"supplementary is fine", func(r *AlignmentRecord) { r.Flags = sam.Supplementary }, true},
		{"mapq equal to minimum", func(r *AlignmentRecord) { r.MapQ = 10 }, false},
		{"mapq one above minimum", func(r *AlignmentRecord) { r.MapQ = 11 }, true},
		{"score equal to minimum", func(r *AlignmentRecord) { r.AlignmentScore = 130 }, false},
		{"score one above minimum", func(r *AlignmentRecord) { r.AlignmentScore = 131 }, true},
		{"missing score", func(r *AlignmentRecord) { r.AlignmentScore = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := goodRecord()
			tt.modify(record)
			if got := IsGoodQualityAlignment(record, 50, 17.0, 2, 10, 130); got != tt.want {
				t.Fatalf("IsGoodQualityAlignment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBadSequenceIsNeverGoodAlignment(t *testing.T) {
	record := goodRecord()
	record.Sequence = "NNNNN" + record.Sequence[5:]
	record.MapQ = 255
	record.AlignmentScore = 1 << 20
	if IsGoodQualityAlignment(record, 50, 17.0, 2, 0, 0) {
		t.Fatal("alignment with a bad sequence passed")
	}
}

func TestThresholdMethods(t *testing.T) {
	record := goodRecord()
	if !defaults.GoodSequence(record) || !defaults.GoodAlignment(record) {
		t.Fatalf("good record failed the default thresholds: %+v", defaults)
	}
	strict := defaults
	strict.MinLength = 51
	if strict.GoodSequence(record) || strict.GoodAlignment(record) {
		t.Fatal("record passed a minimum length above its length")
	}
}

func TestNewAlignmentRecord(t *testing.T) {
	tests := []struct {
		name string
		as   any
		want int
	}{
		{"no AS tag", nil, 0},
		{"int8", int8(-5), -5},
		{"uint8", uint8(200), 200},
		{"int16", int16(-300), -300},
		{"uint16", uint16(40000), 40000},
		{"int32", int32(150), 150},
		{"uint32", uint32(70000), 70000},
		{"float is ignored", float32(150.5), 0},
		{"string is ignored", "150", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := newTestHeader(t, "chrEBV").Refs()[0]
			record := newTestRecord(t, testRead{name: "r1", ref: ref, pos: 5, seq: "ACGTN", qual: 25, flags: sam.Duplicate, mapq: 42, as: tt.as})

			got := NewAlignmentRecord(record)
			if got.AlignmentScore != tt.want {
				t.Fatalf("alignment score = %d, want %d", got.AlignmentScore, tt.want)
			}
			if got.Name != "r1" || got.Sequence != "ACGTN" || got.MapQ != 42 || got.Flags != sam.Duplicate {
				t.Fatalf("unexpected record: %+v", got)
			}
			if len(got.Qual) != 5 || got.Qual[0] != 25 {
				t.Fatalf("unexpected qualities: %v", got.Qual)
			}
		})
	}
}

func TestAveragePhred(t *testing.T) {
	if got := averagePhred(nil); got != 0 {
		t.Fatalf("averagePhred(nil) = %v, want 0", got)
	}
	if got := averagePhred([]byte{10, 20, 30, 41}); got != 25.25 {
		t.Fatalf("averagePhred() = %v, want 25.25", got)
	}
}
