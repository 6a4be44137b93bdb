package micrite_api

import (
	"strings"

	"github.com/biogo/hts/sam"
)

var alignmentScoreTag = sam.NewTag("AS")

// Convert a BAM record to an AlignmentRecord
func NewAlignmentRecord(r *sam.Record) *AlignmentRecord {
	return &AlignmentRecord{
		Name:           r.Name,
		Sequence:       string(r.Seq.Expand()),
		Qual:           r.Qual,
		Flags:          r.Flags,
		MapQ:           r.MapQ,
		AlignmentScore: alignmentScore(r),
	}
}

// Get the value of the AS tag, integer types only
func alignmentScore(r *sam.Record) int {
	aux := r.AuxFields.Get(alignmentScoreTag)
	if aux == nil {
		return 0
	}
	switch v := aux.Value().(type) {
	case int8:
		return int(v)
	case uint8:
		return int(v)
	case int16:
		return int(v)
	case uint16:
		return int(v)
	case int32:
		return int(v)
	case uint32:
		return int(v)
	}
	return 0
}

// Check whether a read is a good quality sequence, i.e. a likely real
// biological sequence that is worth classifying. A good quality sequence
// is not necessarily a good quality alignment.
//
// A good quality sequence
//  1. is not a duplicate or flagged as QC failed and has at least minLen bases
//  2. has at most maxN ambiguous (N) bases
//  3. has an average Phred score of at least minPhred
//
// Sequence complexity is not checked.
func IsGoodQualitySequence(record *AlignmentRecord, minLen int, minPhred float64, maxN int) bool {
	if record.Flags&(sam.QCFail|sam.Duplicate) != 0 || len(record.Sequence) < minLen {
		return false
	}

	if ambiguousBases(record.Sequence) > maxN {
		return false
	}

	return averagePhred(record.Qual) >= minPhred
}

// Check whether a read is a convincing alignment. It has to be a good
// quality sequence and a mapped, primary alignment with a mapping quality
// above minMapQ and an AS tag above minAlignmentScore.
func IsGoodQualityAlignment(record *AlignmentRecord, minLen int, minPhred float64, maxN int, minMapQ int, minAlignmentScore int) bool {
	if !IsGoodQualitySequence(record, minLen, minPhred, maxN) {
		return false
	}

	return record.Flags&(sam.Secondary|sam.QCFail|sam.Unmapped) == 0 &&
		int(record.MapQ) > minMapQ &&
		record.AlignmentScore > minAlignmentScore
}

// IsGoodQualitySequence using the configured thresholds
func (q QualityThresholds) GoodSequence(record *AlignmentRecord) bool {
	return IsGoodQualitySequence(record, q.MinLength, q.MinPhred, q.MaxN)
}

// IsGoodQualityAlignment using the configured thresholds
func (q QualityThresholds) GoodAlignment(record *AlignmentRecord) bool {
	return IsGoodQualityAlignment(record, q.MinLength, q.MinPhred, q.MaxN, q.MinMapQ, q.MinAlignmentScore)
}

func isUnmapped(record *AlignmentRecord) bool {
	return record.Flags&sam.Unmapped != 0
}

// Count the N bases in a sequence
func ambiguousBases(seq string) int {
	return strings.Count(seq, "N")
}

// The mean of the qualities, 0 for an empty slice
func averagePhred(qual []byte) float64 {
	if len(qual) == 0 {
		return 0
	}
	total := 0
	for _, q := range qual {
		total += int(q)
	}
	return float64(total) / float64(len(qual))
}
