package micrite_api

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/shenwei356/xopen"
)

// Triage scans a BAM file for reads worth classifying
type Triage struct {
	Contigs *MicrobialContigs
	Quality QualityThresholds
	Logger  *log.Logger
}

// The files written by TriageBam
type TriageOutputPaths struct {
	Fasta   string
	Summary string
}

// Run all triage passes over one alignment source
//
// The summary is started with the read counts of the index, before any record is read.
// Afterwards all good quality unmapped reads are written to the FASTA output,
// followed by the good quality mapped reads of every microbial contig in header order.
// Each visited contig adds one line to the summary.
func (t *Triage) Run(source AlignmentSource, fasta io.Writer, summary io.Writer) (*SummaryStats, error) {
	logger := orDiscard(t.Logger)
	stats := &SummaryStats{}

	observed := t.Contigs.Intersect(source.ReferenceNames())
	if len(observed) > 0 {
		logger.Printf("Found %d contigs in bam that are probably microbial: [%s]", len(observed), strings.Join(observed, ","))
	} else {
		logger.Printf("None of the known microbial contigs [%s] are in the bam header", strings.Join(t.Contigs.Names(), ","))
	}

	if err := t.writeIndexSummary(source, stats, summary); err != nil {
		return nil, err
	}

	if err := t.scanUnmapped(source, stats, fasta); err != nil {
		return nil, err
	}

	for _, contig := range observed {
		if err := t.scanContig(source, contig, stats, fasta, summary); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

func (t *Triage) writeIndexSummary(source AlignmentSource, stats *SummaryStats, summary io.Writer) error {
	logger := orDiscard(t.Logger)

	counts, err := source.IndexStats()
	if err != nil {
		return err
	}
	for _, c := range counts {
		stats.MappedReads += c.Mapped
		stats.UnmappedReads += c.Unmapped
	}
	stats.TotalReads = stats.MappedReads + stats.UnmappedReads

	logger.Println("BAM-level summary:")
	logger.Printf("\ttotal depth (number of reads): [%d]", stats.TotalReads)
	logger.Printf("\ttotal mapped reads: [%d]", stats.MappedReads)
	logger.Printf("\ttotal unmapped reads: [%d]", stats.UnmappedReads)

	_, err = fmt.Fprintf(summary,
		"total depth (number of reads)\t%d\ntotal mapped reads\t%d\ntotal unmapped reads\t%d\n",
		stats.TotalReads, stats.MappedReads, stats.UnmappedReads,
	)
	if err != nil {
		return newError(OutputFailure, "", fmt.Errorf("failed to write the BAM summary: %w", err))
	}
	return nil
}

// Only reads with the unmapped flag set end up in the unmapped partition.
// Some aligners don't set the flag on unmapped mates of mapped reads, those are missed.
func (t *Triage) scanUnmapped(source AlignmentSource, stats *SummaryStats, fasta io.Writer) error {
	logger := orDiscard(t.Logger)

	it, err := source.FetchUnmapped()
	if err != nil {
		return err
	}
	defer it.Close()

	for it.Next() {
		record := NewAlignmentRecord(it.Record())
		stats.UnmappedSeen++
		if t.Quality.GoodSequence(record) {
			stats.UnmappedGoodQuality++
			if err := writeFasta(fasta, record); err != nil {
				return err
			}
		}
	}
	if err := it.Error(); err != nil {
		return &Error{Kind: MalformedInput, Line: int(stats.UnmappedSeen) + 1, Err: fmt.Errorf("failed to read unmapped record: %w", err)}
	}

	logger.Println("Unmapped Read Summary:")
	logger.Printf("\ttotal unmapped reads: [%d]", stats.UnmappedSeen)
	logger.Printf("\tgood quality sequences: [%d]", stats.UnmappedGoodQuality)
	return nil
}

func (t *Triage) scanContig(source AlignmentSource, contig string, stats *SummaryStats, fasta io.Writer, summary io.Writer) error {
	logger := orDiscard(t.Logger)

	contigStats := ContigStats{Name: contig}
	contigStats.Species, _ = t.Contigs.ContigToSpecies(contig)
	contigStats.Taxid, _ = t.Contigs.ContigToTaxid(contig)

	it, err := source.Fetch(contig)
	if err != nil {
		return err
	}
	defer it.Close()

	for it.Next() {
		record := NewAlignmentRecord(it.Record())
		contigStats.Reads++

		mapped := !isUnmapped(record)
		if mapped {
			contigStats.Mapped++
		}

		if mapped && t.Quality.GoodSequence(record) {
			contigStats.GoodSequences++
			if err := writeFasta(fasta, record); err != nil {
				return err
			}
		}

		if t.Quality.GoodAlignment(record) {
			contigStats.GoodAlignments++
		}
	}
	if err := it.Error(); err != nil {
		return &Error{Kind: MalformedInput, Line: int(contigStats.Reads) + 1, Err: fmt.Errorf("failed to read record on contig %s: %w", contig, err)}
	}

	logger.Printf("Microbial Contig Stats: %s (%s)", contig, contigStats.Species)
	logger.Printf("\ttotal reads mapped: [%d]", contigStats.Mapped)
	logger.Printf("\tgood quality alignments mapped: [%d]", contigStats.GoodAlignments)
	logger.Printf("\tgood quality sequences mapped: [%d]", contigStats.GoodSequences)

	if _, err := fmt.Fprintf(summary, "Contig [%s] good quality alignments\t%d\n", contig, contigStats.GoodAlignments); err != nil {
		return newError(OutputFailure, "", fmt.Errorf("failed to write the summary of contig %s: %w", contig, err))
	}

	stats.Contigs = append(stats.Contigs, contigStats)
	return nil
}

func writeFasta(w io.Writer, record *AlignmentRecord) error {
	if _, err := fmt.Fprintf(w, ">%s\n%s\n", record.Name, record.Sequence); err != nil {
		return newError(OutputFailure, "", fmt.Errorf("failed to write read %s to the FASTA file: %w", record.Name, err))
	}
	return nil
}

// Triage a BAM file, writing <outdir>/<stem>.fasta and <outdir>/<stem>.bam_summary.txt
//
// The BAM file and both outputs are opened once and closed on every return.
// The outputs are removed again when triaging fails.
func TriageBam(bamPath string, outdir string, triage *Triage) (paths *TriageOutputPaths, stats *SummaryStats, err error) {
	if _, err := os.Stat(bamPath); err != nil {
		return nil, nil, newError(MissingInput, bamPath, fmt.Errorf("could not find BAM file: %w", err))
	}
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return nil, nil, newError(OutputFailure, outdir, fmt.Errorf("failed to create output directory: %w", err))
	}

	stem := strings.TrimSuffix(filepath.Base(bamPath), filepath.Ext(bamPath))
	paths = &TriageOutputPaths{
		Fasta:   filepath.Join(outdir, stem+".fasta"),
		Summary: filepath.Join(outdir, stem+".bam_summary.txt"),
	}

	source, err := OpenBam(bamPath)
	if err != nil {
		return nil, nil, err
	}
	defer removeOnError(&err, paths.Fasta, paths.Summary)
	defer closeInto(&err, source, bamPath, MalformedInput)

	summary, err := xopen.Wopen(paths.Summary)
	if err != nil {
		return nil, nil, newError(OutputFailure, paths.Summary, err)
	}
	defer closeInto(&err, summary, paths.Summary, OutputFailure)

	fasta, err := xopen.Wopen(paths.Fasta)
	if err != nil {
		return nil, nil, newError(OutputFailure, paths.Fasta, err)
	}
	defer closeInto(&err, fasta, paths.Fasta, OutputFailure)

	stats, err = triage.Run(source, fasta, summary)
	if err != nil {
		var e *Error
		if errors.As(err, &e) && e.Kind == MalformedInput && e.Path == "" {
			e.Path = bamPath
		}
		return nil, nil, err
	}

	orDiscard(triage.Logger).Printf("Created fasta file of unmapped reads at %s", paths.Fasta)
	return paths, stats, nil
}

// Remove partial outputs when err is set
func removeOnError(err *error, paths ...string) {
	if *err == nil {
		return
	}
	for _, path := range paths {
		os.Remove(path)
	}
}

// Close c and keep its error in err when nothing failed before
func closeInto(err *error, c io.Closer, path string, kind ErrorKind) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = newError(kind, path, cerr)
	}
}
