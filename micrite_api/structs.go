package micrite_api

import "github.com/biogo/hts/sam"

// The struct representing one alignment record in a parseable format
// It only lives for one step of a scan
type AlignmentRecord struct {
	// The query name of the read
	Name string

	// The bases of the read as IUPAC letters
	Sequence string

	// The per-base Phred qualities, same length as Sequence
	Qual []byte

	// The SAM flag bits of the record
	Flags sam.Flags

	// The mapping quality of the record
	MapQ byte

	// The value of the AS tag, 0 when the tag is absent or not an integer
	AlignmentScore int
}

// A struct representing a reference contig that is known to hold a microbial genome
type ContigEntry struct {
	// The name of the contig as it appears in the BAM header
	Contig string

	// The NCBI taxid of the microbe
	Taxid string

	// A short species label
	Species string
}

// A struct representing a microbe on the oncogenic allow-list
type OncogenicMicrobe struct {
	// The scientific or common name of the microbe
	Name string

	// The NCBI taxid of the microbe
	// This is the key used to match rows of a kraken report
	Taxid string
}

// The struct representing one row of a kraken2 report
type KreportRecord struct {
	// Percentage of reads classified as this taxid or one of its children
	CladePercent float64

	// Number of reads classified as this taxid or one of its children
	CladeReads uint64

	// Number of reads assigned directly to this taxid
	TaxonReads uint64

	// The rank code
	// Can be U, R, D, K, P, C, O, F, G or S, optionally followed by a number
	// indicating the distance from that rank (e.g. G2)
	Rank string

	// The NCBI taxid
	Taxid string

	// The scientific name, without the indentation kraken adds
	Name string
}

// A struct representing one reportable hit
type KrakenHit struct {
	Taxid        string
	Rank         string
	Name         string
	CladePercent float64
	CladeReads   uint64
	Oncogenic    bool
}

// A struct holding the summary of one hit calling run
type HitSummary struct {
	// The number of report rows that were read
	Rows uint64

	// The number of hits that were written
	Hits uint64

	// The number of rows passing the read thresholds that were dropped
	// because they are not on the oncogenic allow-list
	NonOncogenicExcluded uint64
}

// The per-reference read counts stored in a BAM index
type ReferenceCounts struct {
	// The name of the reference, "*" for reads without a reference
	Name string

	Mapped   uint64
	Unmapped uint64
}

// The statistics collected while triaging one BAM file
type SummaryStats struct {
	// Read counts taken from the index
	TotalReads    uint64
	MappedReads   uint64
	UnmappedReads uint64

	// The number of records seen in the unmapped partition
	UnmappedSeen uint64

	// The number of unmapped records with a good quality sequence
	UnmappedGoodQuality uint64

	// Statistics of every microbial contig that was visited, in scan order
	Contigs []ContigStats
}

// The statistics of one microbial contig
type ContigStats struct {
	Name    string
	Species string
	Taxid   string

	// All records fetched for the contig
	Reads uint64

	// Records without the unmapped flag
	Mapped uint64

	// Mapped records with a good quality sequence, these are written to the FASTA file
	GoodSequences uint64

	// Records passing the alignment quality check
	GoodAlignments uint64
}

//
// Config structs
//

// The struct representing the configuration file
// The config file is a YAML file
type Config struct {
	// The directory all output files are written to
	Outdir string

	// The thresholds used to triage reads
	Quality QualityThresholds

	// The thresholds used to call hits from the kraken report
	Hits HitThresholds

	// How to run kraken2
	Kraken KrakenConfig

	// How to run deacon, host depletion is skipped when no database is given
	Deacon DeaconConfig

	// Extra microbial contigs, added after the built-in ones
	Contigs []ContigEntry

	// Extra oncogenic microbes, added after the built-in ones
	Oncogenic []OncogenicMicrobe
}

// The thresholds deciding whether a read is worth classifying
type QualityThresholds struct {
	// Reads shorter than this are discarded
	MinLength int

	// Reads with a lower average Phred score are discarded
	MinPhred float64

	// Reads with more N bases than this are discarded
	MaxN int

	// Alignments need a mapping quality above this value
	MinMapQ int

	// Alignments need an AS tag above this value
	MinAlignmentScore int
}

// The thresholds deciding whether a kraken report row is a hit
type HitThresholds struct {
	// A hit needs more clade reads than this
	MinReads uint64

	// A hit needs at least this clade percentage
	MinPercent float64

	// Only report microbes on the oncogenic allow-list
	OncogenicOnly bool
}

// The configuration of a kraken2 run
type KrakenConfig struct {
	// The path to the kraken2 database, a leading ~ is expanded
	Db string

	// The number of threads kraken2 may use
	Threads int

	// The confidence score threshold passed to kraken2
	Confidence string

	// Don't keep the per-read kraken output (written to - instead)
	CleanupStdFile bool

	// Keep the FASTA files produced by triage and host depletion
	KeepFasta bool

	// Add taxa without any reads to the report
	ReportZeroCounts bool
}

// The configuration of a deacon host depletion run
type DeaconConfig struct {
	// The path to the deacon minimizer index
	Db string

	// The minimum relative proportion of minimizer hits for a match
	RelativeThreshold float64

	// The minimum absolute number of minimizer hits for a match
	AbsoluteThreshold int
}

// The paths produced by a kraken2 run
type KrakenOutputPaths struct {
	// The per-read output, empty when it was not kept
	Kout string

	// The kraken report
	Kreport string

	// The FASTA file that was classified
	InputFasta string

	// The prefix shared by all output files
	Prefix string
}
