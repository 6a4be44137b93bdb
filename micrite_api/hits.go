package micrite_api

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/shenwei356/xopen"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// The columns of a kraken2 report
const kreportColumns = 6

var hitColumns = []string{"taxid", "rank", "name", "clade_percent_classified", "clade_nreads_classified", "oncogenic"}

// HitCaller turns a kraken2 report into a table of microbial hits
type HitCaller struct {
	Oncogenic  *OncogenicMicrobes
	Thresholds HitThresholds
	Logger     *log.Logger
}

// Call hits from a kraken2 report and write them as CSV to out
//
// Blank lines are skipped. A row is a hit when it has more than MinReads clade reads and at least
// MinPercent clade percent. With OncogenicOnly, hits that are not on the
// oncogenic allow-list are counted as excluded instead.
func (h *HitCaller) Call(report io.Reader, out io.Writer) (*HitSummary, error) {
	logger := h.logger()
	summary := &HitSummary{}

	onlyText := " "
	if h.Thresholds.OncogenicOnly {
		onlyText = " (oncogenic only) "
	}
	logger.Printf(
		"Checking kraken reports for microbes%swith > %d supporting reads & account for >= %4.1f %% of all unmapped reads",
		onlyText, h.Thresholds.MinReads, h.Thresholds.MinPercent,
	)

	writer := csv.NewWriter(out)
	if err := writer.Write(hitColumns); err != nil {
		return nil, newError(OutputFailure, "", fmt.Errorf("failed to write the hit table header: %w", err))
	}

	scanner := bufio.NewScanner(report)
	const maxCapacity = 8 * 1000000 // 8 MB
	scanner.Buffer(make([]byte, maxCapacity), maxCapacity)
	line := 0
	for scanner.Scan() {
		line++
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		record, err := parseKreportLine(scanner.Text())
		if err != nil {
			return nil, &Error{Kind: MalformedInput, Line: line, Err: err}
		}
		summary.Rows++

		hit, ok := h.evaluate(record)
		if !ok {
			continue
		}
		if h.Thresholds.OncogenicOnly && !hit.Oncogenic {
			summary.NonOncogenicExcluded++
			continue
		}

		if err := writer.Write(hit.row()); err != nil {
			return nil, newError(OutputFailure, "", fmt.Errorf("failed to write hit %s: %w", hit.Taxid, err))
		}
		summary.Hits++
		logger.Printf(
			"Found %d reads from %s [%s] (%4.1f%% of all unmapped reads)",
			hit.CladeReads, rankLabel(hit.Rank), hit.Name, hit.CladePercent,
		)
	}
	if err := scanner.Err(); err != nil {
		return nil, &Error{Kind: MalformedInput, Line: line + 1, Err: err}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, newError(OutputFailure, "", fmt.Errorf("failed to write the hit table: %w", err))
	}

	if h.Thresholds.OncogenicOnly && summary.NonOncogenicExcluded > 0 {
		logger.Printf(
			"Skipped reporting %d microbes despite kraken read support passing thresholds because they were not in our database of oncogenic microbes.",
			summary.NonOncogenicExcluded,
		)
	}
	logger.Printf("Found %d suspected microbial hits%s", summary.Hits, strings.TrimRight(onlyText, " "))

	return summary, nil
}

// Check the read thresholds, the allow-list is left to the caller
func (h *HitCaller) evaluate(record *KreportRecord) (KrakenHit, bool) {
	if record.CladeReads <= h.Thresholds.MinReads || record.CladePercent < h.Thresholds.MinPercent {
		return KrakenHit{}, false
	}
	return KrakenHit{
		Taxid:        record.Taxid,
		Rank:         record.Rank,
		Name:         record.Name,
		CladePercent: record.CladePercent,
		CladeReads:   record.CladeReads,
		Oncogenic:    h.Oncogenic.Contains(record.Taxid),
	}, true
}

func (h *HitCaller) logger() *log.Logger {
	return orDiscard(h.Logger)
}

// Parse one line of a kraken2 report
func parseKreportLine(line string) (*KreportRecord, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != kreportColumns {
		return nil, fmt.Errorf("expected %d tab separated columns, found %d", kreportColumns, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	percent, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid clade percentage '%s': %w", fields[0], err)
	}
	cladeReads, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid clade read count '%s': %w", fields[1], err)
	}
	taxonReads, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid taxon read count '%s': %w", fields[2], err)
	}

	return &KreportRecord{
		CladePercent: percent,
		CladeReads:   cladeReads,
		TaxonReads:   taxonReads,
		Rank:         fields[3],
		Taxid:        fields[4],
		Name:         fields[5],
	}, nil
}

func (hit KrakenHit) row() []string {
	return []string{
		hit.Taxid,
		hit.Rank,
		hit.Name,
		formatPercent(hit.CladePercent),
		strconv.FormatUint(hit.CladeReads, 10),
		strconv.FormatBool(hit.Oncogenic),
	}
}

// Format a percentage with at least one decimal, e.g. 2 becomes 2.0
func formatPercent(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

var rankNames = map[byte]string{
	'U': "unclassified",
	'R': "root",
	'D': "domain",
	'K': "kingdom",
	'P': "phylum",
	'C': "class",
	'O': "order",
	'F': "family",
	'G': "genus",
	'S': "species",
}

// Describe a rank code, e.g. "S" becomes "Species" and "G2" becomes "Genus+2"
func rankLabel(code string) string {
	if code == "" {
		return "Unknown rank"
	}
	name, ok := rankNames[code[0]]
	if !ok {
		return code
	}
	label := cases.Title(language.English, cases.Compact).String(name)
	if len(code) > 1 {
		label += "+" + code[1:]
	}
	return label
}

// Call hits from the report of a kraken2 run, writing <prefix>.krakenhits.csv
func CallHitsFromKreport(paths *KrakenOutputPaths, caller *HitCaller) (hitsPath string, summary *HitSummary, err error) {
	var report io.Reader
	kreport, err := xopen.Ropen(paths.Kreport)
	switch {
	case errors.Is(err, xopen.ErrNoContent):
		// an empty report holds no hits
		report = strings.NewReader("")
	case err != nil:
		return "", nil, newError(MissingInput, paths.Kreport, fmt.Errorf("failed to read kreport: %w", err))
	default:
		defer kreport.Close()
		report = kreport
	}

	hitsPath = paths.Prefix + ".krakenhits.csv"
	out, err := xopen.Wopen(hitsPath)
	if err != nil {
		return "", nil, newError(OutputFailure, hitsPath, fmt.Errorf("failed to create the hit table: %w", err))
	}
	defer removeOnError(&err, hitsPath)
	defer closeInto(&err, out, hitsPath, OutputFailure)

	summary, err = caller.Call(report, out)
	if err != nil {
		var e *Error
		if errors.As(err, &e) && e.Path == "" {
			if e.Kind == MalformedInput {
				e.Path = paths.Kreport
			} else {
				e.Path = hitsPath
			}
		}
		return "", nil, err
	}

	caller.logger().Printf("Putative kraken hits written to %s", hitsPath)
	return hitsPath, summary, nil
}
