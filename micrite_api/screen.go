package micrite_api

import (
	"errors"
	"log"
	"os"
	"strings"
)

// The outputs of screening one BAM file
type ScreenResult struct {
	Triage   *TriageOutputPaths
	Stats    *SummaryStats
	Kraken   *KrakenOutputPaths
	HitTable string
	Hits     *HitSummary
}

// Screen a BAM file for microbial reads
//
//  1. triage the reads into a FASTA file and a summary
//  2. remove host reads with deacon when a deacon index is configured
//  3. classify the reads with kraken2
//  4. call hits from the kraken report
//
// Intermediate FASTA files are removed afterwards unless Kraken.KeepFasta is set.
func Screen(bamPath string, config *Config, logger *log.Logger) (*ScreenResult, error) {
	logger = orDiscard(logger)
	if config.Kraken.Db == "" {
		return nil, newError(InvalidConfig, "", errors.New("no kraken2 database given, set kraken.db or --kraken-db"))
	}
	contigs, oncogenic := config.Tables()

	triage := &Triage{Contigs: contigs, Quality: config.Quality, Logger: logger}
	triagePaths, stats, err := TriageBam(bamPath, config.Outdir, triage)
	if err != nil {
		return nil, err
	}
	intermediates := []string{triagePaths.Fasta}

	fasta := triagePaths.Fasta
	if config.Deacon.Db != "" {
		nonHost := strings.TrimSuffix(fasta, ".fasta") + ".nonhost.fasta"
		fasta, err = HostDepletion(fasta, nonHost, config.Deacon, logger)
		if err != nil {
			return nil, err
		}
		intermediates = append(intermediates, fasta)
	}

	krakenPaths, err := RunKraken(fasta, config.Outdir, config.Kraken, logger)
	if err != nil {
		return nil, err
	}

	caller := &HitCaller{Oncogenic: oncogenic, Thresholds: config.Hits, Logger: logger}
	hitTable, hits, err := CallHitsFromKreport(krakenPaths, caller)
	if err != nil {
		return nil, err
	}

	if !config.Kraken.KeepFasta {
		logger.Println("Removing unmapped read files")
		for _, path := range intermediates {
			if err := os.Remove(path); err != nil {
				return nil, newError(OutputFailure, path, err)
			}
		}
	}

	return &ScreenResult{
		Triage:   triagePaths,
		Stats:    stats,
		Kraken:   krakenPaths,
		HitTable: hitTable,
		Hits:     hits,
	}, nil
}
