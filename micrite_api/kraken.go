package micrite_api

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Run kraken2 on a FASTA file, writing <outdir>/<stem>.kreport
//
// The per-read output is written to <outdir>/<stem>.kout.tsv unless
// CleanupStdFile is set.
func RunKraken(fasta string, outdir string, config KrakenConfig, logger *log.Logger) (*KrakenOutputPaths, error) {
	logger = orDiscard(logger)

	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return nil, newError(OutputFailure, outdir, fmt.Errorf("failed to create output directory: %w", err))
	}
	stem := strings.TrimSuffix(filepath.Base(fasta), filepath.Ext(fasta))
	if stem == "" || stem == "." {
		return nil, newError(MissingInput, fasta, errors.New("failed to extract the FASTA file stem, is this a file path?"))
	}
	prefix := filepath.Join(outdir, stem)
	paths := &KrakenOutputPaths{
		Kreport:    prefix + ".kreport",
		InputFasta: fasta,
		Prefix:     prefix,
	}
	output := "-"
	if !config.CleanupStdFile {
		paths.Kout = prefix + ".kout.tsv"
		output = paths.Kout
	}

	command, err := exec.LookPath("kraken2")
	if err != nil {
		return nil, newError(MissingTool, "kraken2", errors.New("kraken2 not found. Please ensure it is installed and added to your PATH"))
	}

	db, err := expandHome(config.Db)
	if err != nil {
		return nil, newError(InvalidConfig, config.Db, fmt.Errorf("failed to expand the kraken database path: %w", err))
	}

	flags := []string{
		"--db", db,
		"--threads", strconv.Itoa(config.Threads),
		"--confidence", config.Confidence,
		"--output", output,
		"--report", paths.Kreport,
	}
	if config.ReportZeroCounts {
		flags = append(flags, "--report-zero-counts")
	}
	flags = append(flags, fasta)

	cmd := exec.Command(command, flags...)
	logger.Printf("Running Kraken: %s", cmd.String())

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, newError(ToolFailed, "kraken2", fmt.Errorf("kraken run failed: %w\n========\n%s\n========", err, stderr.String()))
	}

	logger.Printf("\tKraken report saved to: %s", paths.Kreport)
	return paths, nil
}

// Expand a leading ~ to the home directory of the user
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
