package micrite_api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/xopen"
)

// Remove host reads from a FASTA file with deacon, keeping the non-host reads in output
//
// This runs the equivalent of
//
//	deacon filter -d -a <AbsoluteThreshold> -r <RelativeThreshold> -o <output> <Db> <fasta>
//
// Only single-end input is supported.
func HostDepletion(fasta string, output string, config DeaconConfig, logger *log.Logger) (string, error) {
	logger = orDiscard(logger)

	command, err := exec.LookPath("deacon")
	if err != nil {
		return "", newError(MissingTool, "deacon", errors.New("deacon not found. Ensure it is installed and in your PATH. See https://github.com/bede/deacon"))
	}

	db, err := expandHome(config.Db)
	if err != nil {
		return "", newError(InvalidConfig, config.Db, fmt.Errorf("failed to expand the deacon index path: %w", err))
	}
	if _, err := os.Stat(db); err != nil {
		return "", newError(MissingInput, db, fmt.Errorf("failed to find deacon minimiser index: %w", err))
	}

	cmd := exec.Command(command,
		"filter",
		"-d",
		"-a", strconv.Itoa(config.AbsoluteThreshold),
		"-r", strconv.FormatFloat(config.RelativeThreshold, 'f', -1, 64),
		"-o", output,
		db,
		fasta,
	)
	logger.Printf("Running Deacon: %s", cmd.String())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err = cmd.Run()
	if stdout.Len() > 0 {
		logger.Printf("Deacon stdout:\n%s", stdout.String())
	}
	if err != nil {
		return "", newError(ToolFailed, "deacon", fmt.Errorf("deacon run failed: %w\n--- STDERR ---\n%s\n---------------", err, stderr.String()))
	}

	reads, err := countReads(output)
	if err != nil {
		return "", err
	}
	logger.Printf("Deacon non-host reads written to %s [%d reads]", output, reads)
	return output, nil
}

// Count the records of a FASTA/FASTQ file
func countReads(path string) (int, error) {
	reader, err := fastx.NewReader(seq.DNAredundant, path, fastx.DefaultIDRegexp)
	if errors.Is(err, xopen.ErrNoContent) {
		return 0, nil
	}
	if err != nil {
		return 0, newError(MalformedInput, path, err)
	}
	defer reader.Close()

	n := 0
	for {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, &Error{Kind: MalformedInput, Path: path, Line: n + 1, Err: err}
		}
		n++
	}
	return n, nil
}
