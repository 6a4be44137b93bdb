package micrite_api

import (
	"errors"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v2"
	"gopkg.in/yaml.v2"
)

// The configuration used when no config file or flag says otherwise
func DefaultConfig() *Config {
	return &Config{
		Outdir: "outdir",
		Quality: QualityThresholds{
			MinLength:         50,
			MinPhred:          17.0,
			MaxN:              2,
			MinMapQ:           10,
			MinAlignmentScore: 130,
		},
		Hits: HitThresholds{
			MinReads:   50,
			MinPercent: 0.01,
		},
		Kraken: KrakenConfig{
			Threads:    4,
			Confidence: "0.01",
		},
		Deacon: DeaconConfig{
			RelativeThreshold: 0.01,
			AbsoluteThreshold: 2,
		},
	}
}

// Read the configuration file on top of the defaults, apply the command line flags and validate
func ReadConfig(Cctx *cli.Context) (*Config, error) {
	config := DefaultConfig()

	if file := Cctx.String("config"); file != "" {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, newError(MissingInput, file, fmt.Errorf("failed to open the config file: %w", err))
		}
		if err := yaml.Unmarshal(content, config); err != nil {
			return nil, newError(InvalidConfig, file, fmt.Errorf("failed to parse the config file: %w", err))
		}
	}

	config.applyFlags(Cctx)

	if err := config.validate(); err != nil {
		return nil, newError(InvalidConfig, Cctx.String("config"), err)
	}
	return config, nil
}

// Overwrite the fields of all flags that were given on the command line
func (config *Config) applyFlags(Cctx *cli.Context) {
	if Cctx.IsSet("outdir") {
		config.Outdir = Cctx.String("outdir")
	}

	// Quality thresholds
	if Cctx.IsSet("min-length") {
		config.Quality.MinLength = Cctx.Int("min-length")
	}
	if Cctx.IsSet("min-phred") {
		config.Quality.MinPhred = Cctx.Float64("min-phred")
	}
	if Cctx.IsSet("max-n") {
		config.Quality.MaxN = Cctx.Int("max-n")
	}
	if Cctx.IsSet("min-mapq") {
		config.Quality.MinMapQ = Cctx.Int("min-mapq")
	}
	if Cctx.IsSet("min-alignment-score") {
		config.Quality.MinAlignmentScore = Cctx.Int("min-alignment-score")
	}

	// Hit thresholds
	if Cctx.IsSet("min-reads") {
		config.Hits.MinReads = Cctx.Uint64("min-reads")
	}
	if Cctx.IsSet("min-percent") {
		config.Hits.MinPercent = Cctx.Float64("min-percent")
	}
	if Cctx.IsSet("oncogenic-only") {
		config.Hits.OncogenicOnly = Cctx.Bool("oncogenic-only")
	}

	// Kraken
	if Cctx.IsSet("kraken-db") {
		config.Kraken.Db = Cctx.String("kraken-db")
	}
	if Cctx.IsSet("threads") {
		config.Kraken.Threads = Cctx.Int("threads")
	}
	if Cctx.IsSet("confidence") {
		config.Kraken.Confidence = Cctx.String("confidence")
	}
	if Cctx.IsSet("keep-fasta") {
		config.Kraken.KeepFasta = Cctx.Bool("keep-fasta")
	}
	if Cctx.IsSet("cleanup-kout") {
		config.Kraken.CleanupStdFile = Cctx.Bool("cleanup-kout")
	}
	if Cctx.IsSet("report-zero-counts") {
		config.Kraken.ReportZeroCounts = Cctx.Bool("report-zero-counts")
	}

	// Deacon
	if Cctx.IsSet("deacon-db") {
		config.Deacon.Db = Cctx.String("deacon-db")
	}
	if Cctx.IsSet("deacon-abs-threshold") {
		config.Deacon.AbsoluteThreshold = Cctx.Int("deacon-abs-threshold")
	}
	if Cctx.IsSet("deacon-rel-threshold") {
		config.Deacon.RelativeThreshold = Cctx.Float64("deacon-rel-threshold")
	}
}

// Check for values that can never lead to a useful run
func (config *Config) validate() error {
	var errs []error
	if config.Outdir == "" {
		errs = append(errs, errors.New("outdir can't be empty"))
	}
	if config.Quality.MinLength < 0 {
		errs = append(errs, fmt.Errorf("quality.minlength can't be negative, got %d", config.Quality.MinLength))
	}
	if config.Quality.MaxN < 0 {
		errs = append(errs, fmt.Errorf("quality.maxn can't be negative, got %d", config.Quality.MaxN))
	}
	if config.Hits.MinPercent < 0 || config.Hits.MinPercent > 100 {
		errs = append(errs, fmt.Errorf("hits.minpercent must be between 0 and 100, got %g", config.Hits.MinPercent))
	}
	if config.Kraken.Threads < 1 {
		errs = append(errs, fmt.Errorf("kraken.threads must be at least 1, got %d", config.Kraken.Threads))
	}
	if config.Deacon.RelativeThreshold < 0 || config.Deacon.RelativeThreshold > 1 {
		errs = append(errs, fmt.Errorf("deacon.relativethreshold must be between 0 and 1, got %g", config.Deacon.RelativeThreshold))
	}
	for i, c := range config.Contigs {
		if c.Contig == "" {
			errs = append(errs, fmt.Errorf("contigs[%d] has no contig name", i))
		}
	}
	for i, m := range config.Oncogenic {
		if m.Taxid == "" {
			errs = append(errs, fmt.Errorf("oncogenic[%d] has no taxid", i))
		}
	}
	return errors.Join(errs...)
}

// Build the lookup tables from the built-in entries and the entries of the config
func (config *Config) Tables() (*MicrobialContigs, *OncogenicMicrobes) {
	return NewMicrobialContigs(config.Contigs...), NewOncogenicMicrobes(config.Oncogenic...)
}
