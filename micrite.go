package main

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvnieuwk/micrite/micrite_api"
	cli "github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:            "micrite",
		Usage:           "Screen BAM files for microbial reads using a kraken2 database",
		HideHelpCommand: true,
		Version:         "0.1.0dev",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Don't log progress to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "screen",
				Usage: "Triage the reads of BAM files, classify them with kraken2 and call microbial hits",
				Flags: flags(inputFlag(), commonFlags(), qualityFlags(), hitFlags(), krakenFlags(), deaconFlags()),
				Action: func(Cctx *cli.Context) error {
					logger := micrite_api.NewLogger(Cctx.Bool("quiet"))
					config, err := micrite_api.ReadConfig(Cctx)
					if err != nil {
						return err
					}
					for _, bam := range Cctx.StringSlice("input") {
						if _, err := micrite_api.Screen(bam, config, logger); err != nil {
							return err
						}
					}
					return nil
				},
			},
			{
				Name:  "triage",
				Usage: "Write the good quality unmapped and microbial contig reads of BAM files to FASTA",
				Flags: flags(inputFlag(), commonFlags(), qualityFlags()),
				Action: func(Cctx *cli.Context) error {
					logger := micrite_api.NewLogger(Cctx.Bool("quiet"))
					config, err := micrite_api.ReadConfig(Cctx)
					if err != nil {
						return err
					}
					contigs, _ := config.Tables()
					triage := &micrite_api.Triage{Contigs: contigs, Quality: config.Quality, Logger: logger}
					for _, bam := range Cctx.StringSlice("input") {
						if _, _, err := micrite_api.TriageBam(bam, config.Outdir, triage); err != nil {
							return err
						}
					}
					return nil
				},
			},
			{
				Name:  "hits",
				Usage: "Call microbial hits from an existing kraken2 report",
				Flags: flags(
					[]cli.Flag{
						&cli.StringFlag{
							Name:     "kreport",
							Aliases:  []string{"k"},
							Usage:    "The kraken2 report to call hits from",
							Required: true,
							Category: "Required",
						},
					},
					commonFlags(),
					hitFlags(),
				),
				Action: func(Cctx *cli.Context) error {
					logger := micrite_api.NewLogger(Cctx.Bool("quiet"))
					config, err := micrite_api.ReadConfig(Cctx)
					if err != nil {
						return err
					}
					if err := os.MkdirAll(config.Outdir, 0o755); err != nil {
						return &micrite_api.Error{Kind: micrite_api.OutputFailure, Path: config.Outdir, Err: err}
					}
					kreport := Cctx.String("kreport")
					stem := strings.TrimSuffix(filepath.Base(kreport), filepath.Ext(kreport))
					paths := &micrite_api.KrakenOutputPaths{
						Kreport: kreport,
						Prefix:  filepath.Join(config.Outdir, stem),
					}
					_, oncogenic := config.Tables()
					caller := &micrite_api.HitCaller{Oncogenic: oncogenic, Thresholds: config.Hits, Logger: logger}
					_, _, err = micrite_api.CallHitsFromKreport(paths, caller)
					return err
				},
			},
			{
				Name:  "index",
				Usage: "Create a BAI index for coordinate sorted BAM files",
				Flags: inputFlag(),
				Action: func(Cctx *cli.Context) error {
					logger := micrite_api.NewLogger(Cctx.Bool("quiet"))
					for _, bam := range Cctx.StringSlice("input") {
						index, err := micrite_api.BuildIndex(bam)
						if err != nil {
							return err
						}
						logger.Printf("Wrote index %s", index)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.New(os.Stderr, "", 0).Fatal(err)
	}
}

func flags(groups ...[]cli.Flag) []cli.Flag {
	all := []cli.Flag{}
	for _, group := range groups {
		all = append(all, group...)
	}
	return all
}

func inputFlag() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:     "input",
			Aliases:  []string{"i"},
			Usage:    "The BAM file(s) to screen, each needs a BAI index",
			Required: true,
			Category: "Required",
		},
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "config",
			Aliases:  []string{"c"},
			Usage:    "Configuration file (YAML) with thresholds, tool settings and extra microbial contigs or oncogenic microbes",
			Category: "Optional",
		},
		&cli.StringFlag{
			Name:     "outdir",
			Aliases:  []string{"o"},
			Usage:    "The directory to write all output files to",
			Category: "Optional",
		},
	}
}

func qualityFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:     "min-length",
			Usage:    "Minimum read length of a good quality sequence (default 50)",
			Category: "Read quality",
		},
		&cli.Float64Flag{
			Name:     "min-phred",
			Usage:    "Minimum average Phred score of a good quality sequence (default 17)",
			Category: "Read quality",
		},
		&cli.IntFlag{
			Name:     "max-n",
			Usage:    "Maximum number of N bases in a good quality sequence (default 2)",
			Category: "Read quality",
		},
		&cli.IntFlag{
			Name:     "min-mapq",
			Usage:    "A good quality alignment needs a mapping quality above this value (default 10)",
			Category: "Read quality",
		},
		&cli.IntFlag{
			Name:     "min-alignment-score",
			Usage:    "A good quality alignment needs an AS tag above this value (default 130)",
			Category: "Read quality",
		},
	}
}

func hitFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Uint64Flag{
			Name:     "min-reads",
			Usage:    "A hit needs more clade reads than this (default 50)",
			Category: "Hits",
		},
		&cli.Float64Flag{
			Name:     "min-percent",
			Usage:    "A hit needs at least this percentage of the classified reads (default 0.01)",
			Category: "Hits",
		},
		&cli.BoolFlag{
			Name:     "oncogenic-only",
			Usage:    "Only report microbes that are known to be oncogenic",
			Category: "Hits",
		},
	}
}

func krakenFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "kraken-db",
			Aliases:  []string{"d"},
			Usage:    "The kraken2 database to classify reads with",
			Category: "Kraken",
		},
		&cli.IntFlag{
			Name:     "threads",
			Aliases:  []string{"t"},
			Usage:    "The number of threads kraken2 may use (default 4)",
			Category: "Kraken",
		},
		&cli.StringFlag{
			Name:     "confidence",
			Usage:    "The kraken2 confidence score threshold (default 0.01)",
			Category: "Kraken",
		},
		&cli.BoolFlag{
			Name:     "keep-fasta",
			Usage:    "Keep the FASTA files of the triaged reads",
			Category: "Kraken",
		},
		&cli.BoolFlag{
			Name:     "cleanup-kout",
			Usage:    "Don't write the per-read kraken2 output",
			Category: "Kraken",
		},
		&cli.BoolFlag{
			Name:     "report-zero-counts",
			Usage:    "Include taxa without reads in the kraken2 report",
			Category: "Kraken",
		},
	}
}

func deaconFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "deacon-db",
			Usage:    "The deacon minimizer index used to remove host reads, host depletion is skipped without it",
			Category: "Host depletion",
		},
		&cli.IntFlag{
			Name:     "deacon-abs-threshold",
			Usage:    "Minimum absolute number of minimizer hits for a host match (default 2)",
			Category: "Host depletion",
		},
		&cli.Float64Flag{
			Name:     "deacon-rel-threshold",
			Usage:    "Minimum relative proportion of minimizer hits for a host match (default 0.01)",
			Category: "Host depletion",
		},
	}
}
