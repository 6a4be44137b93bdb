package micrite_api

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	cli "github.com/urfave/cli/v2"
)

// Run ReadConfig inside a cli.App carrying a subset of the micrite flags
func readTestConfig(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var config *Config
	app := &cli.App{
		Name: "micrite",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config"},
			&cli.StringFlag{Name: "outdir"},
			&cli.IntFlag{Name: "min-length"},
			&cli.Float64Flag{Name: "min-phred"},
			&cli.Uint64Flag{Name: "min-reads"},
			&cli.BoolFlag{Name: "oncogenic-only"},
			&cli.StringFlag{Name: "kraken-db"},
			&cli.IntFlag{Name: "threads"},
		},
		Action: func(Cctx *cli.Context) error {
			var err error
			config, err = ReadConfig(Cctx)
			return err
		},
	}
	err := app.Run(append([]string{"micrite"}, args...))
	return config, err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "micrite.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadConfigDefaults(t *testing.T) {
	config, err := readTestConfig(t)
	if err != nil {
		t.Fatalf("ReadConfig() failed: %v", err)
	}
	if !reflect.DeepEqual(config, DefaultConfig()) {
		t.Fatalf("ReadConfig() = %+v, want the defaults", config)
	}
}

func TestReadConfigFile(t *testing.T) {
	path := writeConfig(t, `outdir: results
quality:
  minlength: 60
  minphred: 20.5
hits:
  minreads: 10
  oncogeniconly: true
kraken:
  db: /data/k2
  threads: 8
contigs:
  - contig: chrHPV16
    taxid: "333760"
    species: HPV16
oncogenic:
  - name: Foo virus
    taxid: "9999"
`)

	config, err := readTestConfig(t, "--config", path)
	if err != nil {
		t.Fatalf("ReadConfig() failed: %v", err)
	}

	want := DefaultConfig()
	want.Outdir = "results"
	want.Quality.MinLength = 60
	want.Quality.MinPhred = 20.5
	want.Hits.MinReads = 10
	want.Hits.OncogenicOnly = true
	want.Kraken.Db = "/data/k2"
	want.Kraken.Threads = 8
	want.Contigs = []ContigEntry{{Contig: "chrHPV16", Taxid: "333760", Species: "HPV16"}}
	want.Oncogenic = []OncogenicMicrobe{{Name: "Foo virus", Taxid: "9999"}}
	if !reflect.DeepEqual(config, want) {
		t.Fatalf("ReadConfig() = %+v, want %+v", config, want)
	}

	contigs, oncogenic := config.Tables()
	if species, ok := contigs.ContigToSpecies("chrHPV16"); !ok || species != "HPV16" {
		t.Fatalf("extra contig not found: %s, %v", species, ok)
	}
	if !contigs.Contains("chrEBV") {
		t.Fatal("built-in contigs should be kept")
	}
	if !oncogenic.Contains("9999") || oncogenic.Len() != 17 {
		t.Fatalf("expected 17 oncogenic microbes, got %d", oncogenic.Len())
	}
}

func TestReadConfigFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "outdir: results\nquality:\n  minlength: 60\n")

	config, err := readTestConfig(t, "--config", path, "--outdir", "flags", "--min-reads", "5", "--kraken-db", "~/k2")
	if err != nil {
		t.Fatalf("ReadConfig() failed: %v", err)
	}
	if config.Outdir != "flags" {
		t.Errorf("outdir = %s, want flags", config.Outdir)
	}
	if config.Quality.MinLength != 60 {
		t.Errorf("min length = %d, want the value of the file", config.Quality.MinLength)
	}
	if config.Hits.MinReads != 5 {
		t.Errorf("min reads = %d, want 5", config.Hits.MinReads)
	}
	if config.Kraken.Db != "~/k2" {
		t.Errorf("kraken db = %s, want ~/k2", config.Kraken.Db)
	}
}

func TestReadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args func(t *testing.T) []string
		kind ErrorKind
	}{
		{"missing file", func(t *testing.T) []string {
			return []string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}
		}, MissingInput},
		{"invalid yaml", func(t *testing.T) []string {
			return []string{"--config", writeConfig(t, "quality: [")}
		}, InvalidConfig},
		{"wrong type", func(t *testing.T) []string {
			return []string{"--config", writeConfig(t, "quality:\n  minlength: long\n")}
		}, InvalidConfig},
		{"negative length", func(t *testing.T) []string {
			return []string{"--min-length=-1"}
		}, InvalidConfig},
		{"no threads", func(t *testing.T) []string {
			return []string{"--threads", "0"}
		}, InvalidConfig},
		{"percent above 100", func(t *testing.T) []string {
			return []string{"--config", writeConfig(t, "hits:\n  minpercent: 101\n")}
		}, InvalidConfig},
		{"contig without a name", func(t *testing.T) []string {
			return []string{"--config", writeConfig(t, "contigs:\n  - taxid: \"1\"\n")}
		}, InvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readTestConfig(t, tt.args(t)...)
			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("expected an *Error, got %v", err)
			}
			if e.Kind != tt.kind {
				t.Fatalf("error kind = %s, want %s: %v", e.Kind, tt.kind, err)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	config := DefaultConfig()
	config.Outdir = ""
	config.Kraken.Threads = 0
	config.Deacon.RelativeThreshold = 2

	err := config.validate()
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if n := len(err.(interface{ Unwrap() []error }).Unwrap()); n != 3 {
		t.Fatalf("expected 3 problems, got %d: %v", n, err)
	}
}

func TestErrorMessage(t *testing.T) {
	inner := errors.New("bad column")
	err := &Error{Kind: MalformedInput, Path: "sample.kreport", Line: 3, Err: inner}
	if got, want := err.Error(), "malformed input [sample.kreport] at line 3: bad column"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, inner) {
		t.Fatal("the wrapped error should be reachable")
	}
	if got := newError(MissingTool, "", nil).Error(); got != "missing tool" {
		t.Fatalf("Error() = %q, want %q", got, "missing tool")
	}
}
