package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
// Tests fail if defaults change unexpectedly.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default NumHashes is 128", func(t *testing.T) {
		t.Parallel()
		if cfg.NumHashes != 128 {
			t.Errorf("expected NumHashes to be 128, got %d", cfg.NumHashes)
		}
	})

	t.Run("default NumBands is 16", func(t *testing.T) {
		t.Parallel()
		if cfg.NumBands != 16 {
			t.Errorf("expected NumBands to be 16, got %d", cfg.NumBands)
		}
	})

	t.Run("default NgramSize is 5", func(t *testing.T) {
		t.Parallel()
		if cfg.NgramSize != 5 {
			t.Errorf("expected NgramSize to be 5, got %d", cfg.NgramSize)
		}
	})

	t.Run("default JaccardThreshold is 0.8", func(t *testing.T) {
		t.Parallel()
		if cfg.JaccardThreshold != 0.8 {
			t.Errorf("expected JaccardThreshold to be 0.8, got %v", cfg.JaccardThreshold)
		}
	})

	t.Run("default RandomSeed is 42", func(t *testing.T) {
		t.Parallel()
		if cfg.RandomSeed != 42 {
			t.Errorf("expected RandomSeed to be 42, got %d", cfg.RandomSeed)
		}
	})

	t.Run("default stages are lines then minhash", func(t *testing.T) {
		t.Parallel()
		if len(cfg.Stages) != 2 || cfg.Stages[0] != StageLines || cfg.Stages[1] != StageMinHash {
			t.Errorf("unexpected default stages: %v", cfg.Stages)
		}
	})

	t.Run("default banding leaves no unused rows", func(t *testing.T) {
		t.Parallel()
		if cfg.RowsPerBand() != 8 || cfg.UnusedRows() != 0 {
			t.Errorf("expected r=8 and no unused rows, got r=%d unused=%d", cfg.RowsPerBand(), cfg.UnusedRows())
		}
	})

	t.Run("default workers is positive", func(t *testing.T) {
		t.Parallel()
		if cfg.Workers <= 0 {
			t.Errorf("expected positive workers, got %d", cfg.Workers)
		}
	})

	t.Run("default stages are not shared between configs", func(t *testing.T) {
		t.Parallel()
		other := NewConfig()
		other.Stages[0] = "changed"
		if DefaultStages[0] != StageLines {
			t.Error("NewConfig must copy DefaultStages")
		}
	})
}

// validConfig returns a configuration that passes validation.
func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewConfig()
	cfg.Inputs = []string{t.TempDir()}
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.Workers = 2
	return cfg
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "valid config", modify: func(*Config) {}},
		{name: "no input", modify: func(c *Config) { c.Inputs = nil }, wantErr: ErrNoInput},
		{name: "no output", modify: func(c *Config) { c.OutputDir = "" }, wantErr: ErrNoOutput},
		{name: "output equals input", modify: func(c *Config) { c.OutputDir = c.Inputs[0] }, wantErr: ErrOutputIsInput},
		{name: "zero hashes", modify: func(c *Config) { c.NumHashes = 0 }, wantErr: ErrInvalidNumHashes},
		{name: "zero bands", modify: func(c *Config) { c.NumBands = 0 }, wantErr: ErrInvalidNumBands},
		{name: "more bands than hashes", modify: func(c *Config) { c.NumBands = 129 }, wantErr: ErrInvalidNumBands},
		{name: "zero ngram", modify: func(c *Config) { c.NgramSize = 0 }, wantErr: ErrInvalidNgramSize},
		{name: "zero threshold", modify: func(c *Config) { c.JaccardThreshold = 0 }},
		{name: "negative threshold", modify: func(c *Config) { c.JaccardThreshold = -0.1 }, wantErr: ErrInvalidThreshold},
		{name: "NaN threshold", modify: func(c *Config) { c.JaccardThreshold = math.NaN() }, wantErr: ErrInvalidThreshold},
		{name: "threshold above one", modify: func(c *Config) { c.JaccardThreshold = 1.5 }, wantErr: ErrInvalidThreshold},
		{name: "threshold of exactly one", modify: func(c *Config) { c.JaccardThreshold = 1 }},
		{name: "zero workers", modify: func(c *Config) { c.Workers = 0 }, wantErr: ErrInvalidWorkers},
		{name: "empty stage list", modify: func(c *Config) { c.Stages = nil }, wantErr: ErrUnknownStage},
		{name: "unknown stage", modify: func(c *Config) { c.Stages = []string{"lines", "fuzzy"} }, wantErr: ErrUnknownStage},
		{name: "duplicate stage", modify: func(c *Config) { c.Stages = []string{"lines", "lines"} }, wantErr: ErrDuplicateStage},
		{name: "reversed stage order", modify: func(c *Config) { c.Stages = []string{"minhash", "lines"} }},
		{name: "single stage", modify: func(c *Config) { c.Stages = []string{"minhash"} }},
		{name: "both report formats", modify: func(c *Config) { c.JSONReport = true; c.MarkdownReport = true }, wantErr: ErrConflictingReportFormats},
		{name: "bands do not divide hashes", modify: func(c *Config) { c.NumBands = 10 }, wantErr: ErrBandsDoNotDivide},
		{name: "bands do not divide hashes but allowed", modify: func(c *Config) { c.NumBands = 10; c.AllowUnusedRows = true }},
		{
			name: "quality stage with inverted word bounds",
			modify: func(c *Config) {
				c.Stages = []string{"quality", "lines"}
				c.Quality.MinWords = 10
				c.Quality.MaxWords = 5
			},
			wantErr: ErrInvalidQualityRule,
		},
		{
			name: "quality bounds ignored when stage disabled",
			modify: func(c *Config) {
				c.Quality.MaxWords = -1
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig(t)
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateOutputDirOverlap(t *testing.T) {
	t.Parallel()

	// layout creates root/corpus/a.txt and returns root.
	layout := func(t *testing.T) string {
		t.Helper()
		root := t.TempDir()
		if err := os.MkdirAll(filepath.Join(root, "corpus"), 0750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(root, "corpus", "a.txt"), []byte("text\n"), 0600); err != nil {
			t.Fatal(err)
		}
		return root
	}

	tests := []struct {
		name    string
		setup   func(t *testing.T, root string) (inputs []string, out string)
		wantErr bool
	}{
		{
			name: "sibling output directory",
			setup: func(_ *testing.T, root string) ([]string, string) {
				return []string{filepath.Join(root, "corpus")}, filepath.Join(root, "out")
			},
		},
		{
			name: "output equals input written differently",
			setup: func(_ *testing.T, root string) ([]string, string) {
				return []string{filepath.Join(root, "corpus")}, filepath.Join(root, "corpus", "..", "corpus") + "/"
			},
			wantErr: true,
		},
		{
			name: "input file inside output directory",
			setup: func(_ *testing.T, root string) ([]string, string) {
				return []string{filepath.Join(root, "corpus", "a.txt")}, filepath.Join(root, "corpus")
			},
			wantErr: true,
		},
		{
			name: "output nested in input directory",
			setup: func(_ *testing.T, root string) ([]string, string) {
				return []string{filepath.Join(root, "corpus")}, filepath.Join(root, "corpus", "out", "deep")
			},
			wantErr: true,
		},
		{
			name: "input directory nested in output",
			setup: func(_ *testing.T, root string) ([]string, string) {
				return []string{filepath.Join(root, "corpus")}, root
			},
			wantErr: true,
		},
		{
			name: "output through symlink to input",
			setup: func(t *testing.T, root string) ([]string, string) {
				link := filepath.Join(root, "link")
				if err := os.Symlink(filepath.Join(root, "corpus"), link); err != nil {
					t.Skipf("symlinks unavailable: %v", err)
				}
				return []string{filepath.Join(root, "corpus")}, filepath.Join(link, "out")
			},
			wantErr: true,
		},
		{
			name: "output sharing a name prefix with input",
			setup: func(_ *testing.T, root string) ([]string, string) {
				return []string{filepath.Join(root, "corpus")}, filepath.Join(root, "corpus-out")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig(t)
			cfg.Inputs, cfg.OutputDir = tt.setup(t, layout(t))

			err := cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrOutputIsInput) {
					t.Errorf("expected ErrOutputIsInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestBandingError(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	cfg.NumHashes = 100
	cfg.NumBands = 16

	err := cfg.Validate()
	var be *BandingError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BandingError, got %T: %v", err, err)
	}
	if be.RowsPerBand != 6 {
		t.Errorf("expected 6 rows per band, got %d", be.RowsPerBand)
	}
	if be.UnusedRows != 4 {
		t.Errorf("expected 4 unused rows, got %d", be.UnusedRows)
	}
	if be.Error() == "" {
		t.Error("expected non-empty message")
	}
}

func TestHasStage(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if !cfg.HasStage(StageLines) {
		t.Error("expected lines stage")
	}
	if cfg.HasStage(StageQuality) {
		t.Error("quality stage must be off by default")
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cf, err := LoadConfigFile("/nonexistent/path/.neardup")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cf != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads and applies valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".neardup")
		content := `num_hashes: 64
num_bands: 8
jaccard_threshold: 0.7
random_seed: 7
stages: [minhash, lines]
quality:
  min_words: 10
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cf, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg := NewConfig()
		cf.Apply(cfg)

		if cfg.NumHashes != 64 || cfg.NumBands != 8 {
			t.Errorf("expected k=64 b=8, got k=%d b=%d", cfg.NumHashes, cfg.NumBands)
		}
		if cfg.JaccardThreshold != 0.7 {
			t.Errorf("expected threshold 0.7, got %v", cfg.JaccardThreshold)
		}
		if cfg.RandomSeed != 7 {
			t.Errorf("expected seed 7, got %d", cfg.RandomSeed)
		}
		if cfg.Stages[0] != StageMinHash {
			t.Errorf("expected minhash first, got %v", cfg.Stages)
		}
		if cfg.NgramSize != DefaultNgramSize {
			t.Errorf("unset keys must keep defaults, got ngram %d", cfg.NgramSize)
		}
		if cfg.Quality.MinWords != 10 || cfg.Quality.MaxWords != 100000 {
			t.Errorf("unexpected quality config: %+v", cfg.Quality)
		}
	})

	t.Run("zero values in file override defaults", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".neardup")
		if err := os.WriteFile(configPath, []byte("random_seed: 0\nallow_unused_rows: true\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cf, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cfg := NewConfig()
		cf.Apply(cfg)
		if cfg.RandomSeed != 0 {
			t.Errorf("expected seed 0, got %d", cfg.RandomSeed)
		}
		if !cfg.AllowUnusedRows {
			t.Error("expected AllowUnusedRows")
		}
	})

	t.Run("accepts a negative seed", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".neardup")
		if err := os.WriteFile(configPath, []byte("random_seed: -5\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cf, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cfg := NewConfig()
		cf.Apply(cfg)
		if cfg.RandomSeed != -5 {
			t.Errorf("expected seed -5, got %d", cfg.RandomSeed)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".neardup")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".neardup")
		if err := os.WriteFile(configPath, []byte("num_hash: 64\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for misspelled key")
		}
	})

	t.Run("comment-only file is empty", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".neardup")
		if err := os.WriteFile(configPath, []byte("# nothing set yet\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cf, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cfg := NewConfig()
		cf.Apply(cfg)
		if cfg.NumHashes != DefaultNumHashes {
			t.Errorf("expected defaults, got k=%d", cfg.NumHashes)
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit path that exists", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("num_hashes: 64\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
	})

	t.Run("explicit path that does not exist", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile("/nonexistent/custom.yaml"); got != "" {
			t.Errorf("expected empty path, got %s", got)
		}
	})

	t.Run("explicit path that is a directory", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(t.TempDir()); got != "" {
			t.Errorf("expected empty path, got %s", got)
		}
	})
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if filepath.Base(XDGDataDir()) != AppName {
		t.Errorf("unexpected data dir: %s", XDGDataDir())
	}
	if filepath.Base(XDGConfigDir()) != AppName {
		t.Errorf("unexpected config dir: %s", XDGConfigDir())
	}
}
