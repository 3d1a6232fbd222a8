package config

// File represents the structure of the .neardup configuration file.
// Pointer fields distinguish "not set" from a zero value, so only keys
// present in the file override the defaults.
type File struct {
	NumHashes        *int     `yaml:"num_hashes,omitempty"`
	NumBands         *int     `yaml:"num_bands,omitempty"`
	NgramSize        *int     `yaml:"ngram_size,omitempty"`
	JaccardThreshold *float64 `yaml:"jaccard_threshold,omitempty"`
	RandomSeed       *int64   `yaml:"random_seed,omitempty"`
	AllowUnusedRows  *bool    `yaml:"allow_unused_rows,omitempty"`
	ExactVerify      *bool    `yaml:"exact_verify,omitempty"`
	Stages           []string `yaml:"stages,omitempty"`
	Workers          *int     `yaml:"workers,omitempty"`
	OutputDir        string   `yaml:"output_dir,omitempty"`
	DBDir            string   `yaml:"db_dir,omitempty"`

	// Quality overrides individual quality thresholds.
	Quality QualityFile `yaml:"quality,omitempty"`
}

// QualityFile is the quality section of the configuration file.
type QualityFile struct {
	MinWords             *int     `yaml:"min_words,omitempty"`
	MaxWords             *int     `yaml:"max_words,omitempty"`
	MinMeanWordLength    *float64 `yaml:"min_mean_word_length,omitempty"`
	MaxMeanWordLength    *float64 `yaml:"max_mean_word_length,omitempty"`
	MaxEllipsisLineRatio *float64 `yaml:"max_ellipsis_line_ratio,omitempty"`
	MinAlphaWordRatio    *float64 `yaml:"min_alpha_word_ratio,omitempty"`
}

// Apply copies every value set in the file onto cfg.
// CLI flags are applied afterwards, so the precedence is
// flags > file > defaults.
func (cf *File) Apply(cfg *Config) {
	setInt(&cfg.NumHashes, cf.NumHashes)
	setInt(&cfg.NumBands, cf.NumBands)
	setInt(&cfg.NgramSize, cf.NgramSize)
	setFloat(&cfg.JaccardThreshold, cf.JaccardThreshold)
	if cf.RandomSeed != nil {
		cfg.RandomSeed = *cf.RandomSeed
	}
	if cf.AllowUnusedRows != nil {
		cfg.AllowUnusedRows = *cf.AllowUnusedRows
	}
	if cf.ExactVerify != nil {
		cfg.ExactVerify = *cf.ExactVerify
	}
	if len(cf.Stages) > 0 {
		cfg.Stages = append([]string(nil), cf.Stages...)
	}
	setInt(&cfg.Workers, cf.Workers)
	if cf.OutputDir != "" {
		cfg.OutputDir = cf.OutputDir
	}
	if cf.DBDir != "" {
		cfg.DBDir = cf.DBDir
	}

	q := &cfg.Quality
	setInt(&q.MinWords, cf.Quality.MinWords)
	setInt(&q.MaxWords, cf.Quality.MaxWords)
	setFloat(&q.MinMeanWordLength, cf.Quality.MinMeanWordLength)
	setFloat(&q.MaxMeanWordLength, cf.Quality.MaxMeanWordLength)
	setFloat(&q.MaxEllipsisLineRatio, cf.Quality.MaxEllipsisLineRatio)
	setFloat(&q.MinAlphaWordRatio, cf.Quality.MinAlphaWordRatio)
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
