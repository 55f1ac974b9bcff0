// Package config loads the collection run configuration from command-line
// flags and an optional JSON file. Flags passed explicitly override file
// values.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"getthis/limits"
	"getthis/sample"
	"getthis/scanner"
	"getthis/version"
)

// SpecConfig is the JSON shape of one sample spec. Absent ceilings mean no
// ceiling; an explicit zero is a real (admit nothing) value.
type SpecConfig struct {
	Name              string   `json:"name"`
	Terms             []string `json:"terms"`
	Content           string   `json:"content"`
	MaxSampleCount    *uint64  `json:"max_sample_count"`
	MaxBytesPerSample *uint64  `json:"max_bytes_per_sample"`
	MaxBytesTotal     *uint64  `json:"max_bytes_total"`
}

type Config struct {
	Locations      []string     `json:"locations"`
	Recurse        bool         `json:"recurse"`
	OutputPath     string       `json:"output"`
	OutputType     string       `json:"output_type"`
	ArchiveFormat  string       `json:"archive_format"`
	Compression    int          `json:"compression_level"`
	Password       string       `json:"password"`
	Specs          []SpecConfig `json:"specs"`
	HashAlgorithms []string     `json:"hash_algorithms"`
	FuzzyHash      bool         `json:"fuzzy_hash"`
	FuzzyAlgos     []string     `json:"fuzzy_algorithms"`
	FuzzyMaxSize   int64        `json:"fuzzy_max_size"`
	ReportAll      bool         `json:"report_all"`
	NoLimits       bool         `json:"no_limits"`
	ExcludeGlobs   []string     `json:"exclude_patterns"`

	MaxSampleCount    *uint64 `json:"max_sample_count"`
	MaxBytesPerSample *uint64 `json:"max_bytes_per_sample"`
	MaxBytesTotal     *uint64 `json:"max_bytes_total"`

	MinChars int `json:"strings_min_chars"`
	MaxChars int `json:"strings_max_chars"`

	LogLevel       string `json:"log_level"`
	MaxIOPerSecond int    `json:"max_io_per_second"`
	ConfigFile     string `json:"-"`
}

func defaults() *Config {
	return &Config{
		Locations:      []string{"."},
		Recurse:        true,
		OutputPath:     "getthis.tar.zst",
		OutputType:     "",
		ArchiveFormat:  "",
		Compression:    0,
		HashAlgorithms: []string{"md5", "sha1", "sha256"},
		FuzzyAlgos:     []string{},
		FuzzyMaxSize:   20 * 1024 * 1024,
		MinChars:       3,
		MaxChars:       1024,
		LogLevel:       "info",
		MaxIOPerSecond: 0,
	}
}

// Load parses args (without the program name) into a Config.
func Load(args []string) (*Config, error) {
	cfg := defaults()
	fs := flag.NewFlagSet("getthis", flag.ContinueOnError)
	fs.Usage = func() { displayHelp(fs) }

	locations := fs.String("path", strings.Join(cfg.Locations, ","), "Comma-separated list of locations to scan.")
	recurse := fs.Bool("recurse", cfg.Recurse, "Recurse into subdirectories.")
	output := fs.String("out", cfg.OutputPath, "Output archive path or directory.")
	outputType := fs.String("out-type", cfg.OutputType, "Output type: archive or directory (default: inferred from the path).")
	format := fs.String("format", cfg.ArchiveFormat, "Archive format: tar.zst or tar.gz (default: inferred).")
	compression := fs.Int("compression", cfg.Compression, "Compression level (0 uses the format default).")
	password := fs.String("password", "", "Password protecting the archive (default: none).")
	sampleTerms := fs.String("sample", "", "Comma-separated terms for a default sample spec (e.g. name:*.exe).")
	content := fs.String("content", "data", "Content for the default sample spec: data, strings[,min,max], or raw.")
	hashes := fs.String("hashes", strings.Join(cfg.HashAlgorithms, ","), "Comma-separated crypto hash algorithms.")
	fuzzyHash := fs.Bool("fuzzy-hash", cfg.FuzzyHash, "Enable fuzzy hashing.")
	fuzzyAlgos := fs.String("fuzzy-algorithms", "", "Comma-separated fuzzy hash algorithms (default: ssdeep,tlsh when enabled).")
	fuzzyMaxSize := fs.Int64("fuzzy-max-size", cfg.FuzzyMaxSize, "Maximum sample size in bytes for fuzzy hashing.")
	reportAll := fs.Bool("report-all", cfg.ReportAll, "Hash and index off-limits samples even though their bytes are not kept.")
	noLimits := fs.Bool("no-limits", cfg.NoLimits, "Ignore every collection ceiling.")
	excludes := fs.String("exclude", "", "Comma-separated file-name globs to skip while scanning.")
	maxSampleCount := fs.Uint64("max-sample-count", 0, "Global maximum number of samples (default: unlimited).")
	maxBytesPerSample := fs.Uint64("max-per-sample-bytes", 0, "Global per-sample byte ceiling (default: unlimited).")
	maxBytesTotal := fs.Uint64("max-total-bytes", 0, "Global total byte ceiling (default: unlimited).")
	minChars := fs.Int("strings-min-chars", cfg.MinChars, "Default minimum string length for strings extraction.")
	maxChars := fs.Int("strings-max-chars", cfg.MaxChars, "Default maximum string length for strings extraction.")
	logLevel := fs.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error, fatal, or panic.")
	maxIO := fs.Int("max-io-per-second", cfg.MaxIOPerSecond, "Maximum file opens per second (0 disables throttling).")
	configFile := fs.String("config", "", "Path to JSON configuration file.")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *showVersion {
		fmt.Printf("GetThis version %s\n", version.Version)
		os.Exit(0)
	}

	if *configFile != "" {
		cfg.ConfigFile = *configFile
		if err := cfg.loadFromFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "path":
			cfg.Locations = parseCommaSeparated(*locations)
		case "recurse":
			cfg.Recurse = *recurse
		case "out":
			cfg.OutputPath = *output
		case "out-type":
			cfg.OutputType = strings.ToLower(*outputType)
		case "format":
			cfg.ArchiveFormat = strings.ToLower(*format)
		case "compression":
			cfg.Compression = *compression
		case "password":
			cfg.Password = *password
		case "sample":
			cfg.Specs = append(cfg.Specs, SpecConfig{
				Terms:   parseCommaSeparated(*sampleTerms),
				Content: *content,
			})
		case "hashes":
			cfg.HashAlgorithms = parseCommaSeparated(*hashes)
		case "fuzzy-hash":
			cfg.FuzzyHash = *fuzzyHash
		case "fuzzy-algorithms":
			cfg.FuzzyAlgos = parseCommaSeparated(*fuzzyAlgos)
		case "fuzzy-max-size":
			cfg.FuzzyMaxSize = *fuzzyMaxSize
		case "report-all":
			cfg.ReportAll = *reportAll
		case "no-limits":
			cfg.NoLimits = *noLimits
		case "exclude":
			cfg.ExcludeGlobs = parseCommaSeparated(*excludes)
		case "max-sample-count":
			cfg.MaxSampleCount = maxSampleCount
		case "max-per-sample-bytes":
			cfg.MaxBytesPerSample = maxBytesPerSample
		case "max-total-bytes":
			cfg.MaxBytesTotal = maxBytesTotal
		case "strings-min-chars":
			cfg.MinChars = *minChars
		case "strings-max-chars":
			cfg.MaxChars = *maxChars
		case "log-level":
			cfg.LogLevel = *logLevel
		case "max-io-per-second":
			cfg.MaxIOPerSecond = *maxIO
		}
	})

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	cfg.OutputType = strings.ToLower(strings.TrimSpace(cfg.OutputType))
	cfg.ArchiveFormat = strings.ToLower(strings.TrimSpace(cfg.ArchiveFormat))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if cfg.OutputType == "" {
		if strings.Contains(cfg.OutputPath, ".tar.") ||
			strings.HasSuffix(cfg.OutputPath, ".tgz") ||
			strings.HasSuffix(cfg.OutputPath, ".tzst") {
			cfg.OutputType = "archive"
		} else {
			cfg.OutputType = "directory"
		}
	}
	if cfg.OutputType == "archive" && cfg.ArchiveFormat == "" {
		if strings.HasSuffix(cfg.OutputPath, ".tar.gz") || strings.HasSuffix(cfg.OutputPath, ".tgz") {
			cfg.ArchiveFormat = "tar.gz"
		} else {
			cfg.ArchiveFormat = "tar.zst"
		}
	}

	if cfg.FuzzyHash && len(cfg.FuzzyAlgos) == 0 {
		cfg.FuzzyAlgos = []string{"ssdeep", "tlsh"}
	}
	if len(cfg.FuzzyAlgos) > 0 {
		cfg.FuzzyHash = true
	}
	if len(cfg.Locations) == 0 {
		cfg.Locations = []string{"."}
	}
}

func (cfg *Config) validate() error {
	if cfg.OutputPath == "" {
		return fmt.Errorf("output path must not be empty")
	}
	if cfg.OutputType != "archive" && cfg.OutputType != "directory" {
		return fmt.Errorf("invalid output type: %s", cfg.OutputType)
	}
	if cfg.OutputType == "directory" && cfg.Password != "" {
		return fmt.Errorf("password protection requires an archive output")
	}
	if len(cfg.Specs) == 0 {
		return fmt.Errorf("at least one sample spec is required (--sample or a config file)")
	}
	for i, spec := range cfg.Specs {
		if len(spec.Terms) == 0 {
			return fmt.Errorf("sample spec %d has no terms", i)
		}
		if _, err := sample.ParseContentType(spec.Content); err != nil {
			return fmt.Errorf("sample spec %d: %w", i, err)
		}
	}
	for _, algo := range cfg.HashAlgorithms {
		switch algo {
		case "md5", "sha1", "sha256":
		default:
			return fmt.Errorf("unsupported hash algorithm: %s", algo)
		}
	}
	for _, algo := range cfg.FuzzyAlgos {
		switch algo {
		case "ssdeep", "tlsh":
		default:
			return fmt.Errorf("unsupported fuzzy hash algorithm: %s", algo)
		}
	}
	if cfg.MinChars < 0 || cfg.MaxChars < 0 {
		return fmt.Errorf("strings bounds must be zero or positive")
	}
	if cfg.FuzzyMaxSize < 0 {
		return fmt.Errorf("fuzzy-max-size must be zero or positive")
	}
	if cfg.MaxIOPerSecond < 0 {
		return fmt.Errorf("max-io-per-second must be zero or positive")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	return nil
}

func (cfg *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid config file format: %w", err)
	}
	return nil
}

// GlobalLimits builds the run-wide budget from the configured ceilings.
func (cfg *Config) GlobalLimits() limits.Limits {
	l := limits.NewUnlimited()
	l.IgnoreAll = cfg.NoLimits
	if cfg.MaxSampleCount != nil {
		l.MaxSampleCount = *cfg.MaxSampleCount
	}
	if cfg.MaxBytesPerSample != nil {
		l.MaxBytesPerSample = *cfg.MaxBytesPerSample
	}
	if cfg.MaxBytesTotal != nil {
		l.MaxBytesTotal = *cfg.MaxBytesTotal
	}
	return l
}

// BuildSpecs compiles the configured sample specs, parsing their terms.
func (cfg *Config) BuildSpecs() ([]*sample.Spec, []*scanner.Term, error) {
	var specs []*sample.Spec
	var terms []*scanner.Term
	for i, sc := range cfg.Specs {
		content, err := sample.ParseContentType(sc.Content)
		if err != nil {
			return nil, nil, fmt.Errorf("sample spec %d: %w", i, err)
		}
		perSample := limits.NewUnlimited()
		if sc.MaxSampleCount != nil {
			perSample.MaxSampleCount = *sc.MaxSampleCount
		}
		if sc.MaxBytesPerSample != nil {
			perSample.MaxBytesPerSample = *sc.MaxBytesPerSample
		}
		if sc.MaxBytesTotal != nil {
			perSample.MaxBytesTotal = *sc.MaxBytesTotal
		}
		spec := &sample.Spec{
			Name:            sc.Name,
			Content:         content,
			PerSampleLimits: perSample,
		}
		for _, raw := range sc.Terms {
			term, err := scanner.ParseTerm(raw)
			if err != nil {
				return nil, nil, fmt.Errorf("sample spec %d: %w", i, err)
			}
			spec.Terms = append(spec.Terms, term)
			terms = append(terms, term)
		}
		specs = append(specs, spec)
	}
	return specs, terms, nil
}

func displayHelp(fs *flag.FlagSet) {
	fmt.Println("GetThis - Forensic Sample Collection")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  getthis [options]")
	fmt.Println()
	fmt.Println("Options:")
	fs.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  getthis --path /evidence --sample \"name:*.exe\" --out samples.tar.zst")
	fmt.Println("  getthis --config getthis.json --out /tmp/collected --out-type directory")
}

func parseCommaSeparated(input string) []string {
	if input == "" {
		return []string{}
	}
	items := strings.Split(input, ",")
	out := items[:0]
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
