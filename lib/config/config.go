// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/duetprep/duetprep/lib/columnar"
	"github.com/duetprep/duetprep/lib/dataset"
	"github.com/duetprep/duetprep/lib/parallel"
	"github.com/duetprep/duetprep/lib/tokenize"
	"github.com/duetprep/duetprep/lib/vocab"
)

// EnvironmentVariable names the configuration file when no --config
// flag is given.
const EnvironmentVariable = "DUETPREP_CONFIG"

// Config is the configuration of an export run.
type Config struct {
	// Root is the base directory that ${DUETPREP_ROOT} expands to in
	// the other path fields.
	Root string `yaml:"root"`

	// Dataset is the path of the dataset manifest.
	Dataset string `yaml:"dataset"`

	Tokenizer  TokenizerConfig  `yaml:"tokenizer"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	Encoding   EncodingConfig   `yaml:"encoding"`
	Parallel   ParallelConfig   `yaml:"parallel"`
	Export     ExportConfig     `yaml:"export"`
	Outputs    OutputsConfig    `yaml:"outputs"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// TokenizerConfig selects the tokenizer.
type TokenizerConfig struct {
	// Kind is "word" or "whitespace".
	Kind            string   `yaml:"kind"`
	Lowercase       bool     `yaml:"lowercase"`
	KeepPunctuation bool     `yaml:"keep_punctuation"`
	MinLength       int      `yaml:"min_length"`
	StopWords       []string `yaml:"stop_words"`
}

// VocabularyConfig configures vocabulary building.
type VocabularyConfig struct {
	// SpecialTokens take the lowest ids in order. Omitted means
	// <UNK>, <PAD>, <EOS>, <START>; an explicit empty list means none.
	SpecialTokens []string `yaml:"special_tokens"`

	// MaxSize caps the vocabulary, special tokens included. Zero keeps
	// every token.
	MaxSize int `yaml:"max_size"`

	// UnknownToken is what out-of-vocabulary tokens encode to.
	UnknownToken string `yaml:"unknown_token"`
}

// EncodingConfig bounds encoded sequence lengths. Zero disables a
// bound.
type EncodingConfig struct {
	MaxQueryLength    int `yaml:"max_query_length"`
	MaxDocumentLength int `yaml:"max_document_length"`
}

// ParallelConfig sizes the worker pools.
type ParallelConfig struct {
	// Workers is the pool size. Zero means one per CPU.
	Workers int `yaml:"workers"`

	// ChunkSize is the number of texts handed to a worker at once.
	ChunkSize int `yaml:"chunk_size"`
}

// ExportConfig selects the container layout.
type ExportConfig struct {
	Format      string `yaml:"format"`
	Compression string `yaml:"compression"`
}

// OutputsConfig names the artifacts to write. Empty split paths skip
// that split.
type OutputsConfig struct {
	Vocabulary string `yaml:"vocabulary"`
	IDF        string `yaml:"idf"`
	Train      string `yaml:"train"`
	Dev        string `yaml:"dev"`
	Test       string `yaml:"test"`
}

// LoggingConfig configures the command logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is "auto" (text on a terminal, JSON otherwise), "text" or
	// "json".
	Format string `yaml:"format"`
}

// Default returns the configuration every file is overlaid on.
func Default() *Config {
	return &Config{
		Root: ".",
		Tokenizer: TokenizerConfig{
			Kind:      string(tokenize.KindWord),
			Lowercase: true,
		},
		Export: ExportConfig{
			Format:      "duet",
			Compression: "auto",
		},
		Parallel: ParallelConfig{
			ChunkSize: parallel.DefaultChunkSize,
		},
		Outputs: OutputsConfig{
			Vocabulary: "${DUETPREP_ROOT}/vocab.cbor",
			IDF:        "${DUETPREP_ROOT}/idf.cbor",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads the file named by DUETPREP_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your duetprep.yaml, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads the configuration file at path over the defaults and
// expands path variables. It does not validate; callers apply flag
// overrides first and then call Validate.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data, isJSON(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes configuration data over the defaults. JSON input may
// carry comments and trailing commas.
func Parse(data []byte, json bool) (*Config, error) {
	cfg := Default()
	if json {
		// JSON is a subset of YAML, so one set of struct tags serves
		// both.
		data = jsonc.ToJSON(data)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	// An empty file decodes to io.EOF and keeps the defaults.
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	cfg.ExpandVariables()
	return cfg, nil
}

func isJSON(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return true
	}
	return false
}

// ExpandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields. ${DUETPREP_ROOT} is Root after its own expansion.
func (c *Config) ExpandVariables() {
	vars := map[string]string{
		"DUETPREP_ROOT": c.Root,
		"HOME":          os.Getenv("HOME"),
	}

	c.Root = expandVars(c.Root, vars)
	vars["DUETPREP_ROOT"] = c.Root

	for _, field := range []*string{
		&c.Dataset,
		&c.Outputs.Vocabulary,
		&c.Outputs.IDF,
		&c.Outputs.Train,
		&c.Outputs.Dev,
		&c.Outputs.Test,
	} {
		*field = expandVars(*field, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars replaces each pattern with the provided value, then the
// environment value, then the default.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Dataset == "" {
		errs = append(errs, errors.New("dataset is required"))
	}
	if _, err := tokenize.New(c.TokenizerOptions()); err != nil {
		errs = append(errs, fmt.Errorf("tokenizer: %w", err))
	}
	if c.Tokenizer.MinLength < 0 {
		errs = append(errs, fmt.Errorf("tokenizer.min_length must not be negative, got %d", c.Tokenizer.MinLength))
	}
	if c.Vocabulary.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("vocabulary.max_size must not be negative, got %d", c.Vocabulary.MaxSize))
	}
	if specials := len(c.VocabularyOptions().SpecialTokens); c.Vocabulary.MaxSize > 0 && specials > c.Vocabulary.MaxSize {
		errs = append(errs, fmt.Errorf("vocabulary.max_size %d cannot hold the special tokens", c.Vocabulary.MaxSize))
	}
	if err := c.VocabularyOptions().RequireUnknownToken(); err != nil {
		errs = append(errs, fmt.Errorf("vocabulary.special_tokens: %w", err))
	}
	if c.Encoding.MaxQueryLength < 0 {
		errs = append(errs, fmt.Errorf("encoding.max_query_length must not be negative, got %d", c.Encoding.MaxQueryLength))
	}
	if c.Encoding.MaxDocumentLength < 0 {
		errs = append(errs, fmt.Errorf("encoding.max_document_length must not be negative, got %d", c.Encoding.MaxDocumentLength))
	}
	if c.Parallel.Workers < 0 {
		errs = append(errs, fmt.Errorf("parallel.workers must not be negative, got %d", c.Parallel.Workers))
	}
	if c.Export.Format == "" {
		errs = append(errs, errors.New("export.format is required"))
	}
	if _, err := columnar.ParseCompression(c.Export.Compression); err != nil {
		errs = append(errs, fmt.Errorf("export.compression: %w", err))
	}
	if len(c.SplitOutputs()) == 0 {
		errs = append(errs, errors.New("at least one of outputs.train, outputs.dev and outputs.test is required"))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be auto, text or json, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// TokenizerOptions converts the tokenizer section.
func (c *Config) TokenizerOptions() tokenize.Options {
	return tokenize.Options{
		Kind:            tokenize.Kind(c.Tokenizer.Kind),
		Lowercase:       c.Tokenizer.Lowercase,
		KeepPunctuation: c.Tokenizer.KeepPunctuation,
		MinLength:       c.Tokenizer.MinLength,
		StopWords:       c.Tokenizer.StopWords,
	}
}

// BuildTokenizer builds the configured tokenizer.
func (c *Config) BuildTokenizer() (tokenize.Tokenizer, error) {
	return tokenize.New(c.TokenizerOptions())
}

// VocabularyOptions converts the vocabulary section. The pool options
// are filled in by the caller.
func (c *Config) VocabularyOptions() vocab.Options {
	specials := c.Vocabulary.SpecialTokens
	if specials == nil {
		specials = vocab.DefaultSpecialTokens
	}
	return vocab.Options{
		SpecialTokens: specials,
		MaxSize:       c.Vocabulary.MaxSize,
		UnknownToken:  c.Vocabulary.UnknownToken,
	}
}

// ParallelOptions converts the parallel section.
func (c *Config) ParallelOptions() parallel.Options {
	return parallel.Options{
		Workers:   c.Parallel.Workers,
		ChunkSize: c.Parallel.ChunkSize,
	}
}

// Compression parses the configured compression.
func (c *Config) Compression() (columnar.CompressionTag, error) {
	return columnar.ParseCompression(c.Export.Compression)
}

// SplitOutputs returns the configured container path of every split
// that has one.
func (c *Config) SplitOutputs() map[dataset.Split]string {
	outputs := make(map[dataset.Split]string)
	for split, path := range map[dataset.Split]string{
		dataset.Train: c.Outputs.Train,
		dataset.Dev:   c.Outputs.Dev,
		dataset.Test:  c.Outputs.Test,
	} {
		if path != "" {
			outputs[split] = path
		}
	}
	return outputs
}

// ParseLevel parses a log level name.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("unknown level %q (want debug, info, warn or error)", name)
	}
	return level, nil
}
