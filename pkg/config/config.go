// Package config loads docqa settings from a YAML file, optional .env files
// and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/perbu/docqa/pkg/composer"
	"github.com/perbu/docqa/pkg/docqa"
	"github.com/perbu/docqa/pkg/loader"
	"github.com/perbu/docqa/pkg/retriever"
	"gopkg.in/yaml.v3"
)

const (
	BackendHash   = "hash"
	BackendOpenAI = "openai"

	DefaultConfigFile = "docqa.yaml"
	DefaultDocument   = "data.txt"
	DefaultIndexPath  = "embeddings/index.gob"
)

type EmbedderConfig struct {
	Backend        string `yaml:"backend"`
	Model          string `yaml:"model,omitempty"`
	Dimension      int    `yaml:"dimension,omitempty"` // 0 picks the model default
	MaxInputLength int    `yaml:"max_input_length,omitempty"`
	APIKey         string `yaml:"api_key,omitempty"`
	BaseURL        string `yaml:"base_url,omitempty"`
}

type ComposerConfig struct {
	Threshold  float32 `yaml:"threshold"`
	Template   string  `yaml:"template"`
	MaxChars   int     `yaml:"max_chars"`
	Fallback   string  `yaml:"fallback"`
	EmptyQuery string  `yaml:"empty_query"`
}

type Config struct {
	Document  string         `yaml:"document"`
	IndexPath string         `yaml:"index_path"`
	ChunkSize int            `yaml:"chunk_size"`
	Overlap   int            `yaml:"overlap"`
	TopK      int            `yaml:"top_k"`
	Embedder  EmbedderConfig `yaml:"embedder"`
	Composer  ComposerConfig `yaml:"composer"`
}

func Default() *Config {
	return &Config{
		Document:  DefaultDocument,
		IndexPath: DefaultIndexPath,
		ChunkSize: loader.DefaultChunkSize,
		Overlap:   loader.DefaultOverlap,
		TopK:      retriever.DefaultK,
		Embedder: EmbedderConfig{
			Backend: BackendHash,
		},
		Composer: ComposerConfig{
			Threshold:  composer.DefaultThreshold,
			Template:   string(composer.TemplateSingle),
			MaxChars:   composer.DefaultMaxChars,
			Fallback:   composer.DefaultFallback,
			EmptyQuery: composer.DefaultEmptyQuery,
		},
	}
}

// Load reads the YAML file at path on top of the defaults. A missing file
// is not an error. Variables from envFiles and then the process environment
// override file values. The result is validated.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	env, err := readEnvFiles(envFiles)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(func(key string) (string, bool) {
		if v := os.Getenv(key); v != "" {
			return v, true
		}
		v, ok := env[key]
		return v, ok
	}); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return map[string]string{}, nil
	}
	env, err := godotenv.Read(existing...)
	if err != nil {
		return nil, fmt.Errorf("read env files: %w", err)
	}
	return env, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", docqa.ErrInvalidConfig, key, v)
		}
		*dst = n
		return nil
	}

	str("DOCQA_DOCUMENT", &c.Document)
	str("DOCQA_INDEX_PATH", &c.IndexPath)
	str("DOCQA_EMBEDDER", &c.Embedder.Backend)
	str("DOCQA_MODEL", &c.Embedder.Model)
	str("DOCQA_TEMPLATE", &c.Composer.Template)
	str("OPENAI_BASE_URL", &c.Embedder.BaseURL)
	if c.Embedder.APIKey == "" {
		str("OPENAI_API_KEY", &c.Embedder.APIKey)
	}

	if err := num("DOCQA_CHUNK_SIZE", &c.ChunkSize); err != nil {
		return err
	}
	if err := num("DOCQA_OVERLAP", &c.Overlap); err != nil {
		return err
	}
	if err := num("DOCQA_TOP_K", &c.TopK); err != nil {
		return err
	}

	if v, ok := lookup("DOCQA_THRESHOLD"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("%w: DOCQA_THRESHOLD=%q is not a number", docqa.ErrInvalidConfig, v)
		}
		c.Composer.Threshold = float32(f)
	}
	return nil
}

// ChunkParams returns the chunking parameters.
func (c *Config) ChunkParams() loader.Params {
	return loader.Params{Size: c.ChunkSize, Overlap: c.Overlap}
}

// ComposerConfig converts the composer section.
func (c *Config) ComposerConfig() composer.Config {
	return composer.Config{
		Threshold:  c.Composer.Threshold,
		Template:   composer.Template(c.Composer.Template),
		MaxChars:   c.Composer.MaxChars,
		Fallback:   c.Composer.Fallback,
		EmptyQuery: c.Composer.EmptyQuery,
	}
}

func (c *Config) Validate() error {
	if c.Document == "" {
		return fmt.Errorf("%w: document path is required", docqa.ErrInvalidConfig)
	}
	if err := c.ChunkParams().Validate(); err != nil {
		return err
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", docqa.ErrInvalidConfig, c.TopK)
	}
	switch c.Embedder.Backend {
	case BackendHash, BackendOpenAI:
	default:
		return fmt.Errorf("%w: unknown embedder backend %q", docqa.ErrInvalidConfig, c.Embedder.Backend)
	}
	if c.Embedder.Dimension < 0 {
		return fmt.Errorf("%w: dimension must not be negative", docqa.ErrInvalidConfig)
	}
	switch composer.Template(c.Composer.Template) {
	case composer.TemplateSingle, composer.TemplateMulti:
	default:
		return fmt.Errorf("%w: unknown template %q", docqa.ErrInvalidConfig, c.Composer.Template)
	}
	if c.Composer.Threshold < -1 || c.Composer.Threshold > 1 {
		return fmt.Errorf("%w: threshold %.2f outside [-1, 1]", docqa.ErrInvalidConfig, c.Composer.Threshold)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
