package model

import "time"

// Config is the complete certverify configuration.
// Field tags serve both the YAML config file and viper's unmarshalling.
type Config struct {
	OCR          OCRConfig         `yaml:"ocr" mapstructure:"ocr"`
	Extraction   LLMConfig         `yaml:"extraction" mapstructure:"extraction"`
	Visual       VisualConfig      `yaml:"visual" mapstructure:"visual"`
	Compare      CompareConfig     `yaml:"compare" mapstructure:"compare"`
	Verdict      VerdictConfig     `yaml:"verdict" mapstructure:"verdict"`
	Pipeline     PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Server       ServerConfig      `yaml:"server" mapstructure:"server"`
	Storage      StorageConfig     `yaml:"storage" mapstructure:"storage"`
	Output       OutputConfig      `yaml:"output" mapstructure:"output"`
}

// OCRConfig configures the document OCR service
type OCRConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	TextLayer bool   `yaml:"text_layer" mapstructure:"text_layer"` // Read embedded text of normal PDFs locally first
}

// LLMConfig configures the field extraction provider
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, gemini, relay
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	ProjectID   string  `yaml:"project_id,omitempty" mapstructure:"project_id"` // Vertex AI only
	Region      string  `yaml:"region,omitempty" mapstructure:"region"`         // Vertex AI only
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"`                 // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
}

// VisualConfig configures the visual similarity service
type VisualConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CompareConfig configures the field comparator
type CompareConfig struct {
	Keys KeyMode `yaml:"keys" mapstructure:"keys"`
}

// VerdictConfig configures the verdict aggregator
type VerdictConfig struct {
	Policy             VerdictPolicy `yaml:"policy" mapstructure:"policy"`
	EmbeddingThreshold float64       `yaml:"embedding_threshold" mapstructure:"embedding_threshold"`
	KeypointThreshold  float64       `yaml:"keypoint_threshold" mapstructure:"keypoint_threshold"`
}

// PipelineConfig configures the orchestrator
type PipelineConfig struct {
	Parallel     bool          `yaml:"parallel" mapstructure:"parallel"`
	StageTimeout time.Duration `yaml:"stage_timeout" mapstructure:"stage_timeout"`
}

// HTTPConfig configures outbound HTTP clients
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig configures the OCR result cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitConfig configures per-host request throttling
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig configures batch processing
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr           string `yaml:"addr" mapstructure:"addr"`
	APIKey         string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// StorageConfig configures the certificate store used by ingest
type StorageConfig struct {
	Backend    string `yaml:"backend" mapstructure:"backend"` // memory, gcs
	Bucket     string `yaml:"bucket,omitempty" mapstructure:"bucket"`
	Collection string `yaml:"collection" mapstructure:"collection"`
	ProjectID  string `yaml:"project_id,omitempty" mapstructure:"project_id"`
	Prefix     string `yaml:"prefix" mapstructure:"prefix"`
}

// OutputConfig configures report rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		OCR: OCRConfig{
			BaseURL: "http://localhost:5001",
		},
		Extraction: LLMConfig{
			Provider:    "", // Must be chosen explicitly
			Timeout:     30,
			MaxTokens:   1000,
			Temperature: 0,
			Region:      "us-central1",
		},
		Visual: VisualConfig{
			BaseURL: "http://localhost:5000",
		},
		Compare: CompareConfig{
			Keys: KeysFirst,
		},
		Verdict: VerdictConfig{
			Policy:             PolicyService,
			EmbeddingThreshold: 0.95,
			KeypointThreshold:  0.80,
		},
		Pipeline: PipelineConfig{
			Parallel:     true,
			StageTimeout: 60 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:      2 * time.Minute,
			UserAgent:    "certverify/0.1",
			MaxBodyBytes: 8 << 20,
		},
		Cache: CacheConfig{
			Enabled:   false,
			Dir:       ".certverify-cache",
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 5,
			BurstSize:         5,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Server: ServerConfig{
			Addr:           ":8090",
			MaxUploadBytes: 50 << 20,
		},
		Storage: StorageConfig{
			Backend:    "memory",
			Collection: "certificates",
			Prefix:     "pdfs",
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
	}
}
