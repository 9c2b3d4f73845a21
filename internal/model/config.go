package model

import "time"

// Config is the complete medscribe configuration
type Config struct {
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Transcription TranscriptionConfig `yaml:"transcription" mapstructure:"transcription"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Concurrency   ConcurrencyConfig   `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting  RateLimitConfig     `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	HTTP          HTTPConfig          `yaml:"http" mapstructure:"http"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Output        OutputConfig        `yaml:"output" mapstructure:"output"`
}

// LLMConfig configures the extraction service
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// TranscriptionConfig configures the speech-to-text service
type TranscriptionConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // openai
	Model    string `yaml:"model" mapstructure:"model"`
	APIKey   string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL  string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Language string `yaml:"language,omitempty" mapstructure:"language"`
	Timeout  int    `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// StorageConfig configures where envelopes and the index live
type StorageConfig struct {
	DataDir   string `yaml:"data_dir" mapstructure:"data_dir"`
	IndexPath string `yaml:"index_path" mapstructure:"index_path"` // empty disables the sqlite index
}

// CacheConfig configures the extraction response cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig configures batch workers
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitConfig throttles calls to the extraction provider
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// HTTPConfig holds proxy settings for outbound API calls
type HTTPConfig struct {
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// OutputConfig controls console output
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			Timeout:   60,
			MaxTokens: 1500,
		},
		Transcription: TranscriptionConfig{
			Provider: "openai",
			Model:    "whisper-1",
			Timeout:  300,
		},
		Storage: StorageConfig{
			DataDir:   "./medscribe-data",
			IndexPath: "./medscribe-data/index.db",
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "./.medscribe-cache",
			MemoryTTL: 1 * time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}
