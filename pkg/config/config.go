package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags "-X github.com/edgeflare/ragapi/pkg/config.Version=..."
var Version = "dev"

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. RAGAPI_RAG_TOPK overrides rag.topK.
const EnvPrefix = "RAGAPI"

// Config holds application-wide configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Provider ProviderConfig `mapstructure:"provider"`
	RAG      RAGConfig      `mapstructure:"rag"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`

	// File is the config file that was read, empty if none was found.
	File string `mapstructure:"-"`
}

type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listenAddr"`
	APIKey          string        `mapstructure:"apiKey"`
	CORSOrigins     []string      `mapstructure:"corsOrigins"`
	MaxQueryLength  int           `mapstructure:"maxQueryLength"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type StoreConfig struct {
	Driver     string   `mapstructure:"driver"`
	Path       string   `mapstructure:"path"`
	Collection string   `mapstructure:"collection"`
	Dimensions int      `mapstructure:"dimensions"`
	PG         PGConfig `mapstructure:"pg"`
	// ImageRuntime is set inside read-only container runtimes (e.g. AWS Lambda).
	// The bundled store is then copied under TmpDir before it is opened.
	ImageRuntime bool   `mapstructure:"imageRuntime"`
	TmpDir       string `mapstructure:"tmpDir"`
}

type PGConfig struct {
	ConnString string `mapstructure:"connString"`
	Table      string `mapstructure:"table"`
}

type ProviderConfig struct {
	Name               string        `mapstructure:"name"`
	Region             string        `mapstructure:"region"`
	EmbeddingModel     string        `mapstructure:"embeddingModel"`
	ChatModel          string        `mapstructure:"chatModel"`
	APIURL             string        `mapstructure:"apiURL"`
	APIKey             string        `mapstructure:"apiKey"`
	MaxTokens          int           `mapstructure:"maxTokens"`
	Temperature        float64       `mapstructure:"temperature"`
	EmbeddingCacheTTL  time.Duration `mapstructure:"embeddingCacheTTL"`
	// EmbeddingCacheSize caps the number of cached query embeddings.
	EmbeddingCacheSize int           `mapstructure:"embeddingCacheSize"`
	Breaker            BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	ConsecutiveFailures uint32        `mapstructure:"consecutiveFailures"`
	OpenTimeout         time.Duration `mapstructure:"openTimeout"`
}

type RAGConfig struct {
	TopK         int     `mapstructure:"topK"`
	MaxDistance  float64 `mapstructure:"maxDistance"`
	ChunkSize    int     `mapstructure:"chunkSize"`
	ChunkOverlap int     `mapstructure:"chunkOverlap"`
	BatchSize    int     `mapstructure:"batchSize"`
	SourcePath   string  `mapstructure:"sourcePath"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

const (
	DriverChromem  = "chromem"
	DriverPgvector = "pgvector"

	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"
	ProviderOllama  = "ollama"
)

// Default returns a Config with default values
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:      ":8000",
			CORSOrigins:     []string{"*"},
			MaxQueryLength:  1000,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver:     DriverChromem,
			Path:       filepath.Join("data", "chroma"),
			Collection: "rag",
			Dimensions: 1024, // amazon.titan-embed-text-v2:0
			PG:         PGConfig{Table: "embeddings"},
			TmpDir:     os.TempDir(),
		},
		Provider: ProviderConfig{
			Name:               ProviderBedrock,
			Region:             "us-east-1",
			EmbeddingModel:     "amazon.titan-embed-text-v2:0",
			ChatModel:          "anthropic.claude-3-haiku-20240307-v1:0",
			MaxTokens:          1000,
			Temperature:        0,
			EmbeddingCacheTTL:  10 * time.Minute,
			EmbeddingCacheSize: 10000,
			Breaker: BreakerConfig{
				Enabled:             true,
				ConsecutiveFailures: 5,
				OpenTimeout:         30 * time.Second,
			},
		},
		RAG: RAGConfig{
			TopK:         7,
			MaxDistance:  0.5,
			ChunkSize:    600,
			ChunkOverlap: 120,
			BatchSize:    64,
			SourcePath:   filepath.Join("data", "source"),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9100",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// legacyEnv maps config keys to unprefixed environment variables understood
// by earlier deployments of the service.
var legacyEnv = map[string]string{
	"server.apiKey":      "API_KEY",
	"server.corsOrigins": "CORS_ORIGINS",
	"store.imageRuntime": "IS_USING_IMAGE_RUNTIME",
}

// Load reads config from an optional .env file, the config file and the environment.
// Precedence (highest first): environment, config file, defaults.
func Load(cfgFile string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// a missing .env is fine, variables may be set externally
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error loading env file %s: %w", f, err)
		}
	}

	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("ragapi")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Default())
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("error binding env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key with viper, so that AutomaticEnv picks up
// environment overrides for keys absent from the config file.
func setDefaults(v *viper.Viper, def Config) {
	v.SetDefault("server.listenAddr", def.Server.ListenAddr)
	v.SetDefault("server.apiKey", def.Server.APIKey)
	v.SetDefault("server.corsOrigins", def.Server.CORSOrigins)
	v.SetDefault("server.maxQueryLength", def.Server.MaxQueryLength)
	v.SetDefault("server.shutdownTimeout", def.Server.ShutdownTimeout)

	v.SetDefault("store.driver", def.Store.Driver)
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("store.collection", def.Store.Collection)
	v.SetDefault("store.dimensions", def.Store.Dimensions)
	v.SetDefault("store.pg.connString", def.Store.PG.ConnString)
	v.SetDefault("store.pg.table", def.Store.PG.Table)
	v.SetDefault("store.imageRuntime", def.Store.ImageRuntime)
	v.SetDefault("store.tmpDir", def.Store.TmpDir)

	v.SetDefault("provider.name", def.Provider.Name)
	v.SetDefault("provider.region", def.Provider.Region)
	v.SetDefault("provider.embeddingModel", def.Provider.EmbeddingModel)
	v.SetDefault("provider.chatModel", def.Provider.ChatModel)
	v.SetDefault("provider.apiURL", def.Provider.APIURL)
	v.SetDefault("provider.apiKey", def.Provider.APIKey)
	v.SetDefault("provider.maxTokens", def.Provider.MaxTokens)
	v.SetDefault("provider.temperature", def.Provider.Temperature)
	v.SetDefault("provider.embeddingCacheTTL", def.Provider.EmbeddingCacheTTL)
	v.SetDefault("provider.embeddingCacheSize", def.Provider.EmbeddingCacheSize)
	v.SetDefault("provider.breaker.enabled", def.Provider.Breaker.Enabled)
	v.SetDefault("provider.breaker.consecutiveFailures", def.Provider.Breaker.ConsecutiveFailures)
	v.SetDefault("provider.breaker.openTimeout", def.Provider.Breaker.OpenTimeout)

	v.SetDefault("rag.topK", def.RAG.TopK)
	v.SetDefault("rag.maxDistance", def.RAG.MaxDistance)
	v.SetDefault("rag.chunkSize", def.RAG.ChunkSize)
	v.SetDefault("rag.chunkOverlap", def.RAG.ChunkOverlap)
	v.SetDefault("rag.batchSize", def.RAG.BatchSize)
	v.SetDefault("rag.sourcePath", def.RAG.SourcePath)

	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	v.SetDefault("metrics.addr", def.Metrics.Addr)

	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.development", def.Log.Development)
}

// Validate checks the config for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverChromem:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the chromem driver"))
		}
	case DriverPgvector:
		if c.Store.PG.ConnString == "" {
			errs = append(errs, errors.New("store.pg.connString is required for the pgvector driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	switch c.Provider.Name {
	case ProviderBedrock, ProviderOpenAI, ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("unknown provider.name %q", c.Provider.Name))
	}

	if c.RAG.TopK < 1 {
		errs = append(errs, fmt.Errorf("rag.topK must be at least 1, got %d", c.RAG.TopK))
	}
	if c.RAG.MaxDistance <= 0 {
		errs = append(errs, fmt.Errorf("rag.maxDistance must be positive, got %v", c.RAG.MaxDistance))
	}
	if c.RAG.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("rag.chunkSize must be at least 1, got %d", c.RAG.ChunkSize))
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunkOverlap must be in [0, chunkSize), got %d", c.RAG.ChunkOverlap))
	}
	if c.RAG.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("rag.batchSize must be at least 1, got %d", c.RAG.BatchSize))
	}
	if c.Server.MaxQueryLength < 1 {
		errs = append(errs, fmt.Errorf("server.maxQueryLength must be at least 1, got %d", c.Server.MaxQueryLength))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
