package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/auditmos/dianoia/claims"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

const (
	defaultAddr         = "127.0.0.1:4040"
	defaultGenerateRate = 20
	defaultMaxStreams   = 4

	defaultExportRetention = 30 * 24 * time.Hour
)

type serveConfig struct {
	Addr      string
	DB        string
	LogFile   string
	JSON      bool
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	Templates string

	GenerateRate    int
	MaxStreams      int
	ExportRetention time.Duration
}

var serveKeys = []string{"addr", "db", "log-file", "json", "provider", "model", "base-url", "api-key", "templates", "generate-rate", "max-streams", "export-retention"}

// loadServeConfig layers defaults, the optional config file, DIANOIA_*
// environment variables and explicitly set flags, in that order.
func loadServeConfig(c *cli.Context) (*serveConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("DIANOIA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", defaultAddr)
	v.SetDefault("provider", claims.ProviderOpenAI)
	v.SetDefault("json", false)
	v.SetDefault("generate-rate", defaultGenerateRate)
	v.SetDefault("max-streams", defaultMaxStreams)
	v.SetDefault("export-retention", defaultExportRetention)

	if path := c.String("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for _, key := range serveKeys {
		if !c.IsSet(key) {
			continue
		}
		switch key {
		case "json":
			v.Set(key, c.Bool(key))
		case "generate-rate", "max-streams":
			v.Set(key, c.Int(key))
		case "export-retention":
			v.Set(key, c.Duration(key))
		default:
			v.Set(key, c.String(key))
		}
	}

	cfg := &serveConfig{
		Addr:      v.GetString("addr"),
		DB:        v.GetString("db"),
		LogFile:   v.GetString("log-file"),
		JSON:      v.GetBool("json"),
		Provider:  strings.ToLower(v.GetString("provider")),
		Model:     v.GetString("model"),
		BaseURL:   v.GetString("base-url"),
		APIKey:    v.GetString("api-key"),
		Templates: v.GetString("templates"),

		GenerateRate:    v.GetInt("generate-rate"),
		MaxStreams:      v.GetInt("max-streams"),
		ExportRetention: v.GetDuration("export-retention"),
	}

	if cfg.GenerateRate < 0 || cfg.MaxStreams < 0 {
		return nil, fmt.Errorf("rate limits cannot be negative")
	}
	if cfg.ExportRetention < 0 {
		return nil, fmt.Errorf("export retention cannot be negative")
	}

	switch cfg.Provider {
	case claims.ProviderOpenAI, claims.ProviderOpenRouter:
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	if cfg.APIKey == "" {
		if cfg.Provider == claims.ProviderOpenRouter {
			cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
		} else {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if cfg.DB == "" {
		path, err := getDBPath()
		if err != nil {
			return nil, fmt.Errorf("get db path: %w", err)
		}
		cfg.DB = path
	}

	return cfg, nil
}

func (c *serveConfig) openAIConfig() claims.OpenAIConfig {
	return claims.OpenAIConfig{
		Provider: c.Provider,
		APIKey:   c.APIKey,
		Model:    c.Model,
		BaseURL:  c.BaseURL,
	}
}
