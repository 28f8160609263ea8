package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for DeepQuery
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LLMConfig holds the language-model collaborator configuration
type LLMConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// SearchConfig holds the knowledge-gateway collaborator configuration
type SearchConfig struct {
	Endpoint          string `mapstructure:"endpoint"`
	APIKey            string `mapstructure:"api_key"`
	KnowledgeBaseID   string `mapstructure:"knowledge_base_id"`
	KnowledgeBaseName string `mapstructure:"knowledge_base_name"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
}

// RetrievalConfig bounds the retrieval loop
type RetrievalConfig struct {
	MaxRounds   int `mapstructure:"max_rounds"`
	ResultBound int `mapstructure:"result_bound"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("DEEPQUERY")
	// Nested keys map to underscored variables, e.g. server.port is
	// DEEPQUERY_SERVER_PORT.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.path", "./data/deepquery.db")

	v.SetDefault("llm.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "deepseek-chat")

	v.SetDefault("search.endpoint", "https://open.bigmodel.cn/api/llm-application/open/knowledge/retrieve")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.knowledge_base_id", "")
	v.SetDefault("search.knowledge_base_name", "default")
	v.SetDefault("search.timeout_seconds", 30)

	v.SetDefault("retrieval.max_rounds", 3)
	v.SetDefault("retrieval.result_bound", 5)

	v.SetDefault("cors.allow_origins", []string{"*"})
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
