package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Limiter  LimiterConfig  `yaml:"limiter"`
	Data     DataConfig     `yaml:"data"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite, mysql
	DSN  string `yaml:"dsn"`
}

type LLMConfig struct {
	APIURL      string   `yaml:"api_url"`
	APIKeys     []string `yaml:"api_keys"`
	Model       string   `yaml:"model"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature float64  `yaml:"temperature"`
}

// LimiterConfig 多 Key 限流与重试的可调参数。
// 数值默认值保守，优先保证整批文件全部完成而不是吞吐量。
type LimiterConfig struct {
	MaxCostPerMinute   int           `yaml:"max_cost_per_minute"`  // 每个 Key 每分钟的 token 预算
	MinRequestInterval time.Duration `yaml:"min_request_interval"` // 同一 Key 两次请求之间的最小间隔
	MaxAttempts        int           `yaml:"max_attempts"`         // 单文件重试上限
	AcquireTimeout     time.Duration `yaml:"acquire_timeout"`      // 等待可用 Key 的上限
	Concurrency        int           `yaml:"concurrency"`          // 同时处理的文件数
	FailFast           bool          `yaml:"fail_fast"`            // 重试耗尽时是否中止整批
}

type DataConfig struct {
	Dir     string `yaml:"dir"`
	RepoDir string `yaml:"repo_dir"`
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		cfg = loadConfig()
	})
	return cfg
}

func loadConfig() *Config {
	config := &Config{
		Server: ServerConfig{
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "./data/app.db",
		},
		LLM: LLMConfig{
			APIURL:      "https://api.groq.com/openai/v1",
			Model:       "llama-3.1-8b-instant",
			MaxTokens:   500,
			Temperature: 0.1,
		},
		Limiter: LimiterConfig{
			MaxCostPerMinute:   2500,
			MinRequestInterval: 1250 * time.Millisecond,
			MaxAttempts:        15,
			AcquireTimeout:     600 * time.Second,
			Concurrency:        1,
			FailFast:           true,
		},
		Data: DataConfig{
			Dir:     "./data",
			RepoDir: "./data/repos",
		},
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		yaml.Unmarshal(data, config)
	}

	// 环境变量优先级高于配置文件
	if apiKeys := os.Getenv("LLM_API_KEYS"); apiKeys != "" {
		config.LLM.APIKeys = parseAPIKeys(apiKeys)
	}
	if baseURL := os.Getenv("LLM_BASE_URL"); baseURL != "" {
		config.LLM.APIURL = baseURL
	}
	if model := os.Getenv("LLM_MODEL_NAME"); model != "" {
		config.LLM.Model = model
	}

	// 数据库环境变量
	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if dbDSN := os.Getenv("DB_DSN"); dbDSN != "" {
		config.Database.DSN = dbDSN
	}

	// 数据目录环境变量
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		config.Data.Dir = dataDir
	}
	if repoDir := os.Getenv("REPO_DIR"); repoDir != "" {
		config.Data.RepoDir = repoDir
	}

	if config.Data.RepoDir == "" {
		config.Data.RepoDir = filepath.Join(config.Data.Dir, "repos")
	}

	return config
}

// parseAPIKeys 支持逗号或空格分隔的多个 Key
func parseAPIKeys(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n'
	})
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		if k := strings.TrimSpace(f); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
