// =============================================================================
// 📦 Readr 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("READR").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/readr/types"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 Readr 的完整配置结构
type Config struct {
	// LLM 聊天模型配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Embedding 嵌入模型配置
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// Splitter 文档切分配置
	Splitter SplitterConfig `yaml:"splitter" env:"SPLITTER"`

	// Retrieval 文档检索配置
	Retrieval RetrievalConfig `yaml:"retrieval" env:"RETRIEVAL"`

	// Sources 外部知识源配置
	Sources SourcesConfig `yaml:"sources" env:"SOURCES"`

	// Cache 外部知识缓存配置
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Orchestrator 多智能体编排配置
	Orchestrator OrchestratorConfig `yaml:"orchestrator" env:"ORCHESTRATOR"`

	// Metrics 指标暴露配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`
}

// LLMConfig 聊天模型配置
type LLMConfig struct {
	// Provider 标识（openai 兼容端点统一用一个实现）
	Provider string `yaml:"provider" env:"PROVIDER"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选，默认 OpenAI 官方）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 默认模型
	Model string `yaml:"model" env:"MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 采样温度
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 单次回复最大 Token 数
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
}

// EmbeddingConfig 嵌入模型配置
type EmbeddingConfig struct {
	// 基础 URL（可选，默认与 LLM 相同端点族）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API Key（为空时复用 LLM 的 Key）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 嵌入模型
	Model string `yaml:"model" env:"MODEL"`
	// 输出维度
	Dimensions int `yaml:"dimensions" env:"DIMENSIONS"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// SplitterConfig 文档切分配置
type SplitterConfig struct {
	// 单块目标大小
	ChunkSize int `yaml:"chunk_size" env:"CHUNK_SIZE"`
	// 相邻块重叠量
	ChunkOverlap int `yaml:"chunk_overlap" env:"CHUNK_OVERLAP"`
	// 长度度量: runes 或 tokens（tokens 时用 tiktoken 编码计数）
	LengthUnit string `yaml:"length_unit" env:"LENGTH_UNIT"`
	// tokens 模式下的编码名
	Encoding string `yaml:"encoding" env:"ENCODING"`
}

// RetrievalConfig 文档检索配置
type RetrievalConfig struct {
	// 相似检索返回的块数
	TopK int `yaml:"top_k" env:"TOP_K"`
}

// SourcesConfig 外部知识源配置
type SourcesConfig struct {
	// Wikipedia 后端
	Wikipedia WikipediaConfig `yaml:"wikipedia" env:"WIKIPEDIA"`
	// Google Books 后端
	GoogleBooks GoogleBooksConfig `yaml:"google_books" env:"GOOGLE_BOOKS"`
	// 单次后端查询超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// WikipediaConfig Wikipedia 后端配置
type WikipediaConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// API 端点
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 每秒请求数上限
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
}

// GoogleBooksConfig Google Books 后端配置
type GoogleBooksConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// API 端点
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API Key（可选）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 每秒请求数上限
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
}

// CacheConfig 外部知识缓存配置
type CacheConfig struct {
	// 后端类型: memory 或 redis
	Backend string `yaml:"backend" env:"BACKEND"`
	// 条目 TTL（memory 后端忽略，redis 后端生效；0 表示不过期）
	TTL time.Duration `yaml:"ttl" env:"TTL"`
	// Redis 配置（backend=redis 时使用）
	Redis RedisConfig `yaml:"redis" env:"REDIS"`
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
}

// OrchestratorConfig 多智能体编排配置
type OrchestratorConfig struct {
	// 单阶段超时（专家阶段超时降级，综合阶段超时报错）
	StageTimeout time.Duration `yaml:"stage_timeout" env:"STAGE_TIMEOUT"`
	// 是否启用流式综合输出
	StreamEnabled bool `yaml:"stream_enabled" env:"STREAM_ENABLED"`
}

// MetricsConfig 指标暴露配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 监听地址（如 ":9090"）
	Addr string `yaml:"addr" env:"ADDR"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "READR",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 验证配置
// 缺少 LLM API Key 属于致命错误：没有模型凭证任何分析流程都无法运行，
// 以 MISSING_CREDENTIALS 错误码上报，入口据此直接退出。
func (c *Config) Validate() error {
	var errs []string

	missingKey := strings.TrimSpace(c.LLM.APIKey) == ""
	if missingKey {
		errs = append(errs, "llm.api_key is required (set READR_LLM_API_KEY)")
	}
	if c.Splitter.ChunkSize <= 0 {
		errs = append(errs, "splitter.chunk_size must be positive")
	}
	if c.Splitter.ChunkOverlap < 0 || c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize {
		errs = append(errs, "splitter.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, "retrieval.top_k must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, "cache.backend must be memory or redis")
	}

	if len(errs) > 0 {
		msg := "config validation errors: " + strings.Join(errs, "; ")
		if missingKey {
			return types.NewError(types.ErrMissingCredentials, msg)
		}
		return fmt.Errorf("%s", msg)
	}

	return nil
}
