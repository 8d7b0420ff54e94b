// =============================================================================
// 📦 Readr 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		LLM:          DefaultLLMConfig(),
		Embedding:    DefaultEmbeddingConfig(),
		Splitter:     DefaultSplitterConfig(),
		Retrieval:    DefaultRetrievalConfig(),
		Sources:      DefaultSourcesConfig(),
		Cache:        DefaultCacheConfig(),
		Orchestrator: DefaultOrchestratorConfig(),
		Metrics:      DefaultMetricsConfig(),
		Log:          DefaultLogConfig(),
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    "openai",
		APIKey:      "",
		BaseURL:     "",
		Model:       "gpt-4o-mini",
		Timeout:     2 * time.Minute,
		MaxRetries:  3,
		Temperature: 0.7,
		MaxTokens:   2048,
	}
}

// DefaultEmbeddingConfig 返回默认嵌入配置
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		BaseURL:    "",
		APIKey:     "",
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		Timeout:    30 * time.Second,
	}
}

// DefaultSplitterConfig 返回默认切分配置
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		LengthUnit:   "runes",
		Encoding:     "cl100k_base",
	}
}

// DefaultRetrievalConfig 返回默认检索配置
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK: 3,
	}
}

// DefaultSourcesConfig 返回默认外部知识源配置
func DefaultSourcesConfig() SourcesConfig {
	return SourcesConfig{
		Wikipedia: WikipediaConfig{
			Enabled:   true,
			BaseURL:   "https://en.wikipedia.org/w/api.php",
			RateLimit: 5,
		},
		GoogleBooks: GoogleBooksConfig{
			Enabled:   true,
			BaseURL:   "https://www.googleapis.com/books/v1",
			APIKey:    "",
			RateLimit: 2,
		},
		Timeout: 15 * time.Second,
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Backend: "memory",
		TTL:     24 * time.Hour,
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
	}
}

// DefaultOrchestratorConfig 返回默认编排配置
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		StageTimeout:  60 * time.Second,
		StreamEnabled: true,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled: false,
		Addr:    ":9090",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}
