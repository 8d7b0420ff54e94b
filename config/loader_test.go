package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/readr/types"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Splitter.ChunkSize != 1000 {
		t.Errorf("ChunkSize = %d, want 1000", cfg.Splitter.ChunkSize)
	}
	if cfg.Splitter.ChunkOverlap != 200 {
		t.Errorf("ChunkOverlap = %d, want 200", cfg.Splitter.ChunkOverlap)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("TopK = %d, want 3", cfg.Retrieval.TopK)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("Cache.Backend = %q, want memory", cfg.Cache.Backend)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
llm:
  api_key: sk-from-file
  model: deepseek-chat
splitter:
  chunk_size: 500
  chunk_overlap: 50
cache:
  backend: redis
  redis:
    addr: redis.internal:6379
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LLM.APIKey != "sk-from-file" {
		t.Errorf("APIKey = %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "deepseek-chat" {
		t.Errorf("Model = %q", cfg.LLM.Model)
	}
	if cfg.Splitter.ChunkSize != 500 {
		t.Errorf("ChunkSize = %d", cfg.Splitter.ChunkSize)
	}
	if cfg.Cache.Redis.Addr != "redis.internal:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Cache.Redis.Addr)
	}
	// untouched fields keep defaults
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("TopK = %d, want default 3", cfg.Retrieval.TopK)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("READR_LLM_API_KEY", "sk-from-env")
	t.Setenv("READR_SPLITTER_CHUNK_SIZE", "800")
	t.Setenv("READR_SOURCES_TIMEOUT", "5s")
	t.Setenv("READR_ORCHESTRATOR_STREAM_ENABLED", "false")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LLM.APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q", cfg.LLM.APIKey)
	}
	if cfg.Splitter.ChunkSize != 800 {
		t.Errorf("ChunkSize = %d", cfg.Splitter.ChunkSize)
	}
	if cfg.Sources.Timeout != 5*time.Second {
		t.Errorf("Sources.Timeout = %v", cfg.Sources.Timeout)
	}
	if cfg.Orchestrator.StreamEnabled {
		t.Error("StreamEnabled should be false")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	if err == nil {
		t.Error("expected error for missing API key")
	}
	// 缺少凭证必须携带结构化错误码，入口据此决定退出
	if types.GetErrorCode(err) != types.ErrMissingCredentials {
		t.Errorf("missing API key error code = %q, want MISSING_CREDENTIALS", types.GetErrorCode(err))
	}

	cfg.LLM.APIKey = "sk-x"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.Splitter.ChunkOverlap = cfg.Splitter.ChunkSize
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for overlap >= chunk size")
	}

	cfg = DefaultConfig()
	cfg.LLM.APIKey = "sk-x"
	cfg.Cache.Backend = "memcached"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown cache backend")
	}
}
