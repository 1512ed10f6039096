package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写临时配置失败: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, `
app:
  name: TradeScout
  env: dev

llm:
  api_url: "https://api.example.com/v1/chat/completions"
  api_key: "test-key"
  model: "gpt-4o-mini"
  timeout: "45s"

database:
  postgres:
    host: localhost
    port: 5432
    user: tradescout
    password: secret
    dbname: tradescout
    sslmode: disable

pipeline:
  workers: 8
  retry_backoff: "500ms"

dedup:
  window: "1h"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig出错: %v", err)
	}

	if cfg.App.Name != "TradeScout" {
		t.Errorf("App.Name = %s", cfg.App.Name)
	}
	if cfg.LLM.Timeout.Std() != 45*time.Second {
		t.Errorf("LLM.Timeout = %v, 期望 45s", cfg.LLM.Timeout.Std())
	}
	if cfg.Pipeline.Workers != 8 {
		t.Errorf("Pipeline.Workers = %d, 期望 8", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.RetryBackoff.Std() != 500*time.Millisecond {
		t.Errorf("RetryBackoff = %v, 期望 500ms", cfg.Pipeline.RetryBackoff.Std())
	}
	if cfg.Dedup.Window.Std() != time.Hour {
		t.Errorf("Dedup.Window = %v, 期望 1h", cfg.Dedup.Window.Std())
	}

	// 未设置的项要被默认值补齐
	if cfg.Pipeline.BatchSize != 200 {
		t.Errorf("BatchSize默认值 = %d, 期望 200", cfg.Pipeline.BatchSize)
	}
	if cfg.Validator.MinConfidence != 0.5 {
		t.Errorf("MinConfidence默认值 = %v, 期望 0.5", cfg.Validator.MinConfidence)
	}
	if cfg.Validator.SymbolPattern == "" {
		t.Error("SymbolPattern默认值不能为空")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeTempConfig(t, `
database:
  postgres:
    host: localhost
    port: 5432
`)

	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "15432")
	t.Setenv("LLM_API_KEY", "env-key")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig出错: %v", err)
	}

	if cfg.Database.Postgres.Host != "db.internal" {
		t.Errorf("DB_HOST覆盖失败: %s", cfg.Database.Postgres.Host)
	}
	if cfg.Database.Postgres.Port != 15432 {
		t.Errorf("DB_PORT覆盖失败: %d", cfg.Database.Postgres.Port)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("LLM_API_KEY覆盖失败: %s", cfg.LLM.APIKey)
	}
}

func TestLoadConfigBadDuration(t *testing.T) {
	path := writeTempConfig(t, `
llm:
  timeout: "not-a-duration"
`)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("非法时长应当报错")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/app.yaml"); err == nil {
		t.Fatal("文件不存在应当报错")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Pipeline.Workers != 4 || cfg.Pipeline.MaxRetries != 3 {
		t.Errorf("Pipeline默认值 = %+v", cfg.Pipeline)
	}
	if cfg.Dedup.Window.Std() != 24*time.Hour {
		t.Errorf("Dedup.Window默认值 = %v, 期望 24h", cfg.Dedup.Window.Std())
	}
	if cfg.Validator.HighConfidence != 0.85 || cfg.Validator.ConfidenceBonus != 0.05 {
		t.Errorf("Validator默认值 = %+v", cfg.Validator)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	t.Setenv("APP_ENV", "")
	if got := GetDefaultConfigPath(); got != "configs/dev/app.yaml" {
		t.Errorf("默认路径 = %s", got)
	}

	t.Setenv("APP_ENV", "prod")
	if got := GetDefaultConfigPath(); got != "configs/prod/app.yaml" {
		t.Errorf("prod路径 = %s", got)
	}
}
