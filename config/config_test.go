package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef-test"

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("EDUMAX_AUTH_JWT_SECRET", testSecret)
	t.Setenv("EDUMAX_SCHEDULE_MAX_BATCH_SIZE", "50")
	t.Setenv("EDUMAX_NOTIFY_RETRY_BASE", "2s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("期望默认端口 8080，实际=%d", cfg.Server.Port)
	}
	if cfg.Schedule.MaxBatchSize != 50 {
		t.Errorf("环境变量应覆盖默认值，实际=%d", cfg.Schedule.MaxBatchSize)
	}
	if cfg.Notify.RetryBase != 2*time.Second {
		t.Errorf("期望 retry_base=2s，实际=%v", cfg.Notify.RetryBase)
	}
	if cfg.Auth.AccessTokenTTL != time.Hour {
		t.Errorf("期望 access_token_ttl=1h，实际=%v", cfg.Auth.AccessTokenTTL)
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Errorf("期望 rate_limit.window=1m，实际=%v", cfg.RateLimit.Window)
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("EDUMAX_AUTH_JWT_SECRET", "")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Errorf("缺少 jwt_secret 应报错，实际: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
auth:
  jwt_secret: "` + testSecret + `"
log:
  level: debug
archive:
  enabled: true
  bucket: edumax-archive
  path_style: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写配置文件失败: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("期望 log.level=debug，实际=%s", cfg.Log.Level)
	}
	if !cfg.Archive.Enabled || cfg.Archive.Bucket != "edumax-archive" || !cfg.Archive.PathStyle {
		t.Errorf("归档配置解析错误: %+v", cfg.Archive)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Server:   ServerConfig{Port: 8080},
			Auth:     AuthConfig{JWTSecret: testSecret},
			Schedule: ScheduleConfig{MaxBatchSize: 10},
		}
	}

	cases := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"ok", func(c *Config) {}, ""},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "16"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"zero batch", func(c *Config) { c.Schedule.MaxBatchSize = 0 }, "max_batch_size"},
		{"archive without bucket", func(c *Config) { c.Archive.Enabled = true }, "archive.bucket"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(&c)
			err := c.Validate()
			if tc.want == "" {
				if err != nil {
					t.Errorf("期望通过，实际: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("期望错误包含 %q，实际: %v", tc.want, err)
			}
		})
	}
}

func TestWatch_NoFileIsNoop(t *testing.T) {
	t.Setenv("EDUMAX_AUTH_JWT_SECRET", testSecret)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	called := false
	cfg.Watch(func(string) { called = true })
	if called {
		t.Error("未加载配置文件时不应触发回调")
	}
}
