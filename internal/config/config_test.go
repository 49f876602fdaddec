package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "dev-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	if cfg.Server.Address() != "0.0.0.0:8080" {
		t.Errorf("Address = %q, want 0.0.0.0:8080", cfg.Server.Address())
	}
	if cfg.Mongo.Database != "clinicflow" || cfg.Mongo.MaxPoolSize != 50 {
		t.Errorf("Mongo = %+v, want defaults", cfg.Mongo)
	}
	if cfg.Tracing.Enabled {
		t.Error("tracing should be off by default")
	}
	if cfg.RateLimit.AuthRequestsPerMinute != 10 {
		t.Errorf("AuthRequestsPerMinute = %d, want 10", cfg.RateLimit.AuthRequestsPerMinute)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_SLOW_QUERY_THRESHOLD", "1s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, ,https://b.test")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("SERVER_READ_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.SlowQueryThreshold != time.Second {
		t.Errorf("SlowQueryThreshold = %v, want 1s", cfg.Database.SlowQueryThreshold)
	}
	if got := cfg.CORS.AllowedOrigins; len(got) != 2 || got[1] != "https://b.test" {
		t.Errorf("AllowedOrigins = %v, want two trimmed origins", got)
	}
	if !cfg.Tracing.Enabled {
		t.Error("TRACING_ENABLED=true was ignored")
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout = %v, want fallback for unparsable value", cfg.Server.ReadTimeout)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}, "JWT_SECRET is required"},
		{"short secret in production", map[string]string{
			"JWT_SECRET": "short", "APP_ENV": "production", "DB_PASSWORD": "pw",
		}, "at least 32 characters"},
		{"password outside development", map[string]string{
			"JWT_SECRET": "dev-secret", "APP_ENV": "staging", "DB_PASSWORD": "",
		}, "DB_PASSWORD is required"},
		{"ssl disabled in production", map[string]string{
			"JWT_SECRET": strings.Repeat("s", 40), "APP_ENV": "production", "DB_PASSWORD": "pw", "DB_SSLMODE": "disable",
		}, "DB_SSLMODE=disable"},
		{"blank mongo uri", map[string]string{"JWT_SECRET": "dev-secret", "MONGO_URI": " "}, "MONGO_URI is required"},
		{"non-positive rate limit", map[string]string{"JWT_SECRET": "dev-secret", "RATE_LIMIT_BURST": "0"}, "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}
