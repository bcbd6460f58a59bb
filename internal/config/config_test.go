package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "APP_PORT", "PUBLIC_BASE_URL",
		"SESSION_BACKEND", "SESSION_IDLE_TTL", "SESSION_SWEEP_INTERVAL",
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
		"REDIS_HOST", "REDIS_PORT", "REDIS_KEY_PREFIX",
		"JWT_SECRET", "JWT_ISSUER", "JWT_AUDIENCE", "JWT_ACCESS_TTL",
		"TWILIO_AUTH_TOKEN", "GATHER_TIMEOUT", "AGENT_TRANSFER_TARGETS", "PROMPTS_FILE",
	} {
		// Setenv registers the restore; Unsetenv lets a .env file fill the key.
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoad_LocalDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "local")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.App.Port != 8080 || c.Session.Backend != SessionBackendMemory {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.Session.IdleTTL != 0 {
		t.Fatalf("expected unlimited retention by default, got %s", c.Session.IdleTTL)
	}
	if c.Twilio.GatherTimeout != 5 || c.IVR.AgentTransferTargets != "+911234567890" {
		t.Fatalf("unexpected twilio/ivr defaults: %+v %+v", c.Twilio, c.IVR)
	}
	if c.Redis.KeyPrefix != "ivr:" || c.AdminEnabled() || c.DB.Enabled() {
		t.Fatalf("unexpected optional sections: %+v", c)
	}
}

func TestLoad_ReportsEveryParseError(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "eighty")
	t.Setenv("SESSION_IDLE_TTL", "soon")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected parse errors")
	}
	for _, want := range []string{"APP_PORT", "SESSION_IDLE_TTL"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %v", want, err)
		}
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	body := "APP_ENV=dev\nSESSION_BACKEND=redis\nREDIS_HOST=cache\nREDIS_PORT=6380\nSESSION_IDLE_TTL=30m\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("REDIS_HOST", "override")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.App.Env != "dev" || c.Session.Backend != SessionBackendRedis {
		t.Fatalf("dotenv not applied: %+v", c)
	}
	if c.RedisAddr() != "override:6380" {
		t.Fatalf("process env must win over .env, got %s", c.RedisAddr())
	}
	if c.Session.IdleTTL != 30*time.Minute || c.Session.SweepInterval != time.Minute {
		t.Fatalf("unexpected session config %+v", c.Session)
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequirements(t *testing.T) {
	c := Config{
		App:     AppConfig{Env: "production", Port: 8080},
		Session: SessionConfig{Backend: SessionBackendMemory},
		Twilio:  TwilioConfig{GatherTimeout: 5},
		IVR:     IVRConfig{AgentTransferTargets: "+911234567890"},
	}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected production errors")
	}
	for _, want := range []string{"PUBLIC_BASE_URL", "JWT_SECRET", "TWILIO_AUTH_TOKEN"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %v", want, err)
		}
	}

	c.App.PublicBaseURL = "https://ivr.example.com"
	c.Auth = AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute}
	c.Twilio.AuthToken = "token"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid production config, got %v", err)
	}
}

func TestValidate_RedisBackendRequiresAddress(t *testing.T) {
	c := Config{
		App:     AppConfig{Env: "local", Port: 8080},
		Session: SessionConfig{Backend: SessionBackendRedis},
		Twilio:  TwilioConfig{GatherTimeout: 5},
		IVR:     IVRConfig{AgentTransferTargets: "x"},
	}
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "REDIS_HOST") {
		t.Fatalf("expected REDIS_HOST error, got %v", err)
	}
}

func TestWithDefaults_LocalSSLMode(t *testing.T) {
	c := Config{
		App:     AppConfig{Env: "local", Port: 8080},
		Session: SessionConfig{Backend: SessionBackendMemory},
		DB:      DBConfig{Host: "localhost", Port: 5432, User: "postgres", Name: "ivr"},
		IVR:     IVRConfig{AgentTransferTargets: "x"},
	}.withDefaults()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}

	c.App.Env = "production"
	c.DB.SSLMode = ""
	if err := c.withDefaults().Validate(); err == nil || !strings.Contains(err.Error(), "DB_SSLMODE") {
		t.Fatalf("expected DB_SSLMODE error in production, got %v", err)
	}
}
