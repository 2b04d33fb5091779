package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Cache.TTL.String() != "5m0s" {
		t.Errorf("Cache.TTL = %v, want 5m0s", cfg.Cache.TTL)
	}
	if cfg.Cache.StaleWindow.String() != "10m0s" {
		t.Errorf("Cache.StaleWindow = %v, want 10m0s", cfg.Cache.StaleWindow)
	}
	if !cfg.Auth.Enabled {
		t.Error("Auth.Enabled default should be true")
	}
	if cfg.RateLimit.WindowMs != 60000 {
		t.Errorf("RateLimit.WindowMs = %d, want 60000", cfg.RateLimit.WindowMs)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WEBPEEL_PORT", "9090")
	t.Setenv("WEBPEEL_AUTH_ENABLED", "false")
	t.Setenv("WEBPEEL_API_KEYS", "key-a,key-b")
	t.Setenv("WEBPEEL_CF_WORKER_URL", "https://worker.example.com")

	cfg := Load()

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Auth.Enabled {
		t.Error("Auth.Enabled should be false")
	}
	if len(cfg.Auth.APIKeys) != 2 || cfg.Auth.APIKeys[0] != "key-a" {
		t.Errorf("Auth.APIKeys = %v", cfg.Auth.APIKeys)
	}
	if cfg.EdgeWorker.URL != "https://worker.example.com" {
		t.Errorf("EdgeWorker.URL = %q", cfg.EdgeWorker.URL)
	}
}

func TestLoad_ProductionFlagFromEnv(t *testing.T) {
	t.Setenv("WEBPEEL_ENV", "production")
	cfg := Load()
	if !cfg.Env.Production {
		t.Error("Env.Production should be true when WEBPEEL_ENV=production")
	}
}

func TestLoad_InvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("WEBPEEL_PORT", "not-a-number")
	cfg := Load()
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want fallback 8080", cfg.Server.Port)
	}
}
