package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"DATABASE_URL": "postgres://localhost/test",
	})
	defer cleanup()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":8090" {
			t.Errorf("HTTPAddr = %q, want :8090", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
		if cfg.HighConfidence != 0.75 {
			t.Errorf("HighConfidence = %v, want 0.75", cfg.HighConfidence)
		}
		if cfg.MediumConfidence != 0.50 {
			t.Errorf("MediumConfidence = %v, want 0.50", cfg.MediumConfidence)
		}
		if cfg.NLPConcurrency != 4 {
			t.Errorf("NLPConcurrency = %d, want 4", cfg.NLPConcurrency)
		}
		if !cfg.TranscriptionRetryLimitEnabled {
			t.Error("TranscriptionRetryLimitEnabled = false, want true")
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		cfg, err := Load(Overrides{
			EnvFile:     "nonexistent.env",
			LogLevel:    "debug",
			DatabaseURL: "postgres://override/db",
			HTTPAddr:    ":9090",
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
		if cfg.DatabaseURL != "postgres://override/db" {
			t.Errorf("DatabaseURL = %q, want override", cfg.DatabaseURL)
		}
		if cfg.HTTPAddr != ":9090" {
			t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
		}
	})
}

func TestLoadMissingRequired(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{"DATABASE_URL": ""})
	defer cleanup()
	os.Unsetenv("DATABASE_URL")

	_, err := Load(Overrides{EnvFile: "nonexistent.env"})
	if err == nil {
		t.Error("expected error when required env vars are missing")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid_thresholds",
			cfg:  Config{HighConfidence: 0.75, MediumConfidence: 0.5},
		},
		{
			name:    "high_not_greater_than_medium",
			cfg:     Config{HighConfidence: 0.5, MediumConfidence: 0.5},
			wantErr: true,
		},
		{
			name:    "s3_enabled_without_access_key",
			cfg:     Config{HighConfidence: 0.75, MediumConfidence: 0.5, S3: S3Config{Bucket: "media"}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// setEnvs sets environment variables and returns a cleanup function.
func setEnvs(t *testing.T, envs map[string]string) func() {
	t.Helper()
	originals := make(map[string]string)
	unset := make([]string, 0)

	for k, v := range envs {
		if orig, ok := os.LookupEnv(k); ok {
			originals[k] = orig
		} else {
			unset = append(unset, k)
		}
		os.Setenv(k, v)
	}

	return func() {
		for k, v := range originals {
			os.Setenv(k, v)
		}
		for _, k := range unset {
			os.Unsetenv(k)
		}
	}
}
