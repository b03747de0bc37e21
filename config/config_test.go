package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(viper.Reset)
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
api:
  port: 8080
  request_timeout_sec: 5
database:
  path: /tmp/bessquote.db
  quote_retention_days: 30
mqtt:
  host: broker.local
  port: 1883
logging:
  db_level: warn
engine:
  finance:
    discount_rate: 0.06
  lookup:
    regional_rates:
      wa:
        energy_rate: 0.1
        demand_charge: 8
        currency: USD
`)
	t.Setenv("ENGINE_AUTHENTICATOR_SIGNING_KEY", "from-env")

	config, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	t.Run("Api", func(t *testing.T) {
		if config.Api.Port != 8080 {
			t.Errorf("Expected port 8080, got %d", config.Api.Port)
		}
		if config.Api.GetRequestTimeout() != 5*time.Second {
			t.Errorf("Expected request timeout 5s, got %v", config.Api.GetRequestTimeout())
		}
	})

	t.Run("Database", func(t *testing.T) {
		if config.Database.GetQuoteRetentionDays() != 30 {
			t.Errorf("Expected quote retention 30, got %d", config.Database.GetQuoteRetentionDays())
		}
		if config.Database.GetBackupRetentionDays() != 90 {
			t.Errorf("Expected default backup retention 90, got %d", config.Database.GetBackupRetentionDays())
		}
	})

	t.Run("Mqtt", func(t *testing.T) {
		if !config.Mqtt.Enabled() {
			t.Errorf("Expected mqtt to be enabled")
		}
		if config.Mqtt.GetTopic() != "bessquote/quotes" {
			t.Errorf("Expected default topic, got %s", config.Mqtt.GetTopic())
		}
	})

	t.Run("Engine", func(t *testing.T) {
		if config.Engine.Finance.DiscountRate != 0.06 {
			t.Errorf("Expected discount rate 0.06, got %f", config.Engine.Finance.DiscountRate)
		}
		if config.Engine.Finance.LifetimeYears != 25 {
			t.Errorf("Expected default lifetime 25, got %d", config.Engine.Finance.LifetimeYears)
		}
		if config.Engine.Authenticator.SigningKey != "from-env" {
			t.Errorf("Expected signing key from env, got %q", config.Engine.Authenticator.SigningKey)
		}
		if r := config.Engine.RegionalRate("WA"); r.EnergyRate != 0.1 {
			t.Errorf("Expected WA energy rate 0.1, got %f", r.EnergyRate)
		}
		if r := config.Engine.RegionalRate("ca"); r.EnergyRate != 0.24 {
			t.Errorf("Expected default CA energy rate 0.24, got %f", r.EnergyRate)
		}
		if r := config.Engine.RegionalRate("zz"); r.EnergyRate != 0.15 {
			t.Errorf("Expected fallback energy rate 0.15, got %f", r.EnergyRate)
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		if config.Maintenance.GetRunAt() != "30 2 * * *" {
			t.Errorf("Expected default maintenance schedule, got %s", config.Maintenance.GetRunAt())
		}
		if config.Logging.GetDbMaxEntries() != 10000 {
			t.Errorf("Expected 10000 log entries, got %d", config.Logging.GetDbMaxEntries())
		}
	})
}

func TestLoadRejectsInvalidEngine(t *testing.T) {
	path := writeConfig(t, `
engine:
  finance:
    lifetime_years: 0
`)
	if _, err := Load(path); err == nil {
		t.Errorf("Expected an error for a zero lifetime")
	}
}

func TestLoadRejectsZeroDegradationMultiplier(t *testing.T) {
	path := writeConfig(t, `
engine:
  risk:
    degradation_min: 0
`)
	if _, err := Load(path); err == nil {
		t.Errorf("Expected an error for a zero degradation multiplier")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Expected an error for a missing file")
	}
}

func TestValidateTiers(t *testing.T) {
	tests := []struct {
		name  string
		tiers []AppConfigTier
		ok    bool
	}{
		{"default", DefaultEngine().Tiers, true},
		{"two tiers", []AppConfigTier{{"A", 0.5}, {"B", 1}}, false},
		{"largest below peak", []AppConfigTier{{"A", 0.5}, {"B", 0.7}, {"C", 0.9}}, false},
		{"shrinking", []AppConfigTier{{"A", 0.8}, {"B", 0.6}, {"C", 1}}, false},
		{"no name", []AppConfigTier{{"A", 0.5}, {"", 0.7}, {"C", 1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DefaultEngine()
			e.Tiers = tt.tiers
			if err := e.Validate(); (err == nil) != tt.ok {
				t.Errorf("got %v", err)
			}
		})
	}
}

func TestValidateDegradationRange(t *testing.T) {
	tests := []struct {
		name     string
		min, max float64
		ok       bool
	}{
		{"default", 0.8, 1.5, true},
		{"single value", 1, 1, true},
		{"zero low end", 0, 1.5, false},
		{"negative low end", -0.2, 1.5, false},
		{"inverted", 1.5, 0.8, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DefaultEngine()
			e.Risk.DegradationMin = tt.min
			e.Risk.DegradationMax = tt.max
			if err := e.Validate(); (err == nil) != tt.ok {
				t.Errorf("got %v", err)
			}
		})
	}
}

func TestIsRecognizedSource(t *testing.T) {
	a := DefaultEngine().Authenticator
	if !a.IsRecognizedSource("NREL-ATB") {
		t.Errorf("Expected nrel-atb to be recognized regardless of case")
	}
	if a.IsRecognizedSource("my-spreadsheet") {
		t.Errorf("Expected an unknown source to be unrecognized")
	}
}
