package bootstrap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nearmiss1193-afk/outreach/internal/dispatch"
	"github.com/nearmiss1193-afk/outreach/internal/domain"
)

const testConfigYAML = `
service:
  id: outreach-test
  http_port: 9090
dependencies:
  postgres_url: postgres://file-user@localhost/outreach
  redis_url: redis://localhost:6379/0
cadence:
  batch_size: 25
  cooldown_days: [0, 2, 5]
  phone_spacing_hours: 48
  business_hours:
    start: 9
    end: 17
    timezone: America/New_York
quotas:
  sms: 40
variants:
  email:
    - subject: "Hi {{company}}"
      body: "First touch"
    - subject: "Following up, {{firstName}}"
      body: "Second touch"
  sms:
    - body: "Quick question about {{company}}"
`

func writeTestConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeTestConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ServiceID != "outreach-test" {
		t.Errorf("ServiceID = %q", cfg.ServiceID)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d", cfg.HTTPPort)
	}
	if cfg.BatchSize != 25 {
		t.Errorf("BatchSize = %d", cfg.BatchSize)
	}
	if cfg.PhoneSpacing != 48*time.Hour {
		t.Errorf("PhoneSpacing = %v", cfg.PhoneSpacing)
	}
	// Untouched fields keep their defaults.
	if cfg.EmailSpacing != 24*time.Hour {
		t.Errorf("EmailSpacing = %v", cfg.EmailSpacing)
	}
	if cfg.MaxSteps != 3 {
		t.Errorf("MaxSteps = %d", cfg.MaxSteps)
	}
	if cfg.BusinessHourStart != 9 || cfg.BusinessHourEnd != 17 {
		t.Errorf("business hours = %d-%d", cfg.BusinessHourStart, cfg.BusinessHourEnd)
	}
	if cfg.BusinessTimezone != "America/New_York" {
		t.Errorf("BusinessTimezone = %q", cfg.BusinessTimezone)
	}
	if got := cfg.DailyQuotas[domain.ChannelSMS]; got != 40 {
		t.Errorf("sms quota = %d", got)
	}
	if got := len(cfg.Variants[domain.ChannelEmail]); got != 2 {
		t.Fatalf("email variants = %d", got)
	}
	if cfg.Variants[domain.ChannelEmail][1].ID != 1 {
		t.Errorf("variant ID = %d, want positional index", cfg.Variants[domain.ChannelEmail][1].ID)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	t.Setenv("DB_URL", "postgres://env-user@dbhost/outreach")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("SMS_DAILY_QUOTA", "5")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")

	cfg, err := LoadConfig(writeTestConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DatabaseURL != "postgres://env-user@dbhost/outreach" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.BatchSize != 100 {
		t.Errorf("BatchSize = %d", cfg.BatchSize)
	}
	if got := cfg.DailyQuotas[domain.ChannelSMS]; got != 5 {
		t.Errorf("sms quota = %d", got)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "broker-2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
}

// The shipped default config must only use placeholders the renderer knows,
// or every outbound message leaks raw template braces.
func TestDefaultConfigVariantsRender(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/outreach")

	cfg, err := LoadConfig(filepath.Join("..", "..", "..", "configs", "default.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	lead := domain.Lead{
		FirstName: "Jane",
		Email:     "jane@acme.test",
		Phone:     "+15550100",
		Company:   "Acme",
	}
	for channel, variants := range cfg.Variants {
		for i, variant := range variants {
			for _, rendered := range []string{
				dispatch.RenderTemplate(variant.Subject, lead),
				dispatch.RenderTemplate(variant.Body, lead),
			} {
				if strings.Contains(rendered, "{") || strings.Contains(rendered, "}") {
					t.Errorf("%s variant %d leaks placeholders: %q", channel, i, rendered)
				}
			}
		}
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	_, err := LoadConfig(writeTestConfig(t, `
variants:
  email:
    - subject: s
      body: b
`))
	if err == nil {
		t.Fatal("expected error for missing database URL")
	}
}

func TestLoadConfigRequiresEmailVariant(t *testing.T) {
	_, err := LoadConfig(writeTestConfig(t, `
dependencies:
  postgres_url: postgres://localhost/outreach
`))
	if err == nil {
		t.Fatal("expected error for missing email variants")
	}
}

func TestLoadConfigRejectsInvertedBusinessHours(t *testing.T) {
	_, err := LoadConfig(writeTestConfig(t, `
dependencies:
  postgres_url: postgres://localhost/outreach
cadence:
  business_hours:
    start: 18
    end: 8
variants:
  email:
    - subject: s
      body: b
`))
	if err == nil {
		t.Fatal("expected error for inverted business hours")
	}
}
