package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nearmiss1193-afk/outreach/internal/domain"
)

// Config is the resolved runtime configuration: defaults, then the YAML
// file, then environment variables, each layer overriding the previous.
type Config struct {
	ServiceID string
	HTTPPort  int

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string
	MaxDBConns   int32

	TopicTouchRecorded string
	TopicTickCompleted string

	EmailAPIURL    string
	EmailAPIKey    string
	EmailFrom      string
	CRMAPIURL      string
	CRMAPIKey      string
	VoiceAPIURL    string
	VoiceAPIKey    string
	VoiceAssist    string
	ConnectTimeout time.Duration

	BatchSize       int
	TickTimeout     time.Duration
	LockTTL         time.Duration
	RecycleCooldown time.Duration

	MaxSteps     int
	CooldownDays []int
	EmailSpacing time.Duration
	PhoneSpacing time.Duration

	BusinessHourStart int
	BusinessHourEnd   int
	BusinessTimezone  string
	PhoneChannel      domain.Channel

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	SendTimeout      time.Duration

	DailyQuotas map[domain.Channel]int

	Variants map[domain.Channel][]domain.MessageVariant
}

type variantFile struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL        string   `yaml:"postgres_url"`
		RedisURL           string   `yaml:"redis_url"`
		KafkaBrokers       []string `yaml:"kafka_brokers"`
		TopicTouchRecorded string   `yaml:"kafka_topic_touch_recorded"`
		TopicTickCompleted string   `yaml:"kafka_topic_tick_completed"`
	} `yaml:"dependencies"`
	Providers struct {
		Email struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
			From    string `yaml:"from"`
		} `yaml:"email"`
		CRM struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"crm"`
		Voice struct {
			BaseURL     string `yaml:"base_url"`
			APIKey      string `yaml:"api_key"`
			AssistantID string `yaml:"assistant_id"`
		} `yaml:"voice"`
	} `yaml:"providers"`
	Cadence struct {
		BatchSize           int    `yaml:"batch_size"`
		MaxSteps            int    `yaml:"max_steps"`
		CooldownDays        []int  `yaml:"cooldown_days"`
		EmailSpacingHours   int    `yaml:"email_spacing_hours"`
		PhoneSpacingHours   int    `yaml:"phone_spacing_hours"`
		PhoneChannel        string `yaml:"phone_channel"`
		RecycleCooldownDays int    `yaml:"recycle_cooldown_days"`
		BusinessHours       struct {
			Start    int    `yaml:"start"`
			End      int    `yaml:"end"`
			Timezone string `yaml:"timezone"`
		} `yaml:"business_hours"`
	} `yaml:"cadence"`
	Retry struct {
		MaxAttempts   int `yaml:"max_attempts"`
		BaseDelayMs   int `yaml:"base_delay_ms"`
		MaxDelayMs    int `yaml:"max_delay_ms"`
		SendTimeoutMs int `yaml:"send_timeout_ms"`
	} `yaml:"retry"`
	Quotas   map[string]int           `yaml:"quotas"`
	Variants map[string][]variantFile `yaml:"variants"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:          "outreach-engine",
		HTTPPort:           8080,
		MaxDBConns:         10,
		TopicTouchRecorded: "outreach.touch.recorded",
		TopicTickCompleted: "outreach.tick.completed",
		ConnectTimeout:     10 * time.Second,
		BatchSize:          50,
		TickTimeout:        5 * time.Minute,
		LockTTL:            10 * time.Minute,
		RecycleCooldown:    30 * 24 * time.Hour,
		MaxSteps:           3,
		CooldownDays:       []int{0, 3, 7, 10},
		EmailSpacing:       24 * time.Hour,
		PhoneSpacing:       72 * time.Hour,
		BusinessHourStart:  8,
		BusinessHourEnd:    18,
		BusinessTimezone:   "UTC",
		PhoneChannel:       domain.ChannelSMS,
		RetryMaxAttempts:   3,
		RetryBaseDelay:     2 * time.Second,
		RetryMaxDelay:      30 * time.Second,
		SendTimeout:        30 * time.Second,
		DailyQuotas:        map[domain.Channel]int{},
		Variants:           map[domain.Channel][]domain.MessageVariant{},
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		applyFile(&cfg, f)
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.TopicTouchRecorded = envOrDefault("KAFKA_TOPIC_TOUCH_RECORDED", cfg.TopicTouchRecorded)
	cfg.TopicTickCompleted = envOrDefault("KAFKA_TOPIC_TICK_COMPLETED", cfg.TopicTickCompleted)
	cfg.EmailAPIURL = envOrDefault("EMAIL_API_URL", cfg.EmailAPIURL)
	cfg.EmailAPIKey = envOrDefault("EMAIL_API_KEY", cfg.EmailAPIKey)
	cfg.EmailFrom = envOrDefault("EMAIL_FROM", cfg.EmailFrom)
	cfg.CRMAPIURL = envOrDefault("CRM_API_URL", cfg.CRMAPIURL)
	cfg.CRMAPIKey = envOrDefault("CRM_API_KEY", cfg.CRMAPIKey)
	cfg.VoiceAPIURL = envOrDefault("VOICE_API_URL", cfg.VoiceAPIURL)
	cfg.VoiceAPIKey = envOrDefault("VOICE_API_KEY", cfg.VoiceAPIKey)
	cfg.VoiceAssist = envOrDefault("VOICE_ASSISTANT_ID", cfg.VoiceAssist)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.BatchSize = envInt("BATCH_SIZE", cfg.BatchSize)
	cfg.TickTimeout = time.Duration(envInt("TICK_TIMEOUT_SECONDS", int(cfg.TickTimeout.Seconds()))) * time.Second
	cfg.LockTTL = time.Duration(envInt("LOCK_TTL_SECONDS", int(cfg.LockTTL.Seconds()))) * time.Second
	cfg.RecycleCooldown = time.Duration(envInt("RECYCLE_COOLDOWN_DAYS", int(cfg.RecycleCooldown.Hours()/24))) * 24 * time.Hour
	cfg.BusinessHourStart = envInt("BUSINESS_HOUR_START", cfg.BusinessHourStart)
	cfg.BusinessHourEnd = envInt("BUSINESS_HOUR_END", cfg.BusinessHourEnd)
	cfg.BusinessTimezone = envOrDefault("BUSINESS_TIMEZONE", cfg.BusinessTimezone)
	if quota := envInt("SMS_DAILY_QUOTA", -1); quota >= 0 {
		cfg.DailyQuotas[domain.ChannelSMS] = quota
	}
	if quota := envInt("VOICE_DAILY_QUOTA", -1); quota >= 0 {
		cfg.DailyQuotas[domain.ChannelVoice] = quota
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.BusinessHourStart < 0 || cfg.BusinessHourEnd > 24 || cfg.BusinessHourStart >= cfg.BusinessHourEnd {
		return Config{}, fmt.Errorf("invalid business hours %d-%d", cfg.BusinessHourStart, cfg.BusinessHourEnd)
	}
	if len(cfg.Variants[domain.ChannelEmail]) == 0 {
		return Config{}, fmt.Errorf("at least one email variant is required")
	}
	return cfg, nil
}

// Cooldowns converts the configured day offsets to durations.
func (c Config) Cooldowns() []time.Duration {
	out := make([]time.Duration, len(c.CooldownDays))
	for i, days := range c.CooldownDays {
		out[i] = time.Duration(days) * 24 * time.Hour
	}
	return out
}

func applyFile(cfg *Config, f configFile) {
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
	}
	if f.Dependencies.TopicTouchRecorded != "" {
		cfg.TopicTouchRecorded = f.Dependencies.TopicTouchRecorded
	}
	if f.Dependencies.TopicTickCompleted != "" {
		cfg.TopicTickCompleted = f.Dependencies.TopicTickCompleted
	}
	cfg.EmailAPIURL = f.Providers.Email.BaseURL
	cfg.EmailAPIKey = f.Providers.Email.APIKey
	cfg.EmailFrom = f.Providers.Email.From
	cfg.CRMAPIURL = f.Providers.CRM.BaseURL
	cfg.CRMAPIKey = f.Providers.CRM.APIKey
	cfg.VoiceAPIURL = f.Providers.Voice.BaseURL
	cfg.VoiceAPIKey = f.Providers.Voice.APIKey
	cfg.VoiceAssist = f.Providers.Voice.AssistantID
	if f.Cadence.BatchSize > 0 {
		cfg.BatchSize = f.Cadence.BatchSize
	}
	if f.Cadence.MaxSteps > 0 {
		cfg.MaxSteps = f.Cadence.MaxSteps
	}
	if len(f.Cadence.CooldownDays) > 0 {
		cfg.CooldownDays = f.Cadence.CooldownDays
	}
	if f.Cadence.EmailSpacingHours > 0 {
		cfg.EmailSpacing = time.Duration(f.Cadence.EmailSpacingHours) * time.Hour
	}
	if f.Cadence.PhoneSpacingHours > 0 {
		cfg.PhoneSpacing = time.Duration(f.Cadence.PhoneSpacingHours) * time.Hour
	}
	if f.Cadence.PhoneChannel != "" {
		cfg.PhoneChannel = domain.Channel(f.Cadence.PhoneChannel)
	}
	if f.Cadence.RecycleCooldownDays > 0 {
		cfg.RecycleCooldown = time.Duration(f.Cadence.RecycleCooldownDays) * 24 * time.Hour
	}
	if f.Cadence.BusinessHours.End > 0 {
		cfg.BusinessHourStart = f.Cadence.BusinessHours.Start
		cfg.BusinessHourEnd = f.Cadence.BusinessHours.End
	}
	if f.Cadence.BusinessHours.Timezone != "" {
		cfg.BusinessTimezone = f.Cadence.BusinessHours.Timezone
	}
	if f.Retry.MaxAttempts > 0 {
		cfg.RetryMaxAttempts = f.Retry.MaxAttempts
	}
	if f.Retry.BaseDelayMs > 0 {
		cfg.RetryBaseDelay = time.Duration(f.Retry.BaseDelayMs) * time.Millisecond
	}
	if f.Retry.MaxDelayMs > 0 {
		cfg.RetryMaxDelay = time.Duration(f.Retry.MaxDelayMs) * time.Millisecond
	}
	if f.Retry.SendTimeoutMs > 0 {
		cfg.SendTimeout = time.Duration(f.Retry.SendTimeoutMs) * time.Millisecond
	}
	for channel, quota := range f.Quotas {
		cfg.DailyQuotas[domain.Channel(channel)] = quota
	}
	for channel, variants := range f.Variants {
		out := make([]domain.MessageVariant, len(variants))
		for i, v := range variants {
			out[i] = domain.MessageVariant{ID: i, Subject: v.Subject, Body: v.Body}
		}
		cfg.Variants[domain.Channel(channel)] = out
	}
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return trimNonEmpty(strings.Split(raw, ","))
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
