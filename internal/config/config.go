package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures the full configuration surface for the application.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Scylla    ScyllaConfig    `mapstructure:"scylla"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
	WhatsApp  WhatsAppConfig  `mapstructure:"whatsapp"`
	Campaign  CampaignConfig  `mapstructure:"campaign"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	InitSchema      bool          `mapstructure:"init_schema"`
}

type ScyllaConfig struct {
	Hosts             []string      `mapstructure:"hosts"`
	Port              int           `mapstructure:"port"`
	Keyspace          string        `mapstructure:"keyspace"`
	Consistency       string        `mapstructure:"consistency"`
	Timeout           time.Duration `mapstructure:"timeout"`
	DisableInitSchema bool          `mapstructure:"disable_init_schema"`
}

type KafkaConfig struct {
	Brokers               []string      `mapstructure:"brokers"`
	ClientID              string        `mapstructure:"client_id"`
	CampaignTopic         string        `mapstructure:"campaign_topic"`
	DeliveryTopic         string        `mapstructure:"delivery_topic"`
	ConsumerGroupID       string        `mapstructure:"consumer_group_id"`
	DeliveryConsumerGroup string        `mapstructure:"delivery_consumer_group"`
	CommitInterval        time.Duration `mapstructure:"commit_interval"`
	Partitions            int           `mapstructure:"partitions"`
	ReplicationFactor     int           `mapstructure:"replication_factor"`
}

type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

type TelemetryConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	ServiceName     string        `mapstructure:"service_name"`
	SampleRatio     float64       `mapstructure:"sample_ratio"`
	MetricsEnabled  bool          `mapstructure:"metrics_enabled"`
	TracingEnabled  bool          `mapstructure:"tracing_enabled"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SheetsConfig points at the Apps Script web app fronting the spreadsheet.
// An empty or placeholder URL selects the in-memory store.
type SheetsConfig struct {
	AppsScriptURL      string        `mapstructure:"apps_script_url"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	DefaultCountryCode string        `mapstructure:"default_country_code"`
	Fallback           bool          `mapstructure:"fallback"`
}

type WhatsAppConfig struct {
	Provider       string        `mapstructure:"provider"`
	BaseURL        string        `mapstructure:"base_url"`
	APIVersion     string        `mapstructure:"api_version"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MockSuccess    float64       `mapstructure:"mock_success_rate"`
	MockLatency    time.Duration `mapstructure:"mock_latency"`
}

type CampaignConfig struct {
	SendDelay      time.Duration `mapstructure:"send_delay"`
	CostPerMessage string        `mapstructure:"cost_per_message"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
	ProgressTTL    time.Duration `mapstructure:"progress_ttl"`
	PreviewSize    int           `mapstructure:"preview_size"`
}

type SchedulerConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	StaleAfter   time.Duration `mapstructure:"stale_after"`
	QueuedAfter  time.Duration `mapstructure:"queued_after"`
	BatchSize    int           `mapstructure:"batch_size"`
}

type AuthConfig struct {
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("CRM")
	v.SetEnvKeyReplacer(NewEnvReplacer())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// NewEnvReplacer standardizes environment variable names.
func NewEnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "crm-pro")
	v.SetDefault("app.env", "development")
	v.SetDefault("http.port", 8080)
	v.SetDefault("kafka.campaign_topic", "crm.campaign.runs")
	v.SetDefault("kafka.delivery_topic", "crm.campaign.deliveries")
	v.SetDefault("kafka.consumer_group_id", "crm-campaign-worker")
	v.SetDefault("kafka.delivery_consumer_group", "crm-delivery-worker")
	v.SetDefault("kafka.partitions", 12)
	v.SetDefault("kafka.replication_factor", 1)
	v.SetDefault("sheets.request_timeout", "15s")
	v.SetDefault("sheets.default_country_code", "212")
	v.SetDefault("sheets.fallback", true)
	v.SetDefault("whatsapp.provider", "cloud")
	v.SetDefault("whatsapp.base_url", "https://graph.facebook.com")
	v.SetDefault("whatsapp.api_version", "v18.0")
	v.SetDefault("whatsapp.request_timeout", "10s")
	v.SetDefault("whatsapp.mock_success_rate", 0.9)
	v.SetDefault("whatsapp.mock_latency", "200ms")
	v.SetDefault("campaign.send_delay", "1s")
	v.SetDefault("campaign.cost_per_message", "0.001")
	v.SetDefault("campaign.lock_ttl", "30m")
	v.SetDefault("campaign.progress_ttl", "24h")
	v.SetDefault("campaign.preview_size", 5)
	v.SetDefault("scheduler.tick_interval", "1m")
	v.SetDefault("scheduler.stale_after", "10m")
	v.SetDefault("scheduler.queued_after", "6h")
	v.SetDefault("scheduler.batch_size", 100)
	v.SetDefault("auth.session_ttl", "12h")
}
