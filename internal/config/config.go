package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string

	Server        ServerConfig
	Logging       LoggingConfig
	Redis         RedisConfig
	Scylla        ScyllaConfig
	Kafka         KafkaConfig
	Elasticsearch ElasticsearchConfig
	Clickhouse    ClickhouseConfig
	KMS           KMSConfig
	Hashing       HashingConfig
	Bucketing     BucketingConfig
	Session       SessionConfig
	Verification  VerificationConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	AcmeEmail    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type KafkaConfig struct {
	Enabled     bool
	Brokers     []string
	VerifyTopic string
	ViewTopic   string
	GroupID     string
}

type ElasticsearchConfig struct {
	Enabled      bool
	URL          string
	Username     string
	Password     string
	ArticleIndex string
}

type ClickhouseConfig struct {
	Enabled  bool
	URL      string
	Username string
	Password string
	Database string
}

type KMSConfig struct {
	Enabled bool
	KeyID   string
	Region  string
}

type HashingConfig struct {
	Argon2MemoryCost  int
	Argon2TimeCost    int
	Argon2Parallelism int
}

type BucketingConfig struct {
	UserBuckets  int
	EventBuckets int
}

type SessionConfig struct {
	TTL          time.Duration
	RememberTTL  time.Duration
	CookieSecure bool
}

// VerificationConfig controls the code coordinator. The TTLs default to the
// 300s window legacy clients rely on; SMSConsumeOnVerify switches SMS codes
// to single-use and deviates from legacy behavior.
type VerificationConfig struct {
	ImageCodeTTL       time.Duration
	SMSCodeTTL         time.Duration
	SendInterval       time.Duration
	SMSConsumeOnVerify bool
	SMSProviderURL     string
	SMSAccountSID      string
	SMSAuthToken       string
	SMSTemplateID      string
}

// LoadConfig reads configuration from the environment, loading .env first
// when present
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8000),
			TLSPort:      getEnvInt("SERVER_TLS_PORT", 8443),
			EnableTLS:    getEnvBool("SERVER_ENABLE_TLS", false),
			AutoCert:     getEnvBool("SERVER_AUTO_CERT", false),
			Domain:       getEnv("SERVER_DOMAIN", ""),
			CertFile:     getEnv("SERVER_CERT_FILE", ""),
			KeyFile:      getEnv("SERVER_KEY_FILE", ""),
			AutoCertDir:  getEnv("SERVER_AUTOCERT_DIR", "/var/lib/blog-service/autocert"),
			AcmeEmail:    getEnv("SERVER_ACME_EMAIL", ""),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
		},
		Scylla: ScyllaConfig{
			Nodes:    getEnvSlice("SCYLLA_NODES", []string{"127.0.0.1:9042"}),
			Keyspace: getEnv("SCYLLA_KEYSPACE", "blog"),
			Username: getEnv("SCYLLA_USERNAME", ""),
			Password: getEnv("SCYLLA_PASSWORD", ""),
		},
		Kafka: KafkaConfig{
			Enabled:     getEnvBool("KAFKA_ENABLED", false),
			Brokers:     getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			VerifyTopic: getEnv("KAFKA_VERIFY_TOPIC", "verification-events"),
			ViewTopic:   getEnv("KAFKA_VIEW_TOPIC", "article-view-events"),
			GroupID:     getEnv("KAFKA_GROUP_ID", "blog-service-analytics"),
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:      getEnvBool("ELASTICSEARCH_ENABLED", false),
			URL:          getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
			Username:     getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:     getEnv("ELASTICSEARCH_PASSWORD", ""),
			ArticleIndex: getEnv("ELASTICSEARCH_ARTICLE_INDEX", "blog-articles"),
		},
		Clickhouse: ClickhouseConfig{
			Enabled:  getEnvBool("CLICKHOUSE_ENABLED", false),
			URL:      getEnv("CLICKHOUSE_URL", "localhost:9000"),
			Username: getEnv("CLICKHOUSE_USERNAME", "default"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			Database: getEnv("CLICKHOUSE_DATABASE", "blog_analytics"),
		},
		KMS: KMSConfig{
			Enabled: getEnvBool("KMS_ENABLED", false),
			KeyID:   getEnv("KMS_KEY_ID", ""),
			Region:  getEnv("KMS_REGION", "ap-south-1"),
		},
		Hashing: HashingConfig{
			Argon2MemoryCost:  getEnvInt("ARGON2_MEMORY_COST", 65536),
			Argon2TimeCost:    getEnvInt("ARGON2_TIME_COST", 3),
			Argon2Parallelism: getEnvInt("ARGON2_PARALLELISM", 4),
		},
		Bucketing: BucketingConfig{
			UserBuckets:  getEnvInt("USER_BUCKETS", 64),
			EventBuckets: getEnvInt("EVENT_BUCKETS", 16),
		},
		Session: SessionConfig{
			TTL:          getEnvDuration("SESSION_TTL", 2*time.Hour),
			RememberTTL:  getEnvDuration("SESSION_REMEMBER_TTL", 14*24*time.Hour),
			CookieSecure: getEnvBool("SESSION_COOKIE_SECURE", false),
		},
		Verification: VerificationConfig{
			ImageCodeTTL:       getEnvDuration("IMAGE_CODE_TTL", 300*time.Second),
			SMSCodeTTL:         getEnvDuration("SMS_CODE_TTL", 300*time.Second),
			SendInterval:       getEnvDuration("SMS_SEND_INTERVAL", 60*time.Second),
			SMSConsumeOnVerify: getEnvBool("VERIFY_SMS_CONSUME", false),
			SMSProviderURL:     getEnv("SMS_PROVIDER_URL", ""),
			SMSAccountSID:      getEnv("SMS_ACCOUNT_SID", ""),
			SMSAuthToken:       getEnv("SMS_AUTH_TOKEN", ""),
			SMSTemplateID:      getEnv("SMS_TEMPLATE_ID", "1"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
