package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config captures the full runtime configuration for the fieldcam ingestion service.
type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	Auth     AuthConfig
	Upload   UploadConfig
	Storage  StorageConfig
	Docstore DocstoreConfig
	Kafka    KafkaConfig
	Tracing  TracingConfig
	Metrics  MetricsConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"fieldcam-ingestion"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"APP_LOG_FORMAT" envDefault:"json"`
}

type HTTPConfig struct {
	Addr         string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
}

// AuthConfig holds the static API token. An empty token disables the bearer
// check on /ingest.
type AuthConfig struct {
	Token string `env:"API_TOKEN"`
}

type UploadConfig struct {
	MaxSizeBytes      int64 `env:"UPLOAD_MAX_SIZE_BYTES" envDefault:"33554432"`
	MultipartMemBytes int64 `env:"UPLOAD_MULTIPART_MEM_BYTES" envDefault:"8388608"`
}

// StorageConfig selects and configures the object store backend. AccessKey
// and SecretKey double as the Swift username and API key when Provider is
// "swift"; AuthURL, Tenant and Domain are only read by that backend.
type StorageConfig struct {
	Provider  string `env:"STORAGE_PROVIDER" envDefault:"minio"`
	Endpoint  string `env:"STORAGE_ENDPOINT" envDefault:"localhost:9000"`
	Region    string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	Bucket    string `env:"STORAGE_BUCKET" envDefault:"images"`
	AccessKey string `env:"STORAGE_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string `env:"STORAGE_SECRET_KEY" envDefault:"minioadmin"`
	UseSSL    bool   `env:"STORAGE_USE_SSL" envDefault:"false"`
	Account   string `env:"STORAGE_ACCOUNT"`
	AuthURL   string `env:"STORAGE_AUTH_URL"`
	Tenant    string `env:"STORAGE_TENANT"`
	Domain    string `env:"STORAGE_DOMAIN" envDefault:"Default"`
}

// DocstoreConfig selects and configures the metadata record store. URI,
// Database and Collection drive the mongo backend; Path drives the embedded
// storm backend.
type DocstoreConfig struct {
	Provider   string        `env:"DOCSTORE_PROVIDER" envDefault:"mongo"`
	URI        string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	Database   string        `env:"MONGO_DATABASE" envDefault:"fieldcam"`
	Collection string        `env:"MONGO_COLLECTION" envDefault:"ingest_records"`
	Path       string        `env:"DOCSTORE_PATH" envDefault:"fieldcam.db"`
	Timeout    time.Duration `env:"DOCSTORE_TIMEOUT" envDefault:"10s"`
}

// KafkaConfig configures the optional ingestion event announcement. An empty
// broker list disables the producer entirely.
type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:","`
	IngestionTopic   string        `env:"KAFKA_INGESTION_TOPIC" envDefault:"fieldcam.ingestion"`
	Retries          int           `env:"KAFKA_RETRIES" envDefault:"3"`
	CompressionCodec string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	BatchSize        int           `env:"KAFKA_BATCH_SIZE" envDefault:"100"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"1s"`
	WriteTimeout     time.Duration `env:"KAFKA_WRITE_TIMEOUT" envDefault:"10s"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=fieldcam"`
}

// MetricsConfig configures the Prometheus listener. An empty addr disables it.
type MetricsConfig struct {
	Addr string `env:"METRICS_ADDR" envDefault:":9102"`
}

// Load reads an optional .env file and parses environment variables into Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
