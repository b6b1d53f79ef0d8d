package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Service   *svcConfig
	Limits    *limitsConfig
	Jobs      *jobsConfig
	Artifacts *artifactsConfig
	Database  *dbConfig
	Events    *eventsConfig
}

type svcConfig struct {
	Address        string   `envconfig:"NINJAPIVOT_ADDRESS" default:":8080"`
	MetricsAddress string   `envconfig:"NINJAPIVOT_METRICS_ADDRESS" default:":8081"`
	BaseUrl        string   `envconfig:"NINJAPIVOT_BASE_URL" default:"http://localhost:8080"`
	LogLevel       string   `envconfig:"NINJAPIVOT_LOG_LEVEL" default:"info"`
	CorsOrigins    []string `envconfig:"NINJAPIVOT_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	UploadRPS      float64  `envconfig:"NINJAPIVOT_UPLOAD_RPS" default:"2"`
	UploadBurst    int      `envconfig:"NINJAPIVOT_UPLOAD_BURST" default:"5"`
}

type limitsConfig struct {
	MaxUploadBytes int64 `envconfig:"NINJAPIVOT_MAX_UPLOAD_BYTES" default:"5242880" validate:"gt=0"`
	MaxRows        int   `envconfig:"NINJAPIVOT_MAX_ROWS" default:"10000" validate:"gt=0"`
	MaxColumns     int   `envconfig:"NINJAPIVOT_MAX_COLUMNS" default:"100" validate:"gt=0"`
}

type jobsConfig struct {
	Timeout           time.Duration `envconfig:"NINJAPIVOT_JOB_TIMEOUT" default:"2m" validate:"gt=0"`
	Retention         time.Duration `envconfig:"NINJAPIVOT_JOB_RETENTION" default:"1h" validate:"gt=0"`
	EvictionInterval  time.Duration `envconfig:"NINJAPIVOT_JOB_EVICTION_INTERVAL" default:"1m" validate:"gt=0"`
	HeartbeatInterval time.Duration `envconfig:"NINJAPIVOT_STREAM_HEARTBEAT_INTERVAL" default:"15s" validate:"gt=0"`
}

type artifactsConfig struct {
	// Backend selects where finished reports are kept: "filesystem" or "s3".
	Backend   string `envconfig:"NINJAPIVOT_ARTIFACTS_BACKEND" default:"filesystem" validate:"oneof=filesystem s3"`
	Directory string `envconfig:"NINJAPIVOT_ARTIFACTS_DIR" default:"/tmp/ninjapivot/artifacts"`

	S3Endpoint  string `envconfig:"NINJAPIVOT_S3_ENDPOINT" default:""`
	S3Bucket    string `envconfig:"NINJAPIVOT_S3_BUCKET" default:"ninjapivot-artifacts"`
	S3AccessKey string `envconfig:"NINJAPIVOT_S3_ACCESS_KEY" default:""`
	S3SecretKey string `envconfig:"NINJAPIVOT_S3_SECRET_KEY" default:""`
	S3UseSSL    bool   `envconfig:"NINJAPIVOT_S3_USE_SSL" default:"false"`
}

type dbConfig struct {
	Type     string `envconfig:"NINJAPIVOT_DB_TYPE" default:"sqlite" validate:"oneof=pgsql sqlite"`
	Hostname string `envconfig:"NINJAPIVOT_DB_HOST" default:"localhost"`
	Port     string `envconfig:"NINJAPIVOT_DB_PORT" default:"5432"`
	Name     string `envconfig:"NINJAPIVOT_DB_NAME" default:"/tmp/ninjapivot/jobs.db"`
	User     string `envconfig:"NINJAPIVOT_DB_USER" default:"admin"`
	Password string `envconfig:"NINJAPIVOT_DB_PASS" default:"adminpass"`
}

type eventsConfig struct {
	// Writer selects the lifecycle event sink: "stdout" or "kafka".
	Writer       string   `envconfig:"NINJAPIVOT_EVENTS_WRITER" default:"stdout" validate:"oneof=stdout kafka"`
	KafkaBrokers []string `envconfig:"NINJAPIVOT_KAFKA_BROKERS" default:""`
	KafkaTopic   string   `envconfig:"NINJAPIVOT_KAFKA_TOPIC" default:"ninjapivot.reports.events"`
	KafkaVersion string   `envconfig:"NINJAPIVOT_KAFKA_VERSION" default:""`
	ClientID     string   `envconfig:"NINJAPIVOT_KAFKA_CLIENT_ID" default:"ninjapivot-api"`
}

// New processes the environment into a Config and validates it. The config
// is a process-wide singleton, repeated calls return the same instance.
func New() (*Config, error) {
	if singleConfig == nil {
		cfg := new(Config)
		if err := envconfig.Process("", cfg); err != nil {
			return nil, err
		}
		if err := validator.New().Struct(cfg); err != nil {
			return nil, err
		}
		singleConfig = cfg
	}
	return singleConfig, nil
}
