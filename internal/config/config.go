package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/docker/go-units"
	"github.com/kelseyhightower/envconfig"
)

// minComposePartSize is the smallest source object MinIO accepts in a compose request (except the last one).
const minComposePartSize = 5 * units.MiB

type Config struct {
	Env      Env
	Auth     AuthConfig
	Minio    MinioConfig
	Upload   UploadConfig
	Playback PlaybackConfig
	Progress ProgressConfig
	Cleanup  CleanupConfig
	NATS     NATSConfig
	Database DatabaseConfig
	Server   ServerConfig
}

type Env struct {
	Env string `envconfig:"ENV" default:"DEV"`
}

type ServerConfig struct {
	Host string `envconfig:"SERVER_HOST" default:"localhost"`
	Port string `envconfig:"SERVER_PORT" default:"8080"`
}

type AuthConfig struct {
	JWTSecret string `envconfig:"AUTH_JWT_SECRET" required:"true"`
}

type MinioConfig struct {
	Endpoint           string        `envconfig:"MINIO_ENDPOINT" required:"true"`
	BucketName         string        `envconfig:"MINIO_BUCKET_NAME" required:"true"`
	AccessKey          string        `envconfig:"MINIO_ACCESS_KEY" required:"true"`
	SecretKey          string        `envconfig:"MINIO_SECRET_KEY" required:"true"`
	PublicBaseURL      string        `envconfig:"MINIO_PUBLIC_BASE_URL"`
	PlaybackURLTTL     time.Duration `envconfig:"MINIO_PLAYBACK_URL_TTL" default:"1h"`
	UseSSL             bool          `envconfig:"MINIO_USE_SSL" default:"false"`
	PartSizeForUploads ByteSize      `envconfig:"MINIO_PUT_PART_SIZE" default:"64MB"`
}

// UploadConfig parameterises the single upload engine (direct, chunked and parallel-chunked variants).
type UploadConfig struct {
	DirectThreshold  ByteSize      `envconfig:"UPLOAD_DIRECT_THRESHOLD" default:"500MB"`
	MaxFileSize      ByteSize      `envconfig:"UPLOAD_MAX_FILE_SIZE" default:"3GB"`
	ChunkSize        ByteSize      `envconfig:"UPLOAD_CHUNK_SIZE" default:"10MB"`
	Concurrency      int           `envconfig:"UPLOAD_CONCURRENCY" default:"3"`
	MaxRetries       uint          `envconfig:"UPLOAD_MAX_RETRIES" default:"3"`
	RetryWait        time.Duration `envconfig:"UPLOAD_RETRY_WAIT" default:"2s"`
	AttemptTimeout   time.Duration `envconfig:"UPLOAD_ATTEMPT_TIMEOUT" default:"60s"`
	DirectTimeout    time.Duration `envconfig:"UPLOAD_DIRECT_TIMEOUT" default:"10m"`
	ProgressInterval time.Duration `envconfig:"UPLOAD_PROGRESS_INTERVAL" default:"1s"`
	MaxChunks        int           `envconfig:"UPLOAD_MAX_CHUNKS" default:"10000"`
	// PushgatewayURL receives the uploader's metrics at the end of a run when set
	PushgatewayURL   string        `envconfig:"UPLOAD_PUSHGATEWAY_URL"`
}

// Validate checks the combinations envconfig cannot express.
func (c UploadConfig) Validate() error {
	if c.ChunkSize < minComposePartSize {
		return fmt.Errorf("upload chunk size %s is below the %s minimum", units.BytesSize(float64(c.ChunkSize)), units.BytesSize(float64(minComposePartSize)))
	}
	if c.Concurrency < 1 {
		return errors.New("upload concurrency must be at least 1")
	}
	if c.DirectThreshold > c.MaxFileSize {
		return errors.New("upload direct threshold exceeds max file size")
	}
	if c.ProgressInterval <= 0 {
		return errors.New("upload progress interval must be positive")
	}
	return nil
}

type PlaybackConfig struct {
	CompletionThreshold    int           `envconfig:"PLAYBACK_COMPLETION_THRESHOLD" default:"90"`
	ReportInterval         time.Duration `envconfig:"PLAYBACK_REPORT_INTERVAL" default:"15s"`
	SkipPreventionDisabled bool          `envconfig:"PLAYBACK_SKIP_PREVENTION_DISABLED" default:"false"`
	MaxTickGap             time.Duration `envconfig:"PLAYBACK_MAX_TICK_GAP" default:"2s"`
	RewindStep             time.Duration `envconfig:"PLAYBACK_REWIND_STEP" default:"5s"`
	APIBaseURL             string        `envconfig:"PLAYBACK_API_BASE_URL" default:"http://localhost:8080"`
	APIToken               string        `envconfig:"PLAYBACK_API_TOKEN"`
}

type ProgressConfig struct {
	AsyncWrites bool `envconfig:"PROGRESS_ASYNC_WRITES" default:"false"`
	// Subject is copied from NATSConfig.Subject by Load so publisher and stream always agree.
	Subject string `ignored:"true"`
}

type CleanupConfig struct {
	Every       time.Duration `envconfig:"CLEANUP_EVERY" default:"15m"`
	ChunkMaxAge time.Duration `envconfig:"CLEANUP_CHUNK_MAX_AGE" default:"24h"`
}

type NATSConfig struct {
	URL          string `envconfig:"NATS_URL"`
	StreamName   string `envconfig:"NATS_STREAM_NAME" default:"PROGRESS"`
	ConsumerName string `envconfig:"NATS_CONSUMER_NAME" default:"progress-worker"`
	Subject      string `envconfig:"NATS_SUBJECT" default:"progress.recorded"`
}

// Enabled reports whether a NATS server has been configured.
func (c NATSConfig) Enabled() bool {
	return c.URL != ""
}

type DatabaseConfig struct {
	Host           string        `envconfig:"DB_HOST" required:"true"`
	Port           int           `envconfig:"DB_PORT" default:"5432"`
	User           string        `envconfig:"DB_USER" required:"true"`
	Password       string        `envconfig:"DB_PASSWORD" required:"true"`
	Name           string        `envconfig:"DB_NAME" required:"true"`
	SSLMode        string        `envconfig:"DB_SSLMODE" default:"disable"`
	MaxOpenCons    int           `envconfig:"DB_MAX_OPEN_CONS" default:"25"`
	MaxIdleCons    int           `envconfig:"DB_MAX_IDLE_CONS" default:"5"`
	ConMaxLifeTime time.Duration `envconfig:"DB_CONMAX_LIFE_TIME" default:"5m"`
}

// DSN builds a lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Upload.Validate(); err != nil {
		return nil, err
	}
	cfg.Progress.Subject = cfg.NATS.Subject

	return &cfg, nil
}

// LoadUploader loads only what the uploader CLI needs. A dry run touches neither MinIO nor Postgres.
func LoadUploader(dryRun bool) (*Config, error) {
	var cfg Config
	sections := []any{&cfg.Env, &cfg.Upload}
	if !dryRun {
		sections = append(sections, &cfg.Minio, &cfg.Database)
	}
	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return nil, err
		}
	}
	if err := cfg.Upload.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadPlayer loads only the playback section.
func LoadPlayer() (*PlaybackConfig, error) {
	var cfg PlaybackConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadWorker loads what the progress worker needs.
func LoadWorker() (*Config, error) {
	var cfg Config
	for _, section := range []any{&cfg.Env, &cfg.NATS, &cfg.Database, &cfg.Server} {
		if err := envconfig.Process("", section); err != nil {
			return nil, err
		}
	}
	if !cfg.NATS.Enabled() {
		return nil, errors.New("NATS_URL is required")
	}
	return &cfg, nil
}

// LoadDatabase loads only the database section.
func LoadDatabase() (*DatabaseConfig, error) {
	var cfg DatabaseConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
