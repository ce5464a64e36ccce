package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration. Values come from an optional
// config.yaml plus SERVEU_-prefixed environment variables; the .env file
// is loaded by main before this runs.
type Config struct {
	HTTPAddr string
	Dev      bool

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	KafkaBrokers []string
	KafkaTopic   string

	S3Region     string
	S3Bucket     string
	S3Endpoint   string
	S3PublicRead bool
	PresignTTL   time.Duration

	// Upload limits, mirrored client-side for pre-flight validation.
	MaxImageMB    int
	MaxDocumentMB int
	MaxUploadMB   int

	VoiceMaxDuration time.Duration
}

// Load reads configuration with sane local-dev defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SERVEU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("dev", true)
	v.SetDefault("database.dsn", "host=localhost user=serveu password=serveu dbname=serveu port=5432 sslmode=disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "chat-events")
	v.SetDefault("s3.region", "ap-southeast-2")
	v.SetDefault("s3.bucket", "serveu-media")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.public_read", false)
	v.SetDefault("s3.presign_ttl", "15m")
	v.SetDefault("upload.max_image_mb", 5)
	v.SetDefault("upload.max_document_mb", 10)
	v.SetDefault("upload.max_mb", 25)
	v.SetDefault("voice.max_duration", "600s")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		HTTPAddr:         v.GetString("http.addr"),
		Dev:              v.GetBool("dev"),
		DatabaseDSN:      v.GetString("database.dsn"),
		RedisAddr:        v.GetString("redis.addr"),
		RedisPassword:    v.GetString("redis.password"),
		RedisDB:          v.GetInt("redis.db"),
		JWTSecret:        v.GetString("jwt.secret"),
		KafkaBrokers:     strings.Split(v.GetString("kafka.brokers"), ","),
		KafkaTopic:       v.GetString("kafka.topic"),
		S3Region:         v.GetString("s3.region"),
		S3Bucket:         v.GetString("s3.bucket"),
		S3Endpoint:       v.GetString("s3.endpoint"),
		S3PublicRead:     v.GetBool("s3.public_read"),
		PresignTTL:       v.GetDuration("s3.presign_ttl"),
		MaxImageMB:       v.GetInt("upload.max_image_mb"),
		MaxDocumentMB:    v.GetInt("upload.max_document_mb"),
		MaxUploadMB:      v.GetInt("upload.max_mb"),
		VoiceMaxDuration: v.GetDuration("voice.max_duration"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt.secret (SERVEU_JWT_SECRET) is required")
	}
	return cfg, nil
}
