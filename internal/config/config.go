package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	BucketLibrary string
	UseSSL        bool
	Region        string
}

type RekognitionConfig struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

// Configured reports whether the vision provider can be constructed at all.
// When false the moderation service fails closed rather than skipping checks.
func (c RekognitionConfig) Configured() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

type ModerationConfig struct {
	IdentityThreshold   float64
	LabelThreshold      float64
	FaceConfidenceFloor float64
	MinorHardFlag       float64
	IdentityHardFlag    float64
	IdentitySoftFlag    float64

	RateCeilingPerMinute int
	MinCallDelay         time.Duration

	BatchConcurrency int
	MaxBatchSize     int

	FetchTimeout    time.Duration
	RetentionWindow time.Duration
	EvidenceTTL     time.Duration
	AppealBoost     time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Rekognition      RekognitionConfig
	Moderation       ModerationConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("IMAGEGUARD")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.bucketlibrary", "imageguard-library")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("rekognition.region", "us-east-1")

	v.SetDefault("moderation.identitythreshold", 90)
	v.SetDefault("moderation.labelthreshold", 75)
	v.SetDefault("moderation.faceconfidencefloor", 80)
	v.SetDefault("moderation.minorhardflag", 75)
	v.SetDefault("moderation.identityhardflag", 95)
	v.SetDefault("moderation.identitysoftflag", 85)

	v.SetDefault("moderation.rateceilingperminute", 50)
	v.SetDefault("moderation.mincalldelay", "100ms")

	v.SetDefault("moderation.batchconcurrency", 5)
	v.SetDefault("moderation.maxbatchsize", 14)

	v.SetDefault("moderation.fetchtimeout", "8s")
	v.SetDefault("moderation.retentionwindow", "168h") // 7 days
	v.SetDefault("moderation.evidencettl", "24h")
	v.SetDefault("moderation.appealboost", "720h")
}
