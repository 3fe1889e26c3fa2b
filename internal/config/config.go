package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	S3         S3Config
	Classifier ClassifierConfig
	Detection  DetectionConfig
	RateLimit  RateLimitConfig
	FFmpeg     FFmpegConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	VideoBucket     string
	FrameBucket     string
	LinkTTLMinutes  int
}

type ClassifierConfig struct {
	CheckpointPath   string
	VisionServiceURL string
	VisionTimeout    int // seconds
	Denoise          bool
	MedianFilter     bool
}

type DetectionConfig struct {
	SnapshotCount int
	Queue         string
	MaxRetry      int
}

type RateLimitConfig struct {
	DetectPerHour int
}

type FFmpegConfig struct {
	FFmpegPath  string
	FFprobePath string
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("S3_ACCESS_KEY_ID")
	readSecret("S3_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("s3.endpoint", "S3_ENDPOINT")
	_ = viper.BindEnv("s3.region", "S3_REGION")
	_ = viper.BindEnv("s3.access_key_id", "S3_ACCESS_KEY_ID")
	_ = viper.BindEnv("s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("s3.video_bucket", "S3_VIDEO_BUCKET")
	_ = viper.BindEnv("s3.frame_bucket", "S3_FRAME_BUCKET")
	_ = viper.BindEnv("s3.link_ttl_minutes", "S3_LINK_TTL_MINUTES")
	_ = viper.BindEnv("classifier.checkpoint_path", "CLASSIFIER_CHECKPOINT_PATH")
	_ = viper.BindEnv("classifier.vision_service_url", "VISION_SERVICE_URL")
	_ = viper.BindEnv("classifier.vision_timeout", "VISION_SERVICE_TIMEOUT")
	_ = viper.BindEnv("classifier.denoise", "CLASSIFIER_DENOISE")
	_ = viper.BindEnv("classifier.median_filter", "CLASSIFIER_MEDIAN_FILTER")
	_ = viper.BindEnv("detection.snapshot_count", "DETECTION_SNAPSHOT_COUNT")
	_ = viper.BindEnv("detection.queue", "DETECTION_QUEUE")
	_ = viper.BindEnv("detection.max_retry", "DETECTION_MAX_RETRY")
	_ = viper.BindEnv("ratelimit.detect_per_hour", "RATELIMIT_DETECT_PER_HOUR")
	_ = viper.BindEnv("ffmpeg.ffmpeg_path", "FFMPEG_PATH")
	_ = viper.BindEnv("ffmpeg.ffprobe_path", "FFPROBE_PATH")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("s3.region", "eu-west-1")
	viper.SetDefault("s3.video_bucket", "detection-video")
	viper.SetDefault("s3.frame_bucket", "detection-frame")
	viper.SetDefault("s3.link_ttl_minutes", 15)
	viper.SetDefault("classifier.checkpoint_path", "./checkpoints/statistical.json")
	viper.SetDefault("classifier.vision_service_url", "http://localhost:10000")
	viper.SetDefault("classifier.vision_timeout", 30)
	viper.SetDefault("classifier.denoise", false)
	viper.SetDefault("classifier.median_filter", false)
	viper.SetDefault("detection.snapshot_count", 3)
	viper.SetDefault("detection.queue", "evidence")
	viper.SetDefault("detection.max_retry", 5)
	viper.SetDefault("ratelimit.detect_per_hour", 30)
	viper.SetDefault("ffmpeg.ffmpeg_path", "ffmpeg")
	viper.SetDefault("ffmpeg.ffprobe_path", "ffprobe")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		S3: S3Config{
			Endpoint:        viper.GetString("s3.endpoint"),
			Region:          viper.GetString("s3.region"),
			AccessKeyID:     viper.GetString("s3.access_key_id"),
			SecretAccessKey: viper.GetString("s3.secret_access_key"),
			VideoBucket:     viper.GetString("s3.video_bucket"),
			FrameBucket:     viper.GetString("s3.frame_bucket"),
			LinkTTLMinutes:  viper.GetInt("s3.link_ttl_minutes"),
		},
		Classifier: ClassifierConfig{
			CheckpointPath:   viper.GetString("classifier.checkpoint_path"),
			VisionServiceURL: viper.GetString("classifier.vision_service_url"),
			VisionTimeout:    viper.GetInt("classifier.vision_timeout"),
			Denoise:          viper.GetBool("classifier.denoise"),
			MedianFilter:     viper.GetBool("classifier.median_filter"),
		},
		Detection: DetectionConfig{
			SnapshotCount: viper.GetInt("detection.snapshot_count"),
			Queue:         viper.GetString("detection.queue"),
			MaxRetry:      viper.GetInt("detection.max_retry"),
		},
		RateLimit: RateLimitConfig{
			DetectPerHour: viper.GetInt("ratelimit.detect_per_hour"),
		},
		FFmpeg: FFmpegConfig{
			FFmpegPath:  viper.GetString("ffmpeg.ffmpeg_path"),
			FFprobePath: viper.GetString("ffmpeg.ffprobe_path"),
		},
	}

	return cfg, nil
}
