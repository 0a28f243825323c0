// Package config loads the background worker's settings from the environment,
// following the same envconfig + godotenv + cobra pattern the rest of this
// lineage of bots uses for configuration.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	defaultQueueName          string = "image_source_background"
	defaultWorkerCount        int    = 2
	defaultLogLevel           string = "info"
	defaultHealthPort         int    = 9090
	defaultMaxSourceDistance  uint64 = 3
	defaultNoisySourceCount   int    = 4
	defaultAlbumMemoryTTLSecs int    = 300
	defaultDownloadCapBytes   int64  = 50 * 1024 * 1024
	defaultMaxJobRetry        int    = 25
)

// ValueOf is the process-wide configuration, populated by Load. Mirrors the
// teacher's package-level ValueOf singleton.
var ValueOf = &config{
	QueueName:          defaultQueueName,
	WorkerCount:        defaultWorkerCount,
	LogLevel:           defaultLogLevel,
	HealthPort:         defaultHealthPort,
	MaxSourceDistance:  defaultMaxSourceDistance,
	NoisySourceCount:   defaultNoisySourceCount,
	AlbumMemoryTTLSecs: defaultAlbumMemoryTTLSecs,
	DownloadCapBytes:   defaultDownloadCapBytes,
	MaxJobRetry:        defaultMaxJobRetry,
}

type config struct {
	// Core external collaborators
	DatabaseURL        string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL           string `envconfig:"REDIS_URL" required:"true"`
	TelegramAPIID      int32  `envconfig:"TELEGRAM_API_ID" required:"true"`
	TelegramAPIHash    string `envconfig:"TELEGRAM_API_HASH" required:"true"`
	TelegramBotToken   string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	FuzzySearchToken   string `envconfig:"FUZZYSEARCH_API_TOKEN" required:"true"`
	FuzzySearchBaseURL string `envconfig:"FUZZYSEARCH_BASE_URL" default:"https://fuzzysearch.net"`

	// Per-site credentials. Loaded here; no adapter in this repository reads them.
	FurAffinityCookieA string `envconfig:"FURAFFINITY_COOKIE_A"`
	FurAffinityCookieB string `envconfig:"FURAFFINITY_COOKIE_B"`
	WeasylAPIToken     string `envconfig:"WEASYL_API_TOKEN"`
	InkbunnyUsername   string `envconfig:"INKBUNNY_USERNAME"`
	InkbunnyPassword   string `envconfig:"INKBUNNY_PASSWORD"`
	E621Login          string `envconfig:"E621_LOGIN"`
	E621APIKey         string `envconfig:"E621_API_KEY"`
	TwitterConsumerKey string `envconfig:"TWITTER_CONSUMER_KEY"`
	TwitterConsumerSec string `envconfig:"TWITTER_CONSUMER_SECRET"`

	// Worker / queue tuning
	QueueName   string `envconfig:"QUEUE_NAME"`
	WorkerCount int    `envconfig:"WORKER_COUNT"`
	MaxJobRetry int    `envconfig:"MAX_JOB_RETRY"`

	// Observability
	Dev                 bool   `envconfig:"DEV" default:"false"`
	LogLevel            string `envconfig:"LOG_LEVEL"`
	LogFormat           string `envconfig:"LOG_FORMAT" default:"text"`
	HealthPort          int    `envconfig:"HEALTH_PORT"`
	TraceCollectorEndpt string `envconfig:"TRACE_COLLECTOR_ENDPOINT"`

	// Algorithm constants, overridable for tests/tuning but not exposed as CLI flags.
	MaxSourceDistance  uint64 `envconfig:"MAX_SOURCE_DISTANCE"`
	NoisySourceCount   int    `envconfig:"NOISY_SOURCE_COUNT"`
	AlbumMemoryTTLSecs int    `envconfig:"ALBUM_MEMORY_TTL_SECONDS"`
	DownloadCapBytes   int64  `envconfig:"DOWNLOAD_CAP_BYTES"`
}

func (c *config) loadFromEnvFile(log *zap.Logger) {
	envPath := filepath.Clean("sourcewatch.env")
	log.Sugar().Infof("Trying to load ENV vars from %s", envPath)
	if err := godotenv.Load(envPath); err != nil {
		if os.IsNotExist(err) {
			log.Sugar().Info("ENV file not found, relying on process environment")
		} else {
			log.Fatal("Unknown error while parsing env file", zap.Error(err))
		}
	}
}

// SetFlagsFromConfig registers cobra flags mirroring the envconfig fields that
// operators are most likely to want to override per-invocation.
func SetFlagsFromConfig(cmd *cobra.Command) {
	cmd.Flags().Bool("dev", ValueOf.Dev, "Enable development mode")
	cmd.Flags().String("log-level", ValueOf.LogLevel, "Log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", "text", "Log format (text or json)")
	cmd.Flags().Int("worker-count", ValueOf.WorkerCount, "Number of concurrent job workers")
	cmd.Flags().Int("health-port", ValueOf.HealthPort, "Port for the health/status HTTP server")
}

func (c *config) loadConfigFromArgs(cmd *cobra.Command) {
	if cmd.Flags().Changed("dev") {
		dev, _ := cmd.Flags().GetBool("dev")
		os.Setenv("DEV", strconv.FormatBool(dev))
	}
	if cmd.Flags().Changed("log-level") {
		level, _ := cmd.Flags().GetString("log-level")
		os.Setenv("LOG_LEVEL", level)
	}
	if cmd.Flags().Changed("log-format") {
		format, _ := cmd.Flags().GetString("log-format")
		os.Setenv("LOG_FORMAT", format)
	}
	if cmd.Flags().Changed("worker-count") {
		n, _ := cmd.Flags().GetInt("worker-count")
		os.Setenv("WORKER_COUNT", strconv.Itoa(n))
	}
	if cmd.Flags().Changed("health-port") {
		n, _ := cmd.Flags().GetInt("health-port")
		os.Setenv("HEALTH_PORT", strconv.Itoa(n))
	}
}

// Load populates ValueOf from the environment (after an optional env file and
// cobra flag overrides), applying the same precedence as the teacher:
// env file < process environment < explicit flags.
func Load(log *zap.Logger, cmd *cobra.Command) {
	log = log.Named("config")
	defer log.Info("loaded config")

	ValueOf.loadFromEnvFile(log)
	ValueOf.loadConfigFromArgs(cmd)

	if err := envconfig.Process("", ValueOf); err != nil {
		log.Fatal("error while parsing env variables", zap.Error(err))
	}

	if ValueOf.QueueName == "" {
		ValueOf.QueueName = defaultQueueName
	}
	if ValueOf.WorkerCount <= 0 {
		log.Sugar().Warnf("WORKER_COUNT must be positive, defaulting to %d", defaultWorkerCount)
		ValueOf.WorkerCount = defaultWorkerCount
	}
	if ValueOf.LogLevel == "" {
		ValueOf.LogLevel = defaultLogLevel
	}
	if ValueOf.HealthPort == 0 {
		ValueOf.HealthPort = defaultHealthPort
	}
	if ValueOf.MaxSourceDistance == 0 {
		ValueOf.MaxSourceDistance = defaultMaxSourceDistance
	}
	if ValueOf.NoisySourceCount == 0 {
		ValueOf.NoisySourceCount = defaultNoisySourceCount
	}
	if ValueOf.AlbumMemoryTTLSecs == 0 {
		ValueOf.AlbumMemoryTTLSecs = defaultAlbumMemoryTTLSecs
	}
	if ValueOf.DownloadCapBytes == 0 {
		ValueOf.DownloadCapBytes = defaultDownloadCapBytes
	}
	if ValueOf.MaxJobRetry == 0 {
		ValueOf.MaxJobRetry = defaultMaxJobRetry
	}
}

