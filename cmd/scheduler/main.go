package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/alecthomas/kong"
	"github.com/redis/go-redis/v9"

	"github.com/RezaEskandarii/cronfire/internal/logging"
	"github.com/RezaEskandarii/cronfire/jobmanager"
	"github.com/RezaEskandarii/cronfire/pgk/webhook"
	"github.com/RezaEskandarii/cronfire/types/config"
)

type cli struct {
	Config   string `help:"YAML configuration file. Flags and environment override it." type:"existingfile" env:"CRONFIRE_CONFIG"`
	Instance string `help:"Name of this scheduler process." env:"CRONFIRE_INSTANCE"`
	Storage  string `help:"Job storage backend." env:"CRONFIRE_STORAGE"`
	Lock     string `help:"Start-up lock backend." env:"CRONFIRE_LOCK"`
	Timezone string `help:"Time zone cron expressions are evaluated in." env:"CRONFIRE_TIMEZONE"`

	DatabaseURL string `name:"database-url" help:"PostgreSQL connection URL." env:"DATABASE_URL"`
	RedisURL    string `name:"redis-url" help:"Redis URL for the redis lock backend." env:"REDIS_URL"`

	RabbitMQURL      string `name:"rabbitmq-url" help:"Publish execution events to this RabbitMQ broker." env:"RABBITMQ_URL"`
	RabbitMQExchange string `name:"rabbitmq-exchange" help:"Exchange for execution events." env:"RABBITMQ_EXCHANGE"`
	RabbitMQQueue    string `name:"rabbitmq-queue" help:"Queue for execution events." default:"cronfire.executions" env:"RABBITMQ_QUEUE"`

	ClaimLeaseMs        int64  `name:"claim-lease-ms" help:"Minimum claim lease in milliseconds." env:"SCHEDULER_CLAIM_LEASE_MS"`
	WebhookAllowedHosts string `help:"Comma separated webhook host allowlist, *.domain allowed." env:"WEBHOOK_ALLOWED_HOSTS"`
	MaxConcurrentJobs   int    `help:"Executions running at once in this process." env:"CRONFIRE_MAX_CONCURRENT_JOBS"`

	OpenAIAPIKey  string `name:"openai-api-key" help:"API key for chat_message jobs." env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `name:"openai-base-url" help:"OpenAI compatible API base URL." env:"OPENAI_BASE_URL"`
	AIModel       string `name:"ai-model" help:"Default model for chat_message jobs." env:"CRONFIRE_AI_MODEL"`

	AdminAddr   string `help:"Listen address of the operator HTTP API. Disabled when empty." env:"CRONFIRE_ADMIN_ADDR"`
	AdminSecret string `help:"HMAC key for operator API bearer tokens." env:"CRONFIRE_ADMIN_SECRET"`

	LogLevel  string `help:"Log level." default:"info" env:"LOG_LEVEL"`
	LogFormat string `help:"Log format." enum:"console,json" default:"console" env:"LOG_FORMAT"`
}

// options turns the set flags into config options. They are applied after
// the file options and win over them.
func (c *cli) options() ([]config.ContainerOption, error) {
	var opts []config.ContainerOption
	if c.Storage != "" {
		d, err := config.ParseStorageDriver(c.Storage)
		if err != nil {
			return nil, err
		}
		opts = append(opts, config.WithStorageDriver(d))
	}
	if c.Lock != "" {
		d, err := config.ParseLockDriver(c.Lock)
		if err != nil {
			return nil, err
		}
		opts = append(opts, config.WithLockDriver(d))
	}
	if c.Timezone != "" {
		opts = append(opts, config.WithTimezone(c.Timezone))
	}
	if c.DatabaseURL != "" {
		opts = append(opts, config.WithPostgresConfig(config.PostgresConfig{ConnectionUrl: c.DatabaseURL}))
	}
	if c.RedisURL != "" {
		redisOpts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = append(opts, config.WithRedisConfig(config.RedisConfig{
			Address:  redisOpts.Addr,
			Password: redisOpts.Password,
			DB:       redisOpts.DB,
		}))
	}
	if c.RabbitMQURL != "" {
		opts = append(opts, config.WithRabbitMQConfig(config.RabbitMQConfig{
			URL:        c.RabbitMQURL,
			Exchange:   c.RabbitMQExchange,
			Queue:      c.RabbitMQQueue,
			RoutingKey: c.RabbitMQQueue,
		}))
	}
	if c.ClaimLeaseMs > 0 {
		opts = append(opts, config.WithClaimLeaseOverride(time.Duration(c.ClaimLeaseMs)*time.Millisecond))
	}
	if c.WebhookAllowedHosts != "" {
		opts = append(opts, config.WithWebhookAllowedHosts(webhook.ParseAllowedHosts(c.WebhookAllowedHosts)))
	}
	if c.MaxConcurrentJobs > 0 {
		opts = append(opts, config.WithMaxConcurrentJobs(c.MaxConcurrentJobs))
	}
	if c.OpenAIAPIKey != "" {
		opts = append(opts, config.WithAIConfig(config.AIConfig{
			Provider: config.DefaultAIProvider,
			APIKey:   c.OpenAIAPIKey,
			BaseURL:  c.OpenAIBaseURL,
			Model:    c.AIModel,
		}))
	}
	if c.AdminAddr != "" {
		opts = append(opts, config.WithAdminAPI(config.AdminConfig{Addr: c.AdminAddr, SecretKey: c.AdminSecret}))
	}
	opts = append(opts, config.WithLogging(config.LoggingConfig{Level: c.LogLevel, Format: c.LogFormat}))
	return opts, nil
}

func (c *cli) schedulerConfig() (*config.SchedulerConfig, error) {
	instance := c.Instance
	var opts []config.ContainerOption

	if c.Config != "" {
		fc, err := config.LoadFile(c.Config)
		if err != nil {
			return nil, err
		}
		if instance == "" {
			instance = fc.Instance
		}
		opts = append(opts, fc.Options()...)
	}

	flagOpts, err := c.options()
	if err != nil {
		return nil, err
	}
	opts = append(opts, flagOpts...)

	if instance == "" {
		instance, _ = os.Hostname()
	}
	return config.NewSchedulerConfig(instance, opts...)
}

func main() {
	var args cli
	kctx := kong.Parse(&args,
		kong.Name("cronfire"),
		kong.Description("Polls the job store and runs due scheduled jobs."),
		kong.UsageOnError(),
	)

	cfg, err := args.schedulerConfig()
	kctx.FatalIfErrorf(err)

	log := logging.New(cfg.Logging, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := jobmanager.Run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("scheduler exited with error")
		os.Exit(1)
	}
}
