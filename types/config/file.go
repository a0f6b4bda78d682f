package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// FileConfig is the YAML form of SchedulerConfig. Empty values keep defaults.
type FileConfig struct {
	Instance string `yaml:"instance"`
	Storage  string `yaml:"storage"`
	Lock     string `yaml:"lock"`
	Timezone string `yaml:"timezone"`

	PollInterval       time.Duration `yaml:"poll_interval"`
	ClaimLeaseOverride time.Duration `yaml:"claim_lease_override"`
	MaxConcurrentJobs  int           `yaml:"max_concurrent_jobs"`
	DueBatchSize       int           `yaml:"due_batch_size"`

	WebhookAllowedHosts []string `yaml:"webhook_allowed_hosts"`

	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	RabbitMQ struct {
		URL        string `yaml:"url"`
		Exchange   string `yaml:"exchange"`
		Queue      string `yaml:"queue"`
		RoutingKey string `yaml:"routing_key"`
	} `yaml:"rabbitmq"`
	AI struct {
		Provider string `yaml:"provider"`
		APIKey   string `yaml:"api_key"`
		BaseURL  string `yaml:"base_url"`
		Model    string `yaml:"model"`
		MaxTurns int    `yaml:"max_turns"`
	} `yaml:"ai"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Admin struct {
		Addr      string `yaml:"addr"`
		SecretKey string `yaml:"secret_key"`
	} `yaml:"admin"`
}

// LoadFile reads a YAML config file. Unknown keys are rejected.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseYAML(data)
}

func ParseYAML(data []byte) (*FileConfig, error) {
	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	return &fc, nil
}

// Options converts the set fields into ContainerOptions.
func (fc *FileConfig) Options() []ContainerOption {
	var opts []ContainerOption
	if fc.Storage != "" {
		opts = append(opts, func(c *SchedulerConfig) error {
			d, err := ParseStorageDriver(fc.Storage)
			if err != nil {
				return err
			}
			c.StorageDriver = d
			return nil
		})
	}
	if fc.Lock != "" {
		opts = append(opts, func(c *SchedulerConfig) error {
			d, err := ParseLockDriver(fc.Lock)
			if err != nil {
				return err
			}
			c.LockDriver = d
			return nil
		})
	}
	if fc.Timezone != "" {
		opts = append(opts, WithTimezone(fc.Timezone))
	}
	if fc.PollInterval != 0 {
		opts = append(opts, WithPollInterval(fc.PollInterval))
	}
	if fc.ClaimLeaseOverride != 0 {
		opts = append(opts, WithClaimLeaseOverride(fc.ClaimLeaseOverride))
	}
	if fc.MaxConcurrentJobs != 0 {
		opts = append(opts, WithMaxConcurrentJobs(fc.MaxConcurrentJobs))
	}
	if fc.DueBatchSize != 0 {
		opts = append(opts, WithDueBatchSize(fc.DueBatchSize))
	}
	if len(fc.WebhookAllowedHosts) > 0 {
		opts = append(opts, WithWebhookAllowedHosts(fc.WebhookAllowedHosts))
	}
	if fc.Postgres.URL != "" {
		opts = append(opts, WithPostgresConfig(PostgresConfig{ConnectionUrl: fc.Postgres.URL}))
	}
	if fc.Redis.Address != "" {
		opts = append(opts, WithRedisConfig(RedisConfig{
			Address:  fc.Redis.Address,
			Password: fc.Redis.Password,
			DB:       fc.Redis.DB,
		}))
	}
	if fc.RabbitMQ.URL != "" {
		opts = append(opts, WithRabbitMQConfig(RabbitMQConfig{
			URL:         fc.RabbitMQ.URL,
			Exchange:    fc.RabbitMQ.Exchange,
			Queue:       fc.RabbitMQ.Queue,
			RoutingKey:  fc.RabbitMQ.RoutingKey,
			ContentType: "application/json",
		}))
	}
	if fc.AI.Provider != "" || fc.AI.APIKey != "" || fc.AI.Model != "" || fc.AI.BaseURL != "" || fc.AI.MaxTurns != 0 {
		opts = append(opts, WithAIConfig(AIConfig{
			Provider: fc.AI.Provider,
			APIKey:   fc.AI.APIKey,
			BaseURL:  fc.AI.BaseURL,
			Model:    fc.AI.Model,
			MaxTurns: fc.AI.MaxTurns,
		}))
	}
	if fc.Logging.Level != "" || fc.Logging.Format != "" {
		opts = append(opts, WithLogging(LoggingConfig{Level: fc.Logging.Level, Format: fc.Logging.Format}))
	}
	if fc.Admin.Addr != "" {
		opts = append(opts, WithAdminAPI(AdminConfig{Addr: fc.Admin.Addr, SecretKey: fc.Admin.SecretKey}))
	}
	return opts
}
