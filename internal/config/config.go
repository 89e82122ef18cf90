package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type MetadataConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type EngineConfig struct {
	StrictCredentials bool          `mapstructure:"strict_credentials"`
	VarcharThreshold  int           `mapstructure:"varchar_threshold"`
	LoadBatchSize     int           `mapstructure:"load_batch_size"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	TargetRole        string        `mapstructure:"target_role"`
	PostgresSSLMode   string        `mapstructure:"postgres_sslmode"`
	JobTimeout        time.Duration `mapstructure:"job_timeout"`
}

type ConnectorConfig struct {
	// Aliases maps extra db_type spellings to a canonical kind name.
	Aliases map[string]string `mapstructure:"aliases"`
}

type BatchConfig struct {
	Concurrency       int           `mapstructure:"concurrency"`
	Pause             time.Duration `mapstructure:"pause"`
	InvocationTimeout time.Duration `mapstructure:"invocation_timeout"`
	Schedule          string        `mapstructure:"schedule"`
}

type OAuthConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	AccountsURL  string        `mapstructure:"accounts_url"`
	Scope        string        `mapstructure:"scope"`
	TokenFile    string        `mapstructure:"token_file"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxAttempts  uint64        `mapstructure:"max_attempts"`
	AuthScheme   string        `mapstructure:"auth_scheme"`
}

type RestExportConfig struct {
	Entity string `mapstructure:"entity"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type SecretsConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type Config struct {
	Metadata   MetadataConfig   `mapstructure:"metadata"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Connector  ConnectorConfig  `mapstructure:"connector"`
	Batch      BatchConfig      `mapstructure:"batch"`
	OAuth      OAuthConfig      `mapstructure:"oauth"`
	RestExport RestExportConfig `mapstructure:"rest_export"`
	Server     ServerConfig     `mapstructure:"server"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("metadata.driver", "postgres")
	v.SetDefault("metadata.dsn", "")

	v.SetDefault("engine.strict_credentials", false)
	v.SetDefault("engine.varchar_threshold", 255)
	v.SetDefault("engine.load_batch_size", 1000)
	v.SetDefault("engine.http_timeout", 60*time.Second)
	v.SetDefault("engine.target_role", "target")
	v.SetDefault("engine.postgres_sslmode", "disable")
	v.SetDefault("engine.job_timeout", 10*time.Minute)

	v.SetDefault("connector.aliases", map[string]string{})

	v.SetDefault("batch.concurrency", 1)
	v.SetDefault("batch.pause", 5*time.Second)
	v.SetDefault("batch.invocation_timeout", 10*time.Minute)
	v.SetDefault("batch.schedule", "0 2 * * *")

	v.SetDefault("oauth.client_id", "")
	v.SetDefault("oauth.client_secret", "")
	v.SetDefault("oauth.accounts_url", "https://accounts.zoho.in")
	v.SetDefault("oauth.scope", "ZakyaAPI.fullaccess.all")
	v.SetDefault("oauth.token_file", "tokens.json")
	v.SetDefault("oauth.poll_interval", 5*time.Second)
	v.SetDefault("oauth.max_attempts", 60)
	v.SetDefault("oauth.auth_scheme", "Zoho-oauthtoken")

	v.SetDefault("rest_export.entity", "item_details")

	v.SetDefault("server.port", "8080")

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "ETL_BATCH")

	v.SetDefault("secrets.encryption_key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
}

// Load reads config.yaml from the given directories (default "." and
// "./config"); ETL_* environment variables override file values. A missing
// file is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("ETL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "error reading config file")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "error unmarshalling config")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate applies fallbacks for zero values and rejects unusable settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Metadata.DSN) == "" {
		return errors.New("metadata.dsn must be set")
	}
	if c.Engine.VarcharThreshold <= 0 {
		c.Engine.VarcharThreshold = 255
	}
	if c.Engine.LoadBatchSize <= 0 {
		c.Engine.LoadBatchSize = 1000
	}
	if c.Engine.TargetRole == "" {
		c.Engine.TargetRole = "target"
	}
	if c.Batch.Concurrency <= 0 {
		c.Batch.Concurrency = 1
	}
	if c.Batch.InvocationTimeout <= 0 {
		c.Batch.InvocationTimeout = 10 * time.Minute
	}
	if c.Engine.JobTimeout < 0 {
		return errors.New("engine.job_timeout must not be negative")
	}
	if c.Batch.Pause < 0 {
		return errors.New("batch.pause must not be negative")
	}
	if c.OAuth.MaxAttempts == 0 {
		c.OAuth.MaxAttempts = 60
	}
	if c.OAuth.PollInterval <= 0 {
		c.OAuth.PollInterval = 5 * time.Second
	}
	return nil
}
