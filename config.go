package gdao

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Config represents the configuration for a session provider
type Config struct {
	// Provider selects the registered session provider (gorm, bun, mongo)
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Connection details
	Driver        string `json:"driver" yaml:"driver" mapstructure:"driver"`
	ConnectionURL string `json:"connection_url" yaml:"connection_url" mapstructure:"connection_url"`
	Host          string `json:"host" yaml:"host" mapstructure:"host"`
	Port          int    `json:"port" yaml:"port" mapstructure:"port"`
	Database      string `json:"database" yaml:"database" mapstructure:"database"`
	Username      string `json:"username" yaml:"username" mapstructure:"username"`
	Password      string `json:"password" yaml:"password" mapstructure:"password"`

	// Connection pool settings
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`

	// Additional options, keyed by provider name
	Options map[string]interface{} `json:"options" yaml:"options" mapstructure:"options"`

	// SSL/TLS configuration
	SSL SSLConfig `json:"ssl" yaml:"ssl" mapstructure:"ssl"`
}

// SSLConfig represents SSL/TLS configuration
type SSLConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Mode     string `json:"mode" yaml:"mode" mapstructure:"mode"`
	CertFile string `json:"cert_file" yaml:"cert_file" mapstructure:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file" mapstructure:"key_file"`
	CAFile   string `json:"ca_file" yaml:"ca_file" mapstructure:"ca_file"`
}

// ProviderOptions returns the options sub-map for the named provider, or nil.
func (c Config) ProviderOptions(name string) map[string]interface{} {
	if c.Options == nil {
		return nil
	}
	if opts, ok := c.Options[name].(map[string]interface{}); ok {
		return opts
	}
	return nil
}

// SetDefaults registers the default configuration values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("provider", "gorm")
	v.SetDefault("driver", "sqlite")
	v.SetDefault("database", "file::memory:?cache=shared")
	v.SetDefault("max_open_conns", 1)
	v.SetDefault("options.gorm.log_level", "silent")
	v.SetDefault("options.bun.log_level", "silent")
}

// NewViper returns a viper instance with defaults and GDAO_* environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("GDAO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// LoadConfig reads configuration from defaults, an optional file and the
// environment. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}
	return LoadConfigWithViper(v)
}

// LoadConfigWithViper unmarshals configuration from a prepared viper instance
func LoadConfigWithViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to unmarshal config")
	}
	return cfg, nil
}
