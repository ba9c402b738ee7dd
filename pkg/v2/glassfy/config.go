package glassfy

import (
	"fmt"
	"os"
	"time"

	vd "github.com/bytedance/go-tagexpr/v2/validator"
	"gopkg.in/yaml.v3"

	"glassfy/internal/v2/billing"
	"glassfy/internal/v2/cache"
	"glassfy/internal/v2/repository"
	"glassfy/pkg/v2/notify"
)

const DefaultInitializedTimeout = 10 * time.Second

func init() {
	vd.SetErrorFactory(func(failPath, msg string) error {
		return fmt.Errorf(`"validation failed: %s","msg": "%s"`, failPath, msg)
	})
}

// Config is everything Initialize needs. It is usually built in code;
// LoadConfig reads the same fields from a YAML file.
type Config struct {
	APIKey      string `yaml:"apiKey" json:"apiKey" vd:"len($)>0;msg:sprintf('invalid parameter: %v;apiKey must satisfy the expr: len($)>0',$)"`
	PackageName string `yaml:"packageName" json:"packageName" vd:"len($)>0;msg:sprintf('invalid parameter: %v;packageName must satisfy the expr: len($)>0',$)"`
	WatcherMode bool   `yaml:"watcherMode" json:"watcherMode"`

	// Framework tags requests made by a cross-platform wrapper
	Framework        string `yaml:"framework" json:"framework"`
	FrameworkVersion string `yaml:"frameworkVersion" json:"frameworkVersion"`
	DeviceID         string `yaml:"deviceId" json:"deviceId"`

	BaseURL            string        `yaml:"baseURL" json:"baseURL" vd:"len($)==0 || regexp('^https?://');msg:sprintf('invalid parameter: %v;baseURL must be an http(s) url',$)"`
	HTTPTimeout        time.Duration `yaml:"httpTimeout" json:"httpTimeout" vd:"$>=0;msg:sprintf('invalid parameter: %v;httpTimeout must satisfy the expr: $>=0',$)"`
	InitializedTimeout time.Duration `yaml:"initializedTimeout" json:"initializedTimeout" vd:"$>=0;msg:sprintf('invalid parameter: %v;initializedTimeout must satisfy the expr: $>=0',$)"`
	MaxRetries         int           `yaml:"maxRetries" json:"maxRetries" vd:"$>=0;msg:sprintf('invalid parameter: %v;maxRetries must satisfy the expr: $>=0',$)"`
	BackoffUnit        time.Duration `yaml:"backoffUnit" json:"backoffUnit" vd:"$>=0;msg:sprintf('invalid parameter: %v;backoffUnit must satisfy the expr: $>=0',$)"`

	Cache  cache.Config  `yaml:"cache" json:"cache"`
	Notify notify.Config `yaml:"notify" json:"notify"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:            repository.DefaultBaseURL,
		HTTPTimeout:        repository.DefaultTimeout,
		InitializedTimeout: DefaultInitializedTimeout,
		MaxRetries:         billing.DefaultMaxReconnectionRetries,
		BackoffUnit:        billing.DefaultBackoffUnit,
		Cache:              cache.Config{Driver: cache.DriverMemory},
	}
}

func (c *Config) Validate() error {
	return vd.Validate(c)
}

// withDefaults fills zero tuning fields from DefaultConfig
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = def.HTTPTimeout
	}
	if c.InitializedTimeout == 0 {
		c.InitializedTimeout = def.InitializedTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.BackoffUnit == 0 {
		c.BackoffUnit = def.BackoffUnit
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = def.Cache.Driver
	}
	return c
}

// LoadConfig overlays the YAML file at path on DefaultConfig
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) repository() repository.Config {
	return repository.Config{
		BaseURL:          c.BaseURL,
		APIKey:           c.APIKey,
		Timeout:          c.HTTPTimeout,
		DeviceID:         c.DeviceID,
		Framework:        c.Framework,
		FrameworkVersion: c.FrameworkVersion,
	}
}
