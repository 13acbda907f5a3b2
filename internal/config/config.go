package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Notifier kinds.
const (
	NotifyECS     = "ecs"
	NotifyWebhook = "webhook"
	NotifyNone    = "none"
)

// MaxAttemptsLimit bounds source.max_attempts so retry delays stay finite.
const MaxAttemptsLimit = 10

// ErrMissing marks a required setting that has no value.
var ErrMissing = errors.New("required value missing")

// Error reports every problem found while validating a Config.
type Error struct {
	// Missing lists the names of required settings without a value.
	Missing []string
	Err     error
}

func (e *Error) Error() string {
	return "configuration: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config defines configuration for a sync run.
type Config struct {
	Source      SourceConfig      `yaml:"source"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	Blob        BlobConfig        `yaml:"blob"`
	Notify      NotifyConfig      `yaml:"notify"`
	AWS         AWSConfig         `yaml:"aws"`
	LogLevel    string            `yaml:"log_level"`
}

// SourceConfig describes the remote artifact and how to fetch it.
type SourceConfig struct {
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	MaxSize      int64         `yaml:"max_size"`
	UserAgent    string        `yaml:"user_agent"`
}

// FingerprintConfig locates the stored fingerprint record.
type FingerprintConfig struct {
	Parameter string `yaml:"parameter"`
	// StoreURL selects a gocloud bucket for the record. Empty means AWS SSM.
	StoreURL string `yaml:"store_url"`
}

// BlobConfig is the destination of the artifact.
type BlobConfig struct {
	// Bucket is either a plain S3 bucket name or a gocloud bucket URL.
	Bucket      string `yaml:"bucket"`
	Object      string `yaml:"object"`
	ContentType string `yaml:"content_type"`
}

// NotifyConfig identifies the dependent service.
type NotifyConfig struct {
	Kind       string            `yaml:"kind"`
	Cluster    string            `yaml:"cluster"`
	Service    string            `yaml:"service"`
	WebhookURL string            `yaml:"webhook_url"`
	Headers    map[string]string `yaml:"headers"`
	Timeout    time.Duration     `yaml:"timeout"`
}

// AWSConfig overrides the AWS SDK defaults.
type AWSConfig struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// Enabled reports whether a notifier is configured.
func (n NotifyConfig) Enabled() bool {
	return n.Kind != NotifyNone
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Source: SourceConfig{
			Timeout:      60 * time.Second,
			MaxAttempts:  3,
			RetryBackoff: time.Second,
			UserAgent:    "PagoPA-SEND-CscaMasterlistSync",
		},
		Blob: BlobConfig{
			ContentType: "application/zip",
		},
		Notify: NotifyConfig{
			Kind:    NotifyECS,
			Timeout: 10 * time.Second,
		},
		LogLevel: "info",
	}
}

// yamlConfig is used for YAML unmarshaling with string durations and sizes.
type yamlConfig struct {
	Source struct {
		URL          string `yaml:"url"`
		Timeout      string `yaml:"timeout"`
		MaxAttempts  int    `yaml:"max_attempts"`
		RetryBackoff string `yaml:"retry_backoff"`
		MaxSize      string `yaml:"max_size"`
		UserAgent    string `yaml:"user_agent"`
	} `yaml:"source"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	Blob        BlobConfig        `yaml:"blob"`
	Notify      struct {
		Kind       string            `yaml:"kind"`
		Cluster    string            `yaml:"cluster"`
		Service    string            `yaml:"service"`
		WebhookURL string            `yaml:"webhook_url"`
		Headers    map[string]string `yaml:"headers"`
		Timeout    string            `yaml:"timeout"`
	} `yaml:"notify"`
	AWS      AWSConfig `yaml:"aws"`
	LogLevel string    `yaml:"log_level"`
}

// LoadFromFile loads configuration from a YAML file on top of Default.
// ${VAR} and ${VAR:-default} references are expanded before parsing.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	override := Config{
		Fingerprint: yc.Fingerprint,
		Blob:        yc.Blob,
		AWS:         yc.AWS,
		LogLevel:    yc.LogLevel,
	}
	override.Source.URL = yc.Source.URL
	override.Source.MaxAttempts = yc.Source.MaxAttempts
	override.Source.UserAgent = yc.Source.UserAgent
	override.Notify = NotifyConfig{
		Kind:       yc.Notify.Kind,
		Cluster:    yc.Notify.Cluster,
		Service:    yc.Notify.Service,
		WebhookURL: yc.Notify.WebhookURL,
		Headers:    yc.Notify.Headers,
	}

	durations := []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"source.timeout", yc.Source.Timeout, &override.Source.Timeout},
		{"source.retry_backoff", yc.Source.RetryBackoff, &override.Source.RetryBackoff},
		{"notify.timeout", yc.Notify.Timeout, &override.Notify.Timeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.field, err)
		}
		*d.dst = v
	}

	if yc.Source.MaxSize != "" {
		size, err := ParseBytes(yc.Source.MaxSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse source.max_size: %w", err)
		}
		override.Source.MaxSize = size
	}

	return Default().Merge(override), nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the MLSYNC_ prefix.
func (c *Config) LoadFromEnv() error {
	strs := map[string]*string{
		"MLSYNC_SOURCE_URL":            &c.Source.URL,
		"MLSYNC_USER_AGENT":            &c.Source.UserAgent,
		"MLSYNC_FINGERPRINT_PARAMETER": &c.Fingerprint.Parameter,
		"MLSYNC_FINGERPRINT_STORE_URL": &c.Fingerprint.StoreURL,
		"MLSYNC_BUCKET":                &c.Blob.Bucket,
		"MLSYNC_OBJECT":                &c.Blob.Object,
		"MLSYNC_CONTENT_TYPE":          &c.Blob.ContentType,
		"MLSYNC_NOTIFY_KIND":           &c.Notify.Kind,
		"MLSYNC_ECS_CLUSTER":           &c.Notify.Cluster,
		"MLSYNC_ECS_SERVICE":           &c.Notify.Service,
		"MLSYNC_WEBHOOK_URL":           &c.Notify.WebhookURL,
		"MLSYNC_AWS_REGION":            &c.AWS.Region,
		"MLSYNC_AWS_ENDPOINT":          &c.AWS.Endpoint,
		"MLSYNC_LOG_LEVEL":             &c.LogLevel,
	}
	for name, dst := range strs {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("MLSYNC_SOURCE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse MLSYNC_SOURCE_TIMEOUT: %w", err)
		}
		c.Source.Timeout = d
	}
	if v := os.Getenv("MLSYNC_SOURCE_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse MLSYNC_SOURCE_MAX_ATTEMPTS: %w", err)
		}
		c.Source.MaxAttempts = n
	}
	if v := os.Getenv("MLSYNC_SOURCE_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse MLSYNC_SOURCE_RETRY_BACKOFF: %w", err)
		}
		c.Source.RetryBackoff = d
	}
	if v := os.Getenv("MLSYNC_SOURCE_MAX_SIZE"); v != "" {
		size, err := ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse MLSYNC_SOURCE_MAX_SIZE: %w", err)
		}
		c.Source.MaxSize = size
	}
	if v := os.Getenv("MLSYNC_AWS_USE_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse MLSYNC_AWS_USE_PATH_STYLE: %w", err)
		}
		c.AWS.UsePathStyle = b
	}

	return nil
}

// Validate checks every required setting and reports all problems at once.
func (c *Config) Validate() error {
	v := &validator{}

	v.require("source.url", c.Source.URL)
	v.require("fingerprint.parameter", c.Fingerprint.Parameter)
	v.require("blob.bucket", c.Blob.Bucket)
	v.require("blob.object", c.Blob.Object)

	if c.Source.Timeout <= 0 {
		v.fail(errors.New("source.timeout must be positive"))
	}
	if c.Source.MaxAttempts <= 0 {
		v.fail(errors.New("source.max_attempts must be positive"))
	} else if c.Source.MaxAttempts > MaxAttemptsLimit {
		v.fail(fmt.Errorf("source.max_attempts must be at most %d", MaxAttemptsLimit))
	}
	if c.Source.RetryBackoff < 0 {
		v.fail(errors.New("source.retry_backoff must not be negative"))
	}
	if c.Source.MaxSize < 0 {
		v.fail(errors.New("source.max_size must not be negative"))
	}

	c.validateNotify(v)
	return v.result()
}

// ValidateNotify checks only the notifier settings.
func (c *Config) ValidateNotify() error {
	v := &validator{}
	if !c.Notify.Enabled() {
		v.fail(errors.New("notify.kind is none"))
	}
	c.validateNotify(v)
	return v.result()
}

func (c *Config) validateNotify(v *validator) {
	switch c.Notify.Kind {
	case NotifyECS:
		v.require("notify.cluster", c.Notify.Cluster)
		v.require("notify.service", c.Notify.Service)
	case NotifyWebhook:
		v.require("notify.webhook_url", c.Notify.WebhookURL)
		v.require("notify.service", c.Notify.Service)
	case NotifyNone:
	default:
		v.fail(fmt.Errorf("notify.kind %q is not one of ecs, webhook, none", c.Notify.Kind))
	}
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.Source.URL != "" {
		c.Source.URL = override.Source.URL
	}
	if override.Source.Timeout != 0 {
		c.Source.Timeout = override.Source.Timeout
	}
	if override.Source.MaxAttempts != 0 {
		c.Source.MaxAttempts = override.Source.MaxAttempts
	}
	if override.Source.RetryBackoff != 0 {
		c.Source.RetryBackoff = override.Source.RetryBackoff
	}
	if override.Source.MaxSize != 0 {
		c.Source.MaxSize = override.Source.MaxSize
	}
	if override.Source.UserAgent != "" {
		c.Source.UserAgent = override.Source.UserAgent
	}
	if override.Fingerprint.Parameter != "" {
		c.Fingerprint.Parameter = override.Fingerprint.Parameter
	}
	if override.Fingerprint.StoreURL != "" {
		c.Fingerprint.StoreURL = override.Fingerprint.StoreURL
	}
	if override.Blob.Bucket != "" {
		c.Blob.Bucket = override.Blob.Bucket
	}
	if override.Blob.Object != "" {
		c.Blob.Object = override.Blob.Object
	}
	if override.Blob.ContentType != "" {
		c.Blob.ContentType = override.Blob.ContentType
	}
	if override.Notify.Kind != "" {
		c.Notify.Kind = override.Notify.Kind
	}
	if override.Notify.Cluster != "" {
		c.Notify.Cluster = override.Notify.Cluster
	}
	if override.Notify.Service != "" {
		c.Notify.Service = override.Notify.Service
	}
	if override.Notify.WebhookURL != "" {
		c.Notify.WebhookURL = override.Notify.WebhookURL
	}
	if len(override.Notify.Headers) > 0 {
		c.Notify.Headers = override.Notify.Headers
	}
	if override.Notify.Timeout != 0 {
		c.Notify.Timeout = override.Notify.Timeout
	}
	if override.AWS.Region != "" {
		c.AWS.Region = override.AWS.Region
	}
	if override.AWS.Endpoint != "" {
		c.AWS.Endpoint = override.AWS.Endpoint
	}
	if override.AWS.UsePathStyle {
		c.AWS.UsePathStyle = true
	}
	if override.LogLevel != "" {
		c.LogLevel = override.LogLevel
	}
	return c
}

// validator accumulates validation failures.
type validator struct {
	missing []string
	errs    *multierror.Error
}

func (v *validator) require(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.missing = append(v.missing, field)
		v.fail(fmt.Errorf("%s: %w", field, ErrMissing))
	}
}

func (v *validator) fail(err error) {
	v.errs = multierror.Append(v.errs, err)
}

func (v *validator) result() error {
	if v.errs == nil {
		return nil
	}
	v.errs.ErrorFormat = func(errs []error) string {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return strings.Join(msgs, "; ")
	}
	return &Error{Missing: v.missing, Err: v.errs}
}
