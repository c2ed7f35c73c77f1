package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sanket-telunagi/k8sfs/internal/logging"
	"github.com/sanket-telunagi/k8sfs/internal/model"
)

// Output names accepted in ExportConfig.Outputs
const (
	OutputConsole    = "console"
	OutputJSON       = "json"
	OutputPrometheus = "prometheus"
	OutputAll        = "all"
)

// Config represents the application configuration
type Config struct {
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
	Collection CollectionConfig `yaml:"collection"`
	Cache      CacheConfig      `yaml:"cache"`
	Retry      RetryConfig      `yaml:"retry"`
	Export     ExportConfig     `yaml:"export"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// KubernetesConfig represents the Kubernetes configuration
type KubernetesConfig struct {
	Mode           string        `yaml:"mode"`
	KubeconfigPath string        `yaml:"kubeconfig_path"`
	Context        string        `yaml:"context"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	QPS            float64       `yaml:"qps"`
	Burst          int           `yaml:"burst"`
}

// CollectionConfig represents what is collected and how concurrently
type CollectionConfig struct {
	Namespaces    []string      `yaml:"namespaces"`
	AllNamespaces bool          `yaml:"all_namespaces"`
	MaxWorkers    int           `yaml:"max_workers"`
	Timeout       time.Duration `yaml:"timeout"`
	IncludePVCs   bool          `yaml:"include_pvcs"`
	LabelSelector string        `yaml:"label_selector"`
	FieldSelector string        `yaml:"field_selector"`
	WatchInterval time.Duration `yaml:"watch_interval"`
}

// CacheConfig represents the collector cache configuration
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// RetryConfig represents the retry policy for cluster API calls
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	Delay      time.Duration `yaml:"delay"`
	Backoff    float64       `yaml:"backoff"`
}

// ExportConfig represents where collection results are published
type ExportConfig struct {
	Outputs      []string `yaml:"outputs"`
	OutputDir    string   `yaml:"output_dir"`
	JSONFilename string   `yaml:"json_filename"`
	MetricsAddr  string   `yaml:"metrics_addr"`
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Kubernetes: KubernetesConfig{
			Mode:           "kubeconfig",
			RequestTimeout: 30 * time.Second,
			QPS:            50,
			Burst:          100,
		},
		Collection: CollectionConfig{
			Namespaces:    []string{"default"},
			MaxWorkers:    20,
			Timeout:       30 * time.Second,
			IncludePVCs:   true,
			WatchInterval: 60 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     300 * time.Second,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			Delay:      time.Second,
			Backoff:    2.0,
		},
		Export: ExportConfig{
			Outputs:      []string{OutputConsole},
			OutputDir:    "./output",
			JSONFilename: "filesystem_data.json",
			MetricsAddr:  "0.0.0.0:9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads the configuration from defaults and environment variables
func Load() (*Config, error) {
	return LoadFromFile("")
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
// Environment variables take precedence over file values.
func LoadFromFile(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := loadYAMLFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configPath, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadYAMLFile decodes the file into cfg so that keys absent from the file keep their current value
func loadYAMLFile(configPath string, cfg *Config) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return nil
}

func applyEnv(cfg *Config) error {
	var errs []string
	check := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	setString(&cfg.Kubernetes.Mode, "K8SFS_KUBE_MODE")
	setString(&cfg.Kubernetes.KubeconfigPath, "KUBECONFIG")
	setString(&cfg.Kubernetes.Context, "K8SFS_KUBE_CONTEXT")
	check(setDuration(&cfg.Kubernetes.RequestTimeout, "K8SFS_REQUEST_TIMEOUT"))
	check(setFloat(&cfg.Kubernetes.QPS, "K8SFS_QPS"))
	check(setInt(&cfg.Kubernetes.Burst, "K8SFS_BURST"))

	setStringSlice(&cfg.Collection.Namespaces, "K8SFS_NAMESPACES")
	check(setBool(&cfg.Collection.AllNamespaces, "K8SFS_ALL_NAMESPACES"))
	check(setInt(&cfg.Collection.MaxWorkers, "K8SFS_MAX_WORKERS"))
	check(setDuration(&cfg.Collection.Timeout, "K8SFS_TIMEOUT"))
	check(setBool(&cfg.Collection.IncludePVCs, "K8SFS_INCLUDE_PVCS"))
	setString(&cfg.Collection.LabelSelector, "K8SFS_LABEL_SELECTOR")
	setString(&cfg.Collection.FieldSelector, "K8SFS_FIELD_SELECTOR")
	check(setDuration(&cfg.Collection.WatchInterval, "K8SFS_WATCH_INTERVAL"))

	check(setBool(&cfg.Cache.Enabled, "K8SFS_CACHE_ENABLED"))
	check(setDuration(&cfg.Cache.TTL, "K8SFS_CACHE_TTL"))

	check(setInt(&cfg.Retry.MaxRetries, "K8SFS_MAX_RETRIES"))
	check(setDuration(&cfg.Retry.Delay, "K8SFS_RETRY_DELAY"))
	check(setFloat(&cfg.Retry.Backoff, "K8SFS_RETRY_BACKOFF"))

	setStringSlice(&cfg.Export.Outputs, "K8SFS_OUTPUTS")
	setString(&cfg.Export.OutputDir, "K8SFS_OUTPUT_DIR")
	setString(&cfg.Export.JSONFilename, "K8SFS_JSON_FILENAME")
	setString(&cfg.Export.MetricsAddr, "K8SFS_METRICS_ADDR")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Logging.File, "K8SFS_LOG_FILE")

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setStringSlice(dst *[]string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = splitList(value)
	}
}

func setBool(dst *bool, key string) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = parsed
	}
	return nil
}

func setInt(dst *int, key string) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = parsed
	}
	return nil
}

func setFloat(dst *float64, key string) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = parsed
	}
	return nil
}

// setDuration accepts Go durations ("1m30s") and plain numbers of seconds ("1.5")
func setDuration(dst *time.Duration, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

// ParseDuration parses a Go duration string or a number of seconds
func ParseDuration(value string) (time.Duration, error) {
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func splitList(value string) []string {
	var result []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Kubernetes.Mode != "incluster" && c.Kubernetes.Mode != "kubeconfig" {
		return fmt.Errorf("kubernetes mode must be 'incluster' or 'kubeconfig'")
	}
	if c.Kubernetes.QPS < 0 {
		return fmt.Errorf("kubernetes qps cannot be negative")
	}
	if c.Kubernetes.QPS > 0 && c.Kubernetes.Burst < 1 {
		return fmt.Errorf("kubernetes burst must be at least 1 when qps is set")
	}

	if !c.Collection.AllNamespaces && len(c.Collection.Namespaces) == 0 {
		return fmt.Errorf("at least one namespace is required unless all namespaces are collected")
	}
	for _, ns := range c.Collection.Namespaces {
		if strings.TrimSpace(ns) == "" {
			return fmt.Errorf("namespace names cannot be empty")
		}
	}
	if c.Collection.MaxWorkers < 1 {
		return fmt.Errorf("max workers must be at least 1")
	}
	if c.Collection.Timeout <= 0 {
		return fmt.Errorf("collection timeout must be positive")
	}
	if c.Collection.WatchInterval < 0 {
		return fmt.Errorf("watch interval cannot be negative")
	}
	selectorCheck := model.NamespaceSpec{
		Name:          "selector-check",
		LabelSelector: c.Collection.LabelSelector,
		FieldSelector: c.Collection.FieldSelector,
	}
	if err := selectorCheck.Validate(); err != nil {
		return err
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative")
	}

	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Retry.Delay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}
	if c.Retry.Backoff < 1 {
		return fmt.Errorf("retry backoff must be at least 1")
	}

	if len(c.Export.Outputs) == 0 {
		return fmt.Errorf("at least one output is required")
	}
	for _, output := range c.Export.Outputs {
		switch output {
		case OutputConsole, OutputJSON, OutputPrometheus, OutputAll:
		default:
			return fmt.Errorf("unknown output %q: must be one of console, json, prometheus, all", output)
		}
	}
	if c.HasOutput(OutputJSON) && c.Export.OutputDir == "" {
		return fmt.Errorf("output directory is required for json output")
	}
	if c.HasOutput(OutputPrometheus) && c.Export.MetricsAddr == "" {
		return fmt.Errorf("metrics address is required for prometheus output")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	return nil
}

// HasOutput reports whether the named output is enabled, directly or through "all"
func (c *Config) HasOutput(name string) bool {
	for _, output := range c.Export.Outputs {
		if output == name || output == OutputAll {
			return true
		}
	}
	return false
}

// CacheEnabled reports whether collector results should be cached
func (c *Config) CacheEnabled() bool {
	return c.Cache.Enabled && c.Cache.TTL > 0
}

// NamespaceSpecs builds the per-namespace collection requests for one cycle.
// Duplicate names are collapsed and order is preserved.
func (c *Config) NamespaceSpecs(names []string) []model.NamespaceSpec {
	seen := make(map[string]bool, len(names))
	specs := make([]model.NamespaceSpec, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		specs = append(specs, model.NamespaceSpec{
			Name:          name,
			IncludePods:   true,
			IncludeClaims: c.Collection.IncludePVCs,
			LabelSelector: c.Collection.LabelSelector,
			FieldSelector: c.Collection.FieldSelector,
		})
	}
	return specs
}
