// Package config provides configuration management for inkbridge.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/inkbridge/inkbridge/internal/constants"
)

// Config is the full client configuration.
//
// INI format:
//
//	[service]
//	url = https://mantra-interview.online
//	timeout_seconds = 120
//	requests_per_second = 0
//
//	[translate]
//	language = Indonesian
//	font = Noto Sans
//
//	[archive]
//	format = zip
//	name = translated_images.zip
//	fetch_concurrency = 8
//
//	[sink]
//	kind = local
//	dir = .
//
//	[proxy]
//	mode = no-proxy
//
//	[log]
//	level = info
type Config struct {
	// Translation service
	ServiceURL        string
	TimeoutSeconds    int
	RequestsPerSecond float64

	// Default selections
	Language string
	Font     string

	// Archive packing
	ArchiveFormat    string // "zip" or "tar.gz"
	ArchiveName      string // empty = derived from format
	FetchConcurrency int

	// Where downloads are saved
	Sink SinkConfig

	// Proxy settings
	ProxyMode     string // no-proxy, system, basic, ntlm
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string // never persisted
	NoProxy       string
	ProxyWarmup   bool

	// Logging
	LogFile  string
	LogLevel string
}

// SinkConfig selects and configures the archive destination.
type SinkConfig struct {
	Kind         string // local, s3, azure, gcs
	Dir          string // local
	Overwrite    bool   // replace an existing archive; local otherwise numbers the new one
	Bucket       string // s3, gcs
	Prefix       string // s3, gcs, azure
	Region       string // s3
	Endpoint     string // s3: S3-compatible endpoint, path-style addressing
	ContainerURL string // azure: container URL including SAS token
}

// Archive formats
const (
	FormatZip   = "zip"
	FormatTarGz = "tar.gz"
)

// Sink kinds
const (
	SinkLocal = "local"
	SinkS3    = "s3"
	SinkAzure = "azure"
	SinkGCS   = "gcs"
)

// Environment overrides
const (
	EnvServiceURL    = "INKBRIDGE_SERVICE_URL"
	EnvLanguage      = "INKBRIDGE_LANGUAGE"
	EnvFont          = "INKBRIDGE_FONT"
	EnvProxyPassword = "INKBRIDGE_PROXY_PASSWORD"
	EnvSinkKind      = "INKBRIDGE_SINK"
)

// Validation errors
var (
	ErrMissingServiceURL    = errors.New("service url is required")
	ErrInvalidServiceURL    = errors.New("service url must be an absolute http(s) URL")
	ErrInvalidTimeout       = errors.New("timeout_seconds must be between 1 and 3600")
	ErrInvalidRate          = errors.New("requests_per_second must not be negative")
	ErrInvalidArchiveFormat = errors.New("archive format must be zip or tar.gz")
	ErrInvalidConcurrency   = fmt.Errorf("fetch_concurrency must be between 1 and %d", constants.MaxFetchConcurrency)
	ErrInvalidSinkKind      = errors.New("sink kind must be local, s3, azure or gcs")
	ErrMissingSinkBucket    = errors.New("sink bucket is required for s3 and gcs")
	ErrMissingContainerURL  = errors.New("sink container_url is required for azure")
	ErrInvalidProxyMode     = errors.New("proxy mode must be no-proxy, system, basic or ntlm")
	ErrMissingProxyHost     = errors.New("proxy host is required for basic and ntlm modes")
)

// NewConfig returns a configuration populated with defaults.
func NewConfig() *Config {
	return &Config{
		ServiceURL:        constants.DefaultServiceURL,
		TimeoutSeconds:    int(constants.DefaultRequestTimeout / time.Second),
		RequestsPerSecond: constants.DefaultRequestsPerSecond,
		Language:          "Indonesian",
		Font:              "Noto Sans",
		ArchiveFormat:     FormatZip,
		FetchConcurrency:  constants.DefaultFetchConcurrency,
		Sink: SinkConfig{
			Kind: SinkLocal,
			Dir:  ".",
		},
		ProxyMode: "no-proxy",
		LogLevel:  "info",
	}
}

// DefaultConfigPath returns the default path for the config file.
// - Windows: %APPDATA%\inkbridge\config.ini
// - Unix: ~/.config/inkbridge/config.ini
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.ini"), nil
}

// Load reads configuration from an INI file and applies environment overrides.
// A missing file yields defaults and no error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			cfg.ApplyEnv()
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.ApplyEnv()
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	svc := iniFile.Section("service")
	cfg.ServiceURL = svc.Key("url").MustString(cfg.ServiceURL)
	cfg.TimeoutSeconds = svc.Key("timeout_seconds").MustInt(cfg.TimeoutSeconds)
	cfg.RequestsPerSecond = svc.Key("requests_per_second").MustFloat64(cfg.RequestsPerSecond)

	tr := iniFile.Section("translate")
	cfg.Language = tr.Key("language").MustString(cfg.Language)
	cfg.Font = tr.Key("font").MustString(cfg.Font)

	arc := iniFile.Section("archive")
	cfg.ArchiveFormat = strings.ToLower(arc.Key("format").MustString(cfg.ArchiveFormat))
	cfg.ArchiveName = arc.Key("name").String()
	cfg.FetchConcurrency = arc.Key("fetch_concurrency").MustInt(cfg.FetchConcurrency)

	sink := iniFile.Section("sink")
	cfg.Sink.Kind = strings.ToLower(sink.Key("kind").MustString(cfg.Sink.Kind))
	cfg.Sink.Dir = sink.Key("dir").MustString(cfg.Sink.Dir)
	cfg.Sink.Overwrite = sink.Key("overwrite").MustBool(false)
	cfg.Sink.Bucket = sink.Key("bucket").String()
	cfg.Sink.Prefix = sink.Key("prefix").String()
	cfg.Sink.Region = sink.Key("region").String()
	cfg.Sink.Endpoint = sink.Key("endpoint").String()
	cfg.Sink.ContainerURL = sink.Key("container_url").String()

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = strings.ToLower(proxy.Key("mode").MustString(cfg.ProxyMode))
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(0)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)

	logSection := iniFile.Section("log")
	cfg.LogFile = logSection.Key("file").String()
	cfg.LogLevel = logSection.Key("level").MustString(cfg.LogLevel)

	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields from INKBRIDGE_* environment variables.
func (cfg *Config) ApplyEnv() {
	cfg.ServiceURL = GetEnv(EnvServiceURL, cfg.ServiceURL)
	cfg.Language = GetEnv(EnvLanguage, cfg.Language)
	cfg.Font = GetEnv(EnvFont, cfg.Font)
	cfg.ProxyPassword = GetEnv(EnvProxyPassword, cfg.ProxyPassword)
	cfg.Sink.Kind = strings.ToLower(GetEnv(EnvSinkKind, cfg.Sink.Kind))
}

// Save writes the configuration to an INI file. The proxy password is not saved.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	sections := []struct {
		name string
		keys [][2]string
	}{
		{"service", [][2]string{
			{"url", cfg.ServiceURL},
			{"timeout_seconds", strconv.Itoa(cfg.TimeoutSeconds)},
			{"requests_per_second", strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)},
		}},
		{"translate", [][2]string{
			{"language", cfg.Language},
			{"font", cfg.Font},
		}},
		{"archive", [][2]string{
			{"format", cfg.ArchiveFormat},
			{"name", cfg.ArchiveName},
			{"fetch_concurrency", strconv.Itoa(cfg.FetchConcurrency)},
		}},
		{"sink", [][2]string{
			{"kind", cfg.Sink.Kind},
			{"dir", cfg.Sink.Dir},
			{"overwrite", strconv.FormatBool(cfg.Sink.Overwrite)},
			{"bucket", cfg.Sink.Bucket},
			{"prefix", cfg.Sink.Prefix},
			{"region", cfg.Sink.Region},
			{"endpoint", cfg.Sink.Endpoint},
			{"container_url", cfg.Sink.ContainerURL},
		}},
		{"proxy", [][2]string{
			{"mode", cfg.ProxyMode},
			{"host", cfg.ProxyHost},
			{"port", strconv.Itoa(cfg.ProxyPort)},
			{"user", cfg.ProxyUser},
			{"no_proxy", cfg.NoProxy},
			{"warmup", strconv.FormatBool(cfg.ProxyWarmup)},
		}},
		{"log", [][2]string{
			{"file", cfg.LogFile},
			{"level", cfg.LogLevel},
		}},
	}

	for _, s := range sections {
		sec, err := iniFile.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		for _, kv := range s.keys {
			sec.Key(kv[0]).SetValue(kv[1])
		}
	}

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	// The azure container URL may carry a SAS token
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks the configuration and returns the first problem found.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.ServiceURL) == "" {
		return ErrMissingServiceURL
	}
	u, err := url.Parse(cfg.ServiceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidServiceURL
	}
	if cfg.TimeoutSeconds < 1 || cfg.TimeoutSeconds > 3600 {
		return ErrInvalidTimeout
	}
	if cfg.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}

	switch cfg.ArchiveFormat {
	case FormatZip, FormatTarGz:
	default:
		return ErrInvalidArchiveFormat
	}
	if cfg.FetchConcurrency < 1 || cfg.FetchConcurrency > constants.MaxFetchConcurrency {
		return ErrInvalidConcurrency
	}

	switch cfg.Sink.Kind {
	case SinkLocal:
	case SinkS3, SinkGCS:
		if strings.TrimSpace(cfg.Sink.Bucket) == "" {
			return ErrMissingSinkBucket
		}
	case SinkAzure:
		if strings.TrimSpace(cfg.Sink.ContainerURL) == "" {
			return ErrMissingContainerURL
		}
	default:
		return ErrInvalidSinkKind
	}

	switch cfg.ProxyMode {
	case "", "no-proxy", "system":
	case "basic", "ntlm":
		if strings.TrimSpace(cfg.ProxyHost) == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrInvalidProxyMode
	}

	return nil
}

// RequestTimeout returns the per-call timeout.
func (cfg *Config) RequestTimeout() time.Duration {
	return time.Duration(cfg.TimeoutSeconds) * time.Second
}

// ResolvedArchiveName returns the configured archive name or the default for
// the configured format.
func (cfg *Config) ResolvedArchiveName() string {
	if cfg.ArchiveName != "" {
		return cfg.ArchiveName
	}
	return constants.ArchiveBaseName + "." + cfg.ArchiveFormat
}

// GetEnv reads an environment variable or returns a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
