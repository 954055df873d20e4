// Package config loads client settings: defaults, then an optional YAML file,
// then RAKSHAK_* environment variables. Command-line flags are applied last
// with Overlay.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/pashurakshak/rakshak/internal/api"
	"github.com/pashurakshak/rakshak/internal/geo"
	"github.com/pashurakshak/rakshak/internal/relay"
	"github.com/pashurakshak/rakshak/internal/storage"
)

// Config is everything the client needs to reach its collaborators.
type Config struct {
	APIURL            string        `yaml:"api_url"`
	WSURL             string        `yaml:"ws_url"`
	GpsdAddr          string        `yaml:"gpsd_addr"`
	GeocoderURL       string        `yaml:"geocoder_url"`
	StoragePath       string        `yaml:"storage_path"`
	StoragePassphrase string        `yaml:"storage_passphrase"`
	Timeout           time.Duration `yaml:"timeout"`
	LogLevel          string        `yaml:"log_level"`
	MetricsAddr       string        `yaml:"metrics_addr"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		APIURL:      api.DefaultBaseURL,
		WSURL:       relay.DefaultURL,
		GpsdAddr:    geo.DefaultGpsdAddr,
		GeocoderURL: geo.DefaultGeocoderURL,
		StoragePath: storage.DefaultPath(),
		Timeout:     30 * time.Second,
		LogLevel:    "warn",
	}
}

// DefaultPath is the config file read when no path is given.
func DefaultPath() string { return filepath.Join(storage.ConfigDir(), "config.yaml") }

// Load builds the configuration. An explicit path must exist; the default
// path is optional.
func Load(path string) (Config, error) {
	c := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	case err != nil:
		return Config{}, fmt.Errorf("config: %w", err)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if err := c.fromEnv(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) fromEnv() error {
	c.APIURL = getenv("RAKSHAK_API_URL", c.APIURL)
	c.WSURL = getenv("RAKSHAK_WS_URL", c.WSURL)
	c.GpsdAddr = getenv("RAKSHAK_GPSD_ADDR", c.GpsdAddr)
	c.GeocoderURL = getenv("RAKSHAK_GEOCODER_URL", c.GeocoderURL)
	c.StoragePath = getenv("RAKSHAK_STORAGE_PATH", c.StoragePath)
	c.StoragePassphrase = getenv("RAKSHAK_STORAGE_PASSPHRASE", c.StoragePassphrase)
	c.LogLevel = getenv("RAKSHAK_LOG_LEVEL", c.LogLevel)
	c.MetricsAddr = getenv("RAKSHAK_METRICS_ADDR", c.MetricsAddr)
	d, err := getenvDuration("RAKSHAK_TIMEOUT", c.Timeout)
	if err != nil {
		return err
	}
	c.Timeout = d
	return nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

// Flags registers the overridable settings on fs, bound to c.
func (c *Config) Flags(fs *pflag.FlagSet) {
	fs.StringVar(&c.APIURL, "api", c.APIURL, "REST base URL")
	fs.StringVar(&c.WSURL, "ws", c.WSURL, "STOMP websocket URL")
	fs.StringVar(&c.GpsdAddr, "gpsd", c.GpsdAddr, "gpsd address (host:port)")
	fs.StringVar(&c.StoragePath, "storage", c.StoragePath, "session storage file")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "request timeout")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug|info|warn|error")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "serve /metrics on this address while tracking")
}

// Overlay copies into dst the settings the user set on fs (registered with src.Flags).
func Overlay(fs *pflag.FlagSet, src Config, dst *Config) {
	if fs.Changed("api") {
		dst.APIURL = src.APIURL
	}
	if fs.Changed("ws") {
		dst.WSURL = src.WSURL
	}
	if fs.Changed("gpsd") {
		dst.GpsdAddr = src.GpsdAddr
	}
	if fs.Changed("storage") {
		dst.StoragePath = src.StoragePath
	}
	if fs.Changed("timeout") {
		dst.Timeout = src.Timeout
	}
	if fs.Changed("log-level") {
		dst.LogLevel = src.LogLevel
	}
	if fs.Changed("metrics-addr") {
		dst.MetricsAddr = src.MetricsAddr
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	var errsList []error
	check := func(name, raw string, schemes ...string) {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			errsList = append(errsList, fmt.Errorf("%s: %q is not a URL", name, raw))
			return
		}
		for _, s := range schemes {
			if u.Scheme == s {
				return
			}
		}
		errsList = append(errsList, fmt.Errorf("%s: scheme %q not one of %v", name, u.Scheme, schemes))
	}
	check("api_url", c.APIURL, "http", "https")
	check("ws_url", c.WSURL, "ws", "wss")
	check("geocoder_url", c.GeocoderURL, "http", "https")
	if c.Timeout <= 0 {
		errsList = append(errsList, errors.New("timeout: must be positive"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errsList = append(errsList, fmt.Errorf("log_level: %w", err))
	}
	if c.StoragePath == "" {
		errsList = append(errsList, errors.New("storage_path: empty"))
	}
	return errors.Join(errsList...)
}
