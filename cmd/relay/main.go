package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"github.com/tinytelemetry/relay/internal/transport"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/relay/config.yml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("Relay - Log Delivery Pipeline\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := runServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("RELAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Every key needs a default so environment variables survive Unmarshal.
	v.SetDefault("license-key", "")
	v.SetDefault("region", "")
	v.SetDefault("http-addr", "")
	v.SetDefault("aws-region", "")
	v.SetDefault("function-arn", "")
	v.SetDefault("log-group-name", "")
	v.SetDefault("log-stream-name", "")
	v.SetDefault("max-payload-size", defaultMaxPayloadSize)
	v.SetDefault("max-retries", defaultMaxRetries)
	v.SetDefault("initial-backoff", defaultInitialBackoff)
	v.SetDefault("backoff-multiplier", defaultBackoffMultiplier)
	v.SetDefault("request-timeout", defaultRequestTimeout)
	v.SetDefault("http-enabled", true)
	v.SetDefault("http-port", defaultHTTPPort)
	v.SetDefault("mux-buffer-size", defaultMuxBufferSize)
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("log-development", false)
	v.SetDefault("function-name", defaultFunctionName)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		defaultConfigPath := filepath.Join(home, ".config", "relay", "config.yml")
		v.SetConfigFile(defaultConfigPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return cfg, fmt.Errorf("invalid http-port: %d", cfg.HTTPPort)
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = net.JoinHostPort(defaultBindHost, strconv.Itoa(cfg.HTTPPort))
	}

	// Fail fast on delivery configuration: a bad license key or region
	// should never wait until the first payload to surface.
	deliveryCfg := transport.Config{LicenseKey: cfg.LicenseKey, Region: cfg.Region}
	if err := deliveryCfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}
