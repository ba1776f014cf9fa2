package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/build"
	"github.com/lightningnetwork/lnd/signal"

	"github.com/bitvmx-labs/protocol-builder"
)

const (
	defaultLogFilename = "bitvmxcli.log"
	defaultLogDirname  = "logs"
	defaultGraphDirname = "graphs"
)

// envVarConfigFile is the environment variable the CLI reads, per the
// external-interface contract, to locate a JSON config file. The core
// library never looks at it.
const envVarConfigFile = "BITVMX_ENV"

// Config holds every flag bitvmxcli accepts, loadable from either the
// command line or the JSON file named by BITVMX_ENV.
type Config struct {
	Seed     string `long:"seed" description:"hex-encoded root seed for the local key manager"`
	LogDir   string `long:"logdir" description:"directory to write bitvmxcli.log into"`
	Debug    string `long:"debuglevel" description:"debug level: trace, debug, info, warn, error, critical, off"`
	GraphDir string `long:"graphdir" description:"directory holding persisted protocol graph files"`
}

// DefaultConfig returns a Config with sane defaults, the starting point
// LoadConfig refines with the JSON file and then the command line.
func DefaultConfig() Config {
	return Config{
		LogDir:   filepath.Join(".", defaultLogDirname),
		GraphDir: filepath.Join(".", defaultGraphDirname),
		Debug:    "info",
	}
}

// LoadConfig parses bitvmxcli's configuration: command-line flags take
// precedence over the JSON file named by BITVMX_ENV, which in turn takes
// precedence over DefaultConfig.
func LoadConfig(interceptor signal.Interceptor) (*Config, btclog.Logger, error) {
	cfg := DefaultConfig()

	if path := os.Getenv(envVarConfigFile); path != "" {
		if err := loadJSONConfigFile(path, &cfg); err != nil {
			return nil, nil, err
		}
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, nil, err
	}

	logWriter := build.NewRotatingLogWriter()
	cfgLogger := logWriter.GenSubLogger("CONF", interceptor.RequestShutdown)
	bitvmx.SetupLoggers(logWriter, interceptor)

	logFile := filepath.Join(cfg.LogDir, defaultLogFilename)
	if err := logWriter.InitLogRotator(logFile, 10, 3); err != nil {
		return nil, nil, err
	}
	if err := build.ParseAndSetDebugLevels(cfg.Debug, logWriter); err != nil {
		return nil, nil, err
	}

	return &cfg, cfgLogger, nil
}

func loadJSONConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, cfg)
}
