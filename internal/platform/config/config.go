package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads .env files into the process environment. Variables already set
// are not overridden. A missing file is reported as an error that callers may
// ignore. With no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvBool returns the boolean value of the environment variable named by
// key (as accepted by strconv.ParseBool), or fallback.
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// MixerFile is the mixer section of the YAML config file.
type MixerFile struct {
	Host   string `yaml:"host"`
	Port   string `yaml:"port"`
	Secure bool   `yaml:"secure"`
}

// RefreshFile is the refresh section of the YAML config file.
type RefreshFile struct {
	Auto       *bool `yaml:"auto"`
	IntervalMs int   `yaml:"interval_ms"`
}

// File is the optional YAML config file.
//
//	mixer:
//	  host: 10.0.0.20
//	  port: "8088"
//	  secure: false
//	refresh:
//	  auto: true
//	  interval_ms: 2000
type File struct {
	Mixer   MixerFile   `yaml:"mixer"`
	Refresh RefreshFile `yaml:"refresh"`
}

// LoadFile parses the YAML config at path. An empty path yields a zero File.
func LoadFile(path string) (File, error) {
	var f File
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return f, nil
}
