package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// Config holds CLI configuration
type Config struct {
	ServerURL   string
	InternalURL string
	Token       string
	TokenFile   string
	Output      string
	Verbose     bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:   getEnvOrDefault("RELAYCTL_SERVER", "http://localhost:8080"),
		InternalURL: getEnvOrDefault("RELAYCTL_INTERNAL", "http://127.0.0.1:8081"),
		Token:       os.Getenv("RELAYCTL_TOKEN"),
		TokenFile:   getEnvOrDefault("RELAYCTL_TOKEN_FILE", defaultTokenFile()),
		Output:      "text",
		Verbose:     false,
	}
}

// LoadToken loads the token from file if not already set
func (c *Config) LoadToken() error {
	if c.Token != "" {
		return nil
	}

	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No token file is fine
		}
		return err
	}

	c.Token = strings.TrimSpace(string(data))
	return nil
}

// SaveToken saves the token to the token file
func (c *Config) SaveToken(token string) error {
	c.Token = token

	dir := filepath.Dir(c.TokenFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	return atomic.WriteFile(c.TokenFile, bytes.NewBufferString(token))
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".relayctl/token"
	}
	return filepath.Join(home, ".relayctl", "token")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
