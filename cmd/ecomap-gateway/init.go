// ABOUTME: Interactive "init" command that writes a starter gateway config
// ABOUTME: Generates a random base64 signing secret with crypto/rand

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/2389/ecomap-gateway/internal/auth"
	"github.com/2389/ecomap-gateway/internal/config"
)

// generateSecret returns MinSecretLength random bytes, standard base64 encoded.
func generateSecret() (string, error) {
	b := make([]byte, auth.MinSecretLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// initAnswers are the values collected by runInit.
type initAnswers struct {
	HTTPAddr  string
	DBDriver  string
	DBPath    string
	TokenTTL  string
	LogLevel  string
	LogFormat string
	Metrics   bool
	Secret    string
}

// fileConfig mirrors the YAML layout written by init.
type fileConfig struct {
	Server struct {
		HTTPAddr string `yaml:"http_addr"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret      string   `yaml:"jwt_secret"`
		TokenTTL       string   `yaml:"token_ttl"`
		PublicPrefixes []string `yaml:"public_prefixes"`
	} `yaml:"auth"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// renderConfig produces the YAML document for a.
func renderConfig(a initAnswers) ([]byte, error) {
	var fc fileConfig
	fc.Server.HTTPAddr = a.HTTPAddr
	fc.Database.Driver = a.DBDriver
	fc.Database.Path = a.DBPath
	fc.Auth.JWTSecret = a.Secret
	fc.Auth.TokenTTL = a.TokenTTL
	fc.Auth.PublicPrefixes = config.DefaultPublicPrefixes
	fc.Logging.Level = a.LogLevel
	fc.Logging.Format = a.LogFormat
	fc.Metrics.Enabled = a.Metrics
	fc.Metrics.Path = config.DefaultMetricsPath

	body, err := yaml.Marshal(&fc)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}

	header := "# ecomap-gateway configuration\n# Generated by ecomap-gateway init\n\n"
	return append([]byte(header), body...), nil
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func runInit(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "ecomap-gateway configuration setup")
	fmt.Fprintln(out, "==================================")
	fmt.Fprintln(out)

	defaultDBPath := filepath.Join(getDataPath(), "gateway.db")

	outputFile := prompt(reader, out, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		if !isYes(prompt(reader, out, "File exists. Overwrite?", "no")) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "\n--- Server Configuration ---")
	a := initAnswers{Secret: secret}
	a.HTTPAddr = prompt(reader, out, "HTTP address", "localhost:8080")

	fmt.Fprintln(out, "\n--- Database Configuration ---")
	a.DBDriver = prompt(reader, out, "SQLite driver (sqlite/sqlite3)", config.DefaultDatabaseDriver)
	a.DBPath = prompt(reader, out, "SQLite database path", defaultDBPath)

	fmt.Fprintln(out, "\n--- Authentication ---")
	a.TokenTTL = prompt(reader, out, "Token lifetime", config.DefaultTokenTTL.String())

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, out, "Log level (debug/info/warn/error)", config.DefaultLogLevel)
	a.LogFormat = prompt(reader, out, "Log format (text/json)", config.DefaultLogFormat)
	a.Metrics = isYes(prompt(reader, out, "Enable Prometheus metrics?", "no"))

	data, err := renderConfig(a)
	if err != nil {
		return err
	}

	// Refuse to write something serve would reject.
	if _, err := config.Parse(data, config.FormatYAML); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The file holds the signing secret.
	if err := os.WriteFile(outputFile, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(a.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintf(out, "Data directory: %s\n", dataDir)
	fmt.Fprintln(out, "\nTo start the server:")
	fmt.Fprintln(out, "  ecomap-gateway serve")

	return nil
}
