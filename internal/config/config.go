// Package config loads server settings from the environment and an optional
// dotenv file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/natefinch/atomic"
)

// DefaultEnvFile is read on startup and rewritten after a database switch
const DefaultEnvFile = ".env"

// DatabaseURLKey names the variable holding the served content file
const DatabaseURLKey = "DATABASE_URL"

// Config is the complete server configuration
type Config struct {
	EnvFile     string
	DatabaseURL string
	Addr        string
	LogLevel    string
	LogFormat   string
	AdminToken  string
	DataDir     string

	PoolSize       int
	AcquireTimeout time.Duration
	DrainInterval  time.Duration
	DrainAttempts  int

	Site Site
}

// Site describes the public site for feeds and sitemaps
type Site struct {
	URL         string
	Title       string
	Description string
}

// Load reads envFile into the process environment, without overriding
// variables that are already set, and builds a Config. A missing envFile is
// not an error.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := &Config{
		EnvFile:    envFile,
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogFormat:  getenv("LOG_FORMAT", "text"),
		AdminToken: os.Getenv("ADMIN_TOKEN"),
		Site: Site{
			URL:         strings.TrimRight(os.Getenv("SITE_URL"), "/"),
			Title:       getenv("SITE_TITLE", "postvault"),
			Description: os.Getenv("SITE_DESCRIPTION"),
		},
	}

	cfg.DatabaseURL = os.Getenv(DatabaseURLKey)
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("%s is not set", DatabaseURLKey)
	}

	cfg.DataDir = getenv("DATA_DIR", filepath.Dir(cfg.DatabaseURL))

	port, err := intEnv("PORT", 3000)
	if err != nil {
		return nil, err
	}
	cfg.Addr = ":" + strconv.Itoa(port)

	if cfg.PoolSize, err = intEnv("POOL_SIZE", 16); err != nil {
		return nil, err
	}
	if cfg.DrainAttempts, err = intEnv("DRAIN_ATTEMPTS", 60); err != nil {
		return nil, err
	}
	if cfg.AcquireTimeout, err = durationEnv("POOL_ACQUIRE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.DrainInterval, err = durationEnv("DRAIN_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

// PersistDatabaseURL records path as DATABASE_URL in envFile. An existing
// DATABASE_URL line is replaced in place and every other line is kept as is;
// otherwise the variable is appended. The file is replaced atomically.
func PersistDatabaseURL(envFile, path string) error {
	if envFile == "" {
		envFile = DefaultEnvFile
	}

	current, err := os.ReadFile(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", envFile, err)
	}

	line, err := godotenv.Marshal(map[string]string{DatabaseURLKey: path})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", DatabaseURLKey, err)
	}

	updated := replaceVariable(current, DatabaseURLKey, line)
	if err := atomic.WriteFile(envFile, bytes.NewReader(updated)); err != nil {
		return fmt.Errorf("failed to write %s: %w", envFile, err)
	}
	return nil
}

// replaceVariable swaps the first assignment of key in a dotenv file for line,
// keeping that line's terminator, or appends line when key is not assigned.
func replaceVariable(content []byte, key, line string) []byte {
	lines := strings.SplitAfter(string(content), "\n")
	for i, l := range lines {
		trimmed := strings.TrimPrefix(strings.TrimLeft(l, " \t"), "export ")
		if !strings.HasPrefix(trimmed, key+"=") {
			continue
		}
		ending := l[len(strings.TrimRight(l, "\r\n")):]
		lines[i] = line + ending
		return []byte(strings.Join(lines, ""))
	}

	var b strings.Builder
	b.Write(content)
	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		b.WriteString("\n")
	}
	b.WriteString(line)
	b.WriteString("\n")
	return []byte(b.String())
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, v)
	}
	return n, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, v)
	}
	return d, nil
}
