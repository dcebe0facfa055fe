// Package config загружает настройки scriptsched: YAML-файл,
// затем переменные окружения.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath — файл конфигурации по умолчанию.
const DefaultPath = "scriptsched.yaml"

// Config — настройки CLI и API-сервера.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	AMQP     AMQPConfig     `yaml:"amqp"`
	Log      LogConfig      `yaml:"log"`
}

// APIConfig — адрес API для CLI и порт для сервера.
type APIConfig struct {
	URL     string        `yaml:"url"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

// DatabaseConfig — PostgreSQL. Пустой URL означает хранение в памяти.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// AMQPConfig — RabbitMQ. Пустой URL отключает события на сервере.
type AMQPConfig struct {
	URL string `yaml:"url"`
}

// LogConfig — параметры slog.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		API: APIConfig{
			URL:     "http://localhost:8080",
			Port:    8080,
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "json",
		},
	}
}

// Load читает YAML-файл и применяет переменные окружения.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault загружает path, а если файла нет — только defaults и окружение.
// Пустой path означает DefaultPath.
func LoadDefault(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg = defaults()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv переопределяет значения из переменных окружения.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("SCRIPTSCHED_API_URL"); ok && v != "" {
		c.API.URL = v
	}
	if v, ok := lookup("API_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid API_PORT %q", v)
		}
		c.API.Port = port
	}
	if v, ok := lookup("HTTP_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid HTTP_TIMEOUT %q: %w", v, err)
		}
		c.API.Timeout = d
	}
	if v, ok := lookup("DB_URL"); ok {
		c.Database.URL = v
	}
	if v, ok := lookup("AMQP_URL"); ok {
		c.AMQP.URL = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok && v != "" {
		c.Log.Format = v
	}
	return nil
}

// Addr возвращает адрес для http.Server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.API.Port)
}
